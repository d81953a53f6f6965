package script

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
)

const (
	predicateName  = "predicate"
	expressionName = "evaluate"
)

// Predicate is an interpreted func(item, index, collection) bool.
type Predicate struct {
	fn reflect.Value
}

// CompilePredicate interprets body as the statements of
//
//	func(item interface{}, index int, collection []interface{}) bool
//
// with this bound to item and array bound to collection.
func CompilePredicate(body string) (*Predicate, error) {
	decl := fmt.Sprintf(`func %s(item interface{}, index int, collection []interface{}) bool {
	this := item
	_ = this
	array := collection
	_ = array
%s
}`, predicateName, body)

	// the interpreter does not enforce the missing return rule
	if err := checkTerminates(decl, predicateName); err != nil {
		return nil, err
	}

	fn, err := Load(Unit{Imports: DetectImports(decl), Decls: []string{decl}}, predicateName)
	if err != nil {
		return nil, err
	}
	return &Predicate{fn: fn}, nil
}

// Test runs the predicate for one element.
func (p *Predicate) Test(item interface{}, index int, collection []interface{}) (bool, error) {
	out, err := Call(p.fn, item, index, collection)
	if err != nil {
		return false, err
	}
	if len(out) != 1 || out[0].Kind() != reflect.Bool {
		return false, fmt.Errorf("script: predicate must return bool")
	}
	return out[0].Bool(), nil
}

// Evaluator evaluates Go expressions. It is the opt-in counterpart of the
// CEL evaluator and runs with full process privileges.
type Evaluator struct{}

// NewEvaluator creates a Go expression evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate interprets expression as the result of
//
//	func(this interface{}, scope map[string]interface{}) interface{}
//
// where this is vars["this"] and scope is vars itself.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, vars map[string]interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decl := fmt.Sprintf(`func %s(this interface{}, scope map[string]interface{}) interface{} {
	_ = this
	_ = scope
	return %s
}`, expressionName, expression)

	fn, err := Load(Unit{Imports: DetectImports(decl), Decls: []string{decl}}, expressionName)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", err)
	}

	if vars == nil {
		vars = map[string]interface{}{}
	}
	out, err := Call(fn, vars["this"], vars)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	return out[0].Interface(), nil
}

// checkTerminates parses a function declaration and fails when its body can
// run off the end without returning.
func checkTerminates(decl, name string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, name+".go", "package "+defaultPackage+"\n"+decl, 0)
	if err != nil {
		return fmt.Errorf("script: %w", err)
	}
	for _, d := range file.Decls {
		fn, ok := d.(*ast.FuncDecl)
		if !ok || fn.Name.Name != name {
			continue
		}
		if !terminates(fn.Body) {
			return fmt.Errorf("script: missing return at end of %s", name)
		}
		return nil
	}
	return fmt.Errorf("script: function %s not found", name)
}

// terminates reports whether stmt is a terminating statement as the Go
// compiler defines it.
func terminates(stmt ast.Stmt) bool {
	switch s := stmt.(type) {
	case *ast.ReturnStmt:
		return true
	case *ast.BranchStmt:
		return s.Tok == token.GOTO
	case *ast.ExprStmt:
		call, ok := s.X.(*ast.CallExpr)
		if !ok {
			return false
		}
		ident, ok := call.Fun.(*ast.Ident)
		return ok && ident.Name == "panic"
	case *ast.BlockStmt:
		return s != nil && len(s.List) > 0 && terminates(s.List[len(s.List)-1])
	case *ast.IfStmt:
		return s.Else != nil && terminates(s.Body) && terminates(s.Else)
	case *ast.LabeledStmt:
		return terminates(s.Stmt)
	case *ast.ForStmt:
		return s.Cond == nil && !hasBreak(s.Body)
	case *ast.SwitchStmt:
		return clausesTerminate(s.Body)
	case *ast.TypeSwitchStmt:
		return clausesTerminate(s.Body)
	case *ast.SelectStmt:
		for _, c := range s.Body.List {
			cc := c.(*ast.CommClause)
			if hasBreakIn(cc.Body) || !terminatesList(cc.Body, false) {
				return false
			}
		}
		return true
	}
	return false
}

func clausesTerminate(body *ast.BlockStmt) bool {
	hasDefault := false
	for _, c := range body.List {
		cc := c.(*ast.CaseClause)
		if cc.List == nil {
			hasDefault = true
		}
		if hasBreakIn(cc.Body) || !terminatesList(cc.Body, true) {
			return false
		}
	}
	return hasDefault
}

func terminatesList(list []ast.Stmt, fallthroughOK bool) bool {
	if len(list) == 0 {
		return false
	}
	last := list[len(list)-1]
	if b, ok := last.(*ast.BranchStmt); ok && b.Tok == token.FALLTHROUGH {
		return fallthroughOK
	}
	return terminates(last)
}

func hasBreak(body *ast.BlockStmt) bool {
	return hasBreakIn(body.List)
}

// hasBreakIn reports a break that leaves the enclosing statement: an
// unlabeled break outside nested breakable statements, or any labeled break.
func hasBreakIn(list []ast.Stmt) bool {
	found := false
	for _, stmt := range list {
		ast.Inspect(stmt, func(n ast.Node) bool {
			if found {
				return false
			}
			switch b := n.(type) {
			case *ast.BranchStmt:
				if b.Tok == token.BREAK {
					found = true
				}
			case *ast.FuncLit:
				return false
			case *ast.ForStmt, *ast.RangeStmt, *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
				found = hasLabeledBreak(n)
				return false
			}
			return true
		})
	}
	return found
}

func hasLabeledBreak(node ast.Node) bool {
	found := false
	ast.Inspect(node, func(n ast.Node) bool {
		if b, ok := n.(*ast.BranchStmt); ok && b.Tok == token.BREAK && b.Label != nil {
			found = true
		}
		_, isLit := n.(*ast.FuncLit)
		return !found && !isLit
	})
	return found
}
