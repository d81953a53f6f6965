package script

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const defaultPackage = "main"

// knownPackages maps the identifiers a snippet may reference to the standard
// library import paths added on its behalf.
var knownPackages = map[string]string{
	"bytes":    "bytes",
	"errors":   "errors",
	"filepath": "path/filepath",
	"fmt":      "fmt",
	"math":     "math",
	"os":       "os",
	"path":     "path",
	"regexp":   "regexp",
	"sort":     "sort",
	"strconv":  "strconv",
	"strings":  "strings",
	"time":     "time",
	"unicode":  "unicode",
}

// Unit is a single Go compilation unit evaluated by its own interpreter.
// Units always belong to package main so their symbols resolve by name.
type Unit struct {
	Imports []string
	Decls   []string
}

// Source renders the unit as a Go file.
func (u Unit) Source() string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n", defaultPackage)
	if len(u.Imports) > 0 {
		b.WriteString("\nimport (\n")
		for _, imp := range u.Imports {
			fmt.Fprintf(&b, "\t%s\n", quoteImport(imp))
		}
		b.WriteString(")\n")
	}
	for _, decl := range u.Decls {
		b.WriteString("\n")
		b.WriteString(decl)
		b.WriteString("\n")
	}
	return b.String()
}

// Load interprets the unit in a fresh interpreter and returns symbol.
func Load(u Unit, symbol string) (reflect.Value, error) {
	i := interp.New(interp.Options{})
	i.Use(stdlib.Symbols)
	if _, err := i.Eval(u.Source()); err != nil {
		return reflect.Value{}, fmt.Errorf("script: interpret: %w", err)
	}
	value, err := i.Eval(symbol)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("script: resolve %s: %w", symbol, err)
	}
	if !value.IsValid() {
		return reflect.Value{}, fmt.Errorf("script: %s is undefined", symbol)
	}
	return value, nil
}

// Call invokes fn with args, converting interpreter panics into errors.
func Call(fn reflect.Value, args ...interface{}) (out []reflect.Value, err error) {
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("script: %s is not a function", fn.Kind())
	}
	fnType := fn.Type()
	if !fnType.IsVariadic() && fnType.NumIn() != len(args) {
		return nil, fmt.Errorf("script: function takes %d arguments, got %d", fnType.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for idx, arg := range args {
		argType := fnType.In(idx)
		if fnType.IsVariadic() && idx >= fnType.NumIn()-1 {
			argType = fnType.In(fnType.NumIn() - 1).Elem()
		}
		in[idx], err = argValue(arg, argType)
		if err != nil {
			return nil, fmt.Errorf("script: argument %d: %w", idx, err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("script: panic: %v", r)
		}
	}()
	return fn.Call(in), nil
}

func argValue(arg interface{}, argType reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(argType), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(argType) {
		return v, nil
	}
	if v.Type().ConvertibleTo(argType) {
		return v.Convert(argType), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), argType)
}

// DetectImports returns the import paths of known standard library packages
// referenced by decls. Unparsable input yields nil; the interpreter reports
// the syntax error later with better context.
func DetectImports(decls ...string) []string {
	src := Unit{Decls: decls}.Source()
	file, err := parser.ParseFile(token.NewFileSet(), "detect.go", src, 0)
	if err != nil {
		return nil
	}

	used := referencedPackages(file.Decls...)
	var imports []string
	for name := range used {
		if path, ok := knownPackages[name]; ok {
			imports = append(imports, path)
		}
	}
	sort.Strings(imports)
	return imports
}

// referencedPackages collects unresolved identifiers used as selector
// receivers, which is how package references look before type checking.
func referencedPackages(decls ...ast.Decl) map[string]bool {
	used := make(map[string]bool)
	for _, decl := range decls {
		ast.Inspect(decl, func(n ast.Node) bool {
			sel, ok := n.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			if ident, ok := sel.X.(*ast.Ident); ok && ident.Obj == nil {
				used[ident.Name] = true
			}
			return true
		})
	}
	return used
}

func quoteImport(imp string) string {
	imp = strings.TrimSpace(imp)
	if strings.HasSuffix(imp, `"`) {
		// already quoted, possibly with an alias
		return imp
	}
	return strconv.Quote(imp)
}
