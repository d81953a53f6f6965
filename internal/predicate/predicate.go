package predicate

import (
	"fmt"
	"go/scanner"
	"go/token"
	"regexp"
	"strings"

	"github.com/aescanero/dago-node-relnotes/internal/eval/cel"
	"github.com/aescanero/dago-node-relnotes/internal/eval/script"
	"go.uber.org/zap"
)

// Func is a compiled predicate. item is also bound as the receiver (this).
type Func func(item interface{}, index int, collection []interface{}) (bool, error)

// Mode selects the language string predicates are written in.
type Mode string

const (
	// ModeCEL compiles predicates as CEL expressions
	ModeCEL Mode = "cel"

	// ModeGo interprets predicates as Go statements. Unsafe: the code runs
	// with the privileges of the host process.
	ModeGo Mode = "go"
)

var (
	functionHeader = regexp.MustCompile(`^(?:function|func)\b(?:interface\{\}|[^{])*`)
	leadingReturn  = regexp.MustCompile(`^return\b`)
)

// CompileError reports a predicate that could not be compiled
type CompileError struct {
	Expression string
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile predicate %q: %v", e.Expression, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Compiler turns predicate values into Funcs
type Compiler struct {
	mode   Mode
	cel    *cel.Evaluator
	logger *zap.Logger
}

// NewCompiler creates a predicate compiler. A nil evaluator gets a default
// CEL evaluator; a nil logger is replaced by a no-op logger.
func NewCompiler(mode Mode, evaluator *cel.Evaluator, logger *zap.Logger) *Compiler {
	if mode == "" {
		mode = ModeCEL
	}
	if evaluator == nil && mode == ModeCEL {
		evaluator = cel.NewEvaluator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{mode: mode, cel: evaluator, logger: logger}
}

// Mode returns the language string predicates are compiled from
func (c *Compiler) Mode() Mode {
	return c.mode
}

// Compile normalizes p into a Func. Callables are returned unchanged;
// strings are compiled on every call.
func (c *Compiler) Compile(p interface{}) (Func, error) {
	switch fn := p.(type) {
	case Func:
		return fn, nil
	case func(interface{}, int, []interface{}) (bool, error):
		return fn, nil
	case func(interface{}, int, []interface{}) bool:
		return func(item interface{}, index int, collection []interface{}) (bool, error) {
			return fn(item, index, collection), nil
		}, nil
	case string:
		return c.compileString(fn)
	case nil:
		return nil, &CompileError{Err: fmt.Errorf("predicate is missing")}
	default:
		return nil, &CompileError{Expression: fmt.Sprint(p), Err: fmt.Errorf("unsupported predicate type %T", p)}
	}
}

func (c *Compiler) compileString(expression string) (Func, error) {
	body := Body(expression)

	c.logger.Debug("compiling predicate",
		zap.String("mode", string(c.mode)),
		zap.String("expression", expression),
	)

	switch c.mode {
	case ModeGo:
		p, err := script.CompilePredicate(unwrapBlock(body))
		if err != nil {
			return nil, &CompileError{Expression: expression, Err: err}
		}
		return func(item interface{}, index int, collection []interface{}) (bool, error) {
			ok, err := p.Test(item, index, collection)
			if err != nil {
				return false, fmt.Errorf("evaluate predicate %q: %w", expression, err)
			}
			return ok, nil
		}, nil

	case ModeCEL:
		program, err := c.cel.Compile(celExpression(body))
		if err != nil {
			return nil, &CompileError{Expression: expression, Err: err}
		}
		return func(item interface{}, index int, collection []interface{}) (bool, error) {
			out, err := program.Eval(map[string]interface{}{
				"item":       item,
				"this":       item,
				"index":      index,
				"collection": collection,
				"array":      collection,
			})
			if err != nil {
				if cel.IsMissingValue(err) {
					return false, nil
				}
				return false, fmt.Errorf("evaluate predicate %q: %w", expression, err)
			}
			return Truthy(out), nil
		}, nil

	default:
		return nil, &CompileError{Expression: expression, Err: fmt.Errorf("unknown predicate mode %q", c.mode)}
	}
}

// Body trims expression, drops a leading function header and makes sure the
// remaining statements return a value: a bare expression becomes
// "return <expression>".
func Body(expression string) string {
	body := strings.TrimSpace(expression)
	body = strings.TrimSpace(functionHeader.ReplaceAllString(body, ""))
	if !hasReturn(body) {
		body = "return " + body
	}
	return body
}

// hasReturn reports whether body contains a return keyword outside string
// literals and comments.
func hasReturn(body string) bool {
	src := []byte(body)
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))

	var s scanner.Scanner
	// single quoted CEL strings are scanned as (invalid) rune literals
	s.Init(file, src, func(token.Position, string) {}, 0)
	for {
		_, tok, _ := s.Scan()
		switch tok {
		case token.EOF:
			return false
		case token.RETURN:
			return true
		}
	}
}

// celExpression reduces a single-statement body produced by Body to the CEL
// expression it returns. Legacy strict comparison operators are accepted.
func celExpression(body string) string {
	expr := unwrapBlock(body)
	expr = strings.TrimSpace(leadingReturn.ReplaceAllString(expr, ""))
	expr = strings.TrimSpace(strings.TrimSuffix(expr, ";"))
	return replaceOutsideStrings(expr, strictOperators)
}

// unwrapBlock removes the braces left behind by a stripped function header.
func unwrapBlock(body string) string {
	body = strings.TrimSpace(body)
	for strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
		body = strings.TrimSpace(body[1 : len(body)-1])
	}
	return body
}

var strictOperators = strings.NewReplacer("===", "==", "!==", "!=")

// replaceOutsideStrings applies r to the parts of s that are not quoted
// string literals.
func replaceOutsideStrings(s string, r *strings.Replacer) string {
	var b strings.Builder
	start := 0
	for i := 0; i < len(s); i++ {
		q := s[i]
		if q != '\'' && q != '"' {
			continue
		}
		b.WriteString(r.Replace(s[start:i]))
		j := i + 1
		for j < len(s) && s[j] != q {
			if s[j] == '\\' {
				j++
			}
			j++
		}
		if j >= len(s) {
			j = len(s) - 1
		}
		b.WriteString(s[i : j+1])
		i = j
		start = j + 1
	}
	if start < len(s) {
		b.WriteString(r.Replace(s[start:]))
	}
	return b.String()
}
