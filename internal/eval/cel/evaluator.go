package cel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

// Variables declared in every expression environment. All of them are dyn.
var (
	// PredicateVars are bound per element when a predicate runs.
	PredicateVars = []string{"item", "this", "index", "collection", "array"}

	// ContextVars mirror the render context exposed to templates.
	ContextVars = []string{
		"workItems",
		"commits",
		"widetail",
		"csdetail",
		"buildDetails",
		"releaseDetails",
		"compareReleaseDetails",
		"emptySetText",
	}
)

// Evaluator evaluates CEL expressions
type Evaluator struct {
	env *cel.Env
	now func() time.Time
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithClock overrides the clock behind now()
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEvaluator creates a new CEL evaluator
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}

	envOpts := []cel.EnvOption{
		ext.Strings(),
		cel.CrossTypeNumericComparisons(true),
		cel.Function("now",
			cel.Overload("now_timestamp", []*cel.Type{}, cel.TimestampType,
				cel.FunctionBinding(func(_ ...ref.Val) ref.Val {
					return types.Timestamp{Time: e.now().UTC()}
				}),
			),
		),
	}
	for _, name := range PredicateVars {
		envOpts = append(envOpts, cel.Variable(name, cel.DynType))
	}
	for _, name := range ContextVars {
		envOpts = append(envOpts, cel.Variable(name, cel.DynType))
	}

	env, err := cel.NewEnv(envOpts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create CEL environment: %v", err))
	}

	e.env = env
	return e
}

// Program is a compiled expression. Programs are never shared between
// render calls.
type Program struct {
	expression string
	program    cel.Program
}

// Expression returns the source the program was compiled from
func (p *Program) Expression() string {
	return p.expression
}

// Compile parses, checks and plans an expression
func (e *Evaluator) Compile(expression string) (*Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("parse error: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program generation error: %w", err)
	}

	return &Program{expression: expression, program: program}, nil
}

// Eval runs the program against vars and returns the native result
func (p *Program) Eval(vars map[string]interface{}) (interface{}, error) {
	out, _, err := p.program.Eval(withDeclared(vars))
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

// Evaluate compiles and evaluates an expression with the given variables
func (e *Evaluator) Evaluate(ctx context.Context, expression string, vars map[string]interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	program, err := e.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", err)
	}

	result, err := program.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	return result, nil
}

// ValidateExpression validates a CEL expression without evaluating it
func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	return nil
}

// IsMissingValue reports whether err comes from a lookup of a key or
// attribute that is not present in the data.
func IsMissingValue(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such key") ||
		strings.Contains(msg, "no such attribute") ||
		strings.Contains(msg, "no such field")
}

// withDeclared fills every declared variable missing from vars with null so
// that unrelated references do not fail as unbound attributes.
func withDeclared(vars map[string]interface{}) map[string]interface{} {
	activation := make(map[string]interface{}, len(PredicateVars)+len(ContextVars))
	for _, name := range PredicateVars {
		activation[name] = nil
	}
	for _, name := range ContextVars {
		activation[name] = nil
	}
	for k, v := range vars {
		activation[k] = v
	}
	return activation
}
