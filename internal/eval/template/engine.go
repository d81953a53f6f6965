package template

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/aymerick/raymond"
	"go.uber.org/zap"
)

// VariadicHelper is a helper that accepts any number of positional
// arguments. Raymond checks helper arity exactly, so variadic helpers are
// bound per call site (see expandVariadic).
type VariadicHelper func(args ...interface{}) interface{}

// Engine compiles Handlebars templates
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a new template engine
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Template is a parsed template. Helpers are bound when it is executed and
// only live for that execution.
type Template struct {
	source string
	logger *zap.Logger
}

// Compile parses the template source
func (e *Engine) Compile(source string) (*Template, error) {
	if _, err := raymond.Parse(source); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return &Template{source: source, logger: e.logger}, nil
}

// ValidateTemplate validates a template without rendering it
func (e *Engine) ValidateTemplate(source string) error {
	_, err := raymond.Parse(source)
	return err
}

// Render compiles and executes source with the given helpers
func (e *Engine) Render(source string, data interface{}, helpers map[string]interface{}) (string, error) {
	tmpl, err := e.Compile(source)
	if err != nil {
		return "", fmt.Errorf("failed to compile template: %w", err)
	}
	return tmpl.Exec(data, helpers, nil)
}

// Source returns the template text
func (t *Template) Source() string {
	return t.source
}

// Exec renders the template against data. helpers and variadic are
// registered on this execution only; the raymond global registry is never
// touched.
func (t *Template) Exec(data interface{}, helpers map[string]interface{}, variadic map[string]VariadicHelper) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("template execution failed: %v", r)
		}
	}()

	names := make(map[string]bool, len(variadic))
	for name := range variadic {
		names[name] = true
	}
	source, calls := expandVariadic(t.source, names)

	tpl, err := raymond.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse error: %w", err)
	}

	bound := make(map[string]interface{}, len(helpers)+len(calls))
	for name, helper := range helpers {
		bound[name] = helper
	}
	for _, call := range calls {
		name := variadicName(call.name, call.arity)
		if _, ok := bound[name]; ok {
			continue
		}
		bound[name] = bindVariadic(variadic[call.name], call.arity)
	}

	if err := registerHelpers(tpl, bound); err != nil {
		return "", err
	}

	t.logger.Debug("executing template",
		zap.Int("helpers", len(bound)),
		zap.Int("variadic_calls", len(calls)),
	)

	result, err = tpl.Exec(data)
	if err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return result, nil
}

// registerHelpers registers helpers on tpl, turning raymond's registration
// panics into errors
func registerHelpers(tpl *raymond.Template, helpers map[string]interface{}) (err error) {
	names := make([]string, 0, len(helpers))
	for name := range helpers {
		names = append(names, name)
	}
	sort.Strings(names)

	current := ""
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid helper %q: %v", current, r)
		}
	}()
	for _, name := range names {
		current = name
		tpl.RegisterHelper(name, helpers[name])
	}
	return nil
}

var anyType = reflect.TypeOf((*interface{})(nil)).Elem()

// bindVariadic builds a helper taking exactly arity interface{} arguments
func bindVariadic(helper VariadicHelper, arity int) interface{} {
	in := make([]reflect.Type, arity)
	for i := range in {
		in[i] = anyType
	}
	fnType := reflect.FuncOf(in, []reflect.Type{anyType}, false)

	return reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		values := make([]interface{}, len(args))
		for i, arg := range args {
			values[i] = arg.Interface()
		}
		out := reflect.New(anyType).Elem()
		if result := helper(values...); result != nil {
			out.Set(reflect.ValueOf(result))
		}
		return []reflect.Value{out}
	}).Interface()
}
