package helpers

import (
	"context"
	"os"
	"sort"

	"github.com/aescanero/dago-node-relnotes/internal/eval/template"
	"github.com/aescanero/dago-node-relnotes/internal/predicate"
	"go.uber.org/zap"
)

// Evaluator evaluates an expression against a set of variables. Both the CEL
// evaluator and the unsafe Go evaluator satisfy it.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, vars map[string]interface{}) (interface{}, error)
}

// Env is what the built-in helpers need from the render that owns them.
type Env struct {
	Context     context.Context
	Predicates  *predicate.Compiler
	Expressions Evaluator
	// Scope is the render context, visible to eval expressions by field name
	Scope     map[string]interface{}
	LookupEnv func(string) (string, bool)
	Logger    *zap.Logger
}

func (e Env) context() context.Context {
	if e.Context == nil {
		return context.Background()
	}
	return e.Context
}

func (e Env) lookupEnv(name string) (string, bool) {
	if e.LookupEnv == nil {
		return os.LookupEnv(name)
	}
	return e.LookupEnv(name)
}

func (e Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Registry holds the helpers of a single render. Later registrations replace
// earlier ones with the same name, whether fixed-arity or variadic.
type Registry struct {
	helpers  map[string]interface{}
	variadic map[string]template.VariadicHelper
	logger   *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		helpers:  make(map[string]interface{}),
		variadic: make(map[string]template.VariadicHelper),
		logger:   logger,
	}
}

// Register adds a fixed-arity helper
func (r *Registry) Register(name string, helper interface{}) {
	if r.shadows(name) {
		r.logger.Debug("helper replaced", zap.String("helper", name))
	}
	delete(r.variadic, name)
	r.helpers[name] = helper
}

// RegisterVariadic adds a helper taking any number of arguments
func (r *Registry) RegisterVariadic(name string, helper template.VariadicHelper) {
	if r.shadows(name) {
		r.logger.Debug("helper replaced", zap.String("helper", name))
	}
	delete(r.helpers, name)
	r.variadic[name] = helper
}

func (r *Registry) shadows(name string) bool {
	_, fixed := r.helpers[name]
	_, variadic := r.variadic[name]
	return fixed || variadic
}

// Lookup returns the helper registered under name
func (r *Registry) Lookup(name string) (interface{}, bool) {
	if h, ok := r.helpers[name]; ok {
		return h, true
	}
	if h, ok := r.variadic[name]; ok {
		return h, true
	}
	return nil, false
}

// Names returns all helper names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, r.Len())
	for name := range r.helpers {
		names = append(names, name)
	}
	for name := range r.variadic {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered helpers
func (r *Registry) Len() int {
	return len(r.helpers) + len(r.variadic)
}

// Helpers returns a copy of the fixed-arity helpers
func (r *Registry) Helpers() map[string]interface{} {
	out := make(map[string]interface{}, len(r.helpers))
	for name, h := range r.helpers {
		out[name] = h
	}
	return out
}

// Variadic returns a copy of the variadic helpers
func (r *Registry) Variadic() map[string]template.VariadicHelper {
	out := make(map[string]template.VariadicHelper, len(r.variadic))
	for name, h := range r.variadic {
		out[name] = h
	}
	return out
}

// Build assembles the helpers of one render: template text helpers, dynamic
// code helpers, collection helpers, condition helpers and finally custom
// helpers, each group overriding the previous ones on name collisions.
func Build(env Env, custom map[string]interface{}) *Registry {
	r := NewRegistry(env.logger())

	addTextHelpers(r)
	addDynamicCodeHelpers(r, env)
	addCollectionHelpers(r, env)
	addConditionHelpers(r, env)

	names := make([]string, 0, len(custom))
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.Register(name, custom[name])
	}

	r.logger.Debug("helper registry built",
		zap.Int("helpers", r.Len()),
		zap.Int("custom", len(custom)),
	)
	return r
}
