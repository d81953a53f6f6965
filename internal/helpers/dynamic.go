package helpers

import (
	"fmt"

	"github.com/aymerick/raymond"
	"go.uber.org/zap"
)

// addDynamicCodeHelpers registers eval, safe, escape and env.
//
// eval runs with whatever evaluator the render was configured with; in
// unsafe mode that is arbitrary Go with the privileges of the process.
func addDynamicCodeHelpers(r *Registry, env Env) {
	r.Register("eval", func(expression string, options *raymond.Options) interface{} {
		if env.Expressions == nil {
			panic(fmt.Errorf("eval %q: no expression evaluator configured", expression))
		}

		vars := make(map[string]interface{}, len(env.Scope)+1)
		for k, v := range env.Scope {
			vars[k] = v
		}
		vars["this"] = receiver(options)

		out, err := env.Expressions.Evaluate(env.context(), expression, vars)
		if err != nil {
			env.logger().Error("eval failed",
				zap.String("expression", expression),
				zap.Error(err),
			)
			panic(fmt.Errorf("eval %q: %w", expression, err))
		}
		return out
	})

	r.Register("safe", func(value interface{}) raymond.SafeString {
		return raymond.SafeString(raymond.Str(value))
	})

	// escaped once, in double and triple stashes alike
	r.Register("escape", func(value interface{}) raymond.SafeString {
		return raymond.SafeString(raymond.Escape(raymond.Str(value)))
	})

	r.Register("env", func(name string) interface{} {
		if value, ok := env.lookupEnv(name); ok {
			return value
		}
		return nil
	})
}

// receiver returns the current context of a helper call, or nil when the
// template was rendered without data.
func receiver(options *raymond.Options) (ctx interface{}) {
	// Ctx panics on an invalid context value
	defer func() {
		if recover() != nil {
			ctx = nil
		}
	}()
	return options.Ctx()
}
