package helpers

import (
	"strings"

	"github.com/aescanero/dago-node-relnotes/internal/predicate"
	"github.com/aymerick/raymond"
	"go.uber.org/zap"
)

// addCollectionHelpers registers filter and reduce.
//
// Both compile their predicate before looking at the data, so a malformed
// predicate fails the render even when the collection is empty.
func addCollectionHelpers(r *Registry, env Env) {
	r.Register("filter", func(context interface{}, p interface{}, options *raymond.Options) interface{} {
		test := mustCompile(env, p)

		if !predicate.Truthy(context) {
			return raymond.SafeString(options.Inverse())
		}

		if items, ok := predicate.Collection(context); ok {
			var b strings.Builder
			matched := 0
			for i, item := range items {
				if mustTest(test, item, i, items) {
					matched++
					b.WriteString(options.FnWith(item))
				}
			}
			env.logger().Debug("filter applied",
				zap.Int("items", len(items)),
				zap.Int("matched", matched),
			)
			if matched > 0 {
				return raymond.SafeString(b.String())
			}
			return raymond.SafeString(options.Inverse())
		}

		if mustTest(test, context, 0, nil) {
			return raymond.SafeString(options.FnWith(context))
		}
		return raymond.SafeString(options.Inverse())
	})

	// reduce renders its block once with every matching element as the
	// receiver. It does not accumulate.
	r.Register("reduce", func(context interface{}, p interface{}, options *raymond.Options) interface{} {
		test := mustCompile(env, p)

		if !predicate.Truthy(context) {
			return raymond.SafeString(options.Inverse())
		}
		items, ok := predicate.Collection(context)
		if !ok {
			items = []interface{}{context}
		}

		var kept []interface{}
		for i, item := range items {
			if mustTest(test, item, i, items) {
				kept = append(kept, item)
			}
		}
		if len(kept) > 0 {
			return raymond.SafeString(options.FnWith(kept))
		}
		return raymond.SafeString(options.Inverse())
	})
}

// mustCompile compiles a predicate inside a helper. Raymond turns the panic
// back into the error returned by the render.
func mustCompile(env Env, p interface{}) predicate.Func {
	compiler := env.Predicates
	if compiler == nil {
		compiler = predicate.NewCompiler(predicate.ModeCEL, nil, env.logger())
	}
	fn, err := compiler.Compile(p)
	if err != nil {
		env.logger().Error("predicate compilation failed", zap.Error(err))
		panic(err)
	}
	return fn
}

func mustTest(fn predicate.Func, item interface{}, index int, collection []interface{}) bool {
	ok, err := fn(item, index, collection)
	if err != nil {
		panic(err)
	}
	return ok
}
