// Package template adapts the raymond Handlebars engine to per-render helper
// registries.
//
// Helpers are registered on the parsed template itself, never on the raymond
// global registry, so two renders with different helper sets cannot see each
// other's helpers. Template-level helpers also shadow raymond's built-ins.
//
// Raymond requires a helper's parameter list to match the call exactly.
// Variadic helpers (and, or) are therefore bound once per distinct arity: the
// template source is rewritten so that {{and a b c}} calls and__3, and a
// three-argument helper is registered under that name for the execution.
//
// Example usage:
//
//	engine := template.NewEngine(logger)
//	tmpl, err := engine.Compile("{{#if (and a b)}}both{{/if}}")
//	if err != nil {
//	    return err
//	}
//	out, err := tmpl.Exec(data, helpers, map[string]template.VariadicHelper{
//	    "and": andHelper,
//	})
package template
