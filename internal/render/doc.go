// Package render turns a release notes template and release metadata into
// text.
//
// A render joins the template lines with "\n", compiles the template, loads
// any custom helpers, builds the evaluation context and a fresh helper
// registry, and executes the template. Nothing survives the call.
//
// The evaluation context exposes:
//
//	workItems, widetail        work items (widetail is the legacy name)
//	commits, csdetail          commits (csdetail is the legacy name)
//	buildDetails               build descriptor
//	releaseDetails             release descriptor
//	compareReleaseDetails      release being compared against
//	emptySetText               fallback text for empty sections
//
// Example:
//
//	r := render.NewRenderer(render.WithLogger(logger))
//	notes, err := r.Render(ctx, render.Request{
//	    Lines:        strings.Split(tmpl, "\n"),
//	    WorkItems:    items,
//	    BuildDetails: build,
//	    EmptySetText: "No Entries",
//	})
//
// Predicates and eval expressions are CEL by default. WithUnsafeExpressions
// switches both to interpreted Go, which runs with the privileges of the
// process; only enable it for trusted templates.
package render
