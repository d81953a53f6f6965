// Package helpers implements the Handlebars helpers available to release
// note templates and the per-render registry that holds them.
//
// Helper families, in registration order:
//   - text: uppercase, lowercase, trim, default, join, len
//   - dynamic code: eval, safe, escape, env
//   - collection: filter, reduce
//   - condition: eq, ne, lt, gt, lte, gte, contains, startsWith, endsWith,
//     match, some, and, or
//   - custom: Go functions loaded with LoadCustom or LoadDefinitions
//
// A later family overrides an earlier one on a name collision, so custom
// helpers may shadow any built-in.
//
// Helpers that fail abort the render by panicking with an error; raymond
// reports it as the error of the template execution.
package helpers
