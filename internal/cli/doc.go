// Package cli implements the relnotes command line tool.
//
// Commands:
//   - render: render a template file against a YAML or JSON data file,
//     with optional custom helpers (--helpers Go source, --helper-defs
//     definitions file)
//   - check: compile template files without rendering
//   - example: write a data file and a template to start from
//   - template: push, show, list and delete templates stored in Redis for
//     the worker
//
// Each command is built by a factory taking closures (loggerFn, storeFn)
// so the logger and the Redis client are only created after persistent
// flags are parsed, and only by the commands that need them.
package cli
