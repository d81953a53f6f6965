// Package script runs Go source through the yaegi interpreter.
//
// It backs the custom helper loader, which turns a blob of Go functions into
// callable helpers, and the opt-in unsafe expression mode, where predicates
// and eval expressions are Go instead of CEL. Interpreted code runs with the
// privileges of the host process; only enable it for trusted templates.
//
// Every Unit is interpreted by a fresh interpreter with the standard library
// available:
//
//	fns, err := script.Functions(`
//	import "strings"
//
//	func shout(s string) string { return strings.ToUpper(s) + "!" }
//	`)
//	fn, err := script.Load(fns[0].Unit, fns[0].Name)
//	out, err := script.Call(fn, "release")
//	fmt.Println(out[0].String()) // RELEASE!
package script
