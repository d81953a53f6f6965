// Package predicate compiles the predicates used by the filter, reduce and
// some helpers.
//
// A predicate is either a callable or a string. Strings are trimmed, lose a
// leading function header, and get an implicit return when they have none,
// so "item.id > 3" and "return item.id > 3" compile to the same Func. The
// resulting body is compiled as CEL by default, or as Go statements when the
// compiler runs in ModeGo.
//
//	compiler := predicate.NewCompiler(predicate.ModeCEL, nil, logger)
//	isBug, err := compiler.Compile("this.fields['System.WorkItemType'] === 'Bug'")
//	ok, err := isBug(workItem, 0, workItems)
//
// Nothing is cached: each Compile call compiles again.
package predicate
