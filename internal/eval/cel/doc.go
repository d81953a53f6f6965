// Package cel provides the CEL (Common Expression Language) evaluator behind
// template predicates and the eval helper.
//
// CEL is a non-Turing complete expression language, so template authors can
// filter work items and compute values without running host code.
//
// Example usage:
//
//	evaluator := cel.NewEvaluator()
//
//	vars := map[string]interface{}{
//	    "item": map[string]interface{}{
//	        "fields": map[string]interface{}{"System.WorkItemType": "Bug"},
//	    },
//	}
//
//	result, err := evaluator.Evaluate(ctx, "item.fields['System.WorkItemType'] == 'Bug'", vars)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	matched := result.(bool) // true
//
// Declared variables (all dyn):
//   - Predicates: item, this, index, collection, array
//   - Render context: workItems, commits, widetail, csdetail, buildDetails,
//     releaseDetails, compareReleaseDetails, emptySetText
//
// Besides the standard library, expressions can use the string extensions
// (substring, replace, split, lowerAscii, ...) and now(), which returns the
// evaluator clock as a timestamp:
//
//	string(now()).substring(0, 10) // "2020-01-01"
//
// Programs are compiled on every call and never cached.
package cel
