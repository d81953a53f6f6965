package helpers

import (
	"strings"
	"unicode/utf8"

	"github.com/aescanero/dago-node-relnotes/internal/predicate"
	"github.com/aymerick/raymond"
)

// addTextHelpers registers the general purpose string helpers
func addTextHelpers(r *Registry) {
	// uppercase helper
	r.Register("uppercase", func(value interface{}) string {
		return strings.ToUpper(raymond.Str(value))
	})

	// lowercase helper
	r.Register("lowercase", func(value interface{}) string {
		return strings.ToLower(raymond.Str(value))
	})

	// trim helper
	r.Register("trim", func(value interface{}) string {
		return strings.TrimSpace(raymond.Str(value))
	})

	// default helper - return default value if first arg is empty
	r.Register("default", func(value interface{}, defaultValue interface{}) interface{} {
		if value == nil || value == "" {
			return defaultValue
		}
		return value
	})

	// join helper - join collection elements with separator
	r.Register("join", func(value interface{}, sep string) string {
		items, ok := predicate.Collection(value)
		if !ok {
			return raymond.Str(value)
		}
		strs := make([]string, len(items))
		for i, v := range items {
			strs[i] = raymond.Str(v)
		}
		return strings.Join(strs, sep)
	})

	// len helper - length of a collection, string or map
	r.Register("len", func(value interface{}) int {
		switch v := value.(type) {
		case string:
			return utf8.RuneCountInString(v)
		case map[string]interface{}:
			return len(v)
		}
		if items, ok := predicate.Collection(value); ok {
			return len(items)
		}
		return 0
	})
}
