package helpers

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/aescanero/dago-node-relnotes/internal/predicate"
	"github.com/aymerick/raymond"
)

// addConditionHelpers registers the comparison, string, logical and
// existential helpers
func addConditionHelpers(r *Registry, env Env) {
	r.Register("eq", func(a, b interface{}) bool {
		return StrictEqual(a, b)
	})

	r.Register("ne", func(a, b interface{}) bool {
		return !StrictEqual(a, b)
	})

	r.Register("lt", func(a, b interface{}) bool {
		return compare(a, b, func(x, y float64) bool { return x < y }, func(x, y string) bool { return x < y })
	})

	r.Register("gt", func(a, b interface{}) bool {
		return compare(a, b, func(x, y float64) bool { return x > y }, func(x, y string) bool { return x > y })
	})

	r.Register("lte", func(a, b interface{}) bool {
		return compare(a, b, func(x, y float64) bool { return x <= y }, func(x, y string) bool { return x <= y })
	})

	r.Register("gte", func(a, b interface{}) bool {
		return compare(a, b, func(x, y float64) bool { return x >= y }, func(x, y string) bool { return x >= y })
	})

	r.Register("contains", func(value, part interface{}) bool {
		if !predicate.Truthy(value) || !predicate.Truthy(part) {
			return false
		}
		if items, ok := predicate.Collection(value); ok {
			for _, item := range items {
				if StrictEqual(item, part) {
					return true
				}
			}
			return false
		}
		return strings.Contains(raymond.Str(value), raymond.Str(part))
	})

	r.Register("startsWith", func(value, prefix interface{}) bool {
		if !predicate.Truthy(value) || !predicate.Truthy(prefix) {
			return false
		}
		return strings.HasPrefix(raymond.Str(value), raymond.Str(prefix))
	})

	r.Register("endsWith", func(value, suffix interface{}) bool {
		if !predicate.Truthy(value) || !predicate.Truthy(suffix) {
			return false
		}
		return strings.HasSuffix(raymond.Str(value), raymond.Str(suffix))
	})

	r.Register("match", func(value, pattern interface{}) bool {
		if !predicate.Truthy(value) || !predicate.Truthy(pattern) {
			return false
		}
		re, ok := pattern.(*regexp.Regexp)
		if !ok {
			var err error
			re, err = regexp.Compile(raymond.Str(pattern))
			if err != nil {
				panic(fmt.Errorf("match: invalid pattern %q: %w", raymond.Str(pattern), err))
			}
		}
		return re.MatchString(raymond.Str(value))
	})

	r.Register("some", func(value interface{}, p interface{}, options *raymond.Options) interface{} {
		if !predicate.Truthy(value) {
			return raymond.SafeString(options.Inverse())
		}
		items, ok := predicate.Collection(value)
		if !ok {
			items = []interface{}{value}
		}

		test := mustCompile(env, p)
		for i, item := range items {
			if mustTest(test, item, i, items) {
				return raymond.SafeString(options.Fn())
			}
		}
		return raymond.SafeString(options.Inverse())
	})

	r.RegisterVariadic("and", func(args ...interface{}) interface{} {
		for _, arg := range args {
			if !predicate.Truthy(arg) {
				return false
			}
		}
		return true
	})

	r.RegisterVariadic("or", func(args ...interface{}) interface{} {
		for _, arg := range args {
			if predicate.Truthy(arg) {
				return true
			}
		}
		return false
	})
}

// StrictEqual compares without coercion: values of different kinds are never
// equal, except numbers, which compare by value whatever their Go type.
// Maps, slices and functions are equal only to themselves.
func StrictEqual(a, b interface{}) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if !va.Type().Comparable() {
		return false
	}
	return safeEqual(a, b)
}

func safeEqual(a, b interface{}) (equal bool) {
	defer func() {
		// structs holding uncomparable dynamic values
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}

// number reports the value of a Go numeric type
func number(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// compare orders two values like a relational operator on loosely typed
// values: two strings compare lexically, anything else is converted to a
// number first and NaN never compares.
func compare(a, b interface{}, numeric func(x, y float64) bool, lexical func(x, y string) bool) bool {
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return lexical(x, y)
		}
	}
	x, y := toNumber(a), toNumber(b)
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	return numeric(x, y)
}

func toNumber(v interface{}) float64 {
	if n, ok := number(v); ok {
		return n
	}
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}
