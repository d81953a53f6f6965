package helpers

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/aescanero/dago-node-relnotes/internal/eval/cel"
	"github.com/aescanero/dago-node-relnotes/internal/eval/template"
	"github.com/aescanero/dago-node-relnotes/internal/predicate"
	"go.uber.org/zap/zaptest"
)

func testEnv(t *testing.T) Env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	evaluator := cel.NewEvaluator()
	return Env{
		Context:     context.Background(),
		Predicates:  predicate.NewCompiler(predicate.ModeCEL, evaluator, logger),
		Expressions: evaluator,
		LookupEnv: func(name string) (string, bool) {
			if name == "RELEASE_CHANNEL" {
				return "stable", true
			}
			return "", false
		},
		Logger: logger,
	}
}

func render(t *testing.T, env Env, custom map[string]interface{}, src string, data interface{}) (string, error) {
	t.Helper()
	reg := Build(env, custom)
	tmpl, err := template.NewEngine(env.Logger).Compile(src)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	return tmpl.Exec(data, reg.Helpers(), reg.Variadic())
}

func mustRender(t *testing.T, env Env, src string, data interface{}) string {
	t.Helper()
	out, err := render(t, env, nil, src, data)
	if err != nil {
		t.Fatalf("render %q: %v", src, err)
	}
	return out
}

func numbers(values ...float64) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func TestBuild_Order(t *testing.T) {
	reg := Build(testEnv(t), map[string]interface{}{
		"eq":  func(a, b interface{}) string { return "custom" },
		"and": func(a interface{}) string { return "custom and" },
	})

	for _, name := range []string{"uppercase", "eval", "safe", "escape", "env", "filter", "reduce", "eq", "ne",
		"lt", "gt", "lte", "gte", "contains", "startsWith", "endsWith", "match", "some", "and", "or"} {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("helper %s is not registered", name)
		}
	}

	if _, ok := reg.Variadic()["and"]; ok {
		t.Error("custom and should replace the variadic built-in")
	}
	if _, ok := reg.Variadic()["or"]; !ok {
		t.Error("or should stay variadic")
	}
	eq, _ := reg.Lookup("eq")
	if fn, ok := eq.(func(a, b interface{}) string); !ok || fn(1, 1) != "custom" {
		t.Error("custom eq should shadow the built-in")
	}
	if reg.Len() != len(reg.Names()) {
		t.Errorf("Len %d does not match Names %d", reg.Len(), len(reg.Names()))
	}
}

func TestConditionHelpers(t *testing.T) {
	env := testEnv(t)
	data := map[string]interface{}{
		"title":  "Bug number 2",
		"kind":   "Bug",
		"count":  float64(3),
		"labels": []interface{}{"ui", "api"},
		"empty":  "",
		"zero":   float64(0),
	}

	tests := []struct {
		src      string
		expected string
	}{
		{`{{eq kind "Bug"}}`, "true"},
		{`{{eq count 3}}`, "true"},
		{`{{eq count "3"}}`, "false"},
		{`{{ne kind "Task"}}`, "true"},
		{`{{eq missing missing}}`, "true"},
		{`{{lt count 4}}`, "true"},
		{`{{gt count "2"}}`, "true"},
		{`{{gte count 3}}`, "true"},
		{`{{lte count 2}}`, "false"},
		{`{{lt "abc" "abd"}}`, "true"},
		{`{{lt missing 4}}`, "false"},
		{`{{contains title "number 2"}}`, "true"},
		{`{{contains labels "api"}}`, "true"},
		{`{{contains labels "db"}}`, "false"},
		{`{{contains empty "x"}}`, "false"},
		{`{{contains title empty}}`, "false"},
		{`{{contains zero 0}}`, "false"},
		{`{{startsWith title "Bug"}}`, "true"},
		{`{{startsWith missing "Bug"}}`, "false"},
		{`{{endsWith title "2"}}`, "true"},
		{`{{endsWith title empty}}`, "false"},
		{`{{match title "^Bug\s+number"}}`, "true"},
		{`{{match title "^Task"}}`, "false"},
		{`{{match missing ".*"}}`, "false"},
		{`{{and}}`, "true"},
		{`{{or}}`, "false"},
		{`{{and kind count title}}`, "true"},
		{`{{and kind zero}}`, "false"},
		{`{{or empty zero missing}}`, "false"},
		{`{{or empty kind}}`, "true"},
		{`{{#if (and (eq kind "Bug") (contains title "number 2"))}}yes{{else}}no{{/if}}`, "yes"},
		{`{{#if (or (eq kind "Task") (eq kind "Epic"))}}yes{{else}}no{{/if}}`, "no"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if got := mustRender(t, env, tt.src, data); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestMatch_InvalidPattern(t *testing.T) {
	_, err := render(t, testEnv(t), nil, `{{match title "("}}`, map[string]interface{}{"title": "x"})
	if err == nil || !strings.Contains(err.Error(), "invalid pattern") {
		t.Fatalf("expected invalid pattern error, got %v", err)
	}
}

func TestSome(t *testing.T) {
	env := testEnv(t)
	src := `{{#some items "item > 2"}}found{{else}}none{{/some}}`

	tests := []struct {
		name     string
		items    interface{}
		expected string
	}{
		{"match", numbers(1, 3), "found"},
		{"no match", numbers(1, 2), "none"},
		{"scalar is wrapped", float64(5), "found"},
		{"falsy collection", nil, "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRender(t, env, src, map[string]interface{}{"items": tt.items})
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	env := testEnv(t)
	src := `{{#filter items "int(item.n) % 2 == 0"}}[{{n}}]{{else}}{{fallback}}{{/filter}}`
	item := func(n float64) map[string]interface{} { return map[string]interface{}{"n": n} }

	tests := []struct {
		name     string
		items    interface{}
		expected string
	}{
		{"retained in order", []interface{}{item(1), item(2), item(3), item(4)}, "[2][4]"},
		{"nothing retained", []interface{}{item(1), item(3)}, "empty"},
		{"empty collection", []interface{}{}, "empty"},
		{"falsy context", nil, "empty"},
		{"matching scalar", item(6), "[6]"},
		{"failing scalar", item(7), "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRender(t, env, src, map[string]interface{}{"items": tt.items, "fallback": "empty"})
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestFilter_PredicateReceivesIndexAndCollection(t *testing.T) {
	out := mustRender(t, testEnv(t), `{{#filter items "index == size(array) - 1"}}{{this}}{{/filter}}`,
		map[string]interface{}{"items": []interface{}{"a", "b", "c"}})
	if out != "c" {
		t.Errorf("expected last element, got %q", out)
	}
}

func TestFilter_CompileErrorIsFatal(t *testing.T) {
	_, err := render(t, testEnv(t), nil, `{{#filter items "item.n =="}}x{{/filter}}`,
		map[string]interface{}{})
	if err == nil {
		t.Fatal("expected compile error even for an absent collection")
	}
	var compileErr *predicate.CompileError
	if !errors.As(err, &compileErr) && !strings.Contains(err.Error(), "item.n ==") {
		t.Errorf("error should name the expression, got %v", err)
	}
}

func TestReduce(t *testing.T) {
	env := testEnv(t)
	src := `{{#reduce items "item > 1"}}{{len this}}:{{#each this}}{{this}};{{/each}}{{else}}none{{/reduce}}`

	tests := []struct {
		name     string
		items    interface{}
		expected string
	}{
		{"single invocation with retained set", numbers(1, 2, 3), "2:2;3;"},
		{"nothing retained", numbers(0, 1), "none"},
		{"scalar is wrapped", float64(4), "1:4;"},
		{"falsy context", nil, "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustRender(t, env, src, map[string]interface{}{"items": tt.items})
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDynamicCodeHelpers(t *testing.T) {
	env := testEnv(t)
	env.Scope = map[string]interface{}{
		"buildDetails": map[string]interface{}{"buildNumber": "20200101.1"},
	}
	data := map[string]interface{}{"html": "<b>bold</b>", "name": "notes"}

	tests := []struct {
		src      string
		expected string
	}{
		{`{{eval "buildDetails.buildNumber + '-' + this.name"}}`, "20200101.1-notes"},
		{`{{eval "1 + 2"}}`, "3"},
		{`{{safe html}}`, "<b>bold</b>"},
		{`{{html}}`, "&lt;b&gt;bold&lt;/b&gt;"},
		{`{{escape html}}`, "&lt;b&gt;bold&lt;/b&gt;"},
		{`{{{escape html}}}`, "&lt;b&gt;bold&lt;/b&gt;"},
		{`{{env "RELEASE_CHANNEL"}}`, "stable"},
		{`{{env "UNSET_VARIABLE"}}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if got := mustRender(t, env, tt.src, data); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestEval_ErrorNamesExpression(t *testing.T) {
	_, err := render(t, testEnv(t), nil, `{{eval "1 +"}}`, nil)
	if err == nil || !strings.Contains(err.Error(), `"1 +"`) {
		t.Fatalf("expected error naming the expression, got %v", err)
	}
	if strings.Contains(err.Error(), "reflect") {
		t.Errorf("expected the compile error, got %v", err)
	}
}

func TestEval_WithoutData(t *testing.T) {
	tests := []struct {
		src      string
		expected string
	}{
		{`{{eval "1 + 2"}}`, "3"},
		{`{{eval "this == null"}}`, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := render(t, testEnv(t), nil, tt.src, nil)
			if err != nil {
				t.Fatalf("render failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestTextHelpers(t *testing.T) {
	env := testEnv(t)
	data := map[string]interface{}{
		"name":  "  Release  ",
		"tags":  []interface{}{"a", "b", "c"},
		"blank": "",
	}

	tests := []struct {
		src      string
		expected string
	}{
		{`{{uppercase name}}`, "  RELEASE  "},
		{`{{lowercase name}}`, "  release  "},
		{`{{trim name}}`, "Release"},
		{`{{default blank "N/A"}}`, "N/A"},
		{`{{default missing "N/A"}}`, "N/A"},
		{`{{join tags ", "}}`, "a, b, c"},
		{`{{len tags}}`, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if got := mustRender(t, env, tt.src, data); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestStrictEqual(t *testing.T) {
	m := map[string]interface{}{}
	s := []interface{}{1}
	tests := []struct {
		a, b     interface{}
		expected bool
	}{
		{1, 1.0, true},
		{int64(2), uint8(2), true},
		{"1", 1, false},
		{true, true, true},
		{true, 1, false},
		{nil, nil, true},
		{nil, "", false},
		{m, m, true},
		{m, map[string]interface{}{}, false},
		{s, s, true},
		{s, []interface{}{1}, false},
		{math.NaN(), math.NaN(), false},
		{struct{ V interface{} }{[]int{1}}, struct{ V interface{} }{[]int{1}}, false},
	}

	for i, tt := range tests {
		if got := StrictEqual(tt.a, tt.b); got != tt.expected {
			t.Errorf("case %d: StrictEqual(%#v, %#v) = %v", i, tt.a, tt.b, got)
		}
	}
}
