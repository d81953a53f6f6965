package helpers

import (
	"errors"
	"strings"
	"testing"
)

func TestLoadCustom_TwoFunctions(t *testing.T) {
	custom, err := LoadCustom(`
func shout(s string) string {
	return strings.ToUpper(s) + "!"
}

func workItemLink(id float64) string {
	return fmt.Sprintf("#%d", int(id))
}
`)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(custom) != 2 {
		t.Fatalf("expected 2 helpers, got %d", len(custom))
	}

	out := mustRenderCustom(t, custom, `{{shout name}} {{workItemLink id}}`,
		map[string]interface{}{"name": "release", "id": float64(34)})
	if out != "RELEASE! #34" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestLoadCustom_Empty(t *testing.T) {
	for _, src := range []string{"", "  \n  "} {
		custom, err := LoadCustom(src)
		if err != nil {
			t.Fatalf("load %q: %v", src, err)
		}
		if len(custom) != 0 {
			t.Errorf("expected no helpers, got %d", len(custom))
		}
	}
}

func TestLoadCustom_LastWriteWins(t *testing.T) {
	custom, err := LoadCustom(`
func version() string { return "first" }

func version() string { return "second" }
`)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(custom) != 1 {
		t.Fatalf("expected a single helper, got %d", len(custom))
	}
	if out := mustRenderCustom(t, custom, "{{version}}", nil); out != "second" {
		t.Errorf("expected later definition, got %q", out)
	}
}

func TestLoadCustom_ShadowsBuiltin(t *testing.T) {
	custom, err := LoadCustom(`func eq(a, b interface{}) string { return "shadowed" }`)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out := mustRenderCustom(t, custom, `{{eq 1 1}}`, nil); out != "shadowed" {
		t.Errorf("custom helper should shadow eq, got %q", out)
	}
}

func TestLoadCustom_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		helper string
	}{
		{"syntax error", "func broken( {", ""},
		{"undefined symbol", "func bad() string { return undefinedThing }", "bad"},
		{"no result", "func nothing() {}", "nothing"},
		{"two results", "func pair() (string, error) { return \"\", nil }", "pair"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCustom(tt.source)
			if err == nil {
				t.Fatal("expected error")
			}
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("expected *LoadError, got %T", err)
			}
			if loadErr.Helper != tt.helper {
				t.Errorf("expected helper %q, got %q", tt.helper, loadErr.Helper)
			}
			if tt.helper != "" && !strings.Contains(err.Error(), tt.helper) {
				t.Errorf("error should name the helper: %v", err)
			}
		})
	}
}

func TestLoadDefinitions(t *testing.T) {
	defs, err := ParseDefinitions([]byte(`
- name: greet
  params: [name]
  body: '"Hello " + fmt.Sprint(name)'
- name: pick
  params: [a, b]
  body: |
    if a == nil {
      return b
    }
    return a
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(defs) != 2 || defs[0].Name != "greet" || len(defs[1].Params) != 2 {
		t.Fatalf("unexpected definitions %+v", defs)
	}

	custom, err := LoadDefinitions(defs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out := mustRenderCustom(t, custom, `{{greet name}} {{pick missing "fallback"}}`,
		map[string]interface{}{"name": "Ada"})
	if out != "Hello Ada fallback" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestLoadDefinitions_Invalid(t *testing.T) {
	tests := []Definition{
		{Name: "", Body: "1"},
		{Name: "bad name", Body: "1"},
		{Name: "ok", Params: []string{"a-b"}, Body: "1"},
		{Name: "broken", Body: "1 +"},
	}
	for _, def := range tests {
		if _, err := LoadDefinitions([]Definition{def}); err == nil {
			t.Errorf("expected error for %+v", def)
		}
	}
}

func mustRenderCustom(t *testing.T, custom map[string]interface{}, src string, data interface{}) string {
	t.Helper()
	out, err := render(t, testEnv(t), custom, src, data)
	if err != nil {
		t.Fatalf("render %q: %v", src, err)
	}
	return out
}
