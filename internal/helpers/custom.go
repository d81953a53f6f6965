package helpers

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/aescanero/dago-node-relnotes/internal/eval/script"
	"gopkg.in/yaml.v3"
)

var (
	helperName    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	returnKeyword = regexp.MustCompile(`\breturn\b`)
)

// LoadError reports a custom helper that could not be loaded. Helper is
// empty when the source could not be parsed at all.
type LoadError struct {
	Helper string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Helper == "" {
		return fmt.Sprintf("load custom helpers: %v", e.Err)
	}
	return fmt.Sprintf("load custom helper %q: %v", e.Helper, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Definition is a custom helper given as a structured record. Parameters
// are interface{} and the result is interface{}; a body without a return
// statement is treated as the returned expression.
type Definition struct {
	Name    string   `json:"name" yaml:"name"`
	Params  []string `json:"params,omitempty" yaml:"params,omitempty"`
	Body    string   `json:"body" yaml:"body"`
	Imports []string `json:"imports,omitempty" yaml:"imports,omitempty"`
}

// LoadCustom interprets Go source holding top-level helper functions and
// returns them by declared name. Empty source yields an empty map. A later
// function with the same name replaces an earlier one.
func LoadCustom(source string) (map[string]interface{}, error) {
	out := make(map[string]interface{})

	fns, err := script.Functions(source)
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	for _, fn := range fns {
		if fn.Name == "init" || fn.Name == "main" || fn.Name == "_" {
			continue
		}
		helper, err := load(fn.Unit, fn.Name)
		if err != nil {
			return nil, err
		}
		out[fn.Name] = helper
	}
	return out, nil
}

// LoadDefinitions compiles structured helper records
func LoadDefinitions(defs []Definition) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(defs))
	for _, def := range defs {
		if !helperName.MatchString(def.Name) {
			return nil, &LoadError{Helper: def.Name, Err: fmt.Errorf("invalid helper name")}
		}

		params := make([]string, len(def.Params))
		for i, p := range def.Params {
			if !helperName.MatchString(p) {
				return nil, &LoadError{Helper: def.Name, Err: fmt.Errorf("invalid parameter name %q", p)}
			}
			params[i] = p + " interface{}"
		}

		body := strings.TrimSpace(def.Body)
		if !returnKeyword.MatchString(body) {
			body = "return " + body
		}
		decl := fmt.Sprintf("func %s(%s) interface{} {\n%s\n}", def.Name, strings.Join(params, ", "), body)

		imports := append([]string{}, def.Imports...)
		for _, detected := range script.DetectImports(decl) {
			if !containsImport(imports, detected) {
				imports = append(imports, detected)
			}
		}

		helper, err := load(script.Unit{Imports: imports, Decls: []string{decl}}, def.Name)
		if err != nil {
			return nil, err
		}
		out[def.Name] = helper
	}
	return out, nil
}

// ParseDefinitions decodes a YAML (or JSON) list of helper definitions
func ParseDefinitions(data []byte) ([]Definition, error) {
	var defs []Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse helper definitions: %w", err)
	}
	return defs, nil
}

func load(unit script.Unit, name string) (interface{}, error) {
	fn, err := script.Load(unit, name)
	if err != nil {
		return nil, &LoadError{Helper: name, Err: err}
	}
	if fn.Kind() != reflect.Func {
		return nil, &LoadError{Helper: name, Err: fmt.Errorf("not a function")}
	}
	if n := fn.Type().NumOut(); n != 1 {
		return nil, &LoadError{Helper: name, Err: fmt.Errorf("helpers must return exactly one value, got %d", n)}
	}
	return fn.Interface(), nil
}

func containsImport(imports []string, path string) bool {
	for _, imp := range imports {
		if strings.Trim(strings.TrimSpace(imp), `"`) == path {
			return true
		}
	}
	return false
}
