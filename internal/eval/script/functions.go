package script

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var packageClause = regexp.MustCompile(`(?m)^\s*package\s+\w+\s*;?\s*$`)

// Function is one top-level function extracted from a source blob, ready to
// be interpreted on its own.
type Function struct {
	Name string
	Unit Unit
}

// Functions splits Go source into independent units, one per top-level
// function, in source order. Shared type, const and var declarations are
// copied into every unit; each unit only imports what it references.
// Methods are skipped. A missing package clause is allowed.
func Functions(source string) ([]Function, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}

	src := source
	if !packageClause.MatchString(src) {
		src = "package " + defaultPackage + "\n" + src
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "helpers.go", src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("script: parse source: %w", err)
	}

	text := func(n ast.Node) string {
		start := fset.Position(n.Pos()).Offset
		end := fset.Position(n.End()).Offset
		return src[start:end]
	}

	var shared []ast.Decl
	var funcs []*ast.FuncDecl
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok == token.IMPORT {
				continue
			}
			shared = append(shared, d)
		case *ast.FuncDecl:
			if d.Recv != nil {
				continue
			}
			funcs = append(funcs, d)
		}
	}

	sharedText := make([]string, 0, len(shared))
	for _, d := range shared {
		sharedText = append(sharedText, text(d))
	}

	result := make([]Function, 0, len(funcs))
	for _, fn := range funcs {
		used := referencedPackages(append(append([]ast.Decl{}, shared...), fn)...)
		var unitImports []string
		imported := make(map[string]bool)
		for _, imp := range file.Imports {
			name := importName(imp)
			imported[name] = true
			if used[name] || name == "_" || name == "." {
				unitImports = append(unitImports, text(imp))
			}
		}
		for _, name := range sortedKeys(used) {
			if p, ok := knownPackages[name]; ok && !imported[name] {
				unitImports = append(unitImports, p)
			}
		}

		decls := append(append([]string{}, sharedText...), text(fn))
		result = append(result, Function{
			Name: fn.Name.Name,
			Unit: Unit{Imports: unitImports, Decls: decls},
		})
	}
	return result, nil
}

func importName(imp *ast.ImportSpec) string {
	if imp.Name != nil {
		return imp.Name.Name
	}
	p, err := strconv.Unquote(imp.Path.Value)
	if err != nil {
		p = strings.Trim(imp.Path.Value, `"`)
	}
	return path.Base(p)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
