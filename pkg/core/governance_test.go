//go:build governance

package core_test

import (
	"go/types"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/leapstack-labs/leapmix"

func loadModule(t *testing.T, mode packages.LoadMode) map[string]*packages.Package {
	t.Helper()
	pkgs, err := packages.Load(&packages.Config{Mode: mode}, modulePath+"/...")
	require.NoError(t, err)

	byPath := make(map[string]*packages.Package, len(pkgs))
	for _, p := range pkgs {
		byPath[strings.TrimPrefix(p.PkgPath, modulePath+"/")] = p
	}
	return byPath
}

// A type belongs in pkg/core only when more than one package uses it. Error
// types and the history store contract are exempt: they are produced in one
// place and matched or implemented elsewhere.
func TestGovernance_CoreTypesAreShared(t *testing.T) {
	pkgs := loadModule(t, packages.NeedName|packages.NeedTypes|packages.NeedTypesInfo|packages.NeedDeps|packages.NeedImports)
	core, ok := pkgs["pkg/core"]
	require.True(t, ok, "pkg/core not loaded")

	users := make(map[types.Object][]string)
	scope := core.Types.Scope()
	for _, name := range scope.Names() {
		if obj, ok := scope.Lookup(name).(*types.TypeName); ok && obj.Exported() {
			users[obj] = nil
		}
	}

	for path, p := range pkgs {
		if path == "pkg/core" || p.TypesInfo == nil {
			continue
		}
		for _, obj := range p.TypesInfo.Uses {
			if list, ok := users[obj]; ok && !slices.Contains(list, path) {
				users[obj] = append(list, path)
			}
		}
	}

	for obj, list := range users {
		name := obj.Name()
		if strings.HasSuffix(name, "Error") || name == "Store" || name == "RunStatus" {
			continue
		}
		switch len(list) {
		case 0:
			t.Logf("core.%s is unused", name)
		case 1:
			t.Errorf("core.%s is only used by %s; move it there", name, list[0])
		}
	}
}

// Operations are plugged into the engine, never the other way round, and
// nothing below the CLI may depend on it.
func TestGovernance_Layering(t *testing.T) {
	pkgs := loadModule(t, packages.NeedName|packages.NeedImports)

	forbidden := map[string][]string{
		"internal/operation":  {"internal/engine", "internal/operations", "internal/cli"},
		"internal/operations": {"internal/engine", "internal/cli"},
		"internal/source":     {"internal/engine", "internal/recipe", "internal/cli"},
		"internal/recipe":     {"internal/engine", "internal/cli"},
		"internal/interleave": {"internal/engine", "internal/cli"},
		"internal/engine":     {"internal/cli"},
		"internal/state":      {"internal/engine", "internal/cli"},
	}
	for path, banned := range forbidden {
		p, ok := pkgs[path]
		if !ok {
			t.Errorf("package %s not found", path)
			continue
		}
		for imp := range p.Imports {
			rel := strings.TrimPrefix(imp, modulePath+"/")
			for _, b := range banned {
				if rel == b || strings.HasPrefix(rel, b+"/") {
					t.Errorf("%s must not import %s", path, rel)
				}
			}
		}
	}
}
