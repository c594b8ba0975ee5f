package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyWrappersImportInfra ensures infra implementations are reached only
// through their wrapper package: blob drivers through internal/blob and
// document backends through internal/persistence.
func TestOnlyWrappersImportInfra(t *testing.T) {
	rules := []struct{ infra, wrapper string }{
		{"twido/internal/infra/blob", "twido/internal/blob"},
		{"twido/internal/infra/persistence", "twido/internal/persistence"},
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "twido/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		for _, rule := range rules {
			if hasPrefix(pkg.PkgPath, rule.wrapper) || strings.HasPrefix(pkg.PkgPath, "twido/internal/infra/") {
				continue
			}
			for importPath := range pkg.Imports {
				if hasPrefix(importPath, rule.infra) {
					seen[pkg.PkgPath+": "+importPath] = struct{}{}
				}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import of infra package: %s", v)
		}
		t.Fatalf("found %d forbidden infra imports", len(violations))
	}
}

func hasPrefix(importPath, prefix string) bool {
	return importPath == prefix || strings.HasPrefix(importPath, prefix+"/")
}
