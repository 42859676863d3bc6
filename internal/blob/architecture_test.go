package blob

import (
	"slices"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// layerRule restricts who may import the packages below infra.
type layerRule struct {
	infra   string
	allowed []string
	// production limits the rule to non-test packages.
	production bool
}

var layerRules = []layerRule{
	{infra: "ontologycore/internal/infra/blob", allowed: []string{"ontologycore/internal/blob"}},
	{
		infra:      "ontologycore/internal/infra/persistence",
		allowed:    []string{"ontologycore/internal/core"},
		production: true,
	},
}

// TestInfraLayering keeps code behind blob.Store and core.Catalog rather
// than the infra implementations.
func TestInfraLayering(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "ontologycore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	var violations []string
	for _, rule := range layerRules {
		for _, pkg := range pkgs {
			if under(pkg.PkgPath, rule.infra) || slices.ContainsFunc(rule.allowed, func(p string) bool { return under(pkg.PkgPath, p) }) {
				continue
			}
			if rule.production && isTestVariant(pkg) {
				continue
			}
			for importPath := range pkg.Imports {
				if under(importPath, rule.infra) {
					violations = append(violations, pkg.PkgPath+": "+importPath)
				}
			}
		}
	}
	slices.Sort(violations)
	violations = slices.Compact(violations)
	for _, v := range violations {
		t.Errorf("forbidden infra import: %s", v)
	}
}

func under(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isTestVariant(pkg *packages.Package) bool {
	return strings.Contains(pkg.ID, " [") || strings.HasSuffix(pkg.PkgPath, "_test") || strings.HasSuffix(pkg.PkgPath, ".test")
}
