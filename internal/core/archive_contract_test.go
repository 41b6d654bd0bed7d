package core

import (
	"go/types"
	"path/filepath"
	"runtime"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestArchiveImplementationsHardening ensures only sanctioned driver packages
// provide concrete implementations of the core.Archive interface. This guards
// architectural drift from introducing additional backends outside the vetted
// locations (memory + sqlite + postgres) without an explicit test update.
func TestArchiveImplementationsHardening(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes, Tests: true}
	pkgs, err := packages.Load(cfg, "cladecore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	// Locate the Archive interface type from the core package.
	var archive *types.Interface
	for _, p := range pkgs {
		if p.PkgPath == "cladecore/internal/core" {
			obj := p.Types.Scope().Lookup("Archive")
			if obj == nil {
				t.Fatalf("core.Archive not found")
			}
			iface, ok := obj.Type().Underlying().(*types.Interface)
			if !ok {
				t.Fatalf("core.Archive is not an interface")
			}
			archive = iface
		}
	}
	if archive == nil {
		t.Fatalf("failed to resolve Archive interface")
	}
	allowed := map[string]struct{}{
		"cladecore/internal/infra/archive/memory":   {},
		"cladecore/internal/infra/archive/sqlite":   {},
		"cladecore/internal/infra/archive/postgres": {},
	}
	var unexpected []string
	for _, p := range pkgs {
		if p.Types == nil || p.Types.Scope() == nil {
			continue
		}
		for _, name := range p.Types.Scope().Names() {
			obj := p.Types.Scope().Lookup(name)
			// Only consider concrete types (structs) that could implement the interface.
			named, ok := obj.Type().(*types.Named)
			if !ok {
				continue
			}
			st, ok := named.Underlying().(*types.Struct)
			if !ok || st.NumFields() == 0 && named.NumMethods() == 0 { // still allow empty; method set matters
				continue
			}
			if types.Implements(types.NewPointer(named), archive) {
				if _, ok := allowed[p.PkgPath]; !ok {
					unexpected = append(unexpected, p.PkgPath+"."+name)
				}
			}
		}
	}
	if len(unexpected) > 0 {
		_, file, line, _ := runtime.Caller(0)
		t.Fatalf("unexpected Archive implementations (update allowed list intentionally if adding a new backend):\nfile=%s:%d\n%s", filepath.Base(file), line, unexpected)
	}
}
