package biota

import (
	"strings"
	"testing"

	"cladecore/testutil"
)

// TestContractPackageStaysDependencyFree pins the property that makes the
// collaborator contracts portable: pkg/biota imports nothing beyond the
// standard library, so an out-of-tree provider or species implementation
// needs no part of the engine to compile.
func TestContractPackageStaysDependencyFree(t *testing.T) {
	// Module paths carry a dotted host segment; stdlib paths never do.
	testutil.AssertNoDirectImports(t, ".", func(ip string) bool {
		host, _, _ := strings.Cut(ip, "/")
		return strings.Contains(host, ".") || strings.HasPrefix(ip, "cladecore/")
	}, "contract package must not import module or third-party code")

	testutil.AssertNoTransitiveDependency(t, ".", func(p string) bool {
		return p != "cladecore/pkg/biota" && strings.HasPrefix(p, "cladecore/")
	}, "contract package must not drag in the rest of the module")
}
