// Package validation hosts repository lint checks that run outside the
// compiler. The any-usage check keeps interface{} escape hatches deliberate:
// every any in a scanned root is either a declared JSON boundary or an
// allowlisted exception with an owner and a rationale.
package validation

// Error locates one validation finding in the tree.
type Error struct {
	File    string
	Line    int
	Message string
	Code    string
}
