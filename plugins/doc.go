// Package plugins hosts collaborator implementation subpackages. It
// intentionally contains no runtime code itself; this file exists so the
// architectural guard test living alongside the subpackages has a package
// to belong to.
//
// Plugins implement the contracts in pkg/biota and stay decoupled from the
// engine's internals: the guard test rejects any cladecore/internal import
// from a plugin package. A plugin that compiles here would compile equally
// well out of tree against pkg/biota alone.
package plugins
