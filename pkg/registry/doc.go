// Package registry drives the documentation pipeline for the configured
// plugins.
//
// Each plugin is processed in configured order through a small state
// machine:
//
//	Unscanned -> Scanned -> UpToDate | Stale
//	Stale -> CompileAttempted -> Compiled | CompileFailed
//	CompileFailed -> BinaryMissingAfterCompile
//	... -> Introspected -> Emitted
//
// A plugin whose source cannot be read ends in SourceMissing and is left out
// of the index. Any other failure is logged and the plugin is still
// documented, with an empty header when no binary is available. Every step
// is an interface so tests can substitute fakes.
package registry
