// Package render produces the generated artifacts for plugins.
//
// # Overview
//
// Three text/template templates are embedded in the binary:
//
//	plugin.md.tmpl   -> <doc>/<name>.md                 per plugin documentation
//	update.txt.tmpl  -> <updater>/update-<name>.txt     SourceMod Updater manifest
//	readme.md.tmpl   -> README.md                       index of all plugins
//
// Any of them can be replaced by a file of the same name in the configured
// templates directory.
//
// # Template Functions
//
//	default  "fallback" .Value   fallback when the value is empty
//	cell     .Value              escapes a value for a Markdown table cell
//	kv       .Value              escapes a value for a KeyValues string
//
// # Writing
//
// The Emitter writes every artifact through a temporary file in the target
// directory followed by a rename, so a crash never leaves a partially
// written file behind.
package render
