// Package cli provides the pawndoc command-line interface.
//
// # Overview
//
// The CLI loads pawndoc.yaml (after an optional .env file), sets up logging
// and metrics and hands off to the registry pipeline.
//
// # Commands
//
// build: Compile stale plugins and regenerate docs, manifests and the README
//
//	pawndoc build
//	pawndoc build myplugin otherplugin --force
//	pawndoc build --no-compile
//
// status: Show staleness of every configured plugin
//
//	pawndoc status --all -o json
//
// scan: Print extracted cvars, commands and dependencies
//
//	pawndoc scan myplugin -o yaml
//	pawndoc scan scripting/experimental.sp
//
// watch: Rebuild on source changes, optionally on a schedule too
//
//	pawndoc watch --debounce 5s --schedule "@every 6h"
//
// version: Print the version
//
// # Configuration
//
// Every settings key can be overridden from the environment:
//
//	export PAWNDOC_LOG_LEVEL=debug
//	export PAWNDOC_PUBLISH_ENABLED=true
//
// # Related Packages
//
//   - pkg/registry: the per plugin pipeline
//   - pkg/config: settings loading and interpolation
package cli
