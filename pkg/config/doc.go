// Package config loads and resolves the pawndoc settings document.
//
// # Overview
//
// This package reads a YAML settings file (default pawndoc.yaml), applies
// PAWNDOC_* environment overrides, resolves %(key)s references in a single
// pass, and returns an immutable *Config that every other package consumes.
//
// # Configuration Structure
//
// Path templates:
//
//	paths:
//	  root: .
//	  scripting: "%(root)s/scripting"
//	  include: "%(scripting)s/include"
//	  plugins: "%(root)s/plugins"
//	  disabled: "%(plugins)s/disabled"
//
// Build list and exclusion sets:
//
//	plugins:
//	  build: [ins_bot_spawns, ins_respawn]
//	libraries:
//	  stock: [sourcemod, sdktools]
//	  thirdparty: [updater]
//
// Compiler settings:
//
//	compiler:
//	  backend: process   # process, docker
//	  path: "%(scripting)s/spcomp"
//	  timeout: 2m
//
// # Interpolation
//
// References are resolved once at load time. settings resolve against
// themselves, paths against paths and settings, and compiler.path against
// both. Unknown references and cycles fail the load with ErrConfigLoad.
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.Load("tools/pawndoc.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, name := range cfg.Plugins.Build {
//		fmt.Println(cfg.SourcePath(name))
//	}
//
// # Related Packages
//
//   - pkg/build: Uses the resolved paths and compiler settings
//   - pkg/scanner: Uses exclusion sets and the include layout
package config
