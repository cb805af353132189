// Package build decides whether compiled plugin binaries are current and
// rebuilds them with the SourcePawn compiler.
//
// # Overview
//
// A binary is looked up in the plugins directory, then in plugins/disabled.
// It is stale when it exists in neither place or its source was modified
// strictly after it. New builds are written to the disabled directory.
//
// A compile is judged by its output only: it succeeded when the binary exists
// afterwards, whatever the compiler exit status was.
//
// # Usage Example
//
//	orch, err := build.NewOrchestrator(cfg, build.Options{Logger: logger})
//	if err != nil {
//		return err
//	}
//	defer orch.Close()
//
//	art, err := orch.Resolve("myplugin")
//	if errors.Is(err, build.ErrSourceMissing) {
//		// skip the plugin
//	}
//	res, err := orch.Build(ctx, art)
//
// # Compiler Backends
//
//   - process: runs spcomp from compiler.path
//   - docker: runs the compiler inside compiler.docker.image with the plugin
//     root bind mounted at compiler.docker.workdir
//
// Both are bounded by compiler.timeout.
package build
