package build

import (
	"context"
	"time"
)

// Compiler invokes the external plugin compiler
type Compiler interface {
	// Compile runs one compilation. The returned error reports invocation
	// problems only; success is decided by the output file existing.
	Compile(ctx context.Context, req *CompileRequest) (*CompileResult, error)

	// Close releases resources
	Close() error
}

// CompileRequest describes one compiler invocation
type CompileRequest struct {
	Name     string
	Source   string
	Output   string
	ErrorLog string
}

// Args returns the spcomp argument list for the request
func (r *CompileRequest) Args() []string {
	return []string{r.Source, "-o" + r.Output, "-e" + r.ErrorLog}
}

// CompileResult holds what the compiler produced besides the binary
type CompileResult struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Artifacts are the resolved source and binary locations of a plugin
type Artifacts struct {
	Name string

	Source        string
	SourceModTime time.Time

	// Binary is the primary location, the disabled fallback, or the
	// disabled location when no binary exists yet
	Binary        string
	BinaryExists  bool
	BinaryModTime time.Time
	Disabled      bool

	// ErrorLog is where the compiler writes its diagnostics
	ErrorLog string

	NeedsCompile bool
}

// Result reports what Build did for a plugin
type Result struct {
	// Compiled is true when a compile was attempted
	Compiled bool

	// Binary is the valid binary path after the build, empty if none exists
	Binary string

	// CompileErr is the invocation error, if any
	CompileErr error

	// CompilerOutput is the compiler's combined output or error log content
	CompilerOutput string

	Duration time.Duration
}
