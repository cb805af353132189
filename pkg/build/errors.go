package build

import "errors"

var (
	// ErrSourceMissing is returned when a plugin has no source file. The
	// plugin is skipped and excluded from the index.
	ErrSourceMissing = errors.New("plugin source missing")

	// ErrBinaryMissingAfterCompile is returned when a compile was needed but
	// no binary exists afterwards
	ErrBinaryMissingAfterCompile = errors.New("plugin binary missing after compile")

	// ErrCompileInvocation is returned when the compiler could not be started,
	// exited non-zero or timed out
	ErrCompileInvocation = errors.New("compiler invocation failed")

	// ErrDockerNotAvailable is returned when the docker daemon cannot be reached
	ErrDockerNotAvailable = errors.New("docker is not available")
)
