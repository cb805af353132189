package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait blocks on inherited pipes after a kill
const waitDelay = 2 * time.Second

// ProcessCompiler runs spcomp as a local process
type ProcessCompiler struct {
	path    string
	workDir string
}

// NewProcessCompiler creates a compiler running the executable at path from workDir
func NewProcessCompiler(path, workDir string) *ProcessCompiler {
	return &ProcessCompiler{
		path:    path,
		workDir: workDir,
	}
}

// Compile implements Compiler. The process is killed when ctx expires.
func (c *ProcessCompiler) Compile(ctx context.Context, req *CompileRequest) (*CompileResult, error) {
	result := &CompileResult{}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	cmd := exec.CommandContext(ctx, c.path, req.Args()...)
	cmd.Dir = c.workDir
	cmd.WaitDelay = waitDelay

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	result.Output = out.String()

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("%w: %s: %w", ErrCompileInvocation, req.Name, ctxErr)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, fmt.Errorf("%w: %s: exit code %d", ErrCompileInvocation, req.Name, result.ExitCode)
		}
		result.ExitCode = -1
		return result, fmt.Errorf("%w: %s: %w", ErrCompileInvocation, req.Name, err)
	}

	return result, nil
}

// Close implements Compiler
func (c *ProcessCompiler) Close() error {
	return nil
}
