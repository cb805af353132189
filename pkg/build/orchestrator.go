package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/platinummonkey/pawndoc/pkg/config"
	"github.com/sirupsen/logrus"
)

// maxLoggedOutput caps how much compiler output is attached to a log entry
const maxLoggedOutput = 4096

// Options configures an Orchestrator
type Options struct {
	// Compiler defaults to the backend selected in the configuration
	Compiler Compiler

	// Force compiles every plugin regardless of staleness
	Force bool

	// NoCompile never invokes the compiler
	NoCompile bool

	Logger *logrus.Logger
}

// Orchestrator decides whether plugin binaries are current and rebuilds
// them when they are not. Plugins are built one at a time.
type Orchestrator struct {
	cfg       *config.Config
	compiler  Compiler
	timeout   time.Duration
	force     bool
	noCompile bool
	logger    *logrus.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(cfg *config.Config, opts Options) (*Orchestrator, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	compiler := opts.Compiler
	if compiler == nil && !opts.NoCompile {
		var err error
		compiler, err = NewCompiler(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	return &Orchestrator{
		cfg:       cfg,
		compiler:  compiler,
		timeout:   cfg.Compiler.Timeout,
		force:     opts.Force,
		noCompile: opts.NoCompile,
		logger:    logger,
	}, nil
}

// NewCompiler returns the compiler backend named in the configuration
func NewCompiler(cfg *config.Config, logger *logrus.Logger) (Compiler, error) {
	switch cfg.Compiler.Backend {
	case config.BackendProcess:
		return NewProcessCompiler(cfg.Compiler.Path, cfg.Paths.Scripting), nil
	case config.BackendDocker:
		return NewDockerCompiler(DockerOptions{
			Image:    cfg.Compiler.Docker.Image,
			Workdir:  cfg.Compiler.Docker.Workdir,
			HostRoot: cfg.Paths.Root,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unknown compiler backend: %s", cfg.Compiler.Backend)
	}
}

// Resolve locates a plugin's artifacts and decides staleness
func (o *Orchestrator) Resolve(name string) (*Artifacts, error) {
	art, err := Resolve(o.cfg, name)
	if err != nil {
		return nil, err
	}
	if o.force {
		art.NeedsCompile = true
	}
	return art, nil
}

// Build compiles the plugin when art.NeedsCompile is set. It returns
// ErrBinaryMissingAfterCompile when a compile was attempted and no binary
// exists afterwards; the returned Result is valid in that case too.
func (o *Orchestrator) Build(ctx context.Context, art *Artifacts) (*Result, error) {
	log := o.logger.WithField("plugin", art.Name)
	res := &Result{}

	if !art.NeedsCompile || o.noCompile {
		if art.BinaryExists {
			res.Binary = art.Binary
		} else {
			log.Warn("Plugin binary missing and compilation disabled")
		}
		return res, nil
	}

	if err := os.MkdirAll(filepath.Dir(art.Binary), 0755); err != nil {
		return res, fmt.Errorf("failed to create plugin directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(art.ErrorLog), 0755); err != nil {
		return res, fmt.Errorf("failed to create compiler output directory: %w", err)
	}

	log.WithField("output", art.Binary).Info("Compiling plugin")

	compileCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	cr, err := o.compiler.Compile(compileCtx, &CompileRequest{
		Name:     art.Name,
		Source:   art.Source,
		Output:   art.Binary,
		ErrorLog: art.ErrorLog,
	})
	res.Compiled = true
	res.Duration = time.Since(start)

	if cr != nil {
		res.CompilerOutput = cr.Output
	}
	if err != nil {
		res.CompileErr = err
		log.WithError(err).Warn("Compiler invocation failed")
	}

	if !fileExists(art.Binary) {
		if res.CompilerOutput == "" {
			res.CompilerOutput = readErrorLog(art.ErrorLog)
		}
		log.WithField("compiler_output", truncate(res.CompilerOutput, maxLoggedOutput)).
			Warn("Plugin binary missing after compile")

		if res.CompileErr != nil {
			return res, fmt.Errorf("%w: %s: %w", ErrBinaryMissingAfterCompile, art.Binary, res.CompileErr)
		}
		return res, fmt.Errorf("%w: %s", ErrBinaryMissingAfterCompile, art.Binary)
	}

	res.Binary = art.Binary
	log.WithField("duration", res.Duration).Info("Compiled plugin")
	return res, nil
}

// Close releases the compiler
func (o *Orchestrator) Close() error {
	if o.compiler == nil {
		return nil
	}
	return o.compiler.Close()
}

func readErrorLog(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
