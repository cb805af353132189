package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/platinummonkey/pawndoc/pkg/build"
	"github.com/platinummonkey/pawndoc/pkg/config"
	"github.com/platinummonkey/pawndoc/pkg/observability"
	"github.com/platinummonkey/pawndoc/pkg/publish"
	"github.com/platinummonkey/pawndoc/pkg/render"
	"github.com/platinummonkey/pawndoc/pkg/scanner"
	"github.com/platinummonkey/pawndoc/pkg/smx"
	"github.com/sirupsen/logrus"
)

// ErrUnknownPlugin is returned when a requested plugin is not in the build list
var ErrUnknownPlugin = errors.New("plugin not in build list")

// Options injects the pipeline steps. Nil steps get their default
// implementation; a nil Publisher disables publishing.
type Options struct {
	Scanner      SourceScanner
	Builder      Builder
	Introspector Introspector
	Emitter      Emitter
	Publisher    Publisher

	// Only restricts a run to these names. The README is not rewritten for
	// a restricted run.
	Only []string

	Logger  *logrus.Logger
	Metrics *observability.Metrics
}

// Registry runs the pipeline for every configured plugin, one at a time
type Registry struct {
	cfg          *config.Config
	scanner      SourceScanner
	builder      Builder
	introspector Introspector
	emitter      Emitter
	publisher    Publisher
	only         []string
	logger       *logrus.Logger
	metrics      *observability.Metrics
}

// New creates a registry
func New(cfg *config.Config, opts Options) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	r := &Registry{
		cfg:          cfg,
		scanner:      opts.Scanner,
		builder:      opts.Builder,
		introspector: opts.Introspector,
		emitter:      opts.Emitter,
		publisher:    opts.Publisher,
		only:         opts.Only,
		logger:       logger,
		metrics:      opts.Metrics,
	}

	if r.scanner == nil {
		scanOpts := scanner.OptionsFromConfig(cfg)
		scanOpts.Logger = logger
		r.scanner = scanner.New(scanOpts)
	}
	if r.builder == nil {
		orch, err := build.NewOrchestrator(cfg, build.Options{Logger: logger})
		if err != nil {
			return nil, err
		}
		r.builder = orch
	}
	if r.introspector == nil {
		r.introspector = IntrospectorFunc(smx.ReadMyInfo)
	}
	if r.emitter == nil {
		emitter, err := render.NewEmitter(cfg, logger)
		if err != nil {
			return nil, err
		}
		r.emitter = emitter
	}
	if r.publisher == nil && cfg.Publish.Enabled {
		publisher, err := publish.NewS3Publisher(context.Background(), cfg.Publish.S3, logger)
		if err != nil {
			return nil, err
		}
		r.publisher = publisher
	}
	if r.metrics == nil {
		r.metrics = observability.NewMetrics(nil)
	}

	return r, nil
}

// Names returns the plugin names a run processes, in configured order
func (r *Registry) Names() ([]string, error) {
	if len(r.only) == 0 {
		return r.cfg.Plugins.Build, nil
	}

	wanted := make(map[string]bool, len(r.only))
	for _, name := range r.only {
		wanted[name] = true
	}

	var names []string
	for _, name := range r.cfg.Plugins.Build {
		if wanted[name] {
			names = append(names, name)
			delete(wanted, name)
		}
	}
	for _, name := range r.only {
		if wanted[name] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
		}
	}
	return names, nil
}

// Run processes every plugin and renders the index. Per plugin failures are
// logged and recorded on the plugin; Run only fails when ctx is cancelled,
// a requested name is unknown, or the index cannot be written.
func (r *Registry) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	names, err := r.Names()
	if err != nil {
		return nil, err
	}

	runID := observability.GetRunID(ctx)
	if runID == "" {
		runID = observability.NewRunID()
		ctx = observability.WithRunID(ctx, runID)
	}
	log := observability.FromContext(ctx, r.logger)

	report := &Report{
		RunID:   runID,
		Plugins: make([]*Plugin, 0, len(names)),
	}

	log.WithField("plugins", len(names)).Info("Starting run")

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Plugins = append(report.Plugins, r.process(ctx, log, name))
	}

	report.Index = buildIndex(report.Plugins)

	if len(r.only) == 0 {
		docs := make([]*render.Document, 0, len(report.Index))
		for _, p := range report.Index {
			docs = append(docs, r.document(p))
		}
		readme, err := r.emitter.EmitIndex(docs)
		if err != nil {
			return report, fmt.Errorf("failed to write index: %w", err)
		}
		report.Readme = readme
	}

	report.Duration = time.Since(start)

	cvars, commands := 0, 0
	for _, p := range report.Index {
		if p.Metadata != nil {
			cvars += len(p.Metadata.Cvars)
			commands += len(p.Metadata.Commands)
		}
	}
	r.metrics.RecordRun(report.Duration, len(report.Index), cvars, commands)

	log.WithFields(logrus.Fields{
		"indexed":  len(report.Index),
		"failed":   len(report.Failed()),
		"duration": report.Duration,
	}).Info("Run complete")

	return report, nil
}

// buildIndex returns the plugins that belong in the index sorted by name
func buildIndex(plugins []*Plugin) []*Plugin {
	index := make([]*Plugin, 0, len(plugins))
	for _, p := range plugins {
		if p.Indexed() {
			index = append(index, p)
		}
	}
	sort.SliceStable(index, func(i, j int) bool { return index[i].Name < index[j].Name })
	return index
}

// process runs resolve, scan, build, introspect, emit and publish for one
// plugin. It never panics.
// readHeader reads the myinfo header of binary. A panicking reader is
// reported as an error so the plugin is still emitted with an empty header.
func (r *Registry) readHeader(binary string) (info smx.MyInfo, err error) {
	defer func() {
		if perr := observability.MustRecover(recover()); perr != nil {
			err = perr
		}
	}()
	return r.introspector.ReadMyInfo(binary)
}

func (r *Registry) process(ctx context.Context, runLog *logrus.Entry, name string) (p *Plugin) {
	p = newPlugin(name)
	log := runLog.WithField("plugin", name)

	defer func() {
		if err := observability.MustRecover(recover()); err != nil {
			log.WithError(err).Error("Plugin processing panicked")
			p.Err = err
			r.metrics.RecordPlugin(observability.OutcomeFailed)
		}
	}()

	art, err := r.builder.Resolve(name)
	if err != nil {
		r.sourceMissing(log, p, err)
		return p
	}
	p.SourcePath = art.Source
	p.NeedsCompile = art.NeedsCompile
	p.Disabled = art.Disabled

	md, err := r.scanner.ScanFile(ctx, name, art.Source)
	if err != nil {
		r.sourceMissing(log, p, err)
		return p
	}
	p.Metadata = md
	p.Files.Source = append([]string{r.cfg.Rel(art.Source)}, md.OwnedSources...)
	p.transition(Scanned)

	if art.NeedsCompile {
		p.transition(Stale)
	} else {
		p.transition(UpToDate)
	}

	res, err := r.builder.Build(ctx, art)
	if res != nil && res.Compiled {
		p.Compiled = true
		p.transition(CompileAttempted)
		r.metrics.RecordCompilation(res.Duration, err == nil, res.CompileErr)
	}
	switch {
	case err != nil && p.Compiled:
		p.Err = err
		p.transition(CompileFailed)
		p.transition(BinaryMissingAfterCompile)
		p.CompilerOutput = res.CompilerOutput
		log.WithError(err).Warn("Plugin binary unavailable, continuing with empty header")
	case err != nil:
		p.Err = err
		log.WithError(err).Warn("Failed to prepare build, continuing with empty header")
	case p.Compiled:
		p.transition(Compiled)
	}

	if res != nil && res.Binary != "" {
		p.BinaryPath = res.Binary
		p.Files.Plugin = []string{r.cfg.Rel(r.cfg.BinaryPath(name))}

		info, err := r.readHeader(res.Binary)
		if err != nil {
			p.Err = err
			log.WithError(err).Warn("Failed to read plugin header")
		} else {
			p.Header = info
			p.transition(Introspected)
		}
	}

	outputs, err := r.emitter.Emit(r.document(p))
	if err != nil {
		p.Err = err
		log.WithError(err).Error("Failed to write plugin artifacts")
		r.metrics.RecordPlugin(observability.OutcomeFailed)
		return p
	}
	p.Outputs = outputs
	p.transition(Emitted)

	if r.publisher != nil {
		r.publish(ctx, log, p)
	}

	r.metrics.RecordPlugin(outcome(p))
	log.WithFields(logrus.Fields{
		"state":    p.State,
		"compiled": p.Compiled,
		"version":  p.Header.Version,
	}).Info("Processed plugin")

	return p
}

func (r *Registry) sourceMissing(log *logrus.Entry, p *Plugin, err error) {
	p.Err = err
	p.transition(SourceMissing)
	r.metrics.RecordPlugin(observability.OutcomeSourceMissing)
	log.WithError(err).Error("Cannot process plugin source")
}

func (r *Registry) publish(ctx context.Context, log *logrus.Entry, p *Plugin) {
	req := &publish.Request{
		Name:     p.Name,
		Manifest: p.Outputs.UpdaterPath,
	}
	if p.BinaryPath != "" {
		for _, rel := range p.Files.Plugin {
			req.Files = append(req.Files, publish.File{Rel: rel, Local: p.BinaryPath})
		}
	}
	for _, rel := range p.Files.Source {
		local := filepath.Join(r.cfg.Paths.Root, filepath.FromSlash(rel))
		if _, err := os.Stat(local); err == nil {
			req.Files = append(req.Files, publish.File{Rel: rel, Local: local})
		}
	}

	_, err := r.publisher.Publish(ctx, req)
	r.metrics.RecordPublish(err)
	if err != nil {
		log.WithError(err).Warn("Failed to publish plugin")
	}
}

// document builds the render view of p
func (r *Registry) document(p *Plugin) *render.Document {
	doc := render.NewDocument(p.Name, p.Header, p.Metadata, p.Files)
	doc.Disabled = p.Disabled

	docPath := r.cfg.DocPath(p.Name)
	if rel, err := filepath.Rel(filepath.Dir(r.cfg.Paths.Readme), docPath); err == nil {
		docPath = rel
	}
	doc.DocPath = filepath.ToSlash(docPath)
	return doc
}

func outcome(p *Plugin) string {
	switch {
	case p.Reached(BinaryMissingAfterCompile):
		return observability.OutcomeCompileFailed
	case p.Reached(Compiled):
		return observability.OutcomeCompiled
	default:
		return observability.OutcomeUpToDate
	}
}
