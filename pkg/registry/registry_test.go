package registry

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinummonkey/pawndoc/pkg/build"
	"github.com/platinummonkey/pawndoc/pkg/config"
	"github.com/platinummonkey/pawndoc/pkg/observability"
	"github.com/platinummonkey/pawndoc/pkg/publish"
	"github.com/platinummonkey/pawndoc/pkg/render"
	"github.com/platinummonkey/pawndoc/pkg/smx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `#include <sourcemod>
#include <sample>

public void OnPluginStart()
{
	CreateConVar("sm_sample_version", "1.0", "Version");
	CreateConVar("sm_sample_enabled", "1", "Enable the plugin");
	RegConsoleCmd("sm_hello", Command_Hello, "Say hello");
	LoadTranslations("sample.phrases");
}
`

type fakeCompiler struct {
	calls int
	fail  bool
}

func (f *fakeCompiler) Compile(_ context.Context, req *build.CompileRequest) (*build.CompileResult, error) {
	f.calls++
	if f.fail {
		return &build.CompileResult{ExitCode: 1, Output: "error 017: undefined symbol"}, errors.New("exit status 1")
	}
	if err := os.WriteFile(req.Output, []byte("FFPS"), 0644); err != nil {
		return nil, err
	}
	return &build.CompileResult{}, nil
}

func (f *fakeCompiler) Close() error { return nil }

type fakeIntrospector struct {
	paths []string
	info  smx.MyInfo
	panic bool
}

func (f *fakeIntrospector) ReadMyInfo(path string) (smx.MyInfo, error) {
	f.paths = append(f.paths, path)
	if f.panic {
		panic("corrupt plugin")
	}
	return f.info, nil
}

type fakePublisher struct {
	requests []*publish.Request
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, req *publish.Request) ([]string, error) {
	f.requests = append(f.requests, req)
	return nil, f.err
}

type fixture struct {
	cfg          *config.Config
	compiler     *fakeCompiler
	introspector *fakeIntrospector
	metrics      *observability.Metrics
}

func newFixture(t *testing.T, plugins ...string) *fixture {
	t.Helper()
	cfg, err := config.Default(t.TempDir())
	require.NoError(t, err)
	cfg.Plugins.Build = plugins
	require.NoError(t, os.MkdirAll(cfg.Paths.Scripting, 0755))

	return &fixture{
		cfg:          cfg,
		compiler:     &fakeCompiler{},
		introspector: &fakeIntrospector{info: smx.MyInfo{Name: "Sample", Version: "1.2.0", Author: "someone"}},
		metrics:      observability.NewMetrics(nil),
	}
}

func (f *fixture) writeSource(t *testing.T, name string) {
	t.Helper()
	path := f.cfg.SourcePath(name)
	require.NoError(t, os.WriteFile(path, []byte(sampleSource), 0644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))
}

func (f *fixture) registry(t *testing.T, opts Options) *Registry {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	orch, err := build.NewOrchestrator(f.cfg, build.Options{Compiler: f.compiler, Logger: logger})
	require.NoError(t, err)

	opts.Builder = orch
	opts.Introspector = f.introspector
	opts.Logger = logger
	opts.Metrics = f.metrics

	r, err := New(f.cfg, opts)
	require.NoError(t, err)
	return r
}

func TestRun(t *testing.T) {
	f := newFixture(t, "zeta", "missing", "alpha")
	f.writeSource(t, "zeta")
	f.writeSource(t, "alpha")

	report, err := f.registry(t, Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Plugins, 3)
	assert.Equal(t, "zeta", report.Plugins[0].Name)
	assert.Equal(t, "missing", report.Plugins[1].Name)
	assert.Equal(t, "alpha", report.Plugins[2].Name)
	assert.NotEmpty(t, report.RunID)

	missing := report.Plugins[1]
	assert.Equal(t, SourceMissing, missing.State)
	assert.ErrorIs(t, missing.Err, build.ErrSourceMissing)

	require.Len(t, report.Index, 2)
	assert.Equal(t, "alpha", report.Index[0].Name)
	assert.Equal(t, "zeta", report.Index[1].Name)

	alpha := report.Plugins[2]
	assert.Equal(t, Emitted, alpha.State)
	assert.Equal(t, []State{Unscanned, Scanned, Stale, CompileAttempted, Compiled, Introspected, Emitted}, alpha.History)
	assert.True(t, alpha.Compiled)
	assert.True(t, alpha.Disabled)
	assert.Equal(t, f.cfg.DisabledBinaryPath("alpha"), alpha.BinaryPath)
	assert.Equal(t, "1.2.0", alpha.Header.Version)
	assert.Equal(t, []string{"plugins/alpha.smx"}, alpha.Files.Plugin)
	assert.Equal(t, []string{"scripting/alpha.sp"}, alpha.Files.Source)

	require.NotNil(t, alpha.Metadata)
	assert.Contains(t, alpha.Metadata.Cvars, "sm_sample_enabled")
	assert.NotContains(t, alpha.Metadata.Cvars, "sm_sample_version")
	assert.Contains(t, alpha.Metadata.Commands, "sm_hello")

	require.NotNil(t, alpha.Outputs)
	assert.FileExists(t, alpha.Outputs.DocPath)
	assert.FileExists(t, alpha.Outputs.UpdaterPath)

	assert.Equal(t, f.cfg.Paths.Readme, report.Readme)
	readme, err := os.ReadFile(report.Readme)
	require.NoError(t, err)
	assert.Contains(t, string(readme), "(doc/alpha.md)")
	assert.Contains(t, string(readme), "(doc/zeta.md)")
	assert.NotContains(t, string(readme), "missing")

	assert.Len(t, report.Failed(), 1)
	assert.Equal(t, 2, f.compiler.calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PluginsTotal.WithLabelValues(observability.OutcomeCompiled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PluginsTotal.WithLabelValues(observability.OutcomeSourceMissing)))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.IndexedPlugins))
}

func TestRun_SecondRunDoesNotRecompile(t *testing.T) {
	f := newFixture(t, "alpha")
	f.writeSource(t, "alpha")

	_, err := f.registry(t, Options{}).Run(context.Background())
	require.NoError(t, err)

	report, err := f.registry(t, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.compiler.calls)
	p := report.Plugins[0]
	assert.Equal(t, []State{Unscanned, Scanned, UpToDate, Introspected, Emitted}, p.History)
	assert.False(t, p.Compiled)
}

func TestRun_CompileFailure(t *testing.T) {
	f := newFixture(t, "alpha")
	f.writeSource(t, "alpha")
	f.compiler.fail = true

	report, err := f.registry(t, Options{}).Run(context.Background())
	require.NoError(t, err)

	p := report.Plugins[0]
	assert.True(t, p.Reached(CompileFailed))
	assert.True(t, p.Reached(BinaryMissingAfterCompile))
	assert.Equal(t, Emitted, p.State)
	assert.ErrorIs(t, p.Err, build.ErrBinaryMissingAfterCompile)
	assert.Equal(t, "error 017: undefined symbol", p.CompilerOutput)

	assert.True(t, p.Header.IsZero())
	assert.Empty(t, f.introspector.paths)
	assert.Empty(t, p.Files.Plugin)

	require.Len(t, report.Index, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PluginsTotal.WithLabelValues(observability.OutcomeCompileFailed)))
}

func TestRun_Only(t *testing.T) {
	f := newFixture(t, "alpha", "beta")
	f.writeSource(t, "alpha")
	f.writeSource(t, "beta")

	t.Run("restricted run skips the index", func(t *testing.T) {
		report, err := f.registry(t, Options{Only: []string{"beta"}}).Run(context.Background())
		require.NoError(t, err)

		require.Len(t, report.Plugins, 1)
		assert.Equal(t, "beta", report.Plugins[0].Name)
		assert.Empty(t, report.Readme)
		assert.NoFileExists(t, f.cfg.Paths.Readme)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := f.registry(t, Options{Only: []string{"beta", "gamma"}}).Run(context.Background())
		assert.ErrorIs(t, err, ErrUnknownPlugin)
	})

	t.Run("configured order is kept", func(t *testing.T) {
		names, err := f.registry(t, Options{Only: []string{"beta", "alpha"}}).Names()
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "beta"}, names)
	})
}

func TestRun_Publish(t *testing.T) {
	f := newFixture(t, "alpha")
	f.writeSource(t, "alpha")

	t.Run("uploads manifest and files", func(t *testing.T) {
		pub := &fakePublisher{}
		report, err := f.registry(t, Options{Publisher: pub}).Run(context.Background())
		require.NoError(t, err)

		require.Len(t, pub.requests, 1)
		req := pub.requests[0]
		assert.Equal(t, "alpha", req.Name)
		assert.Equal(t, report.Plugins[0].Outputs.UpdaterPath, req.Manifest)

		require.Len(t, req.Files, 2)
		assert.Equal(t, "plugins/alpha.smx", req.Files[0].Rel)
		assert.Equal(t, f.cfg.DisabledBinaryPath("alpha"), req.Files[0].Local)
		assert.Equal(t, "scripting/alpha.sp", req.Files[1].Rel)
		assert.Equal(t, f.cfg.SourcePath("alpha"), req.Files[1].Local)
	})

	t.Run("failure does not fail the plugin", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("denied")}
		report, err := f.registry(t, Options{Publisher: pub}).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, Emitted, report.Plugins[0].State)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PublishTotal.WithLabelValues("failure")))
	})
}

func TestRun_IntrospectionPanicStillEmits(t *testing.T) {
	f := newFixture(t, "alpha", "beta")
	f.writeSource(t, "alpha")
	f.writeSource(t, "beta")
	f.introspector.panic = true

	report, err := f.registry(t, Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Plugins, 2)
	require.Len(t, report.Index, 2)
	for _, p := range report.Plugins {
		require.Error(t, p.Err)
		assert.Contains(t, p.Err.Error(), "corrupt plugin")
		assert.Equal(t, Emitted, p.State)
		assert.False(t, p.Reached(Introspected))
		assert.Empty(t, p.Header.Name)
		assert.FileExists(t, f.cfg.DocPath(p.Name))
		assert.FileExists(t, f.cfg.UpdaterPath(p.Name))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PluginsTotal.WithLabelValues(observability.OutcomeCompiled)))
	assert.Zero(t, testutil.ToFloat64(f.metrics.PluginsTotal.WithLabelValues(observability.OutcomeFailed)))

	readme, err := os.ReadFile(f.cfg.Paths.Readme)
	require.NoError(t, err)
	assert.Contains(t, string(readme), "doc/alpha.md")
}

type failingEmitter struct {
	Emitter
	fail string
}

func (e *failingEmitter) Emit(doc *render.Document) (*render.Emitted, error) {
	if doc.Name == e.fail {
		return nil, errors.New("disk full")
	}
	return e.Emitter.Emit(doc)
}

func TestRun_EmitFailureLeavesIndex(t *testing.T) {
	f := newFixture(t, "alpha", "beta")
	f.writeSource(t, "alpha")
	f.writeSource(t, "beta")

	emitter, err := render.NewEmitter(f.cfg, nil)
	require.NoError(t, err)

	report, err := f.registry(t, Options{Emitter: &failingEmitter{Emitter: emitter, fail: "beta"}}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Index, 1)
	assert.Equal(t, "alpha", report.Index[0].Name)
	assert.NoFileExists(t, f.cfg.DocPath("beta"))

	readme, err := os.ReadFile(f.cfg.Paths.Readme)
	require.NoError(t, err)
	assert.NotContains(t, string(readme), "doc/beta.md")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PluginsTotal.WithLabelValues(observability.OutcomeFailed)))
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t, "alpha")
	f.writeSource(t, "alpha")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.registry(t, Options{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.compiler.calls)
}

func TestRun_KeepsRunID(t *testing.T) {
	f := newFixture(t)
	ctx := observability.WithRunID(context.Background(), "run-1")

	report, err := f.registry(t, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", report.RunID)
	assert.Empty(t, report.Index)
	assert.FileExists(t, filepath.Join(f.cfg.Paths.Root, "README.md"))
}

func TestState(t *testing.T) {
	assert.Equal(t, "binary_missing_after_compile", BinaryMissingAfterCompile.String())
	assert.Equal(t, "unknown", State(99).String())

	text, err := UpToDate.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "up_to_date", string(text))

	p := newPlugin("x")
	p.transition(Scanned)
	assert.True(t, p.Reached(Unscanned))
	assert.False(t, p.Indexed())
	p.transition(Emitted)
	assert.True(t, p.Indexed())

	missing := newPlugin("y")
	missing.transition(SourceMissing)
	assert.False(t, missing.Indexed())
}
