package registry

import (
	"context"
	"time"

	"github.com/platinummonkey/pawndoc/pkg/build"
	"github.com/platinummonkey/pawndoc/pkg/publish"
	"github.com/platinummonkey/pawndoc/pkg/render"
	"github.com/platinummonkey/pawndoc/pkg/scanner"
	"github.com/platinummonkey/pawndoc/pkg/smx"
)

// State is a step of the per plugin state machine
type State int

const (
	Unscanned State = iota
	Scanned
	UpToDate
	Stale
	CompileAttempted
	Compiled
	CompileFailed
	Introspected
	Emitted

	// SourceMissing is terminal; the plugin is excluded from the index
	SourceMissing

	// BinaryMissingAfterCompile continues to Emitted with an empty header
	BinaryMissingAfterCompile
)

var stateNames = map[State]string{
	Unscanned:                 "unscanned",
	Scanned:                   "scanned",
	UpToDate:                  "up_to_date",
	Stale:                     "stale",
	CompileAttempted:          "compile_attempted",
	Compiled:                  "compiled",
	CompileFailed:             "compile_failed",
	Introspected:              "introspected",
	Emitted:                   "emitted",
	SourceMissing:             "source_missing",
	BinaryMissingAfterCompile: "binary_missing_after_compile",
}

// String returns the state name
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Plugin is the record of one configured plugin for a single run. It holds
// no reference back to the registry.
type Plugin struct {
	Name string `json:"name" yaml:"name"`

	SourcePath string `json:"source_path" yaml:"source_path"`
	BinaryPath string `json:"binary_path,omitempty" yaml:"binary_path,omitempty"`
	Disabled   bool   `json:"disabled" yaml:"disabled"`

	NeedsCompile bool `json:"needs_compile" yaml:"needs_compile"`
	Compiled     bool `json:"compiled" yaml:"compiled"`

	Metadata *scanner.Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Header   smx.MyInfo        `json:"header" yaml:"header"`

	// Files lists the repository relative artifacts the plugin owns
	Files render.Files `json:"files" yaml:"files"`

	State   State   `json:"state" yaml:"state"`
	History []State `json:"history" yaml:"history"`

	// Err is the last per plugin error
	Err error `json:"-" yaml:"-"`

	// CompilerOutput holds diagnostics when a compile failed
	CompilerOutput string `json:"compiler_output,omitempty" yaml:"compiler_output,omitempty"`

	Outputs *render.Emitted `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

func newPlugin(name string) *Plugin {
	return &Plugin{
		Name:    name,
		State:   Unscanned,
		History: []State{Unscanned},
	}
}

func (p *Plugin) transition(s State) {
	p.State = s
	p.History = append(p.History, s)
}

// Reached reports whether the plugin passed through state s
func (p *Plugin) Reached(s State) bool {
	for _, h := range p.History {
		if h == s {
			return true
		}
	}
	return false
}

// Indexed reports whether the plugin belongs in the aggregate index. Only
// plugins whose documentation page was written are listed.
func (p *Plugin) Indexed() bool {
	return p.Reached(Emitted)
}

// Report is the result of one registry run
type Report struct {
	RunID string

	// Plugins holds one record per processed name in configured order
	Plugins []*Plugin

	// Index holds the indexed plugins sorted by name
	Index []*Plugin

	// Readme is the written index file, empty when it was not rendered
	Readme string

	Duration time.Duration
}

// Failed returns the plugins that reached a failure state or carry an error
func (r *Report) Failed() []*Plugin {
	var out []*Plugin
	for _, p := range r.Plugins {
		if p.Err != nil || p.Reached(SourceMissing) || p.Reached(BinaryMissingAfterCompile) {
			out = append(out, p)
		}
	}
	return out
}

// SourceScanner extracts metadata from a plugin source file
type SourceScanner interface {
	ScanFile(ctx context.Context, name, path string) (*scanner.Metadata, error)
}

// Builder resolves plugin artifacts and compiles stale binaries
type Builder interface {
	Resolve(name string) (*build.Artifacts, error)
	Build(ctx context.Context, art *build.Artifacts) (*build.Result, error)
}

// Introspector reads header metadata from a compiled plugin
type Introspector interface {
	ReadMyInfo(path string) (smx.MyInfo, error)
}

// IntrospectorFunc adapts a function to Introspector
type IntrospectorFunc func(path string) (smx.MyInfo, error)

// ReadMyInfo implements Introspector
func (f IntrospectorFunc) ReadMyInfo(path string) (smx.MyInfo, error) {
	return f(path)
}

// Emitter writes generated artifacts
type Emitter interface {
	Emit(doc *render.Document) (*render.Emitted, error)
	EmitIndex(docs []*render.Document) (string, error)
}

// Publisher uploads a plugin's manifest and files
type Publisher interface {
	Publish(ctx context.Context, req *publish.Request) ([]string, error)
}
