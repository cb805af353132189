package scanner

import (
	"context"
	"fmt"
	"os"

	"github.com/platinummonkey/pawndoc/pkg/config"
	"github.com/sirupsen/logrus"
)

// Options controls how rules resolve names and paths
type Options struct {
	// VersionSuffix marks cvars that are dropped, e.g. "_version"
	VersionSuffix string

	// IncludeDir and IncludeExt locate include files, relative to the plugin root
	IncludeDir string
	IncludeExt string

	// TranslationDir, GameDataDir and their extensions locate runtime resources
	TranslationDir string
	TranslationExt string
	GameDataDir    string
	GameDataExt    string

	// Excluded reports whether an include name belongs to an exclusion set
	Excluded func(name string) bool

	// Matcher defaults to a RegexMatcher
	Matcher Matcher

	Logger *logrus.Logger
}

// DefaultOptions returns options matching the default directory layout
func DefaultOptions() Options {
	return Options{
		VersionSuffix:  "_version",
		IncludeDir:     "scripting/include",
		IncludeExt:     "inc",
		TranslationDir: "translations",
		TranslationExt: "txt",
		GameDataDir:    "gamedata",
		GameDataExt:    "txt",
	}
}

// OptionsFromConfig builds scanner options from a resolved configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		VersionSuffix:  cfg.VersionSuffix(),
		IncludeDir:     cfg.Rel(cfg.Paths.Include),
		IncludeExt:     cfg.Files.Include,
		TranslationDir: cfg.Rel(cfg.Paths.Translations),
		TranslationExt: cfg.Files.Translations,
		GameDataDir:    cfg.Rel(cfg.Paths.Gamedata),
		GameDataExt:    cfg.Files.Gamedata,
		Excluded:       cfg.IsExcludedLibrary,
	}
}

func (o *Options) isExcluded(name string) bool {
	return o.Excluded != nil && o.Excluded(name)
}

func (o *Options) resource(kind RuleKind) (string, string) {
	if kind == RuleGameData {
		return o.GameDataDir, o.GameDataExt
	}
	return o.TranslationDir, o.TranslationExt
}

// Scanner applies the extraction rules to plugin sources
type Scanner struct {
	opts    Options
	matcher Matcher
	logger  *logrus.Logger
}

// New creates a scanner
func New(opts Options) *Scanner {
	matcher := opts.Matcher
	if matcher == nil {
		matcher = NewRegexMatcher()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		opts:    opts,
		matcher: matcher,
		logger:  logger,
	}
}

// Scan extracts metadata for plugin name from src. It never fails: calls
// that do not match are ignored and empty input yields empty metadata.
func (s *Scanner) Scan(name, src string) *Metadata {
	st := &scanState{
		name:    name,
		src:     src,
		opts:    &s.opts,
		matcher: s.matcher,
		md:      NewMetadata(),
	}

	for _, kind := range ruleOrder {
		ruleTable[kind](st)
	}

	s.logger.WithFields(logrus.Fields{
		"plugin":   name,
		"cvars":    len(st.md.Cvars),
		"commands": len(st.md.Commands),
		"deps":     len(st.md.Dependencies.Plugin) + len(st.md.Dependencies.Source),
	}).Debug("Scanned plugin source")

	return st.md
}

// ScanFile reads the source at path and scans it
func (s *Scanner) ScanFile(ctx context.Context, name, path string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source %s: %w", path, err)
	}

	return s.Scan(name, string(data)), nil
}
