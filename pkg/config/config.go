package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment overrides (PAWNDOC_LOG_LEVEL, ...)
	EnvPrefix = "PAWNDOC"

	// DefaultFileName is the settings file looked up when none is given
	DefaultFileName = "pawndoc.yaml"

	BackendProcess = "process"
	BackendDocker  = "docker"
)

// Config is the fully resolved settings document. It is read-only after Load.
type Config struct {
	// File is the settings file that was loaded, empty for defaults
	File string

	Settings  map[string]string
	Paths     Paths
	Files     Extensions
	Plugins   PluginsConfig
	Libraries Libraries
	Compiler  CompilerConfig
	Publish   PublishConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

// Paths holds absolute directory and file locations
type Paths struct {
	Root         string `mapstructure:"root"`
	Scripting    string `mapstructure:"scripting"`
	Include      string `mapstructure:"include"`
	Plugins      string `mapstructure:"plugins"`
	Disabled     string `mapstructure:"disabled"`
	Output       string `mapstructure:"output"`
	Translations string `mapstructure:"translations"`
	Gamedata     string `mapstructure:"gamedata"`
	Doc          string `mapstructure:"doc"`
	Updater      string `mapstructure:"updater"`
	Templates    string `mapstructure:"templates"`
	Readme       string `mapstructure:"readme"`
}

// Extensions maps each file category to its extension (without the dot)
type Extensions struct {
	Scripting    string `mapstructure:"scripting"`
	Include      string `mapstructure:"include"`
	Plugins      string `mapstructure:"plugins"`
	Translations string `mapstructure:"translations"`
	Gamedata     string `mapstructure:"gamedata"`
}

// PluginsConfig lists the plugins to process
type PluginsConfig struct {
	Build []string `mapstructure:"build"`
}

// Libraries holds the include exclusion sets
type Libraries struct {
	Stock      []string `mapstructure:"stock"`
	ThirdParty []string `mapstructure:"thirdparty"`
}

// CompilerConfig configures the external spcomp invocation
type CompilerConfig struct {
	Backend string        `mapstructure:"backend"`
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
	Docker  DockerConfig  `mapstructure:"docker"`
}

// DockerConfig configures the docker compiler backend
type DockerConfig struct {
	Image   string `mapstructure:"image"`
	Workdir string `mapstructure:"workdir"`
}

// PublishConfig configures uploading generated update manifests
type PublishConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	S3      S3Config `mapstructure:"s3"`
}

// S3Config holds the bucket settings for the publisher
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// rawConfig is the document as decoded, before interpolation
type rawConfig struct {
	Settings  map[string]string `mapstructure:"settings"`
	Paths     map[string]string `mapstructure:"paths"`
	Files     Extensions        `mapstructure:"files"`
	Plugins   PluginsConfig     `mapstructure:"plugins"`
	Libraries Libraries         `mapstructure:"libraries"`
	Compiler  CompilerConfig    `mapstructure:"compiler"`
	Publish   PublishConfig     `mapstructure:"publish"`
	Log       LogConfig         `mapstructure:"log"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
}

var defaults = map[string]interface{}{
	"settings.version_suffix": "_version",

	"paths.root":         ".",
	"paths.scripting":    "%(root)s/scripting",
	"paths.include":      "%(scripting)s/include",
	"paths.plugins":      "%(root)s/plugins",
	"paths.disabled":     "%(plugins)s/disabled",
	"paths.output":       "%(scripting)s/output",
	"paths.translations": "%(root)s/translations",
	"paths.gamedata":     "%(root)s/gamedata",
	"paths.doc":          "%(root)s/doc",
	"paths.updater":      "%(root)s/updater-data",
	"paths.templates":    "",
	"paths.readme":       "%(root)s/README.md",

	"files.scripting":    "sp",
	"files.include":      "inc",
	"files.plugins":      "smx",
	"files.translations": "txt",
	"files.gamedata":     "txt",

	"plugins.build":        []string{},
	"libraries.stock":      []string{},
	"libraries.thirdparty": []string{},

	"compiler.backend":        BackendProcess,
	"compiler.path":           "%(scripting)s/spcomp",
	"compiler.timeout":        "2m",
	"compiler.docker.image":   "",
	"compiler.docker.workdir": "/plugin",

	"publish.enabled":           false,
	"publish.s3.bucket":         "",
	"publish.s3.prefix":         "updater/",
	"publish.s3.region":         "us-east-1",
	"publish.s3.endpoint":       "",
	"publish.s3.access_key":     "",
	"publish.s3.secret_key":     "",
	"publish.s3.use_path_style": false,

	"log.level":  "info",
	"log.format": "text",

	"metrics.textfile": "",
}

// NewViper returns a viper instance with defaults and environment overrides set
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the settings file at path and returns the resolved configuration
func Load(path string) (*Config, error) {
	v := NewViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrConfigLoad, path, err)
	}

	return FromViper(v)
}

// Default returns the default configuration rooted at root
func Default(root string) (*Config, error) {
	v := NewViper()
	v.Set("paths.root", root)
	return FromViper(v)
}

// FromViper decodes and resolves the settings held by v
func FromViper(v *viper.Viper) (*Config, error) {
	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", ErrConfigLoad, err)
	}

	baseDir := "."
	if file := v.ConfigFileUsed(); file != "" {
		baseDir = filepath.Dir(file)
	}

	cfg, err := finalize(&raw, baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoad, err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoad, err)
	}

	return cfg, nil
}

// finalize runs the single interpolation pass and makes paths absolute
func finalize(raw *rawConfig, baseDir string) (*Config, error) {
	settings, err := Resolve(lowerKeys(raw.Settings))
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	paths, err := Resolve(lowerKeys(raw.Paths), settings)
	if err != nil {
		return nil, fmt.Errorf("paths: %w", err)
	}

	for key, value := range paths {
		if value == "" {
			continue
		}
		if !filepath.IsAbs(value) {
			value = filepath.Join(baseDir, value)
		}
		abs, err := filepath.Abs(value)
		if err != nil {
			return nil, fmt.Errorf("paths.%s: %w", key, err)
		}
		paths[key] = abs
	}

	cfg := &Config{
		Settings:  settings,
		Files:     raw.Files,
		Plugins:   raw.Plugins,
		Libraries: raw.Libraries,
		Compiler:  raw.Compiler,
		Publish:   raw.Publish,
		Log:       raw.Log,
		Metrics:   raw.Metrics,
	}

	if err := mapstructure.Decode(paths, &cfg.Paths); err != nil {
		return nil, fmt.Errorf("paths: %w", err)
	}

	cfg.Compiler.Path, err = ResolveValue(raw.Compiler.Path, paths, settings)
	if err != nil {
		return nil, fmt.Errorf("compiler.path: %w", err)
	}

	cfg.Metrics.Textfile, err = ResolveValue(raw.Metrics.Textfile, paths, settings)
	if err != nil {
		return nil, fmt.Errorf("metrics.textfile: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Paths.Root == "" {
		return fmt.Errorf("paths.root is required")
	}
	if c.Paths.Scripting == "" || c.Paths.Plugins == "" {
		return fmt.Errorf("paths.scripting and paths.plugins are required")
	}
	if c.Files.Scripting == "" || c.Files.Plugins == "" {
		return fmt.Errorf("files.scripting and files.plugins are required")
	}

	seen := make(map[string]bool, len(c.Plugins.Build))
	for _, name := range c.Plugins.Build {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("plugins.build contains an empty name")
		}
		if seen[name] {
			return fmt.Errorf("plugins.build contains duplicate plugin %q", name)
		}
		seen[name] = true
	}

	switch c.Compiler.Backend {
	case BackendProcess:
		if c.Compiler.Path == "" {
			return fmt.Errorf("compiler.path is required for the process backend")
		}
	case BackendDocker:
		if c.Compiler.Docker.Image == "" {
			return fmt.Errorf("compiler.docker.image is required for the docker backend")
		}
	default:
		return fmt.Errorf("invalid compiler backend: %s (must be process or docker)", c.Compiler.Backend)
	}

	if c.Compiler.Timeout <= 0 {
		return fmt.Errorf("compiler.timeout must be positive")
	}

	if c.Publish.Enabled && c.Publish.S3.Bucket == "" {
		return fmt.Errorf("publish.s3.bucket is required when publishing is enabled")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	return nil
}

// VersionSuffix returns the cvar name suffix reserved for version cvars
func (c *Config) VersionSuffix() string {
	return c.Settings["version_suffix"]
}

// SourcePath returns the expected source file for a plugin
func (c *Config) SourcePath(name string) string {
	return filepath.Join(c.Paths.Scripting, name+"."+c.Files.Scripting)
}

// BinaryPath returns the primary compiled plugin location
func (c *Config) BinaryPath(name string) string {
	return filepath.Join(c.Paths.Plugins, name+"."+c.Files.Plugins)
}

// DisabledBinaryPath returns the fallback compiled plugin location
func (c *Config) DisabledBinaryPath(name string) string {
	return filepath.Join(c.Paths.Disabled, name+"."+c.Files.Plugins)
}

// ErrorLogPath returns where the compiler writes its error output for a plugin
func (c *Config) ErrorLogPath(name string) string {
	return filepath.Join(c.Paths.Output, name+".out")
}

// DocPath returns the generated documentation file for a plugin
func (c *Config) DocPath(name string) string {
	return filepath.Join(c.Paths.Doc, name+".md")
}

// UpdaterPath returns the generated update manifest for a plugin
func (c *Config) UpdaterPath(name string) string {
	return filepath.Join(c.Paths.Updater, "update-"+name+".txt")
}

// Rel returns path relative to the plugin root using forward slashes.
// Paths outside the root are returned unchanged.
func (c *Config) Rel(path string) string {
	rel, err := filepath.Rel(c.Paths.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// IsExcludedLibrary reports whether an include name belongs to an exclusion set
func (c *Config) IsExcludedLibrary(name string) bool {
	for _, lib := range c.Libraries.Stock {
		if lib == name {
			return true
		}
	}
	for _, lib := range c.Libraries.ThirdParty {
		if lib == name {
			return true
		}
	}
	return false
}

// ListFiles returns the base names (without extension) of every file of a
// category found under its directory, sorted. Unknown categories return an error.
func (c *Config) ListFiles(category string) ([]string, error) {
	dir, ext, err := c.category(category)
	if err != nil {
		return nil, err
	}

	var names []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), "."+ext) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(strings.TrimSuffix(rel, "."+ext)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", category, err)
	}

	sort.Strings(names)
	return names, nil
}

func (c *Config) category(name string) (string, string, error) {
	switch name {
	case "scripting":
		return c.Paths.Scripting, c.Files.Scripting, nil
	case "include":
		return c.Paths.Include, c.Files.Include, nil
	case "plugins":
		return c.Paths.Plugins, c.Files.Plugins, nil
	case "translations":
		return c.Paths.Translations, c.Files.Translations, nil
	case "gamedata":
		return c.Paths.Gamedata, c.Files.Gamedata, nil
	default:
		return "", "", fmt.Errorf("unknown file category: %s", name)
	}
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}
