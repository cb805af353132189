package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/platinummonkey/pawndoc/pkg/build"
	"github.com/platinummonkey/pawndoc/pkg/config"
	"github.com/platinummonkey/pawndoc/pkg/observability"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app holds what every subcommand needs once the root has loaded settings
type app struct {
	configFile string
	envFile    string
	logLevel   string
	logFormat  string

	cfg     *config.Config
	logger  *logrus.Logger
	metrics *observability.Metrics

	// compiler overrides the configured backend; used by tests
	compiler build.Compiler
}

// NewRootCommand creates the pawndoc root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pawndoc",
		Short: "Build, document and publish SourceMod plugins",
		Long: `pawndoc keeps a repository of SourceMod plugins documented.

For every plugin in the build list it scans the source for cvars, commands and
dependencies, recompiles stale binaries, reads the plugin header and writes a
markdown page, an Updater manifest and an aggregate README.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.writeMetrics()
		},
	}

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "settings file (default ./"+config.DefaultFileName+")")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the settings")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "override log.format (text or json)")

	root.AddCommand(
		newBuildCommand(a),
		newStatusCommand(a),
		newScanCommand(a),
		newWatchCommand(a),
		newVersionCommand(),
	)

	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// setup loads the environment, settings, logger and metrics
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", a.envFile, err)
	}

	cfg, err := loadConfig(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.metrics = observability.NewMetrics(nil)

	if cfg.File != "" {
		logger.WithField("config", cfg.File).Debug("Loaded settings")
	}
	return nil
}

// loadConfig reads path, or the default settings file when path is empty.
// Without any settings file the defaults rooted at the working directory
// are used.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(config.DefaultFileName); err == nil {
		return config.Load(config.DefaultFileName)
	}
	return config.Default(".")
}

func (a *app) writeMetrics() error {
	if a.cfg == nil || a.cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
