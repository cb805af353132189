package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/pawndoc/pkg/build"
	"github.com/platinummonkey/pawndoc/pkg/cache"
	"github.com/platinummonkey/pawndoc/pkg/config"
	"github.com/platinummonkey/pawndoc/pkg/observability"
	"github.com/platinummonkey/pawndoc/pkg/registry"
	"github.com/platinummonkey/pawndoc/pkg/scanner"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type watchOptions struct {
	debounce time.Duration
	schedule string
	force    bool
}

func newWatchCommand(a *app) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild documentation whenever plugin sources change",
		Long: `Run the pipeline once, then again after every burst of source or include
changes. With --schedule a full rebuild is also triggered on a cron schedule,
for example "@every 1h" or "0 4 * * *". Runs never overlap.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.debounce, "debounce", 2*time.Second, "quiet period after a change before rebuilding")
	cmd.Flags().StringVar(&opts.schedule, "schedule", "", "cron schedule for periodic full rebuilds")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "compile every plugin on every rebuild")

	return cmd
}

func (a *app) watch(ctx context.Context, opts *watchOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := setupWatcher(watcher, a.cfg.Paths.Scripting); err != nil {
		return fmt.Errorf("failed to watch %s: %w", a.cfg.Paths.Scripting, err)
	}

	orch, err := build.NewOrchestrator(a.cfg, build.Options{
		Compiler: a.compiler,
		Force:    opts.force,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	scanOpts := scanner.OptionsFromConfig(a.cfg)
	scanOpts.Logger = a.logger
	scans := cache.NewScanCache(scanner.New(scanOpts), nil)

	reg, err := registry.New(a.cfg, registry.Options{
		Scanner: scans,
		Builder: orch,
		Logger:  a.logger,
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}

	// Buffered so a trigger during a run queues exactly one follow up run
	trigger := make(chan struct{}, 1)
	trigger <- struct{}{}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return debounce(ctx, watcher, opts.debounce, sourceFilter(a.cfg), trigger, a.logger)
	})

	if opts.schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(opts.schedule, func() {
			a.logger.Info("Scheduled rebuild")
			notify(trigger)
		}); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", opts.schedule, err)
		}
		c.Start()
		g.Go(func() error {
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		})
	}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-trigger:
				a.runWatched(ctx, reg)
				stats := scans.Stats()
				a.logger.WithFields(logrus.Fields{
					"cache_hits":   stats.Hits,
					"cache_misses": stats.Misses,
				}).Debug("Scan cache")
			}
		}
	})

	a.logger.WithField("dir", a.cfg.Paths.Scripting).Info("Watching for source changes")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runWatched runs the pipeline once. Failures are logged so the watcher
// keeps going.
func (a *app) runWatched(ctx context.Context, reg *registry.Registry) {
	defer observability.RecoverPanic(a.logger, "watch worker")

	report, err := reg.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.WithError(err).Error("Rebuild failed")
		}
		return
	}
	if err := a.writeMetrics(); err != nil {
		a.logger.WithError(err).Warn("Failed to write metrics")
	}
	a.logger.WithFields(logrus.Fields{
		"run_id":  report.RunID,
		"indexed": len(report.Index),
		"failed":  len(report.Failed()),
	}).Info("Rebuilt documentation")
}

// eventSource is the part of fsnotify.Watcher the debounce loop reads
type eventSource struct {
	events <-chan fsnotify.Event
	errors <-chan error
	add    func(string) error
}

// debounce forwards one trigger after each burst of matching events has been
// quiet for delay. It returns when ctx is done or the watcher closes.
func debounce(ctx context.Context, w *fsnotify.Watcher, delay time.Duration, match func(fsnotify.Event) bool, trigger chan<- struct{}, logger *logrus.Logger) error {
	return debounceEvents(ctx, eventSource{events: w.Events, errors: w.Errors, add: w.Add}, delay, match, trigger, logger)
}

func debounceEvents(ctx context.Context, src eventSource, delay time.Duration, match func(fsnotify.Event) bool, trigger chan<- struct{}, logger *logrus.Logger) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-src.events:
			if !ok {
				return nil
			}

			// Watch directories created under the tree
			if event.Has(fsnotify.Create) && src.add != nil {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := src.add(event.Name); err != nil {
						logger.WithError(err).WithField("dir", event.Name).Warn("Failed to watch new directory")
					}
				}
			}

			if !match(event) {
				continue
			}
			logger.WithField("file", event.Name).Debug("Source changed")

			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
			fire = timer.C

		case err, ok := <-src.errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Watcher error")

		case <-fire:
			fire = nil
			notify(trigger)
		}
	}
}

// sourceFilter matches writes, creations, removals and renames of plugin
// sources and includes
func sourceFilter(cfg *config.Config) func(fsnotify.Event) bool {
	exts := map[string]bool{
		"." + cfg.Files.Scripting: true,
		"." + cfg.Files.Include:   true,
	}
	return func(event fsnotify.Event) bool {
		if !exts[filepath.Ext(event.Name)] {
			return false
		}
		return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
			event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	}
}

// notify sends on trigger unless a run is already queued
func notify(trigger chan<- struct{}) {
	select {
	case trigger <- struct{}{}:
	default:
	}
}

// setupWatcher recursively adds all directories to the watcher
func setupWatcher(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
