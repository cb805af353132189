package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/platinummonkey/pawndoc/pkg/build"
	"github.com/platinummonkey/pawndoc/pkg/registry"
	"github.com/spf13/cobra"
)

type buildOptions struct {
	force     bool
	noCompile bool
	strict    bool
}

func newBuildCommand(a *app) *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build [plugin...]",
		Short: "Compile stale plugins and regenerate documentation",
		Long: `Run the pipeline for every plugin in plugins.build, or only for the named
plugins. The README index is only rewritten when no names are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.runBuild(cmd.Context(), args, opts)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			if opts.strict && len(report.Failed()) > 0 {
				return fmt.Errorf("%d plugin(s) failed", len(report.Failed()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "compile every plugin regardless of staleness")
	cmd.Flags().BoolVar(&opts.noCompile, "no-compile", false, "never invoke the compiler, only scan and render")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit non-zero when any plugin failed")

	return cmd
}

func (a *app) runBuild(ctx context.Context, names []string, opts *buildOptions) (*registry.Report, error) {
	orch, err := build.NewOrchestrator(a.cfg, build.Options{
		Compiler:  a.compiler,
		Force:     opts.force,
		NoCompile: opts.noCompile,
		Logger:    a.logger,
	})
	if err != nil {
		return nil, err
	}
	defer orch.Close()

	reg, err := registry.New(a.cfg, registry.Options{
		Builder: orch,
		Only:    names,
		Logger:  a.logger,
		Metrics: a.metrics,
	})
	if err != nil {
		return nil, err
	}

	return reg.Run(ctx)
}

func printReport(w io.Writer, report *registry.Report) {
	compiled := 0
	for _, p := range report.Plugins {
		if p.Reached(registry.Compiled) {
			compiled++
		}
	}

	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed)

	green.Fprintf(w, "Documented %d plugin(s)", len(report.Index))
	fmt.Fprintf(w, ", compiled %d in %s\n", compiled, report.Duration.Round(time.Millisecond))

	for _, p := range report.Failed() {
		red.Fprintf(w, "  %s: %s", p.Name, p.State)
		if p.Err != nil {
			fmt.Fprintf(w, " (%v)", p.Err)
		}
		fmt.Fprintln(w)
	}
}
