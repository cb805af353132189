package cli

import (
	"errors"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/platinummonkey/pawndoc/pkg/build"
	"github.com/platinummonkey/pawndoc/pkg/config"
	"github.com/spf13/cobra"
)

const (
	statusUpToDate      = "up to date"
	statusStale         = "stale"
	statusSourceMissing = "source missing"
	statusUnlisted      = "unlisted"
	statusError         = "error"
)

type statusRow struct {
	Plugin   string `json:"plugin" yaml:"plugin"`
	Source   string `json:"source" yaml:"source"`
	Binary   string `json:"binary" yaml:"binary"`
	Disabled bool   `json:"disabled" yaml:"disabled"`
	Status   string `json:"status" yaml:"status"`
}

func newStatusCommand(a *app) *cobra.Command {
	var (
		all    bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which plugin binaries are stale without building anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := collectStatus(a.cfg, all)
			if err != nil {
				return err
			}
			if output == outputTable {
				renderStatusTable(cmd.OutOrStdout(), rows)
				return nil
			}
			return encode(cmd.OutOrStdout(), output, rows)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "also list source files that are not in the build list")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")

	return cmd
}

// collectStatus resolves every configured plugin. With all set, source files
// missing from the build list are appended as unlisted.
func collectStatus(cfg *config.Config, all bool) ([]statusRow, error) {
	rows := make([]statusRow, 0, len(cfg.Plugins.Build))
	listed := make(map[string]bool, len(cfg.Plugins.Build))

	for _, name := range cfg.Plugins.Build {
		listed[name] = true
		rows = append(rows, resolveStatus(cfg, name))
	}

	if !all {
		return rows, nil
	}

	sources, err := cfg.ListFiles("scripting")
	if err != nil {
		return nil, err
	}
	for _, name := range sources {
		if listed[name] {
			continue
		}
		row := resolveStatus(cfg, name)
		row.Status = statusUnlisted
		rows = append(rows, row)
	}

	return rows, nil
}

func resolveStatus(cfg *config.Config, name string) statusRow {
	row := statusRow{
		Plugin: name,
		Source: cfg.Rel(cfg.SourcePath(name)),
		Binary: "-",
	}

	art, err := build.Resolve(cfg, name)
	switch {
	case errors.Is(err, build.ErrSourceMissing):
		row.Status = statusSourceMissing
		return row
	case err != nil:
		row.Status = statusError
		return row
	}

	if art.BinaryExists {
		row.Binary = cfg.Rel(art.Binary)
		row.Disabled = art.Disabled
	}
	if art.NeedsCompile {
		row.Status = statusStale
	} else {
		row.Status = statusUpToDate
	}
	return row
}

func renderStatusTable(w io.Writer, rows []statusRow) {
	colors := map[string]*color.Color{
		statusUpToDate:      color.New(color.FgGreen),
		statusStale:         color.New(color.FgYellow),
		statusSourceMissing: color.New(color.FgRed),
		statusError:         color.New(color.FgRed),
		statusUnlisted:      color.New(color.Faint),
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Plugin", "Source", "Binary", "Status"})
	for _, r := range rows {
		status := r.Status
		if c, ok := colors[status]; ok {
			status = c.Sprint(status)
		}
		binary := r.Binary
		if r.Disabled {
			binary += " (disabled)"
		}
		t.AppendRow(table.Row{r.Plugin, r.Source, binary, status})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
