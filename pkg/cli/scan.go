package cli

import (
	"path/filepath"
	"strings"

	"github.com/platinummonkey/pawndoc/pkg/scanner"
	"github.com/spf13/cobra"
)

func newScanCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "scan [plugin|file...]",
		Short: "Print the metadata extracted from plugin sources",
		Long: `Scan plugin sources without compiling or writing anything. Arguments are
plugin names resolved against paths.scripting, or paths to source files.
Without arguments every plugin in the build list is scanned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = a.cfg.Plugins.Build
			}

			opts := scanner.OptionsFromConfig(a.cfg)
			opts.Logger = a.logger
			s := scanner.New(opts)

			result := make(map[string]*scanner.Metadata, len(args))
			for _, arg := range args {
				name, path := a.scanTarget(arg)
				md, err := s.ScanFile(cmd.Context(), name, path)
				if err != nil {
					return err
				}
				result[name] = md
			}

			return encode(cmd.OutOrStdout(), output, result)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputYAML, "output format: yaml or json")

	return cmd
}

// scanTarget maps an argument to a plugin name and source path
func (a *app) scanTarget(arg string) (string, string) {
	ext := "." + a.cfg.Files.Scripting
	if strings.HasSuffix(arg, ext) {
		return strings.TrimSuffix(filepath.Base(arg), ext), arg
	}
	return arg, a.cfg.SourcePath(arg)
}
