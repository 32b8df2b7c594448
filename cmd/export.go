package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"reviewminer/internal/bootstrap"
	"reviewminer/internal/errs"
	"reviewminer/internal/usecase/export"
)

var (
	exportFormat   string
	exportCategory string
	exportOutput   string
)

type exportDeps struct {
	fx.In

	Exporter *export.Exporter
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export extracted pain points as csv, json or markdown",
	RunE: withApp(func(cmd *cobra.Command, _ []string, _ *bootstrap.App, deps exportDeps) error {
		ctx := cmd.Context()

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return errs.Wrapf(err, "create output file %q", exportOutput)
			}
			defer f.Close()
			out = f
		}

		count, err := deps.Exporter.Export(ctx, out, format, exportCategory)
		if err != nil {
			return errs.Wrap(err, "export pain points")
		}

		if exportOutput != "" {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "exported %d pain points to %s\n", count, exportOutput); err != nil {
				return errs.Wrap(err, "write export output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json or markdown")
	exportCmd.Flags().StringVar(&exportCategory, "category", "", "Only export this pain point category")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Write to this file instead of stdout")
}
