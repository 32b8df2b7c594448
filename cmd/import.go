package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"reviewminer/internal/bootstrap"
	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
	"reviewminer/internal/scraper"
	"reviewminer/internal/usecase/ingest"
)

var (
	importFile   string
	importSource string
)

type importDeps struct {
	fx.In

	Importer *ingest.Importer
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import reviews from a CSV or JSON file",
	RunE: withApp(func(cmd *cobra.Command, _ []string, _ *bootstrap.App, deps importDeps) error {
		ctx := cmd.Context()

		fallback, err := review.ParseSource(importSource)
		if err != nil {
			return err
		}

		f, err := os.Open(importFile)
		if err != nil {
			return errs.Wrapf(err, "open import file %q", importFile)
		}
		defer f.Close()

		rows, err := scraper.ParseImportFile(f, filepath.Base(importFile), fallback)
		if err != nil {
			return errs.Wrap(err, "parse import file")
		}

		result, err := deps.Importer.Import(ctx, rows)
		if err != nil {
			return errs.Wrap(err, "import reviews")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d reviews (%d duplicates)\n",
			result.Inserted, result.Total, result.Duplicates); err != nil {
			return errs.Wrap(err, "write import output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importFile, "file", "", "Path to a .csv or .json review file")
	importCmd.Flags().StringVar(&importSource, "source", "manual", "Source to record for rows without one")
	_ = importCmd.MarkFlagRequired("file")
}
