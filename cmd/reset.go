package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"reviewminer/internal/bootstrap"
	"reviewminer/internal/errs"
	"reviewminer/internal/ports"
)

var resetConfirmed bool

type resetDeps struct {
	fx.In

	Reviews ports.ReviewRepository
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all reviews, pain points and jobs",
	RunE: withApp(func(cmd *cobra.Command, _ []string, _ *bootstrap.App, deps resetDeps) error {
		if !resetConfirmed {
			return errors.New("refusing to wipe the database without --yes")
		}

		if err := deps.Reviews.ResetAll(cmd.Context()); err != nil {
			return errs.Wrap(err, "reset database")
		}

		if _, err := fmt.Fprintln(cmd.OutOrStdout(), "database reset"); err != nil {
			return errs.Wrap(err, "write reset output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "Confirm deletion of all data")
}
