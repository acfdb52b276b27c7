package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logvault/logvault/internal/migrate"
)

// MigrateOptions holds flags for the migrate subcommands.
type MigrateOptions struct {
	*RootOptions
	Index bool
}

// NewMigrateCommand creates the migrate command group for out-of-band
// schema management. The caller must hold the store exclusively for the
// duration of a run; migrating concurrently with an active sink against the
// same store is not supported.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert schema migrations",
	}

	up := &cobra.Command{
		Use:           "up",
		Short:         "Apply all pending schema steps",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(opts, cmd)
		},
	}
	up.Flags().BoolVar(&opts.Index, "index", false, "also apply read-optimization index steps")

	down := &cobra.Command{
		Use:           "down",
		Short:         "Revert the most recently applied schema step",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateDown(opts, cmd)
		},
	}
	down.Flags().BoolVar(&opts.Index, "index", false, "also revert the most recent index step")

	cmd.AddCommand(up, down)
	return cmd
}

func runMigrateUp(opts *MigrateOptions, cmd *cobra.Command) error {
	h, _, err := openHandle(opts.RootOptions)
	if err != nil {
		return err
	}

	runner, err := newRunner()
	if err != nil {
		h.Close()
		return err
	}

	// The runner closes the handle when the run completes.
	applied, err := runner.Up(cmd.Context(), h, opts.Index)
	if err != nil {
		return err
	}

	if len(applied) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	}
	for _, id := range applied {
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", id)
	}
	return nil
}

func runMigrateDown(opts *MigrateOptions, cmd *cobra.Command) error {
	h, _, err := openHandle(opts.RootOptions)
	if err != nil {
		return err
	}

	runner, err := newRunner()
	if err != nil {
		h.Close()
		return err
	}

	reverted, err := runner.Down(cmd.Context(), h, opts.Index)
	if err != nil {
		return err
	}

	if len(reverted) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to revert")
		return nil
	}
	for _, id := range reverted {
		fmt.Fprintf(cmd.OutOrStdout(), "reverted %s\n", id)
	}
	return nil
}

func newRunner() (*migrate.Runner, error) {
	steps, index := migrate.Schema()
	return migrate.New(steps, index)
}
