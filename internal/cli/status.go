package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logvault/logvault/internal/sink"
)

// NewStatusCommand creates the status command: applied migration steps and
// row counts for the configured store.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show applied migrations and row counts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	h, _, err := openHandle(opts)
	if err != nil {
		return err
	}
	defer h.Close()

	runner, err := newRunner()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	core, index, err := runner.Applied(ctx, h)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "store: %s (%s mode)\n", h.Name(), h.Mode())
	fmt.Fprintf(out, "core steps applied: %d\n", len(core))
	for _, id := range core {
		fmt.Fprintf(out, "  %s\n", id)
	}
	fmt.Fprintf(out, "index steps applied: %d\n", len(index))
	for _, id := range index {
		fmt.Fprintf(out, "  %s\n", id)
	}

	// Row counts only exist once the core schema is applied.
	if len(core) == 0 {
		return nil
	}

	logs, err := sink.CountLogLines(ctx, h)
	if err != nil {
		return err
	}
	metrics, err := sink.CountMetrics(ctx, h)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "log lines: %d\n", logs)
	fmt.Fprintf(out, "metrics: %d\n", metrics)
	return nil
}
