package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func pollCmd(logger *slog.Logger, opts *appOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run a single poll cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), logger, *opts)
			if err != nil {
				return err
			}
			defer a.close()
			defer a.shutdownNotifier()

			stats, err := a.runCycle(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"cycle %s: regions=%d fetch_failures=%d sessions=%d eligible=%d suppressed=%d dispatched=%d deferred=%d delivery_failures=%d dropped=%d store_errors=%d duration=%s\n",
				stats.CycleID, stats.Regions, stats.FetchFailures, stats.ItemsSeen, stats.Eligible,
				stats.Suppressed, stats.Dispatched, stats.Deferred, stats.DeliveryFailures, stats.DroppedUpdates,
				stats.StoreErrors, stats.Duration)
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Discard alerts and notification records")
	return cmd
}
