// Command worker polls vaccination slot availability and sends Telegram alerts.
//
// Usage:
//
//	worker            # same as `worker run`
//	worker run        # scheduler and ops HTTP server
//	worker poll       # one cycle, then exit
//	worker poll --dry-run
//	worker migrate    # create the notification record schema
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vaxslot-notifier/internal/observability/logging"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := rootCmd(logger, &appOptions{})
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("worker exited with error", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

// rootCmd builds the command tree. Flags from every command are written to
// opts.
func rootCmd(logger *slog.Logger, opts *appOptions) *cobra.Command {
	run := runCmd(logger, opts)

	root := &cobra.Command{
		Use:           "worker",
		Short:         "Vaccination slot availability notifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run.RunE,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.regions.Regions, "regions", "", "Comma-separated district ids to poll (replaces REGIONS and REGIONS_FILE)")
	flags.StringVar(&opts.regions.RegionsFile, "regions-file", "", "YAML file of districts to poll (replaces REGIONS and REGIONS_FILE)")
	flags.StringVar(&opts.storeDriver, "store", "", "Record store: sqlite, postgres or dynamodb (replaces STORE_DRIVER)")

	root.AddCommand(run)
	root.AddCommand(pollCmd(logger, opts))
	root.AddCommand(migrateCmd(logger, opts))
	return root
}
