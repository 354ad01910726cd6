package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"vaxslot-notifier/internal/config"
)

func migrateCmd(logger *slog.Logger, opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the notification record schema for the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeConfig, err := config.LoadStore(opts.storeDriver)
			if err != nil {
				return err
			}

			// openStore applies the schema as part of connecting.
			_, _, closeStore, err := openStore(cmd.Context(), logger, storeConfig)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeStore(); err != nil {
					logger.Error("failed to close store", slog.Any("error", err))
				}
			}()

			logger.Info("migration completed", slog.String("store", storeConfig.Driver))
			return nil
		},
	}
}
