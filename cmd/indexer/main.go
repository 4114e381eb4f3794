package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sociodent/sociodent/backend/internal/adapters/database"
	"github.com/sociodent/sociodent/backend/internal/adapters/search"
	"github.com/sociodent/sociodent/backend/internal/application/services"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/clients/postgres"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/clients/typesense"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	"github.com/sociodent/sociodent/backend/pkg/config"
)

func main() {
	var reset bool
	var interval time.Duration

	rootCmd := &cobra.Command{
		Use:   "sociodent-indexer",
		Short: "Reindex the doctor directory into Typesense",
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval < 0 {
				return fmt.Errorf("interval must not be negative")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Env)
			logger := observability.GetLogger()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			for {
				if err := indexOnce(ctx, cfg, reset); err != nil {
					if interval <= 0 {
						return err
					}
					logger.Error().Err(err).Msg("reindex failed")
				}
				if interval <= 0 {
					return nil
				}

				reset = false
				logger.Info().Dur("next_run_in", interval).Msg("reindex complete")

				select {
				case <-ctx.Done():
					logger.Info().Msg("reindexer shutting down")
					return nil
				case <-time.After(interval):
				}
			}
		},
	}
	rootCmd.Flags().BoolVar(&reset, "reset", false, "drop the Typesense collection before reindexing")
	rootCmd.Flags().DurationVar(&interval, "interval", 0, "repeat interval for reindexing (e.g. 6h, 30m)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	logger := observability.LoggerFromContext(ctx)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}
	if err := tsClient.InitSchema(ctx, reset); err != nil {
		return err
	}

	doctorService := services.NewDoctorService(database.NewDoctorAdapter(pgClient), search.NewTypesenseAdapter(tsClient))
	indexed, err := doctorService.ReindexAll(ctx)
	if err != nil {
		return err
	}

	logger.Info().Int("doctors", indexed).Bool("reset", reset).Msg("indexed doctors")
	return nil
}
