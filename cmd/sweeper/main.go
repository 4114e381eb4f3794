package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sociodent/sociodent/backend/internal/adapters/cache"
	"github.com/sociodent/sociodent/backend/internal/adapters/database"
	"github.com/sociodent/sociodent/backend/internal/adapters/events"
	"github.com/sociodent/sociodent/backend/internal/application/services"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/domain/repositories"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/clients/postgres"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/clients/redis"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	"github.com/sociodent/sociodent/backend/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sociodent-sweeper",
		Short: "Assign doctors to appointments that are still pending",
	}
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep pending appointments once or on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			once, _ := cmd.Flags().GetBool("once")
			interval, _ := cmd.Flags().GetDuration("interval")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			observability.InitLogger(cfg.OTEL.ServiceName+"-sweeper", cfg.Env)
			if interval <= 0 {
				interval = cfg.Sweep.Interval
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, once, interval, cmd)
		},
	}
	cmd.Flags().Bool("once", false, "sweep a single batch and exit")
	cmd.Flags().Duration("interval", 0, "sweep interval (defaults to SWEEP_INTERVAL)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, once bool, interval time.Duration, cmd *cobra.Command) error {
	logger := observability.GetLogger()

	metrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	// Without Redis the sweep still assigns, but the API process will not
	// see the confirmation events.
	var eventBus providers.EventBus
	var doctorRepo repositories.DoctorRepository = database.NewDoctorAdapter(pgClient)
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, sweeping without events or doctor cache")
	} else {
		defer redisClient.Close()
		bus := events.NewRedisEventBus(redisClient.Client())
		defer bus.Close()
		eventBus = bus
		doctorRepo = database.NewCachedDoctorAdapter(doctorRepo, cache.NewRedisAdapter(redisClient.Client()), metrics)
	}

	appointmentRepo := database.NewAppointmentAdapter(pgClient)
	matcher := services.NewDoctorMatcher(services.MatchWeights{
		AreaBonus:                 cfg.Matching.AreaBonus,
		SpecializationBonus:       cfg.Matching.SpecializationBonus,
		LoadPenaltyPerAppointment: cfg.Matching.LoadPenaltyPerAppointment,
	})
	assignments := services.NewAssignmentService(appointmentRepo, doctorRepo, matcher, eventBus, metrics,
		services.AssignmentPolicy{AllowForcedAssignment: cfg.Matching.AllowForcedAssignment})
	sweeper := services.NewPendingSweeper(appointmentRepo, assignments, cfg.Sweep.BatchSize)

	if once {
		stats, err := sweeper.SweepOnce(ctx)
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
	}

	logger.Info().Dur("interval", interval).Int("batch_size", cfg.Sweep.BatchSize).Msg("sweeper started")
	return sweeper.Run(ctx, interval)
}
