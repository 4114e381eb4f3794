package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sociodent/sociodent/backend/internal/adapters/cache"
	"github.com/sociodent/sociodent/backend/internal/adapters/database"
	"github.com/sociodent/sociodent/backend/internal/adapters/events"
	"github.com/sociodent/sociodent/backend/internal/adapters/search"
	"github.com/sociodent/sociodent/backend/internal/api/handlers"
	"github.com/sociodent/sociodent/backend/internal/api/middleware"
	"github.com/sociodent/sociodent/backend/internal/api/routes"
	"github.com/sociodent/sociodent/backend/internal/application/services"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/clients/postgres"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/clients/redis"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/clients/typesense"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/notifications"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	"github.com/sociodent/sociodent/backend/pkg/config"
)

const memoryCacheSize = 10000

func runServer(parent context.Context, cfg *config.Config) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}
	defer pgClient.Close()

	// Redis is optional: the cache falls back to an in-process LRU and the
	// event bus to in-process fan-out.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, using in-process cache and event bus")
		memCache, err := cache.NewMemoryAdapter(memoryCacheSize)
		if err != nil {
			return fmt.Errorf("failed to create memory cache: %w", err)
		}
		cacheProvider = memCache
		eventBus = events.NewMemoryEventBus()
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient.Client())
		eventBus = events.NewRedisEventBus(redisClient.Client())
	}
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing event bus")
		}
	}()

	var doctorIndex providers.DoctorIndex
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			logger.Warn().Err(err).Msg("Typesense unavailable, doctor search falls back to the database")
		} else if err := tsClient.InitSchema(ctx, false); err != nil {
			logger.Warn().Err(err).Msg("failed to init Typesense schema, doctor search falls back to the database")
		} else {
			doctorIndex = search.NewTypesenseAdapter(tsClient)
		}
	}

	var notifier providers.Notifier = notifications.LogNotifier{}
	if cfg.WhatsApp.AccessToken != "" {
		sender, err := notifications.NewWhatsAppCloudSender(cfg.WhatsApp)
		if err != nil {
			logger.Warn().Err(err).Msg("WhatsApp sender misconfigured, notifications will only be logged")
		} else {
			notifier = sender
		}
	}

	doctorRepo := database.NewCachedDoctorAdapter(database.NewDoctorAdapter(pgClient), cacheProvider, metrics)
	appointmentRepo := database.NewAppointmentAdapter(pgClient)

	matcher := services.NewDoctorMatcher(services.MatchWeights{
		AreaBonus:                 cfg.Matching.AreaBonus,
		SpecializationBonus:       cfg.Matching.SpecializationBonus,
		LoadPenaltyPerAppointment: cfg.Matching.LoadPenaltyPerAppointment,
	})
	assignmentService := services.NewAssignmentService(
		appointmentRepo,
		doctorRepo,
		matcher,
		eventBus,
		metrics,
		services.AssignmentPolicy{AllowForcedAssignment: cfg.Matching.AllowForcedAssignment},
	)
	otpService := services.NewOTPService(cacheProvider, notifier, services.OTPSettings{
		Length:      cfg.OTP.Length,
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		VerifiedTTL: cfg.OTP.VerifiedTTL,
	})
	bookingService := services.NewBookingService(appointmentRepo, assignmentService, otpService, eventBus, services.BookingOptions{
		RequireOTP: cfg.OTP.Required,
		AutoAssign: cfg.Matching.AutoAssignOnBooking,
	})
	doctorService := services.NewDoctorService(doctorRepo, doctorIndex)

	notificationService := services.NewNotificationService(sqlx.NewDb(pgClient.DB(), "postgres"), notifier, metrics)
	if err := notificationService.Start(ctx, eventBus); err != nil {
		logger.Warn().Err(err).Msg("failed to start notification service")
	}

	go func() {
		if _, err := services.NewCacheWarmingService(doctorRepo).WarmCache(ctx); err != nil {
			logger.Warn().Err(err).Msg("cache warming failed")
		}
	}()

	auth := middleware.NewAuthenticator(cfg.Auth, cfg.IsDevelopment())
	if cfg.Auth.SigningKey == "" {
		if cfg.IsDevelopment() {
			logger.Warn().Msg("AUTH_SIGNING_KEY is not set; protected routes accept every request in development")
		} else {
			logger.Warn().Msg("AUTH_SIGNING_KEY is not set; protected routes will reject every request")
		}
	}

	router := routes.NewRouter(
		routes.Handlers{
			Appointment: handlers.NewAppointmentHandler(bookingService, auth, cfg.Auth.PatientTokenTTL),
			Admin:       handlers.NewAdminHandler(assignmentService),
			Doctor:      handlers.NewDoctorHandler(doctorService),
			OTP:         handlers.NewOTPHandler(otpService),
			Stream:      handlers.NewSSEHandler(eventBus),
		},
		auth,
		doctorRepo,
		middleware.NewCacheMiddleware(cacheProvider),
		metrics,
		cfg.Server.AllowedOrigins,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
}
