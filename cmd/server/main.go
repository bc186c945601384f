package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/growthpro/messaging/internal/accounts"
	"github.com/growthpro/messaging/internal/api"
	"github.com/growthpro/messaging/internal/api/middleware"
	"github.com/growthpro/messaging/internal/config"
	"github.com/growthpro/messaging/internal/events"
	"github.com/growthpro/messaging/internal/handlers"
	"github.com/growthpro/messaging/internal/messaging"
	"github.com/growthpro/messaging/internal/notify"
	"github.com/growthpro/messaging/internal/realtime"
	"github.com/growthpro/messaging/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Primary store: PostgreSQL, with an embedded SQLite fallback for
	// local development.
	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgStore.Close()
		dataStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		path := cfg.SQLitePath
		if path == "" {
			path = "messaging.db"
		}
		sqliteStore, err := store.NewSQLiteStore(ctx, path)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer sqliteStore.Close()
		dataStore = sqliteStore
		logger.Info().Str("path", path).Msg("using SQLite store")
	}

	// Redis: realtime bus and request rate limiting
	redisURL := cfg.RedisURL
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}
	redisStore, err := store.NewRedisStore(ctx, redisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisStore.Close()
	logger.Info().Msg("connected to Redis")

	// Optional Kafka event stream
	producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if producer != nil {
		defer producer.Close()
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("event stream enabled")
	}

	// Optional welcome-email function
	notifier := notify.NewClient(cfg.NotifyURL)

	svc := messaging.NewService(dataStore, redisStore, producer, logger, cfg.HourlyMessageLimit, cfg.BroadcastMaxRecipients)
	provisioner := accounts.NewProvisioner(dataStore, notifier, logger)

	hub := realtime.NewHub(redisStore, logger)
	go hub.Run(ctx)

	h := handlers.NewHandler(svc, dataStore, redisStore, hub, provisioner, logger)
	limiter := middleware.NewRateLimiter(redisStore.Client(), logger, middleware.RateLimiterConfig{
		Whitelist:        cfg.RateLimitWhitelist,
		AutoBlockEnabled: !cfg.IsDevelopment(),
	})

	router := api.NewRouter(cfg, logger, h, limiter)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting messaging server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
