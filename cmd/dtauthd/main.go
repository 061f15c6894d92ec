// The dtauthd command implements the DevTrack device authorization server
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	adminhttp "github.com/devtrackhq/devtrack-auth/internal/dtauthd/admin/http"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/cache"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/config"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/database"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth"
	authhttp "github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth/http"
	authpg "github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth/postgres"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/flow"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/metrics"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/migrations"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/ratelimit"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/session"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Structured JSON logging for easier parsing
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error

	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
		if err != nil {
			logger.Error("failed to load config file", "error", err)
			os.Exit(1)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			logger.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := database.SetupDatabase(connStr, 5, time.Second)
	if err != nil {
		logger.Error("failed to setup database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := migrations.NewManager(db).ApplyMigrations(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	// Background work (sweeper, websocket hub) lives for the process.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router, sweeper, hub := setupRouter(cfg, db, logger)
	go hub.Run(ctx)
	go sweeper.Run(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting server",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
		)

		var err error
		if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
			err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	<-shutdown
	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

// setupRouter wires all services and returns the root router plus the
// background workers main owns.
func setupRouter(cfg *config.Config, db *sql.DB, logger *slog.Logger) (http.Handler, *deviceauth.Sweeper, *authhttp.Hub) {
	codec, err := session.NewCodec([]byte(cfg.Auth.TokenSigningKey), cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		logger.Error("failed to create session codec", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	deviceCache := cache.NewDeviceListCache(redisClient, cfg.DeviceAuth.DeviceListCacheTTL, logger)

	hub := authhttp.NewHub(logger)

	repo := authpg.NewRepository(db, logger)
	registry := deviceauth.NewService(repo, hub, logger, cfg.DeviceAuth.CodeTTL, cfg.DeviceAuth.RetentionMargin)
	sweeper := deviceauth.NewSweeper(registry, logger, cfg.DeviceAuth.CleanupInterval)

	flowSvc := flow.NewService(registry, codec, deviceCache, logger, cfg.DeviceAuth)

	limiter := ratelimit.NewService(ratelimit.NewMemoryStore(), logger, cfg.RateLimit.Enabled)
	limiter.RegisterConfiguredLimits(cfg.RateLimit)

	deviceHandler := authhttp.NewHandler(flowSvc, codec, limiter, hub, logger)

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
	adminHandler := adminhttp.NewHandler(flowSvc, zlog)

	r := chi.NewRouter()
	r.Mount("/", deviceHandler.Router())
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(session.Authenticator(codec, logger))
		adminHandler.RegisterRoutes(r)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(metrics.NewRegistry()))

	return r, sweeper, hub
}
