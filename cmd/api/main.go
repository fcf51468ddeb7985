// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/carterperez-dev/daf-manager/internal/access"
	"github.com/carterperez-dev/daf-manager/internal/admin"
	"github.com/carterperez-dev/daf-manager/internal/audit"
	"github.com/carterperez-dev/daf-manager/internal/auth"
	"github.com/carterperez-dev/daf-manager/internal/branding"
	"github.com/carterperez-dev/daf-manager/internal/client"
	"github.com/carterperez-dev/daf-manager/internal/config"
	"github.com/carterperez-dev/daf-manager/internal/core"
	"github.com/carterperez-dev/daf-manager/internal/grant"
	"github.com/carterperez-dev/daf-manager/internal/health"
	"github.com/carterperez-dev/daf-manager/internal/middleware"
	"github.com/carterperez-dev/daf-manager/internal/migrations"
	"github.com/carterperez-dev/daf-manager/internal/server"
	"github.com/carterperez-dev/daf-manager/internal/user"
)

const (
	drainDelay = 5 * time.Second

	// sign-in and invitation acceptance share a tighter per-IP budget
	credentialRequestsPerMinute = 10
	credentialBurst             = 5
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on existing environment")
	}

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log, cfg.IsDevelopment())
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(migrations.FS); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	if cfg.Metrics.Enabled {
		if err := core.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			return err
		}
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	policy, err := access.PolicyFromConfig(cfg.Authz)
	if err != nil {
		return err
	}

	invites, err := client.NewTokenIssuer(cfg.Invite)
	if err != nil {
		return err
	}

	auditRepo := audit.NewRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, logger)

	userSvc := user.NewService(user.NewRepository(db.DB), recorder)

	guard := access.NewGuard(userSvc, policy)
	gate := access.NewGate(guard, policy)

	authSvc := auth.NewService(
		auth.NewRepository(db.DB),
		jwtManager,
		userSvc,
		redis.Client,
		recorder,
		auth.ServiceConfig{Policy: policy, TOTPIssuer: cfg.Authz.TOTPIssuer},
	)

	clientSvc := client.NewService(
		client.NewStore(db.DB),
		recorder,
		userSvc,
		invites,
		logger,
	)
	grantSvc := grant.NewService(grant.NewStore(db.DB), clientSvc, recorder)
	brandingSvc := branding.NewService(
		branding.NewRepository(db.DB),
		core.NewJSONCache(redis.Client, "branding:"),
		cfg.Branding.CacheTTL,
		recorder,
		logger,
	)

	if cfg.Bootstrap.AdminEmail != "" {
		created, err := userSvc.BootstrapAdmin(
			ctx,
			cfg.Bootstrap.AdminEmail,
			cfg.Bootstrap.AdminPassword,
			cfg.Bootstrap.AdminName,
		)
		if err != nil {
			return err
		}
		if created {
			logger.Info("bootstrap admin created", "email", cfg.Bootstrap.AdminEmail)
		}
	}

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: db},
		health.Check{Name: "redis", Checker: redis, Optional: true},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Database: db,
		Redis:    redis,
		Repo:     admin.NewRepository(db.DB),
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	if cfg.Metrics.Enabled {
		router.Use(middleware.Metrics)
	}
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Name: "global",
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, core.MetricsHandler())
	}

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	credentialLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Name:     "credentials",
		Limit:    middleware.PerMinute(credentialRequestsPerMinute, credentialBurst),
		KeyFunc:  middleware.KeyByIP,
		FailOpen: false,
	}).Handler

	router.Route("/v1", func(r chi.Router) {
		auth.NewHandler(authSvc).RegisterRoutes(r, authenticator, gate, credentialLimiter)

		userHandler := user.NewHandler(userSvc)
		userHandler.RegisterRoutes(r, authenticator, gate)
		userHandler.RegisterAdminRoutes(r, authenticator, gate)

		audit.NewHandler(audit.NewService(auditRepo)).RegisterRoutes(r, authenticator, gate)
		client.NewHandler(clientSvc).RegisterRoutes(r, authenticator, gate, credentialLimiter)
		grant.NewHandler(grantSvc).RegisterRoutes(r, authenticator, gate)
		branding.NewHandler(brandingSvc).RegisterRoutes(r, authenticator, gate)
		adminHandler.RegisterRoutes(r, authenticator, gate)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := recorder.Flush(shutdownCtx); err != nil {
		logger.Error("audit flush error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig, withSource bool) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: withSource}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
