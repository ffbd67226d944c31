// Package main is the entrypoint for the humanizer API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/humanizer/humanizer/internal/auth"
	"github.com/humanizer/humanizer/internal/cache"
	"github.com/humanizer/humanizer/internal/config"
	"github.com/humanizer/humanizer/internal/handler"
	"github.com/humanizer/humanizer/internal/metrics"
	"github.com/humanizer/humanizer/internal/provider"
	"github.com/humanizer/humanizer/internal/reconcile"
	"github.com/humanizer/humanizer/internal/repository"
	"github.com/humanizer/humanizer/internal/server"
	"github.com/humanizer/humanizer/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(envFiles()...)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	// Workflow components
	providerClient := provider.New(provider.Options{
		BaseURL:   cfg.ProviderBaseURL,
		APIKey:    cfg.ProviderAPIKey,
		Timeout:   cfg.ProviderTimeout,
		RateLimit: cfg.ProviderRateLimitRPS,
		Logger:    logger,
		Metrics:   recorder,
	})
	ledger := service.NewLedger(repo, logger)
	historyRecorder := service.NewRecorder(repo)
	poller := service.NewPoller(providerClient, service.PollerConfig{
		Attempts: cfg.PollAttempts,
		Interval: cfg.PollInterval,
		Logger:   logger,
		Metrics:  recorder,
	})
	publisher := reconcile.NewPublisher(cacheClient.Client(), logger, recorder)

	humanizeCfg := service.HumanizeConfig{
		MinTextLength: cfg.MinTextLength,
		LockTTL:       cfg.HumanizeLockTTL,
		Timeout:       cfg.WorkflowBudget(),
		Reconciler:    publisher,
		Logger:        logger,
		Metrics:       recorder,
	}
	if cfg.HumanizeSingleFlight {
		humanizeCfg.Locker = cacheClient
	}
	humanizeService := service.NewHumanizeService(ledger, providerClient, poller, historyRecorder, humanizeCfg)

	router := setupRouter(routerDeps{
		cfg:         cfg,
		logger:      logger,
		health:      handler.NewHealthHandler(repo, cacheClient, logger),
		humanize:    handler.NewHumanizeHandler(humanizeService, logger),
		history:     handler.NewHistoryHandler(historyRecorder, logger),
		profile:     handler.NewProfileHandler(ledger, cacheClient, logger),
		admin:       handler.NewAdminHandler(ledger, logger),
		verifier:    auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		revocations: cacheClient,
		limiter:     cacheClient,
		gatherer:    registry,
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if cfg.ReconcileEnabled {
		worker := reconcile.NewWorker(cacheClient.Client(), ledger, logger, reconcile.NewConsumerID(), recorder)
		srv.Go("reconcile_worker", worker.Run)
		srv.OnShutdown("reconcile_worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"provider", redactURL(cfg.ProviderBaseURL),
		"single_flight", cfg.HumanizeSingleFlight,
		"admin_enabled", cfg.AdminEnabled(),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// envFiles returns the dotenv file named by ENV_FILE, or none to use the default.
func envFiles() []string {
	if f := os.Getenv("ENV_FILE"); f != "" {
		return []string{f}
	}
	return nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "humanizer")
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL drops the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError replaces secrets found in an error message with their redacted form.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
