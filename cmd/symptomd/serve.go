package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/khayyamnoor/simplechatbotapi/internal/gateway"
	"github.com/khayyamnoor/simplechatbotapi/internal/observability"
	"github.com/khayyamnoor/simplechatbotapi/pkg/config"
	obs "github.com/khayyamnoor/simplechatbotapi/pkg/observability"
	"github.com/khayyamnoor/simplechatbotapi/pkg/predict"
	"github.com/khayyamnoor/simplechatbotapi/pkg/ratelimit"
	"github.com/khayyamnoor/simplechatbotapi/pkg/security"
	"github.com/khayyamnoor/simplechatbotapi/pkg/session"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runServe(configPath)
		},
	}
	return cmd
}

func runServe(configPath string) error {
	if err := config.LoadDotenv(""); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	tracing, err := observability.NewFromEnv(logger)
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}

	predictor := buildPredictor(cfg, logger)

	limiter := ratelimit.New(ratelimit.DefaultRules())
	gate := security.NewGate(limiter, security.Config{
		ViolationThreshold: cfg.Security.ViolationThreshold,
		BanDuration:        cfg.Security.BanDuration.Duration(),
	}, logger)

	store := session.NewStore(session.Config{
		IdleTimeout:   cfg.Session.IdleTimeout.Duration(),
		SweepInterval: cfg.Session.SweepInterval.Duration(),
	}, logger)
	if err := store.StartSweeper(); err != nil {
		return fmt.Errorf("session sweeper: %w", err)
	}
	defer store.StopSweeper()

	health := obs.NewHealthChecker(version)
	health.RegisterCheck(obs.PingCheck())
	health.RegisterCheck(&obs.HealthCheck{
		Name: "session_store",
		CheckFunc: func(ctx context.Context) error {
			store.Count()
			return nil
		},
		Critical: true,
	})

	opts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithTracing(tracing),
		gateway.WithHealthChecker(health),
	}
	if cfg.MetricsEnabled() {
		opts = append(opts, gateway.WithMetrics(obs.NewMetrics()))
	}
	if cfg.Server.GlobalRate > 0 {
		opts = append(opts, gateway.WithGlobalLimiter(
			ratelimit.NewGlobal(cfg.Server.GlobalRate, cfg.Server.GlobalBurst)))
	}

	g := gateway.New(store, gate, limiter, predictor, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting symptomd", "version", version, "addr", cfg.Server.Addr)
	err = g.Serve(ctx, gateway.ServerConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:    cfg.Server.WriteTimeout.Duration(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
	})

	if shutdownErr := tracing.Shutdown(context.Background()); shutdownErr != nil {
		logger.Warn("tracing shutdown", "error", shutdownErr)
	}
	return err
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// buildPredictor assembles the dataset predictor, chained with the
// model fallback when an API key is configured.
func buildPredictor(cfg *config.Config, logger *slog.Logger) predict.Predictor {
	var records []predict.Record
	if cfg.Predictor.DatasetPath != "" {
		var err error
		records, err = predict.LoadDatasetCSV(cfg.Predictor.DatasetPath)
		if err != nil {
			logger.Warn("could not load dataset, using fallback records",
				"path", cfg.Predictor.DatasetPath, "error", err)
		}
	}
	dataset := predict.NewDatasetPredictor(records, logger)

	if cfg.Predictor.OpenAIKey == "" {
		return dataset
	}
	client := openai.NewClient(cfg.Predictor.OpenAIKey)
	model := predict.NewModelPredictor(client, cfg.Predictor.Model, cfg.Predictor.TopN, logger)
	return predict.NewChainPredictor(dataset, model, logger)
}
