package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/checkcall/internal/api"
	"github.com/MikeSquared-Agency/checkcall/internal/config"
	"github.com/MikeSquared-Agency/checkcall/internal/events"
	"github.com/MikeSquared-Agency/checkcall/internal/notify"
	"github.com/MikeSquared-Agency/checkcall/internal/processor"
	"github.com/MikeSquared-Agency/checkcall/internal/retell"
	"github.com/MikeSquared-Agency/checkcall/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("checkcall starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected")

	// Voice platform client
	retellClient := retell.NewClient(cfg.RetellAPIKey, cfg.RetellBaseURL)
	slog.Info("retell client ready", "base_url", cfg.RetellBaseURL)

	// NATS
	eventsClient, err := events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventsClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Slack poster (optional — escalations are still visible in call records)
	var poster *notify.Poster
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		poster = notify.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured — running without dispatcher alerts")
	}

	// Processor — the main pipeline
	proc := processor.New(db, retellClient, eventsClient, poster, cfg.PublicBaseURL, slog.Default())

	// Platform events can also arrive over NATS for bridged deployments.
	if err := eventsClient.Subscribe(events.SubjectPlatformEvent, proc.HandlePlatformEvent); err != nil {
		slog.Error("failed to subscribe to platform events", "error", err)
		os.Exit(1)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, proc, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("checkcall ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("checkcall stopped")
}

func setupLogging(level string) {
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
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
