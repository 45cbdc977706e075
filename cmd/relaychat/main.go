package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	pbconfig "github.com/voicetyped/profilebot/config"
	"github.com/voicetyped/profilebot/internal/relay/client"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[pbconfig.ClientConfig]()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// stdout carries the chat, so logs go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Options{
		Endpoint: cfg.Endpoint,
		Secret:   cfg.DirectLineSecret,
		UserID:   cfg.UserID,
		Timeout:  cfg.HTTPTimeout,
	})

	err = client.RunConsole(ctx, c, os.Stdin, os.Stdout, client.ConsoleOptions{
		PollInterval: cfg.PollInterval,
	})
	if err != nil && ctx.Err() == nil {
		log.Fatalf("chat: %v", err)
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
