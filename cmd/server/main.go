package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"github.com/Tyrowin/gochat-live/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment alone is enough.
	_ = godotenv.Load()

	config, err := server.NewConfigFromEnv()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(strings.ToUpper(config.LogLevel))
	slog.SetDefault(log)
	server.SetConfig(config)

	hub := server.NewHub(config.Relay, log)
	server.StartHub(hub)

	mux := server.SetupRoutes(hub, config.StaticDir)
	httpServer := server.CreateServer(config.Port, mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting GoChat Live",
			"address", config.Port,
			"delivery_mode", config.Relay.DeliveryMode,
			"signaling_mode", config.Relay.SignalingMode)
		if err := server.StartServer(httpServer); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	if err := server.ShutdownServer(httpServer, config.ShutdownTimeout); err != nil {
		return err
	}
	if err := hub.Shutdown(config.ShutdownTimeout); err != nil {
		return fmt.Errorf("hub shutdown: %w", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}
