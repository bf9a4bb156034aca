package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chatlink/auth"
	"chatlink/domain/event"
	"chatlink/gateway"
	"chatlink/presence"
	"chatlink/projection"
	"chatlink/repositories"
	"chatlink/routing"
	"chatlink/runtime/workers"
	"chatlink/typing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Core components
	store := repositories.NewMessageRepository(db, log)
	transitions := make(chan event.DomainEvent, config.PresenceBufferSize)
	registry := presence.NewRegistry(log, transitions)
	index := projection.NewIndex(log, store)
	router := routing.NewRouter(log, store, registry, index)
	receipts := routing.NewReadReceipts(log, store, registry, index)
	broker := typing.NewBroker(log, registry, config.TypingTTL)
	tokens := auth.NewTokens(config.TokenSecret, config.TokenDuration)

	handler := gateway.NewHandler(log, registry, router, receipts, broker,
		index, store, config.ConnectionBufferSize, config.HistoryLimit)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewBroadcastWorker(log, registry, transitions, config.SinkTimeout))
	sup.Add(workers.NewTelemetryWorker(log, config.TelemetryInterval))
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		sup.Run(ctx)
	}()

	// 6. HTTP Server Setup
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:    address,
		Handler: gateway.NewRouter(handler, tokens),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Forced server shutdown", "error", err)
	}
	sup.Stop()
	<-supervisorDone
	log.Info("Program stopped cleanly")

	return nil
}
