package main

import (
	"context"
	"dwilive/auth"
	"dwilive/infrastructure/grpc/server"
	"dwilive/infrastructure/rest"
	"dwilive/infrastructure/socket"
	"dwilive/internal"
	"dwilive/moderation"
	"dwilive/repositories"
	"dwilive/runtime"
	"dwilive/runtime/workers"
	"dwilive/services"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Deferred cleanups always run before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
		logger.Info("Debug Badger inspector available", "url", url)
		database.StartDebugServer(db, config.DebugPort, endpoint, RecordMapper)
	}

	// 3. Domain wiring
	moderator, err := moderation.NewModerator(config.Words(), charReplacement, logger)
	if err != nil {
		return exitConfig, fmt.Errorf("moderation setup failed: %w", err)
	}
	userRepository := repositories.NewUserRepository(db)
	conversationRepository := repositories.NewConversationRepository(db)
	messageRepository := repositories.NewMessageRepository(db, userRepository, logger)
	registry := runtime.NewRegistry(logger)
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)

	chatService := services.NewChatService(
		services.NewMembershipOracle(conversationRepository),
		registry, messageRepository, conversationRepository,
		moderator, logger, config.MaxContentLength,
	)
	conversationService := services.NewConversationService(
		conversationRepository, messageRepository, userRepository, registry, logger,
		config.HistoryDefaultLimit, config.HistoryMaxLimit,
	)

	socketOpts := socket.DefaultOptions()
	socketOpts.BufferSize = config.ConnectionBufferSize

	router := rest.NewRouter(rest.Dependencies{
		Auth:          services.NewAuthService(userRepository, tokens, logger),
		Users:         services.NewUserService(userRepository),
		Conversations: conversationService,
		Resolver:      auth.NewIdentityResolver(tokens, userRepository),
		Socket:        socket.NewHandler(chatService, registry, socketOpts, logger),
	}, logger)

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	// 5. Background workers
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewStatsWorker(logger, registry, config.StatsInterval))
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 6. HTTP and websocket
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. gRPC health probes
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GrpcPort)
	grpcListener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		_ = httpServer.Close()
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	healthServer := server.NewHealthServer(logger)
	go func() {
		logger.Info("Starting gRPC health server", "address", grpcAddress)
		if err := healthServer.Serve(grpcListener); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	healthServer.SetServing(true)

	// 8. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		logger.Error("Server failure", "error", runErr)
	}

	// 9. Graceful Shutdown
	// Probes flip first so no new traffic is routed here while HTTP drains.
	logger.Info("Shutting down gracefully...")
	healthServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	stop()
	<-supDone

	if runErr != nil {
		return exitRuntime, runErr
	}
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}

// RecordMapper renders users, conversations and messages for the debug inspector.
func RecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	entry := repositories.Describe(key, val)
	row.Type = entry.Kind
	row.Detail = entry.Detail
	return row
}
