package main

import (
	"chat-realtime/auth"
	healthserver "chat-realtime/infrastructure/grpc/server"
	"chat-realtime/infrastructure/websocket"
	"chat-realtime/internal"
	"chat-realtime/moderation"
	"chat-realtime/repositories"
	"chat-realtime/runtime"
	"chat-realtime/runtime/workers"
	"chat-realtime/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns their lifecycle, so deferred cleanups
// (the database above all) run before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	censoredChar, err := internal.CharacterRune(config.ModerationCharReplacement)
	if err != nil {
		return err
	}

	// 2. Database (BadgerDB)
	db, err := repositories.Open(config.BadgerFilepath)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	store := repositories.NewStore(db, log, config.LimitMessages)

	// 3. Moderation
	dictionary, err := runtime.DefaultCensoredWords()
	if err != nil {
		return fmt.Errorf("loading censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(dictionary.Words, censoredChar, log)
	if err != nil {
		return fmt.Errorf("building moderator: %w", err)
	}
	log.Info("Moderation ready", "words", len(dictionary.Words), "languages", dictionary.Languages)

	// 4. Realtime core
	registry := runtime.NewConnectionRegistry()
	membership := runtime.NewRoomMembershipService(log)
	presence := runtime.NewPresenceBroadcaster(store, registry)
	calls := runtime.NewCallSessionManager(log, store)
	router := runtime.NewEventRouter(log, registry, membership, presence, calls, store, moderator)
	sup := workers.NewSupervisor(log, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(log, sup, registry, membership, calls, router, store,
		config.BusBufferSize)

	chatService := services.NewChatService(log, store, store, orchestrator)
	orchestrator.Bus().Subscribe(chatService)

	stats := func() map[string]any {
		s := orchestrator.Stats()
		values := map[string]any{
			"connections":  s.Connections,
			"rooms":        s.Rooms,
			"active_calls": s.ActiveCalls,
			"bus_pending":  orchestrator.Bus().Pending(),
		}
		if ps, err := workers.SelfStats(); err != nil {
			log.Warn("Failed to collect self stats", "error", err)
		} else {
			values["rss_bytes"] = ps.RSSBytes
			values["cpu_percent"] = ps.CPUPercent
			values["threads"] = ps.Threads
		}
		return values
	}
	health := healthserver.NewHealthServer(log, orchestrator.Running, time.Second)
	orchestrator.AddWorkers(
		workers.NewStatsReporter(log, config.StatsInterval, stats),
		internal.NewDebugServer(log, fmt.Sprintf("%s:%d", config.Host, config.DebugPort), store, store, stats),
		health,
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator failed to start: %w", err)
	}

	// 6. gRPC health
	healthAddress := fmt.Sprintf("%s:%d", config.Host, config.HealthPort)
	listener, err := net.Listen("tcp", healthAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", healthAddress, err)
	}
	grpcServer := grpc.NewServer()
	health.Register(grpcServer)

	// 7. Websocket transport
	attempts := auth.NewFailedAttemptTracker(config.MaxFailedAttempts, config.FailedAttemptWindow)
	verifier := auth.NewVerifier(config.JWTSecret, config.JWTIssuer)
	wsServer := websocket.NewServer(log, orchestrator, verifier, attempts, websocket.Config{
		BufferSize:        config.ConnectionBufferSize,
		SinkTimeout:       config.SinkTimeout,
		AllowedOrigins:    internal.SplitList(config.AllowedOrigins),
		UpgradesPerSecond: config.UpgradesPerSecond,
		UpgradeBurst:      int(config.UpgradesPerSecond),
	})
	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting gRPC health server", "address", healthAddress)
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		log.Info("Starting websocket server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("websocket server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		log.Error("Server failed", slog.Any("error", err))
		shutdown(log, httpServer, grpcServer, orchestrator)
		return err
	}

	shutdown(log, httpServer, grpcServer, orchestrator)
	log.Info("Program stopped cleanly")
	return nil
}

// shutdown stops accepting connections first, then closes the live ones through the orchestrator.
func shutdown(log *slog.Logger, httpServer *http.Server, grpcServer *grpc.Server, o *runtime.Orchestrator) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("Websocket server shutdown", "error", err)
	}
	o.Stop()
	grpcServer.GracefulStop()
}
