// codemate - coding assistant server
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/codemate/internal/agent"
	"github.com/ashureev/codemate/internal/api"
	"github.com/ashureev/codemate/internal/config"
	"github.com/ashureev/codemate/internal/identity"
	"github.com/ashureev/codemate/internal/llm"
	"github.com/ashureev/codemate/internal/middleware"
	"github.com/ashureev/codemate/internal/sandbox"
	"github.com/ashureev/codemate/internal/session"
	"github.com/ashureev/codemate/internal/store"
	"github.com/ashureev/codemate/internal/task"
	"github.com/ashureev/codemate/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	shutdownTimeout    = 10 * time.Second
	modelProbeInterval = 30 * time.Second
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server",
		"port", cfg.Port,
		"grpc_port", cfg.GRPCPort,
		"dev", cfg.IsDevelopment(),
		"model", cfg.Model.Name,
		"sandbox_mode", cfg.Sandbox.Mode,
	)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	runner, err := sandbox.New(cfg.Sandbox, logger)
	if err != nil {
		return fmt.Errorf("initialize sandbox: %w", err)
	}
	if closer, ok := runner.(io.Closer); ok {
		defer func() {
			if closeErr := closer.Close(); closeErr != nil {
				slog.Warn("Failed to close sandbox runner", "error", closeErr)
			}
		}()
	}
	slog.Info("Sandbox runner ready", "mode", cfg.Sandbox.Mode, "timeout", cfg.Sandbox.Timeout)

	model := llm.NewClient(cfg.Model, logger)

	dispatcher := agent.NewDispatcher(agent.DispatcherOptions{
		Sessions: session.NewRegistry(cfg.Session.MaxSessions, session.DefaultHistoryLimit, cfg.Session.IdleTTL),
		Model:    model,
		Executor: task.NewExecutor(task.ExecutorOptions{
			Runner:     runner,
			SearchRoot: cfg.Tools.SearchRoot,
			FilePath:   cfg.Tools.FilePath,
			Logger:     logger,
		}),
		Turns:  repo,
		Logger: logger,
	})

	// Initialize handlers.
	chatHandler := agent.NewHandler(dispatcher, cfg)
	defer chatHandler.Close()
	conns := agent.NewConnections()
	wsHandler := agent.NewWebSocketHandler(chatHandler, conns, cfg.FrontendURL, cfg.IsDevelopment())
	healthHandler := api.NewHealthHandler(repo, api.PingFunc(model.Health), model.Model())

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	chatHandler.RegisterRoutes(r)
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded chat page (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Model calls can take up to the vision timeout, so there is no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("gRPC health server listening", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return store.RunRetention(gctx, repo, cfg.Session.TurnRetention, 0)
	})

	g.Go(func() error {
		watchModel(gctx, model, healthServer, modelProbeInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		conns.CloseAll()
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
