package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	tfhttp "github.com/Strob0t/TripForge/internal/adapter/http"
	tfmcp "github.com/Strob0t/TripForge/internal/adapter/mcp"
	tfotel "github.com/Strob0t/TripForge/internal/adapter/otel"
	"github.com/Strob0t/TripForge/internal/adapter/ws"
	"github.com/Strob0t/TripForge/internal/config"
	"github.com/Strob0t/TripForge/internal/logger"
	"github.com/Strob0t/TripForge/internal/middleware"
)

const version = "0.1.0"

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe()
	case "plan":
		err = runPlan(args)
	case "help", "--help", "-h":
		printHelp()
	default:
		printHelp()
		err = fmt.Errorf("unknown command: %s", cmd)
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: tripforge [command] [options]

Commands:
  serve   Run the HTTP, WebSocket and MCP servers (default)
  plan    Plan a single trip from the command line
  help    Show this help message

Examples:
  tripforge serve
  tripforge plan --destination Tokyo --duration "5 days" --budget "$2000" --interests "food, temples"
`)
}

// loadConfig loads configuration and installs the configured logger. The
// returned closer flushes the async log queue.
func loadConfig() (*config.Config, logger.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, closer := logger.New(cfg.Logging)
	slog.SetDefault(log)
	return cfg, closer, nil
}

func runServe() error {
	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"providers", len(cfg.Providers),
		"search", cfg.Search.Provider,
		"rag", cfg.Retrieval.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// --- HTTP ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := tfhttp.NewMetrics(reg)

	rl := middleware.NewRateLimiter(cfg.Rate)
	rl.StartCleanup(ctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)

	handlers := &tfhttp.Handlers{
		Planner:   a.orchestrator,
		Service:   cfg.Logging.Service,
		BodyLimit: cfg.Server.BodyLimit,
		Offline:   a.client.Degraded(),
	}
	hub := ws.NewHub(a.orchestrator, cfg.Server.CORSOrigin)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(tfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(tfhttp.Logger)
	r.Use(tfotel.HTTPMiddleware(cfg.OTel.ServiceName))
	r.Use(metrics.Middleware)
	r.Use(chimw.Recoverer)

	tfhttp.MountRoutes(r, handlers, rl)
	r.With(rl.Handler).Get("/ws/plan", hub.HandlePlan)
	r.Handle("/metrics", metrics.Handler())

	// --- MCP ---
	var mcpSrv *tfmcp.Server
	if cfg.MCP.Enabled {
		mcpSrv = tfmcp.NewServer(tfmcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    cfg.Logging.Service,
			Version: version,
			APIKey:  cfg.MCP.APIKey,
		}, tfmcp.ServerDeps{
			Planner: a.orchestrator,
			Index:   a.index,
			Guides:  a.guides,
		})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "offline", a.client.Degraded(), "chain", a.client.ChainLen())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mcpSrv != nil {
		if err := mcpSrv.Stop(shutdownCtx); err != nil {
			slog.Warn("mcp shutdown failed", "error", err)
		}
	}
	return srv.Shutdown(shutdownCtx)
}
