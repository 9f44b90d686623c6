// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/jsonvault/internal/api"
	"github.com/starford/jsonvault/internal/bridge"
	"github.com/starford/jsonvault/internal/docservice"
	"github.com/starford/jsonvault/internal/index"
	"github.com/starford/jsonvault/internal/mcpserver"
	"github.com/starford/jsonvault/internal/models"
	"github.com/starford/jsonvault/internal/sse"
	"github.com/starford/jsonvault/internal/storage"
)

// Version is reported by the CLI and the MCP server.
const Version = "0.3.0"

// ErrCommandFailed is returned by Exec when the bridge reports a failure.
var ErrCommandFailed = errors.New("command failed")

// runtime holds the components shared by every entry point.
type runtime struct {
	logger *slog.Logger
	store  *storage.Store
	db     *index.DB
	svc    *docservice.Service
	bridge *bridge.Dispatcher
}

func (rt *runtime) Close() {
	if rt.db != nil {
		rt.db.Close()
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// newRuntime opens the store and the catalog. A catalog that cannot be
// opened is logged and skipped; documents stay fully usable without it.
func newRuntime(cfg *Config, logger *slog.Logger, svcOpts ...docservice.Option) (*runtime, error) {
	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Roots())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	rt := &runtime{logger: logger, store: store}
	opts := []docservice.Option{docservice.WithLogger(logger)}

	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		logger.Warn("catalog unavailable", slog.String("path", cfg.Index.Path), slog.String("error", err.Error()))
	} else {
		rt.db = db
		opts = append(opts, docservice.WithCatalog(db))
	}

	rt.svc = docservice.NewService(store, append(opts, svcOpts...)...)
	rt.bridge = bridge.New(rt.svc, logger)
	return rt, nil
}

// startRuntime is newRuntime followed by a catalog sync, so documents that
// were written while nothing was running are searchable from the start.
func startRuntime(cfg *Config, logger *slog.Logger, svcOpts ...docservice.Option) (*runtime, error) {
	rt, err := newRuntime(cfg, logger, svcOpts...)
	if err != nil {
		return nil, err
	}
	if rt.db != nil {
		if err := index.Sync(rt.db, rt.store, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}
	return rt, nil
}

// Run starts the HTTP server, the watcher and the change feed.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(app.stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("synced_path", cfg.Storage.SyncedPath),
		slog.String("private_path", cfg.Storage.PrivatePath),
		slog.String("index_path", cfg.Index.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(cfg.Events.Throttle)
	defer broker.Close()

	rt, err := startRuntime(cfg, logger, docservice.WithEvents(broker.PublishDocumentEvent))
	if err != nil {
		return err
	}
	defer rt.Close()

	if !rt.store.Available(models.Synced) {
		logger.Warn("synced tier unavailable, synced calls will fail")
	}

	apiRouter := api.NewRouter(rt.svc, rt.bridge, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.CORSMiddleware(cfg.App.CORS.AllowedOrigins))

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(rt.store))

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	if cfg.Watch.Enabled && rt.db != nil {
		g.Go(func() error {
			if err := index.Watch(gCtx, rt.db, rt.store, logger, broker.PublishDocumentEvent); err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// readyHandler reports ready once the private root can be listed.
func readyHandler(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := store.List(models.Private, ""); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.stderr, app.config.App.LogLevel)
	slog.SetDefault(logger)

	rt, err := startRuntime(app.config, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc, rt.bridge, Version).ServeStdio()
}

// Exec runs a single bridge command and writes its JSON result to stdout.
// It returns ErrCommandFailed when the result reports a failure.
func Exec(ctx context.Context, command string, args []string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.stderr, app.config.App.LogLevel)

	rt, err := newRuntime(app.config, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	res := rt.bridge.Execute(ctx, command, bridge.StringArgs(args...))
	enc := json.NewEncoder(app.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("%s: %w", command, ErrCommandFailed)
	}
	return nil
}
