// Package internal provides the main application initialization and runtime logic.
package internal

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
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/docket/internal/api"
	"github.com/starford/docket/internal/docservice"
	"github.com/starford/docket/internal/inbox"
	"github.com/starford/docket/internal/mcpserver"
	"github.com/starford/docket/internal/sse"
	"github.com/starford/docket/internal/storage"
	"github.com/starford/docket/internal/store"
)

var errConfigRequired = errors.New("config is required")

// OpenStore opens the configured store file, creating it first when the
// configuration allows.
func OpenStore(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (*store.Store, error) {
	opts := []store.Option{store.WithLogger(logger)}
	if cfg.LockTimeout > 0 {
		opts = append(opts, store.WithLockTimeout(cfg.LockTimeout))
	}
	st, err := store.Open(ctx, cfg.Path, opts...)
	if errors.Is(err, os.ErrNotExist) && cfg.CreateIfMissing {
		logger.Info("Creating store", slog.String("path", cfg.Path))
		st, err = store.Create(ctx, cfg.Path, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// OpenService opens the store and wraps it in a document service.
func OpenService(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...docservice.Option) (*docservice.Service, error) {
	st, err := OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	opts = append([]docservice.Option{
		docservice.WithLogger(logger),
		docservice.WithPreview(cfg.Preview.CacheSize, cfg.Preview.Chars),
	}, opts...)
	svc, err := docservice.NewService(st, opts...)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init service: %w", err)
	}
	return svc, nil
}

// Run starts the HTTP server and, when enabled, the inbox watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(cfg.App, os.Stdout)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	svc, err := OpenService(ctx, cfg, logger, docservice.WithEvents(broker))
	if err != nil {
		return err
	}
	defer svc.Store().Close()

	var importer *inbox.Importer
	if cfg.Inbox.Enabled {
		if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		files, err := storage.NewFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		importer = inbox.New(svc, files, cfg.Inbox.ArchiveDir, logger)
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(fmt.Sprintf(`{"status":"ok","tags":%d,"clients":%d}`,
			svc.Store().Forest().Len(), broker.ClientCount())))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if importer != nil {
		g.Go(func() error {
			return importer.Watch(gCtx, cfg.Inbox.Path)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

// errShutdown cancels the group so the inbox watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger
	if logger == nil {
		logger = NewLogger(app.config.App, os.Stderr)
	}
	slog.SetDefault(logger)

	svc, err := OpenService(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer svc.Store().Close()

	logger.Info("Serving MCP on stdio", slog.String("store_path", app.config.Store.Path))
	return mcpserver.New(svc).ServeStdio()
}
