package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/foomo/sitemap-mcp/api"
	"github.com/foomo/sitemap-mcp/config"
	"github.com/foomo/sitemap-mcp/mcp"
	"github.com/foomo/sitemap-mcp/reconcile"
	"github.com/foomo/sitemap-mcp/service"
	"github.com/foomo/sitemap-mcp/service/vo"
	"github.com/foomo/sitemap-mcp/store"
	"github.com/foomo/sitemap-mcp/wordpress"
)

// application is the wired object graph shared by all commands.
type application struct {
	config  *config.Config
	logger  *zap.Logger
	db      *store.DB
	service service.Service
}

func newApplication(cmd *cli.Command) (*application, error) {
	cfg := config.NewDefaultConfig()
	if err := config.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(cfg.App.LogLevel)
	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("configuration loaded",
		zap.String("http_address", cfg.App.HTTP.Address()),
		zap.String("sqlite_path", cfg.SQLite.Path),
		zap.String("mcp_endpoint", cfg.MCP.Endpoint),
		zap.Stringer("log_level", cfg.App.LogLevel),
	)

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Crawler.Timeout}
	client := wordpress.NewClient(httpClient, logger, wordpress.WithRelays(cfg.Crawler.WordPressRelays()...))
	engine := reconcile.NewEngine(client, logger)
	svc := service.NewService(engine, db, logger,
		service.WithHTTPClient(httpClient),
		service.WithContentSelector(cfg.Crawler.ContentSelector),
	)

	return &application{config: cfg, logger: logger, db: db, service: svc}, nil
}

func (a *application) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func serve(ctx context.Context, cmd *cli.Command) error {
	app, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	cfg, logger := app.config, app.logger

	mcpServer := mcp.NewServer(app.service, logger)
	mcpHandler := mcp.NewMcpHTTPSSEServer(logger, mcpServer, app.service, cfg.MCP.Endpoint, nil)
	defer mcpHandler.GetSSEServer().Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", health)
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := app.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		health(w, r)
	})
	r.Mount("/api", api.NewRouter(app.service, logger))
	r.Mount(cfg.MCP.Endpoint, mcpHandler)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", zap.String("address", httpServer.Addr))
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
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// open SSE streams block Shutdown until they end
		mcpHandler.GetSSEServer().Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("application error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func stdio(_ context.Context, cmd *cli.Command) error {
	app, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	app.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(mcp.NewServer(app.service, app.logger))
}

func crawl(ctx context.Context, cmd *cli.Command) error {
	app, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := vo.CrawlConfig{
		URL:             cmd.String("url"),
		IncludePages:    !cmd.Bool("no-pages"),
		IncludePosts:    cmd.Bool("posts"),
		IncludeMarkdown: cmd.Bool("markdown"),
		Username:        cmd.String("username"),
		AppPassword:     cmd.String("app-password"),
	}
	pages, err := app.service.Crawl(ctx, cmd.String("project"), cfg, reconcile.WithProgress(func(p reconcile.Progress) {
		app.logger.Info("crawl progress", zap.String("stage", string(p.Stage)), zap.Int("items", p.Items), zap.Int("round", p.Round))
	}))
	if err != nil {
		return errors.New(service.UserMessage(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(pages)
}
