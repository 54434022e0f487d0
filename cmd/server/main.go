package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/viewkit/internal/bus"
	"github.com/JonMunkholm/viewkit/internal/catalog"
	"github.com/JonMunkholm/viewkit/internal/catalog/demo"
	"github.com/JonMunkholm/viewkit/internal/config"
	"github.com/JonMunkholm/viewkit/internal/logging"
	"github.com/JonMunkholm/viewkit/internal/render"
	"github.com/JonMunkholm/viewkit/internal/schema"
	"github.com/JonMunkholm/viewkit/internal/validate"
	"github.com/JonMunkholm/viewkit/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"database", cfg.Database.Enabled(),
		"page_size", cfg.Grid.PageSize,
		"require_ack", cfg.Validation.RequireAcknowledgement,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("configuration", "config", cfg.String())

	c := catalog.New()
	var schemas schema.Provider

	if cfg.Database.Enabled() {
		pool, err := connect(context.Background(), cfg)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		cached, err := schema.NewCached(schema.NewPgProvider(pool, cfg.Database.Schema), cfg.Validation.SchemaCacheSize)
		if err != nil {
			slog.Error("failed to create schema cache", "error", err)
			os.Exit(1)
		}
		schemas = cached
		demo.Register(c, pool)
	} else {
		slog.Info("no database configured, serving sample data")
		schemas = demo.Schema()
		demo.Register(c, nil)
	}

	if dir := cfg.Validation.RulesDir; dir != "" {
		keys, err := c.LoadRules(dir, validate.DefaultRegistry())
		if err != nil {
			slog.Error("failed to load validation rules", "dir", dir, "error", err)
			os.Exit(1)
		}
		slog.Info("validation rules loaded", "dir", dir, "views", keys)
	}

	slog.Info("views registered", "count", c.Count(), "groups", len(c.Groups()))
	for _, group := range c.Groups() {
		slog.Debug("view group", "group", group, "views", len(c.ByGroup(group)))
	}

	templates := render.NewRegistry()
	demo.RegisterTemplates(templates)

	events := bus.New()
	defer events.Close()

	server := web.NewServer(web.Options{
		Config:    cfg,
		Catalog:   c,
		Schemas:   schemas,
		Templates: templates,
		Bus:       events,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// connect opens the connection pool and verifies it with a ping.
func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
