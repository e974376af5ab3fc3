// Honeypot engagement server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/honeypot/internal/api"
	"github.com/ashureev/honeypot/internal/config"
	"github.com/ashureev/honeypot/internal/engine"
	"github.com/ashureev/honeypot/internal/feed"
	"github.com/ashureev/honeypot/internal/honeypot"
	"github.com/ashureev/honeypot/internal/memory"
	"github.com/ashureev/honeypot/internal/middleware"
	"github.com/ashureev/honeypot/internal/responder"
	"github.com/ashureev/honeypot/internal/session"
	"github.com/ashureev/honeypot/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "archive", cfg.Archive, "reply_agent", cfg.ReplyEnabled())

	rules := engine.DefaultRules()
	if cfg.RulesPath != "" {
		loaded, err := engine.LoadRules(cfg.RulesPath)
		if err != nil {
			return err
		}
		rules = loaded
		slog.Info("Engine rules loaded", "path", cfg.RulesPath)
	}

	sessions := session.NewMemoryStore()
	mem := memory.NewIndex()
	eng := engine.New(sessions, mem, engine.WithRules(rules), engine.WithLogger(logger))

	opts := []honeypot.Option{
		honeypot.WithLogger(logger),
		honeypot.WithPersona(cfg.Reply.Persona),
	}

	var db api.Pinger
	if cfg.Archive {
		repo, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()
		if err := repo.Ping(context.Background()); err != nil {
			return err
		}
		slog.Info("Database connected", "path", cfg.DBPath)
		db = repo
		opts = append(opts, honeypot.WithArchive(repo))
	}

	if cfg.ReplyEnabled() {
		client, err := responder.NewGrpcClient(responder.GrpcClientConfig{
			Address:        cfg.Reply.Addr,
			Persona:        cfg.Reply.Persona,
			RequestTimeout: cfg.Reply.Timeout,
		}, logger)
		if err != nil {
			slog.Warn("Failed to connect to reply agent, using rule replies", "error", err)
		} else {
			defer client.Close()
			opts = append(opts, honeypot.WithResponder(client))
		}
	}

	convLog, err := honeypot.NewConversationLogger(honeypot.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return err
	}
	opts = append(opts, honeypot.WithConversationLogger(convLog))

	hub := feed.NewHub(feed.DefaultBuffer, logger)
	defer hub.Close()
	opts = append(opts, honeypot.WithFeed(hub))

	svc := honeypot.NewService(eng, sessions, mem, opts...)
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			slog.Error("Failed to close service", "error", closeErr)
		}
	}()

	if err := svc.RestoreMemory(context.Background()); err != nil {
		return err
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	r := api.NewRouter(api.RouterConfig{
		Service:         svc,
		DB:              db,
		Feed:            feed.NewHandler(hub, cfg.CORSOrigins),
		CORSOrigins:     cfg.CORSOrigins,
		RateLimit:       limiter,
		MaxRequestBytes: cfg.MaxRequestBytes,
	})

	// The feed websocket is long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Archive {
		g.Go(func() error {
			return svc.RunRetention(gctx, cfg.SessionRetention, honeypot.DefaultRetentionInterval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		// Ends feed handlers; Shutdown does not track hijacked connections.
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
