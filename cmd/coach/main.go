package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/DarrylTHJ/derivcoach/internal/api"
	"github.com/DarrylTHJ/derivcoach/internal/coach"
	"github.com/DarrylTHJ/derivcoach/internal/config"
	"github.com/DarrylTHJ/derivcoach/internal/feed"
	"github.com/DarrylTHJ/derivcoach/internal/metrics"
	"github.com/DarrylTHJ/derivcoach/internal/pattern"
	"github.com/DarrylTHJ/derivcoach/internal/relay"
	"github.com/DarrylTHJ/derivcoach/internal/session"
	"github.com/DarrylTHJ/derivcoach/internal/store"
)

// feedTerminator ends the monitoring session by stopping the Deriv feed.
// Used when a forced pause expires without being dismissed.
type feedTerminator struct {
	listener *feed.Listener
}

func (t *feedTerminator) TerminateSession() {
	slog.Warn("session terminated: forced pause expired")
	go t.listener.Stop()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("starting deriv coach",
		"ws_url", cfg.DerivWSURL,
		"app_id", cfg.DerivAppID,
		"token", cfg.MaskedToken(),
		"harsh_mode", cfg.HarshMode,
	)

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket hub for dashboard clients ---
	hub := api.NewHub()
	go hub.Run()
	presenter := api.NewHubPresenter(hub)

	// --- Deriv feed ---
	events := make(chan feed.Event, 64)
	listener := feed.NewListener(cfg.DerivWSURL, cfg.DerivAppID, cfg.DerivAPIToken, cfg.PingInterval, events)

	// --- Coaching pipeline ---
	pause := coach.NewPauseController(cfg.StopCountdown, cfg.HarshMode, &feedTerminator{listener: listener}, presenter)
	coachClient := coach.NewClient(cfg.CoachAPIURL, cfg.CoachTimeout)
	relayClient := relay.NewClient(cfg.SyncAPIURL)
	dispatcher := coach.NewDispatcher(coachClient, presenter, pause, relayClient, st)

	// --- Session engine ---
	detector := pattern.NewDetector(cfg.LossWarningThreshold, cfg.LossAlertThreshold, cfg.RevengeWindow)
	engine := session.NewEngine(detector, dispatcher, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go engine.Run(ctx, events)
	listener.Start(ctx)

	// --- Dashboard service ---
	svc := api.NewService(st, engine, pause)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for dashboard cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"deriv-coach"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time coaching messages.
		r.Get("/ws", hub.HandleWS)

		// Live status.
		r.Get("/status", svc.GetStatus)

		// Session history.
		r.Get("/sessions", svc.ListSessions)
		r.Get("/sessions/{sessionID}", svc.GetSession)
		r.Get("/sessions/{sessionID}/events", svc.GetSessionEvents)

		// Forced pause control.
		r.Post("/pause/dismiss", svc.DismissPause)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("deriv-coach listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")

	listener.Stop()
	cancel()
	dispatcher.Wait()
	relayClient.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "err", err)
	}

	slog.Info("stopped")
}
