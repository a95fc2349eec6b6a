package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"appraisal/internal/platform/config"
	"appraisal/internal/platform/db"
	"appraisal/internal/transport/http/api"
	appraisalhandler "appraisal/internal/transport/http/handlers/appraisal"
	audithandler "appraisal/internal/transport/http/handlers/audit"
	jobshandler "appraisal/internal/transport/http/handlers/jobs"
	notificationshandler "appraisal/internal/transport/http/handlers/notifications"
	timershandler "appraisal/internal/transport/http/handlers/timers"
	"appraisal/internal/transport/http/middleware"
)

type App struct {
	Config   config.Config
	DB       *pgxpool.Pool
	Services *Services
	Router   http.Handler
}

type pinger interface {
	Ping(ctx context.Context) error
}

// New connects to the database, applies migrations and seed data when
// configured, and wires the services and router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, err
		}
	}
	svc, err := NewServices(pool, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &App{
		Config:   cfg,
		DB:       pool,
		Services: svc,
		Router:   NewRouter(cfg, svc, pool),
	}, nil
}

func (a *App) Close(ctx context.Context) {
	a.Services.Close(ctx)
	a.DB.Close()
}

// NewRouter mounts the API under /api/v1 along with the health and metrics
// probes. ready may be nil, in which case /readyz always fails.
func NewRouter(cfg config.Config, svc *Services, ready pinger) http.Handler {
	window := time.Minute

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(svc.HTTP))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if ready == nil || ready.Ping(ctx) != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetRequestID(r.Context())
			snap, err := svc.Metrics.Snapshot(r.Context())
			if err != nil {
				slog.Error("collect metrics failed", "err", err)
				api.Fail(w, http.StatusInternalServerError, "internal", "failed to collect metrics", reqID)
				return
			}
			api.Success(w, snap, reqID)
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, window))
		r.Use(middleware.MutationRateLimit(cfg.RateLimitPerMinute, window))

		loc := cfg.Appraisal.Location
		appraisalhandler.NewHandler(svc.Engine, svc.Perms, svc.Audit, loc).RegisterRoutes(r)
		timershandler.NewHandler(svc.Timers, svc.Perms, svc.Audit, loc).RegisterRoutes(r)
		jobshandler.NewHandler(svc.Jobs, svc.Perms, svc.Audit).RegisterRoutes(r)
		notificationshandler.NewHandler(svc.Notify).RegisterRoutes(r)
		audithandler.NewHandler(svc.Audit, svc.Perms).RegisterRoutes(r)
	})

	return router
}

// Run starts the sweep scheduler and serves HTTP until SIGINT or SIGTERM.
func Run() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}

	app.Services.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("appraisal server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown failed", "err", err)
	}
	app.Close(shutdownCtx)
	slog.Info("appraisal server stopped")
}
