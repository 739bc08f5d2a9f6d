package main

import (
	"context"
	"fmt"
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

	"github.com/ledgerly/networth-engine/internal/config"
	"github.com/ledgerly/networth-engine/internal/metrics"
	"github.com/ledgerly/networth-engine/internal/parser"
	"github.com/ledgerly/networth-engine/internal/portfolio"
	"github.com/ledgerly/networth-engine/internal/rates"
	"github.com/ledgerly/networth-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()
	ping := func(context.Context) error { return nil }

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("database migration failed", "err", err)
			os.Exit(1)
		}
		st, ping = pg, pg.Ping
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
			slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL.String())
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

	// --- Fallback user directory ---
	var users store.UserLookup = st
	if cfg.FallbackUsersDSN != "" {
		dir, err := store.OpenUserDirectory(cfg.FallbackUsersDSN)
		if err != nil {
			slog.Error("user directory unavailable", "err", err)
			os.Exit(1)
		}
		if cfg.SeedDemoUser {
			if err := dir.SeedDemo(ctx, time.Now().UTC()); err != nil {
				slog.Error("seeding demo user failed", "err", err)
				os.Exit(1)
			}
			slog.Info("demo user available", "id", store.DemoUser.ID)
		}
		users = store.NewTieredUsers(st, dir)
	}

	// --- Exchange rates ---
	var fetcher rates.Fetcher
	if cfg.RatesURL != "" {
		fetcher = rates.NewHTTPFetcher(&http.Client{Timeout: cfg.RatesTimeout}, cfg.RatesURL, cfg.RatesJSONPath)
	} else {
		slog.Warn("RATES_URL not set, valuations use stored and manual rates only")
	}
	provider := rates.NewProvider(fetcher, st, cfg.RatesRefresh, cfg.RatesTimeout)
	go provider.Run(ctx, cfg.BaseCurrency)

	// --- Text parser ---
	textParser, err := parser.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ReportingCurrency)
	if err != nil {
		slog.Error("text parser setup failed", "err", err)
		os.Exit(1)
	}

	// --- WebSocket hub ---
	wsHub := portfolio.NewWSHub()
	go wsHub.Run(ctx)

	// --- Portfolio service ---
	svc := portfolio.NewService(portfolio.Deps{
		Store:             st,
		Users:             users,
		Rates:             provider,
		Parser:            textParser,
		Hub:               wsHub,
		BaseCurrency:      cfg.BaseCurrency,
		ReportingCurrency: cfg.ReportingCurrency,
	})

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
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
		if err := ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","service":"networth-engine"}`))
			return
		}
		w.Write([]byte(`{"status":"ok","service":"networth-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	// Users, records, valuation, goals, rates, parsing and the WebSocket feed.
	r.Route("/api/v1", svc.Register)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("networth-engine listening", "port", cfg.Port, "env", cfg.Env,
			"base_currency", cfg.BaseCurrency, "reporting_currency", cfg.ReportingCurrency)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down networth-engine...")
	stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("networth-engine stopped")
}
