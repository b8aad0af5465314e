package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cogmarket/market-engine/internal/activity"
	"github.com/cogmarket/market-engine/internal/admin"
	"github.com/cogmarket/market-engine/internal/alerts"
	"github.com/cogmarket/market-engine/internal/config"
	"github.com/cogmarket/market-engine/internal/cooldown"
	"github.com/cogmarket/market-engine/internal/engine"
	"github.com/cogmarket/market-engine/internal/instrument"
	"github.com/cogmarket/market-engine/internal/ledger"
	"github.com/cogmarket/market-engine/internal/metrics"
	"github.com/cogmarket/market-engine/internal/orderbook"
	"github.com/cogmarket/market-engine/internal/risk"
	"github.com/cogmarket/market-engine/internal/simulator"
	"github.com/cogmarket/market-engine/internal/store"
	"github.com/cogmarket/market-engine/internal/trade"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.LoadAndValidate(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("market-engine failed", "err", err)
		os.Exit(1)
	}
	fmt.Println("market-engine stopped")
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.SlogLevel()}
	if lc.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	st, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// --- Market components ---
	prices := instrument.New(st, instrument.Config{
		MaxHistory: cfg.Market.HistoryCap,
		OpTimeout:  cfg.Market.OpTimeout,
	}, logger)
	if err := prices.Seed(ctx, cfg.Market.Instruments); err != nil {
		return fmt.Errorf("seed instruments: %w", err)
	}

	symbols := make([]string, 0, len(cfg.Market.Instruments))
	for _, d := range cfg.Market.Instruments {
		symbols = append(symbols, d.Symbol)
	}
	act := activity.New(symbols...)

	seed := time.Now().UnixNano()
	if cfg.Simulation.Seed != nil {
		seed = *cfg.Simulation.Seed
	}
	sim := simulator.New(cfg.Simulation.Params, prices, act, rand.New(rand.NewSource(seed)), logger)

	l := ledger.New(st, ledger.Config{StartingBalance: cfg.Market.StartingBalance}, logger)
	halts := cooldown.New(st)
	book := orderbook.New(st, l, prices, halts, cfg.Orders.DefaultTTL, logger)
	reg := alerts.New(st, prices, cfg.Alerts.MaxPerUser, logger)
	limiter := risk.NewPositionLimiter(cfg.Risk.PreventsOwnTeam(), cfg.Risk.MaxOwnTeamShares)

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub(logger)

	// --- Simulation engine ---
	eng := engine.New(engine.Config{
		Interval:        cfg.Market.UpdateInterval,
		DecayFactor:     cfg.Simulation.ActivityDecay,
		TickTimeout:     cfg.Market.TickTimeout,
		EvaluateTimeout: cfg.Market.EvaluateTimeout,
	}, engine.Components{
		Simulator: sim,
		Activity:  act,
		Prices:    prices,
		Orders:    book,
		Alerts:    reg,
	}, wsHub, logger)

	adminSvc := admin.New(admin.Config{
		EventCooldown:   cfg.Admin.EventCooldown,
		HeatBuff:        decimal.NewFromFloat(cfg.Admin.HeatBuff),
		RatingMaxImpact: decimal.NewFromFloat(cfg.Admin.RatingMaxImpact),
	}, admin.Deps{
		Instruments: prices,
		Activity:    act,
		Momentum:    sim,
		Balances:    l,
		Halts:       halts,
		Cycler:      eng,
		Audit:       st,
	}, logger)

	// --- Trade service ---
	tradeSvc := trade.NewService(trade.Deps{
		Instruments: prices,
		Activity:    act,
		Ledger:      l,
		Orders:      book,
		Alerts:      reg,
		Halts:       halts,
		Limiter:     limiter,
		Admin:       adminSvc,
	}, wsHub, cfg.Admin.Token, logger)
	if cfg.Admin.Token == "" {
		logger.Warn("ADMIN_TOKEN not set, admin API disabled")
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(metrics.Middleware)

	r.Get("/health", healthHandler(eng))

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", tradeSvc.Mount)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})

	if err := eng.Start(gctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	g.Go(func() error {
		logger.Info("market-engine listening", "port", cfg.Server.Port, "instruments", len(symbols))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	// Graceful shutdown.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down market-engine...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := eng.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("engine stop: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// openStore picks PostgreSQL (optionally behind Redis) when DATABASE_URL is
// set, the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	var cleanup []func()
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		return store.NewMemoryStore(), closeAll, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	cleanup = append(cleanup, pool.Close)
	if err := pool.Ping(ctx); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("database ping: %w", err)
	}

	pg := store.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("connected to PostgreSQL", "max_conns", poolCfg.MaxConns)

	var st store.Store = pg

	// Wrap with Redis read-through cache if configured.
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = store.NewCachedStore(st, rdb, cfg.Redis.CacheTTL, logger)
		logger.Info("Redis cache enabled", "ttl", cfg.Redis.CacheTTL)
	}
	return st, closeAll, nil
}

func healthHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"status": "ok", "service": "market-engine"}
		if rep := eng.LastReport(); rep != nil {
			body["last_cycle"] = map[string]any{
				"started_at": rep.StartedAt,
				"duration":   rep.Duration.String(),
				"updates":    len(rep.Updates),
				"errors":     rep.Errors,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}
