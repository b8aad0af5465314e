// Package engine drives the simulation cycle: move prices, decay activity,
// then evaluate standing orders and alerts against the new prices.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cogmarket/market-engine/internal/alerts"
	"github.com/cogmarket/market-engine/internal/metrics"
	"github.com/cogmarket/market-engine/internal/orderbook"
	"github.com/cogmarket/market-engine/internal/simulator"
)

// Config holds engine configuration.
type Config struct {
	Interval        time.Duration // Cycle interval (default: 180s)
	DecayFactor     float64       // Activity decay per cycle (default: 0.95)
	TickTimeout     time.Duration // Upper bound on the price update stage (default: 60s)
	EvaluateTimeout time.Duration // Separate bound on order and alert evaluation (default: 30s)
}

// DefaultConfig returns the production cadence.
func DefaultConfig() Config {
	return Config{
		Interval:        180 * time.Second,
		DecayFactor:     0.95,
		TickTimeout:     60 * time.Second,
		EvaluateTimeout: 30 * time.Second,
	}
}

// Ticker moves every instrument's price once.
type Ticker interface {
	Tick(ctx context.Context) ([]simulator.Update, error)
}

// Decayer is the activity tracker as seen by the engine.
type Decayer interface {
	DecayAll(factor float64) error
	Snapshot() map[string]float64
}

// PriceSnapshotter reads every instrument's current price.
type PriceSnapshotter interface {
	Prices(ctx context.Context) (map[string]int64, error)
}

// OrderEvaluator executes triggered limit orders.
type OrderEvaluator interface {
	EvaluateAll(ctx context.Context, prices map[string]int64) ([]orderbook.Execution, error)
}

// AlertEvaluator fires triggered alerts.
type AlertEvaluator interface {
	EvaluateAll(ctx context.Context, prices map[string]int64) ([]alerts.Fired, error)
}

// Notifier receives the outcome of each cycle. Calls happen after the
// cycle's writes have committed and must not block for long.
type Notifier interface {
	PricesUpdated(updates []simulator.Update)
	OrdersExecuted(execs []orderbook.Execution)
	AlertsFired(fired []alerts.Fired)
}

// Components are the collaborators one cycle runs through.
type Components struct {
	Simulator Ticker
	Activity  Decayer
	Prices    PriceSnapshotter
	Orders    OrderEvaluator
	Alerts    AlertEvaluator
}

// Report summarizes one cycle.
type Report struct {
	StartedAt  time.Time             `json:"started_at"`
	Duration   time.Duration         `json:"duration"`
	Updates    []simulator.Update    `json:"updates"`
	Executions []orderbook.Execution `json:"executions"`
	Alerts     []alerts.Fired        `json:"alerts"`
	Errors     []string              `json:"errors,omitempty"`
}

// Engine runs cycles on a fixed interval. RunCycle may also be called
// directly; cycles never overlap.
type Engine struct {
	cfg      Config
	c        Components
	notifier Notifier
	logger   *slog.Logger

	cycleMu sync.Mutex
	lastMu  sync.RWMutex
	last    *Report

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Engine. notifier may be nil.
func New(cfg Config, c Components, notifier Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.DecayFactor <= 0 || cfg.DecayFactor >= 1 {
		cfg.DecayFactor = def.DecayFactor
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = def.TickTimeout
	}
	if cfg.EvaluateTimeout <= 0 {
		cfg.EvaluateTimeout = def.EvaluateTimeout
	}
	return &Engine{
		cfg:      cfg,
		c:        c,
		notifier: notifier,
		logger:   logger,
	}
}

// Start begins the cycle loop.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go e.run()

	e.logger.Info("simulation engine started",
		"interval", e.cfg.Interval,
		"decay", e.cfg.DecayFactor,
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("simulation engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.runScheduled()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.runScheduled()
		}
	}
}

func (e *Engine) runScheduled() {
	if _, err := e.RunCycle(e.ctx); err != nil && e.ctx.Err() == nil {
		e.logger.Warn("simulation cycle completed with errors", "err", err)
	}
}

// RunCycle performs one full cycle. Prices are read back from the store
// after the simulator commits, so orders and alerts see post-update
// prices. A failure in one stage is recorded and the remaining stages
// still run where they can. The price update and the evaluation stages
// each get their own timeout, so a slow tick cannot starve evaluation.
func (e *Engine) RunCycle(ctx context.Context) (*Report, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	start := time.Now()
	rep := &Report{StartedAt: start.UTC()}
	var errs []error

	tickCtx, cancelTick := context.WithTimeout(ctx, e.cfg.TickTimeout)
	updates, err := e.c.Simulator.Tick(tickCtx)
	cancelTick()
	rep.Updates = updates
	if err != nil {
		errs = append(errs, fmt.Errorf("simulate: %w", err))
	}
	if e.notifier != nil && len(updates) > 0 {
		e.notifier.PricesUpdated(updates)
	}

	if err := e.c.Activity.DecayAll(e.cfg.DecayFactor); err != nil {
		errs = append(errs, fmt.Errorf("decay activity: %w", err))
	}
	for sym, score := range e.c.Activity.Snapshot() {
		metrics.ActivityScore.WithLabelValues(sym).Set(score)
	}

	evalCtx, cancelEval := context.WithTimeout(ctx, e.cfg.EvaluateTimeout)
	defer cancelEval()

	prices, err := e.c.Prices.Prices(evalCtx)
	if err != nil {
		errs = append(errs, fmt.Errorf("read prices: %w", err))
		return e.finish(rep, start, errs, "failed")
	}

	execs, err := e.c.Orders.EvaluateAll(evalCtx, prices)
	rep.Executions = execs
	if err != nil {
		errs = append(errs, fmt.Errorf("evaluate orders: %w", err))
	}

	fired, err := e.c.Alerts.EvaluateAll(evalCtx, prices)
	rep.Alerts = fired
	if err != nil {
		errs = append(errs, fmt.Errorf("evaluate alerts: %w", err))
	}

	if e.notifier != nil {
		if len(execs) > 0 {
			e.notifier.OrdersExecuted(execs)
		}
		if len(fired) > 0 {
			e.notifier.AlertsFired(fired)
		}
	}

	outcome := "ok"
	if len(errs) > 0 {
		outcome = "partial"
	}
	return e.finish(rep, start, errs, outcome)
}

func (e *Engine) finish(rep *Report, start time.Time, errs []error, outcome string) (*Report, error) {
	rep.Duration = time.Since(start)
	for _, err := range errs {
		rep.Errors = append(rep.Errors, err.Error())
	}

	metrics.CycleDuration.Observe(rep.Duration.Seconds())
	metrics.CyclesTotal.WithLabelValues(outcome).Inc()

	e.lastMu.Lock()
	e.last = rep
	e.lastMu.Unlock()

	e.logger.Info("simulation cycle complete",
		"outcome", outcome,
		"updated", len(rep.Updates),
		"orders_executed", len(rep.Executions),
		"alerts_fired", len(rep.Alerts),
		"duration", rep.Duration,
	)
	return rep, errors.Join(errs...)
}

// LastReport returns the most recent cycle's report, or nil before the
// first cycle.
func (e *Engine) LastReport() *Report {
	e.lastMu.RLock()
	defer e.lastMu.RUnlock()
	return e.last
}
