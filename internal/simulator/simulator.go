// Package simulator computes each cycle's new instrument prices from a
// random walk, social activity, carried momentum and mean reversion.
//
// Momentum lives only in memory. A restart resets every instrument's trend
// to zero.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cogmarket/market-engine/internal/metrics"
	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/money"
)

// Params are the tunable coefficients of Step.
type Params struct {
	ActivityImpact          float64 `yaml:"activity_impact"`
	MomentumImpact          float64 `yaml:"momentum_impact"`
	MomentumPersistence     float64 `yaml:"momentum_persistence"`
	MomentumBlend           float64 `yaml:"momentum_blend"`
	MeanReversion           float64 `yaml:"mean_reversion"`
	MaxVolatilityMultiplier float64 `yaml:"max_volatility_multiplier"`
}

// DefaultParams returns the coefficients the market has always run with.
func DefaultParams() Params {
	return Params{
		ActivityImpact:          0.001,
		MomentumImpact:          0.3,
		MomentumPersistence:     0.3,
		MomentumBlend:           0.7,
		MeanReversion:           0.01,
		MaxVolatilityMultiplier: 6,
	}
}

// Inputs are the per-instrument values Step reads.
type Inputs struct {
	CurrentPrice  int64
	StartingPrice int64
	Volatility    float64
	Activity      float64
}

// Result is the output of one Step.
type Result struct {
	NewPrice    int64
	Momentum    float64
	TotalChange float64
}

// Step computes the next price. draw is a standard normal variate; it is
// scaled by the instrument's volatility. Step is pure.
func Step(p Params, in Inputs, momentum, draw float64) Result {
	sigma := in.Volatility
	randomChange := draw * sigma
	activityImpact := in.Activity * p.ActivityImpact
	momentumImpact := momentum * p.MomentumImpact

	next := (randomChange+activityImpact)*p.MomentumBlend + momentum*p.MomentumPersistence

	var meanRev float64
	if in.StartingPrice > 0 {
		dev := float64(in.CurrentPrice-in.StartingPrice) / float64(in.StartingPrice)
		meanRev = -dev * p.MeanReversion
	}

	total := randomChange + activityImpact + momentumImpact + meanRev
	bound := sigma * p.MaxVolatilityMultiplier
	total = math.Max(-bound, math.Min(bound, total))

	newPrice := in.CurrentPrice + int64(math.Floor(float64(in.CurrentPrice)*total))
	if newPrice < 1 {
		newPrice = 1
	}
	return Result{NewPrice: newPrice, Momentum: next, TotalChange: total}
}

// NormalSource supplies standard normal variates. *rand.Rand satisfies it.
type NormalSource interface {
	NormFloat64() float64
}

// PriceStore is the part of the instrument store the simulator writes through.
type PriceStore interface {
	List(ctx context.Context) ([]model.Instrument, error)
	Mutate(ctx context.Context, symbol string, fn func(model.Instrument) (int64, error)) (*model.Instrument, error)
}

// ActivitySource reports the activity score of an instrument.
type ActivitySource interface {
	Score(symbol string) float64
}

// Update is one committed price change.
type Update struct {
	Symbol    string          `json:"symbol"`
	OldPrice  int64           `json:"old_price"`
	NewPrice  int64           `json:"new_price"`
	Change    decimal.Decimal `json:"change_percent"`
	Timestamp time.Time       `json:"timestamp"`
}

// Simulator owns the momentum state and runs one pass per Tick.
type Simulator struct {
	params   Params
	prices   PriceStore
	activity ActivitySource
	logger   *slog.Logger

	mu       sync.Mutex // guards rng and momentum; also serializes Tick
	rng      NormalSource
	momentum map[string]float64
}

// New creates a Simulator. A nil rng seeds one from the clock.
func New(p Params, prices PriceStore, activity ActivitySource, rng NormalSource, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		params:   p,
		prices:   prices,
		activity: activity,
		logger:   logger,
		rng:      rng,
		momentum: make(map[string]float64),
	}
}

// Tick runs one pass over every instrument. Instruments whose write fails
// are skipped with their momentum unchanged; their errors are joined into
// the returned error alongside the committed updates.
func (s *Simulator) Tick(ctx context.Context) ([]Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.prices.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}

	var updates []Update
	var errs []error
	for _, inst := range list {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		var res Result
		var old int64
		committed, err := s.prices.Mutate(ctx, inst.Symbol, func(cur model.Instrument) (int64, error) {
			old = cur.CurrentPrice
			res = Step(s.params, Inputs{
				CurrentPrice:  cur.CurrentPrice,
				StartingPrice: cur.StartingPrice,
				Volatility:    cur.Volatility,
				Activity:      s.activity.Score(cur.Symbol),
			}, s.momentum[cur.Symbol], s.rng.NormFloat64())
			return res.NewPrice, nil
		})
		if err != nil {
			s.logger.Warn("instrument skipped this cycle", "symbol", inst.Symbol, "err", err)
			metrics.InstrumentsSkipped.WithLabelValues(inst.Symbol).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", inst.Symbol, err))
			continue
		}

		s.momentum[inst.Symbol] = res.Momentum
		updates = append(updates, Update{
			Symbol:    inst.Symbol,
			OldPrice:  old,
			NewPrice:  committed.CurrentPrice,
			Change:    money.PercentChange(old, committed.CurrentPrice),
			Timestamp: committed.UpdatedAt,
		})
		s.logger.Debug("price updated",
			"symbol", inst.Symbol,
			"old", old,
			"new", committed.CurrentPrice,
			"total_change", res.TotalChange,
			"momentum", res.Momentum,
		)
	}
	return updates, errors.Join(errs...)
}

// Momentum returns the carried momentum for symbol.
func (s *Simulator) Momentum(symbol string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.momentum[symbol]
}

// ResetMomentum clears every instrument's momentum.
func (s *Simulator) ResetMomentum() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.momentum = make(map[string]float64)
}
