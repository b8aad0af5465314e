// Package instrument owns each team stock's current price and its bounded
// price history. Every read-modify-write of a price goes through Mutate,
// which holds a per-symbol lock for the duration, so the simulator and admin
// commands cannot lose each other's updates.
package instrument

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cogmarket/market-engine/internal/keylock"
	"github.com/cogmarket/market-engine/internal/metrics"
	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/store"
	"github.com/cogmarket/market-engine/internal/validate"
)

// Definition describes an instrument to seed.
type Definition struct {
	Symbol        string  `yaml:"symbol"`
	Name          string  `yaml:"name"`
	StartingPrice int64   `yaml:"starting_price"`
	Volatility    float64 `yaml:"volatility"`
}

// Config holds instrument store settings.
type Config struct {
	MaxHistory int           // History cap per instrument (default: 10000)
	OpTimeout  time.Duration // Per-operation bound including lock wait (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxHistory: 10000,
		OpTimeout:  5 * time.Second,
	}
}

// MutateFunc computes a new price from the current snapshot. Returning an
// error aborts the write.
type MutateFunc = func(inst model.Instrument) (int64, error)

// Service is the instrument store component.
type Service struct {
	store  store.InstrumentStore
	locks  *keylock.Locker
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Service.
func New(st store.InstrumentStore, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = def.MaxHistory
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = def.OpTimeout
	}
	return &Service{
		store:  st,
		locks:  keylock.New(),
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Seed creates any instrument in defs that does not exist yet. Existing
// instruments keep their persisted price.
func (s *Service) Seed(ctx context.Context, defs []Definition) error {
	for _, d := range defs {
		sym := validate.NormalizeSymbol(d.Symbol)
		if err := validate.Symbol(sym); err != nil {
			return err
		}
		if err := validate.Price(d.StartingPrice); err != nil {
			return fmt.Errorf("instrument %s: %w", sym, err)
		}
		if d.Volatility <= 0 {
			return fmt.Errorf("%w: instrument %s volatility must be positive", model.ErrInvalidInput, sym)
		}

		_, err := s.store.GetInstrument(ctx, sym)
		if err == nil {
			continue
		}
		if !errors.Is(err, model.ErrNotFound) {
			return model.Unavailable(err)
		}

		now := s.now()
		inst := &model.Instrument{
			Symbol:        sym,
			Name:          d.Name,
			StartingPrice: d.StartingPrice,
			CurrentPrice:  d.StartingPrice,
			Volatility:    d.Volatility,
			UpdatedAt:     now,
			History:       []model.PricePoint{{Timestamp: now, Price: d.StartingPrice}},
		}
		if err := s.store.CreateInstrument(ctx, inst); err != nil && !errors.Is(err, model.ErrConflict) {
			return model.Unavailable(err)
		}
		metrics.InstrumentPrice.WithLabelValues(sym).Set(float64(d.StartingPrice))
		s.logger.Info("instrument seeded", "symbol", sym, "price", d.StartingPrice)
	}
	return nil
}

// Get returns a snapshot without history.
func (s *Service) Get(ctx context.Context, symbol string) (*model.Instrument, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	inst, err := s.store.GetInstrument(ctx, symbol)
	if err != nil {
		return nil, s.storageErr("get", symbol, err)
	}
	return inst, nil
}

// Price returns the current price of symbol.
func (s *Service) Price(ctx context.Context, symbol string) (int64, error) {
	inst, err := s.Get(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return inst.CurrentPrice, nil
}

// All returns snapshots keyed by symbol. An empty symbols list means every
// instrument. Instruments that cannot be read are logged and omitted.
func (s *Service) All(ctx context.Context, symbols []string) (map[string]model.Instrument, error) {
	out := make(map[string]model.Instrument)
	if len(symbols) == 0 {
		list, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, inst := range list {
			out[inst.Symbol] = inst
		}
		return out, nil
	}

	for _, sym := range symbols {
		inst, err := s.Get(ctx, sym)
		if err != nil {
			s.logger.Warn("instrument omitted from snapshot", "symbol", sym, "err", err)
			continue
		}
		out[sym] = *inst
	}
	return out, nil
}

// Prices is All reduced to current prices.
func (s *Service) Prices(ctx context.Context) (map[string]int64, error) {
	all, err := s.All(ctx, nil)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]int64, len(all))
	for sym, inst := range all {
		prices[sym] = inst.CurrentPrice
	}
	return prices, nil
}

// List returns every instrument ordered by symbol.
func (s *Service) List(ctx context.Context) ([]model.Instrument, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	list, err := s.store.ListInstruments(ctx)
	if err != nil {
		return nil, s.storageErr("list", "", err)
	}
	return list, nil
}

// UpdatePrice sets the price directly, bypassing the simulator.
func (s *Service) UpdatePrice(ctx context.Context, symbol string, price int64) (*model.Instrument, error) {
	if err := validate.Price(price); err != nil {
		return nil, err
	}
	return s.Mutate(ctx, symbol, func(model.Instrument) (int64, error) {
		return price, nil
	})
}

// Reset restores the starting price and records it in the history.
func (s *Service) Reset(ctx context.Context, symbol string) (*model.Instrument, error) {
	return s.Mutate(ctx, symbol, func(inst model.Instrument) (int64, error) {
		return inst.StartingPrice, nil
	})
}

// ResetAll resets every instrument. Failures are joined; instruments that
// reset successfully are returned.
func (s *Service) ResetAll(ctx context.Context) ([]model.Instrument, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.Instrument
	var errs []error
	for _, inst := range list {
		got, err := s.Reset(ctx, inst.Symbol)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, *got)
	}
	return out, errors.Join(errs...)
}

// Mutate reads the committed instrument, bypassing any cache, computes a new price with fn and records it,
// all under the symbol's lock and within the operation timeout. The price
// is floored at 1.
func (s *Service) Mutate(ctx context.Context, symbol string, fn MutateFunc) (*model.Instrument, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	unlock, err := s.locks.LockContext(ctx, symbol)
	if err != nil {
		return nil, s.storageErr("lock", symbol, err)
	}
	defer unlock()

	inst, err := s.store.LoadInstrument(ctx, symbol)
	if err != nil {
		return nil, s.storageErr("read", symbol, err)
	}

	price, err := fn(*inst)
	if err != nil {
		return nil, err
	}
	if price < 1 {
		price = 1
	}
	if price > validate.MaxPrice {
		return nil, fmt.Errorf("%w: price %d for %s exceeds maximum %d", model.ErrOverflow, price, symbol, validate.MaxPrice)
	}

	point := model.PricePoint{Timestamp: s.now(), Price: price}
	if err := s.store.RecordPrice(ctx, symbol, point, s.cfg.MaxHistory); err != nil {
		return nil, s.storageErr("write", symbol, err)
	}

	inst.CurrentPrice = price
	inst.UpdatedAt = point.Timestamp
	metrics.InstrumentPrice.WithLabelValues(symbol).Set(float64(price))
	return inst, nil
}

// History returns the newest limit points oldest-first; limit <= 0 returns
// the whole retained history.
func (s *Service) History(ctx context.Context, symbol string, limit int) ([]model.PricePoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	h, err := s.store.PriceHistory(ctx, symbol, limit)
	if err != nil {
		return nil, s.storageErr("history", symbol, err)
	}
	return h, nil
}

func (s *Service) storageErr(op, symbol string, err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return err
	}
	s.logger.Warn("instrument storage failure", "op", op, "symbol", symbol, "err", err)
	return model.Unavailable(fmt.Errorf("%s %s: %w", op, symbol, err))
}
