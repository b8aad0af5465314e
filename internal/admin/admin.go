// Package admin implements privileged market operations. Every action is
// written to the admin audit log after it takes effect.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cogmarket/market-engine/internal/engine"
	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/money"
	"github.com/cogmarket/market-engine/internal/store"
	"github.com/cogmarket/market-engine/internal/validate"
)

// Audit log action names.
const (
	ActionSetPrice      = "SETPRICE"
	ActionResetPrice    = "RESETPRICE"
	ActionResetMarket   = "RESETMARKET"
	ActionHeat          = "HEAT"
	ActionRateBuild     = "RATEBUILD"
	ActionGive          = "GIVE"
	ActionTake          = "TAKE"
	ActionCooldown      = "COOLDOWN"
	ActionLiftCooldown  = "UNCOOLDOWN"
	ActionResetActivity = "RESETACTIVITY"
	ActionRunCycle      = "MARKETUPDATE"
)

// heatActivityBoost is the number of activity increments a HEAT adds.
const heatActivityBoost = 3

// Config holds admin tunables.
type Config struct {
	EventCooldown   time.Duration
	HeatBuff        decimal.Decimal
	RatingMaxImpact decimal.Decimal
}

// DefaultConfig returns the stock event settings.
func DefaultConfig() Config {
	return Config{
		EventCooldown:   time.Hour,
		HeatBuff:        decimal.RequireFromString("0.25"),
		RatingMaxImpact: decimal.RequireFromString("0.15"),
	}
}

// Instruments is the instrument store as seen by admin operations.
type Instruments interface {
	Price(ctx context.Context, symbol string) (int64, error)
	UpdatePrice(ctx context.Context, symbol string, price int64) (*model.Instrument, error)
	Reset(ctx context.Context, symbol string) (*model.Instrument, error)
	ResetAll(ctx context.Context) ([]model.Instrument, error)
	Mutate(ctx context.Context, symbol string, fn func(model.Instrument) (int64, error)) (*model.Instrument, error)
}

// Activity is the activity tracker.
type Activity interface {
	Increment(symbol string) bool
	ResetAll()
}

// MomentumResetter clears simulator momentum.
type MomentumResetter interface {
	ResetMomentum()
}

// Balances adjusts account balances.
type Balances interface {
	AdjustBalance(ctx context.Context, userID string, delta int64, txType model.TransactionType) (*model.Account, error)
}

// Halts sets and lifts trade cooldowns.
type Halts interface {
	Set(ctx context.Context, symbol string, d time.Duration) (time.Time, error)
	Clear(ctx context.Context, symbol string) error
}

// Cycler runs a simulation cycle on demand.
type Cycler interface {
	RunCycle(ctx context.Context) (*engine.Report, error)
}

// Deps are the components admin operations act on.
type Deps struct {
	Instruments Instruments
	Activity    Activity
	Momentum    MomentumResetter
	Balances    Balances
	Halts       Halts
	Cycler      Cycler
	Audit       store.AuditStore
}

// MarketEvent is the outcome of a HEAT or build rating.
type MarketEvent struct {
	Symbol        string          `json:"symbol"`
	OldPrice      int64           `json:"old_price"`
	NewPrice      int64           `json:"new_price"`
	Change        decimal.Decimal `json:"change_percent"`
	CooldownUntil time.Time       `json:"cooldown_until"`
}

// Service performs admin operations.
type Service struct {
	cfg    Config
	d      Deps
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Service. Zero fields in cfg take their defaults.
func New(cfg Config, d Deps, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.EventCooldown <= 0 {
		cfg.EventCooldown = def.EventCooldown
	}
	if !cfg.HeatBuff.IsPositive() {
		cfg.HeatBuff = def.HeatBuff
	}
	if !cfg.RatingMaxImpact.IsPositive() {
		cfg.RatingMaxImpact = def.RatingMaxImpact
	}
	return &Service{
		cfg:    cfg,
		d:      d,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetPrice sets symbol's price directly.
func (s *Service) SetPrice(ctx context.Context, adminID, symbol string, price int64) (*model.Instrument, error) {
	symbol = validate.NormalizeSymbol(symbol)
	inst, err := s.d.Instruments.UpdatePrice(ctx, symbol, price)
	if err != nil {
		return nil, err
	}
	s.record(ctx, adminID, ActionSetPrice, "",
		fmt.Sprintf("Set %s price to %s (%d Spurs)", symbol, money.Format(price), price))
	return inst, nil
}

// ResetPrice restores symbol's starting price.
func (s *Service) ResetPrice(ctx context.Context, adminID, symbol string) (*model.Instrument, error) {
	symbol = validate.NormalizeSymbol(symbol)
	inst, err := s.d.Instruments.Reset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	s.record(ctx, adminID, ActionResetPrice, "",
		fmt.Sprintf("Reset %s to starting price %s", symbol, money.Format(inst.CurrentPrice)))
	return inst, nil
}

// ResetMarket restores every starting price and clears activity and
// momentum. Instruments that failed to reset are reported in the error.
func (s *Service) ResetMarket(ctx context.Context, adminID string) ([]model.Instrument, error) {
	insts, err := s.d.Instruments.ResetAll(ctx)
	s.d.Activity.ResetAll()
	if s.d.Momentum != nil {
		s.d.Momentum.ResetMomentum()
	}
	s.record(ctx, adminID, ActionResetMarket, "",
		fmt.Sprintf("Reset %d stock prices to starting values", len(insts)))
	return insts, err
}

// Heat raises symbol's price by the heat buff, boosts its activity and
// halts trading on it for the event cooldown.
func (s *Service) Heat(ctx context.Context, adminID, symbol string) (*MarketEvent, error) {
	symbol = validate.NormalizeSymbol(symbol)
	ev, err := s.applyEvent(ctx, symbol, s.cfg.HeatBuff)
	if err != nil {
		return nil, err
	}
	for i := 0; i < heatActivityBoost; i++ {
		s.d.Activity.Increment(symbol)
	}
	s.record(ctx, adminID, ActionHeat, "",
		fmt.Sprintf("Applied HEAT buff to %s - Price: +%s%%", symbol, s.cfg.HeatBuff.Shift(2).StringFixed(0)))
	return ev, nil
}

// RateBuild moves symbol's price by (rating-5)/5 of the rating impact and
// halts trading on it for the event cooldown. rating must lie in 1..10.
func (s *Service) RateBuild(ctx context.Context, adminID, symbol string, rating int) (*MarketEvent, error) {
	if rating < 1 || rating > 10 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 10", model.ErrInvalidInput)
	}
	symbol = validate.NormalizeSymbol(symbol)
	pct := decimal.NewFromInt(int64(rating - 5)).
		Div(decimal.NewFromInt(5)).
		Mul(s.cfg.RatingMaxImpact)

	ev, err := s.applyEvent(ctx, symbol, pct)
	if err != nil {
		return nil, err
	}
	s.record(ctx, adminID, ActionRateBuild, "",
		fmt.Sprintf("Rated %s build: %d/10 (Price change: %s%%)", symbol, rating, pct.Shift(2).StringFixed(1)))
	return ev, nil
}

// applyEvent changes the price by pct of itself, truncated toward zero and
// floored at 1, then sets the event cooldown.
func (s *Service) applyEvent(ctx context.Context, symbol string, pct decimal.Decimal) (*MarketEvent, error) {
	var old int64
	inst, err := s.d.Instruments.Mutate(ctx, symbol, func(cur model.Instrument) (int64, error) {
		old = cur.CurrentPrice
		change := decimal.NewFromInt(cur.CurrentPrice).Mul(pct).IntPart()
		next := cur.CurrentPrice + change
		if next < 1 {
			next = 1
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	until, err := s.d.Halts.Set(ctx, symbol, s.cfg.EventCooldown)
	if err != nil {
		return nil, fmt.Errorf("set cooldown on %s: %w", symbol, err)
	}

	s.logger.Info("market event applied",
		"symbol", symbol,
		"old", old,
		"new", inst.CurrentPrice,
		"cooldown_until", until,
	)
	return &MarketEvent{
		Symbol:        symbol,
		OldPrice:      old,
		NewPrice:      inst.CurrentPrice,
		Change:        money.PercentChange(old, inst.CurrentPrice),
		CooldownUntil: until,
	}, nil
}

// Give credits amount Spurs to userID.
func (s *Service) Give(ctx context.Context, adminID, userID string, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", model.ErrInvalidInput)
	}
	acct, err := s.d.Balances.AdjustBalance(ctx, userID, amount, model.TxAdminGive)
	if err != nil {
		return nil, err
	}
	s.record(ctx, adminID, ActionGive, userID, fmt.Sprintf("Gave %s (%d Spurs)", money.Format(amount), amount))
	return acct, nil
}

// Take debits amount Spurs from userID. It fails with
// ErrInsufficientFunds rather than driving the balance negative.
func (s *Service) Take(ctx context.Context, adminID, userID string, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", model.ErrInvalidInput)
	}
	acct, err := s.d.Balances.AdjustBalance(ctx, userID, -amount, model.TxAdminTake)
	if err != nil {
		return nil, err
	}
	s.record(ctx, adminID, ActionTake, userID, fmt.Sprintf("Took %s (%d Spurs)", money.Format(amount), amount))
	return acct, nil
}

// Cooldown halts trading on symbol for d.
func (s *Service) Cooldown(ctx context.Context, adminID, symbol string, d time.Duration) (time.Time, error) {
	symbol = validate.NormalizeSymbol(symbol)
	if _, err := s.d.Instruments.Price(ctx, symbol); err != nil {
		return time.Time{}, err
	}
	until, err := s.d.Halts.Set(ctx, symbol, d)
	if err != nil {
		return time.Time{}, err
	}
	s.record(ctx, adminID, ActionCooldown, "", fmt.Sprintf("Halted %s trading for %s", symbol, d))
	return until, nil
}

// LiftCooldown reopens trading on symbol ahead of its cooldown.
func (s *Service) LiftCooldown(ctx context.Context, adminID, symbol string) error {
	symbol = validate.NormalizeSymbol(symbol)
	if _, err := s.d.Instruments.Price(ctx, symbol); err != nil {
		return err
	}
	if err := s.d.Halts.Clear(ctx, symbol); err != nil {
		return err
	}
	s.record(ctx, adminID, ActionLiftCooldown, "", fmt.Sprintf("Lifted %s trading cooldown", symbol))
	return nil
}

// ResetActivity zeroes every activity score.
func (s *Service) ResetActivity(ctx context.Context, adminID string) {
	s.d.Activity.ResetAll()
	s.record(ctx, adminID, ActionResetActivity, "", "Reset all activity scores")
}

// RunCycle runs a simulation cycle immediately.
func (s *Service) RunCycle(ctx context.Context, adminID string) (*engine.Report, error) {
	rep, err := s.d.Cycler.RunCycle(ctx)
	s.record(ctx, adminID, ActionRunCycle, "", "Triggered a market update")
	return rep, err
}

// Actions returns the newest limit audit entries, newest first.
func (s *Service) Actions(ctx context.Context, limit int) ([]model.AdminAction, error) {
	if limit <= 0 {
		limit = 50
	}
	out, err := s.d.Audit.ListAdminActions(ctx, limit)
	if err != nil {
		return nil, model.Unavailable(err)
	}
	return out, nil
}

// record appends to the audit log. The action has already taken effect,
// so a write failure is logged rather than returned.
func (s *Service) record(ctx context.Context, adminID, action, target, details string) {
	a := &model.AdminAction{
		AdminID:      adminID,
		Action:       action,
		TargetUserID: target,
		Details:      details,
		Timestamp:    s.now(),
	}
	if err := s.d.Audit.InsertAdminAction(ctx, a); err != nil {
		s.logger.Error("failed to write admin audit log", "action", action, "admin", adminID, "err", err)
		return
	}
	s.logger.Info("admin action", "action", action, "admin", adminID, "target", target, "details", details)
}
