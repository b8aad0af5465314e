// Package cooldown blocks trading on a symbol for a while after an admin
// market event. Expired entries are deleted lazily when read.
package cooldown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/store"
)

// Registry reads and writes trade cooldowns.
type Registry struct {
	store store.CooldownStore
	now   func() time.Time
}

// New creates a Registry.
func New(st store.CooldownStore) *Registry {
	return &Registry{store: st, now: time.Now}
}

// Set halts trading on symbol for d and returns when it lifts.
func (r *Registry) Set(ctx context.Context, symbol string, d time.Duration) (time.Time, error) {
	if d <= 0 {
		return time.Time{}, fmt.Errorf("%w: cooldown must be positive", model.ErrInvalidInput)
	}
	until := r.now().Add(d).UTC()
	if err := r.store.SetCooldown(ctx, symbol, until); err != nil {
		return time.Time{}, model.Unavailable(err)
	}
	return until, nil
}

// Remaining returns how long trading on symbol stays halted, 0 if it is not.
func (r *Registry) Remaining(ctx context.Context, symbol string) (time.Duration, error) {
	c, err := r.store.GetCooldown(ctx, symbol)
	if errors.Is(err, model.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, model.Unavailable(err)
	}

	left := c.Until.Sub(r.now())
	if left <= 0 {
		if err := r.store.DeleteCooldown(ctx, symbol); err != nil {
			return 0, model.Unavailable(err)
		}
		return 0, nil
	}
	return left, nil
}

// Check returns ErrTradingHalted while symbol is under a cooldown.
func (r *Registry) Check(ctx context.Context, symbol string) error {
	left, err := r.Remaining(ctx, symbol)
	if err != nil {
		return err
	}
	if left > 0 {
		return fmt.Errorf("%w: %s for another %s", model.ErrTradingHalted, symbol, left.Round(time.Minute))
	}
	return nil
}

// Clear lifts any cooldown on symbol.
func (r *Registry) Clear(ctx context.Context, symbol string) error {
	return model.Unavailable(r.store.DeleteCooldown(ctx, symbol))
}
