// Package alerts keeps one-shot price alerts and fires them when a new
// price crosses their target.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cogmarket/market-engine/internal/keylock"
	"github.com/cogmarket/market-engine/internal/metrics"
	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/store"
	"github.com/cogmarket/market-engine/internal/validate"
)

// DefaultMaxPerUser caps how many alerts one user may hold.
const DefaultMaxPerUser = 10

// PriceReader resolves a symbol's current price.
type PriceReader interface {
	Price(ctx context.Context, symbol string) (int64, error)
}

// CreateRequest describes a new alert.
type CreateRequest struct {
	UserID      string          `json:"user_id"`
	Symbol      string          `json:"symbol"`
	Condition   model.Condition `json:"condition"`
	TargetPrice int64           `json:"target_price"`
}

// Fired is an alert that triggered this cycle. It has already been removed.
type Fired struct {
	Alert model.PriceAlert `json:"alert"`
	Price int64            `json:"price"`
}

// Registry is the alert registry component.
type Registry struct {
	store      store.AlertStore
	prices     PriceReader
	maxPerUser int
	locks      *keylock.Locker
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Registry. maxPerUser <= 0 selects DefaultMaxPerUser.
func New(st store.AlertStore, prices PriceReader, maxPerUser int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPerUser
	}
	return &Registry{
		store:      st,
		prices:     prices,
		maxPerUser: maxPerUser,
		locks:      keylock.New(),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and persists an alert.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*model.PriceAlert, error) {
	req.Symbol = validate.NormalizeSymbol(req.Symbol)
	if err := validate.UserID(req.UserID); err != nil {
		return nil, err
	}
	if err := validate.Symbol(req.Symbol); err != nil {
		return nil, err
	}
	if !req.Condition.Valid() {
		return nil, fmt.Errorf("%w: condition must be above or below", model.ErrInvalidInput)
	}
	if err := validate.Price(req.TargetPrice); err != nil {
		return nil, err
	}
	if _, err := r.prices.Price(ctx, req.Symbol); err != nil {
		return nil, err
	}

	// Count and insert under the user's lock.
	unlock, err := r.locks.LockContext(ctx, req.UserID)
	if err != nil {
		return nil, model.Unavailable(err)
	}
	defer unlock()

	n, err := r.store.CountUserAlerts(ctx, req.UserID)
	if err != nil {
		return nil, model.Unavailable(err)
	}
	if n >= r.maxPerUser {
		return nil, fmt.Errorf("%w: at most %d alerts per user", model.ErrLimitExceeded, r.maxPerUser)
	}

	a := &model.PriceAlert{
		UserID:      req.UserID,
		Symbol:      req.Symbol,
		Condition:   req.Condition,
		TargetPrice: req.TargetPrice,
		CreatedAt:   r.now(),
	}
	if _, err := r.store.CreateAlert(ctx, a); err != nil {
		return nil, model.Unavailable(err)
	}
	r.logger.Info("price alert created",
		"alert_id", a.ID,
		"user", a.UserID,
		"symbol", a.Symbol,
		"condition", a.Condition,
		"target", a.TargetPrice,
	)
	return a, nil
}

// Cancel deletes the alert iff userID owns it.
func (r *Registry) Cancel(ctx context.Context, alertID int64, userID string) (bool, error) {
	ok, err := r.store.DeleteUserAlert(ctx, alertID, userID)
	if err != nil {
		return false, model.Unavailable(err)
	}
	return ok, nil
}

// ListForUser returns a user's alerts, newest first.
func (r *Registry) ListForUser(ctx context.Context, userID string) ([]model.PriceAlert, error) {
	out, err := r.store.ListUserAlerts(ctx, userID)
	if err != nil {
		return nil, model.Unavailable(err)
	}
	return out, nil
}

// EvaluateAll fires every alert whose condition holds at prices. A fired
// alert is deleted before it is reported; if another caller removed it
// first it is not reported, so each alert fires at most once.
func (r *Registry) EvaluateAll(ctx context.Context, prices map[string]int64) ([]Fired, error) {
	all, err := r.store.ListAlerts(ctx)
	if err != nil {
		return nil, model.Unavailable(err)
	}

	var fired []Fired
	for _, a := range all {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		price, ok := prices[a.Symbol]
		if !ok || !a.Condition.Triggered(price, a.TargetPrice) {
			continue
		}

		deleted, err := r.store.DeleteAlert(ctx, a.ID)
		if err != nil {
			r.logger.Warn("failed to remove fired alert", "alert_id", a.ID, "err", err)
			continue
		}
		if !deleted {
			continue
		}
		metrics.AlertsFired.Inc()
		r.logger.Info("price alert fired",
			"alert_id", a.ID,
			"user", a.UserID,
			"symbol", a.Symbol,
			"price", price,
		)
		fired = append(fired, Fired{Alert: a, Price: price})
	}
	return fired, nil
}
