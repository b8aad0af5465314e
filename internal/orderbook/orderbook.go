// Package orderbook holds standing limit orders and executes them against
// the ledger once the market price crosses their target.
package orderbook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cogmarket/market-engine/internal/ledger"
	"github.com/cogmarket/market-engine/internal/metrics"
	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/store"
	"github.com/cogmarket/market-engine/internal/validate"
)

// DefaultTTL is how long an order stands when the caller gives no TTL.
const DefaultTTL = 24 * time.Hour

// Executor applies a trade atomically. *ledger.Ledger satisfies it.
type Executor interface {
	ApplyTrade(ctx context.Context, t ledger.Trade) (*ledger.Receipt, error)
}

// PriceReader resolves a symbol's current price. It is used at creation
// to reject unknown symbols.
type PriceReader interface {
	Price(ctx context.Context, symbol string) (int64, error)
}

// Halter reports whether trading on a symbol is halted.
type Halter interface {
	Check(ctx context.Context, symbol string) error
}

// CreateRequest describes a new limit order.
type CreateRequest struct {
	UserID      string        `json:"user_id"`
	Symbol      string        `json:"symbol"`
	Side        model.Side    `json:"side"`
	Shares      int64         `json:"shares"`
	TargetPrice int64         `json:"target_price"`
	TTL         time.Duration `json:"-"`
}

// Execution is a limit order that filled this cycle.
type Execution struct {
	Order   model.LimitOrder `json:"order"`
	Price   int64            `json:"price"`
	Receipt ledger.Receipt   `json:"receipt"`
}

// Book is the order book component.
type Book struct {
	store  store.OrderStore
	exec   Executor
	prices PriceReader
	halts  Halter
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Book. halts may be nil; ttl <= 0 selects DefaultTTL.
func New(st store.OrderStore, exec Executor, prices PriceReader, halts Halter, ttl time.Duration, logger *slog.Logger) *Book {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Book{
		store:  st,
		exec:   exec,
		prices: prices,
		halts:  halts,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and persists a standing order. Affordability is checked
// by the caller at creation and again by the ledger at execution.
func (b *Book) Create(ctx context.Context, req CreateRequest) (*model.LimitOrder, error) {
	req.Symbol = validate.NormalizeSymbol(req.Symbol)
	if err := validate.UserID(req.UserID); err != nil {
		return nil, err
	}
	if err := validate.Symbol(req.Symbol); err != nil {
		return nil, err
	}
	if !req.Side.Valid() {
		return nil, fmt.Errorf("%w: side must be buy or sell", model.ErrInvalidInput)
	}
	if _, err := validate.Transaction(req.Shares, req.TargetPrice); err != nil {
		return nil, err
	}
	if _, err := b.prices.Price(ctx, req.Symbol); err != nil {
		return nil, err
	}
	if b.halts != nil {
		if err := b.halts.Check(ctx, req.Symbol); err != nil {
			return nil, err
		}
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = b.ttl
	}
	now := b.now()
	o := &model.LimitOrder{
		UserID:      req.UserID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Shares:      req.Shares,
		TargetPrice: req.TargetPrice,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if _, err := b.store.CreateOrder(ctx, o); err != nil {
		return nil, model.Unavailable(err)
	}

	b.logger.Info("limit order created",
		"order_id", o.ID,
		"user", o.UserID,
		"symbol", o.Symbol,
		"side", o.Side,
		"shares", o.Shares,
		"target", o.TargetPrice,
	)
	return o, nil
}

// Cancel deletes the order iff userID owns it.
func (b *Book) Cancel(ctx context.Context, orderID int64, userID string) (bool, error) {
	ok, err := b.store.DeleteUserOrder(ctx, orderID, userID)
	if err != nil {
		return false, model.Unavailable(err)
	}
	return ok, nil
}

// ListForUser returns a user's standing orders, newest first.
func (b *Book) ListForUser(ctx context.Context, userID string) ([]model.LimitOrder, error) {
	orders, err := b.store.ListUserOrders(ctx, userID)
	if err != nil {
		return nil, model.Unavailable(err)
	}
	return orders, nil
}

// EvaluateAll walks every standing order in ascending ID order against
// prices. Expired orders are removed silently. Triggered orders execute at
// the current price; an order that cannot be afforded right now stays for a
// later cycle. Symbols missing from prices are left alone.
func (b *Book) EvaluateAll(ctx context.Context, prices map[string]int64) ([]Execution, error) {
	orders, err := b.store.ListOrders(ctx)
	if err != nil {
		return nil, model.Unavailable(err)
	}

	now := b.now()
	var execs []Execution
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return execs, err
		}

		if o.Expired(now) {
			if _, err := b.store.DeleteOrder(ctx, o.ID); err != nil {
				b.logger.Warn("failed to remove expired order", "order_id", o.ID, "err", err)
				continue
			}
			metrics.OrdersExpired.Inc()
			b.logger.Debug("limit order expired", "order_id", o.ID, "user", o.UserID)
			continue
		}

		price, ok := prices[o.Symbol]
		if !ok || !o.Side.Triggered(price, o.TargetPrice) {
			continue
		}

		txType := model.TxLimitBuy
		if o.Side == model.SideSell {
			txType = model.TxLimitSell
		}
		receipt, err := b.exec.ApplyTrade(ctx, ledger.Trade{
			UserID:  o.UserID,
			Symbol:  o.Symbol,
			Side:    o.Side,
			Shares:  o.Shares,
			Price:   price,
			Type:    txType,
			OrderID: o.ID,
		})
		switch {
		case err == nil:
		case errors.Is(err, model.ErrInsufficientFunds),
			errors.Is(err, model.ErrInsufficientShares),
			errors.Is(err, model.ErrOverflow):
			b.logger.Debug("limit order left standing", "order_id", o.ID, "reason", err)
			continue
		case errors.Is(err, model.ErrOrderGone):
			b.logger.Debug("limit order cancelled before execution", "order_id", o.ID)
			continue
		default:
			b.logger.Warn("limit order execution failed", "order_id", o.ID, "err", err)
			continue
		}

		metrics.OrderExecutions.WithLabelValues(string(o.Side)).Inc()
		b.logger.Info("limit order executed",
			"order_id", o.ID,
			"user", o.UserID,
			"symbol", o.Symbol,
			"side", o.Side,
			"shares", o.Shares,
			"price", price,
		)
		execs = append(execs, Execution{Order: o, Price: price, Receipt: *receipt})
	}
	return execs, nil
}
