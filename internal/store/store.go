// Package store defines the persistence interface for the market engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and single-process deployments).
//
// Not-found lookups return model.ErrNotFound and duplicate creates return
// model.ErrConflict, wrapped with context.
package store

import (
	"context"
	"time"

	"github.com/cogmarket/market-engine/internal/model"
)

// Store is the full persistence interface.
type Store interface {
	InstrumentStore
	LedgerStore
	OrderStore
	AlertStore
	CooldownStore
	AuditStore
}

// InstrumentStore persists instruments and their bounded price history.
type InstrumentStore interface {
	// CreateInstrument persists a new instrument and its first history point.
	CreateInstrument(ctx context.Context, inst *model.Instrument) error

	// GetInstrument returns an instrument snapshot without history.
	GetInstrument(ctx context.Context, symbol string) (*model.Instrument, error)

	// LoadInstrument returns the committed instrument from the source of
	// truth, never from a cache. Read-modify-write callers must use it.
	LoadInstrument(ctx context.Context, symbol string) (*model.Instrument, error)

	// ListInstruments returns every instrument ordered by symbol, without history.
	ListInstruments(ctx context.Context) ([]model.Instrument, error)

	// RecordPrice sets the current price, appends point to the history and
	// trims the history to the newest maxHistory entries, atomically.
	RecordPrice(ctx context.Context, symbol string, point model.PricePoint, maxHistory int) error

	// PriceHistory returns the newest limit points oldest-first; limit <= 0
	// returns the whole history.
	PriceHistory(ctx context.Context, symbol string, limit int) ([]model.PricePoint, error)
}

// LedgerStore persists accounts, holdings and the transaction log.
type LedgerStore interface {
	// CreateAccount opens an account.
	CreateAccount(ctx context.Context, acct *model.Account) error

	// GetAccount returns an account by user ID.
	GetAccount(ctx context.Context, userID string) (*model.Account, error)

	// GetHolding returns one holding, including zero-share rows.
	GetHolding(ctx context.Context, userID, symbol string) (*model.Holding, error)

	// ListHoldings returns holdings with shares > 0 ordered by symbol.
	ListHoldings(ctx context.Context, userID string) ([]model.Holding, error)

	// ListTransactions returns the newest limit transactions, newest first.
	ListTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error)

	// Leaderboard returns the limit richest accounts by balance.
	Leaderboard(ctx context.Context, limit int) ([]model.Account, error)

	// InTx runs fn in an exclusive transaction scoped to userID. Writes made
	// through tx become visible only if fn returns nil; otherwise they are
	// discarded as a unit.
	InTx(ctx context.Context, userID string, fn func(tx LedgerTx) error) error
}

// LedgerTx is the view of the ledger inside InTx.
type LedgerTx interface {
	// Account returns the locked account.
	Account(ctx context.Context) (*model.Account, error)

	// Holding returns the holding for symbol, or ErrNotFound.
	Holding(ctx context.Context, symbol string) (*model.Holding, error)

	// SetBalance overwrites the account balance.
	SetBalance(ctx context.Context, balance int64) error

	// PutHolding inserts or replaces the holding.
	PutHolding(ctx context.Context, h model.Holding) error

	// InsertTransaction appends to the transaction log.
	InsertTransaction(ctx context.Context, t *model.Transaction) error

	// ConsumeOrder deletes a limit order owned by the account as part of the
	// transaction. It reports false if the order no longer exists.
	ConsumeOrder(ctx context.Context, orderID int64) (bool, error)
}

// OrderStore persists standing limit orders.
type OrderStore interface {
	// CreateOrder assigns the order an ID and persists it.
	CreateOrder(ctx context.Context, o *model.LimitOrder) (int64, error)

	// DeleteOrder removes an order regardless of owner.
	DeleteOrder(ctx context.Context, id int64) (bool, error)

	// DeleteUserOrder removes an order only if userID owns it.
	DeleteUserOrder(ctx context.Context, id int64, userID string) (bool, error)

	// ListOrders returns all standing orders ordered by ascending ID.
	ListOrders(ctx context.Context) ([]model.LimitOrder, error)

	// ListUserOrders returns a user's orders, newest first.
	ListUserOrders(ctx context.Context, userID string) ([]model.LimitOrder, error)
}

// AlertStore persists one-shot price alerts.
type AlertStore interface {
	CreateAlert(ctx context.Context, a *model.PriceAlert) (int64, error)
	DeleteAlert(ctx context.Context, id int64) (bool, error)
	DeleteUserAlert(ctx context.Context, id int64, userID string) (bool, error)
	ListAlerts(ctx context.Context) ([]model.PriceAlert, error)
	ListUserAlerts(ctx context.Context, userID string) ([]model.PriceAlert, error)
	CountUserAlerts(ctx context.Context, userID string) (int, error)
}

// CooldownStore persists per-symbol trade cooldowns.
type CooldownStore interface {
	SetCooldown(ctx context.Context, symbol string, until time.Time) error
	GetCooldown(ctx context.Context, symbol string) (*model.TradeCooldown, error)
	DeleteCooldown(ctx context.Context, symbol string) error
}

// AuditStore persists the admin action log.
type AuditStore interface {
	InsertAdminAction(ctx context.Context, a *model.AdminAction) error
	ListAdminActions(ctx context.Context, limit int) ([]model.AdminAction, error)
}
