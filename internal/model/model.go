// Package model defines the core domain types shared across the market engine.
// All monetary values are integer Spurs (64 Spurs = 1 Cog); float64 is only
// used for volatility and activity scores, never for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade or limit order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Triggered reports whether a standing order on this side should execute at
// price. Buy orders fire at or below target, sell orders at or above it.
func (s Side) Triggered(price, target int64) bool {
	switch s {
	case SideBuy:
		return price <= target
	case SideSell:
		return price >= target
	}
	return false
}

// Condition is the direction of a price alert.
type Condition string

const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	return c == ConditionAbove || c == ConditionBelow
}

// Triggered reports whether price satisfies the alert condition. Both
// directions are inclusive of the target.
func (c Condition) Triggered(price, target int64) bool {
	switch c {
	case ConditionAbove:
		return price >= target
	case ConditionBelow:
		return price <= target
	}
	return false
}

// PricePoint is one entry of an instrument's price history.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Price     int64     `json:"price" db:"price"`
}

// Instrument is a tradable team stock. History is only populated by reads
// that ask for it; snapshots carry the current price alone.
type Instrument struct {
	Symbol        string       `json:"symbol" db:"symbol"`
	Name          string       `json:"name" db:"name"`
	StartingPrice int64        `json:"starting_price" db:"starting_price"`
	CurrentPrice  int64        `json:"current_price" db:"current_price"`
	Volatility    float64      `json:"volatility" db:"volatility"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
	History       []PricePoint `json:"price_history,omitempty"`
}

// Account holds a player's cash balance in Spurs.
type Account struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Holding is a player's position in one instrument. AvgCost is Spurs per share.
type Holding struct {
	UserID  string `json:"user_id" db:"user_id"`
	Symbol  string `json:"symbol" db:"symbol"`
	Shares  int64  `json:"shares" db:"shares"`
	AvgCost int64  `json:"avg_cost" db:"avg_cost"`
}

// LimitOrder is a standing conditional trade. Orders are never updated in
// place; every terminal transition deletes them.
type LimitOrder struct {
	ID          int64     `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Symbol      string    `json:"symbol" db:"symbol"`
	Side        Side      `json:"side" db:"side"`
	Shares      int64     `json:"shares" db:"shares"`
	TargetPrice int64     `json:"target_price" db:"target_price"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the order is past its expiry at now.
func (o *LimitOrder) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// PriceAlert is a one-shot price threshold watch.
type PriceAlert struct {
	ID          int64     `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Symbol      string    `json:"symbol" db:"symbol"`
	Condition   Condition `json:"condition" db:"condition"`
	TargetPrice int64     `json:"target_price" db:"target_price"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TransactionType labels a ledger transaction.
type TransactionType string

const (
	TxBuy       TransactionType = "BUY"
	TxSell      TransactionType = "SELL"
	TxLimitBuy  TransactionType = "LIMIT_BUY"
	TxLimitSell TransactionType = "LIMIT_SELL"
	TxAdminGive TransactionType = "ADMIN_GIVE"
	TxAdminTake TransactionType = "ADMIN_TAKE"
)

// Transaction is an immutable record of a balance or holdings change.
// Once created, these are never modified or deleted.
type Transaction struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Type      TransactionType `json:"type" db:"type"`
	Symbol    string          `json:"symbol,omitempty" db:"symbol"`
	Amount    int64           `json:"amount" db:"amount"`
	Shares    int64           `json:"shares,omitempty" db:"shares"`
	Price     int64           `json:"price,omitempty" db:"price"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// TradeCooldown blocks trading on a symbol until Until.
type TradeCooldown struct {
	Symbol string    `json:"symbol" db:"symbol"`
	Until  time.Time `json:"cooldown_until" db:"cooldown_until"`
}

// AdminAction is an audit log entry for privileged operations.
type AdminAction struct {
	ID           int64     `json:"id" db:"id"`
	AdminID      string    `json:"admin_id" db:"admin_id"`
	Action       string    `json:"action" db:"action"`
	TargetUserID string    `json:"target_user_id,omitempty" db:"target_user_id"`
	Details      string    `json:"details" db:"details"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

// PortfolioPosition is a holding marked to the current market price.
type PortfolioPosition struct {
	Holding
	CurrentPrice  int64           `json:"current_price"`
	MarketValue   int64           `json:"market_value"`
	CostBasis     int64           `json:"cost_basis"`
	UnrealizedPnL int64           `json:"unrealized_pnl"`
	PnLPercent    decimal.Decimal `json:"pnl_percent"`
}

// Portfolio aggregates a player's balance and marked positions.
type Portfolio struct {
	UserID     string              `json:"user_id"`
	Balance    int64               `json:"balance"`
	Positions  []PortfolioPosition `json:"positions"`
	TotalValue int64               `json:"total_value"` // balance + Σ market value
	TotalPnL   int64               `json:"total_pnl"`
}
