// Package validate checks user-supplied trading inputs and guards every
// monetary product against overflow before anything is mutated.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cogmarket/market-engine/internal/model"
)

// Hard limits on numeric inputs, in Spurs where monetary.
const (
	MaxShares       int64 = 1_000_000
	MaxPrice        int64 = 1_000_000_000
	MaxBalance      int64 = 10_000_000_000
	MaxSymbolLength       = 10
)

// symbolRegex matches an upper-case alphanumeric ticker.
// Example: STMP, VOC, CRAV
var symbolRegex = regexp.MustCompile(`^[A-Z0-9]+$`)

var maxBalance = decimal.NewFromInt(MaxBalance)

// NormalizeSymbol trims and upper-cases a raw symbol.
func NormalizeSymbol(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Symbol validates an already-normalized ticker.
func Symbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: symbol is required", model.ErrInvalidInput)
	}
	if len(symbol) > MaxSymbolLength {
		return fmt.Errorf("%w: symbol %q longer than %d characters", model.ErrInvalidInput, symbol, MaxSymbolLength)
	}
	if !symbolRegex.MatchString(symbol) {
		return fmt.Errorf("%w: symbol %q must be alphanumeric", model.ErrInvalidInput, symbol)
	}
	return nil
}

// UserID rejects empty account identifiers.
func UserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user_id is required", model.ErrInvalidInput)
	}
	return nil
}

// Shares checks a share count is positive and within MaxShares.
func Shares(shares int64) error {
	if shares <= 0 {
		return fmt.Errorf("%w: shares must be positive", model.ErrInvalidInput)
	}
	if shares > MaxShares {
		return fmt.Errorf("%w: shares %d exceed maximum %d", model.ErrOverflow, shares, MaxShares)
	}
	return nil
}

// Price checks a per-share price is positive and within MaxPrice.
func Price(price int64) error {
	if price <= 0 {
		return fmt.Errorf("%w: price must be positive", model.ErrInvalidInput)
	}
	if price > MaxPrice {
		return fmt.Errorf("%w: price %d exceeds maximum %d", model.ErrOverflow, price, MaxPrice)
	}
	return nil
}

// Balance checks a balance lies in [0, MaxBalance].
func Balance(balance int64) error {
	if balance < 0 {
		return fmt.Errorf("%w: balance cannot be negative", model.ErrInsufficientFunds)
	}
	if balance > MaxBalance {
		return fmt.Errorf("%w: balance %d exceeds maximum %d", model.ErrOverflow, balance, MaxBalance)
	}
	return nil
}

// Transaction validates shares and price and returns their product. The
// product is computed in decimal so it can be compared before narrowing.
func Transaction(shares, price int64) (int64, error) {
	if err := Shares(shares); err != nil {
		return 0, err
	}
	if err := Price(price); err != nil {
		return 0, err
	}
	total := decimal.NewFromInt(shares).Mul(decimal.NewFromInt(price))
	if total.GreaterThan(maxBalance) {
		return 0, fmt.Errorf("%w: transaction total %s exceeds maximum %d", model.ErrOverflow, total, MaxBalance)
	}
	return total.IntPart(), nil
}

// AverageCost returns the weighted average cost after buying addShares at
// price on top of an existing position. The result is truncated toward zero,
// matching how the ledger has always stored cost basis.
func AverageCost(oldShares, oldAvg, addShares, price int64) (int64, error) {
	newShares := oldShares + addShares
	if newShares <= 0 {
		return 0, fmt.Errorf("%w: resulting shares must be positive", model.ErrInvalidInput)
	}
	if newShares > MaxShares {
		return 0, fmt.Errorf("%w: position of %d shares exceeds maximum %d", model.ErrOverflow, newShares, MaxShares)
	}
	value := decimal.NewFromInt(oldShares).Mul(decimal.NewFromInt(oldAvg)).
		Add(decimal.NewFromInt(addShares).Mul(decimal.NewFromInt(price)))
	if value.GreaterThan(maxBalance) {
		return 0, fmt.Errorf("%w: position value %s exceeds maximum %d", model.ErrOverflow, value, MaxBalance)
	}
	return value.IntPart() / newShares, nil
}
