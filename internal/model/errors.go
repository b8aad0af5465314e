package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every component. Callers branch with errors.Is;
// the HTTP layer maps each kind to a status code.
var (
	// ErrNotFound is returned for unknown symbols, accounts, orders and alerts.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a request fails validation. No state
	// has been mutated.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when creating something that already exists.
	ErrConflict = errors.New("already exists")

	// ErrInsufficientFunds is returned when a debit would make a balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientShares is returned when a sell exceeds the holding.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrOverflow is returned when a monetary quantity exceeds its configured maximum.
	ErrOverflow = errors.New("amount exceeds maximum")

	// ErrUnavailable wraps storage failures. The affected operation did not happen.
	ErrUnavailable = errors.New("unavailable")

	// ErrTradingHalted is returned while a symbol is under a trade cooldown.
	ErrTradingHalted = errors.New("trading halted by cooldown")

	// ErrOrderGone is returned when a limit order was removed before it could execute.
	ErrOrderGone = errors.New("order no longer exists")

	// ErrLimitExceeded is returned when a per-user or policy limit is reached.
	ErrLimitExceeded = errors.New("limit exceeded")
)

var domainErrors = []error{
	ErrNotFound, ErrInvalidInput, ErrConflict, ErrInsufficientFunds, ErrInsufficientShares,
	ErrOverflow, ErrUnavailable, ErrTradingHalted, ErrOrderGone, ErrLimitExceeded,
}

// Unavailable marks err as a storage failure unless it already carries one
// of the sentinels above. nil stays nil.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
