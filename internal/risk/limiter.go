// Package risk implements the anti-manipulation position policy for team
// members trading their own team's stock.
//
// A member's team affiliation is resolved by the caller (the chat layer
// knows the member's roles) and passed in with each trade.
package risk

import (
	"fmt"

	"github.com/cogmarket/market-engine/internal/model"
)

var (
	// ErrOwnTeamBlocked is returned when own-team trading is disabled
	// outright and a member trades their team's symbol.
	ErrOwnTeamBlocked = fmt.Errorf("risk: trading your own team's stock is not allowed: %w", model.ErrLimitExceeded)

	// ErrOwnTeamLimitExceeded is returned when a buy would push a member's
	// holding of their own team beyond MaxOwnTeamShares.
	ErrOwnTeamLimitExceeded = fmt.Errorf("risk: own-team position limit exceeded: %w", model.ErrLimitExceeded)
)

// PositionLimiter enforces the own-team policy.
//
// With PreventOwnTeam set, a member may neither buy nor sell their team's
// symbol. Otherwise buys are capped so the member never holds more than
// MaxOwnTeamShares of it; sells always pass.
type PositionLimiter struct {
	PreventOwnTeam bool

	// MaxOwnTeamShares is the largest own-team holding a buy may produce.
	MaxOwnTeamShares int64
}

// NewPositionLimiter creates a limiter.
func NewPositionLimiter(preventOwnTeam bool, maxOwnTeamShares int64) *PositionLimiter {
	if maxOwnTeamShares < 0 {
		maxOwnTeamShares = 0
	}
	return &PositionLimiter{
		PreventOwnTeam:   preventOwnTeam,
		MaxOwnTeamShares: maxOwnTeamShares,
	}
}

// CheckLimit validates a trade of shares in symbol by a member of team who
// currently holds held shares. An empty team means no affiliation.
func (l *PositionLimiter) CheckLimit(team, symbol string, side model.Side, shares, held int64) error {
	if team == "" || team != symbol {
		return nil
	}
	if l.PreventOwnTeam {
		return ErrOwnTeamBlocked
	}
	if side == model.SideBuy && held+shares > l.MaxOwnTeamShares {
		return ErrOwnTeamLimitExceeded
	}
	return nil
}
