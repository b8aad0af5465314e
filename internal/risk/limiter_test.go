package risk

import (
	"errors"
	"testing"

	"github.com/cogmarket/market-engine/internal/model"
)

func TestCheckLimit_OtherTeamAlwaysAllowed(t *testing.T) {
	limiter := NewPositionLimiter(true, 5)

	if err := limiter.CheckLimit("VOC", "STMP", model.SideBuy, 1000, 0); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := limiter.CheckLimit("", "STMP", model.SideBuy, 1000, 0); err != nil {
		t.Errorf("unaffiliated trader should pass, got %v", err)
	}
}

func TestCheckLimit_OwnTeamBlocked(t *testing.T) {
	limiter := NewPositionLimiter(true, 5)

	for _, side := range []model.Side{model.SideBuy, model.SideSell} {
		err := limiter.CheckLimit("STMP", "STMP", side, 1, 0)
		if err != ErrOwnTeamBlocked {
			t.Errorf("%s: expected ErrOwnTeamBlocked, got %v", side, err)
		}
		if !errors.Is(err, model.ErrLimitExceeded) {
			t.Errorf("%s: expected error to match ErrLimitExceeded", side)
		}
	}
}

func TestCheckLimit_OwnTeamCapExceeded(t *testing.T) {
	limiter := NewPositionLimiter(false, 5)

	// Existing 3 + new 3 = 6 > 5.
	err := limiter.CheckLimit("ROSE", "ROSE", model.SideBuy, 3, 3)
	if err != ErrOwnTeamLimitExceeded {
		t.Errorf("expected ErrOwnTeamLimitExceeded, got %v", err)
	}
}

func TestCheckLimit_OwnTeamCapNotExceeded(t *testing.T) {
	limiter := NewPositionLimiter(false, 5)

	if err := limiter.CheckLimit("ROSE", "ROSE", model.SideBuy, 2, 3); err != nil {
		t.Errorf("exactly at the cap should pass, got %v", err)
	}
}

func TestCheckLimit_SellReducesExposure(t *testing.T) {
	limiter := NewPositionLimiter(false, 5)

	if err := limiter.CheckLimit("POT", "POT", model.SideSell, 10, 10); err != nil {
		t.Errorf("sells should always pass when not blocked, got %v", err)
	}
}

func TestNewPositionLimiter_NegativeCap(t *testing.T) {
	limiter := NewPositionLimiter(false, -3)
	if limiter.MaxOwnTeamShares != 0 {
		t.Errorf("expected cap clamped to 0, got %d", limiter.MaxOwnTeamShares)
	}
}
