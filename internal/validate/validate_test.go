package validate

import (
	"errors"
	"testing"

	"github.com/cogmarket/market-engine/internal/model"
)

func TestSymbol(t *testing.T) {
	valid := []string{"STMP", "VOC", "A1", "ABCDEFGHIJ"}
	for _, s := range valid {
		if err := Symbol(s); err != nil {
			t.Errorf("Symbol(%q) unexpected error: %v", s, err)
		}
	}

	invalid := []string{"", "ABCDEFGHIJK", "../etc", "st mp", "stmp", "ST-MP"}
	for _, s := range invalid {
		if err := Symbol(s); !errors.Is(err, model.ErrInvalidInput) {
			t.Errorf("Symbol(%q) = %v, want ErrInvalidInput", s, err)
		}
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol("  stmp "); got != "STMP" {
		t.Errorf("NormalizeSymbol = %q, want STMP", got)
	}
}

func TestShares(t *testing.T) {
	if err := Shares(1); err != nil {
		t.Errorf("Shares(1) unexpected error: %v", err)
	}
	if err := Shares(0); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Shares(0) = %v, want ErrInvalidInput", err)
	}
	if err := Shares(-5); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Shares(-5) = %v, want ErrInvalidInput", err)
	}
	if err := Shares(MaxShares + 1); !errors.Is(err, model.ErrOverflow) {
		t.Errorf("Shares(max+1) = %v, want ErrOverflow", err)
	}
}

func TestPrice(t *testing.T) {
	if err := Price(64); err != nil {
		t.Errorf("Price(64) unexpected error: %v", err)
	}
	if err := Price(0); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Price(0) = %v, want ErrInvalidInput", err)
	}
	if err := Price(MaxPrice + 1); !errors.Is(err, model.ErrOverflow) {
		t.Errorf("Price(max+1) = %v, want ErrOverflow", err)
	}
}

func TestTransaction(t *testing.T) {
	total, err := Transaction(5, 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 320 {
		t.Errorf("total = %d, want 320", total)
	}

	// Both inputs individually valid, product too large.
	if _, err := Transaction(MaxShares, MaxPrice); !errors.Is(err, model.ErrOverflow) {
		t.Errorf("expected ErrOverflow for oversized product, got %v", err)
	}
	if _, err := Transaction(0, 64); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero shares, got %v", err)
	}
}

func TestAverageCost(t *testing.T) {
	tests := []struct {
		name                          string
		oldShares, oldAvg, add, price int64
		want                          int64
	}{
		{"fresh position", 0, 0, 5, 64, 64},
		{"even blend", 5, 64, 5, 80, 72},
		{"truncates toward zero", 1, 10, 2, 11, 10}, // 32/3 = 10.66
		{"weighted", 10, 100, 30, 60, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AverageCost(tt.oldShares, tt.oldAvg, tt.add, tt.price)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("AverageCost = %d, want %d", got, tt.want)
			}
		})
	}

	if _, err := AverageCost(MaxShares, 1, 1, 1); !errors.Is(err, model.ErrOverflow) {
		t.Errorf("expected ErrOverflow past MaxShares, got %v", err)
	}
	if _, err := AverageCost(1, MaxBalance, 1, 1); !errors.Is(err, model.ErrOverflow) {
		t.Errorf("expected ErrOverflow past MaxBalance, got %v", err)
	}
}
