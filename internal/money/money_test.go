package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToCogs(t *testing.T) {
	tests := []struct {
		spurs int64
		want  string
	}{
		{0, "0"},
		{64, "1"},
		{96, "1.5"},
		{1, "0.015625"},
		{640, "10"},
	}
	for _, tt := range tests {
		got := ToCogs(tt.spurs)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ToCogs(%d) = %s, want %s", tt.spurs, got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		spurs int64
		want  string
	}{
		{0, "0 Cogs 0 Spurs"},
		{1, "0 Cogs 1 Spur"},
		{64, "1 Cog 0 Spurs"},
		{352, "5 Cogs 32 Spurs"},
		{-65, "-1 Cog 1 Spur"},
	}
	for _, tt := range tests {
		if got := Format(tt.spurs); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.spurs, got, tt.want)
		}
	}
}

func TestPercentChange(t *testing.T) {
	if got := PercentChange(64, 80); !got.Equal(decimal.NewFromInt(25)) {
		t.Errorf("PercentChange(64, 80) = %s, want 25", got)
	}
	if got := PercentChange(64, 48); !got.Equal(decimal.NewFromInt(-25)) {
		t.Errorf("PercentChange(64, 48) = %s, want -25", got)
	}
	if got := PercentChange(0, 10); !got.IsZero() {
		t.Errorf("PercentChange(0, 10) = %s, want 0", got)
	}
}
