package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/store"
)

func TestCooldown_Lifecycle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	r := New(st)

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	assert.NoError(t, r.Check(ctx, "STMP"))

	until, err := r.Set(ctx, "STMP", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, clock.Add(time.Hour), until)

	clock = clock.Add(20 * time.Minute)
	left, err := r.Remaining(ctx, "STMP")
	require.NoError(t, err)
	assert.Equal(t, 40*time.Minute, left)
	assert.ErrorIs(t, r.Check(ctx, "STMP"), model.ErrTradingHalted)
	assert.NoError(t, r.Check(ctx, "VOC"), "cooldowns are per symbol")

	// Expired entries are deleted on read.
	clock = clock.Add(time.Hour)
	left, err = r.Remaining(ctx, "STMP")
	require.NoError(t, err)
	assert.Zero(t, left)
	_, err = st.GetCooldown(ctx, "STMP")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCooldown_ClearAndValidation(t *testing.T) {
	ctx := context.Background()
	r := New(store.NewMemoryStore())

	_, err := r.Set(ctx, "VOC", 0)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = r.Set(ctx, "VOC", time.Hour)
	require.NoError(t, err)
	require.NoError(t, r.Clear(ctx, "VOC"))
	assert.NoError(t, r.Check(ctx, "VOC"))
}
