package alerts_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogmarket/market-engine/internal/alerts"
	"github.com/cogmarket/market-engine/internal/instrument"
	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/store"
)

func newRegistry(t *testing.T, max int) *alerts.Registry {
	t.Helper()
	st := store.NewMemoryStore()
	prices := instrument.New(st, instrument.DefaultConfig(), nil)
	require.NoError(t, prices.Seed(context.Background(), []instrument.Definition{
		{Symbol: "STMP", StartingPrice: 64, Volatility: 0.02},
		{Symbol: "ROSE", StartingPrice: 64, Volatility: 0.02},
	}))
	return alerts.New(st, prices, max, nil)
}

func TestAlertFiresExactlyOnce(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 0)

	a, err := r.Create(ctx, alerts.CreateRequest{UserID: "alice", Symbol: "STMP", Condition: model.ConditionAbove, TargetPrice: 70})
	require.NoError(t, err)

	fired, err := r.EvaluateAll(ctx, map[string]int64{"STMP": 64})
	require.NoError(t, err)
	assert.Empty(t, fired)

	fired, err = r.EvaluateAll(ctx, map[string]int64{"STMP": 75})
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, a.ID, fired[0].Alert.ID)
	assert.Equal(t, int64(75), fired[0].Price)

	fired, err = r.EvaluateAll(ctx, map[string]int64{"STMP": 80})
	require.NoError(t, err)
	assert.Empty(t, fired)

	left, _ := r.ListForUser(ctx, "alice")
	assert.Empty(t, left)
}

func TestConditionsAreInclusive(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 0)

	_, err := r.Create(ctx, alerts.CreateRequest{UserID: "bob", Symbol: "ROSE", Condition: model.ConditionBelow, TargetPrice: 60})
	require.NoError(t, err)
	_, err = r.Create(ctx, alerts.CreateRequest{UserID: "bob", Symbol: "ROSE", Condition: model.ConditionAbove, TargetPrice: 61})
	require.NoError(t, err)

	fired, err := r.EvaluateAll(ctx, map[string]int64{"ROSE": 60})
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, model.ConditionBelow, fired[0].Alert.Condition)
}

func TestConcurrentEvaluationFiresOnce(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 0)

	_, err := r.Create(ctx, alerts.CreateRequest{UserID: "alice", Symbol: "STMP", Condition: model.ConditionAbove, TargetPrice: 70})
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fired, err := r.EvaluateAll(ctx, map[string]int64{"STMP": 75})
			assert.NoError(t, err)
			mu.Lock()
			total += len(fired)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, total)
}

func TestCreateLimitsAndValidation(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 2)

	for i := 0; i < 2; i++ {
		_, err := r.Create(ctx, alerts.CreateRequest{UserID: "carol", Symbol: "stmp", Condition: model.ConditionAbove, TargetPrice: 100})
		require.NoError(t, err)
	}
	_, err := r.Create(ctx, alerts.CreateRequest{UserID: "carol", Symbol: "STMP", Condition: model.ConditionAbove, TargetPrice: 100})
	assert.ErrorIs(t, err, model.ErrLimitExceeded)

	_, err = r.Create(ctx, alerts.CreateRequest{UserID: "dave", Symbol: "STMP", Condition: "sideways", TargetPrice: 100})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = r.Create(ctx, alerts.CreateRequest{UserID: "dave", Symbol: "NOPE", Condition: model.ConditionAbove, TargetPrice: 100})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = r.Create(ctx, alerts.CreateRequest{UserID: "dave", Symbol: "STMP", Condition: model.ConditionAbove, TargetPrice: 0})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestCancelOwnership(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 0)

	a, err := r.Create(ctx, alerts.CreateRequest{UserID: "alice", Symbol: "STMP", Condition: model.ConditionAbove, TargetPrice: 70})
	require.NoError(t, err)

	ok, err := r.Cancel(ctx, a.ID, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Cancel(ctx, a.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
}
