package orderbook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogmarket/market-engine/internal/cooldown"
	"github.com/cogmarket/market-engine/internal/instrument"
	"github.com/cogmarket/market-engine/internal/ledger"
	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/store"
)

type fixture struct {
	book   *Book
	ledger *ledger.Ledger
	halts  *cooldown.Registry
	store  *store.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()

	prices := instrument.New(st, instrument.DefaultConfig(), nil)
	require.NoError(t, prices.Seed(ctx, []instrument.Definition{
		{Symbol: "STMP", StartingPrice: 64, Volatility: 0.02},
		{Symbol: "VOC", StartingPrice: 64, Volatility: 0.02},
	}))

	l := ledger.New(st, ledger.Config{StartingBalance: 640}, nil)
	_, err := l.Register(ctx, "alice")
	require.NoError(t, err)

	halts := cooldown.New(st)
	return &fixture{
		book:   New(st, l, prices, halts, 0, nil),
		ledger: l,
		halts:  halts,
		store:  st,
	}
}

func TestSellOrderExecutesWhenPriceRises(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.ledger.ApplyTrade(ctx, ledger.Trade{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 5, Price: 64})
	require.NoError(t, err)

	o, err := f.book.Create(ctx, CreateRequest{UserID: "alice", Symbol: "STMP", Side: model.SideSell, Shares: 5, TargetPrice: 70})
	require.NoError(t, err)

	// Price still 64: nothing happens.
	execs, err := f.book.EvaluateAll(ctx, map[string]int64{"STMP": 64})
	require.NoError(t, err)
	assert.Empty(t, execs)

	execs, err = f.book.EvaluateAll(ctx, map[string]int64{"STMP": 75})
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, o.ID, execs[0].Order.ID)
	assert.Equal(t, int64(75), execs[0].Price)
	assert.Equal(t, model.TxLimitSell, execs[0].Receipt.Transaction.Type)

	bal, _ := f.ledger.Balance(ctx, "alice")
	assert.Equal(t, int64(320+5*75), bal)
	h, _ := f.ledger.Holding(ctx, "alice", "STMP")
	assert.Equal(t, int64(0), h.Shares)

	orders, _ := f.book.ListForUser(ctx, "alice")
	assert.Empty(t, orders)
}

func TestBuyOrderTrigger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	above, err := f.book.Create(ctx, CreateRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 1, TargetPrice: 64})
	require.NoError(t, err)
	below, err := f.book.Create(ctx, CreateRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 1, TargetPrice: 63})
	require.NoError(t, err)

	execs, err := f.book.EvaluateAll(ctx, map[string]int64{"STMP": 64})
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, above.ID, execs[0].Order.ID)
	assert.Equal(t, model.TxLimitBuy, execs[0].Receipt.Transaction.Type)

	orders, _ := f.book.ListForUser(ctx, "alice")
	require.Len(t, orders, 1)
	assert.Equal(t, below.ID, orders[0].ID)
}

func TestInsufficientFundsLeavesOrderStanding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.book.Create(ctx, CreateRequest{UserID: "alice", Symbol: "VOC", Side: model.SideBuy, Shares: 10, TargetPrice: 64})
	require.NoError(t, err)
	_, err = f.ledger.AdjustBalance(ctx, "alice", -600, model.TxAdminTake)
	require.NoError(t, err)

	execs, err := f.book.EvaluateAll(ctx, map[string]int64{"VOC": 60})
	require.NoError(t, err)
	assert.Empty(t, execs)

	orders, _ := f.book.ListForUser(ctx, "alice")
	assert.Len(t, orders, 1, "order must stay for a later cycle")
	bal, _ := f.ledger.Balance(ctx, "alice")
	assert.Equal(t, int64(40), bal)
}

func TestExpiredOrderIsRemovedWithoutExecution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.book.Create(ctx, CreateRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 1, TargetPrice: 100, TTL: time.Hour})
	require.NoError(t, err)

	f.book.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	execs, err := f.book.EvaluateAll(ctx, map[string]int64{"STMP": 64})
	require.NoError(t, err)
	assert.Empty(t, execs)

	orders, _ := f.store.ListOrders(ctx)
	assert.Empty(t, orders)
	bal, _ := f.ledger.Balance(ctx, "alice")
	assert.Equal(t, int64(640), bal)
}

func TestMissingPriceSkipsOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.book.Create(ctx, CreateRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 1, TargetPrice: 100})
	require.NoError(t, err)

	execs, err := f.book.EvaluateAll(ctx, map[string]int64{"VOC": 1})
	require.NoError(t, err)
	assert.Empty(t, execs)
	orders, _ := f.store.ListOrders(ctx)
	assert.Len(t, orders, 1)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"unknown symbol", CreateRequest{UserID: "alice", Symbol: "NOPE", Side: model.SideBuy, Shares: 1, TargetPrice: 1}, model.ErrNotFound},
		{"bad side", CreateRequest{UserID: "alice", Symbol: "STMP", Side: "short", Shares: 1, TargetPrice: 1}, model.ErrInvalidInput},
		{"zero shares", CreateRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 0, TargetPrice: 1}, model.ErrInvalidInput},
		{"zero target", CreateRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 1, TargetPrice: 0}, model.ErrInvalidInput},
		{"no user", CreateRequest{Symbol: "STMP", Side: model.SideBuy, Shares: 1, TargetPrice: 1}, model.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.book.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.halts.Set(ctx, "STMP", time.Hour)
	require.NoError(t, err)
	_, err = f.book.Create(ctx, CreateRequest{UserID: "alice", Symbol: "stmp", Side: model.SideBuy, Shares: 1, TargetPrice: 1})
	assert.ErrorIs(t, err, model.ErrTradingHalted)
}

func TestCreateDefaultsAndListOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.book.Create(ctx, CreateRequest{UserID: "alice", Symbol: "stmp", Side: model.SideBuy, Shares: 1, TargetPrice: 10})
	require.NoError(t, err)
	assert.Equal(t, "STMP", first.Symbol)
	assert.Equal(t, DefaultTTL, first.ExpiresAt.Sub(first.CreatedAt))

	second, err := f.book.Create(ctx, CreateRequest{UserID: "alice", Symbol: "VOC", Side: model.SideBuy, Shares: 1, TargetPrice: 10})
	require.NoError(t, err)

	orders, err := f.book.ListForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID, "newest first")
}

func TestCancelOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	o, err := f.book.Create(ctx, CreateRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 1, TargetPrice: 10})
	require.NoError(t, err)

	ok, err := f.book.Cancel(ctx, o.ID, "mallory")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.book.Cancel(ctx, o.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = f.book.Cancel(ctx, o.ID, "alice")
	assert.False(t, ok)
}

// racingExecutor cancels the order just before handing the trade to the ledger.
type racingExecutor struct {
	book *Book
	next Executor
}

func (r *racingExecutor) ApplyTrade(ctx context.Context, t ledger.Trade) (*ledger.Receipt, error) {
	_, _ = r.book.Cancel(ctx, t.OrderID, t.UserID)
	return r.next.ApplyTrade(ctx, t)
}

func TestCancelRacingExecutionNeverBothSucceed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.book.Create(ctx, CreateRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 1, TargetPrice: 64})
	require.NoError(t, err)

	f.book.exec = &racingExecutor{book: f.book, next: f.ledger}
	execs, err := f.book.EvaluateAll(ctx, map[string]int64{"STMP": 64})
	require.NoError(t, err)
	assert.Empty(t, execs)

	bal, _ := f.ledger.Balance(ctx, "alice")
	assert.Equal(t, int64(640), bal, "cancelled order must not execute")
}
