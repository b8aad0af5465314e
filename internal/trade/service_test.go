package trade_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/cogmarket/market-engine/internal/activity"
	"github.com/cogmarket/market-engine/internal/admin"
	"github.com/cogmarket/market-engine/internal/alerts"
	"github.com/cogmarket/market-engine/internal/cooldown"
	"github.com/cogmarket/market-engine/internal/engine"
	"github.com/cogmarket/market-engine/internal/instrument"
	"github.com/cogmarket/market-engine/internal/ledger"
	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/orderbook"
	"github.com/cogmarket/market-engine/internal/risk"
	"github.com/cogmarket/market-engine/internal/simulator"
	"github.com/cogmarket/market-engine/internal/store"
	"github.com/cogmarket/market-engine/internal/trade"
)

const testToken = "s3cret"

type zeroNoise struct{}

func (zeroNoise) NormFloat64() float64 { return 0 }

type testEnv struct {
	router   chi.Router
	ledger   *ledger.Ledger
	prices   *instrument.Service
	activity *activity.Tracker
}

// newTestEnv wires every component over an in-memory store. Each account
// starts with 640 Spurs; STMP and VOC both trade at 64.
func newTestEnv(t *testing.T, adminToken string) *testEnv {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()

	prices := instrument.New(st, instrument.DefaultConfig(), nil)
	if err := prices.Seed(ctx, []instrument.Definition{
		{Symbol: "STMP", Name: "Stampede", StartingPrice: 64, Volatility: 0.02},
		{Symbol: "VOC", Name: "Vocaloid", StartingPrice: 64, Volatility: 0.02},
	}); err != nil {
		t.Fatalf("seed instruments: %v", err)
	}
	act := activity.New("STMP", "VOC")
	sim := simulator.New(simulator.DefaultParams(), prices, act, zeroNoise{}, nil)
	l := ledger.New(st, ledger.Config{StartingBalance: 640}, nil)
	halts := cooldown.New(st)
	book := orderbook.New(st, l, prices, halts, 0, nil)
	reg := alerts.New(st, prices, 2, nil)

	eng := engine.New(engine.DefaultConfig(), engine.Components{
		Simulator: sim,
		Activity:  act,
		Prices:    prices,
		Orders:    book,
		Alerts:    reg,
	}, nil, nil)

	adm := admin.New(admin.DefaultConfig(), admin.Deps{
		Instruments: prices,
		Activity:    act,
		Momentum:    sim,
		Balances:    l,
		Halts:       halts,
		Cycler:      eng,
		Audit:       st,
	}, nil)

	svc := trade.NewService(trade.Deps{
		Instruments: prices,
		Activity:    act,
		Ledger:      l,
		Orders:      book,
		Alerts:      reg,
		Halts:       halts,
		Limiter:     risk.NewPositionLimiter(false, 5),
		Admin:       adm,
	}, nil, adminToken, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Mount)

	return &testEnv{router: r, ledger: l, prices: prices, activity: act}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) register(t *testing.T, userID string) {
	t.Helper()
	w := e.do(t, "POST", "/accounts", trade.CreateAccountRequest{UserID: userID})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", userID, w.Code, w.Body.String())
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

// --- Trade execution tests ---

func TestExecuteTrade_BuyThenSell(t *testing.T) {
	env := newTestEnv(t, "")
	env.register(t, "alice")

	w := env.do(t, "POST", "/trade", trade.TradeRequest{UserID: "alice", Symbol: "stmp", Side: model.SideBuy, Shares: 5})
	expectStatus(t, w, http.StatusOK)
	resp := decode[trade.TradeResponse](t, w)
	if resp.Symbol != "STMP" {
		t.Errorf("expected normalized symbol STMP, got %s", resp.Symbol)
	}
	if resp.Price != 64 || resp.Total != 320 {
		t.Errorf("expected 5 @ 64 = 320, got %d @ %d = %d", resp.Shares, resp.Price, resp.Total)
	}
	if resp.Balance != 320 {
		t.Errorf("expected balance 320, got %d", resp.Balance)
	}
	if resp.Holding.Shares != 5 || resp.Holding.AvgCost != 64 {
		t.Errorf("unexpected holding %+v", resp.Holding)
	}
	if resp.TransactionID == "" {
		t.Error("expected a transaction id")
	}

	w = env.do(t, "POST", "/trade", trade.TradeRequest{UserID: "alice", Symbol: "STMP", Side: model.SideSell, Shares: 2})
	expectStatus(t, w, http.StatusOK)
	resp = decode[trade.TradeResponse](t, w)
	if resp.Balance != 448 || resp.Holding.Shares != 3 {
		t.Errorf("expected balance 448 and 3 shares, got %d and %d", resp.Balance, resp.Holding.Shares)
	}

	w = env.do(t, "GET", "/accounts/alice/transactions?limit=1", nil)
	expectStatus(t, w, http.StatusOK)
	txns := decode[[]model.Transaction](t, w)
	if len(txns) != 1 || txns[0].Type != model.TxSell {
		t.Errorf("expected the sell as newest transaction, got %+v", txns)
	}
}

func TestExecuteTrade_Rejections(t *testing.T) {
	env := newTestEnv(t, "")
	env.register(t, "alice")

	cases := []struct {
		name string
		req  trade.TradeRequest
		want int
	}{
		{"insufficient funds", trade.TradeRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 11}, http.StatusConflict},
		{"insufficient shares", trade.TradeRequest{UserID: "alice", Symbol: "STMP", Side: model.SideSell, Shares: 1}, http.StatusConflict},
		{"invalid side", trade.TradeRequest{UserID: "alice", Symbol: "STMP", Side: "hold", Shares: 1}, http.StatusBadRequest},
		{"zero shares", trade.TradeRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 0}, http.StatusBadRequest},
		{"unknown symbol", trade.TradeRequest{UserID: "alice", Symbol: "NOPE", Side: model.SideBuy, Shares: 1}, http.StatusNotFound},
		{"unknown account", trade.TradeRequest{UserID: "ghost", Symbol: "STMP", Side: model.SideBuy, Shares: 1}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, "POST", "/trade", tc.req)
			expectStatus(t, w, tc.want)
		})
	}

	bal, err := env.ledger.Balance(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if bal != 640 {
		t.Errorf("rejected trades must not touch the balance, got %d", bal)
	}
}

func TestExecuteTrade_OwnTeamLimit(t *testing.T) {
	env := newTestEnv(t, "")
	env.register(t, "alice")

	w := env.do(t, "POST", "/trade", trade.TradeRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 6, Team: "stmp"})
	expectStatus(t, w, http.StatusConflict)

	w = env.do(t, "POST", "/trade", trade.TradeRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 5, Team: "stmp"})
	expectStatus(t, w, http.StatusOK)

	// Other teams' stock is unaffected.
	w = env.do(t, "POST", "/trade", trade.TradeRequest{UserID: "alice", Symbol: "VOC", Side: model.SideBuy, Shares: 4, Team: "stmp"})
	expectStatus(t, w, http.StatusOK)
}

func TestExecuteTrade_OwnTeamLimitUnderConcurrency(t *testing.T) {
	env := newTestEnv(t, "")
	env.register(t, "alice")

	codes := make(chan int, 5)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := env.do(t, "POST", "/trade", trade.TradeRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 2, Team: "STMP"})
			codes <- w.Code
		}()
	}
	wg.Wait()
	close(codes)

	ok := 0
	for code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	if ok != 2 {
		t.Errorf("accepted %d own-team buys of 2, want 2 under a cap of 5", ok)
	}
	h, err := env.ledger.Holding(context.Background(), "alice", "STMP")
	if err != nil {
		t.Fatalf("Holding: %v", err)
	}
	if h.Shares != 4 {
		t.Errorf("own-team holding = %d, want 4", h.Shares)
	}
}

// --- Limit orders ---

func TestOrders_CreateListCancel(t *testing.T) {
	env := newTestEnv(t, "")
	env.register(t, "alice")

	// 20 @ 60 = 1200 exceeds the 640 balance.
	w := env.do(t, "POST", "/orders", trade.OrderRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 20, TargetPrice: 60})
	expectStatus(t, w, http.StatusConflict)

	w = env.do(t, "POST", "/orders", trade.OrderRequest{UserID: "alice", Symbol: "STMP", Side: model.SideSell, Shares: 1, TargetPrice: 80})
	expectStatus(t, w, http.StatusConflict)

	w = env.do(t, "POST", "/orders", trade.OrderRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 5, TargetPrice: 60, TTLSeconds: -1})
	expectStatus(t, w, http.StatusBadRequest)

	w = env.do(t, "POST", "/orders", trade.OrderRequest{UserID: "alice", Symbol: "stmp", Side: model.SideBuy, Shares: 5, TargetPrice: 60})
	expectStatus(t, w, http.StatusCreated)
	order := decode[model.LimitOrder](t, w)
	if order.Symbol != "STMP" || order.ExpiresAt.IsZero() {
		t.Errorf("unexpected order %+v", order)
	}

	w = env.do(t, "GET", "/accounts/alice/orders", nil)
	expectStatus(t, w, http.StatusOK)
	if list := decode[[]model.LimitOrder](t, w); len(list) != 1 {
		t.Fatalf("expected 1 order, got %d", len(list))
	}

	path := "/orders/" + jsonID(order.ID)
	expectStatus(t, env.do(t, "DELETE", path+"?user_id=bob", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, "DELETE", path+"?user_id=alice", nil), http.StatusNoContent)
	expectStatus(t, env.do(t, "DELETE", path+"?user_id=alice", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, "DELETE", "/orders/abc?user_id=alice", nil), http.StatusBadRequest)
}

func jsonID(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}

// --- Alerts and activity ---

func TestAlerts_CreateListCancel(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, "POST", "/alerts", alerts.CreateRequest{UserID: "alice", Symbol: "VOC", Condition: "sideways", TargetPrice: 70})
	expectStatus(t, w, http.StatusBadRequest)

	w = env.do(t, "POST", "/alerts", alerts.CreateRequest{UserID: "alice", Symbol: "VOC", Condition: model.ConditionAbove, TargetPrice: 70})
	expectStatus(t, w, http.StatusCreated)
	a := decode[model.PriceAlert](t, w)

	expectStatus(t, env.do(t, "POST", "/alerts", alerts.CreateRequest{UserID: "alice", Symbol: "VOC", Condition: model.ConditionBelow, TargetPrice: 50}), http.StatusCreated)
	// The registry in this env allows two alerts per user.
	expectStatus(t, env.do(t, "POST", "/alerts", alerts.CreateRequest{UserID: "alice", Symbol: "STMP", Condition: model.ConditionBelow, TargetPrice: 50}), http.StatusConflict)

	w = env.do(t, "GET", "/accounts/alice/alerts", nil)
	expectStatus(t, w, http.StatusOK)
	if list := decode[[]model.PriceAlert](t, w); len(list) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(list))
	}

	expectStatus(t, env.do(t, "DELETE", "/alerts/"+jsonID(a.ID)+"?user_id=bob", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, "DELETE", "/alerts/"+jsonID(a.ID)+"?user_id=alice", nil), http.StatusNoContent)
}

func TestRecordActivity(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, "POST", "/activity/stmp", nil)
	expectStatus(t, w, http.StatusOK)
	if got := env.activity.Score("STMP"); got != 1 {
		t.Errorf("expected score 1, got %v", got)
	}
	expectStatus(t, env.do(t, "POST", "/activity/NOPE", nil), http.StatusNotFound)
}

// --- Queries ---

func TestMarketQueries(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, "GET", "/markets", nil)
	expectStatus(t, w, http.StatusOK)
	markets := decode[[]trade.MarketView](t, w)
	if len(markets) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(markets))
	}
	if markets[0].PriceDisplay == "" {
		t.Error("expected a display price")
	}

	w = env.do(t, "GET", "/markets/voc", nil)
	expectStatus(t, w, http.StatusOK)
	if m := decode[trade.MarketView](t, w); m.Symbol != "VOC" || m.CurrentPrice != 64 || m.CooldownSeconds != 0 {
		t.Errorf("unexpected market %+v", m)
	}
	expectStatus(t, env.do(t, "GET", "/markets/NOPE", nil), http.StatusNotFound)

	w = env.do(t, "GET", "/markets/STMP/price", nil)
	expectStatus(t, w, http.StatusOK)
	if p := decode[map[string]any](t, w); p["price"] != float64(64) {
		t.Errorf("expected price 64, got %v", p["price"])
	}

	if _, err := env.prices.UpdatePrice(context.Background(), "STMP", 70); err != nil {
		t.Fatal(err)
	}
	w = env.do(t, "GET", "/markets/STMP/history?limit=1", nil)
	expectStatus(t, w, http.StatusOK)
	hist := decode[[]model.PricePoint](t, w)
	if len(hist) != 1 || hist[0].Price != 70 {
		t.Errorf("expected the latest point at 70, got %+v", hist)
	}
	expectStatus(t, env.do(t, "GET", "/markets/STMP/history?limit=-1", nil), http.StatusBadRequest)
}

func TestPortfolioAndLeaderboard(t *testing.T) {
	env := newTestEnv(t, "")
	env.register(t, "alice")
	env.register(t, "bob")

	expectStatus(t, env.do(t, "POST", "/trade", trade.TradeRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 5}), http.StatusOK)
	if _, err := env.prices.UpdatePrice(context.Background(), "STMP", 80); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, "GET", "/accounts/alice/portfolio", nil)
	expectStatus(t, w, http.StatusOK)
	p := decode[model.Portfolio](t, w)
	if len(p.Positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(p.Positions))
	}
	if p.Positions[0].MarketValue != 400 || p.Positions[0].UnrealizedPnL != 80 {
		t.Errorf("unexpected position %+v", p.Positions[0])
	}
	if p.TotalValue != 720 {
		t.Errorf("expected total value 720, got %d", p.TotalValue)
	}

	w = env.do(t, "GET", "/leaderboard", nil)
	expectStatus(t, w, http.StatusOK)
	board := decode[[]model.Account](t, w)
	if len(board) != 2 || board[0].UserID != "bob" {
		t.Errorf("expected bob first by cash balance, got %+v", board)
	}

	expectStatus(t, env.do(t, "GET", "/accounts/ghost", nil), http.StatusNotFound)
}

// --- Admin ---

func TestAdmin_Auth(t *testing.T) {
	disabled := newTestEnv(t, "")
	expectStatus(t, disabled.do(t, "POST", "/admin/markets/STMP/heat", nil), http.StatusForbidden)

	env := newTestEnv(t, testToken)
	expectStatus(t, env.do(t, "POST", "/admin/markets/STMP/heat", nil), http.StatusUnauthorized)
	expectStatus(t, env.do(t, "POST", "/admin/markets/STMP/heat", nil, "X-Admin-Token", "wrong"), http.StatusUnauthorized)
}

func TestAdmin_HeatHaltsTrading(t *testing.T) {
	env := newTestEnv(t, testToken)
	env.register(t, "alice")

	w := env.do(t, "POST", "/admin/markets/stmp/heat", nil, "X-Admin-Token", testToken, "X-Admin-ID", "mod")
	expectStatus(t, w, http.StatusOK)
	ev := decode[admin.MarketEvent](t, w)
	if ev.OldPrice != 64 || ev.NewPrice != 80 {
		t.Errorf("expected 64 -> 80, got %d -> %d", ev.OldPrice, ev.NewPrice)
	}

	expectStatus(t, env.do(t, "POST", "/trade", trade.TradeRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 1}), http.StatusConflict)
	expectStatus(t, env.do(t, "POST", "/orders", trade.OrderRequest{UserID: "alice", Symbol: "STMP", Side: model.SideBuy, Shares: 1, TargetPrice: 60}), http.StatusConflict)
	expectStatus(t, env.do(t, "POST", "/trade", trade.TradeRequest{UserID: "alice", Symbol: "VOC", Side: model.SideBuy, Shares: 1}), http.StatusOK)

	w = env.do(t, "GET", "/markets/STMP", nil)
	expectStatus(t, w, http.StatusOK)
	if m := decode[trade.MarketView](t, w); m.CooldownSeconds <= 0 {
		t.Errorf("expected a remaining cooldown, got %d", m.CooldownSeconds)
	}

	w = env.do(t, "GET", "/admin/actions", nil, "X-Admin-Token", testToken)
	expectStatus(t, w, http.StatusOK)
	actions := decode[[]model.AdminAction](t, w)
	if len(actions) != 1 || actions[0].AdminID != "mod" || actions[0].Action != admin.ActionHeat {
		t.Errorf("unexpected audit log %+v", actions)
	}
}

func TestAdmin_CooldownBoundsAndLift(t *testing.T) {
	env := newTestEnv(t, testToken)
	env.register(t, "alice")
	auth := []string{"X-Admin-Token", testToken}

	for _, secs := range []int64{0, -5, 30*24*60*60 + 1, 1 << 62} {
		w := env.do(t, "POST", "/admin/markets/VOC/cooldown", trade.CooldownRequest{Seconds: secs}, auth...)
		expectStatus(t, w, http.StatusBadRequest)
	}

	expectStatus(t, env.do(t, "POST", "/admin/markets/VOC/cooldown", trade.CooldownRequest{Seconds: 600}, auth...), http.StatusOK)
	expectStatus(t, env.do(t, "POST", "/trade", trade.TradeRequest{UserID: "alice", Symbol: "VOC", Side: model.SideBuy, Shares: 1}), http.StatusConflict)

	expectStatus(t, env.do(t, "DELETE", "/admin/markets/NOPE/cooldown", nil, auth...), http.StatusNotFound)
	expectStatus(t, env.do(t, "DELETE", "/admin/markets/voc/cooldown", nil, auth...), http.StatusNoContent)
	expectStatus(t, env.do(t, "POST", "/trade", trade.TradeRequest{UserID: "alice", Symbol: "VOC", Side: model.SideBuy, Shares: 1}), http.StatusOK)
}

func TestAdmin_RatingAndBalance(t *testing.T) {
	env := newTestEnv(t, testToken)
	env.register(t, "alice")
	auth := []string{"X-Admin-Token", testToken}

	expectStatus(t, env.do(t, "POST", "/admin/markets/VOC/rating", trade.RatingRequest{Rating: 11}, auth...), http.StatusBadRequest)
	w := env.do(t, "POST", "/admin/markets/VOC/rating", trade.RatingRequest{Rating: 10}, auth...)
	expectStatus(t, w, http.StatusOK)
	if ev := decode[admin.MarketEvent](t, w); ev.NewPrice != 73 {
		t.Errorf("expected 73, got %d", ev.NewPrice)
	}

	w = env.do(t, "POST", "/admin/accounts/alice/balance", trade.BalanceRequest{Amount: 64}, auth...)
	expectStatus(t, w, http.StatusOK)
	if acct := decode[model.Account](t, w); acct.Balance != 704 {
		t.Errorf("expected 704, got %d", acct.Balance)
	}
	w = env.do(t, "POST", "/admin/accounts/alice/balance", trade.BalanceRequest{Amount: -100}, auth...)
	expectStatus(t, w, http.StatusOK)
	if acct := decode[model.Account](t, w); acct.Balance != 604 {
		t.Errorf("expected 604, got %d", acct.Balance)
	}
	expectStatus(t, env.do(t, "POST", "/admin/accounts/alice/balance", trade.BalanceRequest{Amount: -10_000}, auth...), http.StatusConflict)
	expectStatus(t, env.do(t, "POST", "/admin/accounts/alice/balance", trade.BalanceRequest{Amount: 0}, auth...), http.StatusBadRequest)
}

func TestAdmin_ResetAndCycle(t *testing.T) {
	env := newTestEnv(t, testToken)
	auth := []string{"X-Admin-Token", testToken}

	w := env.do(t, "POST", "/admin/markets/STMP/price", trade.SetPriceRequest{Price: 200}, auth...)
	expectStatus(t, w, http.StatusOK)
	if inst := decode[model.Instrument](t, w); inst.CurrentPrice != 200 {
		t.Errorf("expected 200, got %d", inst.CurrentPrice)
	}

	expectStatus(t, env.do(t, "POST", "/activity/VOC", nil), http.StatusOK)
	expectStatus(t, env.do(t, "POST", "/admin/activity/reset", nil, auth...), http.StatusNoContent)
	if got := env.activity.Score("VOC"); got != 0 {
		t.Errorf("expected activity reset, got %v", got)
	}

	w = env.do(t, "POST", "/admin/markets/reset", nil, auth...)
	expectStatus(t, w, http.StatusOK)
	if insts := decode[[]model.Instrument](t, w); len(insts) != 2 {
		t.Errorf("expected 2 instruments reset, got %d", len(insts))
	}

	w = env.do(t, "POST", "/admin/cycle", nil, auth...)
	expectStatus(t, w, http.StatusOK)
	rep := decode[engine.Report](t, w)
	if len(rep.Updates) != 2 {
		t.Fatalf("expected 2 price updates, got %d", len(rep.Updates))
	}
	for _, u := range rep.Updates {
		if u.NewPrice != 64 {
			t.Errorf("%s: a reset market with no noise stays at 64, got %d", u.Symbol, u.NewPrice)
		}
	}

	w = env.do(t, "POST", "/admin/markets/VOC/cooldown", trade.CooldownRequest{Seconds: 60}, auth...)
	expectStatus(t, w, http.StatusOK)
	if c := decode[model.TradeCooldown](t, w); c.Symbol != "VOC" {
		t.Errorf("expected VOC, got %s", c.Symbol)
	}
}
