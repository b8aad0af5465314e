package trade

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/money"
	"github.com/cogmarket/market-engine/internal/validate"
)

const (
	defaultHistoryLimit     = 100
	defaultTransactionLimit = 50
	defaultLeaderboardLimit = 10
)

// MarketView is an instrument with its live activity and change since
// the starting price.
type MarketView struct {
	model.Instrument
	PriceDisplay    string          `json:"price_display"`
	ChangePercent   decimal.Decimal `json:"change_percent"`
	ActivityScore   float64         `json:"activity_score"`
	CooldownSeconds int64           `json:"cooldown_seconds,omitempty"`
}

func (s *Service) marketView(inst model.Instrument) MarketView {
	return MarketView{
		Instrument:    inst,
		PriceDisplay:  money.Format(inst.CurrentPrice),
		ChangePercent: money.PercentChange(inst.StartingPrice, inst.CurrentPrice),
		ActivityScore: s.Activity.Score(inst.Symbol),
	}
}

// ListMarkets handles GET /markets
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	list, err := s.Instruments.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := make([]MarketView, 0, len(list))
	for _, inst := range list {
		out = append(out, s.marketView(inst))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetMarket handles GET /markets/{symbol}
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	symbol := validate.NormalizeSymbol(chi.URLParam(r, "symbol"))

	inst, err := s.Instruments.Get(ctx, symbol)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	view := s.marketView(*inst)
	left, err := s.Halts.Remaining(ctx, symbol)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	view.CooldownSeconds = int64(left / time.Second)
	writeJSON(w, http.StatusOK, view)
}

// GetPrice handles GET /markets/{symbol}/price
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := validate.NormalizeSymbol(chi.URLParam(r, "symbol"))

	price, err := s.Instruments.Price(r.Context(), symbol)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"price":   price,
		"display": money.Format(price),
	})
}

// GetMarketHistory handles GET /markets/{symbol}/history?limit=
// limit=0 returns the whole retained history.
func (s *Service) GetMarketHistory(w http.ResponseWriter, r *http.Request) {
	symbol := validate.NormalizeSymbol(chi.URLParam(r, "symbol"))
	limit, err := parseLimit(r, defaultHistoryLimit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	points, err := s.Instruments.History(r.Context(), symbol, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if points == nil {
		points = []model.PricePoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

// GetAccount handles GET /accounts/{userID}
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.Ledger.Account(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":         acct,
		"balance_display": money.Format(acct.Balance),
	})
}

// GetPortfolio handles GET /accounts/{userID}/portfolio
// Marks every holding to the current price.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prices, err := s.Instruments.Prices(ctx)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	p, err := s.Ledger.Portfolio(ctx, chi.URLParam(r, "userID"), prices)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListUserOrders handles GET /accounts/{userID}/orders
func (s *Service) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Orders.ListForUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []model.LimitOrder{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// ListUserAlerts handles GET /accounts/{userID}/alerts
func (s *Service) ListUserAlerts(w http.ResponseWriter, r *http.Request) {
	list, err := s.Alerts.ListForUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []model.PriceAlert{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ListTransactions handles GET /accounts/{userID}/transactions?limit=
func (s *Service) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultTransactionLimit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	txns, err := s.Ledger.Transactions(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

// Leaderboard handles GET /leaderboard?limit=
func (s *Service) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultLeaderboardLimit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	accts, err := s.Ledger.Leaderboard(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if accts == nil {
		accts = []model.Account{}
	}
	writeJSON(w, http.StatusOK, accts)
}
