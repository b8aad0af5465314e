// Package trade provides the HTTP handlers the chat-command layer calls to
// read markets, trade, manage limit orders and alerts, and run admin
// operations.
//
// All monetary values are integer Spurs; display strings are derived with
// the money package and never parsed back.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cogmarket/market-engine/internal/activity"
	"github.com/cogmarket/market-engine/internal/admin"
	"github.com/cogmarket/market-engine/internal/alerts"
	"github.com/cogmarket/market-engine/internal/cooldown"
	"github.com/cogmarket/market-engine/internal/instrument"
	"github.com/cogmarket/market-engine/internal/ledger"
	"github.com/cogmarket/market-engine/internal/metrics"
	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/money"
	"github.com/cogmarket/market-engine/internal/orderbook"
	"github.com/cogmarket/market-engine/internal/risk"
	"github.com/cogmarket/market-engine/internal/validate"
)

// Deps are the components the handlers call into.
type Deps struct {
	Instruments *instrument.Service
	Activity    *activity.Tracker
	Ledger      *ledger.Ledger
	Orders      *orderbook.Book
	Alerts      *alerts.Registry
	Halts       *cooldown.Registry
	Limiter     *risk.PositionLimiter
	Admin       *admin.Service
}

// Service handles the HTTP surface. Hub is optional.
type Service struct {
	Deps
	hub        *WSHub
	adminToken string
	logger     *slog.Logger
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed. An empty
// adminToken disables the admin routes.
func NewService(d Deps, hub *WSHub, adminToken string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Deps:       d,
		hub:        hub,
		adminToken: adminToken,
		logger:     logger,
	}
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trade.
type TradeRequest struct {
	UserID string     `json:"user_id"`
	Symbol string     `json:"symbol"`
	Side   model.Side `json:"side"`
	Shares int64      `json:"shares"`
	Team   string     `json:"team,omitempty"` // caller's team affiliation, if any
}

// TradeResponse is the JSON body returned from POST /trade.
type TradeResponse struct {
	TransactionID string        `json:"transaction_id"`
	UserID        string        `json:"user_id"`
	Symbol        string        `json:"symbol"`
	Side          model.Side    `json:"side"`
	Shares        int64         `json:"shares"`
	Price         int64         `json:"price"`
	Total         int64         `json:"total"`
	TotalDisplay  string        `json:"total_display"`
	Balance       int64         `json:"balance"`
	Holding       model.Holding `json:"holding"`
}

// OrderRequest is the JSON body for POST /orders.
type OrderRequest struct {
	UserID      string     `json:"user_id"`
	Symbol      string     `json:"symbol"`
	Side        model.Side `json:"side"`
	Shares      int64      `json:"shares"`
	TargetPrice int64      `json:"target_price"`
	TTLSeconds  int64      `json:"ttl_seconds,omitempty"`
	Team        string     `json:"team,omitempty"`
}

// CreateAccountRequest is the JSON body for POST /accounts.
type CreateAccountRequest struct {
	UserID string `json:"user_id"`
}

// --- Trading handlers ---

// ExecuteTrade handles POST /trade.
// Buys or sells at the current market price.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Symbol = validate.NormalizeSymbol(req.Symbol)
	if !req.Side.Valid() {
		writeError(w, "side must be buy or sell", http.StatusBadRequest)
		return
	}
	if err := validate.Shares(req.Shares); err != nil {
		s.writeServiceError(w, err)
		return
	}

	ctx := r.Context()

	if err := s.Halts.Check(ctx, req.Symbol); err != nil {
		s.writeServiceError(w, err)
		return
	}
	price, err := s.Instruments.Price(ctx, req.Symbol)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	receipt, err := s.Ledger.ApplyTrade(ctx, ledger.Trade{
		UserID: req.UserID,
		Symbol: req.Symbol,
		Side:   req.Side,
		Shares: req.Shares,
		Price:  price,
		Check:  s.riskCheck(req.Team, req.Symbol, req.Side, req.Shares),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	metrics.TradesTotal.WithLabelValues(string(req.Side)).Inc()

	s.logger.Info("trade executed",
		"tx_id", receipt.Transaction.ID,
		"user", req.UserID,
		"symbol", req.Symbol,
		"side", req.Side,
		"shares", req.Shares,
		"price", price,
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:   MsgTradeExecuted,
			Symbol: req.Symbol,
			UserID: req.UserID,
			Data: map[string]any{
				"side":   req.Side,
				"shares": req.Shares,
				"price":  price,
			},
		})
	}

	writeJSON(w, http.StatusOK, TradeResponse{
		TransactionID: receipt.Transaction.ID,
		UserID:        req.UserID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Shares:        req.Shares,
		Price:         price,
		Total:         receipt.Transaction.Amount,
		TotalDisplay:  money.Format(receipt.Transaction.Amount),
		Balance:       receipt.Balance,
		Holding:       receipt.Holding,
	})
}

// riskCheck returns the own-team policy for one trade, evaluated against
// the holding the ledger reads under the account lock. An empty team
// skips it.
func (s *Service) riskCheck(team, symbol string, side model.Side, shares int64) func(held int64) error {
	if s.Limiter == nil || team == "" {
		return nil
	}
	team = validate.NormalizeSymbol(team)
	return func(held int64) error {
		if err := s.Limiter.CheckLimit(team, symbol, side, shares, held); err != nil {
			metrics.RiskRejections.Inc()
			return err
		}
		return nil
	}
}

// checkRisk applies the own-team policy to the current holding.
func (s *Service) checkRisk(ctx context.Context, userID, team, symbol string, side model.Side, shares int64) error {
	check := s.riskCheck(team, symbol, side, shares)
	if check == nil {
		return nil
	}
	h, err := s.Ledger.Holding(ctx, userID, symbol)
	if err != nil {
		return err
	}
	return check(h.Shares)
}

// CreateOrder handles POST /orders.
// The owner must be able to afford the order at its target when it is
// placed; the ledger checks again when it executes.
func (s *Service) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Symbol = validate.NormalizeSymbol(req.Symbol)
	if !req.Side.Valid() {
		writeError(w, "side must be buy or sell", http.StatusBadRequest)
		return
	}
	if req.TTLSeconds < 0 {
		writeError(w, "ttl_seconds must not be negative", http.StatusBadRequest)
		return
	}
	total, err := validate.Transaction(req.Shares, req.TargetPrice)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	ctx := r.Context()
	if err := s.checkRisk(ctx, req.UserID, req.Team, req.Symbol, req.Side, req.Shares); err != nil {
		s.writeServiceError(w, err)
		return
	}

	switch req.Side {
	case model.SideBuy:
		bal, err := s.Ledger.Balance(ctx, req.UserID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if bal < total {
			s.writeServiceError(w, fmt.Errorf("%w: order needs %s, balance is %s",
				model.ErrInsufficientFunds, money.Format(total), money.Format(bal)))
			return
		}
	case model.SideSell:
		h, err := s.Ledger.Holding(ctx, req.UserID, req.Symbol)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if h.Shares < req.Shares {
			s.writeServiceError(w, fmt.Errorf("%w: order needs %d shares, holding %d",
				model.ErrInsufficientShares, req.Shares, h.Shares))
			return
		}
	}

	o, err := s.Orders.Create(ctx, orderbook.CreateRequest{
		UserID:      req.UserID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Shares:      req.Shares,
		TargetPrice: req.TargetPrice,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// CancelOrder handles DELETE /orders/{orderID}?user_id=
func (s *Service) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeError(w, "invalid order id", http.StatusBadRequest)
		return
	}
	ok, err := s.Orders.Cancel(r.Context(), id, r.URL.Query().Get("user_id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, "order not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateAlert handles POST /alerts.
func (s *Service) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req alerts.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	a, err := s.Alerts.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// CancelAlert handles DELETE /alerts/{alertID}?user_id=
func (s *Service) CancelAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "alertID"), 10, 64)
	if err != nil {
		writeError(w, "invalid alert id", http.StatusBadRequest)
		return
	}
	ok, err := s.Alerts.Cancel(r.Context(), id, r.URL.Query().Get("user_id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, "alert not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordActivity handles POST /activity/{symbol}.
// Called by the chat layer for each team-affiliated message.
func (s *Service) RecordActivity(w http.ResponseWriter, r *http.Request) {
	symbol := validate.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if !s.Activity.Increment(symbol) {
		writeError(w, "unknown symbol: "+symbol, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"score":  s.Activity.Score(symbol),
	})
}

// --- Accounts ---

// CreateAccount handles POST /accounts.
func (s *Service) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	acct, err := s.Ledger.Register(r.Context(), req.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// --- Helpers ---

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrOverflow):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientFunds),
		errors.Is(err, model.ErrInsufficientShares),
		errors.Is(err, model.ErrLimitExceeded),
		errors.Is(err, model.ErrTradingHalted),
		errors.Is(err, model.ErrOrderGone),
		errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Unclassified errors
// are logged and reported without detail.
func (s *Service) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
		writeError(w, "internal error", status)
		return
	}
	writeError(w, err.Error(), status)
}

// parseLimit reads the limit query parameter, def when absent.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", model.ErrInvalidInput)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
