package trade

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/money"
	"github.com/cogmarket/market-engine/internal/validate"
)

type adminKey struct{}

// RequireAdmin rejects requests without the configured X-Admin-Token and
// stores X-Admin-ID for the audit log.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			writeError(w, "admin API disabled", http.StatusForbidden)
			return
		}
		if !s.hasAdminToken(r) {
			writeError(w, "invalid admin token", http.StatusUnauthorized)
			return
		}
		id := r.Header.Get("X-Admin-ID")
		if id == "" {
			id = "api"
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey{}, id)))
	})
}

// hasAdminToken reports whether r carries the configured admin token.
func (s *Service) hasAdminToken(r *http.Request) bool {
	if s.adminToken == "" {
		return false
	}
	token := r.Header.Get("X-Admin-Token")
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) == 1
}

// HandleWS handles GET /ws. Clients presenting the admin token receive
// per-user order and alert messages as well as market-wide events.
func (s *Service) HandleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, s.hasAdminToken(r))
}

func adminID(r *http.Request) string {
	id, _ := r.Context().Value(adminKey{}).(string)
	return id
}

// SetPriceRequest is the JSON body for POST /admin/markets/{symbol}/price.
type SetPriceRequest struct {
	Price int64 `json:"price"`
}

// RatingRequest is the JSON body for POST /admin/markets/{symbol}/rating.
type RatingRequest struct {
	Rating int `json:"rating"`
}

// CooldownRequest is the JSON body for POST /admin/markets/{symbol}/cooldown.
type CooldownRequest struct {
	Seconds int64 `json:"seconds"`
}

// maxCooldownSeconds caps a manual cooldown at 30 days.
const maxCooldownSeconds = 30 * 24 * 60 * 60

// BalanceRequest is the JSON body for POST /admin/accounts/{userID}/balance.
// A positive amount grants Spurs, a negative one takes them.
type BalanceRequest struct {
	Amount int64 `json:"amount"`
}

// AdminSetPrice handles POST /admin/markets/{symbol}/price
func (s *Service) AdminSetPrice(w http.ResponseWriter, r *http.Request) {
	var req SetPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	inst, err := s.Admin.SetPrice(r.Context(), adminID(r), chi.URLParam(r, "symbol"), req.Price)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.broadcastPrice(inst)
	writeJSON(w, http.StatusOK, inst)
}

// AdminResetPrice handles POST /admin/markets/{symbol}/reset
func (s *Service) AdminResetPrice(w http.ResponseWriter, r *http.Request) {
	inst, err := s.Admin.ResetPrice(r.Context(), adminID(r), chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.broadcastPrice(inst)
	writeJSON(w, http.StatusOK, inst)
}

// AdminResetMarket handles POST /admin/markets/reset
func (s *Service) AdminResetMarket(w http.ResponseWriter, r *http.Request) {
	insts, err := s.Admin.ResetMarket(r.Context(), adminID(r))
	for i := range insts {
		s.broadcastPrice(&insts[i])
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insts)
}

// AdminHeat handles POST /admin/markets/{symbol}/heat
func (s *Service) AdminHeat(w http.ResponseWriter, r *http.Request) {
	ev, err := s.Admin.Heat(r.Context(), adminID(r), chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.broadcastEvent(MsgHeat, ev.Symbol, ev)
	writeJSON(w, http.StatusOK, ev)
}

// AdminRateBuild handles POST /admin/markets/{symbol}/rating
func (s *Service) AdminRateBuild(w http.ResponseWriter, r *http.Request) {
	var req RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	ev, err := s.Admin.RateBuild(r.Context(), adminID(r), chi.URLParam(r, "symbol"), req.Rating)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.broadcastEvent(MsgBuildRated, ev.Symbol, ev)
	writeJSON(w, http.StatusOK, ev)
}

// AdminCooldown handles POST /admin/markets/{symbol}/cooldown
func (s *Service) AdminCooldown(w http.ResponseWriter, r *http.Request) {
	var req CooldownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Seconds <= 0 || req.Seconds > maxCooldownSeconds {
		writeError(w, fmt.Sprintf("seconds must be between 1 and %d", maxCooldownSeconds), http.StatusBadRequest)
		return
	}
	until, err := s.Admin.Cooldown(r.Context(), adminID(r), chi.URLParam(r, "symbol"), time.Duration(req.Seconds)*time.Second)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.TradeCooldown{Symbol: validate.NormalizeSymbol(chi.URLParam(r, "symbol")), Until: until})
}

// AdminLiftCooldown handles DELETE /admin/markets/{symbol}/cooldown
func (s *Service) AdminLiftCooldown(w http.ResponseWriter, r *http.Request) {
	if err := s.Admin.LiftCooldown(r.Context(), adminID(r), chi.URLParam(r, "symbol")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminAdjustBalance handles POST /admin/accounts/{userID}/balance
func (s *Service) AdminAdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req BalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	userID := chi.URLParam(r, "userID")

	var (
		acct *model.Account
		err  error
	)
	if req.Amount < 0 {
		acct, err = s.Admin.Take(r.Context(), adminID(r), userID, -req.Amount)
	} else {
		acct, err = s.Admin.Give(r.Context(), adminID(r), userID, req.Amount)
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// AdminResetActivity handles POST /admin/activity/reset
func (s *Service) AdminResetActivity(w http.ResponseWriter, r *http.Request) {
	s.Admin.ResetActivity(r.Context(), adminID(r))
	w.WriteHeader(http.StatusNoContent)
}

// AdminRunCycle handles POST /admin/cycle
// Partial failures still return the report alongside the error list.
func (s *Service) AdminRunCycle(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Admin.RunCycle(r.Context(), adminID(r))
	if err != nil && rep == nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// AdminActions handles GET /admin/actions?limit=
func (s *Service) AdminActions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 50)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	actions, err := s.Admin.Actions(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if actions == nil {
		actions = []model.AdminAction{}
	}
	writeJSON(w, http.StatusOK, actions)
}

func (s *Service) broadcastPrice(inst *model.Instrument) {
	if s.hub == nil || inst == nil {
		return
	}
	s.hub.Broadcast(WSMessage{
		Type:   MsgPriceUpdate,
		Symbol: inst.Symbol,
		Data: map[string]any{
			"new_price": inst.CurrentPrice,
			"display":   money.Format(inst.CurrentPrice),
		},
	})
}

func (s *Service) broadcastEvent(typ, symbol string, data any) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(WSMessage{Type: typ, Symbol: symbol, Data: data})
}
