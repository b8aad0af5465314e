package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cogmarket/market-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu sync.RWMutex

	instruments map[string]*model.Instrument
	history     map[string][]model.PricePoint

	accounts     map[string]*model.Account
	holdings     map[holdingKey]*model.Holding
	transactions []model.Transaction

	orders      map[int64]*model.LimitOrder
	nextOrderID int64

	alerts      map[int64]*model.PriceAlert
	nextAlertID int64

	cooldowns map[string]time.Time

	adminLog    []model.AdminAction
	nextAdminID int64
}

type holdingKey struct {
	userID string
	symbol string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		instruments: make(map[string]*model.Instrument),
		history:     make(map[string][]model.PricePoint),
		accounts:    make(map[string]*model.Account),
		holdings:    make(map[holdingKey]*model.Holding),
		orders:      make(map[int64]*model.LimitOrder),
		alerts:      make(map[int64]*model.PriceAlert),
		cooldowns:   make(map[string]time.Time),
	}
}

// --- Instruments ---

func (s *MemoryStore) CreateInstrument(_ context.Context, inst *model.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instruments[inst.Symbol]; ok {
		return fmt.Errorf("instrument %s: %w", inst.Symbol, model.ErrConflict)
	}

	// Store a copy to avoid external mutation.
	copy := *inst
	copy.History = nil
	s.instruments[inst.Symbol] = &copy
	s.history[inst.Symbol] = append([]model.PricePoint(nil), inst.History...)
	return nil
}

func (s *MemoryStore) GetInstrument(_ context.Context, symbol string) (*model.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instruments[symbol]
	if !ok {
		return nil, fmt.Errorf("instrument %s: %w", symbol, model.ErrNotFound)
	}
	copy := *inst
	return &copy, nil
}

func (s *MemoryStore) LoadInstrument(ctx context.Context, symbol string) (*model.Instrument, error) {
	return s.GetInstrument(ctx, symbol)
}

func (s *MemoryStore) ListInstruments(_ context.Context) ([]model.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Instrument, 0, len(s.instruments))
	for _, inst := range s.instruments {
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *MemoryStore) RecordPrice(_ context.Context, symbol string, point model.PricePoint, maxHistory int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instruments[symbol]
	if !ok {
		return fmt.Errorf("instrument %s: %w", symbol, model.ErrNotFound)
	}
	inst.CurrentPrice = point.Price
	inst.UpdatedAt = point.Timestamp

	h := append(s.history[symbol], point)
	if maxHistory > 0 && len(h) > maxHistory {
		h = append([]model.PricePoint(nil), h[len(h)-maxHistory:]...)
	}
	s.history[symbol] = h
	return nil
}

func (s *MemoryStore) PriceHistory(_ context.Context, symbol string, limit int) ([]model.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.instruments[symbol]; !ok {
		return nil, fmt.Errorf("instrument %s: %w", symbol, model.ErrNotFound)
	}
	h := s.history[symbol]
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]model.PricePoint(nil), h...), nil
}

// --- Ledger ---

func (s *MemoryStore) CreateAccount(_ context.Context, acct *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acct.UserID]; ok {
		return fmt.Errorf("account %s: %w", acct.UserID, model.ErrConflict)
	}
	copy := *acct
	s.accounts[acct.UserID] = &copy
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, userID string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", userID, model.ErrNotFound)
	}
	copy := *acct
	return &copy, nil
}

func (s *MemoryStore) GetHolding(_ context.Context, userID, symbol string) (*model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holdings[holdingKey{userID, symbol}]
	if !ok {
		return nil, fmt.Errorf("holding %s/%s: %w", userID, symbol, model.ErrNotFound)
	}
	copy := *h
	return &copy, nil
}

func (s *MemoryStore) ListHoldings(_ context.Context, userID string) ([]model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Holding
	for k, h := range s.holdings {
		if k.userID == userID && h.Shares > 0 {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, userID string, limit int) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID != userID {
			continue
		}
		out = append(out, s.transactions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Leaderboard(_ context.Context, limit int) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InTx holds the store lock for the whole of fn and applies staged writes
// only when fn succeeds. fn must only use tx; calling other store methods
// from inside fn deadlocks.
func (s *MemoryStore) InTx(ctx context.Context, userID string, fn func(tx LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	acct, ok := s.accounts[userID]
	if !ok {
		return fmt.Errorf("account %s: %w", userID, model.ErrNotFound)
	}

	tx := &memTx{
		s:        s,
		account:  *acct,
		holdings: make(map[string]model.Holding),
		consumed: make(map[int64]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}

	// Commit.
	*acct = tx.account
	for sym, h := range tx.holdings {
		copy := h
		s.holdings[holdingKey{userID, sym}] = &copy
	}
	s.transactions = append(s.transactions, tx.txns...)
	for id := range tx.consumed {
		delete(s.orders, id)
	}
	return nil
}

// memTx stages writes against a MemoryStore while its lock is held.
type memTx struct {
	s        *MemoryStore
	account  model.Account
	holdings map[string]model.Holding
	txns     []model.Transaction
	consumed map[int64]bool
}

func (t *memTx) Account(_ context.Context) (*model.Account, error) {
	copy := t.account
	return &copy, nil
}

func (t *memTx) Holding(_ context.Context, symbol string) (*model.Holding, error) {
	if h, ok := t.holdings[symbol]; ok {
		return &h, nil
	}
	h, ok := t.s.holdings[holdingKey{t.account.UserID, symbol}]
	if !ok {
		return nil, fmt.Errorf("holding %s/%s: %w", t.account.UserID, symbol, model.ErrNotFound)
	}
	copy := *h
	return &copy, nil
}

func (t *memTx) SetBalance(_ context.Context, balance int64) error {
	t.account.Balance = balance
	t.account.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) PutHolding(_ context.Context, h model.Holding) error {
	h.UserID = t.account.UserID
	t.holdings[h.Symbol] = h
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, txn *model.Transaction) error {
	t.txns = append(t.txns, *txn)
	return nil
}

func (t *memTx) ConsumeOrder(_ context.Context, orderID int64) (bool, error) {
	o, ok := t.s.orders[orderID]
	if !ok || o.UserID != t.account.UserID || t.consumed[orderID] {
		return false, nil
	}
	t.consumed[orderID] = true
	return true, nil
}

// --- Orders ---

func (s *MemoryStore) CreateOrder(_ context.Context, o *model.LimitOrder) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOrderID++
	copy := *o
	copy.ID = s.nextOrderID
	s.orders[copy.ID] = &copy
	o.ID = copy.ID
	return copy.ID, nil
}

func (s *MemoryStore) DeleteOrder(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return false, nil
	}
	delete(s.orders, id)
	return true, nil
}

func (s *MemoryStore) DeleteUserOrder(_ context.Context, id int64, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok || o.UserID != userID {
		return false, nil
	}
	delete(s.orders, id)
	return true, nil
}

func (s *MemoryStore) ListOrders(_ context.Context) ([]model.LimitOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.LimitOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListUserOrders(_ context.Context, userID string) ([]model.LimitOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.LimitOrder
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// --- Alerts ---

func (s *MemoryStore) CreateAlert(_ context.Context, a *model.PriceAlert) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAlertID++
	copy := *a
	copy.ID = s.nextAlertID
	s.alerts[copy.ID] = &copy
	a.ID = copy.ID
	return copy.ID, nil
}

func (s *MemoryStore) DeleteAlert(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[id]; !ok {
		return false, nil
	}
	delete(s.alerts, id)
	return true, nil
}

func (s *MemoryStore) DeleteUserAlert(_ context.Context, id int64, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok || a.UserID != userID {
		return false, nil
	}
	delete(s.alerts, id)
	return true, nil
}

func (s *MemoryStore) ListAlerts(_ context.Context) ([]model.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.PriceAlert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListUserAlerts(_ context.Context, userID string) ([]model.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PriceAlert
	for _, a := range s.alerts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryStore) CountUserAlerts(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.alerts {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

// --- Cooldowns ---

func (s *MemoryStore) SetCooldown(_ context.Context, symbol string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cooldowns[symbol] = until
	return nil
}

func (s *MemoryStore) GetCooldown(_ context.Context, symbol string) (*model.TradeCooldown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	until, ok := s.cooldowns[symbol]
	if !ok {
		return nil, fmt.Errorf("cooldown %s: %w", symbol, model.ErrNotFound)
	}
	return &model.TradeCooldown{Symbol: symbol, Until: until}, nil
}

func (s *MemoryStore) DeleteCooldown(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cooldowns, symbol)
	return nil
}

// --- Audit ---

func (s *MemoryStore) InsertAdminAction(_ context.Context, a *model.AdminAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAdminID++
	copy := *a
	copy.ID = s.nextAdminID
	s.adminLog = append(s.adminLog, copy)
	a.ID = copy.ID
	return nil
}

func (s *MemoryStore) ListAdminActions(_ context.Context, limit int) ([]model.AdminAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AdminAction
	for i := len(s.adminLog) - 1; i >= 0; i-- {
		out = append(out, s.adminLog[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
