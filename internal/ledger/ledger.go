// Package ledger is the single writer of account balances and holdings.
// Every mutation runs inside one exclusive store transaction, serialized per
// user, so a trade's balance and holding changes land together or not at all.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cogmarket/market-engine/internal/keylock"
	"github.com/cogmarket/market-engine/internal/metrics"
	"github.com/cogmarket/market-engine/internal/model"
	"github.com/cogmarket/market-engine/internal/money"
	"github.com/cogmarket/market-engine/internal/store"
	"github.com/cogmarket/market-engine/internal/validate"
)

// DefaultStartingBalance is 10 Cogs.
const DefaultStartingBalance = 10 * money.SpursPerCog

// Config holds ledger settings.
type Config struct {
	StartingBalance int64
}

// Trade is one buy or sell against the ledger.
type Trade struct {
	UserID string
	Symbol string
	Side   model.Side
	Shares int64
	Price  int64

	// Type defaults to BUY or SELL from Side.
	Type model.TransactionType

	// OrderID, when set, is consumed in the same transaction.
	OrderID int64

	// Check, when set, sees the shares held before the trade while the
	// account is locked. A non-nil error aborts the trade.
	Check func(held int64) error
}

// Receipt is the committed result of a trade.
type Receipt struct {
	Transaction model.Transaction `json:"transaction"`
	Balance     int64             `json:"balance"`
	Holding     model.Holding     `json:"holding"`
}

// Ledger owns accounts, holdings and the transaction log.
type Ledger struct {
	store  store.LedgerStore
	locks  *keylock.Locker
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Ledger.
func New(st store.LedgerStore, cfg Config, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StartingBalance <= 0 {
		cfg.StartingBalance = DefaultStartingBalance
	}
	return &Ledger{
		store:  st,
		locks:  keylock.New(),
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register opens an account with the starting balance.
func (l *Ledger) Register(ctx context.Context, userID string) (*model.Account, error) {
	if err := validate.UserID(userID); err != nil {
		return nil, err
	}
	now := l.now()
	acct := &model.Account{
		UserID:    userID,
		Balance:   l.cfg.StartingBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.store.CreateAccount(ctx, acct); err != nil {
		return nil, model.Unavailable(err)
	}
	l.logger.Info("account registered", "user", userID, "balance", acct.Balance)
	return acct, nil
}

// Account returns a user's account.
func (l *Ledger) Account(ctx context.Context, userID string) (*model.Account, error) {
	acct, err := l.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, model.Unavailable(err)
	}
	return acct, nil
}

// Balance returns a user's balance in Spurs.
func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	acct, err := l.Account(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Holding returns the user's holding in symbol. A symbol never bought
// yields a zero holding rather than an error.
func (l *Ledger) Holding(ctx context.Context, userID, symbol string) (*model.Holding, error) {
	h, err := l.store.GetHolding(ctx, userID, symbol)
	if errors.Is(err, model.ErrNotFound) {
		return &model.Holding{UserID: userID, Symbol: symbol}, nil
	}
	if err != nil {
		return nil, model.Unavailable(err)
	}
	return h, nil
}

// Holdings returns positions with shares > 0.
func (l *Ledger) Holdings(ctx context.Context, userID string) ([]model.Holding, error) {
	hs, err := l.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, model.Unavailable(err)
	}
	return hs, nil
}

// Portfolio marks every open position to prices. Positions whose symbol is
// missing from prices are valued at their average cost.
func (l *Ledger) Portfolio(ctx context.Context, userID string, prices map[string]int64) (*model.Portfolio, error) {
	acct, err := l.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := l.Holdings(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := &model.Portfolio{
		UserID:     userID,
		Balance:    acct.Balance,
		Positions:  make([]model.PortfolioPosition, 0, len(holdings)),
		TotalValue: acct.Balance,
	}
	for _, h := range holdings {
		price, ok := prices[h.Symbol]
		if !ok {
			price = h.AvgCost
		}
		pos := model.PortfolioPosition{
			Holding:      h,
			CurrentPrice: price,
			MarketValue:  h.Shares * price,
			CostBasis:    h.Shares * h.AvgCost,
		}
		pos.UnrealizedPnL = pos.MarketValue - pos.CostBasis
		pos.PnLPercent = decimal.Zero
		if pos.CostBasis > 0 {
			pos.PnLPercent = money.PercentChange(pos.CostBasis, pos.MarketValue)
		}
		p.Positions = append(p.Positions, pos)
		p.TotalValue += pos.MarketValue
		p.TotalPnL += pos.UnrealizedPnL
	}
	return p, nil
}

// Leaderboard returns the limit richest accounts by balance.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]model.Account, error) {
	if limit <= 0 {
		limit = 10
	}
	accts, err := l.store.Leaderboard(ctx, limit)
	if err != nil {
		return nil, model.Unavailable(err)
	}
	return accts, nil
}

// Transactions returns a user's newest transactions first.
func (l *Ledger) Transactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	txns, err := l.store.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, model.Unavailable(err)
	}
	return txns, nil
}

// AdjustBalance adds delta (which may be negative) to the balance and logs
// it as txType. A change that would make the balance negative fails with no
// mutation.
func (l *Ledger) AdjustBalance(ctx context.Context, userID string, delta int64, txType model.TransactionType) (*model.Account, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: amount must be non-zero", model.ErrInvalidInput)
	}
	if delta > validate.MaxBalance || delta < -validate.MaxBalance {
		return nil, fmt.Errorf("%w: amount %d exceeds maximum %d", model.ErrOverflow, delta, validate.MaxBalance)
	}

	unlock, err := l.locks.LockContext(ctx, userID)
	if err != nil {
		return nil, model.Unavailable(err)
	}
	defer unlock()

	var out model.Account
	err = l.store.InTx(ctx, userID, func(tx store.LedgerTx) error {
		acct, err := tx.Account(ctx)
		if err != nil {
			return model.Unavailable(err)
		}
		next := acct.Balance + delta
		if next < 0 {
			return fmt.Errorf("%w: balance %d cannot cover %d", model.ErrInsufficientFunds, acct.Balance, -delta)
		}
		if err := validate.Balance(next); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, next); err != nil {
			return model.Unavailable(err)
		}
		amount := delta
		if amount < 0 {
			amount = -amount
		}
		if err := tx.InsertTransaction(ctx, &model.Transaction{
			ID:        uuid.New().String(),
			UserID:    userID,
			Type:      txType,
			Amount:    amount,
			Timestamp: l.now(),
		}); err != nil {
			return model.Unavailable(err)
		}
		out = *acct
		out.Balance = next
		return nil
	})
	if err != nil {
		return nil, model.Unavailable(err)
	}

	l.logger.Info("balance adjusted", "user", userID, "delta", delta, "type", txType, "balance", out.Balance)
	return &out, nil
}

// ApplyTrade executes t atomically: balance, holding, transaction log and
// (for limit orders) the order's removal commit together. Inputs and the
// trade total are validated before anything is touched.
func (l *Ledger) ApplyTrade(ctx context.Context, t Trade) (*Receipt, error) {
	start := time.Now()

	if err := validate.UserID(t.UserID); err != nil {
		return nil, err
	}
	if err := validate.Symbol(t.Symbol); err != nil {
		return nil, err
	}
	if !t.Side.Valid() {
		return nil, fmt.Errorf("%w: side must be buy or sell", model.ErrInvalidInput)
	}
	total, err := validate.Transaction(t.Shares, t.Price)
	if err != nil {
		return nil, err
	}
	if t.Type == "" {
		t.Type = model.TxBuy
		if t.Side == model.SideSell {
			t.Type = model.TxSell
		}
	}

	unlock, err := l.locks.LockContext(ctx, t.UserID)
	if err != nil {
		return nil, model.Unavailable(err)
	}
	defer unlock()

	var receipt Receipt
	err = l.store.InTx(ctx, t.UserID, func(tx store.LedgerTx) error {
		if t.OrderID != 0 {
			ok, err := tx.ConsumeOrder(ctx, t.OrderID)
			if err != nil {
				return model.Unavailable(err)
			}
			if !ok {
				return fmt.Errorf("order %d: %w", t.OrderID, model.ErrOrderGone)
			}
		}

		acct, err := tx.Account(ctx)
		if err != nil {
			return model.Unavailable(err)
		}
		h, err := tx.Holding(ctx, t.Symbol)
		if errors.Is(err, model.ErrNotFound) {
			h = &model.Holding{UserID: t.UserID, Symbol: t.Symbol}
		} else if err != nil {
			return model.Unavailable(err)
		}
		if t.Check != nil {
			if err := t.Check(h.Shares); err != nil {
				return err
			}
		}

		var balance int64
		switch t.Side {
		case model.SideBuy:
			if acct.Balance < total {
				return fmt.Errorf("%w: need %d, have %d", model.ErrInsufficientFunds, total, acct.Balance)
			}
			avg, err := validate.AverageCost(h.Shares, h.AvgCost, t.Shares, t.Price)
			if err != nil {
				return err
			}
			balance = acct.Balance - total
			h.Shares += t.Shares
			h.AvgCost = avg
		case model.SideSell:
			if h.Shares < t.Shares {
				return fmt.Errorf("%w: need %d, have %d", model.ErrInsufficientShares, t.Shares, h.Shares)
			}
			balance = acct.Balance + total
			if err := validate.Balance(balance); err != nil {
				return err
			}
			h.Shares -= t.Shares
		}

		if err := tx.SetBalance(ctx, balance); err != nil {
			return model.Unavailable(err)
		}
		if err := tx.PutHolding(ctx, *h); err != nil {
			return model.Unavailable(err)
		}
		txn := model.Transaction{
			ID:        uuid.New().String(),
			UserID:    t.UserID,
			Type:      t.Type,
			Symbol:    t.Symbol,
			Amount:    total,
			Shares:    t.Shares,
			Price:     t.Price,
			Timestamp: l.now(),
		}
		if err := tx.InsertTransaction(ctx, &txn); err != nil {
			return model.Unavailable(err)
		}

		receipt = Receipt{Transaction: txn, Balance: balance, Holding: *h}
		return nil
	})
	if err != nil {
		return nil, model.Unavailable(err)
	}

	metrics.TradeLatency.WithLabelValues(string(t.Side)).Observe(time.Since(start).Seconds())
	l.logger.Info("trade applied",
		"tx_id", receipt.Transaction.ID,
		"user", t.UserID,
		"symbol", t.Symbol,
		"side", t.Side,
		"shares", t.Shares,
		"price", t.Price,
		"type", t.Type,
		"balance", receipt.Balance,
	)
	return &receipt, nil
}
