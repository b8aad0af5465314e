package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cogmarket/market-engine/internal/model"
)

//go:embed schema.sql
var schema string

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Monetary values are whole Spurs stored as BIGINT.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates any missing tables and indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// --- Instruments ---

func (s *PostgresStore) CreateInstrument(ctx context.Context, inst *model.Instrument) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO instruments (symbol, name, starting_price, current_price, volatility, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			inst.Symbol, inst.Name, inst.StartingPrice, inst.CurrentPrice, inst.Volatility, inst.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("instrument %s: %w", inst.Symbol, model.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("create instrument %s: %w", inst.Symbol, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO price_history (symbol, price, timestamp) VALUES ($1, $2, $3)`,
			inst.Symbol, inst.CurrentPrice, inst.UpdatedAt,
		)
		return err
	})
}

func (s *PostgresStore) GetInstrument(ctx context.Context, symbol string) (*model.Instrument, error) {
	var inst model.Instrument
	err := s.pool.QueryRow(ctx,
		`SELECT symbol, name, starting_price, current_price, volatility, updated_at
		 FROM instruments WHERE symbol = $1`, symbol).
		Scan(&inst.Symbol, &inst.Name, &inst.StartingPrice, &inst.CurrentPrice, &inst.Volatility, &inst.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("instrument %s: %w", symbol, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get instrument %s: %w", symbol, err)
	}
	return &inst, nil
}

// LoadInstrument reads the row straight from PostgreSQL.
func (s *PostgresStore) LoadInstrument(ctx context.Context, symbol string) (*model.Instrument, error) {
	return s.GetInstrument(ctx, symbol)
}

func (s *PostgresStore) ListInstruments(ctx context.Context) ([]model.Instrument, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT symbol, name, starting_price, current_price, volatility, updated_at
		 FROM instruments ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		var inst model.Instrument
		if err := rows.Scan(&inst.Symbol, &inst.Name, &inst.StartingPrice, &inst.CurrentPrice,
			&inst.Volatility, &inst.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordPrice(ctx context.Context, symbol string, point model.PricePoint, maxHistory int) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE instruments SET current_price = $2, updated_at = $3 WHERE symbol = $1`,
			symbol, point.Price, point.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("record price %s: %w", symbol, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("instrument %s: %w", symbol, model.ErrNotFound)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO price_history (symbol, price, timestamp) VALUES ($1, $2, $3)`,
			symbol, point.Price, point.Timestamp,
		); err != nil {
			return fmt.Errorf("append history %s: %w", symbol, err)
		}
		if maxHistory <= 0 {
			return nil
		}
		_, err = tx.Exec(ctx,
			`DELETE FROM price_history
			 WHERE symbol = $1 AND id <= (
			     SELECT id FROM price_history WHERE symbol = $1
			     ORDER BY id DESC OFFSET $2 LIMIT 1)`,
			symbol, maxHistory,
		)
		return err
	})
}

func (s *PostgresStore) PriceHistory(ctx context.Context, symbol string, limit int) ([]model.PricePoint, error) {
	if _, err := s.GetInstrument(ctx, symbol); err != nil {
		return nil, err
	}

	// LIMIT NULL is LIMIT ALL.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT price, timestamp FROM (
		     SELECT id, price, timestamp FROM price_history
		     WHERE symbol = $1 ORDER BY id DESC LIMIT $2
		 ) h ORDER BY id ASC`, symbol, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.Price, &p.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Ledger ---

func (s *PostgresStore) CreateAccount(ctx context.Context, acct *model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (user_id, balance, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		acct.UserID, acct.Balance, acct.CreatedAt, acct.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("account %s: %w", acct.UserID, model.ErrConflict)
	}
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1`, userID), userID)
}

func (s *PostgresStore) GetHolding(ctx context.Context, userID, symbol string) (*model.Holding, error) {
	return scanHolding(s.pool.QueryRow(ctx,
		`SELECT user_id, symbol, shares, avg_cost FROM holdings WHERE user_id = $1 AND symbol = $2`,
		userID, symbol), userID, symbol)
}

func (s *PostgresStore) ListHoldings(ctx context.Context, userID string) ([]model.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, symbol, shares, avg_cost FROM holdings
		 WHERE user_id = $1 AND shares > 0 ORDER BY symbol`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Holding
	for rows.Next() {
		var h model.Holding
		if err := rows.Scan(&h.UserID, &h.Symbol, &h.Shares, &h.AvgCost); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, type, symbol, amount, shares, price, timestamp
		 FROM transactions WHERE user_id = $1
		 ORDER BY timestamp DESC LIMIT $2`, userID, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var typ string
		if err := rows.Scan(&t.ID, &t.UserID, &typ, &t.Symbol, &t.Amount, &t.Shares, &t.Price, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Type = model.TransactionType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, balance, created_at, updated_at FROM accounts
		 ORDER BY balance DESC, user_id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.UserID, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InTx locks the account row for the lifetime of fn. Concurrent InTx calls
// for the same user queue on the row lock.
func (s *PostgresStore) InTx(ctx context.Context, userID string, fn func(tx LedgerTx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		acct, err := scanAccount(tx.QueryRow(ctx,
			`SELECT user_id, balance, created_at, updated_at FROM accounts
			 WHERE user_id = $1 FOR UPDATE`, userID), userID)
		if err != nil {
			return err
		}
		return fn(&pgLedgerTx{tx: tx, acct: acct})
	})
}

type pgLedgerTx struct {
	tx   pgx.Tx
	acct *model.Account
}

func (t *pgLedgerTx) Account(_ context.Context) (*model.Account, error) {
	a := *t.acct
	return &a, nil
}

func (t *pgLedgerTx) Holding(ctx context.Context, symbol string) (*model.Holding, error) {
	return scanHolding(t.tx.QueryRow(ctx,
		`SELECT user_id, symbol, shares, avg_cost FROM holdings
		 WHERE user_id = $1 AND symbol = $2 FOR UPDATE`,
		t.acct.UserID, symbol), t.acct.UserID, symbol)
}

func (t *pgLedgerTx) SetBalance(ctx context.Context, balance int64) error {
	now := time.Now().UTC()
	if _, err := t.tx.Exec(ctx,
		`UPDATE accounts SET balance = $2, updated_at = $3 WHERE user_id = $1`,
		t.acct.UserID, balance, now,
	); err != nil {
		return fmt.Errorf("set balance %s: %w", t.acct.UserID, err)
	}
	t.acct.Balance = balance
	t.acct.UpdatedAt = now
	return nil
}

func (t *pgLedgerTx) PutHolding(ctx context.Context, h model.Holding) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO holdings (user_id, symbol, shares, avg_cost) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, symbol) DO UPDATE
		 SET shares = EXCLUDED.shares, avg_cost = EXCLUDED.avg_cost`,
		t.acct.UserID, h.Symbol, h.Shares, h.AvgCost,
	)
	return err
}

func (t *pgLedgerTx) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO transactions (id, user_id, type, symbol, amount, shares, price, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.ID, txn.UserID, string(txn.Type), txn.Symbol, txn.Amount, txn.Shares, txn.Price, txn.Timestamp,
	)
	return err
}

func (t *pgLedgerTx) ConsumeOrder(ctx context.Context, orderID int64) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM limit_orders WHERE id = $1 AND user_id = $2`, orderID, t.acct.UserID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// --- Orders ---

func (s *PostgresStore) CreateOrder(ctx context.Context, o *model.LimitOrder) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO limit_orders (user_id, symbol, side, shares, target_price, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		o.UserID, o.Symbol, string(o.Side), o.Shares, o.TargetPrice, o.CreatedAt, o.ExpiresAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}
	o.ID = id
	return id, nil
}

func (s *PostgresStore) DeleteOrder(ctx context.Context, id int64) (bool, error) {
	return s.deleteRow(ctx, `DELETE FROM limit_orders WHERE id = $1`, id)
}

func (s *PostgresStore) DeleteUserOrder(ctx context.Context, id int64, userID string) (bool, error) {
	return s.deleteRow(ctx, `DELETE FROM limit_orders WHERE id = $1 AND user_id = $2`, id, userID)
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]model.LimitOrder, error) {
	return s.queryOrders(ctx,
		`SELECT id, user_id, symbol, side, shares, target_price, created_at, expires_at
		 FROM limit_orders ORDER BY id ASC`)
}

func (s *PostgresStore) ListUserOrders(ctx context.Context, userID string) ([]model.LimitOrder, error) {
	return s.queryOrders(ctx,
		`SELECT id, user_id, symbol, side, shares, target_price, created_at, expires_at
		 FROM limit_orders WHERE user_id = $1 ORDER BY id DESC`, userID)
}

func (s *PostgresStore) queryOrders(ctx context.Context, sql string, args ...any) ([]model.LimitOrder, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LimitOrder
	for rows.Next() {
		var o model.LimitOrder
		var side string
		if err := rows.Scan(&o.ID, &o.UserID, &o.Symbol, &side, &o.Shares, &o.TargetPrice,
			&o.CreatedAt, &o.ExpiresAt); err != nil {
			return nil, err
		}
		o.Side = model.Side(side)
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- Alerts ---

func (s *PostgresStore) CreateAlert(ctx context.Context, a *model.PriceAlert) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO price_alerts (user_id, symbol, condition, target_price, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		a.UserID, a.Symbol, string(a.Condition), a.TargetPrice, a.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create alert: %w", err)
	}
	a.ID = id
	return id, nil
}

func (s *PostgresStore) DeleteAlert(ctx context.Context, id int64) (bool, error) {
	return s.deleteRow(ctx, `DELETE FROM price_alerts WHERE id = $1`, id)
}

func (s *PostgresStore) DeleteUserAlert(ctx context.Context, id int64, userID string) (bool, error) {
	return s.deleteRow(ctx, `DELETE FROM price_alerts WHERE id = $1 AND user_id = $2`, id, userID)
}

func (s *PostgresStore) ListAlerts(ctx context.Context) ([]model.PriceAlert, error) {
	return s.queryAlerts(ctx,
		`SELECT id, user_id, symbol, condition, target_price, created_at
		 FROM price_alerts ORDER BY id ASC`)
}

func (s *PostgresStore) ListUserAlerts(ctx context.Context, userID string) ([]model.PriceAlert, error) {
	return s.queryAlerts(ctx,
		`SELECT id, user_id, symbol, condition, target_price, created_at
		 FROM price_alerts WHERE user_id = $1 ORDER BY id DESC`, userID)
}

func (s *PostgresStore) CountUserAlerts(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM price_alerts WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (s *PostgresStore) queryAlerts(ctx context.Context, sql string, args ...any) ([]model.PriceAlert, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PriceAlert
	for rows.Next() {
		var a model.PriceAlert
		var cond string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Symbol, &cond, &a.TargetPrice, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Condition = model.Condition(cond)
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Cooldowns ---

func (s *PostgresStore) SetCooldown(ctx context.Context, symbol string, until time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO team_trade_cooldowns (symbol, cooldown_until) VALUES ($1, $2)
		 ON CONFLICT (symbol) DO UPDATE SET cooldown_until = EXCLUDED.cooldown_until`,
		symbol, until,
	)
	return err
}

func (s *PostgresStore) GetCooldown(ctx context.Context, symbol string) (*model.TradeCooldown, error) {
	var c model.TradeCooldown
	err := s.pool.QueryRow(ctx,
		`SELECT symbol, cooldown_until FROM team_trade_cooldowns WHERE symbol = $1`, symbol).
		Scan(&c.Symbol, &c.Until)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cooldown %s: %w", symbol, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) DeleteCooldown(ctx context.Context, symbol string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM team_trade_cooldowns WHERE symbol = $1`, symbol)
	return err
}

// --- Audit ---

func (s *PostgresStore) InsertAdminAction(ctx context.Context, a *model.AdminAction) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO admin_log (admin_id, action, target_user_id, details, timestamp)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		a.AdminID, a.Action, a.TargetUserID, a.Details, a.Timestamp,
	).Scan(&a.ID)
}

func (s *PostgresStore) ListAdminActions(ctx context.Context, limit int) ([]model.AdminAction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, admin_id, action, target_user_id, details, timestamp
		 FROM admin_log ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AdminAction
	for rows.Next() {
		var a model.AdminAction
		if err := rows.Scan(&a.ID, &a.AdminID, &a.Action, &a.TargetUserID, &a.Details, &a.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Helpers ---

func (s *PostgresStore) deleteRow(ctx context.Context, sql string, args ...any) (bool, error) {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanAccount(row pgx.Row, userID string) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.UserID, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", userID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", userID, err)
	}
	return &a, nil
}

func scanHolding(row pgx.Row, userID, symbol string) (*model.Holding, error) {
	var h model.Holding
	err := row.Scan(&h.UserID, &h.Symbol, &h.Shares, &h.AvgCost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("holding %s/%s: %w", userID, symbol, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get holding %s/%s: %w", userID, symbol, err)
	}
	return &h, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
