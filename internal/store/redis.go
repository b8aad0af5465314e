package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cogmarket/market-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. Methods not overridden
// here pass straight through to the primary.
//
// Every cached key has a generation counter. Writers bump it when they
// invalidate, and a fill is committed only if the counter did not move
// while the primary was being read, so a slow reader cannot put a value
// older than the last write back into the cache.
type CachedStore struct {
	Store
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{
		Store:  primary,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateInstrument(ctx context.Context, inst *model.Instrument) error {
	if err := s.Store.CreateInstrument(ctx, inst); err != nil {
		return err
	}
	s.invalidate(ctx, instrumentKey(inst.Symbol), instrumentsKey)
	return nil
}

func (s *CachedStore) RecordPrice(ctx context.Context, symbol string, point model.PricePoint, maxHistory int) error {
	if err := s.Store.RecordPrice(ctx, symbol, point, maxHistory); err != nil {
		return err
	}
	s.invalidate(ctx, instrumentKey(symbol), instrumentsKey)
	return nil
}

func (s *CachedStore) InTx(ctx context.Context, userID string, fn func(tx LedgerTx) error) error {
	err := s.Store.InTx(ctx, userID, fn)
	if err == nil {
		s.invalidate(ctx, accountKey(userID))
	}
	return err
}

// --- Read-through (check cache first) ---

// LoadInstrument always reads the primary.
func (s *CachedStore) LoadInstrument(ctx context.Context, symbol string) (*model.Instrument, error) {
	return s.Store.LoadInstrument(ctx, symbol)
}

func (s *CachedStore) GetInstrument(ctx context.Context, symbol string) (*model.Instrument, error) {
	var inst model.Instrument
	if s.getJSON(ctx, instrumentKey(symbol), &inst) {
		return &inst, nil
	}

	var got *model.Instrument
	err := s.fill(ctx, instrumentKey(symbol), func() (any, error) {
		var err error
		got, err = s.Store.GetInstrument(ctx, symbol)
		return got, err
	})
	return got, err
}

func (s *CachedStore) ListInstruments(ctx context.Context) ([]model.Instrument, error) {
	var list []model.Instrument
	if s.getJSON(ctx, instrumentsKey, &list) {
		return list, nil
	}

	err := s.fill(ctx, instrumentsKey, func() (any, error) {
		var err error
		list, err = s.Store.ListInstruments(ctx)
		return list, err
	})
	return list, err
}

func (s *CachedStore) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	var acct model.Account
	if s.getJSON(ctx, accountKey(userID), &acct) {
		return &acct, nil
	}

	var got *model.Account
	err := s.fill(ctx, accountKey(userID), func() (any, error) {
		var err error
		got, err = s.Store.GetAccount(ctx, userID)
		return got, err
	})
	return got, err
}

// --- Cache helpers ---

func (s *CachedStore) getJSON(ctx context.Context, key string, v any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// fill runs load against the primary and caches its result under key,
// unless key was invalidated while load ran. Redis failures never fail
// the read.
func (s *CachedStore) fill(ctx context.Context, key string, load func() (any, error)) error {
	loaded := false
	var loadErr error

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		var v any
		v, loadErr = load()
		loaded = true
		if loadErr != nil {
			return loadErr
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, genKey(key))

	if !loaded {
		// WATCH itself failed; serve from the primary uncached.
		_, loadErr = load()
	}
	if loadErr != nil {
		return loadErr
	}
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		s.logger.Debug("cache fill skipped", "key", key, "err", err)
	}
	return nil
}

// invalidate bumps the generation of each key and drops its value.
func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, genKey(k))
			p.Del(ctx, k)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("cache invalidation failed", "keys", keys, "err", err)
	}
}

const instrumentsKey = "instruments:all"

func instrumentKey(symbol string) string { return fmt.Sprintf("instrument:%s", symbol) }
func accountKey(uid string) string       { return fmt.Sprintf("account:%s", uid) }
func genKey(key string) string           { return "gen:" + key }
