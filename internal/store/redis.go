package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerly/networth-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	if err := s.primary.CreateUser(ctx, u); err != nil {
		return err
	}
	s.set(ctx, userKey(u.ID), u)
	return nil
}

func (s *CachedStore) AddCash(ctx context.Context, c *model.CashHolding) error {
	if err := s.primary.AddCash(ctx, c); err != nil {
		return err
	}
	s.rdb.Del(ctx, recordsKey(c.UserID))
	return nil
}

func (s *CachedStore) AddHolding(ctx context.Context, h *model.HoldingAsset) error {
	if err := s.primary.AddHolding(ctx, h); err != nil {
		return err
	}
	s.rdb.Del(ctx, recordsKey(h.UserID))
	return nil
}

func (s *CachedStore) AddDepreciable(ctx context.Context, a *model.DepreciableAsset) error {
	if err := s.primary.AddDepreciable(ctx, a); err != nil {
		return err
	}
	s.rdb.Del(ctx, recordsKey(a.UserID))
	return nil
}

func (s *CachedStore) AddLiability(ctx context.Context, l *model.Liability) error {
	if err := s.primary.AddLiability(ctx, l); err != nil {
		return err
	}
	s.rdb.Del(ctx, recordsKey(l.UserID))
	return nil
}

func (s *CachedStore) DeleteRecord(ctx context.Context, userID string, kind RecordKind, id string) error {
	if err := s.primary.DeleteRecord(ctx, userID, kind, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, recordsKey(userID))
	return nil
}

func (s *CachedStore) SaveGoal(ctx context.Context, g *model.Goal) error {
	if err := s.primary.SaveGoal(ctx, g); err != nil {
		return err
	}
	s.rdb.Del(ctx, goalKey(g.UserID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if s.get(ctx, userKey(id), &u) {
		return &u, nil
	}

	got, err := s.primary.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.set(ctx, userKey(id), got)
	return got, nil
}

func (s *CachedStore) GetRecords(ctx context.Context, userID string) (*model.Records, error) {
	var r model.Records
	if s.get(ctx, recordsKey(userID), &r) {
		return &r, nil
	}

	got, err := s.primary.GetRecords(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.set(ctx, recordsKey(userID), got)
	return got, nil
}

func (s *CachedStore) GetGoal(ctx context.Context, userID string) (*model.Goal, error) {
	var g model.Goal
	if s.get(ctx, goalKey(userID), &g) {
		return &g, nil
	}

	got, err := s.primary.GetGoal(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.set(ctx, goalKey(userID), got)
	return got, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) SaveRates(ctx context.Context, rates []model.ExchangeRate) error {
	return s.primary.SaveRates(ctx, rates)
}

func (s *CachedStore) ListRates(ctx context.Context, base string) ([]model.ExchangeRate, error) {
	return s.primary.ListRates(ctx, base)
}

// --- Cache helpers ---

func (s *CachedStore) get(ctx context.Context, key string, v any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func (s *CachedStore) set(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func userKey(id string) string     { return fmt.Sprintf("user:%s", id) }
func recordsKey(uid string) string { return fmt.Sprintf("records:%s", uid) }
func goalKey(uid string) string    { return fmt.Sprintf("goal:%s", uid) }
