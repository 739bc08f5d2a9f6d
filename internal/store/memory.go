package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ledgerly/networth-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*model.User
	records map[string]*model.Records
	goals   map[string]*model.Goal
	rates   []model.ExchangeRate
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*model.User),
		records: make(map[string]*model.Records),
		goals:   make(map[string]*model.Goal),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, ErrConflict)
	}
	for _, existing := range s.users {
		if u.Email != "" && existing.Email == u.Email {
			return fmt.Errorf("user with email %s: %w", u.Email, ErrConflict)
		}
	}

	// Store a copy to avoid external mutation.
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

// bucket returns the user's records, creating them. Caller holds the write lock.
func (s *MemoryStore) bucket(userID string) *model.Records {
	r, ok := s.records[userID]
	if !ok {
		r = emptyRecords()
		s.records[userID] = r
	}
	return r
}

func (s *MemoryStore) AddCash(_ context.Context, c *model.CashHolding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bucket(c.UserID)
	b.Cash = append(b.Cash, *c)
	return nil
}

func (s *MemoryStore) AddHolding(_ context.Context, h *model.HoldingAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bucket(h.UserID)
	b.Holdings = append(b.Holdings, *h)
	return nil
}

func (s *MemoryStore) AddDepreciable(_ context.Context, a *model.DepreciableAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bucket(a.UserID)
	b.Depreciable = append(b.Depreciable, copyDepreciable(*a))
	return nil
}

func (s *MemoryStore) AddLiability(_ context.Context, l *model.Liability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bucket(l.UserID)
	b.Liabilities = append(b.Liabilities, copyLiability(*l))
	return nil
}

func (s *MemoryStore) DeleteRecord(_ context.Context, userID string, kind RecordKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.records[userID]
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}

	var removed bool
	switch kind {
	case KindCash:
		b.Cash, removed = without(b.Cash, func(c model.CashHolding) bool { return c.ID == id })
	case KindHoldings:
		b.Holdings, removed = without(b.Holdings, func(h model.HoldingAsset) bool { return h.ID == id })
	case KindAssets:
		b.Depreciable, removed = without(b.Depreciable, func(a model.DepreciableAsset) bool { return a.ID == id })
	case KindLiabilities:
		b.Liabilities, removed = without(b.Liabilities, func(l model.Liability) bool { return l.ID == id })
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if !removed {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func (s *MemoryStore) GetRecords(_ context.Context, userID string) (*model.Records, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := emptyRecords()
	b, ok := s.records[userID]
	if !ok {
		return out, nil
	}
	out.Cash = append(out.Cash, b.Cash...)
	out.Holdings = append(out.Holdings, b.Holdings...)
	for _, a := range b.Depreciable {
		out.Depreciable = append(out.Depreciable, copyDepreciable(a))
	}
	for _, l := range b.Liabilities {
		out.Liabilities = append(out.Liabilities, copyLiability(l))
	}
	return out, nil
}

func (s *MemoryStore) SaveGoal(_ context.Context, g *model.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *g
	s.goals[g.UserID] = &cp
	return nil
}

func (s *MemoryStore) GetGoal(_ context.Context, userID string) (*model.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.goals[userID]
	if !ok {
		return nil, fmt.Errorf("goal for %s: %w", userID, ErrNotFound)
	}
	cp := *g
	return &cp, nil
}

func (s *MemoryStore) SaveRates(_ context.Context, rates []model.ExchangeRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rates = append(s.rates, rates...)
	return nil
}

func (s *MemoryStore) ListRates(_ context.Context, base string) ([]model.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ExchangeRate
	for _, r := range s.rates {
		if r.Base == base {
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].FetchedAt.Before(result[j].FetchedAt)
	})
	return result, nil
}

// without removes the first element matching match.
func without[T any](items []T, match func(T) bool) ([]T, bool) {
	for i, it := range items {
		if match(it) {
			return append(items[:i:i], items[i+1:]...), true
		}
	}
	return items, false
}

// copyDepreciable detaches the optional decimal pointers from the caller.
func copyDepreciable(a model.DepreciableAsset) model.DepreciableAsset {
	a.Rate = copyDecimal(a.Rate)
	a.UsefulLifeYears = copyDecimal(a.UsefulLifeYears)
	a.PinnedValue = copyDecimal(a.PinnedValue)
	return a
}

func copyLiability(l model.Liability) model.Liability {
	l.Limit = copyDecimal(l.Limit)
	l.EMIAmount = copyDecimal(l.EMIAmount)
	return l
}
