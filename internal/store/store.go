// Package store defines the persistence interface for the net-worth engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerly/networth-engine/internal/model"
)

var (
	// ErrNotFound is returned when a user, record or goal does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when creating something that already exists.
	ErrConflict = errors.New("store: already exists")

	// ErrUnknownKind is returned for a record kind outside RecordKinds.
	ErrUnknownKind = errors.New("store: unknown record kind")
)

// RecordKind names one of the per-user record collections.
type RecordKind string

const (
	KindCash        RecordKind = "cash"
	KindHoldings    RecordKind = "holdings"
	KindAssets      RecordKind = "assets"
	KindLiabilities RecordKind = "liabilities"
)

// RecordKinds lists every record collection.
var RecordKinds = []RecordKind{KindCash, KindHoldings, KindAssets, KindLiabilities}

// ParseRecordKind validates a kind taken from a URL or flag.
func ParseRecordKind(s string) (RecordKind, error) {
	for _, k := range RecordKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// UserLookup finds a user by id. Store satisfies it, as do fallback
// directories used by TieredUsers.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. Every record query is scoped
// by user id.
type Store interface {
	UserLookup

	// --- Users ---

	// CreateUser persists a new user.
	CreateUser(ctx context.Context, u *model.User) error

	// --- Records ---

	AddCash(ctx context.Context, c *model.CashHolding) error
	AddHolding(ctx context.Context, h *model.HoldingAsset) error
	AddDepreciable(ctx context.Context, a *model.DepreciableAsset) error
	AddLiability(ctx context.Context, l *model.Liability) error

	// DeleteRecord removes one record owned by userID.
	DeleteRecord(ctx context.Context, userID string, kind RecordKind, id string) error

	// GetRecords returns the user's full snapshot. A user with no records gets
	// empty collections, not ErrNotFound.
	GetRecords(ctx context.Context, userID string) (*model.Records, error)

	// --- Goals ---

	// SaveGoal creates or replaces the user's goal.
	SaveGoal(ctx context.Context, g *model.Goal) error
	GetGoal(ctx context.Context, userID string) (*model.Goal, error)

	// --- Exchange rates ---

	// SaveRates appends quotes to the rate history.
	SaveRates(ctx context.Context, rates []model.ExchangeRate) error

	// ListRates returns the full history for base, oldest first.
	ListRates(ctx context.Context, base string) ([]model.ExchangeRate, error)
}

func emptyRecords() *model.Records {
	return &model.Records{
		Cash:        []model.CashHolding{},
		Holdings:    []model.HoldingAsset{},
		Depreciable: []model.DepreciableAsset{},
		Liabilities: []model.Liability{},
	}
}
