package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/ledgerly/networth-engine/internal/model"
)

// TieredUsers looks a user up in the primary store first and consults the
// fallback only when the primary reports ErrNotFound. Other primary errors are
// returned as-is so an outage is never masked by stale fallback data.
type TieredUsers struct {
	primary  UserLookup
	fallback UserLookup
}

// NewTieredUsers creates a two-tier lookup. fallback may be nil.
func NewTieredUsers(primary, fallback UserLookup) *TieredUsers {
	return &TieredUsers{primary: primary, fallback: fallback}
}

func (t *TieredUsers) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := t.primary.GetUser(ctx, id)
	if err == nil || !errors.Is(err, ErrNotFound) || t.fallback == nil {
		return u, err
	}
	return t.fallback.GetUser(ctx, id)
}

// directoryUser is the GORM row of the fallback user directory.
type directoryUser struct {
	ID                string `gorm:"primaryKey"`
	Name              string
	Email             *string `gorm:"uniqueIndex"` // nil when the user has none
	ReportingCurrency string
	CreatedAt         time.Time
}

func (directoryUser) TableName() string { return "directory_users" }

// GormUserDirectory is a read-mostly user directory backed by GORM. It serves
// as the fallback tier of TieredUsers for users not yet in the primary store.
type GormUserDirectory struct {
	db *gorm.DB
}

// NewGormUserDirectory migrates the directory table on db.
func NewGormUserDirectory(db *gorm.DB) (*GormUserDirectory, error) {
	if err := db.AutoMigrate(&directoryUser{}); err != nil {
		return nil, fmt.Errorf("migrate user directory: %w", err)
	}
	return &GormUserDirectory{db: db}, nil
}

// OpenUserDirectory opens a SQLite-backed directory at dsn (":memory:" works).
func OpenUserDirectory(dsn string) (*GormUserDirectory, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open user directory: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// Every connection to :memory: is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open user directory: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewGormUserDirectory(db)
}

func (d *GormUserDirectory) GetUser(ctx context.Context, id string) (*model.User, error) {
	var row directoryUser
	err := d.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("directory lookup %s: %w", id, err)
	}
	u := &model.User{
		ID:                row.ID,
		Name:              row.Name,
		ReportingCurrency: row.ReportingCurrency,
		CreatedAt:         row.CreatedAt,
	}
	if row.Email != nil {
		u.Email = *row.Email
	}
	return u, nil
}

// Upsert creates or replaces a directory entry.
func (d *GormUserDirectory) Upsert(ctx context.Context, u *model.User) error {
	row := directoryUser{
		ID:                u.ID,
		Name:              u.Name,
		ReportingCurrency: u.ReportingCurrency,
		CreatedAt:         u.CreatedAt,
	}
	if u.Email != "" {
		email := u.Email
		row.Email = &email
	}
	return d.db.WithContext(ctx).Save(&row).Error
}

// DemoUser is the entry SeedDemo writes.
var DemoUser = model.User{
	ID:                "demo",
	Name:              "Demo User",
	Email:             "demo@example.com",
	ReportingCurrency: "AED",
}

// SeedDemo makes the demo user resolvable without touching the primary store.
func (d *GormUserDirectory) SeedDemo(ctx context.Context, now time.Time) error {
	u := DemoUser
	u.CreatedAt = now
	return d.Upsert(ctx, &u)
}
