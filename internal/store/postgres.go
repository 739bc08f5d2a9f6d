package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks connectivity for health reporting.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, reporting_currency, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5)`,
		u.ID, u.Name, u.Email, u.ReportingCurrency, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.ID, ErrConflict)
	}
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(email, ''), reporting_currency, created_at
		 FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.ReportingCurrency, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// --- Records ---

func (s *PostgresStore) AddCash(ctx context.Context, c *model.CashHolding) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cash_holdings (id, user_id, kind, name, balance, currency)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6)`,
		c.ID, c.UserID, c.Kind, c.Name, c.Balance.String(), c.Currency,
	)
	return err
}

func (s *PostgresStore) AddHolding(ctx context.Context, h *model.HoldingAsset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO holding_assets (id, user_id, category, name, valuation_kind,
		                             quantity, unit_price, current_value, currency)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9)`,
		h.ID, h.UserID, h.Category, h.Name, h.Valuation.Kind,
		h.Valuation.Quantity.String(), h.Valuation.UnitPrice.String(), h.Valuation.CurrentValue.String(),
		h.Currency,
	)
	return err
}

func (s *PostgresStore) AddDepreciable(ctx context.Context, a *model.DepreciableAsset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO depreciable_assets (id, user_id, name, purchase_price, purchase_date, method,
		                                 rate, useful_life_years, salvage_value,
		                                 depreciation_enabled, pinned_value, currency)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10, $11::NUMERIC, $12)`,
		a.ID, a.UserID, a.Name, a.PurchasePrice.String(), a.PurchaseDate, a.Method,
		nullableText(a.Rate), nullableText(a.UsefulLifeYears), a.SalvageValue.String(),
		a.DepreciationEnabled, nullableText(a.PinnedValue), a.Currency,
	)
	return err
}

func (s *PostgresStore) AddLiability(ctx context.Context, l *model.Liability) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO liabilities (id, user_id, kind, name, outstanding_balance, credit_limit, emi_amount, currency)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)`,
		l.ID, l.UserID, l.Kind, l.Name, l.OutstandingBalance.String(),
		nullableText(l.Limit), nullableText(l.EMIAmount), l.Currency,
	)
	return err
}

var recordTables = map[RecordKind]string{
	KindCash:        "cash_holdings",
	KindHoldings:    "holding_assets",
	KindAssets:      "depreciable_assets",
	KindLiabilities: "liabilities",
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, userID string, kind RecordKind, id string) error {
	table, ok := recordTables[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+table+` WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetRecords(ctx context.Context, userID string) (*model.Records, error) {
	out := emptyRecords()
	var err error

	if out.Cash, err = s.listCash(ctx, userID); err != nil {
		return nil, fmt.Errorf("list cash: %w", err)
	}
	if out.Holdings, err = s.listHoldings(ctx, userID); err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	if out.Depreciable, err = s.listDepreciable(ctx, userID); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	if out.Liabilities, err = s.listLiabilities(ctx, userID); err != nil {
		return nil, fmt.Errorf("list liabilities: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) listCash(ctx context.Context, userID string) ([]model.CashHolding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, kind, name, balance::TEXT, currency
		 FROM cash_holdings WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.CashHolding{}
	for rows.Next() {
		var c model.CashHolding
		var balance string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Kind, &c.Name, &balance, &c.Currency); err != nil {
			return nil, err
		}
		c.Balance, _ = decimal.NewFromString(balance)
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *PostgresStore) listHoldings(ctx context.Context, userID string) ([]model.HoldingAsset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, category, name, valuation_kind,
		        quantity::TEXT, unit_price::TEXT, current_value::TEXT, currency
		 FROM holding_assets WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.HoldingAsset{}
	for rows.Next() {
		var h model.HoldingAsset
		var qty, price, value string
		if err := rows.Scan(&h.ID, &h.UserID, &h.Category, &h.Name, &h.Valuation.Kind,
			&qty, &price, &value, &h.Currency); err != nil {
			return nil, err
		}
		h.Valuation.Quantity, _ = decimal.NewFromString(qty)
		h.Valuation.UnitPrice, _ = decimal.NewFromString(price)
		h.Valuation.CurrentValue, _ = decimal.NewFromString(value)
		result = append(result, h)
	}
	return result, rows.Err()
}

func (s *PostgresStore) listDepreciable(ctx context.Context, userID string) ([]model.DepreciableAsset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, purchase_price::TEXT, purchase_date, method,
		        rate::TEXT, useful_life_years::TEXT, salvage_value::TEXT,
		        depreciation_enabled, pinned_value::TEXT, currency
		 FROM depreciable_assets WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.DepreciableAsset{}
	for rows.Next() {
		var a model.DepreciableAsset
		var price, salvage string
		var rate, life, pinned *string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &price, &a.PurchaseDate, &a.Method,
			&rate, &life, &salvage,
			&a.DepreciationEnabled, &pinned, &a.Currency); err != nil {
			return nil, err
		}
		a.PurchasePrice, _ = decimal.NewFromString(price)
		a.SalvageValue, _ = decimal.NewFromString(salvage)
		a.Rate = parseNullable(rate)
		a.UsefulLifeYears = parseNullable(life)
		a.PinnedValue = parseNullable(pinned)
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *PostgresStore) listLiabilities(ctx context.Context, userID string) ([]model.Liability, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, kind, name, outstanding_balance::TEXT,
		        credit_limit::TEXT, emi_amount::TEXT, currency
		 FROM liabilities WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []model.Liability{}
	for rows.Next() {
		var l model.Liability
		var balance string
		var limit, emi *string
		if err := rows.Scan(&l.ID, &l.UserID, &l.Kind, &l.Name, &balance,
			&limit, &emi, &l.Currency); err != nil {
			return nil, err
		}
		l.OutstandingBalance, _ = decimal.NewFromString(balance)
		l.Limit = parseNullable(limit)
		l.EMIAmount = parseNullable(emi)
		result = append(result, l)
	}
	return result, rows.Err()
}

// --- Goals ---

func (s *PostgresStore) SaveGoal(ctx context.Context, g *model.Goal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO goals (user_id, goal_net_worth, target_date, created_at, currency)
		 VALUES ($1, $2::NUMERIC, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET goal_net_worth = EXCLUDED.goal_net_worth,
		     target_date    = EXCLUDED.target_date,
		     created_at     = EXCLUDED.created_at,
		     currency       = EXCLUDED.currency`,
		g.UserID, g.GoalNetWorth.String(), g.TargetDate, g.CreatedAt, g.Currency,
	)
	return err
}

func (s *PostgresStore) GetGoal(ctx context.Context, userID string) (*model.Goal, error) {
	var g model.Goal
	var amount string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, goal_net_worth::TEXT, target_date, created_at, currency
		 FROM goals WHERE user_id = $1`, userID).
		Scan(&g.UserID, &amount, &g.TargetDate, &g.CreatedAt, &g.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("goal for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get goal %s: %w", userID, err)
	}
	g.GoalNetWorth, _ = decimal.NewFromString(amount)
	return &g, nil
}

// --- Exchange rates ---

func (s *PostgresStore) SaveRates(ctx context.Context, rates []model.ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rates {
		batch.Queue(
			`INSERT INTO exchange_rates (base, target, rate, fetched_at, source)
			 VALUES ($1, $2, $3::NUMERIC, $4, $5)
			 ON CONFLICT (base, target, fetched_at) DO NOTHING`,
			r.Base, r.Target, r.Rate.String(), r.FetchedAt, r.Source,
		)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

func (s *PostgresStore) ListRates(ctx context.Context, base string) ([]model.ExchangeRate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT base, target, rate::TEXT, fetched_at, source
		 FROM exchange_rates WHERE base = $1 ORDER BY fetched_at`, base)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.ExchangeRate
	for rows.Next() {
		var r model.ExchangeRate
		var rate string
		if err := rows.Scan(&r.Base, &r.Target, &rate, &r.FetchedAt, &r.Source); err != nil {
			return nil, err
		}
		r.Rate, _ = decimal.NewFromString(rate)
		result = append(result, r)
	}
	return result, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
