package portfolio

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/currency"
	"github.com/ledgerly/networth-engine/internal/depreciation"
	"github.com/ledgerly/networth-engine/internal/metrics"
	"github.com/ledgerly/networth-engine/internal/model"
	"github.com/ledgerly/networth-engine/internal/store"
	"github.com/ledgerly/networth-engine/internal/valuation"
)

// CreateUserRequest is the JSON body for POST /users.
type CreateUserRequest struct {
	ID                string `json:"id"` // optional; generated when empty
	Name              string `json:"name"`
	Email             string `json:"email"`
	ReportingCurrency string `json:"reporting_currency"`
}

// CreateUser handles POST /api/v1/users
func (s *Service) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		fail(w, r, invalid("name is required"))
		return
	}
	cur := s.reporting
	if req.ReportingCurrency != "" {
		c, err := currency.Validate(req.ReportingCurrency)
		if err != nil {
			fail(w, r, err)
			return
		}
		cur = c
	}

	u := &model.User{
		ID:                req.ID,
		Name:              strings.TrimSpace(req.Name),
		Email:             strings.ToLower(strings.TrimSpace(req.Email)),
		ReportingCurrency: cur,
		CreatedAt:         s.now().UTC(),
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}

	if err := s.store.CreateUser(r.Context(), u); err != nil {
		fail(w, r, err)
		return
	}
	slog.Info("user created", "id", u.ID, "reporting_currency", u.ReportingCurrency)
	writeJSON(w, http.StatusCreated, u)
}

// GetUser handles GET /api/v1/users/{userID}
func (s *Service) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.user(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GetRecords handles GET /api/v1/users/{userID}/records
func (s *Service) GetRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.user(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	records, err := s.store.GetRecords(ctx, u.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// addRecord is the shared flow of the four create handlers: resolve the
// user, decode and validate the body, persist, then push the new net worth.
func addRecord[T any](s *Service, w http.ResponseWriter, r *http.Request, kind store.RecordKind,
	prepare func(u *model.User, rec *T) error,
	save func(r *http.Request, rec *T) error,
) {
	u, err := s.writer(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	var rec T
	if err := decode(r, &rec); err != nil {
		fail(w, r, err)
		return
	}
	if err := prepare(u, &rec); err != nil {
		fail(w, r, err)
		return
	}
	if err := save(r, &rec); err != nil {
		fail(w, r, err)
		return
	}

	metrics.RecordWrites.WithLabelValues(string(kind), "create").Inc()
	slog.Info("record created", "user", u.ID, "kind", kind)
	s.publish(r.Context(), u)
	writeJSON(w, http.StatusCreated, rec)
}

// recordCurrency defaults an empty currency to the user's reporting currency.
func recordCurrency(u *model.User, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return u.ReportingCurrency, nil
	}
	return currency.Validate(code)
}

func newID(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}

// AddCash handles POST /api/v1/users/{userID}/cash
func (s *Service) AddCash(w http.ResponseWriter, r *http.Request) {
	addRecord(s, w, r, store.KindCash,
		func(u *model.User, c *model.CashHolding) error {
			if c.Kind != model.CashBank && c.Kind != model.CashWallet {
				return invalid("kind must be BANK or WALLET")
			}
			cur, err := recordCurrency(u, c.Currency)
			if err != nil {
				return err
			}
			c.ID, c.UserID, c.Currency = newID(c.ID), u.ID, cur
			return nil
		},
		func(r *http.Request, c *model.CashHolding) error { return s.store.AddCash(r.Context(), c) },
	)
}

// AddHolding handles POST /api/v1/users/{userID}/holdings
func (s *Service) AddHolding(w http.ResponseWriter, r *http.Request) {
	addRecord(s, w, r, store.KindHoldings,
		func(u *model.User, h *model.HoldingAsset) error {
			if err := valuation.ValidateHolding(*h); err != nil {
				return err
			}
			v := h.Valuation
			if v.Quantity.IsNegative() || v.UnitPrice.IsNegative() || v.CurrentValue.IsNegative() {
				return invalid("valuation amounts must be non-negative")
			}
			cur, err := recordCurrency(u, h.Currency)
			if err != nil {
				return err
			}
			h.ID, h.UserID, h.Currency = newID(h.ID), u.ID, cur
			return nil
		},
		func(r *http.Request, h *model.HoldingAsset) error { return s.store.AddHolding(r.Context(), h) },
	)
}

// AddDepreciable handles POST /api/v1/users/{userID}/assets
func (s *Service) AddDepreciable(w http.ResponseWriter, r *http.Request) {
	addRecord(s, w, r, store.KindAssets,
		func(u *model.User, a *model.DepreciableAsset) error {
			if err := depreciation.Validate(*a); err != nil {
				return err
			}
			cur, err := recordCurrency(u, a.Currency)
			if err != nil {
				return err
			}
			a.ID, a.UserID, a.Currency = newID(a.ID), u.ID, cur
			return nil
		},
		func(r *http.Request, a *model.DepreciableAsset) error { return s.store.AddDepreciable(r.Context(), a) },
	)
}

// AddLiability handles POST /api/v1/users/{userID}/liabilities
func (s *Service) AddLiability(w http.ResponseWriter, r *http.Request) {
	addRecord(s, w, r, store.KindLiabilities,
		func(u *model.User, l *model.Liability) error {
			if l.Kind != model.LiabilityLoan && l.Kind != model.LiabilityCreditCard {
				return invalid("kind must be LOAN or CREDIT_CARD")
			}
			if l.OutstandingBalance.IsNegative() {
				return invalid("outstanding_balance must be non-negative")
			}
			if negative(l.Limit) || negative(l.EMIAmount) {
				return invalid("limit and emi_amount must be non-negative")
			}
			cur, err := recordCurrency(u, l.Currency)
			if err != nil {
				return err
			}
			l.ID, l.UserID, l.Currency = newID(l.ID), u.ID, cur
			return nil
		},
		func(r *http.Request, l *model.Liability) error { return s.store.AddLiability(r.Context(), l) },
	)
}

func negative(v *decimal.Decimal) bool {
	return v != nil && v.IsNegative()
}

// DeleteRecord handles DELETE /api/v1/users/{userID}/{kind}/{recordID}
func (s *Service) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.user(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	kind, err := store.ParseRecordKind(chi.URLParam(r, "kind"))
	if err != nil {
		fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "recordID")
	if err := s.store.DeleteRecord(ctx, u.ID, kind, id); err != nil {
		fail(w, r, err)
		return
	}

	metrics.RecordWrites.WithLabelValues(string(kind), "delete").Inc()
	slog.Info("record deleted", "user", u.ID, "kind", kind, "id", id)
	s.publish(ctx, u)
	w.WriteHeader(http.StatusNoContent)
}

// parseDay parses a YYYY-MM-DD query value; empty means fallback.
func parseDay(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, invalid("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}
