// Package portfolio provides the HTTP handlers and orchestration for managing
// a user's records and querying their net worth, goal progress and reports.
//
// All monetary values use shopspring/decimal, never float64.
package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerly/networth-engine/internal/currency"
	"github.com/ledgerly/networth-engine/internal/depreciation"
	"github.com/ledgerly/networth-engine/internal/goal"
	"github.com/ledgerly/networth-engine/internal/metrics"
	"github.com/ledgerly/networth-engine/internal/model"
	"github.com/ledgerly/networth-engine/internal/networth"
	"github.com/ledgerly/networth-engine/internal/parser"
	"github.com/ledgerly/networth-engine/internal/store"
	"github.com/ledgerly/networth-engine/internal/valuation"
)

// errInvalid marks request validation failures.
var errInvalid = errors.New("invalid request")

// RateSource hands out rate tables and accepts manual quotes.
// *rates.Provider satisfies it.
type RateSource interface {
	Table(ctx context.Context, base string) *currency.RateTable
	Record(ctx context.Context, rates []model.ExchangeRate) error
}

// Deps are the collaborators of a Service.
type Deps struct {
	Store store.Store
	// Users resolves users; nil means Store. Pass a store.TieredUsers to
	// consult a fallback directory.
	Users  store.UserLookup
	Rates  RateSource
	Parser parser.TextToRecordParser
	// Hub is optional; nil disables WebSocket pushes.
	Hub *WSHub

	BaseCurrency      string
	ReportingCurrency string
}

// Service handles record management and valuation requests. It holds no
// per-user state: every read recomputes from the store and the current rate
// table.
type Service struct {
	store     store.Store
	users     store.UserLookup
	rates     RateSource
	parser    parser.TextToRecordParser
	engine    *valuation.Engine
	wsHub     *WSHub
	base      string
	reporting string
	now       func() time.Time
}

// NewService creates a new portfolio service.
func NewService(d Deps) *Service {
	users := d.Users
	if users == nil {
		users = d.Store
	}
	return &Service{
		store:     d.Store,
		users:     users,
		rates:     d.Rates,
		parser:    d.Parser,
		engine:    valuation.NewEngine(),
		wsHub:     d.Hub,
		base:      d.BaseCurrency,
		reporting: d.ReportingCurrency,
		now:       time.Now,
	}
}

// Register mounts the API routes on r (normally the /api/v1 sub-router).
func (s *Service) Register(r chi.Router) {
	if s.wsHub != nil {
		r.Get("/ws", s.HandleWS)
	}

	r.Post("/users", s.CreateUser)
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/", s.GetUser)
		r.Get("/records", s.GetRecords)
		r.Post("/cash", s.AddCash)
		r.Post("/holdings", s.AddHolding)
		r.Post("/assets", s.AddDepreciable)
		r.Post("/liabilities", s.AddLiability)
		r.Delete("/{kind}/{recordID}", s.DeleteRecord)

		r.Get("/networth", s.GetNetWorth)
		r.Put("/goal", s.SetGoal)
		r.Get("/goal/progress", s.GetGoalProgress)
		r.Get("/report", s.GetReport)
	})

	r.Get("/rates", s.GetRates)
	r.Post("/rates", s.PostRates)
	r.Post("/parse", s.Parse)
}

// valuate loads the user's records and the current rate table and runs the
// full valuation in cur as of asOf.
func (s *Service) valuate(ctx context.Context, userID string, asOf time.Time, cur string) (*networth.Statement, error) {
	start := time.Now()
	defer func() { metrics.ValuationLatency.Observe(time.Since(start).Seconds()) }()

	records, err := s.store.GetRecords(ctx, userID)
	if err != nil {
		metrics.ValuationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load records: %w", err)
	}

	stmt, err := networth.Compute(s.engine, *records, valuation.Params{
		AsOf:              asOf,
		Rates:             s.rates.Table(ctx, s.base),
		ReportingCurrency: cur,
	})
	if err != nil {
		metrics.ValuationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	result := "ok"
	if stmt.Snapshot.Approximate {
		result = "approximate"
		for _, p := range stmt.MissingRates {
			metrics.RateUnavailable.WithLabelValues(p).Inc()
		}
		slog.Warn("valuation approximate", "user", userID, "missing_rates", stmt.MissingRates)
	}
	metrics.ValuationsTotal.WithLabelValues(result).Inc()
	return stmt, nil
}

// user resolves userID through the tiered lookup.
func (s *Service) user(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetUser(ctx, userID)
}

// writer resolves userID for a write. A user known only to the fallback
// directory is copied into the primary store first, so its records have an
// owner row there.
func (s *Service) writer(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, u.ID); err == nil {
		return u, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := s.store.CreateUser(ctx, u); err != nil && !errors.Is(err, store.ErrConflict) {
		return nil, fmt.Errorf("promote user %s: %w", u.ID, err)
	}
	slog.Info("fallback user promoted to primary store", "id", u.ID)
	return u, nil
}

// reportingCurrency picks the explicit override, then the user's preference,
// then the service default.
func (s *Service) reportingCurrency(u *model.User, override string) (string, error) {
	if override != "" {
		return currency.Validate(override)
	}
	if u != nil && u.ReportingCurrency != "" {
		return u.ReportingCurrency, nil
	}
	return s.reporting, nil
}

// publish recomputes the user's live net worth and pushes it to WebSocket
// clients. Failures are logged, never returned: the write already succeeded.
func (s *Service) publish(ctx context.Context, u *model.User) {
	if s.wsHub == nil {
		return
	}
	cur, _ := s.reportingCurrency(u, "")
	stmt, err := s.valuate(ctx, u.ID, s.now().UTC(), cur)
	if err != nil {
		slog.Error("net worth push skipped", "user", u.ID, "err", err)
		return
	}
	snap := stmt.Snapshot
	s.wsHub.Broadcast(WSMessage{
		Type:             MsgNetWorthUpdated,
		UserID:           u.ID,
		TotalAssets:      snap.TotalAssets.String(),
		TotalLiabilities: snap.TotalLiabilities.String(),
		NetWorth:         snap.NetWorth.String(),
		Currency:         snap.Currency,
		Approximate:      snap.Approximate,
		ComputedAt:       snap.ComputedAt.Format(time.RFC3339),
	})
}

// HandleWS handles GET /api/v1/ws?user_id=...
// The socket receives the user's net-worth updates and global rate updates.
func (s *Service) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		fail(w, r, invalid("user_id is required"))
		return
	}
	u, err := s.user(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}
	s.wsHub.Serve(w, r, u.ID)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, valuation.ErrUnknownCategory), errors.Is(err, parser.ErrNoAmount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errInvalid),
		errors.Is(err, currency.ErrUnsupportedCurrency),
		errors.Is(err, depreciation.ErrMalformedRecord),
		errors.Is(err, goal.ErrInvalidGoal),
		errors.Is(err, store.ErrUnknownKind),
		errors.Is(err, parser.ErrEmptyText):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Internal errors are logged and
// their text is not exposed.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, "internal error", status)
		return
	}
	writeError(w, err.Error(), status)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalid, fmt.Sprintf(format, args...))
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return invalid("invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
