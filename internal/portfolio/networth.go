package portfolio

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ledgerly/networth-engine/internal/currency"
	"github.com/ledgerly/networth-engine/internal/goal"
	"github.com/ledgerly/networth-engine/internal/model"
	"github.com/ledgerly/networth-engine/internal/report"
	"github.com/ledgerly/networth-engine/internal/store"
)

// GetNetWorth handles GET /api/v1/users/{userID}/networth
// Query: as_of=YYYY-MM-DD backtests depreciation, currency=XXX overrides the
// user's reporting currency.
func (s *Service) GetNetWorth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.user(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	asOf, err := parseDay(r.URL.Query().Get("as_of"), s.now().UTC())
	if err != nil {
		fail(w, r, err)
		return
	}
	cur, err := s.reportingCurrency(u, r.URL.Query().Get("currency"))
	if err != nil {
		fail(w, r, err)
		return
	}

	stmt, err := s.valuate(ctx, u.ID, asOf, cur)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}

// GoalRequest is the JSON body for PUT /goal.
type GoalRequest struct {
	GoalNetWorth decimal.Decimal `json:"goal_net_worth"`
	TargetDate   string          `json:"target_date"` // YYYY-MM-DD
	Currency     string          `json:"currency"`    // defaults to the user's reporting currency
}

// SetGoal handles PUT /api/v1/users/{userID}/goal
// Replacing a goal restarts its schedule from today.
func (s *Service) SetGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.writer(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	var req GoalRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	target, err := parseDay(req.TargetDate, time.Time{})
	if err != nil {
		fail(w, r, err)
		return
	}
	cur, err := s.reportingCurrency(u, req.Currency)
	if err != nil {
		fail(w, r, err)
		return
	}

	g := &model.Goal{
		UserID:       u.ID,
		GoalNetWorth: req.GoalNetWorth,
		TargetDate:   target,
		CreatedAt:    s.now().UTC(),
		Currency:     cur,
	}
	if err := goal.Validate(*g); err != nil {
		fail(w, r, err)
		return
	}
	if err := s.store.SaveGoal(ctx, g); err != nil {
		fail(w, r, err)
		return
	}

	slog.Info("goal set", "user", u.ID, "goal", g.GoalNetWorth.String(), "target", req.TargetDate, "currency", cur)
	writeJSON(w, http.StatusOK, g)
}

// GoalProgressResponse is the body of GET /goal/progress.
type GoalProgressResponse struct {
	goal.Result
	Currency    string `json:"currency"`
	Approximate bool   `json:"approximate"`
}

// GetGoalProgress handles GET /api/v1/users/{userID}/goal/progress
// Progress is measured against live net worth in the goal's currency.
func (s *Service) GetGoalProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.user(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	g, err := s.store.GetGoal(ctx, u.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	cur, _ := s.reportingCurrency(u, g.Currency)
	now := s.now().UTC()
	stmt, err := s.valuate(ctx, u.ID, now, cur)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, GoalProgressResponse{
		Result:      goal.Progress(stmt.Snapshot.NetWorth, *g, now),
		Currency:    cur,
		Approximate: stmt.Snapshot.Approximate,
	})
}

// GetReport handles GET /api/v1/users/{userID}/report
// Returns an HTML page; ?format=md returns the Markdown source.
func (s *Service) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := s.user(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	q := r.URL.Query()
	asOf, err := parseDay(q.Get("as_of"), s.now().UTC())
	if err != nil {
		fail(w, r, err)
		return
	}
	cur, err := s.reportingCurrency(u, q.Get("currency"))
	if err != nil {
		fail(w, r, err)
		return
	}
	stmt, err := s.valuate(ctx, u.ID, asOf, cur)
	if err != nil {
		fail(w, r, err)
		return
	}

	in := report.Input{Title: "Net Worth: " + u.Name, Statement: stmt}
	g, err := s.store.GetGoal(ctx, u.ID)
	switch {
	case err == nil && g.Currency == cur:
		res := goal.Progress(stmt.Snapshot.NetWorth, *g, asOf)
		in.Goal = &res
	case err != nil && !errors.Is(err, store.ErrNotFound):
		fail(w, r, err)
		return
	}

	md := report.Markdown(in)
	if q.Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(md))
		return
	}
	page, err := report.Page(in.Title, md)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(page))
}

// RatesResponse is the body of GET /rates.
type RatesResponse struct {
	Base  string               `json:"base"`
	Rates []model.ExchangeRate `json:"rates"`
}

// GetRates handles GET /api/v1/rates
// Optional ?base=XXX; defaults to the configured base currency.
func (s *Service) GetRates(w http.ResponseWriter, r *http.Request) {
	base := s.base
	if b := r.URL.Query().Get("base"); b != "" {
		v, err := currency.Validate(b)
		if err != nil {
			fail(w, r, err)
			return
		}
		base = v
	}
	table := s.rates.Table(r.Context(), base)
	writeJSON(w, http.StatusOK, RatesResponse{Base: table.Base(), Rates: table.Live()})
}

// RateEntry is one manual quote in POST /rates.
type RateEntry struct {
	Base   string          `json:"base"` // defaults to the configured base
	Target string          `json:"target"`
	Rate   decimal.Decimal `json:"rate"`
}

// PostRates handles POST /api/v1/rates
// Stores manual quotes; they take effect on the next valuation.
func (s *Service) PostRates(w http.ResponseWriter, r *http.Request) {
	var req []RateEntry
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if len(req) == 0 {
		fail(w, r, invalid("at least one rate is required"))
		return
	}

	now := s.now().UTC()
	quotes := make([]model.ExchangeRate, 0, len(req))
	for _, e := range req {
		if e.Base == "" {
			e.Base = s.base
		}
		base, err := currency.Validate(e.Base)
		if err != nil {
			fail(w, r, err)
			return
		}
		target, err := currency.Validate(e.Target)
		if err != nil {
			fail(w, r, err)
			return
		}
		if base == target {
			fail(w, r, invalid("base and target must differ"))
			return
		}
		if !e.Rate.IsPositive() {
			fail(w, r, invalid("rate for %s/%s must be positive", base, target))
			return
		}
		quotes = append(quotes, model.ExchangeRate{Base: base, Target: target, Rate: e.Rate, FetchedAt: now, Source: "manual"})
	}

	if err := s.rates.Record(r.Context(), quotes); err != nil {
		fail(w, r, err)
		return
	}
	slog.Info("manual rates recorded", "count", len(quotes))
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{Type: MsgRatesUpdated, ComputedAt: now.Format(time.RFC3339)})
	}
	writeJSON(w, http.StatusCreated, quotes)
}

// ParseRequest is the JSON body for POST /parse.
type ParseRequest struct {
	Text string `json:"text"`
}

// Parse handles POST /api/v1/parse
// Extracts one record from free text; nothing is stored.
func (s *Service) Parse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	rec, err := s.parser.Parse(r.Context(), strings.TrimSpace(req.Text))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
