package portfolio_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerly/networth-engine/internal/model"
	"github.com/ledgerly/networth-engine/internal/networth"
	"github.com/ledgerly/networth-engine/internal/parser"
	"github.com/ledgerly/networth-engine/internal/portfolio"
	"github.com/ledgerly/networth-engine/internal/rates"
	"github.com/ledgerly/networth-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

type testEnv struct {
	router chi.Router
	ms     *store.MemoryStore
	hub    *portfolio.WSHub
}

// newTestEnv creates a Service over an in-memory store, a SQLite fallback
// directory holding the demo user, and stored AED rates for USD and EUR.
func newTestEnv(t *testing.T, hub *portfolio.WSHub) *testEnv {
	t.Helper()
	ctx := context.Background()
	ms := store.NewMemoryStore()

	dir, err := store.OpenUserDirectory(":memory:")
	require.NoError(t, err)
	require.NoError(t, dir.SeedDemo(ctx, time.Now()))

	provider := rates.NewProvider(nil, ms, time.Hour, time.Second)
	require.NoError(t, provider.Record(ctx, []model.ExchangeRate{
		{Base: "AED", Target: "USD", Rate: d(0.27), FetchedAt: time.Now(), Source: "test"},
		{Base: "AED", Target: "EUR", Rate: d(0.25), FetchedAt: time.Now(), Source: "test"},
	}))

	svc := portfolio.NewService(portfolio.Deps{
		Store:             ms,
		Users:             store.NewTieredUsers(ms, dir),
		Rates:             provider,
		Parser:            parser.NewRegexParser("AED"),
		Hub:               hub,
		BaseCurrency:      "AED",
		ReportingCurrency: "AED",
	})

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Register)
	return &testEnv{router: r, ms: ms, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), "body: %s", w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[map[string]string](t, w)["error"]
}

func createUser(t *testing.T, e *testEnv, id, cur string) {
	t.Helper()
	w := e.do(t, "POST", "/users", portfolio.CreateUserRequest{ID: id, Name: "Test " + id, Email: id + "@example.com", ReportingCurrency: cur})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

// seed adds one record of each kind for user u1:
// cash 40000, gold 10 × 250, a car worth 10000 on its purchase day, a 25000 loan.
func seed(t *testing.T, e *testEnv) {
	t.Helper()
	createUser(t, e, "u1", "AED")

	steps := []struct {
		path string
		body string
	}{
		{"/users/u1/cash", `{"kind":"BANK","name":"Checking","balance":"40000","currency":"AED"}`},
		{"/users/u1/holdings", `{"category":"GOLD","name":"Bar","valuation":{"kind":"DERIVED","quantity":"10","unit_price":"250"}}`},
		{"/users/u1/assets", `{"name":"Car","purchase_price":"10000","purchase_date":"2024-01-01T00:00:00Z","method":"STRAIGHT_LINE","useful_life_years":"5","salvage_value":"0","depreciation_enabled":true}`},
		{"/users/u1/liabilities", `{"kind":"LOAN","name":"Mortgage","outstanding_balance":"25000","emi_amount":"1200"}`},
	}
	for _, s := range steps {
		w := e.do(t, "POST", s.path, s.body)
		require.Equal(t, http.StatusCreated, w.Code, "%s: %s", s.path, w.Body.String())
	}
}

// --- Users ---

func TestCreateUser(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.do(t, "POST", "/users", portfolio.CreateUserRequest{Name: "Asha", Email: "Asha@Example.com", ReportingCurrency: "usd"})
	require.Equal(t, http.StatusCreated, w.Code)
	u := decodeBody[model.User](t, w)
	assert.NotEmpty(t, u.ID, "id is generated")
	assert.Equal(t, "asha@example.com", u.Email)
	assert.Equal(t, "USD", u.ReportingCurrency)

	w = e.do(t, "POST", "/users", portfolio.CreateUserRequest{Name: "Dup", Email: "asha@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, "POST", "/users", portfolio.CreateUserRequest{Name: "X", ReportingCurrency: "BTC"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, "POST", "/users", portfolio.CreateUserRequest{Email: "no-name@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, "POST", "/users", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateUser_EmailIsOptional(t *testing.T) {
	e := newTestEnv(t, nil)

	for _, name := range []string{"A", "B"} {
		w := e.do(t, "POST", "/users", portfolio.CreateUserRequest{Name: name})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Empty(t, decodeBody[model.User](t, w).Email)
	}
}

func TestGetUser_FallsBackToDirectory(t *testing.T) {
	e := newTestEnv(t, nil)
	createUser(t, e, "u1", "EUR")

	w := e.do(t, "GET", "/users/u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "EUR", decodeBody[model.User](t, w).ReportingCurrency)

	w = e.do(t, "GET", "/users/demo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, store.DemoUser.Email, decodeBody[model.User](t, w).Email)

	w = e.do(t, "GET", "/users/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, errorOf(t, w))
}

func TestDirectoryUserIsPromotedOnWrite(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.do(t, "POST", "/users/demo/cash", `{"kind":"WALLET","name":"Wallet","balance":"150"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	c := decodeBody[model.CashHolding](t, w)
	assert.Equal(t, "AED", c.Currency, "empty currency defaults to the user's")

	u, err := e.ms.GetUser(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, store.DemoUser.Name, u.Name)
}

// --- Records ---

func TestAddRecords_AssignIDsAndOwner(t *testing.T) {
	e := newTestEnv(t, nil)
	seed(t, e)

	w := e.do(t, "GET", "/users/u1/records", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decodeBody[model.Records](t, w)

	require.Len(t, rec.Cash, 1)
	require.Len(t, rec.Holdings, 1)
	require.Len(t, rec.Depreciable, 1)
	require.Len(t, rec.Liabilities, 1)
	assert.NotEmpty(t, rec.Cash[0].ID)
	assert.Equal(t, "u1", rec.Holdings[0].UserID)
	assert.Equal(t, "AED", rec.Liabilities[0].Currency)
	require.NotNil(t, rec.Liabilities[0].EMIAmount)
	assert.True(t, rec.Liabilities[0].EMIAmount.Equal(d(1200)))
}

func TestAddRecords_Validation(t *testing.T) {
	e := newTestEnv(t, nil)
	createUser(t, e, "u1", "AED")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"cash kind", "/users/u1/cash", `{"kind":"SAFE","balance":"1"}`, http.StatusBadRequest},
		{"cash currency", "/users/u1/cash", `{"kind":"BANK","balance":"1","currency":"XYZ"}`, http.StatusBadRequest},
		{"holding category", "/users/u1/holdings", `{"category":"CRYPTO","valuation":{"kind":"SUPPLIED","current_value":"5"}}`, http.StatusUnprocessableEntity},
		{"holding valuation kind", "/users/u1/holdings", `{"category":"STOCK","valuation":{"kind":"GUESS"}}`, http.StatusUnprocessableEntity},
		{"holding negative", "/users/u1/holdings", `{"category":"STOCK","valuation":{"kind":"DERIVED","quantity":"-1","unit_price":"5"}}`, http.StatusBadRequest},
		{"asset without life", "/users/u1/assets", `{"purchase_price":"100","purchase_date":"2024-01-01T00:00:00Z","method":"STRAIGHT_LINE"}`, http.StatusBadRequest},
		{"asset rate over 100", "/users/u1/assets", `{"purchase_price":"100","purchase_date":"2024-01-01T00:00:00Z","method":"PERCENTAGE","rate":"120"}`, http.StatusBadRequest},
		{"liability kind", "/users/u1/liabilities", `{"kind":"MORTGAGE","outstanding_balance":"1"}`, http.StatusBadRequest},
		{"liability negative limit", "/users/u1/liabilities", `{"kind":"CREDIT_CARD","outstanding_balance":"1","limit":"-5"}`, http.StatusBadRequest},
		{"unknown user", "/users/ghost/cash", `{"kind":"BANK","balance":"1"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, "POST", tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	rec, err := e.ms.GetRecords(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, rec.Cash)
	assert.Empty(t, rec.Holdings)
}

func TestDeleteRecord(t *testing.T) {
	e := newTestEnv(t, nil)
	seed(t, e)
	rec, err := e.ms.GetRecords(context.Background(), "u1")
	require.NoError(t, err)
	id := rec.Cash[0].ID

	w := e.do(t, "DELETE", "/users/u1/cash/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(t, "DELETE", "/users/u1/cash/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, "DELETE", "/users/u1/pets/"+id, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Net worth ---

func TestGetNetWorth(t *testing.T) {
	e := newTestEnv(t, nil)
	seed(t, e)

	w := e.do(t, "GET", "/users/u1/networth?as_of=2024-01-01", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st := decodeBody[networth.Statement](t, w)

	assert.Equal(t, "AED", st.Snapshot.Currency)
	assert.True(t, st.Snapshot.TotalAssets.Equal(d(52500)), "assets %s", st.Snapshot.TotalAssets)
	assert.True(t, st.Snapshot.TotalLiabilities.Equal(d(25000)))
	assert.True(t, st.Snapshot.NetWorth.Equal(d(27500)))
	assert.False(t, st.Snapshot.Approximate)
	assert.True(t, st.Assets.PerCategory[model.CategoryGold].Equal(d(2500)))
	assert.True(t, st.Assets.PerCategory[model.CategoryDepreciable].Equal(d(10000)))
	assert.True(t, st.Assets.PerCategory[model.CategoryBond].IsZero())
}

func TestGetNetWorth_ConvertsToRequestedCurrency(t *testing.T) {
	e := newTestEnv(t, nil)
	seed(t, e)

	w := e.do(t, "GET", "/users/u1/networth?as_of=2024-01-01&currency=usd", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	st := decodeBody[networth.Statement](t, w)

	assert.Equal(t, "USD", st.Snapshot.Currency)
	assert.True(t, st.Snapshot.TotalAssets.Equal(d(14175)), "assets %s", st.Snapshot.TotalAssets)
	assert.True(t, st.Snapshot.NetWorth.Equal(d(7425)), "net %s", st.Snapshot.NetWorth)
}

func TestGetNetWorth_MissingRateIsApproximate(t *testing.T) {
	e := newTestEnv(t, nil)
	createUser(t, e, "u1", "AED")
	w := e.do(t, "POST", "/users/u1/cash", `{"kind":"BANK","balance":"100","currency":"GBP"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, "GET", "/users/u1/networth", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decodeBody[networth.Statement](t, w)

	assert.True(t, st.Snapshot.Approximate)
	assert.Equal(t, []string{"AED/GBP"}, st.MissingRates)
	assert.True(t, st.Snapshot.NetWorth.Equal(d(100)), "unconverted amount is kept")
}

func TestGetNetWorth_BadQuery(t *testing.T) {
	e := newTestEnv(t, nil)
	createUser(t, e, "u1", "AED")

	assert.Equal(t, http.StatusBadRequest, e.do(t, "GET", "/users/u1/networth?as_of=yesterday", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, "GET", "/users/u1/networth?currency=XYZ", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, "GET", "/users/ghost/networth", nil).Code)
}

func TestGetNetWorth_UnknownCategoryInStore(t *testing.T) {
	e := newTestEnv(t, nil)
	createUser(t, e, "u1", "AED")
	require.NoError(t, e.ms.AddHolding(context.Background(), &model.HoldingAsset{
		ID: "h1", UserID: "u1", Category: "CRYPTO", Valuation: model.Supplied(d(5)), Currency: "AED",
	}))

	w := e.do(t, "GET", "/users/u1/networth", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, errorOf(t, w), "unknown category")
}

// --- Goals ---

func TestGoal(t *testing.T) {
	e := newTestEnv(t, nil)
	seed(t, e)

	w := e.do(t, "GET", "/users/u1/goal/progress", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	target := time.Now().UTC().AddDate(1, 0, 0).Format(time.DateOnly)
	w = e.do(t, "PUT", "/users/u1/goal", portfolio.GoalRequest{GoalNetWorth: d(55000), TargetDate: target})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	g := decodeBody[model.Goal](t, w)
	assert.Equal(t, "AED", g.Currency)

	w = e.do(t, "GET", "/users/u1/goal/progress", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := decodeBody[portfolio.GoalProgressResponse](t, w)

	assert.Equal(t, "AED", p.Currency)
	assert.True(t, p.GoalNetWorth.Equal(d(55000)))
	assert.True(t, p.CurrentNetWorth.LessThan(d(27500.01)), "car depreciates from 2024 onward")
	assert.True(t, p.RemainingDays >= 364 && p.RemainingDays <= 366, "days %d", p.RemainingDays)
	assert.Greater(t, p.RemainingMonths, int64(11))
}

func TestSetGoal_Validation(t *testing.T) {
	e := newTestEnv(t, nil)
	createUser(t, e, "u1", "AED")

	tests := []struct {
		name string
		req  portfolio.GoalRequest
	}{
		{"zero goal", portfolio.GoalRequest{GoalNetWorth: decimal.Zero, TargetDate: "2030-01-01"}},
		{"missing date", portfolio.GoalRequest{GoalNetWorth: d(100)}},
		{"bad date", portfolio.GoalRequest{GoalNetWorth: d(100), TargetDate: "01/01/2030"}},
		{"bad currency", portfolio.GoalRequest{GoalNetWorth: d(100), TargetDate: "2030-01-01", Currency: "XYZ"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, "PUT", "/users/u1/goal", tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

// --- Report ---

func TestGetReport(t *testing.T) {
	e := newTestEnv(t, nil)
	seed(t, e)

	w := e.do(t, "GET", "/users/u1/report?as_of=2024-01-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "<title>Net Worth: Test u1</title>")
	assert.Contains(t, body, "<table>")

	w = e.do(t, "GET", "/users/u1/report?as_of=2024-01-01&format=md", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "# Net Worth: Test u1"))
}

// --- Rates ---

func TestRates(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.do(t, "GET", "/rates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[portfolio.RatesResponse](t, w)
	assert.Equal(t, "AED", got.Base)
	assert.Len(t, got.Rates, 2)

	w = e.do(t, "POST", "/rates", []portfolio.RateEntry{{Target: "GBP", Rate: d(0.21)}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, "GET", "/rates", nil)
	got = decodeBody[portfolio.RatesResponse](t, w)
	assert.Len(t, got.Rates, 3, "manual quote is visible immediately")

	for _, body := range []any{
		[]portfolio.RateEntry{},
		[]portfolio.RateEntry{{Target: "GBP", Rate: d(0)}},
		[]portfolio.RateEntry{{Target: "AED", Rate: d(1)}},
		[]portfolio.RateEntry{{Target: "XYZ", Rate: d(1)}},
	} {
		assert.Equal(t, http.StatusBadRequest, e.do(t, "POST", "/rates", body).Code)
	}
}

// --- Parse ---

func TestParse(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.do(t, "POST", "/parse", portfolio.ParseRequest{Text: "Paid AED 42.50 at Carrefour on 2024-02-10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decodeBody[model.ParsedRecord](t, w)
	assert.True(t, rec.Amount.Equal(d(42.5)))
	assert.Equal(t, "groceries", rec.Category)
	assert.Equal(t, parser.SourceRegex, rec.Source)

	assert.Equal(t, http.StatusBadRequest, e.do(t, "POST", "/parse", portfolio.ParseRequest{Text: "  "}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, e.do(t, "POST", "/parse", portfolio.ParseRequest{Text: "no numbers here"}).Code)
}
