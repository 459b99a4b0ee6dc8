package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Ledger == nil {
		clock := &tickingClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
		repo := ledger.NewRepository(storage.NewMemoryStore(), ledger.WithClock(clock.Now), ledger.WithLogger(log.Discard()))
		cached := cache.NewEngine(analytics.NewEngine(repo), 64, time.Hour, log.Discard())
		deps.Ledger = services.NewLedgerService(repo, services.WithInvalidator(cached), services.WithLogger(log.Discard()))
		deps.Analytics = cached
	}
	deps.Logger = log.Discard()
	srv, err := NewServer(":0", deps)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

type txJSON struct {
	ID       int64   `json:"id"`
	OwnerID  int64   `json:"owner_id"`
	Kind     string  `json:"kind"`
	Category string  `json:"category"`
	Amount   string  `json:"amount"`
	Note     *string `json:"note"`
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Deps{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s missing middleware headers: %v", path, rr.Header())
		}
	}

	down := newTestServer(t, Deps{Ready: func(context.Context) error { return errors.New("db down") }})
	if rr := do(t, down, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store: %d", rr.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t, Deps{})

	rr := do(t, srv, http.MethodPost, "/owners/3/transactions", `{"kind":"expense","category":" Food ","amount":"15.50","note":"pizza"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	created := decode[txJSON](t, rr)
	if created.ID == 0 || created.OwnerID != 3 || created.Kind != "expense" || created.Category != "Food" || created.Amount != "15.50" {
		t.Fatalf("unexpected created: %+v", created)
	}

	path := "/owners/3/transactions/" + itoa(created.ID)
	if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusOK || decode[txJSON](t, rr).ID != created.ID {
		t.Fatalf("get: %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodGet, "/owners/4/transactions/"+itoa(created.ID), ""); rr.Code != http.StatusNotFound {
		t.Fatalf("foreign get: %d", rr.Code)
	}

	rr = do(t, srv, http.MethodPatch, path, `{"amount":20,"kind":"income","clear_note":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rr.Code, rr.Body.String())
	}
	if got := decode[txJSON](t, rr); got.Amount != "20.00" || got.Kind != "income" || got.Note != nil {
		t.Fatalf("unexpected patched: %+v", got)
	}

	rr = do(t, srv, http.MethodGet, "/owners/3/transactions?days=1", "")
	if list := decode[[]txJSON](t, rr); rr.Code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list: %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodGet, "/owners/3/transactions?kind=expense", "")
	if list := decode[[]txJSON](t, rr); len(list) != 0 {
		t.Fatalf("expense list should be empty after kind change: %s", rr.Body.String())
	}

	if rr := do(t, srv, http.MethodDelete, path, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		if rr := do(t, srv, method, path, ""); rr.Code != http.StatusNotFound {
			t.Fatalf("%s after delete: %d", method, rr.Code)
		}
	}
	if rr := do(t, srv, http.MethodPatch, path, `{"amount":"1"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("patch after delete: %d", rr.Code)
	}
}

func TestCreateFromText(t *testing.T) {
	srv := newTestServer(t, Deps{})

	rr := do(t, srv, http.MethodPost, "/owners/9/transactions", `{"text":"Expense coffee beans 12,50"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	if got := decode[txJSON](t, rr); got.Kind != "expense" || got.Category != "coffee beans" || got.Amount != "12.50" {
		t.Fatalf("unexpected parsed transaction: %+v", got)
	}

	rr = do(t, srv, http.MethodPost, "/owners/9/transactions", `{"text":"hello there"}`)
	if rr.Code != http.StatusUnprocessableEntity || decode[errorBody](t, rr).Field != "text" {
		t.Fatalf("non-transaction text: %d %s", rr.Code, rr.Body.String())
	}
}

func TestAnalyticsRoutes(t *testing.T) {
	srv := newTestServer(t, Deps{})
	for _, body := range []string{
		`{"kind":"income","category":"salary","amount":"1000"}`,
		`{"kind":"expense","category":"food","amount":"150"}`,
		`{"kind":"expense","category":"food","amount":"50.00"}`,
	} {
		if rr := do(t, srv, http.MethodPost, "/owners/7/transactions", body); rr.Code != http.StatusCreated {
			t.Fatalf("seed: %d %s", rr.Code, rr.Body.String())
		}
	}

	rr := do(t, srv, http.MethodGet, "/owners/7/balance?days=7", "")
	if b := decode[balanceJSON](t, rr); b.TotalIncome != "1000.00" || b.TotalExpense != "200.00" || b.Balance != "800.00" {
		t.Fatalf("balance: %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/owners/7/categories", "")
	cats := decode[map[string]map[string]struct {
		Total   string `json:"total"`
		Count   int64  `json:"count"`
		Average string `json:"average"`
	}](t, rr)
	if food := cats["expense"]["food"]; food.Total != "200.00" || food.Count != 2 || food.Average != "100.00" {
		t.Fatalf("breakdown: %s", rr.Body.String())
	}
	if _, ok := cats["income"]["salary"]; !ok {
		t.Fatalf("breakdown missing income: %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/owners/7/trend?days=3&dense=true", "")
	points := decode[[]struct {
		Label   string `json:"label"`
		Balance string `json:"balance"`
	}](t, rr)
	if rr.Code != http.StatusOK || len(points) < 3 {
		t.Fatalf("dense trend: %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/owners/7/top?kind=expense&limit=1", "")
	top := decode[[]struct {
		Category string `json:"category"`
		Total    string `json:"total"`
	}](t, rr)
	if len(top) != 1 || top[0].Category != "food" || top[0].Total != "200.00" {
		t.Fatalf("top: %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/owners/7/summary", "")
	sum := decode[struct {
		balanceJSON
		TransactionCount int64  `json:"transaction_count"`
		AverageExpense   string `json:"average_expense"`
	}](t, rr)
	if sum.Balance != "800.00" || sum.TransactionCount != 3 || sum.AverageExpense != "100.00" {
		t.Fatalf("summary: %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/owners/7/dashboard?bucket=week&limit=3", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"top_expenses"`) {
		t.Fatalf("dashboard: %d %s", rr.Code, rr.Body.String())
	}

	// a write through the API must not leave a stale cached balance
	do(t, srv, http.MethodPost, "/owners/7/transactions", `{"kind":"expense","category":"taxi","amount":"100"}`)
	rr = do(t, srv, http.MethodGet, "/owners/7/balance?days=7", "")
	if b := decode[balanceJSON](t, rr); b.Balance != "700.00" {
		t.Fatalf("balance after write: %s", rr.Body.String())
	}
}

type balanceJSON struct {
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
	Balance      string `json:"balance"`
}

type failingLedger struct{ Ledger }

func (failingLedger) List(context.Context, int64, core.Window) ([]core.Transaction, error) {
	return nil, core.NewStorageError("scan", errors.New("disk I/O error"))
}

func TestStatusMapping(t *testing.T) {
	srv := newTestServer(t, Deps{})
	broken := newTestServer(t, Deps{Ledger: failingLedger{}})

	tests := []struct {
		name   string
		srv    *Server
		method string
		path   string
		body   string
		status int
		field  string
	}{
		{"negative amount", srv, http.MethodPost, "/owners/1/transactions", `{"kind":"expense","category":"food","amount":"-5"}`, 422, "amount"},
		{"empty category", srv, http.MethodPost, "/owners/1/transactions", `{"kind":"expense","category":"  ","amount":"5"}`, 422, "category"},
		{"missing kind", srv, http.MethodPost, "/owners/1/transactions", `{"category":"food","amount":"5"}`, 422, "kind"},
		{"owner zero", srv, http.MethodPost, "/owners/0/transactions", `{"kind":"expense","category":"food","amount":"5"}`, 422, "owner_id"},
		{"malformed json", srv, http.MethodPost, "/owners/1/transactions", `{"kind":`, 400, ""},
		{"unknown field", srv, http.MethodPost, "/owners/1/transactions", `{"kind":"expense","colour":"red"}`, 400, ""},
		{"empty body", srv, http.MethodPost, "/owners/1/transactions", "", 400, ""},
		{"text on update", srv, http.MethodPatch, "/owners/1/transactions/1", `{"text":"expense food 5"}`, 422, "text"},
		{"bad days", srv, http.MethodGet, "/owners/1/balance?days=abc", "", 422, "days"},
		{"zero days", srv, http.MethodGet, "/owners/1/balance?days=0", "", 422, "days"},
		{"bad bucket", srv, http.MethodGet, "/owners/1/trend?bucket=year", "", 422, "bucket"},
		{"bad dense", srv, http.MethodGet, "/owners/1/trend?dense=maybe", "", 422, "dense"},
		{"zero limit", srv, http.MethodGet, "/owners/1/top?kind=expense&limit=0", "", 422, "limit"},
		{"missing kind on top", srv, http.MethodGet, "/owners/1/top", "", 422, "kind"},
		{"non numeric owner", srv, http.MethodGet, "/owners/abc/balance", "", 404, ""},
		{"unknown route", srv, http.MethodGet, "/nope", "", 404, ""},
		{"wrong method", srv, http.MethodPut, "/owners/1/transactions/1", "", 405, ""},
		{"delete on collection", srv, http.MethodDelete, "/owners/1/transactions", "", 405, ""},
		{"post on analytics", srv, http.MethodPost, "/owners/1/balance", "", 405, ""},
		{"storage failure", broken, http.MethodGet, "/owners/1/transactions", "", 500, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, tt.srv, tt.method, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
			body := decode[errorBody](t, rr)
			if body.Error == "" || body.Field != tt.field {
				t.Fatalf("unexpected error body: %+v", body)
			}
			if tt.status == 500 && strings.Contains(body.Error, "disk") {
				t.Fatalf("storage cause leaked to client: %q", body.Error)
			}
		})
	}
}

func TestWriteRateLimit(t *testing.T) {
	srv := newTestServer(t, Deps{WritesPerMinute: 2})
	body := `{"kind":"expense","category":"food","amount":"1"}`

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/owners/1/transactions", body); rr.Code != http.StatusCreated {
			t.Fatalf("write %d: %d", i+1, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/owners/1/transactions", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("third write: %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/owners/1/balance", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited: %d", rr.Code)
	}
}

func TestNewServerRejectsBadProxy(t *testing.T) {
	if _, err := NewServer(":0", Deps{Logger: log.Discard(), TrustedProxies: []string{"nope"}}); err == nil {
		t.Fatal("expected error for invalid trusted proxy")
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
