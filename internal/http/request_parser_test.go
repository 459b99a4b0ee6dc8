package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"fintrack/internal/core"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		query string
		days  int
		err   error
	}{
		{"", core.DefaultWindowDays, nil},
		{"days=7", 7, nil},
		{"days=%207", 7, nil},
		{"days=0", 0, core.ErrInvalidWindow},
		{"days=-3", 0, core.ErrInvalidWindow},
		{"days=week", 0, core.ErrInvalidWindow},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			w, err := ParseWindow(q)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if err == nil && w.Days() != tt.days {
				t.Fatalf("days = %d, want %d", w.Days(), tt.days)
			}
		})
	}
}

func TestParseQueryParams(t *testing.T) {
	q := url.Values{}
	if b, err := ParseBucket(q); err != nil || b != core.Day {
		t.Fatalf("default bucket: %v %v", b, err)
	}
	if l, err := ParseLimit(q); err != nil || l != defaultLimit {
		t.Fatalf("default limit: %v %v", l, err)
	}
	if d, err := ParseBool(q, "dense"); err != nil || d {
		t.Fatalf("default dense: %v %v", d, err)
	}

	q = url.Values{"bucket": {"Month"}, "limit": {"-2"}, "dense": {"1"}, "kind": {"INCOME"}}
	if b, _ := ParseBucket(q); b != core.Month {
		t.Fatalf("bucket = %v", b)
	}
	if l, err := ParseLimit(q); err != nil || l != -2 {
		t.Fatalf("negative limit should reach the engine: %v %v", l, err)
	}
	if d, _ := ParseBool(q, "dense"); !d {
		t.Fatal("dense=1 should be true")
	}
	if k, err := ParseKind(q); err != nil || k != core.Income {
		t.Fatalf("kind = %v %v", k, err)
	}

	q = url.Values{"limit": {"ten"}}
	if _, err := ParseLimit(q); !errors.Is(err, core.ErrInvalidLimit) {
		t.Fatalf("expected invalid limit, got %v", err)
	}
}

func TestParseOwnerAndID(t *testing.T) {
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"owner": "7", "id": "12"})
	owner, id, err := ownerAndID(req)
	if err != nil || owner != 7 || id != 12 {
		t.Fatalf("got %d %d %v", owner, id, err)
	}

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"owner": "0"})
	if _, err := ParseOwner(req); !errors.Is(err, core.ErrInvalidOwner) {
		t.Fatalf("owner 0: %v", err)
	}

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"owner": "99999999999999999999"})
	if _, err := ParseOwner(req); !errors.Is(err, errBadRequest) {
		t.Fatalf("overflowing owner: %v", err)
	}
}

func TestTransactionRequest(t *testing.T) {
	decodeBody := func(body string) (transactionRequest, error) {
		var req transactionRequest
		rr := httptest.NewRecorder()
		err := DecodeJSON(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &req)
		return req, err
	}

	req, err := decodeBody(`{"kind":"income","category":"salary","amount":"1234.5","note":"march"}`)
	if err != nil {
		t.Fatal(err)
	}
	n, err := req.NewTransaction(7)
	if err != nil || n.OwnerID != 7 || n.Kind != core.Income || n.Amount.Cents != 123450 || n.Category != "salary" || *n.Note != "march" {
		t.Fatalf("unexpected new transaction: %+v %v", n, err)
	}

	req, _ = decodeBody(`{"kind":"income","category":"salary"}`)
	if _, err := req.NewTransaction(7); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("missing amount: %v", err)
	}
	req, _ = decodeBody(`{"kind":"gift","amount":1}`)
	if _, err := req.NewTransaction(7); !errors.Is(err, core.ErrInvalidKind) {
		t.Fatalf("bad kind: %v", err)
	}

	req, _ = decodeBody(`{"category":"rent"}`)
	p, err := req.Patch()
	if err != nil || p.Kind != nil || p.Amount != nil || *p.Category != "rent" {
		t.Fatalf("unexpected patch: %+v %v", p, err)
	}

	if _, err := decodeBody(`{"amount":1}{"amount":2}`); !errors.Is(err, errBadRequest) {
		t.Fatalf("trailing object: %v", err)
	}
	if _, err := decodeBody(`{"note":"` + strings.Repeat("x", maxBodyBytes) + `"}`); !errors.Is(err, errBadRequest) {
		t.Fatalf("oversized body: %v", err)
	}
}
