// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// path ids, window and aggregate query parameters, and JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"fintrack/internal/core"
)

const (
	maxBodyBytes = 1 << 16
	defaultLimit = 5
)

// errBadRequest marks malformed input that never reached validation.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// ParseOwner extracts the owner id from the route.
func ParseOwner(r *http.Request) (int64, error) {
	id, err := pathInt(r, "owner")
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, core.ErrInvalidOwner
	}
	return id, nil
}

// ParseID extracts the transaction id from the route.
func ParseID(r *http.Request) (int64, error) {
	return pathInt(r, "id")
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, ok := mux.Vars(r)[name]
	if !ok {
		return 0, badRequest("missing %s", name)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return 0, badRequest("invalid %s %q", name, v)
	}
	return id, nil
}

// ParseWindow reads ?days=, falling back to the default window.
func ParseWindow(q url.Values) (core.Window, error) {
	v := strings.TrimSpace(q.Get("days"))
	if v == "" {
		return core.DefaultWindow(), nil
	}
	days, err := strconv.Atoi(v)
	if err != nil {
		return core.Window{}, core.ErrInvalidWindow
	}
	return core.NewWindow(days)
}

// ParseBucket reads ?bucket=, default day.
func ParseBucket(q url.Values) (core.Bucket, error) {
	v := q.Get("bucket")
	if strings.TrimSpace(v) == "" {
		return core.Day, nil
	}
	return core.ParseBucket(v)
}

// ParseLimit reads ?limit=. Zero and negative values are passed through so
// the engine rejects them.
func ParseLimit(q url.Values) (int, error) {
	v := strings.TrimSpace(q.Get("limit"))
	if v == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.ErrInvalidLimit
	}
	return n, nil
}

// ParseKind reads a required ?kind=.
func ParseKind(q url.Values) (core.Kind, error) {
	return core.ParseKind(q.Get("kind"))
}

// ParseBool reads an optional boolean flag such as ?dense=true.
func ParseBool(q url.Values, name string) (bool, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &core.ValidationError{Field: name, Reason: "must be true or false"}
	}
	return b, nil
}

// transactionRequest is the body of POST and PATCH. On POST either Text or
// the structured fields are set.
type transactionRequest struct {
	Text      *string     `json:"text,omitempty"`
	Kind      *string     `json:"kind,omitempty"`
	Category  *string     `json:"category,omitempty"`
	Amount    json.Number `json:"amount,omitempty"`
	Note      *string     `json:"note,omitempty"`
	ClearNote bool        `json:"clear_note,omitempty"`
}

// DecodeJSON reads a single JSON object into v, rejecting unknown fields and
// oversized bodies.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("empty body")
		}
		return badRequest("malformed JSON: %v", err)
	}
	if dec.More() {
		return badRequest("body must hold a single JSON object")
	}
	return nil
}

func (req transactionRequest) amount() (*core.Money, error) {
	if req.Amount == "" {
		return nil, nil
	}
	m, err := core.ParseMoney(req.Amount.String())
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (req transactionRequest) kind() (*core.Kind, error) {
	if req.Kind == nil {
		return nil, nil
	}
	k, err := core.ParseKind(*req.Kind)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// NewTransaction converts a structured POST body.
func (req transactionRequest) NewTransaction(ownerID int64) (core.NewTransaction, error) {
	kind, err := req.kind()
	if err != nil {
		return core.NewTransaction{}, err
	}
	if kind == nil {
		return core.NewTransaction{}, core.ErrInvalidKind
	}
	amount, err := req.amount()
	if err != nil {
		return core.NewTransaction{}, err
	}
	if amount == nil {
		return core.NewTransaction{}, core.ErrInvalidAmount
	}
	n := core.NewTransaction{OwnerID: ownerID, Kind: *kind, Amount: *amount, Note: req.Note}
	if req.Category != nil {
		n.Category = *req.Category
	}
	return n, nil
}

// Patch converts a PATCH body.
func (req transactionRequest) Patch() (core.Patch, error) {
	if req.Text != nil {
		return core.Patch{}, &core.ValidationError{Field: "text", Reason: "not accepted on update"}
	}
	kind, err := req.kind()
	if err != nil {
		return core.Patch{}, err
	}
	amount, err := req.amount()
	if err != nil {
		return core.Patch{}, err
	}
	return core.Patch{Kind: kind, Category: req.Category, Amount: amount, Note: req.Note, ClearNote: req.ClearNote}, nil
}
