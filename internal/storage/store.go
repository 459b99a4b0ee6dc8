// Package storage persists ledger transactions. It offers SQLite, PostgreSQL
// and in-memory implementations of Store.
package storage

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// Store is the durable, indexed home of transaction records. Every call is
// scoped to one owner and every mutation is atomic.
type Store interface {
	// Insert persists t and returns the assigned id. t.ID is ignored.
	Insert(ctx context.Context, t core.Transaction) (int64, error)
	// FetchByID returns the record with id if it belongs to ownerID.
	FetchByID(ctx context.Context, ownerID, id int64) (core.Transaction, bool, error)
	// Scan returns the owner's records created in [From, To), newest first.
	Scan(ctx context.Context, q ScanQuery) ([]core.Transaction, error)
	// Update applies a normalized patch; false means no such (id, owner).
	Update(ctx context.Context, ownerID, id int64, p core.Patch) (bool, error)
	// Delete removes the record; false means no such (id, owner).
	Delete(ctx context.Context, ownerID, id int64) (bool, error)
	Close() error
}

// ScanQuery selects an owner's records in the half-open range [From, To).
// A nil Kind matches both kinds.
type ScanQuery struct {
	OwnerID int64
	From    time.Time
	To      time.Time
	Kind    *core.Kind
}

func (q ScanQuery) matches(t core.Transaction) bool {
	if t.OwnerID != q.OwnerID {
		return false
	}
	if q.Kind != nil && t.Kind != *q.Kind {
		return false
	}
	return !t.CreatedAt.Before(q.From) && t.CreatedAt.Before(q.To)
}
