// Package ledger is the validated, owner-scoped CRUD surface over a
// storage.Store. It is the only writer of the ledger.
package ledger

import (
	"context"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// Clock returns the current instant.
type Clock func() time.Time

type Repository struct {
	store  storage.Store
	clock  Clock
	logger *log.Logger
}

type Option func(*Repository)

// WithClock overrides time.Now, mostly for tests.
func WithClock(c Clock) Option {
	return func(r *Repository) { r.clock = c }
}

func WithLogger(l *log.Logger) Option {
	return func(r *Repository) { r.logger = l.WithComponent(log.ComponentLedger) }
}

func NewRepository(store storage.Store, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		clock:  time.Now,
		logger: log.Default().WithComponent(log.ComponentLedger),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now is the repository's notion of the current instant, in UTC.
func (r *Repository) Now() time.Time { return r.clock().UTC() }

// Add validates n, stamps it with an id and creation time and stores it.
func (r *Repository) Add(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	if err := n.Validate(); err != nil {
		return core.Transaction{}, err
	}
	n = n.Normalize()

	t := core.Transaction{
		OwnerID:  n.OwnerID,
		Kind:     n.Kind,
		Category: n.Category,
		Amount:   n.Amount,
		Note:     n.Note,
		// Every backend keeps microseconds.
		CreatedAt: r.Now().Truncate(time.Microsecond),
	}

	id, err := r.store.Insert(ctx, t)
	if err != nil {
		r.logger.LogError(ctx, "Failed to add transaction", err, log.ErrorTypeDatabase, log.OpCreate,
			log.NewFields().WithOwner(n.OwnerID))
		return core.Transaction{}, err
	}
	t.ID = id

	r.logger.InfoContext(ctx, "Transaction added", log.NewFields().
		WithOwner(t.OwnerID).
		WithTransaction(t.ID, t.Kind.String(), t.Category, t.Amount.Cents).
		ToSlice()...)
	return t, nil
}

// Get returns the owner's record with id.
func (r *Repository) Get(ctx context.Context, ownerID, id int64) (core.Transaction, bool, error) {
	return r.store.FetchByID(ctx, ownerID, id)
}

// Update applies p to the owner's record. It returns false, without error,
// when no record with id belongs to ownerID.
func (r *Repository) Update(ctx context.Context, ownerID, id int64, p core.Patch) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	p = p.Normalize()

	ok, err := r.store.Update(ctx, ownerID, id, p)
	if err != nil {
		r.logger.LogError(ctx, "Failed to update transaction", err, log.ErrorTypeDatabase, log.OpUpdate,
			log.NewFields().WithOwner(ownerID))
		return false, err
	}
	if !ok {
		r.logger.DebugContext(ctx, "Transaction not found for update",
			log.FieldOwnerID, ownerID, log.FieldTransactionID, id)
		return false, nil
	}

	r.logger.InfoContext(ctx, "Transaction updated",
		log.FieldOwnerID, ownerID, log.FieldTransactionID, id)
	return true, nil
}

// Delete permanently removes the owner's record. Not found is reported as
// false, without error.
func (r *Repository) Delete(ctx context.Context, ownerID, id int64) (bool, error) {
	ok, err := r.store.Delete(ctx, ownerID, id)
	if err != nil {
		r.logger.LogError(ctx, "Failed to delete transaction", err, log.ErrorTypeDatabase, log.OpDelete,
			log.NewFields().WithOwner(ownerID))
		return false, err
	}
	if ok {
		r.logger.InfoContext(ctx, "Transaction deleted",
			log.FieldOwnerID, ownerID, log.FieldTransactionID, id)
	}
	return ok, nil
}

// List returns the owner's records inside w, newest first.
func (r *Repository) List(ctx context.Context, ownerID int64, w core.Window) ([]core.Transaction, error) {
	return r.Query(ctx, ListQuery{OwnerID: ownerID, Window: w})
}

// ListKind is List restricted to one kind.
func (r *Repository) ListKind(ctx context.Context, ownerID int64, kind core.Kind, w core.Window) ([]core.Transaction, error) {
	return r.Query(ctx, ListQuery{OwnerID: ownerID, Window: w, Kind: &kind})
}

// ListQuery selects records for a window read. A zero Now resolves the
// window against the repository clock; a nil Kind matches both kinds.
type ListQuery struct {
	OwnerID int64
	Window  core.Window
	Kind    *core.Kind
	Now     time.Time
}

// Query is the bulk read path behind List, ListKind and every aggregate.
func (r *Repository) Query(ctx context.Context, q ListQuery) ([]core.Transaction, error) {
	if q.Kind != nil {
		if err := q.Kind.Validate(); err != nil {
			return nil, err
		}
	}
	now := q.Now
	if now.IsZero() {
		now = r.Now()
	}

	from, to := q.Window.Bounds(now)
	rows, err := r.store.Scan(ctx, storage.ScanQuery{OwnerID: q.OwnerID, From: from, To: to, Kind: q.Kind})
	if err != nil {
		r.logger.LogError(ctx, "Failed to list transactions", err, log.ErrorTypeDatabase, log.OpList,
			log.NewFields().WithOwner(q.OwnerID))
		return nil, err
	}
	r.logger.DebugContext(ctx, "Transactions listed",
		log.FieldOwnerID, q.OwnerID, log.FieldWindowDays, q.Window.Days(), log.FieldCount, len(rows))
	return rows, nil
}
