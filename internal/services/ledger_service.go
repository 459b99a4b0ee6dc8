// Package services composes the repository, the change publisher and the
// aggregate cache into the write surface used by the HTTP and CLI layers.
package services

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/parser"
)

// Publisher announces ledger changes to other processes.
type Publisher interface {
	PublishChange(ctx context.Context, ownerID, transactionID int64, op amqp.Op) error
}

// Invalidator drops cached aggregates of one owner.
type Invalidator interface {
	Invalidate(ownerID int64)
}

// LedgerService persists through the repository first; publishing and cache
// invalidation follow a successful write and never fail it.
type LedgerService struct {
	repo      *ledger.Repository
	publisher Publisher
	cache     Invalidator
	closers   []func() error
	logger    *log.Logger
}

type Option func(*LedgerService)

func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithInvalidator(i Invalidator) Option {
	return func(s *LedgerService) { s.cache = i }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l.WithComponent(log.ComponentLedger) }
}

// WithCloser registers a resource released by Close, in registration order.
func WithCloser(fn func() error) Option {
	return func(s *LedgerService) { s.closers = append(s.closers, fn) }
}

func NewLedgerService(repo *ledger.Repository, opts ...Option) *LedgerService {
	s := &LedgerService{repo: repo, logger: log.Default().WithComponent(log.ComponentLedger)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository exposes the read path, for the aggregation engine.
func (s *LedgerService) Repository() *ledger.Repository { return s.repo }

func (s *LedgerService) Add(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	t, err := s.repo.Add(ctx, n)
	if err != nil {
		return core.Transaction{}, err
	}
	s.changed(ctx, t.OwnerID, t.ID, amqp.OpCreate)
	return t, nil
}

// AddText parses a chat-style message and adds it for ownerID.
func (s *LedgerService) AddText(ctx context.Context, ownerID int64, text string) (core.Transaction, error) {
	n, err := parser.Parse(text)
	if err != nil {
		if errors.Is(err, parser.ErrNotTransaction) {
			return core.Transaction{}, &core.ValidationError{Field: "text", Reason: "expected \"<income|expense> <category> <amount>\""}
		}
		return core.Transaction{}, err
	}
	n.OwnerID = ownerID
	return s.Add(ctx, n)
}

func (s *LedgerService) Get(ctx context.Context, ownerID, id int64) (core.Transaction, bool, error) {
	return s.repo.Get(ctx, ownerID, id)
}

func (s *LedgerService) Update(ctx context.Context, ownerID, id int64, p core.Patch) (bool, error) {
	ok, err := s.repo.Update(ctx, ownerID, id, p)
	if err != nil || !ok {
		return ok, err
	}
	s.changed(ctx, ownerID, id, amqp.OpUpdate)
	return true, nil
}

func (s *LedgerService) Delete(ctx context.Context, ownerID, id int64) (bool, error) {
	ok, err := s.repo.Delete(ctx, ownerID, id)
	if err != nil || !ok {
		return ok, err
	}
	s.changed(ctx, ownerID, id, amqp.OpDelete)
	return true, nil
}

func (s *LedgerService) List(ctx context.Context, ownerID int64, w core.Window) ([]core.Transaction, error) {
	return s.repo.List(ctx, ownerID, w)
}

func (s *LedgerService) ListKind(ctx context.Context, ownerID int64, kind core.Kind, w core.Window) ([]core.Transaction, error) {
	return s.repo.ListKind(ctx, ownerID, kind, w)
}

func (s *LedgerService) changed(ctx context.Context, ownerID, id int64, op amqp.Op) {
	if s.cache != nil {
		s.cache.Invalidate(ownerID)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, ownerID, id, op); err != nil {
		// The write is already durable.
		s.logger.LogError(ctx, "Failed to publish ledger change", err, log.ErrorTypeNetwork, log.OpPublish,
			log.NewFields().WithOwner(ownerID).With(log.FieldTransactionID, id))
	}
}

// Close releases every registered resource and reports all failures.
func (s *LedgerService) Close() error {
	var errs []error
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
