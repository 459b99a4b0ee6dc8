package services

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

type published struct {
	owner, id int64
	op        amqp.Op
}

type fakePublisher struct {
	events []published
	err    error
}

func (p *fakePublisher) PublishChange(_ context.Context, ownerID, id int64, op amqp.Op) error {
	p.events = append(p.events, published{ownerID, id, op})
	return p.err
}

type fakeCache struct{ owners []int64 }

func (c *fakeCache) Invalidate(ownerID int64) { c.owners = append(c.owners, ownerID) }

func newService(t *testing.T, pub Publisher) (*LedgerService, *fakeCache) {
	t.Helper()
	repo := ledger.NewRepository(storage.NewMemoryStore(), ledger.WithLogger(log.Discard()))
	cache := &fakeCache{}
	opts := []Option{WithInvalidator(cache), WithLogger(log.Discard())}
	if pub != nil {
		opts = append(opts, WithPublisher(pub))
	}
	return NewLedgerService(repo, opts...), cache
}

func TestLedgerServiceWritesNotify(t *testing.T) {
	pub := &fakePublisher{}
	s, cache := newService(t, pub)
	ctx := context.Background()

	tx, err := s.Add(ctx, core.NewTransaction{OwnerID: 7, Kind: core.Expense, Category: "food", Amount: core.Cents(500)})
	if err != nil {
		t.Fatal(err)
	}
	amount := core.Cents(600)
	if ok, err := s.Update(ctx, 7, tx.ID, core.Patch{Amount: &amount}); !ok || err != nil {
		t.Fatalf("update: %v %v", ok, err)
	}
	if ok, err := s.Delete(ctx, 7, tx.ID); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}

	want := []published{{7, tx.ID, amqp.OpCreate}, {7, tx.ID, amqp.OpUpdate}, {7, tx.ID, amqp.OpDelete}}
	if len(pub.events) != len(want) {
		t.Fatalf("events = %+v", pub.events)
	}
	for i := range want {
		if pub.events[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, pub.events[i], want[i])
		}
	}
	if len(cache.owners) != 3 {
		t.Fatalf("expected 3 invalidations, got %v", cache.owners)
	}
}

func TestLedgerServiceNoNotifyOnMissOrInvalid(t *testing.T) {
	pub := &fakePublisher{}
	s, cache := newService(t, pub)
	ctx := context.Background()

	if _, err := s.Add(ctx, core.NewTransaction{OwnerID: 7, Kind: core.Expense, Category: "", Amount: core.Cents(500)}); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ok, _ := s.Delete(ctx, 7, 999); ok {
		t.Fatal("delete of missing id reported success")
	}
	amount := core.Cents(1)
	if ok, _ := s.Update(ctx, 7, 999, core.Patch{Amount: &amount}); ok {
		t.Fatal("update of missing id reported success")
	}
	if len(pub.events) != 0 || len(cache.owners) != 0 {
		t.Fatalf("nothing changed, yet notified: %+v %v", pub.events, cache.owners)
	}
}

func TestLedgerServicePublishFailureKeepsWrite(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	s, _ := newService(t, pub)
	ctx := context.Background()

	tx, err := s.Add(ctx, core.NewTransaction{OwnerID: 1, Kind: core.Income, Category: "salary", Amount: core.Cents(1000)})
	if err != nil {
		t.Fatalf("publish failure must not fail the write: %v", err)
	}
	if _, ok, _ := s.Get(ctx, 1, tx.ID); !ok {
		t.Fatal("record should be stored")
	}
}

func TestLedgerServiceAddText(t *testing.T) {
	s, _ := newService(t, nil)
	ctx := context.Background()

	tx, err := s.AddText(ctx, 5, "expense coffee 3,20")
	if err != nil {
		t.Fatal(err)
	}
	if tx.OwnerID != 5 || tx.Kind != core.Expense || tx.Category != "coffee" || tx.Amount.Cents != 320 {
		t.Fatalf("unexpected record: %+v", tx)
	}

	if _, err := s.AddText(ctx, 5, "what is my balance"); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := s.AddText(ctx, 0, "expense coffee 3"); !errors.Is(err, core.ErrInvalidOwner) {
		t.Fatalf("expected invalid owner, got %v", err)
	}

	list, _ := s.List(ctx, 5, core.DefaultWindow())
	if len(list) != 1 {
		t.Fatalf("expected 1 record, got %d", len(list))
	}
}

func TestLedgerServiceClose(t *testing.T) {
	t.Run("no resources", func(t *testing.T) {
		s, _ := newService(t, nil)
		if err := s.Close(); err != nil {
			t.Fatalf("Close should not fail without resources: %v", err)
		}
	})

	t.Run("all closers run", func(t *testing.T) {
		first := errors.New("store")
		var calls int
		repo := ledger.NewRepository(storage.NewMemoryStore(), ledger.WithLogger(log.Discard()))
		s := NewLedgerService(repo,
			WithCloser(func() error { calls++; return first }),
			WithCloser(func() error { calls++; return nil }),
		)
		err := s.Close()
		if calls != 2 || !errors.Is(err, first) {
			t.Fatalf("calls=%d err=%v", calls, err)
		}
	})
}
