package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"fintrack/internal/core"
)

// MemoryStore keeps each owner's records sorted by (created_at, id) so
// window scans locate their bounds by binary search.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	owners map[int64][]core.Transaction
	index  map[int64]memKey
}

type memKey struct {
	owner     int64
	createdAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		owners: make(map[int64][]core.Transaction),
		index:  make(map[int64]memKey),
	}
}

func (s *MemoryStore) Insert(_ context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, core.NewStorageError("insert", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t.ID = s.nextID
	t.CreatedAt = t.CreatedAt.UTC()
	t.Note = copyNote(t.Note)

	rows := s.owners[t.OwnerID]
	i := sort.Search(len(rows), func(i int) bool { return !less(rows[i], t.CreatedAt, t.ID) })
	rows = append(rows, core.Transaction{})
	copy(rows[i+1:], rows[i:])
	rows[i] = t
	s.owners[t.OwnerID] = rows
	s.index[t.ID] = memKey{owner: t.OwnerID, createdAt: t.CreatedAt}
	return t.ID, nil
}

func (s *MemoryStore) FetchByID(_ context.Context, ownerID, id int64) (core.Transaction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.locate(ownerID, id)
	if !ok {
		return core.Transaction{}, false, nil
	}
	return clone(s.owners[ownerID][i]), true, nil
}

func (s *MemoryStore) Scan(_ context.Context, q ScanQuery) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.owners[q.OwnerID]
	lo := sort.Search(len(rows), func(i int) bool { return !rows[i].CreatedAt.Before(q.From) })
	hi := sort.Search(len(rows), func(i int) bool { return !rows[i].CreatedAt.Before(q.To) })

	var out []core.Transaction
	for i := hi - 1; i >= lo; i-- {
		if q.matches(rows[i]) {
			out = append(out, clone(rows[i]))
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, ownerID, id int64, p core.Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.locate(ownerID, id)
	if !ok {
		return false, nil
	}
	updated := p.Apply(s.owners[ownerID][i])
	if err := updated.Validate(); err != nil {
		return false, core.NewStorageError("update", err)
	}
	s.owners[ownerID][i] = updated
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, ownerID, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.locate(ownerID, id)
	if !ok {
		return false, nil
	}
	rows := s.owners[ownerID]
	s.owners[ownerID] = append(rows[:i], rows[i+1:]...)
	delete(s.index, id)
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }

// locate finds the slice position of id within ownerID's records.
// Callers hold the lock.
func (s *MemoryStore) locate(ownerID, id int64) (int, bool) {
	key, ok := s.index[id]
	if !ok || key.owner != ownerID {
		return 0, false
	}
	rows := s.owners[ownerID]
	i := sort.Search(len(rows), func(i int) bool { return !less(rows[i], key.createdAt, id) })
	if i < len(rows) && rows[i].ID == id {
		return i, true
	}
	return 0, false
}

func less(t core.Transaction, createdAt time.Time, id int64) bool {
	if t.CreatedAt.Equal(createdAt) {
		return t.ID < id
	}
	return t.CreatedAt.Before(createdAt)
}

func clone(t core.Transaction) core.Transaction {
	t.Note = copyNote(t.Note)
	return t
}

func copyNote(n *string) *string {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}
