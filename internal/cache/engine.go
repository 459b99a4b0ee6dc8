package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Aggregator is the read surface of analytics.Engine.
type Aggregator interface {
	Balance(ctx context.Context, ownerID int64, w core.Window) (core.Balance, error)
	CategoryBreakdown(ctx context.Context, ownerID int64, w core.Window) (core.Breakdown, error)
	Trend(ctx context.Context, ownerID int64, w core.Window, bucket core.Bucket, dense bool) ([]core.TrendPoint, error)
	TopCategories(ctx context.Context, ownerID int64, kind core.Kind, w core.Window, limit int) ([]core.CategoryTotal, error)
	Summary(ctx context.Context, ownerID int64, w core.Window) (core.Summary, error)
	Dashboard(ctx context.Context, ownerID int64, w core.Window, bucket core.Bucket, limit int) (analytics.Dashboard, error)
}

var _ Aggregator = (*analytics.Engine)(nil)

// Engine memoizes the results of an Aggregator per owner, window and
// arguments. Identical concurrent misses share one computation. Errors are
// never cached. Cached maps and slices are shared between callers and must
// be treated as read-only.
type Engine struct {
	next   Aggregator
	store  *LRUCache[any]
	group  singleflight.Group
	logger *log.Logger

	mu          sync.Mutex
	generations map[int64]uint64
}

// NewEngine wraps next with a cache of at most size entries living ttl.
func NewEngine(next Aggregator, size int, ttl time.Duration, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		next:        next,
		store:       NewLRUCache[any](size, ttl),
		logger:      logger.WithComponent(log.ComponentCache),
		generations: make(map[int64]uint64),
	}
}

// LRU exposes the underlying cache, for registration with a Manager.
func (e *Engine) LRU() *LRUCache[any] { return e.store }

// Invalidate drops every cached aggregate of ownerID. A computation that
// started before the call stores its result under a stale generation, so
// it is never served afterwards.
func (e *Engine) Invalidate(ownerID int64) {
	e.mu.Lock()
	e.generations[ownerID]++
	e.mu.Unlock()

	prefix := ownerPrefix(ownerID)
	n := e.store.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, prefix) })
	e.logger.Debug("Owner cache invalidated",
		log.FieldOwnerID, ownerID, log.FieldOperation, log.OpInvalidate, log.FieldCount, n)
}

func (e *Engine) key(ownerID int64, op string, w core.Window, args ...any) string {
	e.mu.Lock()
	gen := e.generations[ownerID]
	e.mu.Unlock()

	var b strings.Builder
	b.WriteString(ownerPrefix(ownerID))
	b.WriteString(strconv.FormatUint(gen, 10))
	b.WriteByte('/')
	b.WriteString(op)
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(w.Days()))
	for _, a := range args {
		fmt.Fprintf(&b, "/%v", a)
	}
	return b.String()
}

func ownerPrefix(ownerID int64) string {
	return strconv.FormatInt(ownerID, 10) + "/"
}

// load serves key from the cache or joins the single computation for it.
// The computation runs detached from any one caller's cancellation so a
// caller that gives up does not fail the others waiting on the same key.
func load[T any](ctx context.Context, e *Engine, key string, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := e.store.Get(key); ok {
		return v.(T), nil
	}
	flight := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (any, error) {
		res, err := compute(flight)
		if err != nil {
			return nil, err
		}
		e.store.Set(key, res)
		return res, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

func (e *Engine) Balance(ctx context.Context, ownerID int64, w core.Window) (core.Balance, error) {
	return load(ctx, e, e.key(ownerID, "balance", w), func(ctx context.Context) (core.Balance, error) {
		return e.next.Balance(ctx, ownerID, w)
	})
}

func (e *Engine) CategoryBreakdown(ctx context.Context, ownerID int64, w core.Window) (core.Breakdown, error) {
	return load(ctx, e, e.key(ownerID, "breakdown", w), func(ctx context.Context) (core.Breakdown, error) {
		return e.next.CategoryBreakdown(ctx, ownerID, w)
	})
}

func (e *Engine) Trend(ctx context.Context, ownerID int64, w core.Window, bucket core.Bucket, dense bool) ([]core.TrendPoint, error) {
	if err := bucket.Validate(); err != nil {
		return nil, err
	}
	return load(ctx, e, e.key(ownerID, "trend", w, bucket, dense), func(ctx context.Context) ([]core.TrendPoint, error) {
		return e.next.Trend(ctx, ownerID, w, bucket, dense)
	})
}

func (e *Engine) TopCategories(ctx context.Context, ownerID int64, kind core.Kind, w core.Window, limit int) ([]core.CategoryTotal, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, core.ErrInvalidLimit
	}
	return load(ctx, e, e.key(ownerID, "top", w, kind, limit), func(ctx context.Context) ([]core.CategoryTotal, error) {
		return e.next.TopCategories(ctx, ownerID, kind, w, limit)
	})
}

func (e *Engine) Summary(ctx context.Context, ownerID int64, w core.Window) (core.Summary, error) {
	return load(ctx, e, e.key(ownerID, "summary", w), func(ctx context.Context) (core.Summary, error) {
		return e.next.Summary(ctx, ownerID, w)
	})
}

func (e *Engine) Dashboard(ctx context.Context, ownerID int64, w core.Window, bucket core.Bucket, limit int) (analytics.Dashboard, error) {
	if err := bucket.Validate(); err != nil {
		return analytics.Dashboard{}, err
	}
	if limit <= 0 {
		return analytics.Dashboard{}, core.ErrInvalidLimit
	}
	return load(ctx, e, e.key(ownerID, "dashboard", w, bucket, limit), func(ctx context.Context) (analytics.Dashboard, error) {
		return e.next.Dashboard(ctx, ownerID, w, bucket, limit)
	})
}
