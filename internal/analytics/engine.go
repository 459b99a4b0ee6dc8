// Package analytics computes read-only aggregates over an owner's ledger:
// balance, category breakdown, trends and top-N rankings. Every call reads
// fresh data through the repository's bulk read path.
package analytics

import (
	"context"
	"sort"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

// Source is the read path the engine aggregates over.
type Source interface {
	Now() time.Time
	Query(ctx context.Context, q ledger.ListQuery) ([]core.Transaction, error)
}

type Engine struct {
	source   Source
	location *time.Location
}

type Option func(*Engine)

// WithLocation sets the time zone used to cut trend buckets. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

func NewEngine(source Source, opts ...Option) *Engine {
	e := &Engine{source: source, location: time.UTC}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Balance sums income and expense inside w.
func (e *Engine) Balance(ctx context.Context, ownerID int64, w core.Window) (core.Balance, error) {
	rows, err := e.source.Query(ctx, ledger.ListQuery{OwnerID: ownerID, Window: w})
	if err != nil {
		return core.Balance{}, err
	}
	return balanceOf(rows), nil
}

// CategoryBreakdown groups the window by (kind, category).
func (e *Engine) CategoryBreakdown(ctx context.Context, ownerID int64, w core.Window) (core.Breakdown, error) {
	rows, err := e.source.Query(ctx, ledger.ListQuery{OwnerID: ownerID, Window: w})
	if err != nil {
		return nil, err
	}
	return breakdownOf(rows), nil
}

// Trend buckets the window by created_at. With dense set every bucket that
// overlaps the window is present, zero-filled; otherwise empty buckets are
// omitted. Points are ordered by bucket start.
func (e *Engine) Trend(ctx context.Context, ownerID int64, w core.Window, bucket core.Bucket, dense bool) ([]core.TrendPoint, error) {
	if err := bucket.Validate(); err != nil {
		return nil, err
	}
	now := e.source.Now()
	rows, err := e.source.Query(ctx, ledger.ListQuery{OwnerID: ownerID, Window: w, Now: now})
	if err != nil {
		return nil, err
	}
	from, to := w.Bounds(now)
	return e.trendOf(rows, bucket, dense, from, to), nil
}

// TopCategories ranks the categories of one kind by total, descending, ties
// broken by category name ascending.
func (e *Engine) TopCategories(ctx context.Context, ownerID int64, kind core.Kind, w core.Window, limit int) ([]core.CategoryTotal, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, core.ErrInvalidLimit
	}
	rows, err := e.source.Query(ctx, ledger.ListQuery{OwnerID: ownerID, Window: w, Kind: &kind})
	if err != nil {
		return nil, err
	}
	return topOf(rows, kind, limit), nil
}

// Summary is Balance plus record counts and per-kind averages.
func (e *Engine) Summary(ctx context.Context, ownerID int64, w core.Window) (core.Summary, error) {
	rows, err := e.source.Query(ctx, ledger.ListQuery{OwnerID: ownerID, Window: w})
	if err != nil {
		return core.Summary{}, err
	}
	return summaryOf(rows), nil
}

func balanceOf(rows []core.Transaction) core.Balance {
	var income, expense core.Money
	for _, t := range rows {
		switch t.Kind {
		case core.Income:
			income = income.Add(t.Amount)
		case core.Expense:
			expense = expense.Add(t.Amount)
		}
	}
	return core.NewBalance(income, expense)
}

func breakdownOf(rows []core.Transaction) core.Breakdown {
	out := core.Breakdown{}
	for _, k := range core.Kinds() {
		out[k] = map[string]core.CategoryStat{}
	}
	for _, t := range rows {
		group, ok := out[t.Kind]
		if !ok {
			continue
		}
		s := group[t.Category]
		s.Total = s.Total.Add(t.Amount)
		s.Count++
		group[t.Category] = s
	}
	for _, group := range out {
		for c, s := range group {
			s.Average = core.Average(s.Total, s.Count)
			group[c] = s
		}
	}
	return out
}

func (e *Engine) trendOf(rows []core.Transaction, bucket core.Bucket, dense bool, from, to time.Time) []core.TrendPoint {
	points := map[int64]*core.TrendPoint{}
	for _, t := range rows {
		start := bucket.Truncate(t.CreatedAt.In(e.location))
		p, ok := points[start.UnixNano()]
		if !ok {
			p = &core.TrendPoint{Start: start, Label: bucket.Label(start)}
			points[start.UnixNano()] = p
		}
		switch t.Kind {
		case core.Income:
			p.Income = p.Income.Add(t.Amount)
		case core.Expense:
			p.Expense = p.Expense.Add(t.Amount)
		}
	}

	var out []core.TrendPoint
	if dense {
		for _, start := range Buckets(bucket, from.In(e.location), to.In(e.location)) {
			p, ok := points[start.UnixNano()]
			if !ok {
				p = &core.TrendPoint{Start: start, Label: bucket.Label(start)}
			}
			out = append(out, *p)
		}
	} else {
		for _, p := range points {
			out = append(out, *p)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	}
	for i := range out {
		out[i].Balance = out[i].Income.Sub(out[i].Expense)
	}
	return out
}

// Buckets enumerates the start of every bucket overlapping [from, to), in
// order, independent of any data.
func Buckets(bucket core.Bucket, from, to time.Time) []time.Time {
	if !from.Before(to) {
		return nil
	}
	last := bucket.Truncate(to.Add(-time.Nanosecond))
	var out []time.Time
	for start := bucket.Truncate(from); !start.After(last); start = bucket.Next(start) {
		out = append(out, start)
	}
	return out
}

func topOf(rows []core.Transaction, kind core.Kind, limit int) []core.CategoryTotal {
	totals := map[string]*core.CategoryTotal{}
	for _, t := range rows {
		if t.Kind != kind {
			continue
		}
		c, ok := totals[t.Category]
		if !ok {
			c = &core.CategoryTotal{Category: t.Category}
			totals[t.Category] = c
		}
		c.Total = c.Total.Add(t.Amount)
		c.Count++
	}

	out := make([]core.CategoryTotal, 0, len(totals))
	for _, c := range totals {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func summaryOf(rows []core.Transaction) core.Summary {
	s := core.Summary{Balance: balanceOf(rows), TransactionCount: int64(len(rows))}
	for _, t := range rows {
		switch t.Kind {
		case core.Income:
			s.IncomeCount++
		case core.Expense:
			s.ExpenseCount++
		}
	}
	s.AverageIncome = core.Average(s.TotalIncome, s.IncomeCount)
	s.AverageExpense = core.Average(s.TotalExpense, s.ExpenseCount)
	return s
}
