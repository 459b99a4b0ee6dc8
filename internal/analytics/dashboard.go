package analytics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

// Dashboard bundles every aggregate a dashboard page shows for one window,
// plus the balance of the window immediately before it.
type Dashboard struct {
	Days        int
	From        time.Time
	To          time.Time
	Summary     core.Summary
	Previous    core.Balance
	Breakdown   core.Breakdown
	Trend       []core.TrendPoint
	TopIncome   []core.CategoryTotal
	TopExpenses []core.CategoryTotal
}

// Dashboard reads the current and previous window concurrently and derives
// all aggregates from those two reads, so the parts agree with each other.
// If either read fails the whole call fails.
func (e *Engine) Dashboard(ctx context.Context, ownerID int64, w core.Window, bucket core.Bucket, limit int) (Dashboard, error) {
	if err := bucket.Validate(); err != nil {
		return Dashboard{}, err
	}
	if limit <= 0 {
		return Dashboard{}, core.ErrInvalidLimit
	}

	now := e.source.Now()
	from, to := w.Bounds(now)

	var current, previous []core.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := e.source.Query(gctx, ledger.ListQuery{OwnerID: ownerID, Window: w, Now: now})
		current = rows
		return err
	})
	g.Go(func() error {
		rows, err := e.source.Query(gctx, ledger.ListQuery{OwnerID: ownerID, Window: w, Now: from})
		previous = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	return Dashboard{
		Days:        w.Days(),
		From:        from,
		To:          to,
		Summary:     summaryOf(current),
		Previous:    balanceOf(previous),
		Breakdown:   breakdownOf(current),
		Trend:       e.trendOf(current, bucket, true, from, to),
		TopIncome:   topOf(current, core.Income, limit),
		TopExpenses: topOf(current, core.Expense, limit),
	}, nil
}
