package core

import (
	"fmt"
	"strings"
	"time"
)

// Bucket is the granularity of a trend series.
type Bucket string

const (
	Day   Bucket = "day"
	Week  Bucket = "week"
	Month Bucket = "month"
)

func ParseBucket(s string) (Bucket, error) {
	b := Bucket(strings.ToLower(strings.TrimSpace(s)))
	if err := b.Validate(); err != nil {
		return "", err
	}
	return b, nil
}

func (b Bucket) Validate() error {
	switch b {
	case Day, Week, Month:
		return nil
	default:
		return ErrInvalidBucket
	}
}

// Truncate returns the start of the bucket holding t, in t's location.
// Weeks start on Monday.
func (b Bucket) Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	switch b {
	case Week:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
}

// Next returns the start of the bucket following the one starting at start.
func (b Bucket) Next(start time.Time) time.Time {
	switch b {
	case Week:
		return start.AddDate(0, 0, 7)
	case Month:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Label is a compact key for the bucket starting at start.
func (b Bucket) Label(start time.Time) string {
	switch b {
	case Week:
		y, w := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case Month:
		return start.Format("2006-01")
	default:
		return start.Format("2006-01-02")
	}
}

type (
	// Balance is the income/expense position over a window.
	Balance struct {
		TotalIncome  Money
		TotalExpense Money
		Balance      Money
	}

	// CategoryStat aggregates one (kind, category) group.
	CategoryStat struct {
		Total   Money
		Count   int64
		Average Money
	}

	// Breakdown maps kind -> category -> stats. Kinds without records map
	// to an empty (non-nil) map.
	Breakdown map[Kind]map[string]CategoryStat

	// TrendPoint is one bucket of a trend series.
	TrendPoint struct {
		Start   time.Time
		Label   string
		Income  Money
		Expense Money
		Balance Money
	}

	// CategoryTotal is one row of a top-N ranking.
	CategoryTotal struct {
		Category string
		Total    Money
		Count    int64
	}

	// Summary extends Balance with counts and per-kind averages.
	Summary struct {
		Balance
		TransactionCount int64
		IncomeCount      int64
		ExpenseCount     int64
		AverageIncome    Money
		AverageExpense   Money
	}
)

// NewBalance builds a Balance keeping Balance == TotalIncome - TotalExpense.
func NewBalance(income, expense Money) Balance {
	return Balance{TotalIncome: income, TotalExpense: expense, Balance: income.Sub(expense)}
}

// Total sums the category totals of one kind.
func (b Breakdown) Total(k Kind) Money {
	var total Money
	for _, s := range b[k] {
		total = total.Add(s.Total)
	}
	return total
}
