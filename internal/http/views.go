package http

import (
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

// JSON views of the domain types. Money renders as a decimal string and
// times as RFC 3339 in UTC.

type transactionView struct {
	ID        int64      `json:"id"`
	OwnerID   int64      `json:"owner_id"`
	Kind      core.Kind  `json:"kind"`
	Category  string     `json:"category"`
	Amount    core.Money `json:"amount"`
	Note      *string    `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func viewTransaction(t core.Transaction) transactionView {
	return transactionView{
		ID:        t.ID,
		OwnerID:   t.OwnerID,
		Kind:      t.Kind,
		Category:  t.Category,
		Amount:    t.Amount,
		Note:      t.Note,
		CreatedAt: t.CreatedAt.UTC(),
	}
}

func viewTransactions(rows []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(rows))
	for _, t := range rows {
		out = append(out, viewTransaction(t))
	}
	return out
}

type balanceView struct {
	TotalIncome  core.Money `json:"total_income"`
	TotalExpense core.Money `json:"total_expense"`
	Balance      core.Money `json:"balance"`
}

func viewBalance(b core.Balance) balanceView {
	return balanceView{TotalIncome: b.TotalIncome, TotalExpense: b.TotalExpense, Balance: b.Balance}
}

type categoryStatView struct {
	Total   core.Money `json:"total"`
	Count   int64      `json:"count"`
	Average core.Money `json:"average"`
}

// breakdownView is keyed "income" / "expense", then category.
type breakdownView map[string]map[string]categoryStatView

func viewBreakdown(b core.Breakdown) breakdownView {
	out := breakdownView{}
	for kind, group := range b {
		cats := make(map[string]categoryStatView, len(group))
		for c, s := range group {
			cats[c] = categoryStatView{Total: s.Total, Count: s.Count, Average: s.Average}
		}
		out[kind.String()] = cats
	}
	return out
}

type trendPointView struct {
	Start   time.Time  `json:"start"`
	Label   string     `json:"label"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Balance core.Money `json:"balance"`
}

func viewTrend(points []core.TrendPoint) []trendPointView {
	out := make([]trendPointView, 0, len(points))
	for _, p := range points {
		out = append(out, trendPointView{Start: p.Start, Label: p.Label, Income: p.Income, Expense: p.Expense, Balance: p.Balance})
	}
	return out
}

type categoryTotalView struct {
	Category string     `json:"category"`
	Total    core.Money `json:"total"`
	Count    int64      `json:"count"`
}

func viewTop(rows []core.CategoryTotal) []categoryTotalView {
	out := make([]categoryTotalView, 0, len(rows))
	for _, c := range rows {
		out = append(out, categoryTotalView{Category: c.Category, Total: c.Total, Count: c.Count})
	}
	return out
}

type summaryView struct {
	balanceView
	TransactionCount int64      `json:"transaction_count"`
	IncomeCount      int64      `json:"income_count"`
	ExpenseCount     int64      `json:"expense_count"`
	AverageIncome    core.Money `json:"average_income"`
	AverageExpense   core.Money `json:"average_expense"`
}

func viewSummary(s core.Summary) summaryView {
	return summaryView{
		balanceView:      viewBalance(s.Balance),
		TransactionCount: s.TransactionCount,
		IncomeCount:      s.IncomeCount,
		ExpenseCount:     s.ExpenseCount,
		AverageIncome:    s.AverageIncome,
		AverageExpense:   s.AverageExpense,
	}
}

type dashboardView struct {
	Days        int                 `json:"days"`
	From        time.Time           `json:"from"`
	To          time.Time           `json:"to"`
	Summary     summaryView         `json:"summary"`
	Previous    balanceView         `json:"previous"`
	Breakdown   breakdownView       `json:"breakdown"`
	Trend       []trendPointView    `json:"trend"`
	TopIncome   []categoryTotalView `json:"top_income"`
	TopExpenses []categoryTotalView `json:"top_expenses"`
}

func viewDashboard(d analytics.Dashboard) dashboardView {
	return dashboardView{
		Days:        d.Days,
		From:        d.From,
		To:          d.To,
		Summary:     viewSummary(d.Summary),
		Previous:    viewBalance(d.Previous),
		Breakdown:   viewBreakdown(d.Breakdown),
		Trend:       viewTrend(d.Trend),
		TopIncome:   viewTop(d.TopIncome),
		TopExpenses: viewTop(d.TopExpenses),
	}
}
