// Package parser turns short chat-style messages such as
// "expense food 12.50" into ledger add requests.
package parser

import (
	"errors"
	"regexp"
	"strings"

	"fintrack/internal/core"
)

// ErrNotTransaction is returned for text that is not shaped like
// "<kind> <category> <amount>".
var ErrNotTransaction = errors.New("not a transaction message")

var messagePattern = regexp.MustCompile(`^(\p{L}+)\s+([\p{L}\p{N}\s]+?)\s+(\d+(?:[.,]\d+)?)$`)

var kindWords = map[string]core.Kind{
	"income":   core.Income,
	"incomes":  core.Income,
	"доход":    core.Income,
	"доходы":   core.Income,
	"expense":  core.Expense,
	"expenses": core.Expense,
	"расход":   core.Expense,
	"расходы":  core.Expense,
}

// Parse reads one message. The result has no owner; callers set it. The
// category is lowercased with inner whitespace collapsed.
func Parse(text string) (core.NewTransaction, error) {
	m := messagePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return core.NewTransaction{}, ErrNotTransaction
	}

	kind, ok := kindWords[m[1]]
	if !ok {
		return core.NewTransaction{}, ErrNotTransaction
	}

	category := strings.Join(strings.Fields(m[2]), " ")
	if err := core.ValidateCategory(category); err != nil {
		return core.NewTransaction{}, err
	}

	amount, err := core.ParseMoney(m[3])
	if err != nil {
		return core.NewTransaction{}, err
	}

	return core.NewTransaction{Kind: kind, Category: category, Amount: amount}, nil
}

// IsTransaction reports whether text parses.
func IsTransaction(text string) bool {
	_, err := Parse(text)
	return err == nil
}
