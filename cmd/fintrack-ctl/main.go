// Command fintrack-ctl operates on the ledger directly: it applies schema
// migrations, records transactions from text and prints reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

const usage = `usage: fintrack-ctl <command> [args]

commands:
  migrate                     apply pending schema migrations
  add <owner> <text...>       record "<income|expense> <category> <amount>"
  balance <owner> [days]      print income, expense and balance
  report <owner> [days]       print summary, categories, top entries and trend
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentCLI)
	// Reads here are one-shot; the server owns the aggregate cache.
	cfg.CacheTTL = 0

	ctx := context.Background()
	if err := run(ctx, os.Stdout, logger, cfg, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
			os.Exit(2)
		}
		logger.LogError(ctx, "Command failed", err, errorType(err), os.Args[1], nil)
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid arguments")

func run(ctx context.Context, out io.Writer, logger *log.Logger, cfg *config.Config, cmd string, args []string) error {
	if cmd == "migrate" {
		return migrate(logger, cfg)
	}

	if len(args) < 1 {
		return fmt.Errorf("%w: %s needs an owner id", errUsage, cmd)
	}
	ownerID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || ownerID <= 0 {
		return fmt.Errorf("%w: owner must be a positive integer, got %q", errUsage, args[0])
	}

	b := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := b.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	switch cmd {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("%w: add needs a message", errUsage)
		}
		return add(ctx, out, b, ownerID, strings.Join(args[1:], " "))
	case "balance", "report":
		w, err := windowArg(args[1:])
		if err != nil {
			return err
		}
		if cmd == "balance" {
			return balance(ctx, out, b, ownerID, w)
		}
		return report(ctx, out, b, ownerID, w)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func migrate(logger *log.Logger, cfg *config.Config) error {
	switch cfg.DataBackend {
	case config.BackendSQLite:
		if err := storage.RunSQLiteMigrations(cfg.SQLiteDBPath); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	case config.BackendPostgres:
		if err := storage.RunPostgresMigrations(cfg.PostgresDSN); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	default:
		logger.Info("Nothing to migrate", log.FieldBackend, cfg.DataBackend)
		return nil
	}
	logger.Info("Migrations applied", log.FieldBackend, cfg.DataBackend)
	return nil
}

func windowArg(args []string) (core.Window, error) {
	if len(args) == 0 {
		return core.DefaultWindow(), nil
	}
	days, err := strconv.Atoi(args[0])
	if err != nil {
		return core.Window{}, core.ErrInvalidWindow
	}
	return core.NewWindow(days)
}

func add(ctx context.Context, out io.Writer, b *backend.Backend, ownerID int64, text string) error {
	t, err := b.Ledger.AddText(ctx, ownerID, text)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "#%d %s %s %s\n", t.ID, t.Kind, t.Category, t.Amount)
	return err
}

func balance(ctx context.Context, out io.Writer, b *backend.Backend, ownerID int64, w core.Window) error {
	bal, err := b.Analytics.Balance(ctx, ownerID, w)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "last %d days\t\n", w.Days())
	fmt.Fprintf(tw, "income\t%s\t\n", bal.TotalIncome)
	fmt.Fprintf(tw, "expense\t%s\t\n", bal.TotalExpense)
	fmt.Fprintf(tw, "balance\t%s\t\n", bal.Balance)
	return tw.Flush()
}

func report(ctx context.Context, out io.Writer, b *backend.Backend, ownerID int64, w core.Window) error {
	d, err := b.Analytics.Dashboard(ctx, ownerID, w, core.Week, 5)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "report for owner %d, last %d days\n\n", ownerID, d.Days)
	fmt.Fprintf(tw, "income\t%s\t(%d, avg %s)\n", d.Summary.TotalIncome, d.Summary.IncomeCount, d.Summary.AverageIncome)
	fmt.Fprintf(tw, "expense\t%s\t(%d, avg %s)\n", d.Summary.TotalExpense, d.Summary.ExpenseCount, d.Summary.AverageExpense)
	fmt.Fprintf(tw, "balance\t%s\t(previous %s)\n\n", d.Summary.Balance.Balance, d.Previous.Balance)

	for _, kind := range core.Kinds() {
		group := d.Breakdown[kind]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s by category\n", kind)
		cats := make([]string, 0, len(group))
		for c := range group {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			s := group[c]
			fmt.Fprintf(tw, "  %s\t%s\t%d\n", c, s.Total, s.Count)
		}
		fmt.Fprintln(tw)
	}

	for _, top := range []struct {
		title string
		items []core.CategoryTotal
	}{
		{"top expenses", d.TopExpenses},
		{"top income", d.TopIncome},
	} {
		if len(top.items) == 0 {
			continue
		}
		fmt.Fprintln(tw, top.title)
		for i, c := range top.items {
			fmt.Fprintf(tw, "  %d. %s\t%s\t%d\n", i+1, c.Category, c.Total, c.Count)
		}
		fmt.Fprintln(tw)
	}

	fmt.Fprintln(tw, "weekly trend")
	for _, p := range d.Trend {
		fmt.Fprintf(tw, "  %s\t+%s\t-%s\t=%s\n", p.Label, p.Income, p.Expense, p.Balance)
	}
	return tw.Flush()
}

func errorType(err error) string {
	switch {
	case core.IsValidation(err):
		return log.ErrorTypeValidation
	case core.IsStorage(err):
		return log.ErrorTypeDatabase
	default:
		return log.ErrorTypeInternal
	}
}
