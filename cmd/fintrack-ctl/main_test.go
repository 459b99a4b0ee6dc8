package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataBackend:  config.BackendSQLite,
		SQLiteDBPath: filepath.Join(t.TempDir(), "ctl.db"),
	}
}

func TestAddThenReport(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	logger := log.Discard()

	if err := run(ctx, &bytes.Buffer{}, logger, cfg, "migrate", nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, msg := range [][]string{
		{"7", "income", "salary", "1000"},
		{"7", "expense", "food", "200"},
		{"8", "expense", "food", "999"},
	} {
		var out bytes.Buffer
		if err := run(ctx, &out, logger, cfg, "add", msg); err != nil {
			t.Fatalf("add %v: %v", msg, err)
		}
		if !strings.HasPrefix(out.String(), "#") {
			t.Fatalf("unexpected add output %q", out.String())
		}
	}

	var out bytes.Buffer
	if err := run(ctx, &out, logger, cfg, "balance", []string{"7", "7"}); err != nil {
		t.Fatalf("balance: %v", err)
	}
	for _, want := range []string{"1000.00", "200.00", "800.00", "last 7 days"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("balance output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := run(ctx, &out, logger, cfg, "report", []string{"7"}); err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, want := range []string{"expense by category", "food", "top expenses", "1. food", "top income", "1. salary", "weekly trend"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("report output missing %q:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "999") {
		t.Fatalf("report leaked another owner's data:\n%s", out.String())
	}
}

func TestRunArguments(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  string
		args []string
	}{
		{"missing owner", "balance", nil},
		{"bad owner", "balance", []string{"seven"}},
		{"zero owner", "add", []string{"0", "expense", "food", "1"}},
		{"missing message", "add", []string{"7"}},
		{"unknown command", "export", []string{"7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(ctx, &bytes.Buffer{}, log.Discard(), cfg, tt.cmd, tt.args); !errors.Is(err, errUsage) {
				t.Fatalf("expected usage error, got %v", err)
			}
		})
	}

	if err := run(ctx, &bytes.Buffer{}, log.Discard(), cfg, "balance", []string{"7", "0"}); !errors.Is(err, core.ErrInvalidWindow) {
		t.Fatalf("expected invalid window, got %v", err)
	}
	if err := run(ctx, &bytes.Buffer{}, log.Discard(), cfg, "add", []string{"7", "hello"}); !core.IsValidation(err) {
		t.Fatalf("expected validation error for unparsable text, got %v", err)
	}
}
