package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const selectColumns = `id, owner_id, kind, category, amount, note, created_at`

// dialect captures the few differences between the SQL backends.
type dialect struct {
	name string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// timeArg encodes a timestamp for binding.
	timeArg func(t time.Time) any
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// DB exposes the underlying handle for health checks.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect returns the backend name ("sqlite" or "postgres").
func (s *SQLStore) Dialect() string { return s.dialect.name }

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return core.NewStorageError("ping", s.db.PingContext(ctx))
}

// rebind replaces each '?' with the dialect's placeholder.
func (s *SQLStore) rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Insert(ctx context.Context, t core.Transaction) (int64, error) {
	var id int64
	err := s.withTx(ctx, "insert", func(tx *sql.Tx) error {
		query := s.rebind(`INSERT INTO transactions (owner_id, kind, category, amount, note, created_at)
			VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
		return tx.QueryRowContext(ctx, query,
			t.OwnerID,
			t.Kind.String(),
			t.Category,
			t.Amount.Decimal().StringFixed(2),
			nullString(t.Note),
			s.dialect.timeArg(t.CreatedAt),
		).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLStore) FetchByID(ctx context.Context, ownerID, id int64) (core.Transaction, bool, error) {
	query := s.rebind(`SELECT ` + selectColumns + ` FROM transactions WHERE id = ? AND owner_id = ?`)
	row := s.db.QueryRowContext(ctx, query, id, ownerID)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return core.Transaction{}, false, nil
	}
	if err != nil {
		return core.Transaction{}, false, core.NewStorageError("fetch", err)
	}
	return t, true, nil
}

func (s *SQLStore) Scan(ctx context.Context, q ScanQuery) ([]core.Transaction, error) {
	var (
		where = []string{"owner_id = ?"}
		args  = []any{q.OwnerID}
	)
	if q.Kind != nil {
		where = append(where, "kind = ?")
		args = append(args, q.Kind.String())
	}
	where = append(where, "created_at >= ?", "created_at < ?")
	args = append(args, s.dialect.timeArg(q.From), s.dialect.timeArg(q.To))

	query := s.rebind(`SELECT ` + selectColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id DESC`)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewStorageError("scan", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, core.NewStorageError("scan", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("scan", err)
	}
	return out, nil
}

func (s *SQLStore) Update(ctx context.Context, ownerID, id int64, p core.Patch) (bool, error) {
	var found bool
	err := s.withTx(ctx, "update", func(tx *sql.Tx) error {
		if p.IsEmpty() {
			var one int
			err := tx.QueryRowContext(ctx,
				s.rebind(`SELECT 1 FROM transactions WHERE id = ? AND owner_id = ?`), id, ownerID).Scan(&one)
			if err == sql.ErrNoRows {
				return nil
			}
			found = err == nil
			return err
		}

		var (
			sets []string
			args []any
		)
		if p.Kind != nil {
			sets = append(sets, "kind = ?")
			args = append(args, p.Kind.String())
		}
		if p.Category != nil {
			sets = append(sets, "category = ?")
			args = append(args, *p.Category)
		}
		if p.Amount != nil {
			sets = append(sets, "amount = ?")
			args = append(args, p.Amount.Decimal().StringFixed(2))
		}
		if p.ClearNote {
			sets = append(sets, "note = NULL")
		} else if p.Note != nil {
			sets = append(sets, "note = ?")
			args = append(args, *p.Note)
		}
		args = append(args, id, ownerID)

		res, err := tx.ExecContext(ctx,
			s.rebind(`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ? AND owner_id = ?`), args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		found = n > 0
		return nil
	})
	return found, err
}

func (s *SQLStore) Delete(ctx context.Context, ownerID, id int64) (bool, error) {
	var found bool
	err := s.withTx(ctx, "delete", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.rebind(`DELETE FROM transactions WHERE id = ? AND owner_id = ?`), id, ownerID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		found = n > 0
		return nil
	})
	return found, err
}

// withTx runs fn inside one transaction, committing on success.
func (s *SQLStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStorageError(op, fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return core.NewStorageError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return core.NewStorageError(op, fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		kind    string
		amount  decimal.Decimal
		note    sql.NullString
		created timestamp
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &kind, &t.Category, &amount, &note, &created); err != nil {
		return core.Transaction{}, err
	}
	k, err := core.ParseKind(kind)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("row %d: unknown kind %q", t.ID, kind)
	}
	t.Kind = k
	t.Amount = core.MoneyFromDecimal(amount)
	if note.Valid {
		n := note.String
		t.Note = &n
	}
	t.CreatedAt = created.Time
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Layouts accepted when a timestamp comes back as text.
var timestampLayouts = []string{
	sqliteTimeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// timestamp scans TIMESTAMP columns delivered either as time.Time or text.
type timestamp struct {
	time.Time
}

func (ts *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		ts.Time = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	case int64:
		ts.Time = time.Unix(v, 0).UTC()
		return nil
	case nil:
		return fmt.Errorf("created_at is NULL")
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (ts *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func dollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func questionPlaceholder(int) string { return "?" }
