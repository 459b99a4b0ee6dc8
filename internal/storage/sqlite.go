package storage

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is fixed width so text comparison orders by instant.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: questionPlaceholder,
	timeArg: func(t time.Time) any {
		return t.UTC().Format(sqliteTimeLayout)
	},
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStore{db: db, dialect: sqliteDialect}, nil
}

// sqliteDSN enables WAL so readers never block the writer, waits on locks
// instead of failing, and takes the write lock when a transaction begins.
func sqliteDSN(dbPath string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + dbPath + "?" + q.Encode()
}
