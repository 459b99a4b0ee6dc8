package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: dollarPlaceholder,
	timeArg: func(t time.Time) any {
		return t.UTC()
	},
}

// NewPostgresStore connects to dsn and applies pending migrations.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunPostgresMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLStore{db: db, dialect: postgresDialect}, nil
}
