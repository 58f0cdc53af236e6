package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// DB represents a database connection
type DB struct {
	*sql.DB
	driver string
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq keyword/value connection string.
func (p ConnectionParams) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// New creates a new PostgreSQL database connection
func New(params ConnectionParams) (*DB, error) {
	return Open("postgres", params.DSN())
}

// OpenSQLite opens (or creates) a SQLite database file. ":memory:" works for tests.
func OpenSQLite(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return Open("sqlite3", dsn)
}

// Open connects with driver ("postgres" or "sqlite3"), pings and creates the schema.
func Open(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite3" {
		// Single writer; also keeps an in-memory database on one connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	// Create tables if they don't exist
	if err := createTables(ctx, db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &DB{DB: db, driver: driver}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB, driver string) error {
	serial, jsonType := "BIGSERIAL PRIMARY KEY", "JSONB"
	if driver == "sqlite3" {
		serial, jsonType = "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			telegram_id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			subscription_start TIMESTAMP,
			subscription_end TIMESTAMP,
			daily_openai_usage INTEGER NOT NULL DEFAULT 0,
			last_usage_reset TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payment_requests (
			id ` + serial + `,
			telegram_id BIGINT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			screenshot_url TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_requests_status ON payment_requests (status)`,
		`CREATE TABLE IF NOT EXISTS trading_signals (
			id ` + serial + `,
			batch_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			score INTEGER NOT NULL,
			reasons TEXT NOT NULL,
			indicators ` + jsonType + ` NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS technical_analysis_history (
			id ` + serial + `,
			telegram_id BIGINT NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			score INTEGER NOT NULL,
			analysis TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// Driver returns the SQL driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// withTx runs fn inside a transaction and commits when it returns nil.
func (db *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// dbTime normalises timestamps so both drivers store and compare them the same way.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
