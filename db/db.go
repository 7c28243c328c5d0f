package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// ErrNotFound is returned by every Read* method when no row matches.
var ErrNotFound = errors.New("record not found")

const maxBusyRetries = 5

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every statement of the store. It runs either directly on the
// connection pool or inside a transaction started by DB.WithTx.
type Queries struct {
	q queryer
}

// DB is the database struct.
type DB struct {
	*Queries
	db *sql.DB
}

// Open opens (and creates if needed) the SQLite database at path and applies
// the schema. Writers take the lock up front (_txlock=immediate) so that two
// concurrent inbox transactions queue on busy_timeout instead of failing on a
// lock upgrade.
func Open(path string) (*DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	database := &DB{Queries: &Queries{q: sqlDB}, db: sqlDB}
	if err := database.RunMigrations(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("Database initialized")
	return database, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// WithTx runs f inside one transaction. The transaction is retried from the
// start when SQLite reports SQLITE_BUSY; any other error rolls it back.
func (db *DB) WithTx(ctx context.Context, f func(q *Queries) error) error {
	var err error
	for attempt := 0; attempt < maxBusyRetries; attempt++ {
		err = db.runTx(ctx, f)
		if !isBusy(err) {
			return err
		}
		log.Debug().Int("attempt", attempt+1).Msg("Database busy, retrying transaction")
		time.Sleep(time.Duration(attempt+1) * 20 * time.Millisecond)
	}
	return err
}

func (db *DB) runTx(ctx context.Context, f func(q *Queries) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := f(&Queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code() & 0xff
		return code == sqlitelib.SQLITE_BUSY || code == sqlitelib.SQLITE_LOCKED
	}
	return false
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || serr.Code() == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ErrDuplicate is returned when an insert hits a uniqueness constraint.
var ErrDuplicate = errors.New("record already exists")

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func nullableInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}
