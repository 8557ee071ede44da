package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/apperr"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// Repository is every query the services run. Store and Tx both implement it,
// so the same code runs against the pool or inside a transaction.
type Repository interface {
	ProductRepository
	InventoryRepository
	CartRepository
	OrderRepository
	RefundRepository
	MarketplaceRepository
	SupportRepository
	AnalyticsRepository
}

var (
	_ Repository = (*Store)(nil)
	_ Repository = (*Tx)(nil)
)

// queries holds the statements; q is either the pool or an open transaction
type queries struct {
	q sqlx.ExtContext
}

type Store struct {
	queries
	db *sqlx.DB
}

// Tx is a Repository bound to one database transaction
type Tx struct {
	queries
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewStoreFromDB(db), nil
}

// NewStoreFromDB wraps an existing handle
func NewStoreFromDB(db *sqlx.DB) *Store {
	return &Store{queries: queries{q: db}, db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping is used by the readiness probe
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// InTx runs fn inside one transaction. Any error from fn rolls back every
// statement fn issued.
func (s *Store) InTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{queries: queries{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (q *queries) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, q.q, dest, query, args...)
}

func (q *queries) sel(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, q.q, dest, query, args...)
}

func (q *queries) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}

// translate maps driver errors onto the apperr taxonomy
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", apperr.ErrConflict, pqErr.Constraint)
	}
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
