package postgres

import (
	"context"

	"github.com/dukerupert/gjall/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool and pgx.Tx the store uses, so the same
// query methods work inside and outside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.BillingStore using PostgreSQL.
type Store struct {
	db   DB
	pool *pgxpool.Pool // nil when the store is bound to a transaction
}

// Compile-time check to ensure Store implements domain.BillingStore.
var _ domain.BillingStore = (*Store)(nil)

// NewStore creates a new Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// InTx runs fn against a store bound to a single transaction. A store that
// is already transaction-bound runs fn directly rather than nesting.
func (s *Store) InTx(ctx context.Context, fn func(domain.BillingStore) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{db: tx})
	})
}
