package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/collabkale/kaledao/internal/domain"
)

// newStores builds the full store bundle over the given connection handle.
func newStores(d db) domain.Stores {
	return domain.Stores{
		DAO:         &DAOConfigStore{db: d},
		Teams:       &TeamStore{db: d},
		Stakes:      &StakeStore{db: d},
		Predictions: &PredictionStore{db: d},
		Audit:       &AuditStore{db: d},
	}
}

// TxRunner implements domain.TxRunner over a pgx connection pool. Each InTx
// call is one database transaction; the stores handed to fn are bound to it.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner creates a TxRunner backed by the given pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// InTx begins a transaction, runs fn with transaction-bound stores, and
// commits. Any error from fn (or the commit) rolls everything back, which is
// what makes each entry point all-or-nothing.
func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context, s domain.Stores) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, newStores(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// Stores returns a store bundle that runs directly on the pool, for
// read-only callers that do not need transactional grouping.
func (r *TxRunner) Stores() domain.Stores {
	return newStores(r.pool)
}

// Compile-time interface check.
var _ domain.TxRunner = (*TxRunner)(nil)
