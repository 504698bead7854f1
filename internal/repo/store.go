// Package repo contains all database access for the sailing-capacity service.
// No business logic lives here — only SQL and type mapping. The write path
// (load/clear) and the read path (aggregation, status) are independent; writers
// serialize against each other with an advisory lock, readers never block.
package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askeland/teu-capacity/internal/domain"
)

// db is the minimal query interface satisfied by *pgxpool.Pool, pgx.Conn, and
// pgx.Tx. Accepting this interface instead of *pgxpool.Pool directly allows
// integration tests to pass a transaction that is rolled back after each test,
// giving free per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Writer defines the transaction-scoped persistence operations of the load
// pipeline. The service layer depends on this interface, not the concrete
// Postgres implementation, which allows the pipeline to be unit-tested with
// a mock. SailingRepo is the production implementation.
type Writer interface {
	// ExistingByKeys returns stored records for the given dedup keys, mapped by key.
	ExistingByKeys(ctx context.Context, keys []string) (map[string]domain.SailingRecord, error)

	// CopyRecords bulk-inserts new records and returns the inserted count.
	CopyRecords(ctx context.Context, recs []domain.SailingRecord) (int64, error)

	// TouchByKeys refreshes updated_at on the records with the given dedup keys.
	TouchByKeys(ctx context.Context, keys []string) error

	// OverwriteByKey replaces the value fields of the record sharing rec's dedup key.
	OverwriteByKey(ctx context.Context, rec domain.SailingRecord) error

	// DeleteAll removes every sailing record and returns the removed count.
	DeleteAll(ctx context.Context) (int64, error)

	// RecordRun appends a completed pipeline operation to etl_runs.
	RecordRun(ctx context.Context, run domain.RunSummary) error
}

// etlLockKey is the advisory lock identifier shared by every pipeline write
// transaction. One writer at a time across all processes on the same database;
// the lock is transaction-scoped, so commit and rollback both release it.
const etlLockKey int64 = 0x7465752d65746c // "teu-etl"

// Store is the entry point to the persistence layer. It owns the pool and
// hands out repositories bound either to the pool (reads) or to a locked
// transaction (pipeline writes).
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store over the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Sailings returns the read-path repository bound to the pool.
// Aggregation queries and status reads run here, outside any lock.
func (s *Store) Sailings() *SailingRepo {
	return NewSailingRepo(s.pool)
}

// InLoadTx runs fn inside a transaction holding the pipeline advisory lock.
// All pipeline writes go through here: the lock serializes concurrent
// Load/Clear/Refresh invocations, and the transaction boundary guarantees a
// batch is either fully applied or fully rolled back. Readers are unaffected
// and may observe the pre-commit state for the duration.
func (s *Store) InLoadTx(ctx context.Context, fn func(w Writer) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.Store.InLoadTx: begin: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", etlLockKey); err != nil {
		return fmt.Errorf("repo.Store.InLoadTx: acquire lock: %w", err)
	}

	if err := fn(NewSailingRepo(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo.Store.InLoadTx: commit: %w", err)
	}
	return nil
}
