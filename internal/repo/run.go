package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/askeland/teu-capacity/internal/domain"
)

// RecordRun appends one completed pipeline operation to etl_runs.
// Called inside the operation's own transaction, so a rolled-back load leaves
// no run record behind.
func (r *SailingRepo) RecordRun(ctx context.Context, run domain.RunSummary) error {
	const q = `
		INSERT INTO etl_runs (operation, source, inserted, duplicates, conflicts, rejected, cleared, started_at, finished_at)
		VALUES (@operation, @source, @inserted, @duplicates, @conflicts, @rejected, @cleared, @started_at, @finished_at)`

	args := pgx.NamedArgs{
		"operation":   run.Operation,
		"source":      run.Source,
		"inserted":    run.Inserted,
		"duplicates":  run.Duplicates,
		"conflicts":   run.Conflicts,
		"rejected":    run.Rejected,
		"cleared":     run.Cleared,
		"started_at":  run.StartedAt,
		"finished_at": run.FinishedAt,
	}

	if _, err := r.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("repo.SailingRepo.RecordRun: %w", err)
	}
	return nil
}

// LastRun returns the most recently finished pipeline operation, or nil when
// no operation has ever completed.
func (r *SailingRepo) LastRun(ctx context.Context) (*domain.RunSummary, error) {
	const q = `
		SELECT id, operation, source, inserted, duplicates, conflicts, rejected, cleared, started_at, finished_at
		FROM etl_runs
		ORDER BY finished_at DESC
		LIMIT 1`

	var (
		run domain.RunSummary
		id  pgtype.UUID
	)
	err := r.db.QueryRow(ctx, q).Scan(
		&id, &run.Operation, &run.Source,
		&run.Inserted, &run.Duplicates, &run.Conflicts, &run.Rejected, &run.Cleared,
		&run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("repo.SailingRepo.LastRun: %w", err)
	}

	run.ID = uuid.UUID(id.Bytes)
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()
	return &run, nil
}
