package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/askeland/teu-capacity/internal/domain"
)

// sailingColumns lists every column of the sailings table in scan order.
const sailingColumns = `
	id, origin, destination, origin_port_code, destination_port_code,
	service_version_and_roundtrip_identfiers,
	origin_service_version_and_master, destination_service_version_and_master,
	departure_at_utc, offered_capacity_teu, dedup_key, created_at, updated_at`

// copyColumns are the columns the pipeline provides on insert; id and the
// timestamps are database defaults.
var copyColumns = []string{
	"origin", "destination", "origin_port_code", "destination_port_code",
	"service_version_and_roundtrip_identfiers",
	"origin_service_version_and_master", "destination_service_version_and_master",
	"departure_at_utc", "offered_capacity_teu", "dedup_key",
}

// SailingRepo is the persistence layer for sailing records. In production it
// is bound to *pgxpool.Pool for reads and to a locked pgx.Tx (via
// Store.InLoadTx) for pipeline writes.
type SailingRepo struct {
	db db
}

// NewSailingRepo constructs a SailingRepo over the given connection source.
func NewSailingRepo(db db) *SailingRepo {
	return &SailingRepo{db: db}
}

// compile-time check: SailingRepo must satisfy the pipeline Writer interface.
var _ Writer = (*SailingRepo)(nil)

// ExistingByKeys returns the stored records whose dedup keys appear in keys,
// mapped by dedup key. Keys with no stored record are simply absent from the
// map. Used by the pipeline to partition a batch into inserts, duplicates,
// and conflicts before writing anything.
func (r *SailingRepo) ExistingByKeys(ctx context.Context, keys []string) (map[string]domain.SailingRecord, error) {
	if len(keys) == 0 {
		return map[string]domain.SailingRecord{}, nil
	}

	q := `SELECT ` + sailingColumns + ` FROM sailings WHERE dedup_key = ANY(@keys)`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"keys": keys})
	if err != nil {
		return nil, fmt.Errorf("repo.SailingRepo.ExistingByKeys: %w", err)
	}
	defer rows.Close()

	found := make(map[string]domain.SailingRecord, len(keys))
	for rows.Next() {
		rec, err := scanSailing(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.SailingRepo.ExistingByKeys: scan: %w", err)
		}
		found[rec.DedupKey] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.SailingRepo.ExistingByKeys: rows: %w", err)
	}
	return found, nil
}

// CopyRecords bulk-inserts new records via the Postgres COPY protocol and
// returns the number of rows written. Callers must have already excluded
// existing dedup keys; a key collision here surfaces as a constraint error
// and fails the whole batch, which is the intended behavior for a race lost
// despite the advisory lock.
func (r *SailingRepo) CopyRecords(ctx context.Context, recs []domain.SailingRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	n, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"sailings"},
		copyColumns,
		pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
			rec := recs[i]
			return []any{
				rec.Origin, rec.Destination,
				rec.OriginPortCode, rec.DestinationPortCode,
				rec.ServiceVersionAndRoundtripIdentfiers,
				rec.OriginServiceVersionAndMaster, rec.DestinationServiceVersionAndMaster,
				rec.DepartureAtUTC, rec.OfferedCapacityTEU, rec.DedupKey,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("repo.SailingRepo.CopyRecords: %w", err)
	}
	return n, nil
}

// TouchByKeys refreshes updated_at on the records with the given dedup keys.
// The pipeline calls this for no-op duplicates: content is untouched, but the
// record carries evidence of its most recent sighting in the feed.
func (r *SailingRepo) TouchByKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	const q = `UPDATE sailings SET updated_at = now() WHERE dedup_key = ANY(@keys)`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{"keys": keys}); err != nil {
		return fmt.Errorf("repo.SailingRepo.TouchByKeys: %w", err)
	}
	return nil
}

// OverwriteByKey replaces the value fields of the record identified by
// rec.DedupKey with rec's values, preserving id and created_at. Used when a
// conflict is resolved with PolicyOverwrite.
func (r *SailingRepo) OverwriteByKey(ctx context.Context, rec domain.SailingRecord) error {
	const q = `
		UPDATE sailings
		SET origin_service_version_and_master      = @origin_service,
		    destination_service_version_and_master = @destination_service,
		    offered_capacity_teu                   = @capacity,
		    updated_at                             = now()
		WHERE dedup_key = @dedup_key`

	args := pgx.NamedArgs{
		"origin_service":      rec.OriginServiceVersionAndMaster,
		"destination_service": rec.DestinationServiceVersionAndMaster,
		"capacity":            rec.OfferedCapacityTEU,
		"dedup_key":           rec.DedupKey,
	}

	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("repo.SailingRepo.OverwriteByKey: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.SailingRepo.OverwriteByKey: no record with key %s", rec.DedupKey)
	}
	return nil
}

// DeleteAll removes every sailing record and returns the removed count.
// Idempotent: an empty table deletes zero rows and succeeds.
func (r *SailingRepo) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sailings`)
	if err != nil {
		return 0, fmt.Errorf("repo.SailingRepo.DeleteAll: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats reports row count, departure coverage, and distinct route count over
// the whole table in a single scan. LastRun is left nil; the caller combines
// it with LastRun from the runs repository.
func (r *SailingRepo) Stats(ctx context.Context) (domain.StatusReport, error) {
	const q = `
		SELECT COUNT(*),
		       MIN(departure_at_utc),
		       MAX(departure_at_utc),
		       COUNT(DISTINCT (origin, destination))
		FROM sailings`

	var (
		report   domain.StatusReport
		earliest pgtype.Timestamptz
		latest   pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, q).Scan(&report.Rows, &earliest, &latest, &report.DistinctRoutes)
	if err != nil {
		return domain.StatusReport{}, fmt.Errorf("repo.SailingRepo.Stats: %w", err)
	}

	if earliest.Valid {
		t := earliest.Time.UTC()
		report.EarliestDeparture = &t
	}
	if latest.Valid {
		t := latest.Time.UTC()
		report.LatestDeparture = &t
	}
	return report, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanSailing to
// be reused for QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanSailing maps one database row into a domain.SailingRecord.
func scanSailing(s scanner) (domain.SailingRecord, error) {
	var (
		rec domain.SailingRecord
		id  pgtype.UUID
	)

	err := s.Scan(
		&id, &rec.Origin, &rec.Destination,
		&rec.OriginPortCode, &rec.DestinationPortCode,
		&rec.ServiceVersionAndRoundtripIdentfiers,
		&rec.OriginServiceVersionAndMaster, &rec.DestinationServiceVersionAndMaster,
		&rec.DepartureAtUTC, &rec.OfferedCapacityTEU, &rec.DedupKey,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.SailingRecord{}, err
	}

	rec.ID = uuid.UUID(id.Bytes)
	rec.DepartureAtUTC = rec.DepartureAtUTC.UTC()
	return rec, nil
}
