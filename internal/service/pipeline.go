// Package service contains the business logic for the sailing-capacity
// service: the load/clear/refresh pipeline and the capacity aggregation
// engine. Services validate inputs, enforce the dedup and conflict rules, and
// orchestrate repo calls. No SQL lives here — services depend on repo
// interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/askeland/teu-capacity/internal/domain"
	"github.com/askeland/teu-capacity/internal/ingest"
	"github.com/askeland/teu-capacity/internal/repo"
)

// loadBatchSize bounds how many validated candidates are held in memory
// before being partitioned and written. Keeps the pipeline memory-bounded on
// arbitrarily large source files.
const loadBatchSize = 1000

// TxStore runs pipeline write operations inside a single locked transaction.
// Satisfied by *repo.Store.
type TxStore interface {
	InLoadTx(ctx context.Context, fn func(w repo.Writer) error) error
}

// StatusReader provides the read-only queries Status needs.
// Satisfied by *repo.SailingRepo bound to the pool.
type StatusReader interface {
	Stats(ctx context.Context) (domain.StatusReport, error)
	LastRun(ctx context.Context) (*domain.RunSummary, error)
}

// PipelineService implements the batch ETL operations: Load, Clear, Refresh,
// and Status. It is the sole writer path; concurrent invocations serialize on
// the store's advisory lock.
type PipelineService struct {
	store  TxStore
	reader StatusReader
	log    *slog.Logger
}

// NewPipelineService constructs a PipelineService.
func NewPipelineService(store TxStore, reader StatusReader, log *slog.Logger) *PipelineService {
	if log == nil {
		log = slog.Default()
	}
	return &PipelineService{store: store, reader: reader, log: log}
}

// Load ingests the CSV at sourcePath: every row is validated, deduplicated
// against storage (and against earlier rows of the same file — first
// occurrence wins), and written in one transaction.
//
// The returned report partitions every data row into exactly one of
// inserted, duplicate, conflict, or rejected. Row-level problems never abort
// the batch; a storage failure rolls the whole batch back and returns
// domain.ErrLoadFailed with report.Committed == false, meaning zero rows of
// this batch were persisted.
func (s *PipelineService) Load(ctx context.Context, sourcePath string, policy domain.ConflictPolicy) (domain.LoadReport, error) {
	return s.load(ctx, sourcePath, policy, "load", 0)
}

// load is the shared implementation behind Load and Refresh. operation names
// the etl_runs row; cleared carries the row count a preceding Clear removed.
func (s *PipelineService) load(ctx context.Context, sourcePath string, policy domain.ConflictPolicy, operation string, cleared int) (domain.LoadReport, error) {
	report := domain.LoadReport{Source: sourcePath, Policy: policy, Cleared: cleared}
	started := time.Now().UTC()

	// Open before the transaction so a missing source never takes the lock.
	src, err := ingest.OpenCSV(sourcePath)
	if err != nil {
		return report, fmt.Errorf("service.PipelineService.Load: %w", err)
	}
	defer src.Close()

	s.log.Info("load started", "source", sourcePath, "policy", string(policy))

	seen := make(map[string]bool)

	err = s.store.InLoadTx(ctx, func(w repo.Writer) error {
		batch := make([]domain.SailingRecord, 0, loadBatchSize)

		for {
			row, rowErr := src.Next()
			if errors.Is(rowErr, io.EOF) {
				break
			}
			if rowErr != nil {
				if row.Line > 0 {
					// Malformed but recoverable row: record and keep reading.
					report.Rejected++
					report.Rejections = append(report.Rejections, domain.RowRejection{
						Line:    row.Line,
						Reason:  domain.ReasonMissingField,
						Message: rowErr.Error(),
					})
					continue
				}
				return fmt.Errorf("read source: %w", rowErr)
			}

			rec, rejection := ingest.ValidateRow(row)
			if rejection != nil {
				report.Rejected++
				report.Rejections = append(report.Rejections, *rejection)
				continue
			}

			rec.DedupKey = ingest.DedupKey(rec)
			if seen[rec.DedupKey] {
				// Repeated within this file; the first occurrence wins.
				report.Duplicates++
				continue
			}
			seen[rec.DedupKey] = true

			batch = append(batch, rec)
			if len(batch) == loadBatchSize {
				if err := s.flush(ctx, w, batch, policy, &report); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}

		if err := s.flush(ctx, w, batch, policy, &report); err != nil {
			return err
		}

		return w.RecordRun(ctx, domain.RunSummary{
			Operation:  operation,
			Source:     sourcePath,
			Inserted:   report.Inserted,
			Duplicates: report.Duplicates,
			Conflicts:  report.Conflicts,
			Rejected:   report.Rejected,
			Cleared:    cleared,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		report.Committed = false
		return report, fmt.Errorf("service.PipelineService.Load: %w: %v", domain.ErrLoadFailed, err)
	}

	report.Committed = true
	s.log.Info("load finished",
		"source", sourcePath,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"conflicts", report.Conflicts,
		"rejected", report.Rejected,
	)
	return report, nil
}

// flush partitions one batch of candidates against storage and applies the
// writes: new keys are inserted, unchanged duplicates touched, conflicts
// resolved per policy. Counts accumulate into report.
func (s *PipelineService) flush(ctx context.Context, w repo.Writer, batch []domain.SailingRecord, policy domain.ConflictPolicy, report *domain.LoadReport) error {
	if len(batch) == 0 {
		return nil
	}

	keys := make([]string, len(batch))
	for i, rec := range batch {
		keys[i] = rec.DedupKey
	}

	existing, err := w.ExistingByKeys(ctx, keys)
	if err != nil {
		return err
	}

	var (
		inserts   []domain.SailingRecord
		touchKeys []string
	)
	for _, rec := range batch {
		stored, ok := existing[rec.DedupKey]
		if !ok {
			inserts = append(inserts, rec)
			continue
		}
		if stored.ContentEquals(rec) {
			// Same sailing, same values: touch updated_at only.
			touchKeys = append(touchKeys, rec.DedupKey)
			report.Duplicates++
			continue
		}

		report.Conflicts++
		if policy == domain.PolicyOverwrite {
			if err := w.OverwriteByKey(ctx, rec); err != nil {
				return err
			}
		}
	}

	n, err := w.CopyRecords(ctx, inserts)
	if err != nil {
		return err
	}
	report.Inserted += int(n)

	return w.TouchByKeys(ctx, touchKeys)
}

// Clear removes all sailing records unconditionally and returns the removed
// count. Idempotent: clearing an empty store succeeds with zero.
func (s *PipelineService) Clear(ctx context.Context) (int64, error) {
	started := time.Now().UTC()

	var cleared int64
	err := s.store.InLoadTx(ctx, func(w repo.Writer) error {
		n, err := w.DeleteAll(ctx)
		if err != nil {
			return err
		}
		cleared = n
		return w.RecordRun(ctx, domain.RunSummary{
			Operation:  "clear",
			Cleared:    int(n),
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return 0, fmt.Errorf("service.PipelineService.Clear: %w: %v", domain.ErrLoadFailed, err)
	}

	s.log.Info("store cleared", "rows", cleared)
	return cleared, nil
}

// Refresh clears the store and reloads it from sourcePath, reported as one
// combined operation. Clear and Load run in separate transactions and Clear
// is not rolled back when the subsequent Load fails — the caller is left with
// an empty store and should retry the Load from the same source. That
// limitation is deliberate: it keeps each step individually recoverable.
func (s *PipelineService) Refresh(ctx context.Context, sourcePath string, policy domain.ConflictPolicy) (domain.LoadReport, error) {
	// Reject a bad source before destroying anything.
	src, err := ingest.OpenCSV(sourcePath)
	if err != nil {
		return domain.LoadReport{Source: sourcePath, Policy: policy}, fmt.Errorf("service.PipelineService.Refresh: %w", err)
	}
	src.Close()

	cleared, err := s.Clear(ctx)
	if err != nil {
		return domain.LoadReport{Source: sourcePath, Policy: policy}, err
	}

	return s.load(ctx, sourcePath, policy, "refresh", int(cleared))
}

// Status reports the stored dataset: row count, departure coverage, distinct
// route count, and the last completed pipeline operation. Read-only.
func (s *PipelineService) Status(ctx context.Context) (domain.StatusReport, error) {
	report, err := s.reader.Stats(ctx)
	if err != nil {
		return domain.StatusReport{}, fmt.Errorf("service.PipelineService.Status: %w", err)
	}

	last, err := s.reader.LastRun(ctx)
	if err != nil {
		return domain.StatusReport{}, fmt.Errorf("service.PipelineService.Status: %w", err)
	}
	report.LastRun = last

	return report, nil
}
