package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/askeland/teu-capacity/internal/domain"
)

// CapacityReader is the read-path query the aggregation engine depends on.
// Satisfied by *repo.SailingRepo bound to the pool.
type CapacityReader interface {
	QueryCapacity(ctx context.Context, f domain.CapacityFilter) ([]domain.CapacityBucket, error)
}

// CapacityService is the aggregation engine. It validates filters, delegates
// the grouped sum to storage, and applies the in-memory post-processing steps
// (gap filling, rolling average) on the ordered bucket series.
//
// Queries are pure reads with no mutual exclusion: many may run concurrently,
// including against an in-progress load, in which case they observe the
// pre-commit state of that batch.
type CapacityService struct {
	reader CapacityReader
}

// NewCapacityService constructs a CapacityService backed by the provided reader.
func NewCapacityService(reader CapacityReader) *CapacityService {
	return &CapacityService{reader: reader}
}

// Query returns capacity buckets matching the filter, in ascending
// bucket-start order. A filter matching no records returns an empty sequence,
// not an error; malformed filters return domain.ErrInvalidFilter. The engine
// never retries internally.
func (s *CapacityService) Query(ctx context.Context, f domain.CapacityFilter) ([]domain.CapacityBucket, error) {
	if f.Level == "" {
		f.Level = domain.LevelWeek
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("service.CapacityService.Query: %w", err)
	}

	buckets, err := s.reader.QueryCapacity(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service.CapacityService.Query: %w", err)
	}

	if f.IncludeEmptyBuckets && !f.GroupByRoute {
		buckets = fillEmptyBuckets(buckets, f)
	}
	if f.RollingWindow >= 2 {
		buckets = applyRollingAverage(buckets, f.RollingWindow)
	}
	return buckets, nil
}

// fillEmptyBuckets synthesizes zero-capacity buckets for every gap in the
// flat time series, stepping at the query granularity. When both date bounds
// are present the fill spans the whole requested window, so a chart renders
// leading and trailing empties too; otherwise it spans first to last
// non-empty bucket. Synthesized buckets have SailingCount 0, which is what
// distinguishes them from real buckets whose sailings sum to zero.
func fillEmptyBuckets(buckets []domain.CapacityBucket, f domain.CapacityFilter) []domain.CapacityBucket {
	var start, end time.Time
	switch {
	case f.DateFrom != nil && f.DateTo != nil:
		start = truncate(f.DateFrom.UTC(), f.Level)
		end = truncate(f.DateTo.UTC(), f.Level)
	case len(buckets) >= 2:
		start = buckets[0].BucketStart
		end = buckets[len(buckets)-1].BucketStart
	default:
		// Nothing to interpolate between.
		return buckets
	}

	present := make(map[time.Time]domain.CapacityBucket, len(buckets))
	for _, b := range buckets {
		present[b.BucketStart] = b
	}

	var out []domain.CapacityBucket
	for t := start; !t.After(end); t = step(t, f.Level) {
		if b, ok := present[t]; ok {
			out = append(out, b)
			continue
		}
		b := domain.CapacityBucket{BucketStart: t}
		if f.Level == domain.LevelWeek {
			_, b.WeekNo = t.ISOWeek()
		}
		out = append(out, b)
	}
	return out
}

// applyRollingAverage replaces each bucket's capacity with the rounded mean
// over itself and up to window-1 preceding buckets. Early buckets with less
// history average over what exists, matching the SQL window frame
// ROWS BETWEEN n PRECEDING AND CURRENT ROW.
func applyRollingAverage(buckets []domain.CapacityBucket, window int) []domain.CapacityBucket {
	out := make([]domain.CapacityBucket, len(buckets))
	copy(out, buckets)

	for i := range out {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		var sum int64
		for j := lo; j <= i; j++ {
			sum += buckets[j].OfferedCapacityTEU
		}
		out[i].OfferedCapacityTEU = int64(math.Round(float64(sum) / float64(i-lo+1)))
	}
	return out
}

// truncate floors t to the start of its bucket at the given level, mirroring
// Postgres date_trunc in UTC. Weeks start on Monday.
func truncate(t time.Time, level domain.AggregationLevel) time.Time {
	t = t.UTC()
	switch level {
	case domain.LevelDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case domain.LevelWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// time.Weekday counts Sunday as 0; shift so Monday is 0.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case domain.LevelMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case domain.LevelYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// step advances a bucket start to the next bucket at the given level.
func step(t time.Time, level domain.AggregationLevel) time.Time {
	switch level {
	case domain.LevelDay:
		return t.AddDate(0, 0, 1)
	case domain.LevelWeek:
		return t.AddDate(0, 0, 7)
	case domain.LevelMonth:
		return t.AddDate(0, 1, 0)
	case domain.LevelYear:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}
