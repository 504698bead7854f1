package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/askeland/teu-capacity/internal/domain"
)

// QueryCapacity runs the bucketed capacity aggregation and returns buckets in
// ascending bucket-start order (then origin, destination for route-grouped
// queries). Grouping uses Postgres date_trunc, so weeks start on Monday and
// all truncation happens in UTC. Callers are expected to have validated the
// filter; this method only assembles and executes SQL.
//
// A pure read: it runs on the pool with no locking, so it may observe the
// in-flight state of a concurrent load. That is accepted ETL behavior.
func (r *SailingRepo) QueryCapacity(ctx context.Context, f domain.CapacityFilter) ([]domain.CapacityBucket, error) {
	var (
		where []string
		args  = pgx.NamedArgs{"level": string(f.Level)}
	)

	for _, cond := range []struct{ col, name, val string }{
		{"origin", "origin", f.Origin},
		{"destination", "destination", f.Destination},
		{"origin_port_code", "origin_port_code", f.OriginPortCode},
		{"destination_port_code", "destination_port_code", f.DestinationPortCode},
	} {
		if cond.val != "" {
			where = append(where, fmt.Sprintf("%s = @%s", cond.col, cond.name))
			args[cond.name] = cond.val
		}
	}

	// Inclusive date bounds on the date component: a sailing departing at
	// 23:59:59 on date_to is in range, one second into the next day is not.
	if f.DateFrom != nil {
		where = append(where, "departure_at_utc >= @date_from")
		args["date_from"] = f.DateFrom.UTC()
	}
	if f.DateTo != nil {
		where = append(where, "departure_at_utc < @date_to_excl")
		args["date_to_excl"] = f.DateTo.UTC().AddDate(0, 0, 1)
	}

	var b strings.Builder
	b.WriteString("SELECT date_trunc(@level, departure_at_utc) AS bucket_start")
	if f.GroupByRoute {
		b.WriteString(", origin, destination")
	}
	b.WriteString(`,
		SUM(offered_capacity_teu)::bigint AS offered_capacity_teu,
		COUNT(*)::bigint AS sailing_count
	FROM sailings`)
	if len(where) > 0 {
		b.WriteString("\n\tWHERE " + strings.Join(where, "\n\t  AND "))
	}
	if f.GroupByRoute {
		b.WriteString("\n\tGROUP BY 1, 2, 3\n\tORDER BY 1, 2, 3")
	} else {
		b.WriteString("\n\tGROUP BY 1\n\tORDER BY 1")
	}

	rows, err := r.db.Query(ctx, b.String(), args)
	if err != nil {
		return nil, fmt.Errorf("repo.SailingRepo.QueryCapacity: %w", err)
	}
	defer rows.Close()

	var buckets []domain.CapacityBucket
	for rows.Next() {
		var bk domain.CapacityBucket
		if f.GroupByRoute {
			err = rows.Scan(&bk.BucketStart, &bk.Origin, &bk.Destination, &bk.OfferedCapacityTEU, &bk.SailingCount)
		} else {
			err = rows.Scan(&bk.BucketStart, &bk.OfferedCapacityTEU, &bk.SailingCount)
		}
		if err != nil {
			return nil, fmt.Errorf("repo.SailingRepo.QueryCapacity: scan: %w", err)
		}
		bk.BucketStart = bk.BucketStart.UTC()
		if f.Level == domain.LevelWeek {
			_, bk.WeekNo = bk.BucketStart.ISOWeek()
		}
		buckets = append(buckets, bk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.SailingRepo.QueryCapacity: rows: %w", err)
	}
	return buckets, nil
}
