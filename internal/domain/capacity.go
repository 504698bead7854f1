package domain

import (
	"fmt"
	"time"
)

// AggregationLevel is the time granularity capacity buckets are grouped by.
// Values match Postgres date_trunc field names, which the repo layer relies on.
type AggregationLevel string

const (
	LevelDay   AggregationLevel = "day"
	LevelWeek  AggregationLevel = "week"
	LevelMonth AggregationLevel = "month"
	LevelYear  AggregationLevel = "year"
)

// ParseAggregationLevel maps a query-string value to an AggregationLevel.
// An empty string falls back to week, the service's primary reporting grain.
// Unknown values return ErrInvalidFilter.
func ParseAggregationLevel(s string) (AggregationLevel, error) {
	switch AggregationLevel(s) {
	case "":
		return LevelWeek, nil
	case LevelDay, LevelWeek, LevelMonth, LevelYear:
		return AggregationLevel(s), nil
	default:
		return "", fmt.Errorf("%w: unknown aggregation level %q", ErrInvalidFilter, s)
	}
}

// CapacityFilter carries the aggregation query parameters from the HTTP layer
// to the service and repo layers. The four string filters are exact matches
// and are ignored when empty. Date bounds are inclusive on the date component
// of departure_at_utc; nil means unbounded on that side.
type CapacityFilter struct {
	Origin              string
	Destination         string
	OriginPortCode      string
	DestinationPortCode string

	// DateFrom and DateTo are date-only values (midnight UTC). A record
	// departing anywhere within DateTo's calendar day is still in range.
	DateFrom *time.Time
	DateTo   *time.Time

	Level AggregationLevel

	// GroupByRoute adds (origin, destination) to the bucket identity,
	// producing flattened rows sorted by (bucket start, origin, destination).
	GroupByRoute bool

	// IncludeEmptyBuckets synthesizes zero-capacity buckets for gaps in the
	// time series. Only meaningful for flat (non-route-grouped) queries.
	IncludeEmptyBuckets bool

	// RollingWindow, when >= 2, replaces each bucket's capacity with the
	// rounded mean over itself and up to RollingWindow-1 preceding buckets.
	// Zero disables smoothing.
	RollingWindow int
}

// Validate checks the cross-field rules that cannot be expressed at parse time.
// All violations are ErrInvalidFilter.
func (f CapacityFilter) Validate() error {
	if _, err := ParseAggregationLevel(string(f.Level)); err != nil {
		return err
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return fmt.Errorf("%w: date_from %s is after date_to %s",
			ErrInvalidFilter, f.DateFrom.Format("2006-01-02"), f.DateTo.Format("2006-01-02"))
	}
	if f.RollingWindow != 0 {
		if f.RollingWindow < 2 {
			return fmt.Errorf("%w: rolling_window must be at least 2, got %d", ErrInvalidFilter, f.RollingWindow)
		}
		if f.GroupByRoute {
			return fmt.Errorf("%w: rolling_window cannot be combined with group_by_route", ErrInvalidFilter)
		}
	}
	return nil
}

// CapacityBucket is one aggregation output row: a time interval identified by
// its start, plus the summed offered capacity of its member sailings.
// SailingCount distinguishes "no records" (bucket absent or synthesized) from
// "records summing to zero".
type CapacityBucket struct {
	// BucketStart is the truncation of departure_at_utc to the query's
	// aggregation level, in UTC. Weeks start on Monday.
	BucketStart time.Time `json:"bucket_start"`

	// WeekNo is the ISO 8601 week number of BucketStart. Populated only for
	// week-level queries.
	WeekNo int `json:"week_no,omitempty"`

	// Origin and Destination identify the route for route-grouped queries.
	// Empty for flat time series.
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`

	// OfferedCapacityTEU accumulates in 64 bits so a year of sailings cannot
	// overflow the per-record int.
	OfferedCapacityTEU int64 `json:"offered_capacity_teu"`

	SailingCount int64 `json:"sailing_count"`
}
