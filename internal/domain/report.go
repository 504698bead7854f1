package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictPolicy decides what happens when a loaded row's dedup key exists in
// storage with different field content.
type ConflictPolicy string

const (
	// PolicySkip keeps the stored record and reports the row as a conflict.
	// This is the default: the first load wins.
	PolicySkip ConflictPolicy = "skip"

	// PolicyOverwrite replaces the stored record's value fields with the new
	// row's values, preserving id and created_at.
	PolicyOverwrite ConflictPolicy = "overwrite"
)

// ParseConflictPolicy maps a CLI flag value to a ConflictPolicy.
// An empty string falls back to PolicySkip.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(s) {
	case "":
		return PolicySkip, nil
	case PolicySkip, PolicyOverwrite:
		return ConflictPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q (want %q or %q)", s, PolicySkip, PolicyOverwrite)
	}
}

// RejectionReason classifies why the validator refused a CSV row.
type RejectionReason string

const (
	ReasonMissingField     RejectionReason = "missing_field"
	ReasonInvalidTimestamp RejectionReason = "invalid_timestamp"
	ReasonInvalidCapacity  RejectionReason = "invalid_capacity"
	ReasonEmptyIdentifier  RejectionReason = "empty_identifier"
)

// RowRejection records one refused CSV row for the load report.
// Line is 1-based and counts the header, matching what an editor shows.
type RowRejection struct {
	Line    int             `json:"line"`
	Field   string          `json:"field"`
	Reason  RejectionReason `json:"reason"`
	Message string          `json:"message"`
}

func (r RowRejection) String() string {
	return fmt.Sprintf("line %d: %s: %s (%s)", r.Line, r.Field, r.Message, r.Reason)
}

// LoadReport summarizes one Load or Refresh operation.
// Counts partition every data row of the source CSV: each row is exactly one
// of inserted, duplicate, conflict, or rejected.
type LoadReport struct {
	Source     string         `json:"source"`
	Policy     ConflictPolicy `json:"policy"`
	Inserted   int            `json:"inserted"`
	Duplicates int            `json:"duplicates"`
	Conflicts  int            `json:"conflicts"`
	Rejected   int            `json:"rejected"`
	Rejections []RowRejection `json:"rejections,omitempty"`

	// Cleared is the number of rows removed by the Clear step of a Refresh.
	// Zero for plain loads.
	Cleared int `json:"cleared"`

	// Committed reports whether the batch transaction committed. The pipeline
	// writes all accepted rows in a single transaction, so false means zero
	// rows of this batch were persisted; there is no uncertain middle state.
	Committed bool `json:"committed"`
}

// RunSummary is the recorded outcome of one completed pipeline operation,
// persisted in the etl_runs table. Status inspects the most recent one.
type RunSummary struct {
	ID         uuid.UUID `json:"id"`
	Operation  string    `json:"operation"` // load | clear | refresh
	Source     string    `json:"source,omitempty"`
	Inserted   int       `json:"inserted"`
	Duplicates int       `json:"duplicates"`
	Conflicts  int       `json:"conflicts"`
	Rejected   int       `json:"rejected"`
	Cleared    int       `json:"cleared"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// StatusReport describes the current stored dataset. Read-only.
type StatusReport struct {
	Rows int64 `json:"rows"`

	// EarliestDeparture and LatestDeparture bound departure_at_utc over the
	// whole table. Nil when the table is empty.
	EarliestDeparture *time.Time `json:"earliest_departure,omitempty"`
	LatestDeparture   *time.Time `json:"latest_departure,omitempty"`

	// DistinctRoutes counts distinct (origin, destination) pairs.
	DistinctRoutes int64 `json:"distinct_routes"`

	// LastRun is the most recently finished pipeline operation, if any.
	LastRun *RunSummary `json:"last_run,omitempty"`
}
