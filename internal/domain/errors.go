package domain

import "errors"

// Row-level validation failures and content conflicts are not errors: they
// are recovered during the load and recorded in the LoadReport (Rejections,
// Conflicts). Only batch-level outcomes surface as errors.

// ErrSourceNotFound is returned when the CSV source path is missing or
// unreadable, before any row processing begins.
var ErrSourceNotFound = errors.New("source not found")

// ErrLoadFailed is returned for a storage-level failure during a batch
// (connection loss, constraint violation outside dedup). The batch transaction
// is rolled back, so a LoadFailed report always means zero rows persisted.
var ErrLoadFailed = errors.New("load failed")

// ErrInvalidFilter is returned by the aggregation engine for malformed query
// input: unparseable dates, start after end, or an unknown aggregation level.
// Handlers should map this to HTTP 422.
var ErrInvalidFilter = errors.New("invalid filter")
