// Package ingest turns raw sailing-level CSV rows into validated SailingRecord
// candidates. It is the pure front half of the load pipeline: nothing in this
// package touches storage, and every function is deterministic.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/askeland/teu-capacity/internal/domain"
)

// Columns of the sailing-level CSV contract. Order in the file is not
// significant; the header row is required and matched case-insensitively.
// "identfiers" is the upstream feed's spelling.
const (
	ColOrigin              = "origin"
	ColDestination         = "destination"
	ColOriginPortCode      = "origin_port_code"
	ColDestinationPortCode = "destination_port_code"
	ColServiceRoundtrip    = "service_version_and_roundtrip_identfiers"
	ColOriginService       = "origin_service_version_and_master"
	ColDestinationService  = "destination_service_version_and_master"
	ColOriginAtUTC         = "origin_at_utc"
	ColOfferedCapacityTEU  = "offered_capacity_teu"
)

// requiredColumns is every column the validator reads. A source missing any of
// them is structurally unusable and is rejected before row processing begins.
var requiredColumns = []string{
	ColOrigin, ColDestination,
	ColOriginPortCode, ColDestinationPortCode,
	ColServiceRoundtrip, ColOriginService, ColDestinationService,
	ColOriginAtUTC, ColOfferedCapacityTEU,
}

// RawRow is one data row of the source CSV, keyed by lower-cased column name.
// Values are cell-cleaned (surrounding whitespace removed) but otherwise raw
// strings; typing happens in the validator. Line is 1-based and counts the
// header row, so it matches what a text editor shows.
type RawRow struct {
	Line   int
	Values map[string]string
}

// RowReader streams data rows from an open CSV source one at a time, keeping
// memory bounded regardless of file size. It is finite and restartable: a
// retried load simply re-opens the source with OpenCSV.
type RowReader struct {
	f      *os.File
	csv    *csv.Reader
	header []string // lower-cased column names by position
	line   int
}

// OpenCSV opens the CSV at path and consumes its header row.
// A missing or unreadable file returns domain.ErrSourceNotFound, as does a
// header that lacks any required column — both are pre-row structural
// failures, surfaced before any data row is processed.
func OpenCSV(path string) (*RowReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest.OpenCSV: %w: %v", domain.ErrSourceNotFound, err)
	}

	cr := csv.NewReader(f)
	cr.ReuseRecord = true
	// Trailing delimiters produce ragged rows in this feed; let the validator
	// judge cell content instead of failing the whole row on field count.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("ingest.OpenCSV: %w: file %s is empty", domain.ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("ingest.OpenCSV: %w: read header: %v", domain.ErrSourceNotFound, err)
	}

	cols := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			// Excel on Windows prepends a UTF-8 BOM.
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		cols[i] = strings.ToLower(strings.TrimSpace(h))
	}

	if missing := missingColumns(cols); len(missing) > 0 {
		f.Close()
		return nil, fmt.Errorf("ingest.OpenCSV: %w: header missing required columns: %s",
			domain.ErrSourceNotFound, strings.Join(missing, ", "))
	}

	return &RowReader{f: f, csv: cr, header: cols, line: 1}, nil
}

// Next returns the next data row. It returns io.EOF when the source is
// exhausted. A malformed row (bare quote, etc.) is returned with a non-nil
// error alongside its line number so the caller can record a rejection and
// keep reading; only I/O errors are terminal.
func (r *RowReader) Next() (RawRow, error) {
	rec, err := r.csv.Read()
	r.line++
	if err != nil {
		if errors.Is(err, io.EOF) {
			return RawRow{}, io.EOF
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return RawRow{Line: r.line}, fmt.Errorf("malformed CSV row: %w", err)
		}
		return RawRow{}, fmt.Errorf("ingest.RowReader.Next: %w", err)
	}

	values := make(map[string]string, len(r.header))
	for i, col := range r.header {
		if i < len(rec) {
			values[col] = strings.TrimSpace(rec[i])
		}
	}
	return RawRow{Line: r.line, Values: values}, nil
}

// Close releases the underlying file. Safe to call after io.EOF.
func (r *RowReader) Close() error {
	return r.f.Close()
}

// missingColumns returns the required columns absent from cols.
func missingColumns(cols []string) []string {
	present := make(map[string]bool, len(cols))
	for _, c := range cols {
		present[c] = true
	}
	var missing []string
	for _, want := range requiredColumns {
		if !present[want] {
			missing = append(missing, want)
		}
	}
	return missing
}
