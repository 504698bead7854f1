package ingest

import (
	"strconv"
	"time"

	"github.com/askeland/teu-capacity/internal/domain"
)

// departureLayouts are the accepted forms of origin_at_utc, tried in order.
// The first group carries an explicit offset; the rest are naive.
//
// Policy for naive timestamps: they are assumed to be UTC. The upstream feed
// exports naive strings that are documented UTC at the source, so rejecting
// them would reject the entire feed. This assumption is fixed here, not
// inferred per file.
var departureLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ValidateRow turns one raw CSV row into a SailingRecord candidate, or
// rejects it with a reason. Pure: no storage access, no side effects.
// The returned record has DedupKey unset; the caller derives it with DedupKey.
func ValidateRow(row RawRow) (domain.SailingRecord, *domain.RowRejection) {
	rec := domain.SailingRecord{
		Origin:                               row.Values[ColOrigin],
		Destination:                          row.Values[ColDestination],
		OriginPortCode:                       row.Values[ColOriginPortCode],
		DestinationPortCode:                  row.Values[ColDestinationPortCode],
		ServiceVersionAndRoundtripIdentfiers: row.Values[ColServiceRoundtrip],
		OriginServiceVersionAndMaster:        row.Values[ColOriginService],
		DestinationServiceVersionAndMaster:   row.Values[ColDestinationService],
	}

	// Blank location identifiers get their own reason code so operators can
	// tell a gutted row from a feed that dropped a column's values.
	for _, id := range []struct{ col, val string }{
		{ColOrigin, rec.Origin},
		{ColDestination, rec.Destination},
		{ColOriginPortCode, rec.OriginPortCode},
		{ColDestinationPortCode, rec.DestinationPortCode},
	} {
		if id.val == "" {
			return domain.SailingRecord{}, reject(row.Line, id.col, domain.ReasonEmptyIdentifier, "identifier is blank")
		}
	}

	for _, id := range []struct{ col, val string }{
		{ColServiceRoundtrip, rec.ServiceVersionAndRoundtripIdentfiers},
		{ColOriginService, rec.OriginServiceVersionAndMaster},
		{ColDestinationService, rec.DestinationServiceVersionAndMaster},
	} {
		if id.val == "" {
			return domain.SailingRecord{}, reject(row.Line, id.col, domain.ReasonMissingField, "required field is empty")
		}
	}

	rawDeparture := row.Values[ColOriginAtUTC]
	if rawDeparture == "" {
		return domain.SailingRecord{}, reject(row.Line, ColOriginAtUTC, domain.ReasonMissingField, "required field is empty")
	}
	departure, ok := parseDepartureUTC(rawDeparture)
	if !ok {
		return domain.SailingRecord{}, reject(row.Line, ColOriginAtUTC, domain.ReasonInvalidTimestamp,
			"cannot parse "+strconv.Quote(rawDeparture)+" as a timestamp")
	}
	rec.DepartureAtUTC = departure

	rawCapacity := row.Values[ColOfferedCapacityTEU]
	if rawCapacity == "" {
		return domain.SailingRecord{}, reject(row.Line, ColOfferedCapacityTEU, domain.ReasonMissingField, "required field is empty")
	}
	// Integer only: fractional and scientific forms are rejected, not truncated.
	capacity, err := strconv.Atoi(rawCapacity)
	if err != nil {
		return domain.SailingRecord{}, reject(row.Line, ColOfferedCapacityTEU, domain.ReasonInvalidCapacity,
			"cannot parse "+strconv.Quote(rawCapacity)+" as an integer")
	}
	if capacity < 0 {
		return domain.SailingRecord{}, reject(row.Line, ColOfferedCapacityTEU, domain.ReasonInvalidCapacity,
			"capacity must not be negative, got "+rawCapacity)
	}
	rec.OfferedCapacityTEU = capacity

	return rec, nil
}

// parseDepartureUTC tries each accepted layout and normalizes the result to
// UTC. Naive layouts are interpreted as UTC per the package policy above.
func parseDepartureUTC(s string) (time.Time, bool) {
	for _, layout := range departureLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func reject(line int, field string, reason domain.RejectionReason, msg string) *domain.RowRejection {
	return &domain.RowRejection{Line: line, Field: field, Reason: reason, Message: msg}
}
