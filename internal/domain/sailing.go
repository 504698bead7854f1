// Package domain contains the core data types for the sailing-capacity service.
// This package has zero external dependencies beyond uuid and is imported by
// every other internal package (ingest, repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SailingRecord is one directional sailing leg as stored in the sailings table.
// Records are created only by the load pipeline from validated CSV rows and are
// never mutated after creation, except updated_at on a no-op duplicate reload
// and the value fields on a conflict resolved with PolicyOverwrite.
type SailingRecord struct {
	ID                  uuid.UUID `json:"id"`
	Origin              string    `json:"origin"`
	Destination         string    `json:"destination"`
	OriginPortCode      string    `json:"origin_port_code"`
	DestinationPortCode string    `json:"destination_port_code"`

	// The three service identity strings are opaque: they participate in the
	// dedup key and traceability only, never in business logic. The misspelled
	// "identfiers" matches the upstream feed's column name and is kept verbatim
	// so the CSV contract stays greppable end to end.
	ServiceVersionAndRoundtripIdentfiers string `json:"service_version_and_roundtrip_identfiers"`
	OriginServiceVersionAndMaster        string `json:"origin_service_version_and_master"`
	DestinationServiceVersionAndMaster   string `json:"destination_service_version_and_master"`

	// DepartureAtUTC anchors all time-range filtering and bucketing.
	DepartureAtUTC time.Time `json:"departure_at_utc"`

	// OfferedCapacityTEU is the aggregated quantity. Never negative; the
	// validator rejects such rows before they reach storage.
	OfferedCapacityTEU int `json:"offered_capacity_teu"`

	// DedupKey is the derived identity of the sailing (see ingest.DedupKey).
	// Unique in storage; two rows with the same key are the same sailing.
	DedupKey string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContentEquals reports whether two records describe the same sailing with the
// same values. Records sharing a dedup key but differing here are a conflict.
// Identity, key, and pipeline-managed timestamps are excluded from the
// comparison; departure instants are compared as instants, not representations.
func (r SailingRecord) ContentEquals(o SailingRecord) bool {
	return r.Origin == o.Origin &&
		r.Destination == o.Destination &&
		r.OriginPortCode == o.OriginPortCode &&
		r.DestinationPortCode == o.DestinationPortCode &&
		r.ServiceVersionAndRoundtripIdentfiers == o.ServiceVersionAndRoundtripIdentfiers &&
		r.OriginServiceVersionAndMaster == o.OriginServiceVersionAndMaster &&
		r.DestinationServiceVersionAndMaster == o.DestinationServiceVersionAndMaster &&
		r.DepartureAtUTC.Equal(o.DepartureAtUTC) &&
		r.OfferedCapacityTEU == o.OfferedCapacityTEU
}
