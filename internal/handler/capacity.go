package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/askeland/teu-capacity/internal/domain"
)

// capacityBucketResponse is the wire shape of one aggregation bucket.
// bucket_start is rendered as a plain date: a bucket start is always midnight
// UTC at the query granularity, and clients chart it as a calendar value.
type capacityBucketResponse struct {
	BucketStart        openapi_types.Date `json:"bucket_start"`
	WeekNo             *int               `json:"week_no,omitempty"`
	Origin             string             `json:"origin,omitempty"`
	Destination        string             `json:"destination,omitempty"`
	OfferedCapacityTEU int64              `json:"offered_capacity_teu"`
	SailingCount       int64              `json:"sailing_count"`
}

type capacityResponse struct {
	Data []capacityBucketResponse `json:"data"`
}

// GetCapacity handles GET /capacity.
// All filter parameters are optional; see filterFromQuery for the full list.
func (s *Server) GetCapacity(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, invalidFilterBody(err))
		return
	}

	buckets, err := s.capacity.Query(r.Context(), filter)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidFilter) {
			respondJSON(w, http.StatusUnprocessableEntity, invalidFilterBody(err))
			return
		}
		slog.ErrorContext(r.Context(), "capacity query failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, internalErrorBody())
		return
	}

	data := make([]capacityBucketResponse, len(buckets))
	for i, b := range buckets {
		data[i] = bucketToResponse(b)
	}
	respondJSON(w, http.StatusOK, capacityResponse{Data: data})
}

// filterFromQuery parses the query string into a CapacityFilter.
// Malformed values are reported as domain.ErrInvalidFilter so the endpoint
// answers 422 whether the problem is caught here or in the service.
func filterFromQuery(r *http.Request) (domain.CapacityFilter, error) {
	q := r.URL.Query()

	filter := domain.CapacityFilter{
		Origin:              q.Get("origin"),
		Destination:         q.Get("destination"),
		OriginPortCode:      q.Get("origin_port_code"),
		DestinationPortCode: q.Get("destination_port_code"),
	}

	level, err := domain.ParseAggregationLevel(q.Get("level"))
	if err != nil {
		return domain.CapacityFilter{}, err
	}
	filter.Level = level

	if filter.DateFrom, err = parseDateParam(q.Get("date_from"), "date_from"); err != nil {
		return domain.CapacityFilter{}, err
	}
	if filter.DateTo, err = parseDateParam(q.Get("date_to"), "date_to"); err != nil {
		return domain.CapacityFilter{}, err
	}

	if filter.GroupByRoute, err = parseBoolParam(q.Get("group_by_route"), "group_by_route"); err != nil {
		return domain.CapacityFilter{}, err
	}
	if filter.IncludeEmptyBuckets, err = parseBoolParam(q.Get("include_empty_buckets"), "include_empty_buckets"); err != nil {
		return domain.CapacityFilter{}, err
	}

	if raw := q.Get("rolling_window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domain.CapacityFilter{}, fmt.Errorf("%w: rolling_window %q is not an integer", domain.ErrInvalidFilter, raw)
		}
		filter.RollingWindow = n
	}

	return filter, nil
}

// parseDateParam parses an optional YYYY-MM-DD query parameter as a UTC date.
func parseDateParam(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a YYYY-MM-DD date", domain.ErrInvalidFilter, name, raw)
	}
	return &t, nil
}

// parseBoolParam parses an optional boolean query parameter.
func parseBoolParam(raw, name string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s %q is not a boolean", domain.ErrInvalidFilter, name, raw)
	}
	return v, nil
}

func bucketToResponse(b domain.CapacityBucket) capacityBucketResponse {
	resp := capacityBucketResponse{
		BucketStart:        openapi_types.Date{Time: b.BucketStart},
		Origin:             b.Origin,
		Destination:        b.Destination,
		OfferedCapacityTEU: b.OfferedCapacityTEU,
		SailingCount:       b.SailingCount,
	}
	if b.WeekNo != 0 {
		weekNo := b.WeekNo
		resp.WeekNo = &weekNo
	}
	return resp
}
