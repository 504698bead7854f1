// Package handler implements the HTTP layer of the sailing-capacity API.
// Handlers are methods on Server, split into endpoint-specific files but
// sharing the same struct so they can access its dependencies. The layer is
// thin by design: parameter parsing, service call, JSON rendering.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/askeland/teu-capacity/internal/domain"
	"github.com/askeland/teu-capacity/spec"
)

// CapacityQuerier defines the aggregation operation the capacity handler
// depends on. Defining the interface here (in the consumer package) follows
// the Go convention: "accept interfaces, return concrete types". It lets
// handler tests inject a mock without touching the database or service layer.
type CapacityQuerier interface {
	Query(ctx context.Context, f domain.CapacityFilter) ([]domain.CapacityBucket, error)
}

// Server holds the dependencies of all HTTP handlers.
type Server struct {
	capacity CapacityQuerier
}

// NewServer constructs the Server with all its dependencies.
func NewServer(capacity CapacityQuerier) *Server {
	return &Server{capacity: capacity}
}

// Routes returns the router exposing the read API. The pipeline has no HTTP
// surface; it is driven by the etl command.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/capacity", s.GetCapacity)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	return r
}

// GetOpenAPI serves the embedded API description.
func (s *Server) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(spec.OpenAPI)
}

// respondJSON writes v as a JSON response with the given status code.
// Encoding errors at this point mean the response is already partially
// written; they are logged and otherwise unrecoverable.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
