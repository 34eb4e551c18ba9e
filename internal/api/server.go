// Package api provides REST API handlers for cardinality statistics tables
// and snapshots.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fidde/cardinality_explorer/internal/explorer"
	"github.com/fidde/cardinality_explorer/pkg/models"
	"github.com/fidde/cardinality_explorer/pkg/table"
)

// Server is the REST API server.
type Server struct {
	svc    *explorer.Service
	stats  StatsProvider
	router *chi.Mux
	server *http.Server
	logger *slog.Logger
}

// PaginationParams contains pagination parameters from query string.
type PaginationParams struct {
	Limit  int
	Offset int
}

// PaginatedResponse wraps a paginated response with metadata.
type PaginatedResponse struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

// parsePaginationParams extracts pagination parameters from request.
// Defaults: limit=100, offset=0, max_limit=1000
func parsePaginationParams(r *http.Request) PaginationParams {
	const (
		defaultLimit = 100
		maxLimit     = 1000
	)

	limit := defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}

// paginateSlice applies pagination to a slice.
func paginateSlice[T any](items []T, params PaginationParams) ([]T, PaginatedResponse) {
	total := len(items)
	start := params.Offset
	end := start + params.Limit

	// Bounds check
	if start >= total {
		return []T{}, PaginatedResponse{
			Data:    []T{},
			Total:   total,
			Limit:   params.Limit,
			Offset:  params.Offset,
			HasMore: false,
		}
	}

	if end > total {
		end = total
	}

	page := items[start:end]
	hasMore := end < total

	return page, PaginatedResponse{
		Data:    page,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: hasMore,
	}
}

// NewServer creates a new API server. stats may be nil.
func NewServer(addr string, svc *explorer.Service, stats StatsProvider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		svc:    svc,
		stats:  stats,
		router: chi.NewRouter(),
		logger: logger,
	}

	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(logger))
	s.router.Use(instrument)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	snapshots := NewSnapshotHandler(svc)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.HandleHealth)

		// Statistics tables
		r.Get("/cardinality/{kind}", s.getTable)
		r.Get("/cardinality/{kind}/headers", s.getHeaders)
		r.Post("/cardinality/{kind}/sort", s.requestSort)

		// Snapshots
		r.Get("/snapshots", snapshots.ListSnapshots)
		r.Post("/snapshots", snapshots.CreateSnapshot)
		r.Get("/snapshots/{id}", snapshots.GetSnapshot)
		r.Delete("/snapshots/{id}", snapshots.DeleteSnapshot)

		// Metric usage
		r.Post("/usage", s.recordUsage)

		// Admin endpoints
		r.Post("/admin/clear", s.clearAllData)
	})

	s.router.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// UsageRequest is the body of POST /api/v1/usage.
type UsageRequest struct {
	Names     []string `json:"names"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

// recordUsage counts a query against each listed metric name.
// POST /api/v1/usage
func (s *Server) recordUsage(w http.ResponseWriter, r *http.Request) {
	var req UsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Names) == 0 {
		respondError(w, http.StatusBadRequest, "names is required")
		return
	}

	if err := s.svc.RecordUsage(r.Context(), req.Names, req.Timestamp); err != nil {
		respondError(w, statusFor(err), "Failed to record usage: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{
		"recorded": len(req.Names),
	})
}

// clearAllData clears live state and all stored data.
// POST /api/v1/admin/clear
func (s *Server) clearAllData(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Clear(r.Context()); err != nil {
		s.logger.Error("clear failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to clear data")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "All data cleared successfully",
	})
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, table.ErrInvalidColumn),
		errors.Is(err, table.ErrInvalidOrder),
		errors.Is(err, models.ErrUnknownKind),
		errors.Is(err, models.ErrUnknownSeverity),
		errors.Is(err, models.ErrInvalidSnapshotID):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrSnapshotExists):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
