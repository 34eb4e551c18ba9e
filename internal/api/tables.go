package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fidde/cardinality_explorer/internal/explorer"
	"github.com/fidde/cardinality_explorer/pkg/models"
	"github.com/fidde/cardinality_explorer/pkg/table"
)

// TableResponse is one page of a statistics table.
type TableResponse struct {
	PaginatedResponse

	Kind        models.Kind     `json:"kind"`
	Snapshot    string          `json:"snapshot"`
	Compare     string          `json:"compare,omitempty"`
	Focus       string          `json:"focus,omitempty"`
	Headers     table.Headers   `json:"headers"`
	Sort        table.SortState `json:"sort"`
	TotalSeries int64           `json:"totalSeries"`
	MaxSeverity string          `json:"maxSeverity"`
	Paging      bool            `json:"paging"`
}

// getTable returns a sorted statistics table.
// GET /api/v1/cardinality/{kind}?orderBy=&order=&snapshot=&compare=&focus=&minSeverity=&topN=&paging=&limit=&offset=
//
// Pagination applies after sorting. With paging=false every row is returned.
func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	q := explorer.Query{
		Kind:        models.Kind(chi.URLParam(r, "kind")),
		SnapshotID:  query.Get("snapshot"),
		CompareTo:   query.Get("compare"),
		Focus:       query.Get("focus"),
		OrderBy:     query.Get("orderBy"),
		Order:       query.Get("order"),
		MinSeverity: query.Get("minSeverity"),
	}

	if topN := query.Get("topN"); topN != "" {
		n, err := strconv.Atoi(topN)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "topN must be a non-negative integer")
			return
		}
		q.TopN = n
	}

	paging := true
	if p := query.Get("paging"); p != "" {
		parsed, err := strconv.ParseBool(p)
		if err != nil {
			respondError(w, http.StatusBadRequest, "paging must be a boolean")
			return
		}
		paging = parsed
	}

	res, err := s.svc.Table(r.Context(), q)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	var page PaginatedResponse
	if paging {
		_, page = paginateSlice(res.Rows, parsePaginationParams(r))
	} else {
		page = PaginatedResponse{
			Data:  res.Rows,
			Total: len(res.Rows),
			Limit: len(res.Rows),
		}
	}

	respondJSON(w, http.StatusOK, TableResponse{
		PaginatedResponse: page,
		Kind:              res.Kind,
		Snapshot:          res.Snapshot,
		Compare:           res.Compare,
		Focus:             res.Focus,
		Headers:           res.Headers,
		Sort:              res.Sort,
		TotalSeries:       res.TotalSeries,
		MaxSeverity:       res.MaxSeverity,
		Paging:            paging,
	})
}

// HeadersResponse describes the columns of a kind's table.
type HeadersResponse struct {
	Kind        models.Kind     `json:"kind"`
	Headers     table.Headers   `json:"headers"`
	DefaultSort table.SortState `json:"defaultSort"`
}

// getHeaders returns the column headers and default sort of a kind.
// GET /api/v1/cardinality/{kind}/headers
func (s *Server) getHeaders(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, HeadersResponse{
		Kind:        kind,
		Headers:     explorer.Headers(kind),
		DefaultSort: s.svc.DefaultSort(kind),
	})
}

// SortRequest is the body of POST /api/v1/cardinality/{kind}/sort.
// A missing state means the kind's default sort.
type SortRequest struct {
	State  *table.SortState `json:"state,omitempty"`
	Column *table.Column    `json:"column"`
}

// requestSort applies a header click to a sort state.
// POST /api/v1/cardinality/{kind}/sort
func (s *Server) requestSort(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Column == nil {
		respondError(w, http.StatusBadRequest, "column is required")
		return
	}

	current := s.svc.DefaultSort(kind)
	if req.State != nil {
		current = *req.State
	}
	if !current.Order.Valid() {
		respondError(w, http.StatusBadRequest, "state.order is required")
		return
	}

	next := table.RequestSort(current, explorer.Headers(kind), *req.Column)
	sortRequestsTotal.WithLabelValues(string(kind), strconv.FormatBool(next != current)).Inc()

	respondJSON(w, http.StatusOK, next)
}
