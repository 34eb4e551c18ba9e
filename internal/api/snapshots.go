package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fidde/cardinality_explorer/internal/explorer"
)

// SnapshotHandler handles snapshot-related API requests.
type SnapshotHandler struct {
	svc *explorer.Service
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(svc *explorer.Service) *SnapshotHandler {
	return &SnapshotHandler{svc: svc}
}

// CreateSnapshotRequest is the optional body of POST /api/v1/snapshots.
type CreateSnapshotRequest struct {
	ID string `json:"id"`
}

// ListSnapshots returns metadata for all stored snapshots, oldest first.
// GET /api/v1/snapshots
// Supports pagination via ?limit=N&offset=M query parameters.
func (h *SnapshotHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListSnapshots(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list snapshots: "+err.Error())
		return
	}

	_, response := paginateSlice(list, parsePaginationParams(r))
	respondJSON(w, http.StatusOK, response)
}

// CreateSnapshot freezes the live state into a stored snapshot.
// POST /api/v1/snapshots
func (h *SnapshotHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req CreateSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	meta, err := h.svc.TakeSnapshot(r.Context(), req.ID)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, meta)
}

// GetSnapshot returns a snapshot with all entries. "live" returns the
// current collector state.
// GET /api/v1/snapshots/{id}
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.GetSnapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// DeleteSnapshot removes a stored snapshot.
// DELETE /api/v1/snapshots/{id}
func (h *SnapshotHandler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSnapshot(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
