package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
	"github.com/AnshRaj112/rockhunter-backend/internal/services"
	"github.com/AnshRaj112/rockhunter-backend/internal/store"
)

// AddRockRequest is the add-rock form.
type AddRockRequest struct {
	models.RockDraft
	PostAsUser bool `json:"postAsUser"`
}

// SaveResponse reports a save and where it reached.
type SaveResponse struct {
	Success        bool             `json:"success"`
	Message        string           `json:"message"`
	Outcome        services.Outcome `json:"outcome"`
	PhotosStripped bool             `json:"photosStripped"`
	Rock           models.Rock      `json:"rock"`
}

type RocksResponse struct {
	Success bool          `json:"success"`
	Rocks   []models.Rock `json:"rocks"`
	Stats   models.Stats  `json:"stats"`
}

type RockResponse struct {
	Success bool        `json:"success"`
	Rock    models.Rock `json:"rock"`
}

func saveResponse(res services.SaveResult) SaveResponse {
	msg := res.Outcome.Message()
	if res.PhotosStripped {
		msg += " (storage is nearly full, photos were not kept on this device)"
	}
	return SaveResponse{
		Success:        true,
		Message:        msg,
		Outcome:        res.Outcome,
		PhotosStripped: res.PhotosStripped,
		Rock:           res.Rock,
	}
}

// ListRocks returns the reconciled rock list.
func (h *Handler) ListRocks(w http.ResponseWriter, r *http.Request) {
	rocks := h.sync.Rocks()
	writeJSON(w, http.StatusOK, RocksResponse{Success: true, Rocks: rocks, Stats: models.ComputeStats(rocks)})
}

func (h *Handler) GetRock(w http.ResponseWriter, r *http.Request) {
	rock, err := h.sync.Rock(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RockResponse{Success: true, Rock: rock})
}

// AddRock pins a new rock. Cloud failures still answer 201 with outcome local-only.
func (h *Handler) AddRock(w http.ResponseWriter, r *http.Request) {
	var req AddRockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.sync.AddRock(r.Context(), req.RockDraft, req.PostAsUser)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saveResponse(res))
}

// MarkFound records that someone found a rock.
func (h *Handler) MarkFound(w http.ResponseWriter, r *http.Request) {
	var report models.FoundReport
	// An empty body is an anonymous find with no notes
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.sync.MarkFound(r.Context(), chi.URLParam(r, "id"), report)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := saveResponse(res)
	resp.Message = "Rock marked as found! " + resp.Message
	writeJSON(w, http.StatusOK, resp)
}

// DeleteRock deletes a rock the signed-in user posted.
func (h *Handler) DeleteRock(w http.ResponseWriter, r *http.Request) {
	err := h.sync.DeleteOwnRock(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, Response{Success: true, Message: "Rock deleted successfully"})
	case errors.Is(err, services.ErrRemoteDeleteFailed):
		h.logger.Warn("delete rolled back", "rock_id", chi.URLParam(r, "id"), "err", err)
		writeError(w, http.StatusBadGateway, "Failed to delete rock from the cloud. It has been restored, please try again.")
	default:
		h.fail(w, r, err)
	}
}

// Stats returns total, found and hidden counts.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   h.sync.Stats(),
	})
}

// Sync runs a snapshot poll pass now.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.sync.SyncSnapshot(r.Context())
	if err != nil {
		h.logger.Warn("manual sync failed", "err", err)
		writeError(w, http.StatusBadGateway, "Could not reach the shared snapshot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Sync complete",
		"added":   res.Added,
		"updated": res.Updated,
	})
}

// SharedRocks serves the writable snapshot queue so peers can poll this node.
func (h *Handler) SharedRocks(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusNotFound, "No shared snapshot on this node")
		return
	}
	rocks, err := h.queue.Fetch(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, store.Snapshot{Rocks: rocks})
}
