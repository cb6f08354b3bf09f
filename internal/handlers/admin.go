package handlers

import (
	"net/http"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

// ClearLocalRocks wipes this node's rock list. Shared stores keep their copies.
func (h *Handler) ClearLocalRocks(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.ClearLocalRocks(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "All local rocks cleared"})
}

// DebugState reports what the node holds, for troubleshooting sync.
func (h *Handler) DebugState(w http.ResponseWriter, r *http.Request) {
	rocks := h.sync.Rocks()
	pendingShare := 0
	for _, rock := range rocks {
		if rock.CloudSyncStatus == models.SyncPending {
			pendingShare++
		}
	}
	clients := 0
	if h.hub != nil {
		clients = h.hub.Count()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"mode":          h.sync.Mode(),
		"rocks":         len(rocks),
		"stats":         h.sync.Stats(),
		"pendingShare":  pendingShare,
		"pendingEchoes": h.sync.Guard().Pending(),
		"wsClients":     clients,
	})
}
