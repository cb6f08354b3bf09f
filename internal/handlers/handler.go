package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AnshRaj112/rockhunter-backend/internal/mapview"
	"github.com/AnshRaj112/rockhunter-backend/internal/services"
	"github.com/AnshRaj112/rockhunter-backend/internal/store"
	"github.com/AnshRaj112/rockhunter-backend/pkg/utils"
)

// Deps are the services the HTTP layer calls into. Photos, Hub, Frames and
// SnapshotQueue may be nil.
type Deps struct {
	Sync          *services.SyncService
	Identity      *services.IdentityService
	Photos        *services.PhotoProcessor
	Hub           *services.RockHub
	Frames        *mapview.FrameSurface
	SnapshotQueue store.SnapshotReader
	Logger        *slog.Logger
}

type Handler struct {
	sync     *services.SyncService
	identity *services.IdentityService
	photos   *services.PhotoProcessor
	hub      *services.RockHub
	frames   *mapview.FrameSurface
	queue    store.SnapshotReader
	logger   *slog.Logger
}

func New(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sync:     deps.Sync,
		identity: deps.Identity,
		photos:   deps.Photos,
		hub:      deps.Hub,
		frames:   deps.Frames,
		queue:    deps.SnapshotQueue,
		logger:   logger,
	}
}

// Response is the common envelope of every JSON reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var verr *utils.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrRockNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotRockOwner):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotSignedIn), errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrUsernameTaken), errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotAnImage):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrPhotoTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrLocalStoreFull):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the user-facing text for err. Unknown errors are not
// echoed back.
func messageFor(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "Something went wrong. Please try again."
	}
	if errors.Is(err, store.ErrLocalStoreFull) {
		return "Storage is full. Please delete some rocks and try again."
	}
	var verr *utils.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, status, messageFor(err))
}

// Health reports liveness and the sync mode.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if h.hub != nil {
		clients = h.hub.Count()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"mode":      h.sync.Mode(),
		"rocks":     len(h.sync.Rocks()),
		"wsClients": clients,
	})
}
