package handlers

import (
	"net/http"

	"github.com/AnshRaj112/rockhunter-backend/internal/services"
)

type PhotoResponse struct {
	Success bool                     `json:"success"`
	Message string                   `json:"message"`
	Photo   *services.ProcessedPhoto `json:"photo,omitempty"`
}

// UploadPhoto shrinks an uploaded photo and returns the URL to attach to a rock.
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	if h.photos == nil {
		writeError(w, http.StatusServiceUnavailable, "Photo uploads are not available")
		return
	}

	// Room for the form fields on top of the image limit
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxPhotoBytes+1<<20)
	if err := r.ParseMultipartForm(services.MaxPhotoBytes + 1<<20); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form. Images must be smaller than 10MB")
		return
	}

	// Get file from form
	file, fileHeader, err := r.FormFile("photo")
	if err != nil {
		file, fileHeader, err = r.FormFile("file")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "No photo provided")
		return
	}
	defer file.Close()

	photo, err := h.photos.Process(r.Context(), file, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PhotoResponse{
		Success: true,
		Message: "Photo ready",
		Photo:   &photo,
	})
}
