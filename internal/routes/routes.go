package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/rockhunter-backend/internal/handlers"
	"github.com/AnshRaj112/rockhunter-backend/internal/middleware"
)

// Options carries the per-route middleware. Nil entries are skipped.
type Options struct {
	AdminToken  string
	LoginLimit  func(http.Handler) http.Handler
	UploadLimit func(http.Handler) http.Handler
}

func SetupRoutes(r chi.Router, h *handlers.Handler, opts Options) {
	r.Get("/health", h.Health)

	// Rock routes
	r.Get("/api/rocks", h.ListRocks)
	r.Post("/api/rocks", h.AddRock)
	r.Get("/api/rocks/{id}", h.GetRock)
	r.Post("/api/rocks/{id}/found", h.MarkFound)
	r.Delete("/api/rocks/{id}", h.DeleteRock)
	r.Get("/api/stats", h.Stats)
	r.Post("/api/sync", h.Sync)

	// Auth routes
	r.Group(func(r chi.Router) {
		if opts.LoginLimit != nil {
			r.Use(opts.LoginLimit)
		}
		r.Post("/api/auth/signup", h.Signup)
		r.Post("/api/auth/signin", h.Signin)
	})
	r.Post("/api/auth/signout", h.Signout)
	r.Get("/api/auth/me", h.Me)
	r.Get("/api/profile", h.Profile)

	// Photo upload
	r.Group(func(r chi.Router) {
		if opts.UploadLimit != nil {
			r.Use(opts.UploadLimit)
		}
		r.Post("/api/photos", h.UploadPhoto)
	})

	// Admin routes (hidden unless ADMIN_TOKEN is set)
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(opts.AdminToken))
		r.Delete("/rocks", h.ClearLocalRocks)
		r.Get("/state", h.DebugState)
	})

	// Snapshot queue, polled by other nodes
	r.Get("/shared-rocks.json", h.SharedRocks)

	// Live map frames
	r.Get("/ws/rocks", h.RocksWebSocket)
}
