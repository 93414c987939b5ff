package upload

import (
	"github.com/go-chi/chi/v5"

	"github.com/imageupload/service/internal/auth"
	"github.com/imageupload/service/internal/middleware"
)

// RegisterRoutes mounts the upload endpoints. Both require a verified bearer token.
func RegisterRoutes(r chi.Router, h *Handler, verifier auth.Verifier) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(verifier))
		r.Post("/upload", h.Upload)
		r.Get("/files", h.ListFiles)
	})
}
