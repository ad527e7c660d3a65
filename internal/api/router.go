// Package api exposes upload submission and status polling over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/transaction-analyzer/internal/api/handlers"
	"github.com/dvloznov/transaction-analyzer/internal/api/middleware"
)

// NewRouter builds the HTTP handler with the standard middleware chain.
func NewRouter(service handlers.UploadService, maxUploadBytes int64, log zerolog.Logger) http.Handler {
	uploadsHandler := handlers.NewUploadsHandler(service, maxUploadBytes, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", handlers.Health)

	r.Route("/api/uploads", func(r chi.Router) {
		r.Get("/", uploadsHandler.ListUploads)
		r.Post("/", uploadsHandler.CreateUpload)
		r.Get("/{id}", uploadsHandler.GetUpload)
		r.Get("/{id}/status", uploadsHandler.GetUpload)
		r.Post("/{id}/reanalyze", uploadsHandler.Reanalyze)
	})

	return r
}
