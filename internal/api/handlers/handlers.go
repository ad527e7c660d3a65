package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/transaction-analyzer/internal/api/middleware"
	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

// UploadService is the part of uploads.Service the HTTP layer needs.
type UploadService interface {
	Submit(ctx context.Context, filename string, content io.Reader) (*uploads.Record, error)
	Get(ctx context.Context, id string) (*uploads.Record, error)
	List(ctx context.Context) ([]*uploads.Record, error)
	Reanalyze(ctx context.Context, id string) error
}

// StatusResponse is the polling view of an upload.
type StatusResponse struct {
	ID     string          `json:"id"`
	Status uploads.Status  `json:"status"`
	Result *uploads.Result `json:"result"`
}

func statusOf(rec *uploads.Record) StatusResponse {
	return StatusResponse{ID: rec.ID, Status: rec.Status, Result: rec.Result}
}

// UploadsHandler handles upload endpoints.
type UploadsHandler struct {
	service        UploadService
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewUploadsHandler creates a new uploads handler. Request bodies larger
// than maxUploadBytes are rejected.
func NewUploadsHandler(service UploadService, maxUploadBytes int64, log zerolog.Logger) *UploadsHandler {
	return &UploadsHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// CreateUpload handles POST /api/uploads with a multipart "file" field.
func (h *UploadsHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	rec, err := h.service.Submit(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, uploads.ErrInvalidUpload) {
			middleware.WriteError(w, http.StatusBadRequest, invalidUploadMessage(err))
			return
		}
		h.log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to accept upload")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, rec)
}

// ListUploads handles GET /api/uploads. An optional ?status= narrows the list.
func (h *UploadsHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	filter := uploads.Status(r.URL.Query().Get("status"))
	if filter != "" && !filter.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	records, err := h.service.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list uploads")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Return array directly for client compatibility
	resp := make([]StatusResponse, 0, len(records))
	for _, rec := range records {
		if filter != "" && rec.Status != filter {
			continue
		}
		resp = append(resp, statusOf(rec))
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// GetUpload handles GET /api/uploads/{id} and GET /api/uploads/{id}/status.
func (h *UploadsHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, id, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, statusOf(rec))
}

// Reanalyze handles POST /api/uploads/{id}/reanalyze.
func (h *UploadsHandler) Reanalyze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Reanalyze(r.Context(), id); err != nil {
		h.writeLookupError(w, id, err)
		return
	}

	h.log.Info().Str("upload_id", id).Msg("Re-analysis queued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"id":     id,
		"status": "queued",
	})
}

func (h *UploadsHandler) writeLookupError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, uploads.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Upload with id "+id+" not found")
		return
	}
	h.log.Error().Err(err).Str("upload_id", id).Msg("Failed to load upload")
	middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
}

func invalidUploadMessage(err error) string {
	switch {
	case errors.Is(err, uploads.ErrNotCSV):
		return "File must be CSV format"
	case errors.Is(err, uploads.ErrEmptyUpload):
		return "No file provided"
	}
	return "Invalid upload"
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
