package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pilot-rag/internal/contextutil"
	"pilot-rag/internal/ingest"
	"pilot-rag/internal/storage"
)

// DocumentsHandler handles HTTP requests for document management.
type DocumentsHandler struct {
	pipeline       *ingest.Pipeline
	maxUploadBytes int64
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(pipeline *ingest.Pipeline, maxUploadBytes int64) *DocumentsHandler {
	return &DocumentsHandler{pipeline: pipeline, maxUploadBytes: maxUploadBytes}
}

// UploadResponse represents the HTTP response payload for a document upload.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	PageCount  int    `json:"page_count"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"`
}

// DocumentResponse represents one document in the listing response.
type DocumentResponse struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	PageCount  int       `json:"page_count"`
	ChunkCount int       `json:"chunk_count"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Upload handles multipart document uploads.
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	// Reject oversized bodies before buffering them. The pipeline re-checks
	// the decoded file size.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+4096)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		logger.WarnContext(ctx, "invalid multipart form", "error", err)
		writeError(w, http.StatusRequestEntityTooLarge, "Upload too large or malformed")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.WarnContext(ctx, "missing file field", "error", err)
		writeError(w, http.StatusBadRequest, "A 'file' form field is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read upload", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	result, err := h.pipeline.Ingest(ctx, fileBytes, header.Filename)
	if err != nil {
		h.handleIngestError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		DocumentID: result.DocumentID,
		PageCount:  result.PageCount,
		ChunkCount: result.ChunkCount,
		Status:     result.Status,
	})
}

// List returns summaries of all documents, newest first.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	summaries, err := h.pipeline.List(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list documents", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	resp := make([]DocumentResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, DocumentResponse{
			ID:         s.ID,
			Filename:   s.OriginalFilename,
			PageCount:  s.PageCount,
			ChunkCount: s.ChunkCount,
			Status:     s.Status,
			CreatedAt:  s.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Delete removes a document and everything it owns.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Document id is required")
		return
	}

	if err := h.pipeline.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		logger.ErrorContext(ctx, "failed to delete document", "document_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleIngestError maps ingestion errors to HTTP status codes with the
// specific, user-correctable reason.
func (h *DocumentsHandler) handleIngestError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "ingestion error", "error", err)

	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "Only PDF files are supported")
	case errors.Is(err, ingest.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "File exceeds the upload size limit")
	case errors.Is(err, ingest.ErrExtractionFailed):
		writeError(w, http.StatusUnprocessableEntity, "Could not extract text from the PDF")
	default:
		writeError(w, http.StatusInternalServerError, "Failed to process document")
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}
