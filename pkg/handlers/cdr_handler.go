package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callgraph-labs/cdr-engine/pkg/models"
	"github.com/callgraph-labs/cdr-engine/pkg/services"
)

// maxUploadBytes bounds how much of a multipart body is held in memory.
const maxUploadBytes = 64 << 20

// UploadResponse is returned by the upload endpoints.
type UploadResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	RecordsProcessed int    `json:"records_processed"`
	SessionID        string `json:"session_id"`
}

// AnalyzeRequest asks for a session's (optionally filtered) graph.
type AnalyzeRequest struct {
	SessionID     string                `json:"session_id"`
	FilterOptions *models.FilterOptions `json:"filter_options,omitempty"`
}

// CDRHandler handles CDR upload and graph analysis endpoints.
type CDRHandler struct {
	cdr      services.CDRService
	sessions services.SessionService
	logger   *zap.Logger
}

// NewCDRHandler creates a new CDRHandler.
func NewCDRHandler(cdr services.CDRService, sessions services.SessionService, logger *zap.Logger) *CDRHandler {
	return &CDRHandler{cdr: cdr, sessions: sessions, logger: logger}
}

// RegisterRoutes registers the CDR routes on the given mux.
func (h *CDRHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/cdr/upload", h.Upload)
	mux.HandleFunc("POST /api/cdr/upload-multiple", h.UploadMultiple)
	mux.HandleFunc("POST /api/cdr/analyze", h.Analyze)
}

// Upload handles a single CDR file upload into a session.
func (h *CDRHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}

	sessionID, ok := h.requireSession(w, r, r.FormValue("session_id"))
	if !ok {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "missing file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "failed to read file")
		return
	}

	accepted, err := h.cdr.Ingest(r.Context(), content, header.Filename, sessionID)
	if err != nil {
		h.logger.Warn("ingest failed",
			zap.String("filename", header.Filename),
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		_ = WriteError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, UploadResponse{
		Success:          true,
		Message:          "CDR file uploaded",
		RecordsProcessed: accepted,
		SessionID:        sessionID.String(),
	})
}

// UploadMultiple handles a batch of CDR files. Individual file failures are
// skipped; the response counts only successfully ingested records.
func (h *CDRHandler) UploadMultiple(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}

	sessionID, ok := h.requireSession(w, r, r.FormValue("session_id"))
	if !ok {
		return
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["files"]
	}
	if len(headers) == 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "missing files field")
		return
	}

	files := make([]services.UploadFile, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "failed to open uploaded file")
			return
		}
		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "failed to read uploaded file")
			return
		}
		files = append(files, services.UploadFile{Filename: header.Filename, Content: content})
	}

	total, err := h.cdr.IngestMany(r.Context(), files, sessionID)
	if err != nil {
		_ = WriteError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, UploadResponse{
		Success:          true,
		Message:          fmt.Sprintf("%d CDR files uploaded", len(files)),
		RecordsProcessed: total,
		SessionID:        sessionID.String(),
	})
}

// Analyze returns the session graph with the requested filters applied.
func (h *CDRHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	sessionID, ok := h.requireSession(w, r, req.SessionID)
	if !ok {
		return
	}

	data, err := h.cdr.QueryGraph(r.Context(), sessionID, req.FilterOptions)
	if err != nil {
		h.logger.Warn("graph query failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		_ = WriteError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, data)
}

// requireSession parses the session id and verifies the session exists,
// writing the error response itself when either check fails.
func (h *CDRHandler) requireSession(w http.ResponseWriter, r *http.Request, raw string) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(raw)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "invalid session_id")
		return uuid.Nil, false
	}

	exists, err := h.sessions.Exists(r.Context(), sessionID)
	if err != nil {
		_ = WriteError(w, err)
		return uuid.Nil, false
	}
	if !exists {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("session %s not found", sessionID))
		return uuid.Nil, false
	}
	return sessionID, true
}
