package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callgraph-labs/cdr-engine/pkg/services"
)

// CreateSessionRequest creates a new analysis session.
type CreateSessionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SessionHandler handles session lifecycle endpoints.
type SessionHandler struct {
	sessions services.SessionService
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions services.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers the session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.Create)
	mux.HandleFunc("GET /api/sessions", h.List)
	mux.HandleFunc("GET /api/sessions/{id}", h.Get)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.Delete)
}

// Create handles POST /api/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Name == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}

	session, err := h.sessions.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		_ = WriteError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, session)
}

// List handles GET /api/sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context())
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// Get handles GET /api/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		_ = WriteError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, session)
}

// Delete handles DELETE /api/sessions/{id}. Deleting a session cascades to
// all its records.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Delete(r.Context(), id); err != nil {
		_ = WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}
