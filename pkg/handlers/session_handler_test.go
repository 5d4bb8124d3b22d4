package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgraph-labs/cdr-engine/pkg/models"
)

func TestSessionCreate(t *testing.T) {
	mux := newTestMux(&mockCDRService{}, &mockSessionService{known: map[uuid.UUID]bool{}})

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"name":"case-1","description":"burner ring"}`))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var session models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "case-1", session.Name)
	assert.NotEqual(t, uuid.Nil, session.ID)
}

func TestSessionCreate_NameRequired(t *testing.T) {
	mux := newTestMux(&mockCDRService{}, &mockSessionService{known: map[uuid.UUID]bool{}})

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"description":"no name"}`))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionGet(t *testing.T) {
	id := uuid.New()
	mux := newTestMux(&mockCDRService{}, &mockSessionService{known: map[uuid.UUID]bool{id: true}})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+id.String(), nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var session models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, id, session.ID)
}

func TestSessionGet_NotFound(t *testing.T) {
	mux := newTestMux(&mockCDRService{}, &mockSessionService{known: map[uuid.UUID]bool{}})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionGet_InvalidID(t *testing.T) {
	mux := newTestMux(&mockCDRService{}, &mockSessionService{known: map[uuid.UUID]bool{}})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionList(t *testing.T) {
	mux := newTestMux(&mockCDRService{}, &mockSessionService{known: map[uuid.UUID]bool{}})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]models.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	_, ok := resp["sessions"]
	assert.True(t, ok)
}

func TestSessionDelete(t *testing.T) {
	id := uuid.New()
	sessions := &mockSessionService{known: map[uuid.UUID]bool{id: true}}
	mux := newTestMux(&mockCDRService{}, sessions)

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id.String(), nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, sessions.known[id])
}

func TestSessionDelete_NotFound(t *testing.T) {
	mux := newTestMux(&mockCDRService{}, &mockSessionService{known: map[uuid.UUID]bool{}})

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
