package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/callgraph-labs/cdr-engine/pkg/apperrors"
	"github.com/callgraph-labs/cdr-engine/pkg/models"
	"github.com/callgraph-labs/cdr-engine/pkg/services"
)

// mockCDRService records calls and returns canned results.
type mockCDRService struct {
	ingestErr    error
	accepted     int
	lastFilename string
	lastFiles    []services.UploadFile
	graph        *models.GraphData
	graphErr     error
	lastOpts     *models.FilterOptions
}

func (m *mockCDRService) Ingest(_ context.Context, _ []byte, filename string, _ uuid.UUID) (int, error) {
	m.lastFilename = filename
	if m.ingestErr != nil {
		return 0, m.ingestErr
	}
	return m.accepted, nil
}

func (m *mockCDRService) IngestMany(_ context.Context, files []services.UploadFile, _ uuid.UUID) (int, error) {
	m.lastFiles = files
	return m.accepted, nil
}

func (m *mockCDRService) QueryGraph(_ context.Context, _ uuid.UUID, opts *models.FilterOptions) (*models.GraphData, error) {
	m.lastOpts = opts
	if m.graphErr != nil {
		return nil, m.graphErr
	}
	return m.graph, nil
}

// mockSessionService answers existence checks from a fixed set.
type mockSessionService struct {
	known     map[uuid.UUID]bool
	existsErr error
}

func (m *mockSessionService) Create(_ context.Context, name, description string) (*models.Session, error) {
	return &models.Session{ID: uuid.New(), Name: name, Description: description}, nil
}

func (m *mockSessionService) Get(_ context.Context, id uuid.UUID) (*models.Session, error) {
	if !m.known[id] {
		return nil, apperrors.ErrNotFound
	}
	return &models.Session{ID: id, Name: "case"}, nil
}

func (m *mockSessionService) List(_ context.Context) ([]*models.Session, error) {
	return []*models.Session{}, nil
}

func (m *mockSessionService) Delete(_ context.Context, id uuid.UUID) error {
	if !m.known[id] {
		return apperrors.ErrNotFound
	}
	delete(m.known, id)
	return nil
}

func (m *mockSessionService) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.known[id], nil
}

func newTestMux(cdr *mockCDRService, sessions *mockSessionService) *http.ServeMux {
	mux := http.NewServeMux()
	NewCDRHandler(cdr, sessions, zap.NewNop()).RegisterRoutes(mux)
	NewSessionHandler(sessions, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func multipartUpload(t *testing.T, field, sessionID string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("session_id", sessionID))
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestUpload_Success(t *testing.T) {
	sessionID := uuid.New()
	cdr := &mockCDRService{accepted: 42}
	sessions := &mockSessionService{known: map[uuid.UUID]bool{sessionID: true}}
	mux := newTestMux(cdr, sessions)

	body, contentType := multipartUpload(t, "file", sessionID.String(), map[string][]byte{
		"calls.csv": []byte("ANumber,BNumber\n"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/cdr/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 42, resp.RecordsProcessed)
	assert.Equal(t, sessionID.String(), resp.SessionID)
	assert.Equal(t, "calls.csv", cdr.lastFilename)
}

func TestUpload_InvalidSessionID(t *testing.T) {
	mux := newTestMux(&mockCDRService{}, &mockSessionService{known: map[uuid.UUID]bool{}})

	body, contentType := multipartUpload(t, "file", "not-a-uuid", map[string][]byte{
		"calls.csv": []byte("x,y\n"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/cdr/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_UnknownSession(t *testing.T) {
	mux := newTestMux(&mockCDRService{}, &mockSessionService{known: map[uuid.UUID]bool{}})

	body, contentType := multipartUpload(t, "file", uuid.NewString(), map[string][]byte{
		"calls.csv": []byte("x,y\n"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/cdr/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpload_ExistenceCheckFailure(t *testing.T) {
	sessions := &mockSessionService{existsErr: errors.New("connection refused")}
	mux := newTestMux(&mockCDRService{}, sessions)

	body, contentType := multipartUpload(t, "file", uuid.NewString(), map[string][]byte{
		"calls.csv": []byte("x,y\n"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/cdr/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	// Fail closed: an unverifiable session never accepts an upload.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUpload_DatastoreDownMapsTo503(t *testing.T) {
	sessions := &mockSessionService{
		existsErr: fmt.Errorf("failed to get session: %w", apperrors.ErrUnavailable),
	}
	mux := newTestMux(&mockCDRService{}, sessions)

	body, contentType := multipartUpload(t, "file", uuid.NewString(), map[string][]byte{
		"calls.csv": []byte("x,y\n"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/cdr/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unavailable", resp["error"])
}

func TestUpload_BadFileMapsTo400(t *testing.T) {
	sessionID := uuid.New()
	cdr := &mockCDRService{ingestErr: &apperrors.FormatError{Msg: "unreadable"}}
	sessions := &mockSessionService{known: map[uuid.UUID]bool{sessionID: true}}
	mux := newTestMux(cdr, sessions)

	body, contentType := multipartUpload(t, "file", sessionID.String(), map[string][]byte{
		"junk.bin": {0x00, 0x01},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/cdr/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_file", resp["error"])
}

func TestUpload_MissingFileField(t *testing.T) {
	sessionID := uuid.New()
	sessions := &mockSessionService{known: map[uuid.UUID]bool{sessionID: true}}
	mux := newTestMux(&mockCDRService{}, sessions)

	body, contentType := multipartUpload(t, "file", sessionID.String(), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/cdr/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadMultiple_Success(t *testing.T) {
	sessionID := uuid.New()
	cdr := &mockCDRService{accepted: 7}
	sessions := &mockSessionService{known: map[uuid.UUID]bool{sessionID: true}}
	mux := newTestMux(cdr, sessions)

	body, contentType := multipartUpload(t, "files", sessionID.String(), map[string][]byte{
		"a.csv": []byte("x,y\n"),
		"b.csv": []byte("x,y\n"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/cdr/upload-multiple", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.RecordsProcessed)
	assert.Len(t, cdr.lastFiles, 2)
}

func TestAnalyze_Success(t *testing.T) {
	sessionID := uuid.New()
	cdr := &mockCDRService{graph: &models.GraphData{
		Nodes: []models.GraphNode{{ID: "6281234", Label: "6281234", Type: models.NodeTypePhone}},
		Edges: []models.GraphEdge{},
	}}
	sessions := &mockSessionService{known: map[uuid.UUID]bool{sessionID: true}}
	mux := newTestMux(cdr, sessions)

	payload := `{"session_id":"` + sessionID.String() + `","filter_options":{"node_types":["phone"]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/cdr/analyze", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var data models.GraphData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	require.Len(t, data.Nodes, 1)
	assert.Equal(t, "6281234", data.Nodes[0].ID)

	require.NotNil(t, cdr.lastOpts)
	assert.Equal(t, []string{"phone"}, cdr.lastOpts.NodeTypes)
}

func TestAnalyze_InvalidBody(t *testing.T) {
	mux := newTestMux(&mockCDRService{}, &mockSessionService{known: map[uuid.UUID]bool{}})

	req := httptest.NewRequest(http.MethodPost, "/api/cdr/analyze", strings.NewReader("{bad"))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
