package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/callgraph-labs/cdr-engine/pkg/apperrors"
)

func newTestSessionService(repo *mockSessionRepository, ttl time.Duration) SessionService {
	return NewSessionService(repo, ttl, 16, zap.NewNop())
}

func TestSessionCreate_SeedsEmptyGraph(t *testing.T) {
	repo := newMockSessionRepository()
	svc := newTestSessionService(repo, time.Minute)

	session, err := svc.Create(context.Background(), "case-1", "burner ring")

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, session.ID)
	assert.Equal(t, "case-1", session.Name)

	data, err := UnmarshalGraph(session.GraphData)
	require.NoError(t, err)
	assert.Empty(t, data.Nodes)
	assert.Empty(t, data.Edges)
}

func TestSessionExists_KnownAndUnknown(t *testing.T) {
	repo := newMockSessionRepository()
	svc := newTestSessionService(repo, time.Minute)

	session, err := svc.Create(context.Background(), "case-1", "")
	require.NoError(t, err)

	exists, err := svc.Exists(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.Exists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionExists_FailsClosedOnDatastoreError(t *testing.T) {
	repo := newMockSessionRepository()
	svc := newTestSessionService(repo, time.Minute)

	id := uuid.New()
	repo.sessions[id] = nil
	repo.getErr = errors.New("connection refused")

	exists, err := svc.Exists(context.Background(), id)

	require.Error(t, err)
	assert.False(t, exists)
}

func TestSessionExists_PositiveAnswerCached(t *testing.T) {
	repo := newMockSessionRepository()
	svc := newTestSessionService(repo, time.Minute)

	session, err := svc.Create(context.Background(), "case-1", "")
	require.NoError(t, err)

	// A datastore outage after the first check does not disturb the cached
	// positive answer.
	repo.getErr = errors.New("connection refused")

	exists, err := svc.Exists(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSessionExists_CacheExpires(t *testing.T) {
	repo := newMockSessionRepository()
	svc := newTestSessionService(repo, time.Millisecond)

	session, err := svc.Create(context.Background(), "case-1", "")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	repo.getErr = errors.New("connection refused")

	_, err = svc.Exists(context.Background(), session.ID)
	assert.Error(t, err)
}

func TestSessionDelete_EvictsCache(t *testing.T) {
	repo := newMockSessionRepository()
	svc := newTestSessionService(repo, time.Minute)

	session, err := svc.Create(context.Background(), "case-1", "")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), session.ID))

	exists, err := svc.Exists(context.Background(), session.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionDelete_Unknown(t *testing.T) {
	repo := newMockSessionRepository()
	svc := newTestSessionService(repo, time.Minute)

	err := svc.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestExistenceCache_Bounded(t *testing.T) {
	cache := newExistenceCache(time.Minute, 2)

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	cache.put(a)
	cache.put(b)
	cache.put(c)

	assert.LessOrEqual(t, len(cache.entries), 2)
	assert.True(t, cache.has(c))
}
