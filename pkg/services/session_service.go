package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callgraph-labs/cdr-engine/pkg/apperrors"
	"github.com/callgraph-labs/cdr-engine/pkg/models"
	"github.com/callgraph-labs/cdr-engine/pkg/repositories"
)

// SessionService manages the lifecycle of analysis sessions.
type SessionService interface {
	Create(ctx context.Context, name, description string) (*models.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	List(ctx context.Context) ([]*models.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Exists reports whether the session is known. Positive answers are
	// cached for a bounded time; on a datastore error the check fails
	// closed instead of assuming existence.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type sessionService struct {
	repo   repositories.SessionRepository
	cache  *existenceCache
	logger *zap.Logger
}

// NewSessionService creates the session service. ttl and maxEntries bound
// the positive existence cache.
func NewSessionService(repo repositories.SessionRepository, ttl time.Duration, maxEntries int, logger *zap.Logger) SessionService {
	return &sessionService{
		repo:   repo,
		cache:  newExistenceCache(ttl, maxEntries),
		logger: logger,
	}
}

func (s *sessionService) Create(ctx context.Context, name, description string) (*models.Session, error) {
	blob, err := MarshalGraph(EmptyGraphData())
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		Name:        name,
		Description: description,
		GraphData:   blob,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.cache.put(session.ID)
	s.logger.Info("created session", zap.String("session_id", session.ID.String()), zap.String("name", name))
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.put(id)
	return session, nil
}

func (s *sessionService) List(ctx context.Context) ([]*models.Session, error) {
	return s.repo.List(ctx)
}

func (s *sessionService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.remove(id)
	s.logger.Info("deleted session", zap.String("session_id", id.String()))
	return nil
}

func (s *sessionService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.cache.has(id) {
		return true, nil
	}

	_, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		// Fail closed: a transient datastore error must not let writes
		// through to a session that may not exist.
		return false, err
	}

	s.cache.put(id)
	return true, nil
}

// existenceCache is a bounded, time-limited positive cache of session IDs.
// Only positive answers are cached; absence is always re-checked.
type existenceCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[uuid.UUID]time.Time
}

func newExistenceCache(ttl time.Duration, maxEntries int) *existenceCache {
	return &existenceCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[uuid.UUID]time.Time),
	}
}

func (c *existenceCache) has(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.entries[id]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(c.entries, id)
		return false
	}
	return true
}

func (c *existenceCache) put(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[id] = time.Now().Add(c.ttl)
}

func (c *existenceCache) remove(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// evictLocked drops expired entries, or the soonest-to-expire entry when
// nothing has expired yet. Caller holds the lock.
func (c *existenceCache) evictLocked() {
	now := time.Now()
	var (
		oldest    uuid.UUID
		oldestExp time.Time
		found     bool
	)
	for id, expiry := range c.entries {
		if now.After(expiry) {
			delete(c.entries, id)
			continue
		}
		if !found || expiry.Before(oldestExp) {
			oldest, oldestExp, found = id, expiry, true
		}
	}
	if len(c.entries) >= c.maxEntries && found {
		delete(c.entries, oldest)
	}
}

// Ensure sessionService implements SessionService at compile time.
var _ SessionService = (*sessionService)(nil)
