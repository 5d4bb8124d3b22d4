package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/callgraph-labs/cdr-engine/pkg/apperrors"
	"github.com/callgraph-labs/cdr-engine/pkg/database"
	"github.com/callgraph-labs/cdr-engine/pkg/models"
)

// SessionRepository defines the interface for session data access.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	List(ctx context.Context) ([]*models.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateGraph(ctx context.Context, id uuid.UUID, blob []byte) error
	UpdateRecordCount(ctx context.Context, id uuid.UUID, count int) error
}

// sessionRepository implements SessionRepository using PostgreSQL.
type sessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *database.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Create inserts a new session. A missing ID is generated here so callers
// can pre-assign IDs in tests.
func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now()

	query := `
		INSERT INTO sessions (id, name, description, record_count, graph_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		session.ID,
		session.Name,
		session.Description,
		session.RecordCount,
		session.GraphData,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", classifyError(err))
	}

	return nil
}

// Get retrieves a session by ID.
func (r *sessionRepository) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), record_count, graph_data, created_at
		FROM sessions
		WHERE id = $1`

	var session models.Session
	err := r.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.Name,
		&session.Description,
		&session.RecordCount,
		&session.GraphData,
		&session.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", classifyError(err))
	}

	return &session, nil
}

// List returns all sessions, newest first.
func (r *sessionRepository) List(ctx context.Context) ([]*models.Session, error) {
	query := `
		SELECT id, name, COALESCE(description, ''), record_count, graph_data, created_at
		FROM sessions
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", classifyError(err))
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID,
			&session.Name,
			&session.Description,
			&session.RecordCount,
			&session.GraphData,
			&session.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", classifyError(err))
		}
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", classifyError(err))
	}

	return sessions, nil
}

// Delete removes a session by ID.
// Related CDR records are automatically deleted via CASCADE.
func (r *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", classifyError(err))
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateGraph replaces the session's serialized graph blob in full.
func (r *sessionRepository) UpdateGraph(ctx context.Context, id uuid.UUID, blob []byte) error {
	result, err := r.db.Exec(ctx, `UPDATE sessions SET graph_data = $2 WHERE id = $1`, id, blob)
	if err != nil {
		return fmt.Errorf("failed to update session graph: %w", classifyError(err))
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateRecordCount stores the recomputed record count for the session.
func (r *sessionRepository) UpdateRecordCount(ctx context.Context, id uuid.UUID, count int) error {
	result, err := r.db.Exec(ctx, `UPDATE sessions SET record_count = $2 WHERE id = $1`, id, count)
	if err != nil {
		return fmt.Errorf("failed to update session record count: %w", classifyError(err))
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Ensure sessionRepository implements SessionRepository at compile time.
var _ SessionRepository = (*sessionRepository)(nil)
