package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/callgraph-labs/cdr-engine/pkg/database"
	"github.com/callgraph-labs/cdr-engine/pkg/models"
)

// CDRRecordRepository defines the interface for canonical record data access.
type CDRRecordRepository interface {
	// Append commits a validated batch for the session and returns the
	// accepted count.
	Append(ctx context.Context, sessionID uuid.UUID, records []models.CDRRecord) (int, error)
	// AllBySession returns every persisted record for the session in
	// insertion order.
	AllBySession(ctx context.Context, sessionID uuid.UUID) ([]models.CDRRecord, error)
	// CountBySession returns the number of persisted records for the session.
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error)
}

// cdrRecordRepository implements CDRRecordRepository using PostgreSQL.
type cdrRecordRepository struct {
	db *database.DB
}

// NewCDRRecordRepository creates a new CDR record repository.
func NewCDRRecordRepository(db *database.DB) CDRRecordRepository {
	return &cdrRecordRepository{db: db}
}

var recordColumns = []string{
	"session_id", "call_type", "a_number", "b_number", "c_number",
	"timestamp", "duration_seconds", "device_id", "device_type",
	"subscriber_id", "location_id", "site_name", "direction",
	"latitude", "longitude",
}

// Append bulk-inserts the batch with COPY. The whole batch commits or none
// of it does.
func (r *cdrRecordRepository) Append(ctx context.Context, sessionID uuid.UUID, records []models.CDRRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", classifyError(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"cdr_records"},
		recordColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			rec := records[i]
			return []any{
				sessionID,
				rec.CallType,
				rec.ANumber,
				rec.BNumber,
				rec.CNumber,
				rec.Timestamp,
				rec.Duration,
				rec.DeviceID,
				rec.DeviceType,
				rec.SubscriberID,
				rec.LocationID,
				rec.SiteName,
				rec.Direction,
				rec.Latitude,
				rec.Longitude,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append records: %w", classifyError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit records: %w", classifyError(err))
	}

	return int(copied), nil
}

// AllBySession returns the complete persisted record set for the session.
func (r *cdrRecordRepository) AllBySession(ctx context.Context, sessionID uuid.UUID) ([]models.CDRRecord, error) {
	query := `
		SELECT id, session_id, call_type, a_number, b_number, c_number,
		       timestamp, duration_seconds, device_id, device_type,
		       subscriber_id, location_id, site_name, direction,
		       latitude, longitude
		FROM cdr_records
		WHERE session_id = $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", classifyError(err))
	}
	defer rows.Close()

	var records []models.CDRRecord
	for rows.Next() {
		var rec models.CDRRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.CallType,
			&rec.ANumber,
			&rec.BNumber,
			&rec.CNumber,
			&rec.Timestamp,
			&rec.Duration,
			&rec.DeviceID,
			&rec.DeviceType,
			&rec.SubscriberID,
			&rec.LocationID,
			&rec.SiteName,
			&rec.Direction,
			&rec.Latitude,
			&rec.Longitude,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", classifyError(err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", classifyError(err))
	}

	return records, nil
}

// CountBySession returns the persisted record count for the session.
func (r *cdrRecordRepository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM cdr_records WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", classifyError(err))
	}
	return count, nil
}

// Ensure cdrRecordRepository implements CDRRecordRepository at compile time.
var _ CDRRecordRepository = (*cdrRecordRepository)(nil)
