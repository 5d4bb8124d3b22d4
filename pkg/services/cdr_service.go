package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callgraph-labs/cdr-engine/pkg/logging"
	"github.com/callgraph-labs/cdr-engine/pkg/models"
	"github.com/callgraph-labs/cdr-engine/pkg/repositories"
)

// UploadFile is one file in a multi-file ingestion batch.
type UploadFile struct {
	Filename string
	Content  []byte
}

// CDRService is the ingestion and graph-query entry point the request layer
// calls into.
type CDRService interface {
	// Ingest runs one file through the normalization pipeline, commits the
	// surviving records and rebuilds the session graph. Returns the
	// accepted record count.
	Ingest(ctx context.Context, content []byte, filename string, sessionID uuid.UUID) (int, error)
	// IngestMany processes files one at a time in the given order. A
	// failing file is logged and skipped; it never fails the batch.
	// Returns the summed accepted count of the successful files.
	IngestMany(ctx context.Context, files []UploadFile, sessionID uuid.UUID) (int, error)
	// QueryGraph loads the session's stored graph, applies the requested
	// filters and returns the filtered serialization.
	QueryGraph(ctx context.Context, sessionID uuid.UUID, opts *models.FilterOptions) (*models.GraphData, error)
}

// cdrService wires the pipeline stages to the persistence layer.
type cdrService struct {
	detector  *DialectDetector
	columns   *ColumnNormalizer
	temporal  *TemporalNormalizer
	validator *RecordValidator
	builder   *GraphBuilder
	filter    *GraphFilter
	sessions  repositories.SessionRepository
	records   repositories.CDRRecordRepository
	logger    *zap.Logger
}

// NewCDRService creates the CDR ingestion service.
func NewCDRService(
	sessions repositories.SessionRepository,
	records repositories.CDRRecordRepository,
	invalidBNumbers []string,
	logger *zap.Logger,
) CDRService {
	return &cdrService{
		detector:  NewDialectDetector(logger),
		columns:   NewColumnNormalizer(logger),
		temporal:  NewTemporalNormalizer(logger),
		validator: NewRecordValidator(invalidBNumbers, logger),
		builder:   NewGraphBuilder(logger),
		filter:    NewGraphFilter(),
		sessions:  sessions,
		records:   records,
		logger:    logger,
	}
}

func (s *cdrService) Ingest(ctx context.Context, content []byte, filename string, sessionID uuid.UUID) (int, error) {
	table, schema, err := s.detector.Detect(content, filename)
	if err != nil {
		return 0, err
	}

	s.columns.Normalize(table, schema)

	timestamps, err := s.temporal.Normalize(table, schema)
	if err != nil {
		return 0, err
	}

	records, err := s.validator.Validate(table, timestamps)
	if err != nil {
		return 0, err
	}

	accepted, err := s.records.Append(ctx, sessionID, records)
	if err != nil {
		return 0, err
	}

	if err := s.rebuildGraph(ctx, sessionID); err != nil {
		return 0, err
	}

	count, err := s.records.CountBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if err := s.sessions.UpdateRecordCount(ctx, sessionID, count); err != nil {
		return 0, err
	}

	s.logger.Info("ingested CDR file",
		zap.String("filename", filename),
		zap.String("session_id", sessionID.String()),
		zap.Int("accepted", accepted))

	return accepted, nil
}

func (s *cdrService) IngestMany(ctx context.Context, files []UploadFile, sessionID uuid.UUID) (int, error) {
	total := 0
	for _, file := range files {
		accepted, err := s.Ingest(ctx, file.Content, file.Filename, sessionID)
		if err != nil {
			// Per-file isolation: log, skip, keep going.
			s.logger.Warn("skipping failed file in batch",
				zap.String("filename", file.Filename),
				zap.String("session_id", sessionID.String()),
				zap.String("error", logging.SanitizeRow(err.Error())))
			continue
		}
		total += accepted
	}
	return total, nil
}

func (s *cdrService) QueryGraph(ctx context.Context, sessionID uuid.UUID, opts *models.FilterOptions) (*models.GraphData, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	data, err := UnmarshalGraph(session.GraphData)
	if err != nil {
		return nil, fmt.Errorf("stored graph for session %s is corrupt: %w", sessionID, err)
	}

	return s.filter.Apply(data, opts), nil
}

// rebuildGraph reconstructs the session graph from the complete persisted
// record set and replaces the stored blob in full. Graph state stays a pure
// function of all records at the cost of O(records) work per ingest.
func (s *cdrService) rebuildGraph(ctx context.Context, sessionID uuid.UUID) error {
	all, err := s.records.AllBySession(ctx, sessionID)
	if err != nil {
		return err
	}

	graph := s.builder.Build(all)
	blob, err := MarshalGraph(graph.Serialize())
	if err != nil {
		return err
	}

	return s.sessions.UpdateGraph(ctx, sessionID, blob)
}

// Ensure cdrService implements CDRService at compile time.
var _ CDRService = (*cdrService)(nil)
