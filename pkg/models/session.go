package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a logical workspace grouping an uploaded dataset and its
// derived relationship graph.
type Session struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	RecordCount int       `json:"record_count"`
	// GraphData holds the serialized graph for this session. It is seeded
	// with an empty graph at creation and replaced in full on every ingest.
	GraphData []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
