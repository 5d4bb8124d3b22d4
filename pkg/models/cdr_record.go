package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CDRRecord is one normalized call/data event belonging to a session.
// Optional fields are empty strings when the source column was absent.
type CDRRecord struct {
	ID           int64     `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	CallType     string    `json:"call_type"`
	ANumber      string    `json:"a_number"`
	BNumber      string    `json:"b_number"`
	CNumber      string    `json:"c_number,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Duration     int       `json:"duration_seconds"`
	DeviceID     string    `json:"device_id,omitempty"`
	DeviceType   string    `json:"device_type,omitempty"`
	SubscriberID string    `json:"subscriber_id,omitempty"`
	LocationID   string    `json:"location_id,omitempty"`
	SiteName     string    `json:"site_name,omitempty"`
	Direction    string    `json:"direction,omitempty"`
	Latitude     string    `json:"latitude,omitempty"`
	Longitude    string    `json:"longitude,omitempty"`
}

// IsGPRS reports whether the record is a data session. GPRS records are
// validated under relaxed rules: they legitimately have no B-party.
func (r *CDRRecord) IsGPRS() bool {
	return strings.EqualFold(r.CallType, "GPRS")
}
