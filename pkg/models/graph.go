package models

import (
	"fmt"
	"time"
)

// Node types in the relationship graph.
const (
	NodeTypePhone    = "phone"
	NodeTypeDevice   = "device"
	NodeTypeLocation = "location"
)

// Edge relationships in the relationship graph.
const (
	RelationshipCalls     = "calls"
	RelationshipUses      = "uses"
	RelationshipLocatedAt = "located_at"
)

// NaiveTimeLayout is the timezone-naive timestamp layout used throughout the
// graph contract. Other layers depend on this exact rendering.
const NaiveTimeLayout = "2006-01-02T15:04:05"

// NaiveTime is a timezone-naive instant. It marshals without an offset so
// serialized graphs are stable regardless of server timezone configuration.
type NaiveTime struct {
	time.Time
}

func (t NaiveTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format(NaiveTimeLayout) + `"`), nil
}

func (t *NaiveTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid timestamp: %s", s)
	}
	parsed, err := time.Parse(NaiveTimeLayout, s[1:len(s)-1])
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	t.Time = parsed
	return nil
}

// GraphNode is one node in the serialized graph.
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// CallEntry is one aggregated call event on a "calls" edge.
type CallEntry struct {
	Timestamp NaiveTime `json:"timestamp"`
	Duration  int       `json:"duration"`
	CallType  string    `json:"call_type"`
}

// GraphEdge is one edge in the serialized graph. The field names are the
// exact contract other layers depend on for backward compatibility.
type GraphEdge struct {
	Source       string      `json:"source"`
	Target       string      `json:"target"`
	Weight       int         `json:"weight"`
	Relationship string      `json:"relationship"`
	Calls        []CallEntry `json:"calls"`
}

// GraphData is the portable node/edge representation of a session graph.
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// DateRange restricts call-log entries to an interval. Both bounds are
// optional and inclusive.
type DateRange struct {
	Start *NaiveTime `json:"start,omitempty"`
	End   *NaiveTime `json:"end,omitempty"`
}

// FilterOptions are the post-hoc graph filters a query may request.
type FilterOptions struct {
	NodeTypes []string   `json:"node_types,omitempty"`
	DateRange *DateRange `json:"date_range,omitempty"`
}
