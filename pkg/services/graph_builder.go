package services

import (
	"go.uber.org/zap"

	"github.com/callgraph-labs/cdr-engine/pkg/models"
)

// sentinelIDs are identifier values that never become graph nodes.
var sentinelIDs = map[string]struct{}{
	"000": {},
	"UN":  {},
}

func isSentinel(id string) bool {
	_, ok := sentinelIDs[id]
	return ok
}

type nodeKey struct {
	Type string
	ID   string
}

// pairKey identifies a calls edge by its unordered endpoint pair.
type pairKey struct {
	Low  string
	High string
}

func newPairKey(a, b string) pairKey {
	if a <= b {
		return pairKey{Low: a, High: b}
	}
	return pairKey{Low: b, High: a}
}

// relKey identifies an unweighted relation edge.
type relKey struct {
	Source       string
	Target       string
	Relationship string
}

// Graph is the in-memory relationship graph for one session. Node ids are
// unique per kind-namespace: a phone number can never silently become a
// device id.
type Graph struct {
	nodes     map[nodeKey]*models.GraphNode
	calls     map[pairKey]*models.GraphEdge
	relations map[relKey]struct{}
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:     make(map[nodeKey]*models.GraphNode),
		calls:     make(map[pairKey]*models.GraphEdge),
		relations: make(map[relKey]struct{}),
	}
}

func (g *Graph) addNode(nodeType, id, label string) {
	g.nodes[nodeKey{Type: nodeType, ID: id}] = &models.GraphNode{ID: id, Label: label, Type: nodeType}
}

func (g *Graph) hasNode(nodeType, id string) bool {
	_, ok := g.nodes[nodeKey{Type: nodeType, ID: id}]
	return ok
}

// addCall upserts the calls edge between two phone nodes: an existing edge
// gains weight and a call-log entry, a new one starts at weight 1. Edge
// identity is the unordered endpoint pair, so insertion order never creates
// a duplicate in the opposite direction.
func (g *Graph) addCall(a, b string, entry models.CallEntry) {
	key := newPairKey(a, b)
	if edge, ok := g.calls[key]; ok {
		edge.Weight++
		edge.Calls = append(edge.Calls, entry)
		return
	}
	g.calls[key] = &models.GraphEdge{
		Source:       a,
		Target:       b,
		Weight:       1,
		Relationship: models.RelationshipCalls,
		Calls:        []models.CallEntry{entry},
	}
}

// addRelation adds an unweighted relation edge. Re-adding is a no-op.
func (g *Graph) addRelation(source, target, relationship string) {
	g.relations[relKey{Source: source, Target: target, Relationship: relationship}] = struct{}{}
}

// GraphBuilder folds a session's complete record set into a relationship
// graph. The graph is always rebuilt from scratch so its state is a pure
// function of all persisted records, which sidesteps double-counting on
// repeated ingests into the same session.
type GraphBuilder struct {
	logger *zap.Logger
}

// NewGraphBuilder creates a new graph builder.
func NewGraphBuilder(logger *zap.Logger) *GraphBuilder {
	return &GraphBuilder{logger: logger}
}

// Build constructs the graph from the complete persisted record set.
func (b *GraphBuilder) Build(records []models.CDRRecord) *Graph {
	g := NewGraph()

	// Phone nodes for both parties.
	for _, r := range records {
		if r.ANumber != "" && !isSentinel(r.ANumber) {
			g.addNode(models.NodeTypePhone, r.ANumber, r.ANumber)
		}
		if r.BNumber != "" && !isSentinel(r.BNumber) {
			g.addNode(models.NodeTypePhone, r.BNumber, r.BNumber)
		}
	}

	// Device nodes carry type and subscriber identity in the label.
	for _, r := range records {
		if r.DeviceID == "" || isSentinel(r.DeviceID) {
			continue
		}
		label := "IMEI: " + r.DeviceID
		if r.DeviceType != "" {
			label += "\n" + r.DeviceType
		}
		if r.SubscriberID != "" {
			label += "\nIMSI: " + r.SubscriberID
		}
		g.addNode(models.NodeTypeDevice, r.DeviceID, label)
	}

	// Edges.
	for _, r := range records {
		if g.hasNode(models.NodeTypePhone, r.ANumber) && g.hasNode(models.NodeTypePhone, r.BNumber) {
			g.addCall(r.ANumber, r.BNumber, models.CallEntry{
				Timestamp: models.NaiveTime{Time: r.Timestamp},
				Duration:  r.Duration,
				CallType:  r.CallType,
			})
		}

		if !g.hasNode(models.NodeTypePhone, r.ANumber) {
			continue
		}

		if r.DeviceID != "" && !isSentinel(r.DeviceID) {
			g.addRelation(r.ANumber, r.DeviceID, models.RelationshipUses)
		}

		if r.LocationID != "" && !isSentinel(r.LocationID) {
			label := "LOC: " + r.LocationID
			if r.SiteName != "" {
				label += " (" + r.SiteName + ")"
			}
			if r.Latitude != "" && r.Longitude != "" {
				label += "\n" + r.Latitude + ", " + r.Longitude
			}
			g.addNode(models.NodeTypeLocation, r.LocationID, label)
			g.addRelation(r.ANumber, r.LocationID, models.RelationshipLocatedAt)
		}
	}

	b.logger.Debug("built graph",
		zap.Int("records", len(records)),
		zap.Int("nodes", len(g.nodes)),
		zap.Int("call_edges", len(g.calls)),
		zap.Int("relation_edges", len(g.relations)))

	return g
}
