package services

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/callgraph-labs/cdr-engine/pkg/models"
)

// edgeEndpointTypes returns the node kinds at each end of an edge. The
// relationship alone determines them: calls edges join phones, uses edges
// join a phone to a device, located_at edges join a phone to a location.
func edgeEndpointTypes(relationship string) (string, string) {
	switch relationship {
	case models.RelationshipUses:
		return models.NodeTypePhone, models.NodeTypeDevice
	case models.RelationshipLocatedAt:
		return models.NodeTypePhone, models.NodeTypeLocation
	default:
		return models.NodeTypePhone, models.NodeTypePhone
	}
}

// Serialize converts the graph to its portable node/edge representation.
// Nodes are ordered by type then id, edges by relationship then source then
// target, so building the same record set twice yields byte-identical JSON.
func (g *Graph) Serialize() *models.GraphData {
	nodes := make([]models.GraphNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, *n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Type != nodes[j].Type {
			return nodes[i].Type < nodes[j].Type
		}
		return nodes[i].ID < nodes[j].ID
	})

	edges := make([]models.GraphEdge, 0, len(g.calls)+len(g.relations))
	for _, e := range g.calls {
		edges = append(edges, *e)
	}
	for rel := range g.relations {
		edges = append(edges, models.GraphEdge{
			Source:       rel.Source,
			Target:       rel.Target,
			Weight:       1,
			Relationship: rel.Relationship,
			Calls:        []models.CallEntry{},
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Relationship != edges[j].Relationship {
			return edges[i].Relationship < edges[j].Relationship
		}
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	return &models.GraphData{Nodes: nodes, Edges: edges}
}

// DeserializeGraph reconstructs the in-memory graph from its portable form,
// the exact inverse of Serialize including all edge attributes.
func DeserializeGraph(data *models.GraphData) *Graph {
	g := NewGraph()
	for _, n := range data.Nodes {
		g.addNode(n.Type, n.ID, n.Label)
	}
	for _, e := range data.Edges {
		if e.Relationship == models.RelationshipCalls {
			copied := e
			if copied.Calls == nil {
				copied.Calls = []models.CallEntry{}
			}
			g.calls[newPairKey(e.Source, e.Target)] = &copied
			continue
		}
		g.addRelation(e.Source, e.Target, e.Relationship)
	}
	return g
}

// MarshalGraph renders the portable form as the JSON blob stored per session.
func MarshalGraph(data *models.GraphData) ([]byte, error) {
	blob, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}
	return blob, nil
}

// UnmarshalGraph parses a stored graph blob. An empty blob is an empty graph.
func UnmarshalGraph(blob []byte) (*models.GraphData, error) {
	if len(blob) == 0 {
		return EmptyGraphData(), nil
	}
	var data models.GraphData
	if err := json.Unmarshal(blob, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	if data.Nodes == nil {
		data.Nodes = []models.GraphNode{}
	}
	if data.Edges == nil {
		data.Edges = []models.GraphEdge{}
	}
	return &data, nil
}

// EmptyGraphData returns the node/edge representation a session is seeded
// with before its first build.
func EmptyGraphData() *models.GraphData {
	return &models.GraphData{Nodes: []models.GraphNode{}, Edges: []models.GraphEdge{}}
}
