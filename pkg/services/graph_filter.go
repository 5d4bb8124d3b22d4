package services

import (
	"github.com/callgraph-labs/cdr-engine/pkg/models"
)

// GraphFilter applies post-hoc query filters to a deserialized graph,
// producing a new serialized graph. The stored blob is never mutated.
type GraphFilter struct{}

// NewGraphFilter creates a new graph filter.
func NewGraphFilter() *GraphFilter {
	return &GraphFilter{}
}

// Apply runs the requested filters and prunes nodes left without any
// incident edge. Pruning is unconditional: it runs even when opts is nil,
// keeping the response graph tidy.
func (f *GraphFilter) Apply(data *models.GraphData, opts *models.FilterOptions) *models.GraphData {
	g := DeserializeGraph(data)

	if opts != nil && len(opts.NodeTypes) > 0 {
		filterNodeTypes(g, opts.NodeTypes)
	}
	if opts != nil && opts.DateRange != nil {
		filterDateRange(g, opts.DateRange)
	}
	pruneIsolated(g)

	return g.Serialize()
}

// filterNodeTypes keeps only nodes whose type is in the allow-list; removing
// a node removes its incident edges.
func filterNodeTypes(g *Graph, nodeTypes []string) {
	allowed := make(map[string]struct{}, len(nodeTypes))
	for _, t := range nodeTypes {
		allowed[t] = struct{}{}
	}

	for key := range g.nodes {
		if _, ok := allowed[key.Type]; !ok {
			delete(g.nodes, key)
		}
	}

	for key, edge := range g.calls {
		if !g.hasNode(models.NodeTypePhone, edge.Source) || !g.hasNode(models.NodeTypePhone, edge.Target) {
			delete(g.calls, key)
		}
	}
	for key := range g.relations {
		sourceType, targetType := edgeEndpointTypes(key.Relationship)
		if !g.hasNode(sourceType, key.Source) || !g.hasNode(targetType, key.Target) {
			delete(g.relations, key)
		}
	}
}

// filterDateRange retains only call-log entries whose timestamp falls inside
// the bounds, both inclusive. An edge left with no entries is dropped;
// otherwise its weight becomes the surviving count.
func filterDateRange(g *Graph, dateRange *models.DateRange) {
	for key, edge := range g.calls {
		// Fresh slice: the deserialized edge shares its backing array with
		// the caller's GraphData.
		kept := make([]models.CallEntry, 0, len(edge.Calls))
		for _, call := range edge.Calls {
			if dateRange.Start != nil && call.Timestamp.Before(dateRange.Start.Time) {
				continue
			}
			if dateRange.End != nil && call.Timestamp.After(dateRange.End.Time) {
				continue
			}
			kept = append(kept, call)
		}
		if len(kept) == 0 {
			delete(g.calls, key)
			continue
		}
		edge.Calls = kept
		edge.Weight = len(kept)
	}
}

// pruneIsolated removes every node with no incident edge.
func pruneIsolated(g *Graph) {
	incident := make(map[nodeKey]struct{})
	for _, edge := range g.calls {
		incident[nodeKey{Type: models.NodeTypePhone, ID: edge.Source}] = struct{}{}
		incident[nodeKey{Type: models.NodeTypePhone, ID: edge.Target}] = struct{}{}
	}
	for rel := range g.relations {
		sourceType, targetType := edgeEndpointTypes(rel.Relationship)
		incident[nodeKey{Type: sourceType, ID: rel.Source}] = struct{}{}
		incident[nodeKey{Type: targetType, ID: rel.Target}] = struct{}{}
	}

	for key := range g.nodes {
		if _, ok := incident[key]; !ok {
			delete(g.nodes, key)
		}
	}
}
