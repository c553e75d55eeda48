package toolsurface

import (
	"github.com/gofr-iq/gofr-iq/internal/errs"
	"github.com/gofr-iq/gofr-iq/internal/graphindex"
)

// ExploredEdge is one relationship surfaced by explore_graph, carrying
// the depth it was discovered at so a caller can distinguish direct
// neighbors from further hops.
type ExploredEdge struct {
	FromGUID  string                 `json:"from_guid"`
	ToGUID    string                 `json:"to_guid"`
	Relation  graphindex.EdgeRelation `json:"relation"`
	Direction string                 `json:"direction"`
	Weight    float64                `json:"weight"`
	Depth     int                    `json:"depth"`
}

// exploreGraphResponse is explore_graph's {start_node, relationships[],
// total_found} output shape (spec.md §6).
type exploreGraphResponse struct {
	StartNode     *graphindex.NodeProperties `json:"start_node"`
	Relationships []ExploredEdge             `json:"relationships"`
	TotalFound    int                        `json:"total_found"`
}

const maxExploreDepth = 3

// ExploreGraph implements the explore_graph tool: a breadth-first walk
// from one start node out to max_depth hops (clamped to 3), collecting
// every touched edge until limit relationships have been found.
// node_id is resolved as a natural key first (ticker, sector code, ...)
// and falls back to a literal guid, since callers may supply either.
func (s *Surface) ExploreGraph(tokens []string, nodeType graphindex.NodeLabel, nodeID string, relationTypes []graphindex.EdgeRelation, maxDepth, limit int) Envelope {
	if maxDepth <= 0 || maxDepth > maxExploreDepth {
		maxDepth = maxExploreDepth
	}
	if limit <= 0 {
		limit = 50
	}

	startGUID, err := s.graph.FindNodeByNaturalKey(nodeType, nodeID)
	if err != nil {
		return errEnvelope(err)
	}
	if startGUID == "" {
		startGUID = nodeID
	}
	startNode, err := s.graph.GetNode(startGUID)
	if err != nil {
		return errEnvelope(err)
	}
	if startNode == nil {
		return errEnvelope(errs.New(errs.CodeValidationError, "check node_type and node_id", "no node found for %s/%s", nodeType, nodeID))
	}

	visited := map[string]bool{startGUID: true}
	frontier := []string{startGUID}
	var relationships []ExploredEdge

	for depth := 1; depth <= maxDepth && len(relationships) < limit && len(frontier) > 0; depth++ {
		var next []string
		for _, guid := range frontier {
			edges, err := s.graph.GetAdjacentEdges(guid, relationTypes)
			if err != nil {
				return errEnvelope(err)
			}
			for _, e := range edges {
				if len(relationships) >= limit {
					break
				}
				from, to := guid, e.OtherGUID
				if e.Direction == "incoming" {
					from, to = e.OtherGUID, guid
				}
				relationships = append(relationships, ExploredEdge{
					FromGUID: from, ToGUID: to, Relation: e.Relation,
					Direction: e.Direction, Weight: e.Weight, Depth: depth,
				})
				if !visited[e.OtherGUID] {
					visited[e.OtherGUID] = true
					next = append(next, e.OtherGUID)
				}
			}
		}
		frontier = next
	}

	return ok(exploreGraphResponse{StartNode: startNode, Relationships: relationships, TotalFound: len(relationships)})
}
