package sitetree

import (
	"fmt"

	"github.com/foomo/sitemap-mcp/service/vo"
)

const (
	NodeWidth  = 250
	NodeHeight = 120
)

// LayoutNode is the input of a layout pass.
type LayoutNode struct {
	ID     string
	Width  float64
	Height float64
}

// Layouter assigns top-left positions to nodes connected by parent->child
// edges.
type Layouter interface {
	Layout(nodes []LayoutNode, edges []vo.GraphEdge) (map[string]vo.Position, error)
}

// BuildGraph projects pages into one node per page and one edge per parent
// relation, positioned by layouter (DefaultLayout when nil).
func BuildGraph(pages []vo.Page, layouter Layouter) (*vo.Graph, error) {
	if layouter == nil {
		layouter = DefaultLayout
	}

	known := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		known[p.ID] = struct{}{}
	}

	layoutNodes := make([]LayoutNode, 0, len(pages))
	edges := make([]vo.GraphEdge, 0, len(pages))
	for _, p := range pages {
		layoutNodes = append(layoutNodes, LayoutNode{ID: p.ID, Width: NodeWidth, Height: NodeHeight})
		if p.ParentID == nil {
			continue
		}
		if _, ok := known[*p.ParentID]; !ok {
			return nil, fmt.Errorf("%w: %s references missing parent %s", ErrMalformedTree, p.ID, *p.ParentID)
		}
		edges = append(edges, vo.GraphEdge{
			ID:     "e" + *p.ParentID + "-" + p.ID,
			Source: *p.ParentID,
			Target: p.ID,
		})
	}

	positions, err := layouter.Layout(layoutNodes, edges)
	if err != nil {
		return nil, fmt.Errorf("failed to lay out graph: %w", err)
	}

	graph := &vo.Graph{Nodes: make([]vo.GraphNode, 0, len(pages)), Edges: edges}
	for _, p := range pages {
		pos, ok := positions[p.ID]
		if !ok {
			return nil, fmt.Errorf("layout returned no position for %s", p.ID)
		}
		graph.Nodes = append(graph.Nodes, vo.GraphNode{
			ID:       p.ID,
			Page:     p,
			Position: pos,
			Width:    NodeWidth,
			Height:   NodeHeight,
		})
	}
	return graph, nil
}
