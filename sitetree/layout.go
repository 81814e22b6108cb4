package sitetree

import (
	"fmt"

	"github.com/foomo/sitemap-mcp/service/vo"
)

// LayeredLayout is a top-down tree layout: the rank of a node is its depth,
// leaves are spread left to right and parents are centred above their
// children.
type LayeredLayout struct {
	RankSep float64
	NodeSep float64
}

var DefaultLayout = LayeredLayout{RankSep: 80, NodeSep: 40}

func (l LayeredLayout) Layout(nodes []LayoutNode, edges []vo.GraphEdge) (map[string]vo.Position, error) {
	size := make(map[string]LayoutNode, len(nodes))
	rowHeight := 0.0
	for _, n := range nodes {
		size[n.ID] = n
		if n.Height > rowHeight {
			rowHeight = n.Height
		}
	}

	children := make(map[string][]string, len(nodes))
	hasParent := make(map[string]bool, len(nodes))
	for _, e := range edges {
		children[e.Source] = append(children[e.Source], e.Target)
		hasParent[e.Target] = true
	}

	centers := make(map[string]vo.Position, len(nodes))
	seen := make(map[string]bool, len(nodes))
	cursor := 0.0
	var place func(id string, depth int) (float64, error)
	place = func(id string, depth int) (float64, error) {
		if depth > MaxDepth {
			return 0, fmt.Errorf("%w: deeper than %d levels", ErrMalformedTree, MaxDepth)
		}
		seen[id] = true
		n := size[id]
		y := float64(depth)*(rowHeight+l.RankSep) + rowHeight/2
		var first, last float64
		placed := 0
		for _, c := range children[id] {
			if seen[c] {
				continue
			}
			x, err := place(c, depth+1)
			if err != nil {
				return 0, err
			}
			if placed == 0 {
				first = x
			}
			last = x
			placed++
		}
		var x float64
		if placed == 0 {
			x = cursor + n.Width/2
			cursor += n.Width + l.NodeSep
		} else {
			x = (first + last) / 2
		}
		centers[id] = vo.Position{X: x, Y: y}
		return x, nil
	}

	for _, n := range nodes {
		if hasParent[n.ID] {
			continue
		}
		if _, err := place(n.ID, 0); err != nil {
			return nil, err
		}
	}
	// nodes on a cycle have a parent but are never reached from a root
	for _, n := range nodes {
		if seen[n.ID] {
			continue
		}
		if _, err := place(n.ID, 0); err != nil {
			return nil, err
		}
	}

	positions := make(map[string]vo.Position, len(nodes))
	for id, c := range centers {
		n := size[id]
		positions[id] = vo.Position{X: c.X - n.Width/2, Y: c.Y - n.Height/2}
	}
	return positions, nil
}
