// Package sitetree keeps the nested tree and the positioned graph of a site
// map consistent with its canonical flat page list.
//
// A Forest is an arena of nodes addressed by page id. Every node stores its
// parent id and the ordered ids of its children. Forests are immutable:
// edits return a new Forest that shares every untouched node with the old
// one, so callers holding the previous value are not affected.
package sitetree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/foomo/sitemap-mcp/service/vo"
)

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrInvalidMove   = errors.New("invalid move")
	ErrInvalidPatch  = errors.New("invalid patch")
	ErrNotLeaf       = errors.New("node has children")
	ErrDuplicateNode = errors.New("duplicate node")
	// ErrMalformedTree is returned when the parent relation contains a
	// cycle or nests deeper than MaxDepth.
	ErrMalformedTree = errors.New("malformed tree")
)

// MaxDepth bounds every recursive walk over a forest.
const MaxDepth = 64

type node struct {
	page     vo.Page
	parent   string
	children []string
	open     bool
}

func (n *node) clone() *node {
	c := *n
	c.children = append([]string(nil), n.children...)
	return &c
}

type Forest struct {
	nodes map[string]*node
	roots []string
}

// Len returns the number of nodes.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Page returns the page stored under id.
func (f *Forest) Page(id string) (vo.Page, bool) {
	n, ok := f.nodes[id]
	if !ok {
		return vo.Page{}, false
	}
	return n.page, true
}

// Roots returns the ids of the top level nodes in display order.
func (f *Forest) Roots() []string {
	return append([]string(nil), f.roots...)
}

// Children returns the ordered child ids of id.
func (f *Forest) Children(id string) []string {
	n, ok := f.nodes[id]
	if !ok {
		return nil
	}
	return append([]string(nil), n.children...)
}

// Parent returns the parent id of id, "" for roots.
func (f *Forest) Parent(id string) string {
	if n, ok := f.nodes[id]; ok {
		return n.parent
	}
	return ""
}

// IsOpen reports the UI expand state of id.
func (f *Forest) IsOpen(id string) bool {
	n, ok := f.nodes[id]
	return ok && n.open
}

// IsAncestor reports whether ancestor is id itself or one of its ancestors.
func (f *Forest) IsAncestor(ancestor, id string) bool {
	for depth := 0; id != "" && depth <= MaxDepth; depth++ {
		if id == ancestor {
			return true
		}
		n, ok := f.nodes[id]
		if !ok {
			return false
		}
		id = n.parent
	}
	return false
}

// BuildTree groups pages by parent. Children are ordered by MenuOrder, the
// root level by descendant count (largest sections first). A parent of "0"
// or an unknown parent makes a page a root.
func BuildTree(pages []vo.Page) (*Forest, error) {
	f := &Forest{nodes: make(map[string]*node, len(pages))}
	order := make([]string, 0, len(pages))
	for _, p := range pages {
		if _, ok := f.nodes[p.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, p.ID)
		}
		f.nodes[p.ID] = &node{page: p}
		order = append(order, p.ID)
	}

	for _, id := range order {
		n := f.nodes[id]
		parent := n.page.Parent()
		if _, ok := f.nodes[parent]; !ok || parent == "0" {
			parent = ""
		}
		n.parent = parent
		n.page.ParentID = vo.StringPtr(parent)
		if parent == "" {
			f.roots = append(f.roots, id)
		} else {
			f.nodes[parent].children = append(f.nodes[parent].children, id)
		}
	}

	for _, n := range f.nodes {
		f.sortByMenuOrder(n.children)
	}
	f.sortByMenuOrder(f.roots)

	counts := make(map[string]int, len(f.nodes))
	for _, id := range f.roots {
		if _, err := f.countDescendants(id, 0, counts); err != nil {
			return nil, err
		}
	}
	if len(counts) != len(f.nodes) {
		return nil, fmt.Errorf("%w: %d nodes are not reachable from a root", ErrMalformedTree, len(f.nodes)-len(counts))
	}
	sort.SliceStable(f.roots, func(i, j int) bool {
		return counts[f.roots[i]] > counts[f.roots[j]]
	})
	return f, nil
}

func (f *Forest) sortByMenuOrder(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return f.nodes[ids[i]].page.MenuOrder < f.nodes[ids[j]].page.MenuOrder
	})
}

func (f *Forest) countDescendants(id string, depth int, counts map[string]int) (int, error) {
	if depth > MaxDepth {
		return 0, fmt.Errorf("%w: deeper than %d levels at %s", ErrMalformedTree, MaxDepth, id)
	}
	if _, seen := counts[id]; seen {
		return 0, fmt.Errorf("%w: %s reached twice", ErrMalformedTree, id)
	}
	counts[id] = 0
	total := 0
	for _, c := range f.nodes[id].children {
		n, err := f.countDescendants(c, depth+1, counts)
		if err != nil {
			return 0, err
		}
		total += n + 1
	}
	counts[id] = total
	return total, nil
}

// DescendantCount returns the number of nodes below id.
func (f *Forest) DescendantCount(id string) int {
	n, ok := f.nodes[id]
	if !ok {
		return 0
	}
	total := 0
	stack := append([]string(nil), n.children...)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		total++
		stack = append(stack, f.nodes[c].children...)
	}
	return total
}

// FlattenTree returns the pages in pre-order with ParentID and MenuOrder
// recomputed from the current shape; MenuOrder becomes the sibling index.
func FlattenTree(f *Forest) ([]vo.Page, error) {
	out := make([]vo.Page, 0, len(f.nodes))
	var walk func(ids []string, parent string, depth int) error
	walk = func(ids []string, parent string, depth int) error {
		if depth > MaxDepth {
			return fmt.Errorf("%w: deeper than %d levels", ErrMalformedTree, MaxDepth)
		}
		for i, id := range ids {
			n := f.nodes[id]
			p := n.page
			p.ParentID = vo.StringPtr(parent)
			p.MenuOrder = i
			out = append(out, p)
			if err := walk(n.children, id, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(f.roots, "", 0); err != nil {
		return nil, err
	}
	return out, nil
}

// Nested materializes the forest as nested TreeNodes for the tree view.
func Nested(f *Forest) ([]*vo.TreeNode, error) {
	var build func(ids []string, depth int) ([]*vo.TreeNode, error)
	build = func(ids []string, depth int) ([]*vo.TreeNode, error) {
		if depth > MaxDepth {
			return nil, fmt.Errorf("%w: deeper than %d levels", ErrMalformedTree, MaxDepth)
		}
		out := make([]*vo.TreeNode, 0, len(ids))
		for _, id := range ids {
			n := f.nodes[id]
			children, err := build(n.children, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, &vo.TreeNode{Page: n.page, Children: children, IsOpen: n.open})
		}
		return out, nil
	}
	return build(f.roots, 0)
}
