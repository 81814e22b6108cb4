package sitetree

import (
	"fmt"

	"github.com/foomo/sitemap-mcp/service/vo"
)

// editor clones a forest lazily: the node map and root list are copied once,
// a node struct only when it is about to change.
type editor struct {
	f     *Forest
	owned map[string]struct{}
}

func edit(f *Forest) *editor {
	nodes := make(map[string]*node, len(f.nodes))
	for id, n := range f.nodes {
		nodes[id] = n
	}
	return &editor{
		f:     &Forest{nodes: nodes, roots: append([]string(nil), f.roots...)},
		owned: map[string]struct{}{},
	}
}

func (e *editor) mutable(id string) *node {
	n := e.f.nodes[id]
	if _, ok := e.owned[id]; ok {
		return n
	}
	c := n.clone()
	e.f.nodes[id] = c
	e.owned[id] = struct{}{}
	return c
}

func (e *editor) siblings(parent string) *[]string {
	if parent == "" {
		return &e.f.roots
	}
	return &e.mutable(parent).children
}

func (e *editor) detach(id, parent string) int {
	list := e.siblings(parent)
	for i, c := range *list {
		if c == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return i
		}
	}
	return -1
}

// attach inserts id at index; an index out of range appends.
func (e *editor) attach(id, parent string, index int) int {
	list := e.siblings(parent)
	if index < 0 || index > len(*list) {
		index = len(*list)
	}
	*list = append(*list, "")
	copy((*list)[index+1:], (*list)[index:])
	(*list)[index] = id
	return index
}

// MoveNode detaches id with its whole subtree and attaches it below
// newParentID ("" for the root level) at index. The moved node keeps its
// children; MovedFromParentID records the previous parent when it changes.
func MoveNode(f *Forest, id, newParentID string, index int) (*Forest, error) {
	n, ok := f.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if newParentID != "" {
		if _, ok := f.nodes[newParentID]; !ok {
			return nil, fmt.Errorf("%w: parent %s", ErrNodeNotFound, newParentID)
		}
		if f.IsAncestor(id, newParentID) {
			return nil, fmt.Errorf("%w: %s cannot move below itself", ErrInvalidMove, id)
		}
	}

	e := edit(f)
	oldParent := n.parent
	e.detach(id, oldParent)
	pos := e.attach(id, newParentID, index)

	moved := e.mutable(id)
	moved.parent = newParentID
	moved.page.ParentID = vo.StringPtr(newParentID)
	moved.page.MenuOrder = pos
	if oldParent != newParentID {
		moved.page.MovedFromParentID = vo.StringPtr(oldParent)
	}
	return e.f, nil
}

// PatchNode merges patch into the page id. Only that node changes; every
// other node of the returned forest is the same value as in f.
func PatchNode(f *Forest, id string, patch vo.PagePatch) (*Forest, error) {
	n, ok := f.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	page := n.page
	if err := applyPatch(f, &page, patch); err != nil {
		return nil, err
	}
	e := edit(f)
	e.mutable(id).page = page
	return e.f, nil
}

func applyPatch(f *Forest, page *vo.Page, patch vo.PagePatch) error {
	if patch.Relevance != nil && (*patch.Relevance < 0 || *patch.Relevance > 5) {
		return fmt.Errorf("%w: relevance %d out of range 1-5", ErrInvalidPatch, *patch.Relevance)
	}
	if patch.Status != nil && *patch.Status != "" && !patch.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPatch, *patch.Status)
	}

	if patch.Title != nil {
		page.Title = *patch.Title
	}
	if patch.Status != nil {
		page.Status = *patch.Status
	}
	if patch.Notes != nil {
		page.Notes = *patch.Notes
	}
	if patch.OwnerID != nil {
		page.OwnerID = *patch.OwnerID
	}
	if patch.Relevance != nil {
		page.Relevance = *patch.Relevance
	}
	if patch.ThumbnailURL != nil {
		page.ThumbnailURL = *patch.ThumbnailURL
	}
	if patch.MergeTargetID != nil {
		page.MergeTargetID = *patch.MergeTargetID
	}

	if page.Status != vo.StatusMerge {
		if patch.MergeTargetID != nil && *patch.MergeTargetID != "" {
			return fmt.Errorf("%w: merge target requires status %q", ErrInvalidPatch, vo.StatusMerge)
		}
		page.MergeTargetID = ""
		return nil
	}
	if page.MergeTargetID != "" {
		if page.MergeTargetID == page.ID {
			return fmt.Errorf("%w: page cannot merge into itself", ErrInvalidPatch)
		}
		if _, ok := f.nodes[page.MergeTargetID]; !ok {
			return fmt.Errorf("%w: merge target %s", ErrNodeNotFound, page.MergeTargetID)
		}
	}
	return nil
}

// SetOpen toggles the UI expand state of id.
func SetOpen(f *Forest, id string, open bool) (*Forest, error) {
	if _, ok := f.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	e := edit(f)
	e.mutable(id).open = open
	return e.f, nil
}

// InsertNode adds page as a new leaf below parentID at index.
func InsertNode(f *Forest, page vo.Page, parentID string, index int) (*Forest, error) {
	if _, ok := f.nodes[page.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, page.ID)
	}
	if parentID != "" {
		if _, ok := f.nodes[parentID]; !ok {
			return nil, fmt.Errorf("%w: parent %s", ErrNodeNotFound, parentID)
		}
	}
	e := edit(f)
	page.ParentID = vo.StringPtr(parentID)
	e.f.nodes[page.ID] = &node{page: page, parent: parentID}
	e.owned[page.ID] = struct{}{}
	e.f.nodes[page.ID].page.MenuOrder = e.attach(page.ID, parentID, index)
	return e.f, nil
}

// RemoveNode removes the leaf id. Pages that were marked to merge into id
// keep their merge status but lose the target.
func RemoveNode(f *Forest, id string) (*Forest, error) {
	n, ok := f.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if len(n.children) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotLeaf, id)
	}
	e := edit(f)
	e.detach(id, n.parent)
	delete(e.f.nodes, id)
	for other, o := range e.f.nodes {
		if o.page.MergeTargetID == id {
			e.mutable(other).page.MergeTargetID = ""
		}
	}
	return e.f, nil
}

// Filter keeps the nodes matching keep together with their ancestors so
// the result is still a forest. Expand state is carried over.
func Filter(f *Forest, keep func(vo.Page) bool) *Forest {
	out := &Forest{nodes: map[string]*node{}}
	var walk func(id, parent string, depth int) bool
	walk = func(id, parent string, depth int) bool {
		if depth > MaxDepth {
			return false
		}
		n := f.nodes[id]
		c := &node{page: n.page, parent: parent, open: n.open}
		for _, child := range n.children {
			if walk(child, id, depth+1) {
				c.children = append(c.children, child)
			}
		}
		if len(c.children) == 0 && !keep(n.page) {
			return false
		}
		out.nodes[id] = c
		return true
	}
	for _, id := range f.roots {
		if walk(id, "", 0) {
			out.roots = append(out.roots, id)
		}
	}
	return out
}

// StatusIn returns a Filter predicate matching any of statuses. A page
// without status counts as neutral.
func StatusIn(statuses ...vo.PageStatus) func(vo.Page) bool {
	set := make(map[vo.PageStatus]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return func(p vo.Page) bool {
		status := p.Status
		if status == "" {
			status = vo.StatusNeutral
		}
		_, ok := set[status]
		return ok
	}
}
