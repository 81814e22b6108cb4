package sitetree

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/foomo/sitemap-mcp/service/vo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(id, parent string, menuOrder int) vo.Page {
	return vo.Page{ID: id, Title: "Page " + id, Type: vo.PageTypePage, ParentID: vo.StringPtr(parent), MenuOrder: menuOrder}
}

// sample:
//
//	home
//	about ── team, history
//	services ── consulting ── workshops, audits, coaching
//	          └ training
func sample() []vo.Page {
	return []vo.Page{
		page("home", "", 0),
		page("about", "", 1),
		page("team", "about", 0),
		page("history", "about", 1),
		page("services", "", 2),
		page("training", "services", 1),
		page("consulting", "services", 0),
		page("workshops", "consulting", 0),
		page("audits", "consulting", 1),
		page("coaching", "consulting", 2),
	}
}

func mustBuild(t *testing.T, pages []vo.Page) *Forest {
	t.Helper()
	f, err := BuildTree(pages)
	require.NoError(t, err)
	return f
}

func relations(pages []vo.Page) map[string]string {
	out := make(map[string]string, len(pages))
	for _, p := range pages {
		out[p.ID] = p.Parent()
	}
	return out
}

func flatIDs(pages []vo.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.ID
	}
	return out
}

func TestBuildTreeOrdering(t *testing.T) {
	f := mustBuild(t, sample())

	assert.Equal(t, []string{"services", "about", "home"}, f.Roots(), "roots by descendant count")
	assert.Equal(t, []string{"consulting", "training"}, f.Children("services"), "children by menu order")
	assert.Equal(t, []string{"workshops", "audits", "coaching"}, f.Children("consulting"))
	assert.Equal(t, 5, f.DescendantCount("services"))
	assert.Equal(t, "consulting", f.Parent("audits"))
	assert.Equal(t, 10, f.Len())
}

func TestBuildTreeDefensiveRoots(t *testing.T) {
	f := mustBuild(t, []vo.Page{
		page("a", "0", 0),
		page("b", "missing", 0),
		page("c", "a", 0),
	})
	assert.ElementsMatch(t, []string{"a", "b"}, f.Roots())
	b, ok := f.Page("b")
	require.True(t, ok)
	assert.Nil(t, b.ParentID)
}

func TestBuildTreeRejectsCycles(t *testing.T) {
	_, err := BuildTree([]vo.Page{
		page("root", "", 0),
		page("a", "b", 0),
		page("b", "a", 0),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedTree))

	_, err = BuildTree([]vo.Page{page("x", "", 0), page("x", "", 1)})
	assert.True(t, errors.Is(err, ErrDuplicateNode))
}

func TestBuildTreeRejectsPathologicalDepth(t *testing.T) {
	pages := []vo.Page{page("n0", "", 0)}
	for i := 1; i <= MaxDepth+1; i++ {
		pages = append(pages, page(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", i-1), 0))
	}
	_, err := BuildTree(pages)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedTree))
}

func TestFlattenTreeRoundTrip(t *testing.T) {
	pages := sample()
	flat, err := FlattenTree(mustBuild(t, pages))
	require.NoError(t, err)

	assert.Equal(t, relations(pages), relations(flat), spew.Sdump(flat))
	assert.Equal(t, []string{
		"services", "consulting", "workshops", "audits", "coaching", "training",
		"about", "team", "history",
		"home",
	}, flatIDs(flat))

	for _, p := range flat {
		if p.ID == "coaching" {
			assert.Equal(t, 2, p.MenuOrder)
		}
		if p.ID == "training" {
			assert.Equal(t, 1, p.MenuOrder)
		}
	}

	again, err := FlattenTree(mustBuild(t, flat))
	require.NoError(t, err)
	assert.Equal(t, relations(flat), relations(again))
}

func TestFlattenTreeRenumbersGaps(t *testing.T) {
	flat, err := FlattenTree(mustBuild(t, []vo.Page{
		page("r", "", 0),
		page("c", "r", 30),
		page("a", "r", 10),
		page("b", "r", 10),
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"r", "a", "b", "c"}, flatIDs(flat))
	orders := []int{flat[1].MenuOrder, flat[2].MenuOrder, flat[3].MenuOrder}
	assert.Equal(t, []int{0, 1, 2}, orders)
}

func TestNested(t *testing.T) {
	f := mustBuild(t, sample())
	f, err := SetOpen(f, "consulting", true)
	require.NoError(t, err)

	tree, err := Nested(f)
	require.NoError(t, err)
	require.Len(t, tree, 3)
	services := tree[0]
	assert.Equal(t, "services", services.ID)
	require.Len(t, services.Children, 2)
	consulting := services.Children[0]
	assert.True(t, consulting.IsOpen)
	assert.False(t, services.IsOpen)
	var names []string
	for _, c := range consulting.Children {
		names = append(names, c.ID)
	}
	assert.Equal(t, []string{"workshops", "audits", "coaching"}, names)
}

func TestIsAncestor(t *testing.T) {
	f := mustBuild(t, sample())
	assert.True(t, f.IsAncestor("services", "audits"))
	assert.True(t, f.IsAncestor("audits", "audits"))
	assert.False(t, f.IsAncestor("about", "audits"))

	ids := f.Roots()
	sort.Strings(ids)
	assert.Equal(t, []string{"about", "home", "services"}, ids)
}
