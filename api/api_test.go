package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/foomo/contentserver/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/foomo/sitemap-mcp/reconcile"
	"github.com/foomo/sitemap-mcp/service"
	"github.com/foomo/sitemap-mcp/service/vo"
	"github.com/foomo/sitemap-mcp/store"
	"github.com/foomo/sitemap-mcp/wordpress"
)

type fakeReconciler struct {
	err error
}

func (f *fakeReconciler) Reconcile(_ context.Context, cfg vo.CrawlConfig, _ ...reconcile.RunOption) ([]vo.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	base := cfg.BaseURL()
	p := func(id, title, parent, path string, order int) vo.Page {
		return vo.Page{ID: id, Title: title, Type: vo.PageTypePage, ParentID: vo.StringPtr(parent), URL: base + path, MenuOrder: order}
	}
	return []vo.Page{
		p("1", "Home", "", "/", 0),
		p("2", "About", "", "/about/", 1),
		p("3", "Team", "2", "/about/team/", 0),
		p("4", "Jobs", "2", "/about/jobs/", 1),
		p("5", "Contact", "", "/contact/", 2),
	}, nil
}

func testRouter(t *testing.T, r service.Reconciler) http.Handler {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	logger := zaptest.NewLogger(t)
	return NewRouter(service.NewService(r, db, logger), logger)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func crawled(t *testing.T) http.Handler {
	t.Helper()
	h := testRouter(t, &fakeReconciler{})
	w := do(t, h, http.MethodPost, "/projects/acme/crawl", map[string]any{"url": "https://example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return h
}

func TestCrawlAndListProjects(t *testing.T) {
	h := crawled(t)

	w := do(t, h, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	projects := decode[[]ProjectResponse](t, w)
	require.Len(t, projects, 1)
	assert.Equal(t, "acme", projects[0].Name)
	assert.Equal(t, "https://example.com", projects[0].URL)

	w = do(t, h, http.MethodGet, "/projects/acme/pages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]vo.Page](t, w), 5)
}

func TestCrawlErrors(t *testing.T) {
	unreachable := &wordpress.TransportError{
		URL:      "https://example.com/wp-json/wp/v2/pages",
		Attempts: []wordpress.Attempt{{Method: wordpress.MethodDirect, Err: fmt.Errorf("refused")}},
	}
	for name, tc := range map[string]struct {
		err    error
		status int
	}{
		"unreachable": {fmt.Errorf("failed to fetch pages: %w", unreachable), http.StatusBadGateway},
		"no content":  {reconcile.ErrNoContentFound, http.StatusUnprocessableEntity},
		"too deep":    {fmt.Errorf("flatten: %w", reconcile.ErrTooDeep), http.StatusUnprocessableEntity},
		"internal":    {fmt.Errorf("boom"), http.StatusInternalServerError},
	} {
		t.Run(name, func(t *testing.T) {
			h := testRouter(t, &fakeReconciler{err: tc.err})
			w := do(t, h, http.MethodPost, "/projects/acme/crawl", map[string]any{"url": "https://example.com"})
			assert.Equal(t, tc.status, w.Code)
			assert.NotEmpty(t, decode[errResponse](t, w).Error)
		})
	}

	h := testRouter(t, &fakeReconciler{})
	w := do(t, h, http.MethodPost, "/projects/acme/crawl", map[string]any{"url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/projects/acme/crawl", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownProject(t *testing.T) {
	h := testRouter(t, &fakeReconciler{})
	for _, path := range []string{"/projects/nope/pages", "/projects/nope/tree", "/projects/nope/graph", "/projects/nope/export"} {
		w := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestMoveEndpointReflectsInTreeAndGraph(t *testing.T) {
	h := crawled(t)

	w := do(t, h, http.MethodPost, "/projects/acme/pages/2/move", MoveRequest{ParentID: "1", Index: 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	moved := decode[vo.Page](t, w)
	assert.Equal(t, "1", moved.Parent())

	w = do(t, h, http.MethodGet, "/projects/acme/tree", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tree := decode[[]*vo.TreeNode](t, w)
	require.Len(t, tree, 2)
	home := tree[0]
	assert.Equal(t, "1", home.ID)
	require.Len(t, home.Children, 1)
	assert.Equal(t, "2", home.Children[0].ID)
	assert.Len(t, home.Children[0].Children, 2, "subtree moves with its root")

	w = do(t, h, http.MethodGet, "/projects/acme/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	graph := decode[vo.Graph](t, w)
	assert.Len(t, graph.Nodes, 5)
	var edges []string
	for _, e := range graph.Edges {
		edges = append(edges, e.Source+">"+e.Target)
	}
	assert.ElementsMatch(t, []string{"1>2", "2>3", "2>4"}, edges)

	w = do(t, h, http.MethodGet, "/projects/acme/moves", nil)
	require.Equal(t, http.StatusOK, w.Code)
	moves := decode[[]vo.PageMove](t, w)
	require.Len(t, moves, 1)
	assert.Equal(t, "2", moves[0].PageID)
	assert.Equal(t, "", moves[0].FromParentID)
	assert.Equal(t, "1", moves[0].ToParentID)

	w = do(t, h, http.MethodPost, "/projects/acme/pages/5/move", map[string]any{"parentId": "2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[vo.Page](t, w).MenuOrder, "omitted index appends")

	w = do(t, h, http.MethodPost, "/projects/acme/pages/1/move", MoveRequest{ParentID: "3"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodPost, "/projects/acme/pages/99/move", MoveRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPatchAndFilter(t *testing.T) {
	h := crawled(t)

	w := do(t, h, http.MethodPatch, "/projects/acme/pages/4", map[string]any{"status": "remove", "relevance": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[vo.Page](t, w)
	assert.Equal(t, vo.StatusRemove, page.Status)
	assert.Equal(t, 2, page.Relevance)

	w = do(t, h, http.MethodPatch, "/projects/acme/pages/4", map[string]any{"relevance": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/projects/acme/tree?status=remove", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tree := decode[[]*vo.TreeNode](t, w)
	require.Len(t, tree, 1)
	assert.Equal(t, "2", tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "4", tree[0].Children[0].ID)

	w = do(t, h, http.MethodGet, "/projects/acme/tree?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGhostLifecycle(t *testing.T) {
	h := crawled(t)

	w := do(t, h, http.MethodPost, "/projects/acme/ghosts", map[string]any{"title": "Careers", "parentId": "2"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ghost := decode[vo.Page](t, w)
	assert.Equal(t, vo.PageTypeGhost, ghost.Type)
	assert.Equal(t, 2, ghost.MenuOrder, "appended after existing children")

	w = do(t, h, http.MethodPost, "/projects/acme/ghosts", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodDelete, "/projects/acme/ghosts/3", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodDelete, "/projects/acme/ghosts/"+ghost.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/projects/acme/pages", nil)
	assert.Len(t, decode[[]vo.Page](t, w), 5)
}

func TestSetOpenAndExport(t *testing.T) {
	h := crawled(t)

	w := do(t, h, http.MethodPut, "/projects/acme/pages/2/open", OpenRequest{Open: true})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/projects/acme/tree", nil)
	for _, n := range decode[[]*vo.TreeNode](t, w) {
		assert.Equal(t, n.ID == "2", n.IsOpen, n.ID)
	}

	w = do(t, h, http.MethodGet, "/projects/acme/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	root := decode[content.RepoNode](t, w)
	assert.Len(t, root.Index, 3)
}

func TestPageMarkdown(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Contact</title></head><body><main><h2>Contact us</h2></main></body></html>`))
	}))
	defer site.Close()

	h := testRouter(t, &fakeReconciler{})
	w := do(t, h, http.MethodPost, "/projects/acme/crawl", map[string]any{"url": site.URL})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/projects/acme/pages/5/markdown", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[MarkdownResponse](t, w)
	assert.Equal(t, "## Contact us", resp.Markdown)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, "Contact", resp.Summary.Title)
	assert.Equal(t, site.URL+"/contact/", resp.Summary.URL)

	w = do(t, h, http.MethodGet, "/projects/acme/pages/5/markdown?selector=.missing", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
