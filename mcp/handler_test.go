package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/foomo/sitemap-mcp/reconcile"
	"github.com/foomo/sitemap-mcp/service"
	"github.com/foomo/sitemap-mcp/service/vo"
	"github.com/foomo/sitemap-mcp/store"
)

type fakeReconciler struct {
	err error
}

func (f *fakeReconciler) Reconcile(_ context.Context, cfg vo.CrawlConfig, _ ...reconcile.RunOption) ([]vo.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	base := cfg.BaseURL()
	return []vo.Page{
		{ID: "1", Title: "Home", Type: vo.PageTypePage, URL: base + "/"},
		{ID: "2", Title: "About", Type: vo.PageTypePage, URL: base + "/about/", MenuOrder: 1},
		{ID: "3", Title: "Team", Type: vo.PageTypePage, URL: base + "/about/team/", ParentID: vo.StringPtr("2")},
	}, nil
}

func testService(t *testing.T, r service.Reconciler) service.Service {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "mcp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return service.NewService(r, db, zaptest.NewLogger(t))
}

func request(name string, args interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestNewServer(t *testing.T) {
	s := NewServer(testService(t, &fakeReconciler{}), zaptest.NewLogger(t))
	require.NotNil(t, s)
}

func TestCrawlAndTreeTools(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, &fakeReconciler{})

	args := CrawlSiteRequest{Project: "acme", CrawlConfig: vo.CrawlConfig{URL: "https://example.com"}}
	result, err := crawlSiteHandler(svc, zaptest.NewLogger(t))(ctx, request("crawl_site", args), args)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var crawled CrawlSiteResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &crawled))
	assert.Equal(t, 3, crawled.Count)

	treeArgs := GetSiteTreeRequest{Project: "acme"}
	result, err = getSiteTreeHandler(svc)(ctx, request("get_site_tree", treeArgs), treeArgs)
	require.NoError(t, err)
	var tree []*vo.TreeNode
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &tree))
	require.Len(t, tree, 2)
	assert.Equal(t, "2", tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "3", tree[0].Children[0].ID)
}

func TestCrawlToolReportsActionableError(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, &fakeReconciler{err: reconcile.ErrNoContentFound})

	args := CrawlSiteRequest{Project: "acme", CrawlConfig: vo.CrawlConfig{URL: "https://example.com"}}
	result, err := crawlSiteHandler(svc, zaptest.NewLogger(t))(ctx, request("crawl_site", args), args)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no pages or posts were found")
}

func TestCrawlToolLogsRemoteOfHTTPCalls(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	svc := testService(t, &fakeReconciler{err: reconcile.ErrNoContentFound})

	httpReq := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	httpReq.RemoteAddr = "203.0.113.7:4711"
	ctx := httpContextFunc(context.Background(), httpReq)
	got, ok := HTTPRequestFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, httpReq, got)

	args := CrawlSiteRequest{Project: "acme", CrawlConfig: vo.CrawlConfig{URL: "https://example.com"}}
	_, err := crawlSiteHandler(svc, zap.New(core))(ctx, request("crawl_site", args), args)
	require.NoError(t, err)

	failed := logs.FilterMessage("crawl_site failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "203.0.113.7:4711", failed[0].ContextMap()["remote"])
	assert.Equal(t, "acme", failed[0].ContextMap()["project"])

	// stdio calls carry no HTTP request
	_, ok = HTTPRequestFromContext(context.Background())
	assert.False(t, ok)
}

func TestScrapePageTool(t *testing.T) {
	ctx := context.Background()
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Team</title><meta property="og:image" content="/team.jpg"></head>` +
			`<body><main><p>Hello</p></main></body></html>`))
	}))
	defer site.Close()

	svc := testService(t, &fakeReconciler{})
	_, err := svc.Crawl(ctx, "acme", vo.CrawlConfig{URL: site.URL, IncludePages: true})
	require.NoError(t, err)

	args := ScrapePageRequest{Project: "acme", PageID: "3"}
	result, err := scrapePageHandler(svc)(ctx, request("scrape_page", args), args)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var resp ScrapePageResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	assert.Equal(t, "Hello", resp.Markdown)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, "Team", resp.Summary.Title)
	assert.Equal(t, "/team.jpg", resp.Summary.Image)
}

func TestMoveAndUpdateTools(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, &fakeReconciler{})
	_, err := svc.Crawl(ctx, "acme", vo.CrawlConfig{URL: "https://example.com", IncludePages: true})
	require.NoError(t, err)

	move := MovePageRequest{Project: "acme", PageID: "3", ParentID: "1"}
	result, err := movePageHandler(svc)(ctx, request("move_page", move), move)
	require.NoError(t, err)
	var page vo.Page
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &page))
	assert.Equal(t, "1", page.Parent())

	appended := MovePageRequest{Project: "acme", PageID: "2", ParentID: "1"}
	result, err = movePageHandler(svc)(ctx, request("move_page", appended), appended)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &page))
	assert.Equal(t, 1, page.MenuOrder, "omitted index appends after team")

	first := 0
	front := MovePageRequest{Project: "acme", PageID: "2", ParentID: "1", Index: &first}
	result, err = movePageHandler(svc)(ctx, request("move_page", front), front)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &page))
	assert.Equal(t, 0, page.MenuOrder)

	bad := MovePageRequest{Project: "acme", PageID: "2", ParentID: "2"}
	result, err = movePageHandler(svc)(ctx, request("move_page", bad), bad)
	require.NoError(t, err)
	assert.True(t, result.IsError)

	status := vo.StatusRemove
	update := UpdatePageRequest{Project: "acme", PageID: "2", PagePatch: vo.PagePatch{Status: &status}}
	result, err = updatePageHandler(svc)(ctx, request("update_page", update), update)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &page))
	assert.Equal(t, vo.StatusRemove, page.Status)

	missing := UpdatePageRequest{Project: "acme", PagePatch: vo.PagePatch{Status: &status}}
	result, err = updatePageHandler(svc)(ctx, request("update_page", missing), missing)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestUpdatePageRequestBinding(t *testing.T) {
	var args UpdatePageRequest
	require.NoError(t, json.Unmarshal([]byte(`{"project":"acme","pageId":"2","status":"merge","mergeTargetId":"1","relevance":3}`), &args))
	assert.Equal(t, "2", args.PageID)
	require.NotNil(t, args.Status)
	assert.Equal(t, vo.StatusMerge, *args.Status)
	require.NotNil(t, args.Relevance)
	assert.Equal(t, 3, *args.Relevance)
}

func TestParseStatuses(t *testing.T) {
	assert.Empty(t, ParseStatuses(""))
	assert.Equal(t, []vo.PageStatus{vo.StatusMove, vo.StatusRemove}, ParseStatuses("move, remove,"))
}

func TestHandleCrawlSSE(t *testing.T) {
	svc := testService(t, &fakeReconciler{})
	handler := NewMcpHTTPSSEServer(zaptest.NewLogger(t), NewServer(svc, nil), svc, "/mcp", nil)
	t.Cleanup(handler.GetSSEServer().Close)

	body := strings.NewReader(`{"project":"acme","url":"https://example.com","includePages":true}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp/sse/crawl", body))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	out := rec.Body.String()
	start := strings.Index(out, "event: "+EventCrawlStart)
	result := strings.Index(out, "event: "+EventCrawlResult)
	complete := strings.Index(out, "event: "+EventCrawlComplete)
	require.GreaterOrEqual(t, start, 0, out)
	assert.Greater(t, result, start)
	assert.Greater(t, complete, result)
	assert.Contains(t, out, `"count":3`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp/sse/crawl", strings.NewReader(`{"project":"acme"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp/sse/crawl", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleCrawlSSEError(t *testing.T) {
	svc := testService(t, &fakeReconciler{err: reconcile.ErrNoContentFound})
	sse := NewMCPSSEServer(zaptest.NewLogger(t), svc, nil)
	t.Cleanup(sse.Close)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"project":"acme","url":"https://example.com"}`)
	sse.HandleCrawlSSE(rec, httptest.NewRequest(http.MethodPost, "/mcp/sse/crawl", body))

	out := rec.Body.String()
	assert.Contains(t, out, "event: "+EventCrawlError)
	assert.Contains(t, out, "no pages or posts were found")
	assert.NotContains(t, out, "event: "+EventCrawlComplete)
}

func TestStatsEndpoint(t *testing.T) {
	svc := testService(t, &fakeReconciler{})
	handler := NewMcpHTTPSSEServer(zaptest.NewLogger(t), NewServer(svc, nil), svc, "/mcp", nil)
	t.Cleanup(handler.GetSSEServer().Close)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp/sse/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, float64(0), stats["connectedClients"])
	assert.Equal(t, Version, stats["serverVersion"])
}
