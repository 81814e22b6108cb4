package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/foomo/sitemap-mcp/scrape"
	"github.com/foomo/sitemap-mcp/service"
	"github.com/foomo/sitemap-mcp/service/vo"
)

const Version = "0.1.0"

type CrawlSiteRequest struct {
	Project string `json:"project"`
	vo.CrawlConfig
}

type CrawlSiteResponse struct {
	Project string    `json:"project"`
	Count   int       `json:"count"`
	Pages   []vo.Page `json:"pages"`
}

type GetSiteTreeRequest struct {
	Project string `json:"project"`
	// Status is a comma separated status filter.
	Status string `json:"status"`
}

type MovePageRequest struct {
	Project  string `json:"project"`
	PageID   string `json:"pageId"`
	ParentID string `json:"parentId"`
	Index    *int   `json:"index"`
}

// position returns the requested sibling index, -1 (append) when omitted.
func (r MovePageRequest) position() int {
	if r.Index == nil {
		return -1
	}
	return *r.Index
}

type UpdatePageRequest struct {
	Project string `json:"project"`
	PageID  string `json:"pageId"`
	vo.PagePatch
}

type ScrapePageRequest struct {
	Project  string `json:"project"`
	PageID   string `json:"pageId"`
	Selector string `json:"selector"`
}

type ScrapePageResponse struct {
	PageID   string          `json:"pageId"`
	Markdown string          `json:"markdown"`
	Summary  *scrape.Summary `json:"summary,omitempty"`
}

func statusNames() []string {
	return []string{
		string(vo.StatusNeutral), string(vo.StatusMove), string(vo.StatusActive),
		string(vo.StatusArchived), string(vo.StatusRedirect), string(vo.StatusNew),
		string(vo.StatusRemove), string(vo.StatusUpdate), string(vo.StatusMerge),
		string(vo.StatusHideInNavigation), string(vo.StatusGhost),
	}
}

// NewServer creates the MCP server exposing the site map tools.
func NewServer(svc service.Service, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := server.NewMCPServer(
		"WordPress Sitemap MCP",
		Version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("crawl_site",
		mcp.WithDescription("Crawl a WordPress site through its REST API and store the reconciled page hierarchy as a project"),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name, e.g. 'acme'")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Site root URL, e.g. 'https://example.com'")),
		mcp.WithBoolean("includePages", mcp.Description("Include pages (default true)")),
		mcp.WithBoolean("includePosts", mcp.Description("Include posts below a blog container")),
		mcp.WithBoolean("includeMarkdown", mcp.Description("Convert page bodies to Markdown")),
		mcp.WithString("username", mcp.Description("WordPress user for application password auth")),
		mcp.WithString("appPassword", mcp.Description("WordPress application password")),
	), mcp.NewTypedToolHandler(crawlSiteHandler(svc, logger)))

	s.AddTool(mcp.NewTool("get_site_tree",
		mcp.WithDescription("Get the nested page tree of a crawled project"),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("status", mcp.Description("Comma separated status filter, one of: "+strings.Join(statusNames(), ", "))),
	), mcp.NewTypedToolHandler(getSiteTreeHandler(svc)))

	s.AddTool(mcp.NewTool("move_page",
		mcp.WithDescription("Move a page with its subtree below a new parent"),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("pageId", mcp.Required(), mcp.Description("Id of the page to move")),
		mcp.WithString("parentId", mcp.Description("Id of the new parent, empty for the top level")),
		mcp.WithNumber("index", mcp.Description("Position among the new siblings; omitted or out of range appends")),
	), mcp.NewTypedToolHandler(movePageHandler(svc)))

	s.AddTool(mcp.NewTool("update_page",
		mcp.WithDescription("Update the planning fields of a page"),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("pageId", mcp.Required(), mcp.Description("Id of the page")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("status", mcp.Enum(statusNames()...), mcp.Description("Workflow status")),
		mcp.WithString("notes", mcp.Description("Free text notes")),
		mcp.WithString("ownerId", mcp.Description("Responsible person")),
		mcp.WithNumber("relevance", mcp.Description("Relevance from 1 to 5")),
		mcp.WithString("mergeTargetId", mcp.Description("Target page when status is merge")),
	), mcp.NewTypedToolHandler(updatePageHandler(svc)))

	s.AddTool(mcp.NewTool("scrape_page",
		mcp.WithDescription("Get the body of a page in the site map as Markdown"),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("pageId", mcp.Required(), mcp.Description("Id of the page")),
		mcp.WithString("selector", mcp.Description("CSS selector of the content element (e.g., 'main', '.entry-content')")),
	), mcp.NewTypedToolHandler(scrapePageHandler(svc)))

	return s
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func crawlSiteHandler(svc service.Service, logger *zap.Logger) func(ctx context.Context, request mcp.CallToolRequest, args CrawlSiteRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args CrawlSiteRequest) (*mcp.CallToolResult, error) {
		cfg := args.CrawlConfig
		if !cfg.IncludePosts {
			cfg.IncludePages = true
		}
		fields := []zap.Field{zap.String("project", args.Project)}
		if req, ok := HTTPRequestFromContext(ctx); ok {
			fields = append(fields, zap.String("remote", req.RemoteAddr))
		}
		logger.Info("crawl_site", append(fields, zap.String("url", cfg.URL))...)
		pages, err := svc.Crawl(ctx, args.Project, cfg)
		if err != nil {
			logger.Warn("crawl_site failed", append(fields, zap.Error(err))...)
			return mcp.NewToolResultError(fmt.Sprintf("failed to crawl site: %s", service.UserMessage(err))), nil
		}
		return jsonResult(CrawlSiteResponse{Project: args.Project, Count: len(pages), Pages: pages})
	}
}

func getSiteTreeHandler(svc service.Service) func(ctx context.Context, request mcp.CallToolRequest, args GetSiteTreeRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args GetSiteTreeRequest) (*mcp.CallToolResult, error) {
		tree, err := svc.Tree(ctx, args.Project, ParseStatuses(args.Status)...)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get site tree: %s", service.UserMessage(err))), nil
		}
		return jsonResult(tree)
	}
}

func movePageHandler(svc service.Service) func(ctx context.Context, request mcp.CallToolRequest, args MovePageRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args MovePageRequest) (*mcp.CallToolResult, error) {
		if args.PageID == "" {
			return mcp.NewToolResultError("pageId is required"), nil
		}
		page, err := svc.MovePage(ctx, args.Project, args.PageID, args.ParentID, args.position())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to move page: %s", service.UserMessage(err))), nil
		}
		return jsonResult(page)
	}
}

func updatePageHandler(svc service.Service) func(ctx context.Context, request mcp.CallToolRequest, args UpdatePageRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args UpdatePageRequest) (*mcp.CallToolResult, error) {
		if args.PageID == "" {
			return mcp.NewToolResultError("pageId is required"), nil
		}
		page, err := svc.PatchPage(ctx, args.Project, args.PageID, args.PagePatch)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to update page: %s", service.UserMessage(err))), nil
		}
		return jsonResult(page)
	}
}

func scrapePageHandler(svc service.Service) func(ctx context.Context, request mcp.CallToolRequest, args ScrapePageRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ScrapePageRequest) (*mcp.CallToolResult, error) {
		if args.PageID == "" {
			return mcp.NewToolResultError("pageId is required"), nil
		}
		md, summary, err := svc.PageMarkdown(ctx, args.Project, args.PageID, args.Selector)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to scrape page: %s", service.UserMessage(err))), nil
		}
		return jsonResult(ScrapePageResponse{PageID: args.PageID, Markdown: string(md), Summary: summary})
	}
}

// ParseStatuses splits a comma separated status list.
func ParseStatuses(raw string) []vo.PageStatus {
	var out []vo.PageStatus
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, vo.PageStatus(s))
		}
	}
	return out
}
