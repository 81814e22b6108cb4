package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/foomo/sitemap-mcp/scrape"
	"github.com/foomo/sitemap-mcp/service"
	"github.com/foomo/sitemap-mcp/service/vo"
)

// Handler holds API route handlers.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc service.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// ProjectResponse is one entry of GET /projects.
type ProjectResponse struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CrawledAt time.Time `json:"crawledAt"`
}

// CrawlResponse is returned by POST /projects/{project}/crawl.
type CrawlResponse struct {
	Project string    `json:"project"`
	Count   int       `json:"count"`
	Pages   []vo.Page `json:"pages"`
}

// MoveRequest is the body of POST /projects/{project}/pages/{page}/move.
type MoveRequest struct {
	ParentID string `json:"parentId"`
	Index    int    `json:"index"`
}

// OpenRequest is the body of PUT /projects/{project}/pages/{page}/open.
type OpenRequest struct {
	Open bool `json:"open"`
}

// MarkdownResponse is returned by GET /projects/{project}/pages/{page}/markdown.
type MarkdownResponse struct {
	PageID   string          `json:"pageId"`
	Markdown string          `json:"markdown"`
	Summary  *scrape.Summary `json:"summary,omitempty"`
}

// ListProjects handles GET /projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.Projects(r.Context())
	if err != nil {
		h.writeError(w, r, "list projects failed", err)
		return
	}
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, ProjectResponse{Name: p.Name, URL: p.URL, CrawledAt: p.CrawledAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// Crawl handles POST /projects/{project}/crawl. Pages are crawled when
// neither pages nor posts are requested.
func (h *Handler) Crawl(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	var cfg vo.CrawlConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if !cfg.IncludePosts {
		cfg.IncludePages = true
	}
	pages, err := h.svc.Crawl(r.Context(), project, cfg)
	if err != nil {
		h.writeError(w, r, "crawl failed", err)
		return
	}
	writeJSON(w, http.StatusOK, CrawlResponse{Project: project, Count: len(pages), Pages: pages})
}

// ListPages handles GET /projects/{project}/pages.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.svc.Pages(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.writeError(w, r, "list pages failed", err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

// Tree handles GET /projects/{project}/tree?status=move,remove.
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	var statuses []vo.PageStatus
	for _, s := range strings.Split(r.URL.Query().Get("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, vo.PageStatus(s))
		}
	}
	tree, err := h.svc.Tree(r.Context(), chi.URLParam(r, "project"), statuses...)
	if err != nil {
		h.writeError(w, r, "tree failed", err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// Graph handles GET /projects/{project}/graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	graph, err := h.svc.Graph(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.writeError(w, r, "graph failed", err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

// MovePage handles POST /projects/{project}/pages/{page}/move.
func (h *Handler) MovePage(w http.ResponseWriter, r *http.Request) {
	req := MoveRequest{Index: -1}
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	page, err := h.svc.MovePage(r.Context(), chi.URLParam(r, "project"), chi.URLParam(r, "page"), req.ParentID, req.Index)
	if err != nil {
		h.writeError(w, r, "move page failed", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// PatchPage handles PATCH /projects/{project}/pages/{page}.
func (h *Handler) PatchPage(w http.ResponseWriter, r *http.Request) {
	var patch vo.PagePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	page, err := h.svc.PatchPage(r.Context(), chi.URLParam(r, "project"), chi.URLParam(r, "page"), patch)
	if err != nil {
		h.writeError(w, r, "patch page failed", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// SetOpen handles PUT /projects/{project}/pages/{page}/open.
func (h *Handler) SetOpen(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.SetOpen(r.Context(), chi.URLParam(r, "project"), chi.URLParam(r, "page"), req.Open); err != nil {
		h.writeError(w, r, "set open failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PageMarkdown handles GET /projects/{project}/pages/{page}/markdown?selector=main.
func (h *Handler) PageMarkdown(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "page")
	md, summary, err := h.svc.PageMarkdown(r.Context(), chi.URLParam(r, "project"), pageID, r.URL.Query().Get("selector"))
	if err != nil {
		h.writeError(w, r, "page markdown failed", err)
		return
	}
	writeJSON(w, http.StatusOK, MarkdownResponse{PageID: pageID, Markdown: string(md), Summary: summary})
}

// AddGhost handles POST /projects/{project}/ghosts.
func (h *Handler) AddGhost(w http.ResponseWriter, r *http.Request) {
	ghost := service.Ghost{Index: -1}
	if err := decodeJSON(w, r, &ghost); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	page, err := h.svc.AddGhostPage(r.Context(), chi.URLParam(r, "project"), ghost)
	if err != nil {
		h.writeError(w, r, "add ghost failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, page)
}

// DeleteGhost handles DELETE /projects/{project}/ghosts/{page}.
func (h *Handler) DeleteGhost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteGhostPage(r.Context(), chi.URLParam(r, "project"), chi.URLParam(r, "page")); err != nil {
		h.writeError(w, r, "delete ghost failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Moves handles GET /projects/{project}/moves.
func (h *Handler) Moves(w http.ResponseWriter, r *http.Request) {
	moves, err := h.svc.Moves(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.writeError(w, r, "list moves failed", err)
		return
	}
	writeJSON(w, http.StatusOK, moves)
}

// Export handles GET /projects/{project}/export.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	node, err := h.svc.Export(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.writeError(w, r, "export failed", err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}
