package api

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/foomo/sitemap-mcp/service"
)

// NewRouter creates a chi router with all site map routes mounted.
func NewRouter(svc service.Service, logger *zap.Logger) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(RequestLogger(logger))

	r.Get("/projects", h.ListProjects)
	r.Route("/projects/{project}", func(r chi.Router) {
		r.Post("/crawl", h.Crawl)
		r.Get("/pages", h.ListPages)
		r.Patch("/pages/{page}", h.PatchPage)
		r.Post("/pages/{page}/move", h.MovePage)
		r.Put("/pages/{page}/open", h.SetOpen)
		r.Get("/pages/{page}/markdown", h.PageMarkdown)
		r.Post("/ghosts", h.AddGhost)
		r.Delete("/ghosts/{page}", h.DeleteGhost)
		r.Get("/tree", h.Tree)
		r.Get("/graph", h.Graph)
		r.Get("/moves", h.Moves)
		r.Get("/export", h.Export)
	})

	return r
}
