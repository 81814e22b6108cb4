package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/foomo/contentserver/content"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foomo/sitemap-mcp/reconcile"
	"github.com/foomo/sitemap-mcp/scrape"
	"github.com/foomo/sitemap-mcp/service/vo"
	"github.com/foomo/sitemap-mcp/sitetree"
	"github.com/foomo/sitemap-mcp/store"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrNotGhost        = errors.New("page is not a ghost page")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotScrapable    = errors.New("page has no URL to scrape")
	ErrScrapeFailed    = errors.New("scrape failed")
)

var projectPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Reconciler produces the reconciled page list of a site.
type Reconciler interface {
	Reconcile(ctx context.Context, cfg vo.CrawlConfig, opts ...reconcile.RunOption) ([]vo.Page, error)
}

var _ Reconciler = (*reconcile.Engine)(nil)

// Ghost describes a planned page that does not exist on the site yet.
type Ghost struct {
	Title    string `json:"title"`
	ParentID string `json:"parentId,omitempty"`
	Index    int    `json:"index"`
	Notes    string `json:"notes,omitempty"`
}

func (g *Ghost) Validate() error {
	return validation.ValidateStruct(g,
		validation.Field(&g.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&g.Index, validation.Min(-1)),
	)
}

// Service is the site map workspace: one session per project, each holding
// the current forest. Every operation is atomic for its caller.
type Service interface {
	Projects(ctx context.Context) ([]store.Project, error)
	Crawl(ctx context.Context, project string, cfg vo.CrawlConfig, opts ...reconcile.RunOption) ([]vo.Page, error)
	Pages(ctx context.Context, project string) ([]vo.Page, error)
	Tree(ctx context.Context, project string, statuses ...vo.PageStatus) ([]*vo.TreeNode, error)
	Graph(ctx context.Context, project string) (*vo.Graph, error)
	MovePage(ctx context.Context, project, pageID, newParentID string, index int) (vo.Page, error)
	PatchPage(ctx context.Context, project, pageID string, patch vo.PagePatch) (vo.Page, error)
	SetOpen(ctx context.Context, project, pageID string, open bool) error
	AddGhostPage(ctx context.Context, project string, ghost Ghost) (vo.Page, error)
	DeleteGhostPage(ctx context.Context, project, pageID string) error
	Moves(ctx context.Context, project string) ([]vo.PageMove, error)
	Export(ctx context.Context, project string) (*content.RepoNode, error)
	PageMarkdown(ctx context.Context, project, pageID, selector string) (vo.Markdown, *scrape.Summary, error)
}

type Option func(*service)

// WithLayouter replaces the graph layout.
func WithLayouter(l sitetree.Layouter) Option {
	return func(s *service) {
		s.layouter = l
	}
}

// WithHTTPClient sets the client used to scrape page bodies.
func WithHTTPClient(c *http.Client) Option {
	return func(s *service) {
		s.httpClient = c
	}
}

// WithContentSelector sets the default CSS selector of PageMarkdown.
func WithContentSelector(selector string) Option {
	return func(s *service) {
		s.contentSelector = selector
	}
}

type session struct {
	mu      sync.Mutex
	project store.Project
	forest  *sitetree.Forest
}

type service struct {
	reconciler      Reconciler
	store           store.Store
	logger          *zap.Logger
	layouter        sitetree.Layouter
	httpClient      *http.Client
	contentSelector string

	mu       sync.Mutex
	sessions map[string]*session
}

func NewService(reconciler Reconciler, st store.Store, logger *zap.Logger, opts ...Option) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &service{
		reconciler: reconciler,
		store:      st,
		logger:     logger,
		layouter:   sitetree.DefaultLayout,
		httpClient: http.DefaultClient,
		sessions:   map[string]*session{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateProject(project string) error {
	err := validation.Validate(project,
		validation.Required,
		validation.Length(1, 64),
		validation.Match(projectPattern),
	)
	if err != nil {
		return fmt.Errorf("%w: project: %s", ErrInvalidInput, err.Error())
	}
	return nil
}

// session returns the locked session of project, loading it from the store
// on first use. The caller must unlock it.
func (s *service) session(ctx context.Context, project string, create bool) (*session, error) {
	if err := validateProject(project); err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess, ok := s.sessions[project]
	if !ok {
		sess = &session{project: store.Project{Name: project}}
		s.sessions[project] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	if sess.forest != nil || create {
		return sess, nil
	}

	pages, err := s.store.LoadPages(ctx, project)
	if err == nil {
		var p *store.Project
		if p, err = s.store.GetProject(ctx, project); err == nil {
			sess.project = *p
			sess.forest, err = sitetree.BuildTree(pages)
		}
	}
	if err != nil {
		sess.mu.Unlock()
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
		}
		return nil, fmt.Errorf("failed to load project %s: %w", project, err)
	}
	s.logger.Debug("project loaded", zap.String("project", project), zap.Int("pages", len(pages)))
	return sess, nil
}

func (s *service) Projects(ctx context.Context) ([]store.Project, error) {
	return s.store.ListProjects(ctx)
}

// Crawl reconciles the configured site and replaces the project's site map.
// Edits made to the previous crawl are discarded.
func (s *service) Crawl(ctx context.Context, project string, cfg vo.CrawlConfig, opts ...reconcile.RunOption) ([]vo.Page, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	sess, err := s.session(ctx, project, true)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	logger := s.logger.With(zap.String("project", project), zap.String("url", cfg.BaseURL()))
	start := time.Now()
	pages, err := s.reconciler.Reconcile(ctx, cfg, opts...)
	if err != nil {
		logger.Warn("crawl failed", zap.Error(err))
		return nil, err
	}
	forest, err := sitetree.BuildTree(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to build tree: %w", err)
	}

	p := store.Project{Name: project, URL: cfg.BaseURL(), CrawledAt: time.Now()}
	if err := s.store.SavePages(ctx, p, pages); err != nil {
		return nil, fmt.Errorf("failed to save project %s: %w", project, err)
	}
	sess.project = p
	sess.forest = forest
	logger.Info("crawl finished", zap.Int("pages", len(pages)), zap.Duration("took", time.Since(start)))
	return pages, nil
}

func (s *service) Pages(ctx context.Context, project string) ([]vo.Page, error) {
	sess, err := s.session(ctx, project, false)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return sitetree.FlattenTree(sess.forest)
}

// Tree returns the nested tree. With statuses, only matching pages and their
// ancestors are kept.
func (s *service) Tree(ctx context.Context, project string, statuses ...vo.PageStatus) ([]*vo.TreeNode, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, st)
		}
	}
	sess, err := s.session(ctx, project, false)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	forest := sess.forest
	if len(statuses) > 0 {
		forest = sitetree.Filter(forest, sitetree.StatusIn(statuses...))
	}
	return sitetree.Nested(forest)
}

func (s *service) Graph(ctx context.Context, project string) (*vo.Graph, error) {
	sess, err := s.session(ctx, project, false)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	pages, err := sitetree.FlattenTree(sess.forest)
	if err != nil {
		return nil, err
	}
	return sitetree.BuildGraph(pages, s.layouter)
}

func (s *service) MovePage(ctx context.Context, project, pageID, newParentID string, index int) (vo.Page, error) {
	sess, err := s.session(ctx, project, false)
	if err != nil {
		return vo.Page{}, err
	}
	defer sess.mu.Unlock()

	from := sess.forest.Parent(pageID)
	forest, err := sitetree.MoveNode(sess.forest, pageID, newParentID, index)
	if err != nil {
		return vo.Page{}, err
	}
	if err := s.persist(ctx, sess, forest); err != nil {
		return vo.Page{}, err
	}
	page, _ := forest.Page(pageID)
	move := vo.PageMove{
		PageID:       pageID,
		FromParentID: from,
		ToParentID:   newParentID,
		Index:        page.MenuOrder,
		MovedAt:      time.Now().UnixMilli(),
	}
	if err := s.store.AppendMove(ctx, project, move); err != nil {
		s.logger.Warn("failed to record move", zap.String("project", project), zap.String("page", pageID), zap.Error(err))
	}
	sess.forest = forest
	return page, nil
}

func (s *service) PatchPage(ctx context.Context, project, pageID string, patch vo.PagePatch) (vo.Page, error) {
	if patch.Empty() {
		return vo.Page{}, fmt.Errorf("%w: empty patch", ErrInvalidInput)
	}
	sess, err := s.session(ctx, project, false)
	if err != nil {
		return vo.Page{}, err
	}
	defer sess.mu.Unlock()

	forest, err := sitetree.PatchNode(sess.forest, pageID, patch)
	if err != nil {
		return vo.Page{}, err
	}
	page, _ := forest.Page(pageID)
	if err := s.store.PatchPage(ctx, project, page); err != nil {
		return vo.Page{}, fmt.Errorf("failed to save page %s: %w", pageID, err)
	}
	sess.forest = forest
	return page, nil
}

// SetOpen stores the expand state of a tree node for the current session.
func (s *service) SetOpen(ctx context.Context, project, pageID string, open bool) error {
	sess, err := s.session(ctx, project, false)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	forest, err := sitetree.SetOpen(sess.forest, pageID, open)
	if err != nil {
		return err
	}
	sess.forest = forest
	return nil
}

// AddGhostPage inserts a planned page below ghost.ParentID. An index of -1
// appends it.
func (s *service) AddGhostPage(ctx context.Context, project string, ghost Ghost) (vo.Page, error) {
	if err := ghost.Validate(); err != nil {
		return vo.Page{}, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	sess, err := s.session(ctx, project, false)
	if err != nil {
		return vo.Page{}, err
	}
	defer sess.mu.Unlock()

	page := vo.Page{
		ID:     "ghost-" + uuid.NewString(),
		Title:  ghost.Title,
		Type:   vo.PageTypeGhost,
		Status: vo.StatusGhost,
		Notes:  ghost.Notes,
	}
	forest, err := sitetree.InsertNode(sess.forest, page, ghost.ParentID, ghost.Index)
	if err != nil {
		return vo.Page{}, err
	}
	if err := s.persist(ctx, sess, forest); err != nil {
		return vo.Page{}, err
	}
	sess.forest = forest
	page, _ = forest.Page(page.ID)
	return page, nil
}

// DeleteGhostPage removes a ghost leaf. Crawled pages cannot be deleted.
func (s *service) DeleteGhostPage(ctx context.Context, project, pageID string) error {
	sess, err := s.session(ctx, project, false)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	page, ok := sess.forest.Page(pageID)
	if !ok {
		return fmt.Errorf("%w: %s", sitetree.ErrNodeNotFound, pageID)
	}
	if page.Type != vo.PageTypeGhost {
		return fmt.Errorf("%w: %s", ErrNotGhost, pageID)
	}
	forest, err := sitetree.RemoveNode(sess.forest, pageID)
	if err != nil {
		return err
	}
	if err := s.store.DeletePage(ctx, project, pageID); err != nil {
		return fmt.Errorf("failed to delete page %s: %w", pageID, err)
	}
	sess.forest = forest
	return nil
}

func (s *service) Moves(ctx context.Context, project string) ([]vo.PageMove, error) {
	if _, err := s.project(ctx, project); err != nil {
		return nil, err
	}
	return s.store.ListMoves(ctx, project)
}

// Export converts the project's site map into a contentserver repository.
func (s *service) Export(ctx context.Context, project string) (*content.RepoNode, error) {
	sess, err := s.session(ctx, project, false)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	name := sess.project.URL
	if name == "" {
		name = project
	}
	return sitetree.ToRepoNode(sess.forest, name), nil
}

func (s *service) project(ctx context.Context, project string) (store.Project, error) {
	sess, err := s.session(ctx, project, false)
	if err != nil {
		return store.Project{}, err
	}
	defer sess.mu.Unlock()
	return sess.project, nil
}

// persist saves the flattened forest. The session keeps the old forest when
// saving fails.
func (s *service) persist(ctx context.Context, sess *session, forest *sitetree.Forest) error {
	pages, err := sitetree.FlattenTree(forest)
	if err != nil {
		return err
	}
	if err := s.store.SavePages(ctx, sess.project, pages); err != nil {
		return fmt.Errorf("failed to save project %s: %w", sess.project.Name, err)
	}
	return nil
}
