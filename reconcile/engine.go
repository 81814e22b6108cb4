package reconcile

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/foomo/sitemap-mcp/service/vo"
	"github.com/foomo/sitemap-mcp/wordpress"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoContentFound is returned when a crawl ends with an empty site map.
	ErrNoContentFound = errors.New("no content found")
	// ErrTooDeep is returned when the page hierarchy nests deeper than
	// MaxDepth.
	ErrTooDeep = errors.New("page hierarchy too deep")
)

const (
	// MaxRescueRounds bounds the parent rescue loop.
	MaxRescueRounds = 2
	// MaxDepth bounds the flatten recursion.
	MaxDepth = 64

	ContainerID    = "posts-container"
	ContainerTitle = "Blog"
)

var containerPattern = regexp.MustCompile(`(?i)blog|news|aktuelles`)

// Source is the WordPress capability the engine depends on.
type Source interface {
	FetchAll(ctx context.Context, baseURL, endpoint string, auth *vo.Auth) ([]wordpress.RawItem, error)
	FetchOne(ctx context.Context, baseURL, endpoint, id string, auth *vo.Auth) (*wordpress.RawItem, error)
}

var _ Source = (*wordpress.Client)(nil)

type Engine struct {
	source Source
	logger *zap.Logger
}

func NewEngine(source Source, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{source: source, logger: logger}
}

// Reconcile crawls the site described by cfg and returns its pages as a
// pre-ordered, dangling free and cycle free sequence.
func (e *Engine) Reconcile(ctx context.Context, cfg vo.CrawlConfig, opts ...RunOption) ([]vo.Page, error) {
	run := newRun(opts)
	base := cfg.BaseURL()
	auth := cfg.Auth()
	filter := wordpress.NewDomainFilter(base)
	mapOpts := wordpress.MapOptions{IncludeMarkdown: cfg.IncludeMarkdown}
	logger := e.logger.With(zap.String("site", base))

	set := newWorkingSet()

	if cfg.IncludePages {
		run.report(Progress{Stage: StageFetchPages})
		pages, err := e.fetchAndMap(ctx, base, wordpress.EndpointPages, vo.PageTypePage, auth, filter, mapOpts)
		if err != nil {
			return nil, err
		}
		for _, p := range pages {
			set.add(p)
		}
		logger.Info("pages fetched", zap.Int("count", len(pages)))
	}

	if cfg.IncludePosts {
		run.report(Progress{Stage: StageFetchPosts, Items: set.len()})
		posts, err := e.fetchAndMap(ctx, base, wordpress.EndpointPosts, vo.PageTypePost, auth, filter, mapOpts)
		if err != nil {
			return nil, err
		}
		logger.Info("posts fetched", zap.Int("count", len(posts)))
		if len(posts) > 0 {
			containerID := set.attachContainer(base)
			for _, p := range posts {
				p.ParentID = vo.StringPtr(containerID)
				set.add(p)
			}
		}
	}

	for round := 1; round <= MaxRescueRounds; round++ {
		missing := set.missingParents()
		if len(missing) == 0 {
			break
		}
		run.report(Progress{Stage: StageRescue, Items: set.len(), Round: round})
		added := 0
		for _, p := range e.rescue(ctx, base, missing, auth, filter, mapOpts) {
			if set.add(p) {
				added++
			}
		}
		logger.Info("parent rescue round finished",
			zap.Int("round", round),
			zap.Strings("missing", missing),
			zap.Int("rescued", added),
		)
		if added == 0 {
			break
		}
	}

	run.report(Progress{Stage: StagePrune, Items: set.len()})
	kept, dropped := Prune(set.pages)
	if len(dropped) > 0 {
		logger.Info("pruned items with unresolved parents", zap.Strings("ids", dropped))
	}

	run.report(Progress{Stage: StageFlatten, Items: len(kept)})
	flat, orphans, err := Flatten(kept)
	if err != nil {
		return nil, err
	}
	if len(orphans) > 0 {
		logger.Warn("orphans forced to root", zap.Strings("ids", orphans))
	}

	if len(flat) == 0 {
		return nil, fmt.Errorf("%s: %w", base, ErrNoContentFound)
	}
	run.report(Progress{Stage: StageDone, Items: len(flat)})
	return flat, nil
}

func (e *Engine) fetchAndMap(ctx context.Context, base, endpoint string, pageType vo.PageType, auth *vo.Auth, filter wordpress.DomainFilter, opts wordpress.MapOptions) ([]vo.Page, error) {
	raw, err := e.source.FetchAll(ctx, base, endpoint, auth)
	if err != nil {
		return nil, err
	}
	pages := make([]vo.Page, 0, len(raw))
	foreign := 0
	for _, item := range raw {
		if !filter.Allows(item.Link) {
			foreign++
			continue
		}
		pages = append(pages, wordpress.MapItem(item, pageType, opts))
	}
	if foreign > 0 {
		e.logger.Debug("foreign host items dropped", zap.String("endpoint", endpoint), zap.Int("count", foreign))
	}
	return pages, nil
}

// rescue fetches every missing parent concurrently. Failures are logged and
// absorbed; the affected children are pruned later.
func (e *Engine) rescue(ctx context.Context, base string, missing []string, auth *vo.Auth, filter wordpress.DomainFilter, opts wordpress.MapOptions) []vo.Page {
	results := make([]*vo.Page, len(missing))
	var g errgroup.Group
	for i, id := range missing {
		g.Go(func() error {
			item, err := e.source.FetchOne(ctx, base, wordpress.EndpointPages, id, auth)
			if err != nil {
				e.logger.Warn("parent rescue failed", zap.String("id", id), zap.Error(err))
				return nil
			}
			if item.ID.String() != id {
				e.logger.Warn("parent rescue returned another item", zap.String("id", id), zap.String("got", item.ID.String()))
				return nil
			}
			if !filter.Allows(item.Link) {
				e.logger.Info("rescued parent on foreign host", zap.String("id", id), zap.String("link", item.Link))
				return nil
			}
			page := wordpress.MapItem(*item, vo.PageTypePage, opts)
			results[i] = &page
			return nil
		})
	}
	_ = g.Wait()

	rescued := make([]vo.Page, 0, len(missing))
	for _, p := range results {
		if p != nil {
			rescued = append(rescued, *p)
		}
	}
	return rescued
}

// Prune drops every page whose parent is not in the set, repeating until
// no reference dangles. Root pages are always kept.
func Prune(pages []vo.Page) (kept []vo.Page, dropped []string) {
	kept = pages
	for {
		ids := make(map[string]struct{}, len(kept))
		for _, p := range kept {
			ids[p.ID] = struct{}{}
		}
		next := make([]vo.Page, 0, len(kept))
		pass := 0
		for _, p := range kept {
			if p.ParentID != nil {
				if _, ok := ids[*p.ParentID]; !ok {
					dropped = append(dropped, p.ID)
					pass++
					continue
				}
			}
			next = append(next, p)
		}
		kept = next
		if pass == 0 {
			return kept, dropped
		}
	}
}

// Flatten orders pages depth first in pre-order starting at the roots,
// siblings ascending by MenuOrder with ties in input order. Pages that are
// not reachable from a root hang below a cycle: the first cycle member met
// in input order is forced to root and appended with its subtree, and its id
// is returned as an orphan. A hierarchy nested deeper than MaxDepth is an
// ErrTooDeep error.
func Flatten(pages []vo.Page) (flat []vo.Page, orphans []string, err error) {
	index := make(map[string]int, len(pages))
	children := make(map[string][]int, len(pages))
	var roots []int
	for i, p := range pages {
		index[p.ID] = i
		if p.ParentID == nil {
			roots = append(roots, i)
			continue
		}
		children[*p.ParentID] = append(children[*p.ParentID], i)
	}
	byMenuOrder := func(idx []int) {
		sort.SliceStable(idx, func(a, b int) bool {
			return pages[idx[a]].MenuOrder < pages[idx[b]].MenuOrder
		})
	}
	byMenuOrder(roots)
	for _, idx := range children {
		byMenuOrder(idx)
	}

	visited := make([]bool, len(pages))
	flat = make([]vo.Page, 0, len(pages))
	var walk func(i int, page vo.Page, depth int) error
	walk = func(i int, page vo.Page, depth int) error {
		if visited[i] {
			return nil
		}
		if depth > MaxDepth {
			return fmt.Errorf("%w: %s is nested deeper than %d levels", ErrTooDeep, page.ID, MaxDepth)
		}
		visited[i] = true
		flat = append(flat, page)
		for _, c := range children[page.ID] {
			if err := walk(c, pages[c], depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := walk(r, pages[r], 0); err != nil {
			return nil, nil, err
		}
	}

	for i := range pages {
		if visited[i] {
			continue
		}
		entry := cycleEntry(pages, index, i)
		orphans = append(orphans, pages[entry].ID)
		p := pages[entry]
		p.ParentID = nil
		if err := walk(entry, p, 0); err != nil {
			return nil, nil, err
		}
	}
	return flat, orphans, nil
}

// cycleEntry follows the parents of pages[i] until an index repeats and
// returns that index. Every page reaches a cycle this way once Prune has
// removed dangling references and the roots have been walked.
func cycleEntry(pages []vo.Page, index map[string]int, i int) int {
	seen := map[int]struct{}{}
	for {
		if _, ok := seen[i]; ok {
			return i
		}
		seen[i] = struct{}{}
		if pages[i].ParentID == nil {
			return i
		}
		parent, ok := index[*pages[i].ParentID]
		if !ok {
			return i
		}
		i = parent
	}
}
