package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/foomo/sitemap-mcp/scrape"
	"github.com/foomo/sitemap-mcp/service/vo"
	"github.com/foomo/sitemap-mcp/sitetree"
)

// PageMarkdown returns the body of a page as Markdown together with its head
// metadata. The body converted during the crawl is used when present and the
// summary then comes from the stored page. Otherwise the live page is scraped
// with selector (the configured content selector when empty).
func (s *service) PageMarkdown(ctx context.Context, project, pageID, selector string) (vo.Markdown, *scrape.Summary, error) {
	sess, err := s.session(ctx, project, false)
	if err != nil {
		return "", nil, err
	}
	page, ok := sess.forest.Page(pageID)
	sess.mu.Unlock()

	if !ok {
		return "", nil, fmt.Errorf("%w: %s", sitetree.ErrNodeNotFound, pageID)
	}
	if page.Markdown != "" && selector == "" {
		return page.Markdown, &scrape.Summary{
			URL:         page.URL,
			Title:       page.Title,
			Description: page.Summary,
			Image:       page.ThumbnailURL,
		}, nil
	}
	if page.URL == "" {
		return "", nil, fmt.Errorf("%w: %s", ErrNotScrapable, pageID)
	}
	if selector == "" {
		selector = s.contentSelector
	}

	summary, md, err := scrape.Scrape(ctx, s.httpClient, page.URL, selector)
	if err != nil {
		s.logger.Warn("scrape failed", zap.String("project", project), zap.String("url", page.URL), zap.Error(err))
		return "", nil, fmt.Errorf("%w: %s: %w", ErrScrapeFailed, page.URL, err)
	}
	return md, summary, nil
}
