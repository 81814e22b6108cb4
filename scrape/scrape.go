package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/foomo/sitemap-mcp/service/vo"
)

var ErrSelectorNotFound = errors.New("no element matches selector")

const maxBodySize = 8 << 20

// DefaultSelectors are tried in order when no selector is given. They cover
// the content wrappers of the common WordPress themes.
var DefaultSelectors = []string{"main", "article", ".entry-content", "#content", "body"}

// chrome is removed from the selection before conversion.
var chrome = []string{
	"script", "style", "noscript", "nav", "form", "button",
	".sharedaddy", ".wp-block-buttons", ".comments-area", "#comments",
}

// Summary is the head metadata of a scraped page.
type Summary struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Scrape downloads url and converts the first element matching selector to
// Markdown. An empty selector tries DefaultSelectors.
func Scrape(ctx context.Context, httpClient *http.Client, url, selector string) (*Summary, vo.Markdown, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download HTML: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP request failed with status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	summary := &Summary{
		URL:         url,
		Title:       strings.TrimSpace(doc.Find("head title").First().Text()),
		Description: metaContent(doc, `meta[name="description"]`, `meta[property="og:description"]`),
		Image:       metaContent(doc, `meta[property="og:image"]`),
	}

	selectors := DefaultSelectors
	if selector != "" {
		selectors = []string{selector}
	}
	var selection *goquery.Selection
	for _, s := range selectors {
		if found := doc.Find(s).First(); found.Length() > 0 {
			selection = found
			break
		}
	}
	if selection == nil {
		return summary, "", fmt.Errorf("%w: %s", ErrSelectorNotFound, strings.Join(selectors, ", "))
	}

	for _, s := range chrome {
		selection.Find(s).Remove()
	}

	markdownBytes, err := htmltomarkdown.ConvertNode(selection.Nodes[0])
	if err != nil {
		return summary, "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return summary, vo.Markdown(strings.TrimSpace(string(markdownBytes))), nil
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, s := range selectors {
		if v, ok := doc.Find(s).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
