package wordpress

import (
	"fmt"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/foomo/sitemap-mcp/service/vo"
)

const (
	UntitledPlaceholder = "(untitled)"
	summaryLimit        = 150
)

type MapOptions struct {
	// IncludeMarkdown converts the rendered content into Markdown.
	IncludeMarkdown bool
}

// PlaceholderImage returns a deterministic placeholder thumbnail for id.
func PlaceholderImage(id string) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s/400/300", id)
}

// MapItem converts a raw content record into a Page.
func MapItem(raw RawItem, pageType vo.PageType, opts MapOptions) vo.Page {
	id := raw.ID.String()

	title := StripHTML(raw.Title.Rendered)
	if title == "" {
		title = UntitledPlaceholder
	}

	summary := StripHTML(raw.Excerpt.Rendered)
	if summary == "" {
		summary = Truncate(StripHTML(raw.Content.Rendered), summaryLimit)
	}

	thumbnail := raw.FeaturedImage()
	if thumbnail == "" {
		thumbnail = PlaceholderImage(id)
	}

	page := vo.Page{
		ID:           id,
		Title:        title,
		Type:         pageType,
		ParentID:     vo.StringPtr(raw.Parent.ID()),
		URL:          raw.Link,
		Summary:      summary,
		ThumbnailURL: thumbnail,
		MenuOrder:    raw.MenuOrder,
	}

	if opts.IncludeMarkdown && raw.Content.Rendered != "" {
		if md, err := htmltomarkdown.ConvertString(raw.Content.Rendered); err == nil {
			page.Markdown = vo.Markdown(md)
		}
	}
	return page
}
