package wordpress

import (
	"context"
	"fmt"

	"github.com/foomo/sitemap-mcp/service/vo"
	"go.uber.org/zap"
)

const (
	EndpointPages = "pages"
	EndpointPosts = "posts"

	// PageSize is the per_page value of every collection request.
	PageSize = 50
	// MaxPages bounds one collection crawl to MaxPages*PageSize items.
	MaxPages = 30
)

// CollectionURL builds the URL of one page of a wp/v2 collection.
func CollectionURL(baseURL, endpoint string, page int) string {
	return fmt.Sprintf("%s/wp-json/wp/v2/%s?per_page=%d&page=%d&_embed", baseURL, endpoint, PageSize, page)
}

// ItemURL builds the URL of a single wp/v2 object.
func ItemURL(baseURL, endpoint, id string) string {
	return fmt.Sprintf("%s/wp-json/wp/v2/%s/%s?_embed", baseURL, endpoint, id)
}

// FetchAll pages through a collection sequentially. A short page or the
// MaxPages ceiling ends the crawl. A failure on the first page is returned,
// later failures are treated as the end of the data.
func (c *Client) FetchAll(ctx context.Context, baseURL, endpoint string, auth *vo.Auth) ([]RawItem, error) {
	var items []RawItem
	for page := 1; page <= MaxPages; page++ {
		batch, err := c.fetchPage(ctx, CollectionURL(baseURL, endpoint, page), auth)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("failed to fetch %s: %w", endpoint, err)
			}
			c.logger.Warn("pagination stopped",
				zap.String("endpoint", endpoint),
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}
		items = append(items, batch...)
		if len(batch) < PageSize {
			break
		}
	}
	c.logger.Debug("collection fetched", zap.String("endpoint", endpoint), zap.Int("items", len(items)))
	return items, nil
}

// FetchOne fetches a single object by id.
func (c *Client) FetchOne(ctx context.Context, baseURL, endpoint, id string, auth *vo.Auth) (*RawItem, error) {
	body, err := c.FetchJSON(ctx, ItemURL(baseURL, endpoint, id), auth)
	if err != nil {
		return nil, err
	}
	return DecodeItem(body)
}

func (c *Client) fetchPage(ctx context.Context, pageURL string, auth *vo.Auth) ([]RawItem, error) {
	body, err := c.FetchJSON(ctx, pageURL, auth)
	if err != nil {
		return nil, err
	}
	return DecodeItems(body)
}
