package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/foomo/sitemap-mcp/service/vo"
	"go.uber.org/zap"
)

type Method string

const (
	MethodDirect     Method = "direct"
	MethodCorsProxy  Method = "corsproxy"
	MethodAllOrigins Method = "allorigins"
)

// maxBodySize caps a single response body.
const maxBodySize = 32 << 20

// Relay is a public CORS relay that fetches a target URL on our behalf.
type Relay struct {
	Method Method
	// Prefix is prepended to the query escaped target URL.
	Prefix string
	// ForwardsAuth is false for relays that strip the Authorization header.
	ForwardsAuth bool
}

func (r Relay) URL(target string) string {
	return r.Prefix + url.QueryEscape(target)
}

// DefaultRelays is the fallback chain tried after the direct request.
var DefaultRelays = []Relay{
	{Method: MethodCorsProxy, Prefix: "https://corsproxy.io/?url=", ForwardsAuth: true},
	{Method: MethodAllOrigins, Prefix: "https://api.allorigins.win/raw?url=", ForwardsAuth: false},
}

// Client talks to the WordPress REST API through a fixed fallback chain of
// transports.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	relays     []Relay
}

type Option func(*Client)

// WithRelays replaces the default relay chain. Calling it without relays
// disables the fallback entirely.
func WithRelays(relays ...Relay) Option {
	return func(c *Client) {
		c.relays = append([]Relay{}, relays...)
	}
}

func NewClient(httpClient *http.Client, logger *zap.Logger, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient: httpClient,
		logger:     logger,
		relays:     DefaultRelays,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchJSON performs a GET against target, trying the direct request first
// and then every relay in order. The first JSON shaped 2xx body wins.
func (c *Client) FetchJSON(ctx context.Context, target string, auth *vo.Auth) (json.RawMessage, error) {
	terr := &TransportError{URL: target, Authenticated: auth != nil}

	body, status, err := c.get(ctx, target, auth)
	if err == nil {
		return body, nil
	}
	terr.Attempts = append(terr.Attempts, Attempt{Method: MethodDirect, Status: status, Err: err})
	c.logger.Debug("direct request failed", zap.String("url", target), zap.Int("status", status), zap.Error(err))

	for _, relay := range c.relays {
		var relayAuth *vo.Auth
		if auth != nil {
			if !relay.ForwardsAuth {
				terr.Skipped = append(terr.Skipped, relay.Method)
				continue
			}
			relayAuth = auth
		}
		body, status, err = c.get(ctx, relay.URL(target), relayAuth)
		if err == nil {
			c.logger.Debug("relay request succeeded", zap.String("url", target), zap.String("method", string(relay.Method)))
			return body, nil
		}
		terr.Attempts = append(terr.Attempts, Attempt{Method: relay.Method, Status: status, Err: err})
		c.logger.Debug("relay request failed", zap.String("url", target), zap.String("method", string(relay.Method)), zap.Int("status", status), zap.Error(err))
	}

	return nil, terr
}

func (c *Client) get(ctx context.Context, target string, auth *vo.Auth) (json.RawMessage, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.AppPassword)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("HTTP request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	body = bytes.TrimSpace(body)
	if !looksLikeJSON(body) {
		return nil, resp.StatusCode, fmt.Errorf("%w: body is not JSON", ErrMalformedResponse)
	}
	return body, resp.StatusCode, nil
}

// looksLikeJSON rejects HTML error pages served with a 2xx status.
func looksLikeJSON(body []byte) bool {
	return len(body) > 0 && (body[0] == '{' || body[0] == '[')
}
