package wordpress

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/foomo/sitemap-mcp/service/vo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// relayServer serves one handler per transport so tests can see which
// transports were hit.
type relayServer struct {
	*httptest.Server
	direct, corsproxy, allorigins http.HandlerFunc
	hits                          map[Method]*atomic.Int32
	authSeen                      map[Method]*atomic.Bool
}

func newRelayServer(t *testing.T) *relayServer {
	t.Helper()
	rs := &relayServer{
		hits: map[Method]*atomic.Int32{
			MethodDirect: {}, MethodCorsProxy: {}, MethodAllOrigins: {},
		},
		authSeen: map[Method]*atomic.Bool{
			MethodDirect: {}, MethodCorsProxy: {}, MethodAllOrigins: {},
		},
	}
	mux := http.NewServeMux()
	route := func(m Method, h *http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rs.hits[m].Add(1)
			if _, _, ok := r.BasicAuth(); ok {
				rs.authSeen[m].Store(true)
			}
			if *h == nil {
				http.Error(w, "not configured", http.StatusBadGateway)
				return
			}
			(*h)(w, r)
		}
	}
	mux.HandleFunc("/wp-json/", route(MethodDirect, &rs.direct))
	mux.HandleFunc("/corsproxy/", route(MethodCorsProxy, &rs.corsproxy))
	mux.HandleFunc("/allorigins/", route(MethodAllOrigins, &rs.allorigins))
	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

func (rs *relayServer) client(t *testing.T) *Client {
	t.Helper()
	return NewClient(rs.Server.Client(), zaptest.NewLogger(t), WithRelays(
		Relay{Method: MethodCorsProxy, Prefix: rs.URL + "/corsproxy/?url=", ForwardsAuth: true},
		Relay{Method: MethodAllOrigins, Prefix: rs.URL + "/allorigins/?url=", ForwardsAuth: false},
	))
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func htmlHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte("<!DOCTYPE html><html><body>blocked</body></html>"))
}

func TestFetchJSONDirect(t *testing.T) {
	rs := newRelayServer(t)
	rs.direct = jsonHandler(`  [{"id":1}]`)

	body, err := rs.client(t).FetchJSON(context.Background(), rs.URL+"/wp-json/wp/v2/pages", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(body))
	assert.EqualValues(t, 1, rs.hits[MethodDirect].Load())
	assert.EqualValues(t, 0, rs.hits[MethodCorsProxy].Load())
}

func TestFetchJSONFallsBackOnHTMLBody(t *testing.T) {
	rs := newRelayServer(t)
	rs.direct = htmlHandler
	rs.corsproxy = htmlHandler
	rs.allorigins = jsonHandler(`{"ok":true}`)

	body, err := rs.client(t).FetchJSON(context.Background(), rs.URL+"/wp-json/wp/v2/pages/1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.EqualValues(t, 1, rs.hits[MethodDirect].Load())
	assert.EqualValues(t, 1, rs.hits[MethodCorsProxy].Load())
	assert.EqualValues(t, 1, rs.hits[MethodAllOrigins].Load())
}

func TestFetchJSONExhausted(t *testing.T) {
	rs := newRelayServer(t)
	rs.direct = htmlHandler

	_, err := rs.client(t).FetchJSON(context.Background(), rs.URL+"/wp-json/wp/v2/pages", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransportExhausted))
	assert.True(t, errors.Is(err, ErrMalformedResponse))

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, []Method{MethodDirect, MethodCorsProxy, MethodAllOrigins}, terr.Methods())
	assert.False(t, terr.AuthRejected())
	assert.Contains(t, err.Error(), "connection failed")
}

func TestFetchJSONWithAuthSkipsHeaderStrippingRelay(t *testing.T) {
	rs := newRelayServer(t)
	unauthorized := func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":"rest_forbidden"}`, http.StatusUnauthorized)
	}
	rs.direct = unauthorized
	rs.corsproxy = unauthorized
	rs.allorigins = jsonHandler(`[]`)

	auth := &vo.Auth{Username: "editor", AppPassword: "abcd efgh"}
	_, err := rs.client(t).FetchJSON(context.Background(), rs.URL+"/wp-json/wp/v2/pages", auth)
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, []Method{MethodDirect, MethodCorsProxy}, terr.Methods())
	assert.Equal(t, []Method{MethodAllOrigins}, terr.Skipped)
	assert.True(t, terr.AuthRejected())
	assert.Contains(t, err.Error(), "authentication likely rejected")

	assert.EqualValues(t, 0, rs.hits[MethodAllOrigins].Load())
	assert.True(t, rs.authSeen[MethodDirect].Load())
	assert.True(t, rs.authSeen[MethodCorsProxy].Load())
}

func TestFetchJSONRelayReceivesTarget(t *testing.T) {
	rs := newRelayServer(t)
	rs.direct = htmlHandler
	var got string
	rs.corsproxy = func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("url")
		jsonHandler(`[]`)(w, r)
	}

	target := rs.URL + "/wp-json/wp/v2/pages?per_page=50&page=2&_embed"
	_, err := rs.client(t).FetchJSON(context.Background(), target, nil)
	require.NoError(t, err)
	assert.Equal(t, target, got)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(nil, nil)
	assert.Equal(t, http.DefaultClient, c.httpClient)
	assert.Equal(t, DefaultRelays, c.relays)

	c = NewClient(nil, nil, WithRelays())
	assert.Empty(t, c.relays)
}
