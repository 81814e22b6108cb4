package service

import (
	"errors"

	"github.com/foomo/sitemap-mcp/reconcile"
	"github.com/foomo/sitemap-mcp/wordpress"
)

const (
	msgUnreachable  = "could not load the WordPress REST API: check the URL or authentication/CORS settings"
	msgAuthRejected = "the WordPress REST API rejected the request: check the username and application password"
	msgNoContent    = "no pages or posts were found on this site: check the URL and the included content types"
	msgTooDeep      = "the page hierarchy of this site nests too deep to build a site map"
	msgMalformed    = "the site did not answer with WordPress REST API data: check that the URL points to a WordPress site"
)

// UserMessage turns err into a single actionable sentence for the UI. Errors
// that are not crawl failures keep their own message.
func UserMessage(err error) string {
	var te *wordpress.TransportError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &te) && te.AuthRejected():
		return msgAuthRejected
	case errors.Is(err, wordpress.ErrTransportExhausted):
		return msgUnreachable
	case errors.Is(err, wordpress.ErrMalformedResponse):
		return msgMalformed
	case errors.Is(err, reconcile.ErrNoContentFound):
		return msgNoContent
	case errors.Is(err, reconcile.ErrTooDeep):
		return msgTooDeep
	default:
		return err.Error()
	}
}
