package wordpress

import (
	"net/url"
	"strings"
)

// NormalizeHost lower-cases a host name and strips a single leading "www.".
// Language subdomains such as "en." are kept, so en.example.com and
// www.example.com stay different hosts.
func NormalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSuffix(host, ".")), "www.")
}

// HostOf returns the normalized host of rawURL or "" if it has none.
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return NormalizeHost(u.Hostname())
}

// DomainFilter keeps items that live on the crawl target's host.
type DomainFilter struct {
	host string
}

func NewDomainFilter(baseURL string) DomainFilter {
	return DomainFilter{host: HostOf(baseURL)}
}

func (f DomainFilter) Host() string {
	return f.host
}

// Allows reports whether link points at the target host.
func (f DomainFilter) Allows(link string) bool {
	return f.host != "" && HostOf(link) == f.host
}
