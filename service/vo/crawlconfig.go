package vo

import (
	"errors"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var errNoContentType = errors.New("at least one of pages or posts must be included")

// Validate validates the crawl configuration.
func (c *CrawlConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, validation.By(siteURL)),
		validation.Field(&c.AppPassword, validation.When(c.Username != "", validation.Required)),
	); err != nil {
		return err
	}
	if !c.IncludePages && !c.IncludePosts {
		return errNoContentType
	}
	return nil
}

// BaseURL returns the normalized site root without a trailing slash.
// A missing scheme defaults to https.
func (c CrawlConfig) BaseURL() string {
	raw := strings.TrimSpace(c.URL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

func siteURL(value interface{}) error {
	s, _ := value.(string)
	raw := strings.TrimSpace(s)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if u.Host == "" {
		return errors.New("must contain a host")
	}
	return nil
}
