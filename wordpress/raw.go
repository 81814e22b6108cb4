package wordpress

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ItemID is a WordPress object id. The API sends numbers, some plugins send
// numeric strings.
type ItemID int64

func (id ItemID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func (id *ItemID) UnmarshalJSON(b []byte) error {
	n, ok := parseNumeric(b)
	if !ok {
		return fmt.Errorf("invalid id %s", b)
	}
	*id = ItemID(n)
	return nil
}

// ParentRef is the parent field of a content record. WordPress uses 0 as
// the root sentinel; null, false, "" and "0" mean the same.
type ParentRef struct {
	id string
}

// ID returns the parent id or "" for a root item.
func (p ParentRef) ID() string {
	return p.id
}

func (p *ParentRef) UnmarshalJSON(b []byte) error {
	s := string(bytes.TrimSpace(b))
	switch s {
	case "null", "false", `""`, "0", `"0"`:
		p.id = ""
		return nil
	case "true":
		return fmt.Errorf("invalid parent %s", s)
	}
	n, ok := parseNumeric(b)
	if !ok {
		if strings.HasPrefix(s, `"`) {
			// non numeric strings cannot reference a WordPress object
			p.id = ""
			return nil
		}
		return fmt.Errorf("invalid parent %s", s)
	}
	if n <= 0 {
		p.id = ""
		return nil
	}
	p.id = strconv.FormatInt(n, 10)
	return nil
}

// Rendered is the {"rendered": "..."} envelope used for title, excerpt and
// content. A bare string is accepted as well.
type Rendered struct {
	Rendered string `json:"rendered"`
}

func (r *Rendered) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		r.Rendered = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		return json.Unmarshal(b, &r.Rendered)
	case len(b) > 0 && b[0] == '{':
		var v struct {
			Rendered string `json:"rendered"`
		}
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		r.Rendered = v.Rendered
		return nil
	}
	return fmt.Errorf("invalid rendered field %s", b)
}

type Media struct {
	SourceURL string `json:"source_url"`
}

type Embedded struct {
	FeaturedMedia []Media `json:"wp:featuredmedia"`
}

// RawItem is the subset of a wp/v2 pages or posts record the mapper reads.
type RawItem struct {
	ID        ItemID    `json:"id"`
	Link      string    `json:"link"`
	Type      string    `json:"type"`
	Title     Rendered  `json:"title"`
	Excerpt   Rendered  `json:"excerpt"`
	Content   Rendered  `json:"content"`
	Parent    ParentRef `json:"parent"`
	MenuOrder int       `json:"menu_order"`
	Embedded  *Embedded `json:"_embedded,omitempty"`
}

func (item *RawItem) UnmarshalJSON(b []byte) error {
	type plain RawItem
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v.ID <= 0 {
		return fmt.Errorf("item without id")
	}
	*item = RawItem(v)
	return nil
}

// FeaturedImage returns the embedded featured media URL or "".
func (item RawItem) FeaturedImage() string {
	if item.Embedded == nil {
		return ""
	}
	for _, m := range item.Embedded.FeaturedMedia {
		if m.SourceURL != "" {
			return m.SourceURL
		}
	}
	return ""
}

// DecodeItems decodes a collection page. Any schema mismatch fails the
// whole page with ErrMalformedResponse.
func DecodeItems(body []byte) ([]RawItem, error) {
	var items []RawItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return items, nil
}

// DecodeItem decodes a single item response.
func DecodeItem(body []byte) (*RawItem, error) {
	var item RawItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &item, nil
}

func parseNumeric(b []byte) (int64, bool) {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return 0, false
		}
		s = strings.TrimSpace(unquoted)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
