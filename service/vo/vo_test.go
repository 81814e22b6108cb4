package vo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageJSON(t *testing.T) {
	page := Page{
		ID:        "42",
		Title:     "About",
		Type:      PageTypePage,
		ParentID:  StringPtr("7"),
		URL:       "https://example.com/about/",
		MenuOrder: 3,
	}
	b, err := json.Marshal(page)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "42",
		"title": "About",
		"type": "page",
		"parentId": "7",
		"url": "https://example.com/about/",
		"summary": "",
		"thumbnailUrl": "",
		"menuOrder": 3
	}`, string(b))

	root := Page{ID: "1"}
	b, err = json.Marshal(root)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"parentId":null`)
	assert.True(t, root.IsRoot())
	assert.Equal(t, "", root.Parent())
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	require.NotNil(t, StringPtr("x"))
	assert.Equal(t, "x", *StringPtr("x"))
}

func TestPageStatusValid(t *testing.T) {
	for _, s := range []PageStatus{StatusNeutral, StatusMerge, StatusHideInNavigation, StatusGhost} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, PageStatus("deleted").Valid())
	assert.False(t, PageStatus("").Valid())
}

func TestPagePatchEmpty(t *testing.T) {
	assert.True(t, PagePatch{}.Empty())
	notes := ""
	assert.False(t, PagePatch{Notes: &notes}.Empty())

	var patch PagePatch
	require.NoError(t, json.Unmarshal([]byte(`{"status":"merge","mergeTargetId":"9"}`), &patch))
	require.NotNil(t, patch.Status)
	assert.Equal(t, StatusMerge, *patch.Status)
	assert.Nil(t, patch.Title)
}

func TestCrawlConfig(t *testing.T) {
	cfg := CrawlConfig{URL: "example.com/", IncludePages: true}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://example.com", cfg.BaseURL())
	assert.Nil(t, cfg.Auth())

	cfg.Username = "editor"
	assert.Error(t, cfg.Validate(), "username without app password")
	cfg.AppPassword = "abcd efgh"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, &Auth{Username: "editor", AppPassword: "abcd efgh"}, cfg.Auth())

	assert.Error(t, (&CrawlConfig{IncludePages: true}).Validate())
	assert.Error(t, (&CrawlConfig{URL: "ftp://example.com", IncludePages: true}).Validate())
	assert.Error(t, (&CrawlConfig{URL: "https://example.com"}).Validate())
	assert.Equal(t, "http://example.com", CrawlConfig{URL: "http://example.com///"}.BaseURL())
}
