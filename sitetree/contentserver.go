package sitetree

import (
	"net/url"

	"github.com/foomo/contentserver/content"
	"github.com/foomo/sitemap-mcp/service/vo"
)

const (
	RootNodeID   = "root"
	MimeTypeRoot = "application/x-sitemap-root"
)

// MimeType returns the contentserver mime type of a page type.
func MimeType(t vo.PageType) string {
	return "application/x-wordpress-" + string(t)
}

// ToRepoNode exports the forest as a contentserver repository tree. Child
// order is kept in Index; pages tagged hide-in-navigation become hidden nodes.
func ToRepoNode(f *Forest, name string) *content.RepoNode {
	root := &content.RepoNode{
		ID:       RootNodeID,
		Name:     name,
		URI:      "/",
		MimeType: MimeTypeRoot,
		Data:     map[string]interface{}{},
		Nodes:    map[string]*content.RepoNode{},
		Index:    f.Roots(),
	}
	var fill func(parent *content.RepoNode, ids []string, depth int)
	fill = func(parent *content.RepoNode, ids []string, depth int) {
		if depth > MaxDepth {
			return
		}
		for _, id := range ids {
			n := f.nodes[id]
			child := repoNode(n.page)
			child.Index = append([]string(nil), n.children...)
			parent.Nodes[id] = child
			fill(child, n.children, depth+1)
		}
	}
	fill(root, root.Index, 0)
	return root
}

func repoNode(p vo.Page) *content.RepoNode {
	uri := "/" + p.ID
	if u, err := url.Parse(p.URL); err == nil && p.URL != "" {
		uri = u.EscapedPath()
		if uri == "" {
			uri = "/"
		}
	}
	data := map[string]interface{}{
		"url":          p.URL,
		"summary":      p.Summary,
		"thumbnailUrl": p.ThumbnailURL,
		"menuOrder":    p.MenuOrder,
	}
	if p.Status != "" {
		data["status"] = string(p.Status)
	}
	if p.OwnerID != "" {
		data["ownerId"] = p.OwnerID
	}
	if p.Relevance > 0 {
		data["relevance"] = p.Relevance
	}
	if p.MergeTargetID != "" {
		data["mergeTargetId"] = p.MergeTargetID
	}
	return &content.RepoNode{
		ID:       p.ID,
		Name:     p.Title,
		URI:      uri,
		MimeType: MimeType(p.Type),
		Hidden:   p.Status == vo.StatusHideInNavigation,
		Data:     data,
		Nodes:    map[string]*content.RepoNode{},
	}
}
