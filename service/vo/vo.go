package vo

type Markdown string

type PageType string

const (
	PageTypePage   PageType = "page"
	PageTypePost   PageType = "post"
	PageTypeCustom PageType = "custom"
	PageTypeGhost  PageType = "ghost"
)

// PageStatus is the workflow tag a user assigns while restructuring a site.
type PageStatus string

const (
	StatusNeutral          PageStatus = "neutral"
	StatusMove             PageStatus = "move"
	StatusActive           PageStatus = "active"
	StatusArchived         PageStatus = "archived"
	StatusRedirect         PageStatus = "redirect"
	StatusNew              PageStatus = "new"
	StatusRemove           PageStatus = "remove"
	StatusUpdate           PageStatus = "update"
	StatusMerge            PageStatus = "merge"
	StatusHideInNavigation PageStatus = "hide-in-navigation"
	StatusGhost            PageStatus = "ghost"
)

var pageStatuses = map[PageStatus]struct{}{
	StatusNeutral: {}, StatusMove: {}, StatusActive: {}, StatusArchived: {},
	StatusRedirect: {}, StatusNew: {}, StatusRemove: {}, StatusUpdate: {},
	StatusMerge: {}, StatusHideInNavigation: {}, StatusGhost: {},
}

func (s PageStatus) Valid() bool {
	_, ok := pageStatuses[s]
	return ok
}

type Page struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Type              PageType   `json:"type"`
	ParentID          *string    `json:"parentId"` // nil is a root page
	URL               string     `json:"url"`
	Summary           string     `json:"summary"`
	ThumbnailURL      string     `json:"thumbnailUrl"`
	MenuOrder         int        `json:"menuOrder"`
	Status            PageStatus `json:"status,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	OwnerID           string     `json:"ownerId,omitempty"`
	Relevance         int        `json:"relevance,omitempty"` // 1-5, 0 is unset
	MovedFromParentID *string    `json:"movedFromParentId,omitempty"`
	MergeTargetID     string     `json:"mergeTargetId,omitempty"`
	Markdown          Markdown   `json:"markdown,omitempty"`
}

// Parent returns the parent id or "" for a root page.
func (p Page) Parent() string {
	if p.ParentID == nil {
		return ""
	}
	return *p.ParentID
}

// IsRoot reports whether p has no parent.
func (p Page) IsRoot() bool {
	return p.ParentID == nil
}

// StringPtr returns nil for "" and a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// PagePatch carries partial field updates. Nil fields are left untouched.
type PagePatch struct {
	Title         *string     `json:"title,omitempty"`
	Status        *PageStatus `json:"status,omitempty"`
	Notes         *string     `json:"notes,omitempty"`
	OwnerID       *string     `json:"ownerId,omitempty"`
	Relevance     *int        `json:"relevance,omitempty"`
	MergeTargetID *string     `json:"mergeTargetId,omitempty"`
	ThumbnailURL  *string     `json:"thumbnailUrl,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p PagePatch) Empty() bool {
	return p.Title == nil && p.Status == nil && p.Notes == nil && p.OwnerID == nil &&
		p.Relevance == nil && p.MergeTargetID == nil && p.ThumbnailURL == nil
}

type TreeNode struct {
	Page
	Children []*TreeNode `json:"children"`
	IsOpen   bool        `json:"isOpen"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type GraphNode struct {
	ID       string   `json:"id"`
	Page     Page     `json:"data"`
	Position Position `json:"position"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
}

type GraphEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Auth holds WordPress application password credentials.
type Auth struct {
	Username    string `json:"username"`
	AppPassword string `json:"appPassword"`
}

type CrawlConfig struct {
	URL             string `json:"url" yaml:"url"`
	IncludePages    bool   `json:"includePages" yaml:"include_pages"`
	IncludePosts    bool   `json:"includePosts" yaml:"include_posts"`
	IncludeCustom   bool   `json:"includeCustom" yaml:"include_custom"` // reserved
	Username        string `json:"username,omitempty" yaml:"username"`
	AppPassword     string `json:"appPassword,omitempty" yaml:"app_password"`
	IncludeMarkdown bool   `json:"includeMarkdown,omitempty" yaml:"include_markdown"`
}

// Auth returns the credentials or nil when none are configured.
func (c CrawlConfig) Auth() *Auth {
	if c.Username == "" || c.AppPassword == "" {
		return nil
	}
	return &Auth{Username: c.Username, AppPassword: c.AppPassword}
}

// PageMove is one entry of a project's move history.
type PageMove struct {
	PageID       string `json:"pageId"`
	FromParentID string `json:"fromParentId"`
	ToParentID   string `json:"toParentId"`
	Index        int    `json:"index"`
	MovedAt      int64  `json:"movedAt"` // unix millis
}
