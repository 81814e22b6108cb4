package reconcile

import (
	"sort"

	"github.com/foomo/sitemap-mcp/service/vo"
	"github.com/foomo/sitemap-mcp/wordpress"
)

// workingSet holds the pages of one run in insertion order, unique by id.
type workingSet struct {
	pages []vo.Page
	index map[string]int
}

func newWorkingSet() *workingSet {
	return &workingSet{index: map[string]int{}}
}

func (s *workingSet) len() int {
	return len(s.pages)
}

// add appends p unless its id is already known.
func (s *workingSet) add(p vo.Page) bool {
	if _, ok := s.index[p.ID]; ok {
		return false
	}
	s.index[p.ID] = len(s.pages)
	s.pages = append(s.pages, p)
	return true
}

// missingParents returns the sorted ids that are referenced as parent but
// absent from the set.
func (s *workingSet) missingParents() []string {
	seen := map[string]struct{}{}
	var missing []string
	for _, p := range s.pages {
		if p.ParentID == nil {
			continue
		}
		id := *p.ParentID
		if _, ok := s.index[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	sort.Strings(missing)
	return missing
}

// attachContainer returns the id of the page that collects the posts. An
// existing blog/news page is preferred, otherwise a custom container is
// added as the last root.
func (s *workingSet) attachContainer(base string) string {
	maxRootOrder := -1
	for _, p := range s.pages {
		if p.Type == vo.PageTypePage && containerPattern.MatchString(p.Title) {
			return p.ID
		}
		if p.ParentID == nil && p.MenuOrder > maxRootOrder {
			maxRootOrder = p.MenuOrder
		}
	}
	s.add(vo.Page{
		ID:           ContainerID,
		Title:        ContainerTitle,
		Type:         vo.PageTypeCustom,
		URL:          base + "/blog/",
		ThumbnailURL: wordpress.PlaceholderImage(ContainerID),
		MenuOrder:    maxRootOrder + 1,
	})
	return ContainerID
}
