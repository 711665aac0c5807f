package htmldoc

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/haukened/portalgate/internal/portal/common/log"
	"github.com/haukened/portalgate/internal/portal/domain"
)

// NavItemClassPrefix marks client navigation items; the rest of the class
// is the item's slug.
const NavItemClassPrefix = "customers-nav-item-"

// NavigationFilter filters top-level navigation entries.
type NavigationFilter interface {
	FilterWithRemoved(entries []domain.NavigationEntry) ([]domain.NavigationEntry, []string)
}

// SnapshotStore keeps the most recent navigation filtering pass.
type SnapshotStore struct {
	mu   sync.RWMutex
	last *domain.NavigationSnapshot
}

func (s *SnapshotStore) Save(snap domain.NavigationSnapshot) {
	s.mu.Lock()
	s.last = &snap
	s.mu.Unlock()
}

// Last returns the most recent snapshot, if any.
func (s *SnapshotStore) Last() (domain.NavigationSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return domain.NavigationSnapshot{}, false
	}
	return *s.last, true
}

// NavigationRewriter removes block-listed items from the rendered client
// navigation.
type NavigationRewriter struct {
	filter    NavigationFilter
	snapshots *SnapshotStore
	logger    log.Logger
}

type NavigationOptions struct {
	Filter NavigationFilter
	// Snapshots is optional.
	Snapshots *SnapshotStore
	Logger    log.Logger
}

func NewNavigationRewriter(opts NavigationOptions) *NavigationRewriter {
	n := &NavigationRewriter{filter: opts.Filter, snapshots: opts.Snapshots, logger: opts.Logger}
	if n.logger == nil {
		n.logger = log.NewNoopLogger()
	}
	return n
}

// Rewrite implements the document policy contract. Admin pages are left
// alone.
func (n *NavigationRewriter) Rewrite(_ context.Context, req *domain.PortalRequest, doc *html.Node) error {
	if req.Area != domain.AreaClient {
		return nil
	}
	entries, nodes := ExtractNavigation(doc)
	if len(entries) == 0 {
		return nil
	}
	kept, removed := n.filter.FilterWithRemoved(entries)
	if len(removed) > 0 {
		blocked := make(map[string]struct{}, len(removed))
		for _, id := range removed {
			blocked[id] = struct{}{}
		}
		for i, e := range entries {
			if _, ok := blocked[e.Identity()]; ok && nodes[i].Parent != nil {
				nodes[i].Parent.RemoveChild(nodes[i])
			}
		}
		n.logger.Debug(map[string]any{"path": req.Route.URIString, "removed": removed}, "navigation items removed")
	}
	if n.snapshots != nil {
		n.snapshots.Save(domain.NavigationSnapshot{
			Path:    "/" + req.Route.URIString,
			Before:  entries,
			After:   kept,
			Removed: removed,
		})
	}
	return nil
}

// ExtractNavigation reads the top-level navigation items of doc, returning
// each entry alongside the li element it was read from. Items nested under
// another item become its children.
func ExtractNavigation(doc *html.Node) ([]domain.NavigationEntry, []*html.Node) {
	var entries []domain.NavigationEntry
	var nodes []*html.Node
	collectItems(doc, func(li *html.Node, slug string) {
		e := entryFor(li, slug)
		e.Position = len(entries) + 1
		entries = append(entries, e)
		nodes = append(nodes, li)
	})
	return entries, nodes
}

// collectItems calls fn for every navigation li under n that is not itself
// nested in another navigation li.
func collectItems(n *html.Node, fn func(li *html.Node, slug string)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if slug, ok := navSlug(c); ok {
			fn(c, slug)
			continue
		}
		collectItems(c, fn)
	}
}

func entryFor(li *html.Node, slug string) domain.NavigationEntry {
	e := domain.NavigationEntry{Slug: slug}
	link := findFirst(li, func(n *html.Node) bool { return n.DataAtom == atom.A })
	if link != nil {
		e.Label = text(link)
		e.URL, _ = attr(link, "href")
	}
	collectItems(li, func(child *html.Node, childSlug string) {
		ce := entryFor(child, childSlug)
		ce.Position = len(e.Children) + 1
		e.Children = append(e.Children, ce)
	})
	return e
}

func navSlug(n *html.Node) (string, bool) {
	if !isElement(n, atom.Li) {
		return "", false
	}
	for _, c := range classes(n) {
		if slug, ok := strings.CutPrefix(c, NavItemClassPrefix); ok && slug != "" {
			return slug, true
		}
	}
	return "", false
}
