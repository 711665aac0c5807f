package htmldoc

import (
	"context"
	"errors"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/haukened/portalgate/internal/portal/common/log"
	"github.com/haukened/portalgate/internal/portal/domain"
)

// ErrNoHead is returned when a page has no head element to inject into.
var ErrNoHead = errors.New("document has no head")

// Assets supplies the snippets injected into client pages.
type Assets interface {
	ClientHead(uri string) string
	SidebarScript() string
}

// HeadInjector appends the client head snippet to the page head.
type HeadInjector struct {
	assets Assets
	logger log.Logger
}

func NewHeadInjector(assets Assets, logger log.Logger) *HeadInjector {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &HeadInjector{assets: assets, logger: logger}
}

func (h *HeadInjector) Rewrite(_ context.Context, req *domain.PortalRequest, doc *html.Node) error {
	if req.Area != domain.AreaClient {
		return nil
	}
	head := findFirst(doc, func(n *html.Node) bool { return n.DataAtom == atom.Head })
	if head == nil {
		return ErrNoHead
	}
	snippet := h.assets.ClientHead(req.RawURI)
	if snippet == "" {
		return nil
	}
	nodes, err := fragment(snippet, head)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		head.AppendChild(n)
	}
	h.logger.Debug(map[string]any{"path": req.Route.URIString, "nodes": len(nodes)}, "head assets injected")
	return nil
}

// SidebarInjector places the sidebar cleanup script directly before the
// list holding the client navigation items. Pages without navigation are
// left unchanged.
type SidebarInjector struct {
	assets Assets
	logger log.Logger
}

func NewSidebarInjector(assets Assets, logger log.Logger) *SidebarInjector {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &SidebarInjector{assets: assets, logger: logger}
}

func (s *SidebarInjector) Rewrite(_ context.Context, req *domain.PortalRequest, doc *html.Node) error {
	if req.Area != domain.AreaClient {
		return nil
	}
	item := findFirst(doc, func(n *html.Node) bool {
		_, ok := navSlug(n)
		return ok
	})
	if item == nil || item.Parent == nil || item.Parent.Parent == nil {
		return nil
	}
	list := item.Parent
	snippet := s.assets.SidebarScript()
	if snippet == "" {
		return nil
	}
	nodes, err := fragment(snippet, list.Parent)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		list.Parent.InsertBefore(n, list)
	}
	return nil
}
