package pipeline

import (
	"context"
	"time"

	"golang.org/x/net/html"

	"github.com/haukened/portalgate/internal/portal/common/log"
	"github.com/haukened/portalgate/internal/portal/domain"
)

// RequestPolicy runs before a request reaches the host. It may mutate the
// request's query, form and response headers, and may ask for a redirect.
type RequestPolicy interface {
	Apply(ctx context.Context, req *domain.PortalRequest) domain.RedirectDecision
}

// DocumentPolicy rewrites an HTML page served by the host.
type DocumentPolicy interface {
	Rewrite(ctx context.Context, req *domain.PortalRequest, doc *html.Node) error
}

// RequestPolicyFunc adapts a function to RequestPolicy.
type RequestPolicyFunc func(ctx context.Context, req *domain.PortalRequest) domain.RedirectDecision

func (f RequestPolicyFunc) Apply(ctx context.Context, req *domain.PortalRequest) domain.RedirectDecision {
	return f(ctx, req)
}

// DocumentPolicyFunc adapts a function to DocumentPolicy.
type DocumentPolicyFunc func(ctx context.Context, req *domain.PortalRequest, doc *html.Node) error

func (f DocumentPolicyFunc) Rewrite(ctx context.Context, req *domain.PortalRequest, doc *html.Node) error {
	return f(ctx, req, doc)
}

// Stage names a request policy for logging.
type Stage struct {
	Name   string
	Policy RequestPolicy
}

// DocumentStage names a document policy for logging.
type DocumentStage struct {
	Name   string
	Policy DocumentPolicy
}

// Pipeline runs request policies in registration order, then document
// policies on HTML responses.
type Pipeline struct {
	stages    []Stage
	documents []DocumentStage
	logger    log.Logger
}

// Options lists the request stages and document stages in run order.
type Options struct {
	Stages    []Stage
	Documents []DocumentStage
	Logger    log.Logger
}

// New returns a Pipeline running the stages of opts.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		stages:    append([]Stage(nil), opts.Stages...),
		documents: append([]DocumentStage(nil), opts.Documents...),
		logger:    opts.Logger,
	}
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	return p
}

// Run applies each stage in order and returns the first redirect. Stages
// after a redirect are not run.
func (p *Pipeline) Run(ctx context.Context, req *domain.PortalRequest) domain.RedirectDecision {
	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return domain.NoRedirect()
		}
		start := time.Now()
		dec := s.Policy.Apply(ctx, req)
		if dec.ShouldRedirect {
			p.logger.Debug(map[string]any{
				"stage":    s.Name,
				"path":     req.Route.URIString,
				"target":   dec.Target,
				"reason":   string(dec.Reason),
				"duration": time.Since(start),
			}, "request redirected")
			return dec
		}
	}
	return domain.NoRedirect()
}

// Rewrite applies every document policy. A failing policy is logged and
// skipped; the remaining policies still run.
func (p *Pipeline) Rewrite(ctx context.Context, req *domain.PortalRequest, doc *html.Node) {
	for _, d := range p.documents {
		if err := d.Policy.Rewrite(ctx, req, doc); err != nil {
			p.logger.Warn(map[string]any{
				"stage": d.Name,
				"path":  req.Route.URIString,
				"error": err,
			}, "document policy failed")
		}
	}
}

// HasDocumentPolicies reports whether HTML responses need parsing at all.
func (p *Pipeline) HasDocumentPolicies() bool {
	return len(p.documents) > 0
}

// StageNames lists the request stages in order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name)
	}
	return names
}
