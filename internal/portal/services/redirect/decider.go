package redirect

import (
	"context"

	"github.com/haukened/portalgate/internal/portal/common/log"
	"github.com/haukened/portalgate/internal/portal/common/uri"
	"github.com/haukened/portalgate/internal/portal/domain"
)

// clientsController is the host's client portal controller.
const clientsController = "clients"

// ActivityLog receives redirect audit records.
type ActivityLog interface {
	Record(msg string, fields map[string]any)
}

// Decider sends logged-in clients from the site root and the client portal
// home page to the storefront.
type Decider struct {
	target   string
	activity ActivityLog
	logger   log.Logger
}

// DeciderOptions configures a Decider.
type DeciderOptions struct {
	// Target is the absolute or root-relative storefront URL.
	Target   string
	Activity ActivityLog
	Logger   log.Logger
}

// NewDecider returns a Decider sending root requests to Target.
func NewDecider(opts DeciderOptions) *Decider {
	d := &Decider{target: opts.Target, activity: opts.Activity, logger: opts.Logger}
	if d.logger == nil {
		d.logger = log.NewNoopLogger()
	}
	return d
}

// Target returns the storefront URL redirects point to.
func (d *Decider) Target() string { return d.target }

// Decide evaluates path (any form the host accepts: "", "/", "clients/",
// "/index.php/clients/index") against the login state.
//
//   - root: redirect iff logged in
//   - "clients" or "clients/index" with nothing after: redirect iff logged in
//   - anything else: no redirect
func (d *Decider) Decide(path string, isLoggedIn bool) domain.RedirectDecision {
	return d.decide(uri.ParseRoute(path, nil), isLoggedIn)
}

// Apply implements the request policy contract. It is registered first in
// the pipeline so its redirect preempts every other policy.
func (d *Decider) Apply(_ context.Context, req *domain.PortalRequest) domain.RedirectDecision {
	dec := d.decide(req.Route, req.LoggedIn)
	if dec.ShouldRedirect {
		msg := "Redirecting from client homepage to Omni Sales"
		if dec.Reason == domain.ReasonRoot {
			msg = "Redirecting from root URL to Omni Sales"
		}
		d.logger.Debug(map[string]any{"path": req.Route.URIString, "target": dec.Target}, "storefront redirect")
		if d.activity != nil {
			d.activity.Record(msg, map[string]any{"path": "/" + req.Route.URIString})
		}
	}
	return dec
}

func (d *Decider) decide(r domain.Route, isLoggedIn bool) domain.RedirectDecision {
	if !isLoggedIn {
		return domain.NoRedirect()
	}
	if r.IsRoot() {
		return domain.RedirectTo(d.target, domain.ReasonRoot)
	}
	if isClientHome(r) {
		return domain.RedirectTo(d.target, domain.ReasonClientHome)
	}
	return domain.NoRedirect()
}

func isClientHome(r domain.Route) bool {
	if r.Segment(1) != clientsController {
		return false
	}
	switch len(r.Segments) {
	case 1:
		return true
	case 2:
		return r.Segment(2) == "index"
	default:
		return false
	}
}
