package redirect

import (
	"context"

	"github.com/haukened/portalgate/internal/portal/common/log"
	"github.com/haukened/portalgate/internal/portal/domain"
)

// SessionStore holds the one-shot login redirect flag per session.
type SessionStore interface {
	ArmLoginRedirect(id string) error
	ConsumeLoginRedirect(id string) (domain.FlagState, error)
}

// LoginFlow sends clients to the storefront right after they log in. The
// login response itself is redirected, and a session flag repeats the
// redirect on the next client-area request in case the host overrides the
// first one.
type LoginFlow struct {
	sessions SessionStore
	target   string
	marker   string
	activity ActivityLog
	logger   log.Logger
}

// LoginFlowOptions configures a LoginFlow. Target is the storefront URL
// clients are sent to.
type LoginFlowOptions struct {
	Sessions SessionStore
	Target   string
	// Marker identifies storefront paths; a pending flag is cleared without
	// redirecting when the request already targets the storefront.
	Marker   string
	Activity ActivityLog
	Logger   log.Logger
}

// NewLoginFlow returns a LoginFlow. A nil Logger discards output.
func NewLoginFlow(opts LoginFlowOptions) *LoginFlow {
	l := &LoginFlow{
		sessions: opts.Sessions,
		target:   opts.Target,
		marker:   opts.Marker,
		activity: opts.Activity,
		logger:   opts.Logger,
	}
	if l.logger == nil {
		l.logger = log.NewNoopLogger()
	}
	return l
}

// OnLoginSuccess arms the flag for sessionID and returns the redirect for
// the login response. The redirect is returned even if arming fails.
func (l *LoginFlow) OnLoginSuccess(sessionID string) domain.RedirectDecision {
	if err := l.sessions.ArmLoginRedirect(sessionID); err != nil {
		l.logger.Warn(map[string]any{"error": err.Error()}, "failed to arm login redirect")
	}
	l.record("Redirecting client after login to Omni Sales", nil)
	return domain.RedirectTo(l.target, domain.ReasonLogin)
}

// ConsumeLoginRedirect reads and clears the flag for sessionID. It
// redirects only when the flag was set and route is not already a
// storefront page.
func (l *LoginFlow) ConsumeLoginRedirect(sessionID string, route domain.Route) domain.RedirectDecision {
	if sessionID == "" {
		return domain.NoRedirect()
	}
	prev, err := l.sessions.ConsumeLoginRedirect(sessionID)
	if err != nil {
		l.logger.Warn(map[string]any{"error": err.Error()}, "failed to consume login redirect")
		return domain.NoRedirect()
	}
	if prev != domain.FlagSet {
		return domain.NoRedirect()
	}
	if route.Contains(l.marker) {
		l.logger.Debug(map[string]any{"path": route.URIString}, "login redirect flag cleared on storefront page")
		return domain.NoRedirect()
	}
	l.record("Force redirecting to Omni Sales after login", map[string]any{"path": route.URIString})
	return domain.RedirectTo(l.target, domain.ReasonLoginFlag)
}

// Apply consumes the flag on client-area page requests only. Admin and
// static file requests leave it pending.
func (l *LoginFlow) Apply(_ context.Context, req *domain.PortalRequest) domain.RedirectDecision {
	if req.Area != domain.AreaClient {
		return domain.NoRedirect()
	}
	return l.ConsumeLoginRedirect(req.SessionID, req.Route)
}

func (l *LoginFlow) record(msg string, fields map[string]any) {
	if l.activity != nil {
		l.activity.Record(msg, fields)
	}
}
