// Package transport serves the portal over HTTP. It hosts the reverse proxy
// in front of the CRM, the hook API a host shim can call instead, and the
// token-protected admin endpoints. Policies only ever see domain objects.
package transport

import (
	"context"
	"net/http"

	"golang.org/x/net/html"

	"github.com/haukened/portalgate/internal/portal/domain"
	"github.com/haukened/portalgate/internal/portal/repos/blocklist"
)

// ServerTransport is a listener that can be started and stopped by the
// daemon.
type ServerTransport interface {
	// Start begins serving in the background. Cancelling ctx cancels the
	// context of in-flight requests.
	Start(ctx context.Context) error

	// Stop gracefully shuts the listener down.
	Stop() error

	// Address returns the bound address once started, else the configured one.
	Address() string
}

// Pipeline runs request policies before proxying and document policies on
// proxied HTML.
type Pipeline interface {
	Run(ctx context.Context, req *domain.PortalRequest) domain.RedirectDecision
	Rewrite(ctx context.Context, req *domain.PortalRequest, doc *html.Node)
	HasDocumentPolicies() bool
	StageNames() []string
}

// RequestPolicy is a single request policy, used by the hook API.
type RequestPolicy interface {
	Apply(ctx context.Context, req *domain.PortalRequest) domain.RedirectDecision
}

// LoginFlow arms and consumes the one-shot post-login redirect.
type LoginFlow interface {
	RequestPolicy
	OnLoginSuccess(sessionID string) domain.RedirectDecision
}

// SessionStore tracks which host sessions belong to logged-in clients.
type SessionStore interface {
	IsLoggedIn(id string) (bool, error)
	SetLoggedIn(id string, loggedIn bool) error
	// Delete forgets a session once the host logs it out.
	Delete(id string) error
}

// NavigationFilter filters host navigation entries.
type NavigationFilter interface {
	FilterWithRemoved(entries []domain.NavigationEntry) ([]domain.NavigationEntry, []string)
	Slugs() []string
}

// Assets renders the injected client head and sidebar snippets.
type Assets interface {
	ClientHead(uri string) string
	SidebarScript() string
}

// QuantityClamp forces the quantity parameter on storefront requests.
type QuantityClamp interface {
	ClampParams(component string, sets ...map[string]any) bool
}

// ActivityReader lists recent audit records, newest first.
type ActivityReader interface {
	Recent(n int) ([]domain.ActivityRecord, error)
}

// SnapshotReader returns the last navigation filtering pass.
type SnapshotReader interface {
	Last() (domain.NavigationSnapshot, bool)
}

// StatsReader reports block-list cache and store counters.
type StatsReader interface {
	Stats() blocklist.RepoStats
}

// applyHeaders copies policy headers onto h.
func applyHeaders(h http.Header, headers map[string]string) {
	for k, v := range headers {
		h.Set(k, v)
	}
}
