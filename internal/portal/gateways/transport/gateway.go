package transport

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/haukened/portalgate/internal/portal/common/log"
	"github.com/haukened/portalgate/internal/portal/common/uri"
)

const (
	hooksPrefix = "/_portal/hooks"
	adminPrefix = "/_portal/admin"
	healthPath  = "/_portal/healthz"
)

// ModuleInfo is shown on the admin index page.
type ModuleInfo struct {
	Name    string
	Target  string
	Marker  string
	CartURL string
}

// Options wire the gateway to its collaborators. Upstream, Pipeline,
// Sessions and Login are required.
type Options struct {
	Upstream *url.URL
	Pipeline Pipeline
	Sessions SessionStore
	Login    LoginFlow

	// Hook API policies.
	Root       RequestPolicy
	Notice     RequestPolicy
	Navigation NavigationFilter
	Assets     Assets
	Clamp      QuantityClamp

	// Admin diagnostics.
	Activity  ActivityReader
	Snapshots SnapshotReader
	Stats     StatsReader
	Info      ModuleInfo

	// SessionCookie is the host's session cookie name.
	SessionCookie string
	// Modules lists host module directories for component resolution.
	Modules     []string
	AdminPaths  *uri.Matcher
	LoginPaths  *uri.Matcher
	LogoutPaths *uri.Matcher
	// StaticPaths match files the host serves without a controller.
	StaticPaths *uri.Matcher
	// AdminToken guards the hook API and enables the admin endpoints.
	AdminToken string

	// Transport overrides the upstream round tripper.
	Transport http.RoundTripper
	Logger    log.Logger
}

// Gateway is the HTTP surface of the portal.
type Gateway struct {
	opts   Options
	proxy  *httputil.ReverseProxy
	router chi.Router
	logger log.Logger
}

func NewGateway(opts Options) (*Gateway, error) {
	switch {
	case opts.Upstream == nil:
		return nil, errors.New("gateway: upstream is required")
	case opts.Pipeline == nil:
		return nil, errors.New("gateway: pipeline is required")
	case opts.Sessions == nil:
		return nil, errors.New("gateway: session store is required")
	case opts.Login == nil:
		return nil, errors.New("gateway: login flow is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.SessionCookie == "" {
		opts.SessionCookie = "sp_session"
	}
	g := &Gateway{opts: opts, logger: opts.Logger}
	g.proxy = &httputil.ReverseProxy{
		Rewrite:        g.rewriteOutbound,
		ModifyResponse: g.modifyResponse,
		ErrorHandler:   g.proxyError,
		Transport:      opts.Transport,
	}
	g.router = g.routes()
	return g, nil
}

// Handler returns the root HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(g.accessLog)

	r.Get(healthPath, func(w http.ResponseWriter, r *http.Request) { writeText(w, http.StatusOK, "ok\n") })

	r.Route(hooksPrefix, func(r chi.Router) {
		r.Use(g.requireToken(false))
		r.Post("/app_init", g.hookAppInit)
		r.Post("/after_client_login", g.hookAfterClientLogin)
		r.Post("/after_client_area_init", g.hookAfterClientAreaInit)
		r.Post("/customers_area_navigation", g.hookNavigation)
		r.Post("/app_customers_head", g.hookCustomersHead)
		r.Post("/customers_navigation_start", g.hookNavigationStart)
		r.Post("/admin_init", g.hookAdminInit)
		r.Post("/pre_controller", g.hookPreController)
	})

	if g.opts.AdminToken != "" {
		r.Route(adminPrefix, func(r chi.Router) {
			r.Use(g.requireToken(true))
			r.Get("/", g.adminIndex)
			r.Get("/debug_menus", g.adminDebugMenus)
			r.Get("/activity", g.adminActivity)
			r.Get("/stats", g.adminStats)
		})
	} else {
		g.logger.Warn(nil, "admin token not set, admin endpoints disabled and hook API unauthenticated")
	}

	r.Handle("/*", http.HandlerFunc(g.serveProxy))
	return r
}

func (g *Gateway) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	g.logger.Warn(map[string]any{
		"path":  r.URL.Path,
		"error": err.Error(),
	}, "upstream request failed")
	writeText(w, http.StatusBadGateway, "bad gateway\n")
}
