package domain

import "net/url"

// Area distinguishes the host's client portal from its admin panel and from
// static files the host serves without dispatching a controller.
type Area uint8

const (
	AreaClient Area = iota
	AreaAdmin
	AreaStatic
)

func (a Area) String() string {
	switch a {
	case AreaAdmin:
		return "admin"
	case AreaStatic:
		return "static"
	default:
		return "client"
	}
}

// PortalRequest is the per-request state handed to every policy. Policies
// may mutate Query and Form; the transport writes them back before the
// request reaches the host.
type PortalRequest struct {
	Method    string
	Route     Route
	RawURI    string
	Area      Area
	SessionID string
	LoggedIn  bool
	IsAdmin   bool

	Query url.Values
	// Form holds urlencoded POST fields; nil when the body is not a form.
	Form url.Values

	// Headers collects response headers policies want set.
	Headers map[string]string
}

// SetHeader records a header to add to the eventual response.
func (r *PortalRequest) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
}
