package domain

import "strings"

// Route is the host-relative view of a request URI, equivalent to what the
// CRM router exposes as uri_string() and segment(n).
type Route struct {
	// URIString is the normalised path without leading/trailing slashes,
	// query string or front controller, e.g. "clients/index".
	URIString string
	// Segments holds the non-empty path segments of URIString.
	Segments []string
	// Component is the controller the host would dispatch to.
	Component string
}

// Segment returns the 1-based segment n, or "" when absent.
func (r Route) Segment(n int) string {
	if n < 1 || n > len(r.Segments) {
		return ""
	}
	return r.Segments[n-1]
}

// IsRoot reports whether the route addresses the site root.
func (r Route) IsRoot() bool {
	return r.URIString == ""
}

// Contains reports whether marker occurs anywhere in the URI string.
func (r Route) Contains(marker string) bool {
	return marker != "" && strings.Contains(r.URIString, marker)
}
