package uri

import (
	"path"
	"strings"

	"github.com/haukened/portalgate/internal/portal/domain"
)

// frontController is stripped from paths when the host is served without
// URL rewriting.
const frontController = "index.php"

// Normalize returns the host-relative URI string for a request path:
// query removed, front controller removed, duplicate and surrounding slashes
// removed. "/" and "" both normalise to "".
func Normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = path.Clean("/" + p)
	p = strings.Trim(p, "/")
	if p == frontController {
		return ""
	}
	p = strings.TrimPrefix(p, frontController+"/")
	return p
}

// ParseRoute builds a Route. modules lists the host module directories whose
// controller lives in the second segment (e.g. "omni_sales" routes
// "omni_sales/omni_sales_client/index" to component "omni_sales_client").
func ParseRoute(p string, modules []string) domain.Route {
	s := Normalize(p)
	var segs []string
	if s != "" {
		segs = strings.Split(s, "/")
	}
	return domain.Route{
		URIString: s,
		Segments:  segs,
		Component: component(segs, modules),
	}
}

func component(segs []string, modules []string) string {
	if len(segs) == 0 {
		return ""
	}
	if len(segs) > 1 {
		for _, m := range modules {
			if segs[0] == m {
				return segs[1]
			}
		}
	}
	return segs[0]
}

// SiteURL joins a host-relative path onto the public base URL, the way the
// host's site_url() helper does. An empty base yields a root-relative path.
func SiteURL(base, p string) string {
	p = strings.TrimLeft(p, "/")
	if base == "" {
		return "/" + p
	}
	return strings.TrimRight(base, "/") + "/" + p
}
