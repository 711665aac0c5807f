package assets

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/haukened/portalgate/internal/portal/common/log"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// ErrUnsafePattern is returned for href patterns that cannot be embedded in
// a CSS attribute selector.
var ErrUnsafePattern = errors.New("unsafe href pattern")

// DefaultHrefs are the link targets hidden on the client area.
var DefaultHrefs = []string{
	"clients/order", "clients/orderlist", "clients/orders",
	"clients/shipment", "clients/shipments",
	"/order_list", "/orderlist",
	"clients/files", "clients/file", "clients/documents", "/files",
	"clients/calendar", "clients/calendars", "clients/events", "/calendar",
}

// retries are the delays in milliseconds at which client scripts run again
// to catch late-rendered content.
var retries = []int{300, 600, 1000}

// Options configure the rendered snippets.
type Options struct {
	// Slugs are the blocked navigation slugs.
	Slugs []string
	// Hrefs are substrings of link targets to hide. Nil means DefaultHrefs.
	Hrefs []string
	// CartURL is the storefront cart the customizer sends clients to after
	// adding a product.
	CartURL string
	// Marker selects storefront pages by URI substring.
	Marker string
	Logger log.Logger
}

// Renderer holds the head and sidebar snippets. The block-list is fixed at
// startup, so everything is rendered once in New.
type Renderer struct {
	marker     string
	navigation string
	storefront string
	sidebar    string
}

type navigationData struct {
	Slugs  []string
	Hrefs  []string
	Labels []string
	Delays []int
}

type storefrontData struct {
	CartURL   string
	CartDelay int
	Delays    []int
}

func New(opts Options) (*Renderer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	hrefs := opts.Hrefs
	if hrefs == nil {
		hrefs = DefaultHrefs
	}
	for _, h := range hrefs {
		if strings.ContainsAny(h, "\"\\<>\n") {
			return nil, fmt.Errorf("%w: %q", ErrUnsafePattern, h)
		}
	}

	nav := navigationData{Slugs: opts.Slugs, Hrefs: hrefs, Labels: Labels(opts.Slugs), Delays: retries}
	r := &Renderer{marker: opts.Marker}
	var err error
	if r.navigation, err = render(nav, "navigation.css.tmpl", "navigation.js.tmpl"); err != nil {
		return nil, err
	}
	if r.sidebar, err = render(nav, "sidebar.js.tmpl"); err != nil {
		return nil, err
	}
	sf := storefrontData{CartURL: opts.CartURL, CartDelay: 800, Delays: append(append([]int(nil), retries...), 1500)}
	if r.storefront, err = render(sf, "storefront.css.tmpl", "storefront.js.tmpl"); err != nil {
		return nil, err
	}
	logger.Debug(map[string]any{
		"slugs":            len(opts.Slugs),
		"hrefs":            len(hrefs),
		"navigation_bytes": len(r.navigation),
		"storefront_bytes": len(r.storefront),
	}, "head assets rendered")
	return r, nil
}

// ClientHead returns the snippet for the head of a client-area page at uri.
// Storefront customizations are included only when uri contains the marker.
func (r *Renderer) ClientHead(uri string) string {
	if r.marker != "" && strings.Contains(uri, r.marker) {
		return r.navigation + r.storefront
	}
	return r.navigation
}

// SidebarScript returns the script placed at the start of the client
// navigation.
func (r *Renderer) SidebarScript() string {
	return r.sidebar
}

// Labels derives the lower-case link texts hidden by the navigation script,
// e.g. "order_list" becomes "order list".
func Labels(slugs []string) []string {
	seen := make(map[string]struct{}, len(slugs))
	out := make([]string, 0, len(slugs))
	for _, s := range slugs {
		l := strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(s))
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func render(data any, names ...string) (string, error) {
	var buf bytes.Buffer
	for _, n := range names {
		if err := templates.ExecuteTemplate(&buf, n, data); err != nil {
			return "", fmt.Errorf("render %s: %w", n, err)
		}
	}
	return buf.String(), nil
}
