package quantity

import (
	"context"
	"net/url"
	"strings"

	"github.com/haukened/portalgate/internal/portal/common/log"
	"github.com/haukened/portalgate/internal/portal/domain"
)

const (
	// Field is the request parameter that gets clamped.
	Field = "quantity"
	// Value is what every clamped field is set to.
	Value = "1"
)

// ActivityLog receives one record per clamped request.
type ActivityLog interface {
	Record(msg string, fields map[string]any)
}

// Clamp forces the quantity parameter to 1 on storefront requests.
type Clamp struct {
	marker   string
	activity ActivityLog
	logger   log.Logger
}

// Options configures a Clamp.
type Options struct {
	// Marker is matched as a substring of the routed component.
	Marker   string
	Activity ActivityLog
	Logger   log.Logger
}

// NewClamp returns a Clamp. An empty Marker matches nothing.
func NewClamp(opts Options) *Clamp {
	c := &Clamp{marker: opts.Marker, activity: opts.Activity, logger: opts.Logger}
	if c.logger == nil {
		c.logger = log.NewNoopLogger()
	}
	return c
}

// Applies reports whether requests routed to component are subject to the
// clamp.
func (c *Clamp) Applies(component string) bool {
	return c.marker != "" && strings.Contains(component, c.marker)
}

// ClampValues overwrites every value of the quantity field with 1. It
// returns false when the field is absent.
func ClampValues(v url.Values) bool {
	if v == nil {
		return false
	}
	if _, ok := v[Field]; !ok {
		return false
	}
	v[Field] = []string{Value}
	return true
}

// ClampMap is ClampValues for decoded JSON parameter maps. The field is set
// to the integer 1.
func ClampMap(m map[string]any) bool {
	if m == nil {
		return false
	}
	if _, ok := m[Field]; !ok {
		return false
	}
	m[Field] = 1
	return true
}

// Apply clamps the query and form of req. It never redirects.
func (c *Clamp) Apply(_ context.Context, req *domain.PortalRequest) domain.RedirectDecision {
	if !c.Applies(req.Route.Component) {
		return domain.NoRedirect()
	}
	q := ClampValues(req.Query)
	f := ClampValues(req.Form)
	if q || f {
		c.record(req.Route.Component)
	}
	return domain.NoRedirect()
}

// ClampParams clamps decoded parameter sets for a request routed to
// component, as reported by the hook API. It returns whether any set
// changed.
func (c *Clamp) ClampParams(component string, sets ...map[string]any) bool {
	if !c.Applies(component) {
		return false
	}
	clamped := false
	for _, s := range sets {
		if ClampMap(s) {
			clamped = true
		}
	}
	if clamped {
		c.record(component)
	}
	return clamped
}

func (c *Clamp) record(component string) {
	c.logger.Debug(map[string]any{"component": component}, "quantity clamped")
	if c.activity != nil {
		c.activity.Record("Forced quantity to 1 for Omni Sales", map[string]any{"component": component})
	}
}
