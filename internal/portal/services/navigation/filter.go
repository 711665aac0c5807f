package navigation

import (
	"github.com/haukened/portalgate/internal/portal/common/log"
	"github.com/haukened/portalgate/internal/portal/domain"
)

// Blocklist decides whether a slug is blocked.
type Blocklist interface {
	Decide(slug string) domain.BlockDecision
	Slugs() []string
}

// ActivityLog receives one record per removed entry.
type ActivityLog interface {
	Record(msg string, fields map[string]any)
}

// Filter removes block-listed entries from client-area navigation.
type Filter struct {
	blocklist Blocklist
	activity  ActivityLog
	logger    log.Logger
}

// FilterOptions configures a Filter. Activity may be nil.
type FilterOptions struct {
	Blocklist Blocklist
	Activity  ActivityLog
	Logger    log.Logger
}

// NewFilter returns a Filter backed by opts.Blocklist.
func NewFilter(opts FilterOptions) *Filter {
	f := &Filter{blocklist: opts.Blocklist, activity: opts.Activity, logger: opts.Logger}
	if f.logger == nil {
		f.logger = log.NewNoopLogger()
	}
	return f
}

// Filter returns the entries whose identity is not block-listed, in their
// original order. Only top-level entries are matched; children travel with
// their parent. The input slice is never modified.
func (f *Filter) Filter(entries []domain.NavigationEntry) []domain.NavigationEntry {
	kept, _ := f.FilterWithRemoved(entries)
	return kept
}

// FilterWithRemoved is Filter that also reports the removed identities.
func (f *Filter) FilterWithRemoved(entries []domain.NavigationEntry) ([]domain.NavigationEntry, []string) {
	out := make([]domain.NavigationEntry, 0, len(entries))
	var removed []string
	for _, e := range entries {
		if id := e.Identity(); f.Blocked(id) {
			removed = append(removed, id)
			f.recordRemoval(id)
			continue
		}
		out = append(out, e)
	}
	return out, removed
}

// Blocked reports whether identity is on the block-list. Empty identities
// never match.
func (f *Filter) Blocked(identity string) bool {
	if identity == "" || f.blocklist == nil {
		return false
	}
	return f.blocklist.Decide(identity).Blocked
}

// Slugs lists the configured block-list.
func (f *Filter) Slugs() []string {
	if f.blocklist == nil {
		return nil
	}
	return f.blocklist.Slugs()
}

func (f *Filter) recordRemoval(slug string) {
	f.logger.Debug(map[string]any{"slug": slug}, "navigation entry removed")
	if f.activity != nil {
		f.activity.Record("Removed menu item - "+slug, map[string]any{"slug": slug})
	}
}
