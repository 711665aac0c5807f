package domain

// NavigationEntry is one item of the client-area navigation produced by the
// host. Entries are consumed read-only.
type NavigationEntry struct {
	// Slug identifies the entry for block-list matching.
	Slug string `json:"slug,omitempty"`
	// Key is the host's associative key for the entry, used as identity
	// when Slug is empty.
	Key      string            `json:"-"`
	Label    string            `json:"name,omitempty"`
	URL      string            `json:"href,omitempty"`
	Position int               `json:"position,omitempty"`
	Children []NavigationEntry `json:"children,omitempty"`
}

// Identity returns the value matched against the block-list: the slug, or
// the host key when no slug is set. An empty identity never matches.
func (e NavigationEntry) Identity() string {
	if e.Slug != "" {
		return e.Slug
	}
	return e.Key
}

// NavigationSnapshot records one filtering pass for diagnostics.
type NavigationSnapshot struct {
	Path    string            `json:"path"`
	Before  []NavigationEntry `json:"before"`
	After   []NavigationEntry `json:"after"`
	Removed []string          `json:"removed"`
}
