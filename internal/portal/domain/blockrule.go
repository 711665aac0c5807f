package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidSlug is returned when a slug contains characters outside
// [A-Za-z0-9_-] or is empty.
var ErrInvalidSlug = errors.New("invalid slug")

// SlugRule is a single block-list entry.
//
// Matching is exact and case-sensitive, so Slug is stored verbatim apart from
// surrounding whitespace.
type SlugRule struct {
	Slug    string
	Source  string // "config", a file path, ...
	AddedAt time.Time
}

// NewSlugRule constructs and validates a SlugRule.
func NewSlugRule(slug, source string, addedAt time.Time) (SlugRule, error) {
	r := SlugRule{
		Slug:    strings.TrimSpace(slug),
		Source:  strings.TrimSpace(source),
		AddedAt: addedAt,
	}
	if err := r.Validate(); err != nil {
		return SlugRule{}, err
	}
	return r, nil
}

// Validate checks the rule for required fields.
func (r SlugRule) Validate() error {
	if !IsValidSlug(r.Slug) {
		return fmt.Errorf("%w: %q", ErrInvalidSlug, r.Slug)
	}
	if r.Source == "" {
		return fmt.Errorf("rule source must not be empty")
	}
	if r.AddedAt.IsZero() {
		return fmt.Errorf("rule addedAt must be set")
	}
	return nil
}

// IsValidSlug reports whether s is a non-empty run of ASCII letters, digits,
// underscores or hyphens.
func IsValidSlug(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// DefaultBlockedSlugs returns the navigation slugs hidden when no list is
// configured: order lists, shipments, files and calendar entries.
func DefaultBlockedSlugs() []string {
	return []string{
		"order_list", "orderlist", "orders",
		"shipments", "shipment",
		"files", "file", "documents",
		"calendar", "calendars", "events",
	}
}
