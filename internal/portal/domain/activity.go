package domain

import "time"

// ActivityRecord is one audit entry, mirroring the host's activity log.
type ActivityRecord struct {
	ID      string         `json:"id"`
	Time    time.Time      `json:"time"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}
