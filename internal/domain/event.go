package domain

import "time"

// LayerSetEvent records that a dataset's layers were installed on the map.
// It is published to downstream consumers after each successful switch.
type LayerSetEvent struct {
	ID          string             `json:"id"`
	AttemptID   string             `json:"attempt_id"`
	Dataset     string             `json:"dataset"`
	Resource    string             `json:"resource"`
	Schema      Schema             `json:"schema"`
	Markers     int                `json:"markers"`
	Skipped     int                `json:"skipped"`
	Suggested   *SuggestedLocation `json:"suggested_location,omitempty"`
	InstalledAt time.Time          `json:"installed_at"`
}
