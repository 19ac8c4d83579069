package models

import "time"

// ContentSource is a configured origin of articles (an RSS feed, an API, or manual entry).
type ContentSource struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	SourceType          SourceType `json:"source_type"`
	SourceURL           string     `json:"source_url"`
	Category            string     `json:"category"`
	IsActive            bool       `json:"is_active"`
	FetchFrequencyHours int        `json:"fetch_frequency_hours"`
	LastFetchedAt       *time.Time `json:"last_fetched_at,omitempty"`
}

// SourceType categorizes how a content source is ingested.
type SourceType string

const (
	SourceTypeRSS    SourceType = "rss"
	SourceTypeAPI    SourceType = "api"
	SourceTypeManual SourceType = "manual"
)

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeRSS, SourceTypeAPI, SourceTypeManual:
		return true
	}
	return false
}
