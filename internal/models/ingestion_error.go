package models

import (
	"time"
)

// IngestionError represents an error that occurred while pulling content from a source.
type IngestionError struct {
	ID         string     `json:"id"`
	Platform   string     `json:"platform"`   // e.g., "rss"
	ErrorType  string     `json:"error_type"` // e.g., "rss_fetch_failed"
	URL        string     `json:"url"`        // The URL that failed
	ErrorMsg   string     `json:"error_msg"`
	Metadata   string     `json:"metadata"` // Additional JSON metadata
	CreatedAt  time.Time  `json:"created_at"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// IngestionErrorType categorizes different types of ingestion errors.
type IngestionErrorType string

const (
	ErrorTypeRSSFetchFailed   IngestionErrorType = "rss_fetch_failed"
	ErrorTypeParsingFailed    IngestionErrorType = "parsing_failed"
	ErrorTypeInsertFailed     IngestionErrorType = "insert_failed"
	ErrorTypeEnrichmentFailed IngestionErrorType = "enrichment_failed"
)
