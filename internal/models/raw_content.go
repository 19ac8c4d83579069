package models

import "time"

// RawContent is an article fetched from a source and waiting to be summarized.
type RawContent struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Processed   bool      `json:"processed"`
	CreatedAt   time.Time `json:"created_at"`

	// SourceCategory is joined from content_sources when rows are selected
	// for processing. It is not stored on raw_content.
	SourceCategory string `json:"source_category,omitempty"`
}

// FetchedArticle is a normalized feed entry before it is persisted.
type FetchedArticle struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// ToRawContent converts a fetched article into an unprocessed row for sourceID.
func (a FetchedArticle) ToRawContent(sourceID string) RawContent {
	return RawContent{
		SourceID:    sourceID,
		Title:       a.Title,
		Content:     a.Content,
		URL:         a.URL,
		ImageURL:    a.ImageURL,
		PublishedAt: a.PublishedAt,
		Processed:   false,
	}
}
