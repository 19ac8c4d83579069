package models

import "time"

// ContentCard is the user-facing summarized unit derived from one RawContent row.
type ContentCard struct {
	ID                   string          `json:"id"`
	RawContentID         string          `json:"raw_content_id"`
	Title                string          `json:"title"`
	Content              string          `json:"content"`
	Category             string          `json:"category"`
	DifficultyLevel      DifficultyLevel `json:"difficulty_level"`
	EstimatedTimeMinutes int             `json:"estimated_time_minutes"`
	Tags                 []string        `json:"tags"`
	ImageURL             string          `json:"image_url,omitempty"`
	SourceURL            string          `json:"source_url"`
	CreatedAt            time.Time       `json:"created_at"`
}

// DifficultyLevel is the reading difficulty tier of a card.
type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)
