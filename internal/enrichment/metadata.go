package enrichment

import (
	"strings"
)

const (
	wordsPerMinute = 200
	minReadMinutes = 1
	maxReadMinutes = 30
)

// Difficulty levels for cards.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// DefaultCategory is assigned when a source category is not recognised.
const DefaultCategory = "general"

var categorySynonyms = map[string]string{
	"technology":       "technology",
	"tech":             "technology",
	"business":         "business",
	"science":          "science",
	"ai_ml":            "ai_ml",
	"ai":               "ai_ml",
	"ml":               "ai_ml",
	"ai/ml":            "ai_ml",
	"machine learning": "ai_ml",
	"design":           "design",
	"ux":               "design",
	"startups":         "startups",
	"startup":          "startups",
	"finance":          "finance",
	"fintech":          "finance",
	"health":           "health",
	"healthcare":       "health",
	"news":             "general",
}

// EstimateReadingTime returns whole minutes at 200 words per minute, clamped
// to 1..30.
func EstimateReadingTime(content string) int {
	words := len(strings.Fields(content))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < minReadMinutes {
		return minReadMinutes
	}
	if minutes > maxReadMinutes {
		return maxReadMinutes
	}
	return minutes
}

// ExtractCategory maps a source category to a card category.
func ExtractCategory(sourceCategory string) string {
	if c, ok := categorySynonyms[strings.ToLower(strings.TrimSpace(sourceCategory))]; ok {
		return c
	}
	return DefaultCategory
}

// DetermineDifficulty grades content by length.
func DetermineDifficulty(content string) string {
	switch words := len(strings.Fields(content)); {
	case words < 300:
		return DifficultyBeginner
	case words < 800:
		return DifficultyIntermediate
	default:
		return DifficultyAdvanced
	}
}

// FormatCardContent renders a Summary as the card body.
func FormatCardContent(s Summary) string {
	var b strings.Builder
	b.WriteString(s.Summary)
	b.WriteString("\n\n**Key Insights:**\n")
	for _, insight := range s.Insights {
		b.WriteString("• ")
		b.WriteString(insight)
		b.WriteString("\n")
	}
	b.WriteString("\n**Action Takeaway:**\n")
	b.WriteString(s.ActionTakeaway)
	return b.String()
}
