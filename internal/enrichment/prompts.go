package enrichment

import (
	"fmt"
	"strings"
)

const maxPromptContentRunes = 3000

const summaryPromptTemplate = `You are writing a short learning card for a busy professional.

Article title: %s

Article content:
%s

Respond in exactly this format and nothing else:

SUMMARY: [Two or three sentences that capture the main point of the article]

INSIGHTS:
- [Insight 1: a specific takeaway from the article]
- [Insight 2: a specific takeaway from the article]
- [Insight 3: a specific takeaway from the article]

ACTION: [One concrete thing the reader can do with this information]`

// BuildSummaryPrompt renders the card prompt for an article. Content is
// truncated before it is embedded.
func BuildSummaryPrompt(title, content string) string {
	return fmt.Sprintf(summaryPromptTemplate, strings.TrimSpace(title), truncateRunes(strings.TrimSpace(content), maxPromptContentRunes))
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
