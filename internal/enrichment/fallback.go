package enrichment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultAction is used when no action takeaway could be produced.
const DefaultAction = "Read the full article to explore the details and decide how they apply to your work."

const (
	fallbackSummaryRunes = 200
	minSentenceRunes     = 20
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)

// FallbackSummary builds a card summary from the article text alone. It is
// used whenever the model call fails or returns something unusable.
func FallbackSummary(title, content string) Summary {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "this article"
	}

	text := plainText(content)
	var sentences []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if len([]rune(s)) < minSentenceRunes {
			continue
		}
		sentences = append(sentences, s)
		if len(sentences) == 2 {
			break
		}
	}

	summary := title
	if len(sentences) > 0 {
		summary = truncateAtWord(strings.Join(sentences, " "), fallbackSummaryRunes)
	}

	return Summary{
		Summary: summary,
		Insights: []string{
			fmt.Sprintf("%q highlights a development worth following.", title),
			fmt.Sprintf("The full text of %q has the supporting details and context.", title),
			fmt.Sprintf("Consider how the points raised in %q affect your own work.", title),
		},
		ActionTakeaway: DefaultAction,
		Source:         SourceFallback,
	}
}

// plainText strips markup from content. Text that does not parse as HTML is
// returned with whitespace collapsed.
func plainText(content string) string {
	if strings.ContainsAny(content, "<>") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
			content = doc.Text()
		}
	}
	return strings.Join(strings.Fields(content), " ")
}

func truncateAtWord(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	cut := string(r[:max])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:-") + "..."
}
