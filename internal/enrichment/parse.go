package enrichment

import (
	"regexp"
	"strings"
)

const (
	minSummaryRunes = 20
	minInsightRunes = 15
	maxInsights     = 3
)

// ParseResult is the outcome of reading a model response. When Valid is false
// Reason says why and Summary is empty.
type ParseResult struct {
	Valid   bool
	Summary Summary
	Reason  string
}

// Labels may be wrapped in markdown emphasis or headings and must be followed
// by a colon or the end of the line.
var sectionLabel = regexp.MustCompile(`(?im)^[ \t>#*_-]*(summary|key insights|insights|action takeaway|actionable takeaway|action)[ \t*_]*(?::|$)[ \t*_]*`)

var bulletPrefix = regexp.MustCompile(`^(?:[-*•●▪]|\d+[.)])\s*`)

// insightLabel matches the "Insight 2:" prefix the prompt template uses.
var insightLabel = regexp.MustCompile(`(?i)^insight\s*\d+\s*[:.)-]?\s*`)

const templateInsightText = "a specific takeaway from the article"

type section int

const (
	sectionSummary section = iota
	sectionInsights
	sectionAction
)

func labelSection(label string) section {
	switch l := strings.ToLower(label); {
	case l == "summary":
		return sectionSummary
	case strings.Contains(l, "insight"):
		return sectionInsights
	default:
		return sectionAction
	}
}

// ParseResponse extracts the summary, insights and action from a labeled
// model response.
func ParseResponse(text string) ParseResult {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	matches := sectionLabel.FindAllStringSubmatchIndex(text, -1)

	sections := make(map[section]string, 3)
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		kind := labelSection(text[m[2]:m[3]])
		if _, seen := sections[kind]; seen {
			continue
		}
		sections[kind] = text[m[1]:end]
	}

	rawSummary, ok := sections[sectionSummary]
	if !ok {
		return ParseResult{Reason: "missing summary section"}
	}
	summary := cleanInline(rawSummary)
	if len([]rune(summary)) < minSummaryRunes {
		return ParseResult{Reason: "summary too short"}
	}

	insights := parseInsights(sections[sectionInsights])
	if len(insights) == 0 {
		return ParseResult{Reason: "no usable insights"}
	}

	action := cleanInline(sections[sectionAction])
	if action == "" {
		action = DefaultAction
	}

	return ParseResult{
		Valid: true,
		Summary: Summary{
			Summary:        summary,
			Insights:       insights,
			ActionTakeaway: action,
		},
	}
}

func parseInsights(block string) []string {
	block = strings.ReplaceAll(block, "•", "\n•")

	var insights []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		line = bulletPrefix.ReplaceAllString(line, "")
		line = strings.Trim(line, "*_ \t")
		if isPlaceholder(line) {
			continue
		}
		line = strings.TrimSpace(insightLabel.ReplaceAllString(line, ""))
		if len([]rune(line)) < minInsightRunes || isTemplateText(line) {
			continue
		}
		insights = append(insights, line)
		if len(insights) == maxInsights {
			break
		}
	}
	return insights
}

// isPlaceholder reports lines that echo the bracketed template slots.
func isPlaceholder(line string) bool {
	return strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]")
}

func isTemplateText(text string) bool {
	lower := strings.ToLower(strings.Trim(text, " .…"))
	return lower == "" || strings.HasPrefix(strings.ToLower(text), "...") || strings.Contains(lower, templateInsightText)
}

// cleanInline collapses whitespace and strips stray emphasis markers.
func cleanInline(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, "*_ ")
}
