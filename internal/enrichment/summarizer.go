package enrichment

import (
	"context"
	"log/slog"
)

// SummarySource records which path produced a Summary.
type SummarySource string

const (
	SourceLLM      SummarySource = "llm"
	SourceFallback SummarySource = "fallback"
)

// Summary is the text content of a card before formatting.
type Summary struct {
	Summary        string
	Insights       []string
	ActionTakeaway string
	Source         SummarySource
}

// Summarizer turns an article into a Summary. It always returns a usable
// result; model failures degrade to FallbackSummary.
type Summarizer struct {
	completer Completer
	logger    *slog.Logger
}

// NewSummarizer creates a summarizer. A nil completer means every article
// takes the fallback path.
func NewSummarizer(completer Completer, logger *slog.Logger) *Summarizer {
	return &Summarizer{completer: completer, logger: logger}
}

// Summarize never returns an error and never panics.
func (s *Summarizer) Summarize(ctx context.Context, title, content string) (result Summary) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("summarizer panic recovered", "panic", r, "title", title)
			result = FallbackSummary(title, content)
		}
	}()

	if s.completer == nil {
		return FallbackSummary(title, content)
	}

	response, err := s.completer.Complete(ctx, BuildSummaryPrompt(title, content))
	if err != nil {
		s.logger.Warn("llm summary failed, using fallback", "title", title, "error", err)
		return FallbackSummary(title, content)
	}

	parsed := ParseResponse(response)
	if !parsed.Valid {
		s.logger.Warn("llm summary unusable, using fallback", "title", title, "reason", parsed.Reason)
		return FallbackSummary(title, content)
	}

	parsed.Summary.Source = SourceLLM
	return parsed.Summary
}
