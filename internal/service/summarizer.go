package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
	"github.com/danielbwilkinson/jargon-rag/internal/telemetry"
)

// Summarizer condenses the conversation and the latest query into a single
// retrieval query.
type Summarizer struct {
	llm    Completer
	logger *zap.Logger
}

func NewSummarizer(llm Completer, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{llm: llm, logger: logger}
}

// Summarize returns query unchanged when there is no history, without calling
// the model. A blank summary also falls back to query.
func (s *Summarizer) Summarize(ctx context.Context, history []domain.Message, query string) (string, error) {
	if len(history) == 0 {
		return query, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "Summarizer.Summarize", telemetry.SpanAttributes{Stage: "summarize", Count: len(history)})
	defer span.End()

	response, err := s.llm.Complete(ctx, summaryPrompt(history, query))
	if err != nil {
		span.SetError(err)
		return "", err
	}

	summary := strings.TrimSpace(response)
	if summary == "" {
		s.logger.Warn("empty history summary, using the raw query")
		return query, nil
	}

	s.logger.Debug("summarised message history", zap.String("summary", summary))
	return summary, nil
}
