package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
	"github.com/danielbwilkinson/jargon-rag/internal/telemetry"
)

// DefaultFilterAttempts is how many independent selections are unioned.
const DefaultFilterAttempts = 3

// RelevanceFilter asks the language model which candidates are worth
// including. Every attempt runs; the results are unioned to favour recall.
type RelevanceFilter struct {
	llm      Completer
	attempts int
	logger   *zap.Logger
}

func NewRelevanceFilter(llm Completer, attempts int, logger *zap.Logger) *RelevanceFilter {
	if attempts <= 0 {
		attempts = DefaultFilterAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelevanceFilter{llm: llm, attempts: attempts, logger: logger}
}

// Filter returns the selected candidates in first-seen order. Titles the
// model invents are dropped. A model error aborts the whole filter.
func (f *RelevanceFilter) Filter(ctx context.Context, candidates []string, query string, history []domain.Message) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "RelevanceFilter.Filter", telemetry.SpanAttributes{Stage: "filter", Count: len(candidates)})
	defer span.End()

	if len(candidates) == 0 {
		return nil, nil
	}

	prompt := filterPrompt(candidates, query, history)
	f.logger.Debug("relevance filter prompt", zap.String("prompt", prompt))

	allowed := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		allowed[c] = struct{}{}
	}

	seen := make(map[string]struct{})
	var selected []string

	for attempt := 0; attempt < f.attempts; attempt++ {
		response, err := f.llm.Complete(ctx, prompt)
		if err != nil {
			span.SetError(err)
			return nil, err
		}

		titles, malformed := DecodeSelections(response)
		if malformed > 0 {
			f.logger.Debug("unparseable selection in model response",
				zap.Int("attempt", attempt), zap.Int("objects", malformed), zap.String("response", response))
		}
		f.logger.Debug("model selection", zap.Int("attempt", attempt), zap.Strings("titles", titles))

		for _, t := range titles {
			if _, ok := allowed[t]; !ok {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			selected = append(selected, t)
		}
	}

	f.logger.Debug("documents chosen by model", zap.Strings("titles", selected))
	span.SetCount(len(selected))
	return selected, nil
}
