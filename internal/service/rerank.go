package service

import (
	"context"
	"sort"

	"github.com/danielbwilkinson/jargon-rag/internal/telemetry"
)

// Reranker deduplicates candidates and orders them by similarity to the query.
type Reranker struct {
	store NoteStore
}

func NewReranker(store NoteStore) *Reranker {
	return &Reranker{store: store}
}

// Rerank returns each resolvable title once, most similar first. Equal
// scores are ordered by title so the output depends only on the input set.
func (r *Reranker) Rerank(ctx context.Context, titles []string, embedding []float32) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "Reranker.Rerank", telemetry.SpanAttributes{Stage: "rerank", Count: len(titles)})
	defer span.End()

	unique := dedupe(titles)
	if len(unique) == 0 {
		return nil, nil
	}

	scored, err := r.store.ScoreCandidates(ctx, unique, embedding)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Title < scored[j].Title
	})

	out := make([]string, 0, len(scored))
	seen := make(map[string]struct{}, len(scored))
	for _, s := range scored {
		if _, ok := seen[s.Title]; ok {
			continue
		}
		seen[s.Title] = struct{}{}
		out = append(out, s.Title)
	}

	span.SetCount(len(out))
	return out, nil
}

// dedupe keeps the first occurrence of each title.
func dedupe(titles []string) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
