package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/danielbwilkinson/jargon-rag/internal/telemetry"
)

// RetrieverConfig controls how many notes each search contributes.
type RetrieverConfig struct {
	SemanticTopK int
	JargonTopK   int
}

// DefaultRetrieverConfig returns the default retriever configuration.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		SemanticTopK: 7,
		JargonTopK:   7,
	}
}

// Candidates is the raw output of the gathering stage, before re-ranking.
type Candidates struct {
	Semantic []string
	Jargon   []string
	// JargonWords are the query words that drove the jargon search
	JargonWords []string
	Linked      []string
}

// All concatenates every source in retrieval order. Titles found by both
// searches appear twice.
func (c *Candidates) All() []string {
	all := make([]string, 0, len(c.Semantic)+len(c.Jargon)+len(c.Linked))
	all = append(all, c.Semantic...)
	all = append(all, c.Jargon...)
	all = append(all, c.Linked...)
	return all
}

// Retriever gathers candidate note titles from the graph store.
type Retriever struct {
	store  NoteStore
	jargon *JargonDetector
	cfg    RetrieverConfig
	logger *zap.Logger
}

func NewRetriever(store NoteStore, jargon *JargonDetector, cfg RetrieverConfig, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, jargon: jargon, cfg: cfg, logger: logger}
}

// SemanticSearch returns the nearest notes to the query embedding.
func (r *Retriever) SemanticSearch(ctx context.Context, embedding []float32) ([]string, error) {
	titles, err := r.store.VectorTopK(ctx, embedding, r.cfg.SemanticTopK)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("semantic search results", zap.Strings("titles", titles))
	return titles, nil
}

// JargonSearch restricts to notes containing any jargon word and keeps the
// best scoring ones. No jargon means no results and no store call.
func (r *Retriever) JargonSearch(ctx context.Context, jargon []string, embedding []float32) ([]string, error) {
	if len(jargon) == 0 || r.cfg.JargonTopK <= 0 {
		return nil, nil
	}

	matches, err := r.store.TextContaining(ctx, jargon)
	if err != nil {
		return nil, err
	}

	scored, err := r.store.ScoreCandidates(ctx, matches, embedding)
	if err != nil {
		return nil, err
	}

	if len(scored) > r.cfg.JargonTopK {
		scored = scored[:r.cfg.JargonTopK]
	}

	titles := make([]string, len(scored))
	for i, s := range scored {
		titles[i] = s.Title
	}

	r.logger.Debug("jargon search results", zap.Strings("jargon", jargon), zap.Strings("titles", titles))
	return titles, nil
}

// ExpandLinks returns notes one outgoing link away from titles, excluding
// titles themselves.
func (r *Retriever) ExpandLinks(ctx context.Context, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	targets, err := r.store.OutLinks(ctx, titles)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(titles)+len(targets))
	for _, t := range titles {
		seen[t] = struct{}{}
	}

	var linked []string
	for _, t := range targets {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		linked = append(linked, t)
	}

	r.logger.Debug("linked notes", zap.Strings("titles", linked))
	return linked, nil
}

// Gather runs semantic search, jargon search and one hop of link expansion
// over their combined results.
func (r *Retriever) Gather(ctx context.Context, query string, embedding []float32) (*Candidates, error) {
	ctx, span := telemetry.StartSpan(ctx, "Retriever.Gather", telemetry.SpanAttributes{Stage: "gather"})
	defer span.End()

	semantic, err := r.SemanticSearch(ctx, embedding)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	words := r.jargon.Detect(query)
	jargon, err := r.JargonSearch(ctx, words, embedding)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	seeds := make([]string, 0, len(semantic)+len(jargon))
	seeds = append(seeds, semantic...)
	seeds = append(seeds, jargon...)

	linked, err := r.ExpandLinks(ctx, seeds)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	c := &Candidates{
		Semantic:    semantic,
		Jargon:      jargon,
		JargonWords: words,
		Linked:      linked,
	}
	span.SetCount(len(c.All()))
	return c, nil
}
