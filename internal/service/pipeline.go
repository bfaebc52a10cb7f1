package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
	"github.com/danielbwilkinson/jargon-rag/internal/telemetry"
)

// PipelineConfig holds the knobs of a retrieval pipeline.
type PipelineConfig struct {
	Retriever       RetrieverConfig
	JargonThreshold float64
	FilterAttempts  int
	// ContextWindow is the model's total token limit
	ContextWindow int
	// PromptOverheadTokens reserves room for the prompt's own framing
	PromptOverheadTokens int
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Retriever:            DefaultRetrieverConfig(),
		JargonThreshold:      DefaultJargonThreshold,
		FilterAttempts:       DefaultFilterAttempts,
		ContextWindow:        8192,
		PromptOverheadTokens: 200,
	}
}

// RetrieveInput is one retrieval request. History is read, never modified.
type RetrieveInput struct {
	Query   string
	History []domain.Message
	Budget  int
}

// RetrieveOutput carries the assembled context and the titles at each stage.
type RetrieveOutput struct {
	// Query is what retrieval actually used: the summary when there was history
	Query      string
	Gathered   *Candidates
	Candidates []string
	Selected   []string
	Context    *Assembly
}

// AnswerInput is one user turn.
type AnswerInput struct {
	Query   string
	History []domain.Message
}

// AnswerOutput is the model's reply together with its retrieval trace.
type AnswerOutput struct {
	Answer    string
	Budget    int
	Retrieval *RetrieveOutput
}

// Pipeline runs retrieval and answer generation for one query at a time.
type Pipeline struct {
	embedder   Embedder
	llm        Completer
	tokens     TokenCounter
	summarizer *Summarizer
	retriever  *Retriever
	reranker   *Reranker
	filter     *RelevanceFilter
	assembler  *Assembler
	cfg        PipelineConfig
	logger     *zap.Logger
}

// NewPipeline wires every stage from its collaborators.
func NewPipeline(
	store NoteStore,
	embedder Embedder,
	llm Completer,
	tokens TokenCounter,
	cfg PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		embedder:   embedder,
		llm:        llm,
		tokens:     tokens,
		summarizer: NewSummarizer(llm, logger),
		retriever:  NewRetriever(store, NewJargonDetector(tokens, cfg.JargonThreshold), cfg.Retriever, logger),
		reranker:   NewReranker(store),
		filter:     NewRelevanceFilter(llm, cfg.FilterAttempts, logger),
		assembler:  NewAssembler(store, tokens, logger),
		cfg:        cfg,
		logger:     logger,
	}
}

// Retrieve summarizes, embeds, gathers, re-ranks, filters and assembles.
// Collaborator errors abort the query.
func (p *Pipeline) Retrieve(ctx context.Context, input RetrieveInput) (*RetrieveOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.ErrEmptyQuery
	}

	ctx, span := telemetry.StartSpan(ctx, "Pipeline.Retrieve", telemetry.SpanAttributes{Stage: "retrieve"})
	defer span.End()

	query, err := p.summarizer.Summarize(ctx, input.History, input.Query)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to summarize history: %w", err)
	}

	embedding, err := p.embedder.Embed(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	gathered, err := p.retriever.Gather(ctx, query, embedding)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to gather candidates: %w", err)
	}

	candidates, err := p.reranker.Rerank(ctx, gathered.All(), embedding)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to rerank candidates: %w", err)
	}
	p.logger.Debug("reranked candidates", zap.Strings("titles", candidates))

	selected, err := p.filter.Filter(ctx, candidates, query, input.History)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to filter candidates: %w", err)
	}

	assembly, err := p.assembler.Assemble(ctx, selected, input.Budget)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to assemble context: %w", err)
	}

	return &RetrieveOutput{
		Query:      query,
		Gathered:   gathered,
		Candidates: candidates,
		Selected:   selected,
		Context:    assembly,
	}, nil
}

// ContextBudget is what remains of the context window after the history,
// the answer instructions and the prompt framing.
func (p *Pipeline) ContextBudget(history []domain.Message) int {
	return p.cfg.ContextWindow -
		p.tokens.CountTokens(historyJSON(history)) -
		p.tokens.CountTokens(AnswerSystemPrompt) -
		p.cfg.PromptOverheadTokens
}

// Answer retrieves context for the query and asks the model to respond. The
// final prompt carries the raw query; the summary only drives retrieval.
func (p *Pipeline) Answer(ctx context.Context, input AnswerInput) (*AnswerOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "Pipeline.Answer", telemetry.SpanAttributes{Stage: "answer"})
	defer span.End()

	budget := p.ContextBudget(input.History)

	retrieval, err := p.Retrieve(ctx, RetrieveInput{
		Query:   input.Query,
		History: input.History,
		Budget:  budget,
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	answer, err := p.llm.Complete(ctx, answerPrompt(input.History, retrieval.Context.JSON, input.Query))
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &AnswerOutput{
		Answer:    answer,
		Budget:    budget,
		Retrieval: retrieval,
	}, nil
}
