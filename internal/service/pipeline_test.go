package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
)

func isFilterPrompt(p string) bool  { return strings.Contains(p, "content filter") }
func isSummaryPrompt(p string) bool { return strings.Contains(p, "Concisely summarise") }
func isAnswerPrompt(p string) bool  { return strings.Contains(p, "------- CONTEXT INFORMATION -------") }

type pipelineFixture struct {
	store    *MockNoteStore
	embedder *MockEmbedder
	llm      *MockCompleter
	pipeline *Pipeline
}

func newPipelineFixture(cfg PipelineConfig) *pipelineFixture {
	f := &pipelineFixture{
		store:    new(MockNoteStore),
		embedder: new(MockEmbedder),
		llm:      new(MockCompleter),
	}
	f.pipeline = NewPipeline(f.store, f.embedder, f.llm, fixedCounter{}, cfg, nil)
	return f
}

// expectRetrieval wires a store where A and B are nearest, A links to C, and
// the model picks A and C.
func (f *pipelineFixture) expectRetrieval(embedding []float32) {
	f.store.On("VectorTopK", mock.Anything, embedding, 7).Return([]string{"A", "B"}, nil)
	f.store.On("OutLinks", mock.Anything, []string{"A", "B"}).Return([]string{"C"}, nil)
	f.store.On("ScoreCandidates", mock.Anything, []string{"A", "B", "C"}, embedding).Return([]domain.ScoredTitle{
		{Title: "B", Score: 0.4},
		{Title: "A", Score: 0.9},
		{Title: "C", Score: 0.7},
	}, nil)
	f.llm.On("Complete", mock.Anything, mock.MatchedBy(isFilterPrompt)).Return(`C - yes {"context":["A","C"]}`, nil)
	f.store.On("Fetch", mock.Anything, "A").Return(&domain.NoteText{Title: "A", Text: "alpha"}, nil)
	f.store.On("Fetch", mock.Anything, "C").Return(&domain.NoteText{Title: "C", Text: "gamma"}, nil)
}

func TestPipeline_Retrieve(t *testing.T) {
	ctx := context.Background()
	embedding := []float32{0.6, 0.8}

	t.Run("empty history embeds the raw query", func(t *testing.T) {
		f := newPipelineFixture(DefaultPipelineConfig())
		f.embedder.On("Embed", mock.Anything, "how do I kerberoast").Return(embedding, nil)
		f.expectRetrieval(embedding)

		out, err := f.pipeline.Retrieve(ctx, RetrieveInput{Query: "how do I kerberoast", Budget: 1000})

		require.NoError(t, err)
		assert.Equal(t, "how do I kerberoast", out.Query)
		assert.Equal(t, []string{"A", "C", "B"}, out.Candidates)
		assert.Equal(t, []string{"A", "C"}, out.Selected)
		assert.Equal(t, `[{"title":"A","text":"alpha"},{"title":"C","text":"gamma"}]`, out.Context.JSON)
		f.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.MatchedBy(isSummaryPrompt))
		f.llm.AssertNumberOfCalls(t, "Complete", DefaultFilterAttempts)
		f.store.AssertNotCalled(t, "TextContaining", mock.Anything, mock.Anything)
	})

	t.Run("history is summarised before embedding", func(t *testing.T) {
		f := newPipelineFixture(DefaultPipelineConfig())
		history := []domain.Message{
			{Role: domain.RoleUser, Message: "what is AS-REP roasting"},
			{Role: domain.RoleAssistant, Message: "It targets accounts without preauth."},
		}
		f.llm.On("Complete", mock.Anything, mock.MatchedBy(isSummaryPrompt)).Return("kerberos roasting attacks", nil)
		f.embedder.On("Embed", mock.Anything, "kerberos roasting attacks").Return(embedding, nil)
		f.expectRetrieval(embedding)

		out, err := f.pipeline.Retrieve(ctx, RetrieveInput{Query: "and the other one?", History: history, Budget: 1000})

		require.NoError(t, err)
		assert.Equal(t, "kerberos roasting attacks", out.Query)
		f.embedder.AssertExpectations(t)
	})

	t.Run("blank query", func(t *testing.T) {
		f := newPipelineFixture(DefaultPipelineConfig())

		_, err := f.pipeline.Retrieve(ctx, RetrieveInput{Query: "   "})

		assert.ErrorIs(t, err, domain.ErrEmptyQuery)
		f.embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	})

	t.Run("embedding failure aborts", func(t *testing.T) {
		f := newPipelineFixture(DefaultPipelineConfig())
		embedErr := errors.New("embedding endpoint down")
		f.embedder.On("Embed", mock.Anything, "q").Return(nil, embedErr)

		_, err := f.pipeline.Retrieve(ctx, RetrieveInput{Query: "q", Budget: 1000})

		assert.ErrorIs(t, err, embedErr)
		f.store.AssertNotCalled(t, "VectorTopK", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure aborts", func(t *testing.T) {
		f := newPipelineFixture(DefaultPipelineConfig())
		storeErr := errors.New("graph unavailable")
		f.embedder.On("Embed", mock.Anything, "q").Return(embedding, nil)
		f.store.On("VectorTopK", mock.Anything, embedding, 7).Return(nil, storeErr)

		_, err := f.pipeline.Retrieve(ctx, RetrieveInput{Query: "q", Budget: 1000})

		assert.ErrorIs(t, err, storeErr)
		f.llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	})
}

func TestPipeline_Answer(t *testing.T) {
	ctx := context.Background()
	embedding := []float32{0.6, 0.8}

	f := newPipelineFixture(DefaultPipelineConfig())
	history := []domain.Message{
		{Role: domain.RoleUser, Message: "what is AS-REP roasting"},
		{Role: domain.RoleAssistant, Message: "It targets accounts without preauth."},
	}
	f.llm.On("Complete", mock.Anything, mock.MatchedBy(isSummaryPrompt)).Return("kerberos roasting attacks", nil)
	f.embedder.On("Embed", mock.Anything, "kerberos roasting attacks").Return(embedding, nil)
	f.expectRetrieval(embedding)
	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return isAnswerPrompt(p) &&
			strings.Contains(p, "------- USER QUERY -------\nand the other one?\n") &&
			strings.Contains(p, `{"title":"C","text":"gamma"}`) &&
			strings.Contains(p, "without preauth")
	})).Return("Use GetUserSPNs.", nil)

	out, err := f.pipeline.Answer(ctx, AnswerInput{Query: "and the other one?", History: history})

	require.NoError(t, err)
	assert.Equal(t, "Use GetUserSPNs.", out.Answer)
	assert.Equal(t, f.pipeline.ContextBudget(history), out.Budget)
	assert.Equal(t, []string{"A", "C"}, out.Retrieval.Selected)
	assert.Len(t, history, 2)
	f.llm.AssertExpectations(t)
}

func TestPipeline_ContextBudget(t *testing.T) {
	counter := fixedCounter{"[]": 1, AnswerSystemPrompt: 100}
	cfg := DefaultPipelineConfig()
	cfg.ContextWindow = 1000
	cfg.PromptOverheadTokens = 200

	p := NewPipeline(new(MockNoteStore), new(MockEmbedder), new(MockCompleter), counter, cfg, nil)

	assert.Equal(t, 699, p.ContextBudget(nil))

	history := []domain.Message{{Role: domain.RoleUser, Message: "hi"}}
	counter[historyJSON(history)] = 50
	assert.Equal(t, 650, p.ContextBudget(history))
}
