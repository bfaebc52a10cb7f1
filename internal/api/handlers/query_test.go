package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
	"github.com/danielbwilkinson/jargon-rag/internal/service"
)

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Retrieve(ctx context.Context, input service.RetrieveInput) (*service.RetrieveOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RetrieveOutput), args.Error(1)
}

func (m *MockPipeline) Answer(ctx context.Context, input service.AnswerInput) (*service.AnswerOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnswerOutput), args.Error(1)
}

func (m *MockPipeline) ContextBudget(history []domain.Message) int {
	args := m.Called(history)
	return args.Int(0)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func TestQueryHandler_Retrieve(t *testing.T) {
	history := []domain.Message{{Role: domain.RoleUser, Message: "hi"}}

	t.Run("default budget comes from the pipeline", func(t *testing.T) {
		p := new(MockPipeline)
		h := NewQueryHandler(p, nil)

		p.On("ContextBudget", history).Return(4000)
		p.On("Retrieve", mock.Anything, service.RetrieveInput{Query: "smb relay", History: history, Budget: 4000}).
			Return(&service.RetrieveOutput{
				Query:      "smb relay summary",
				Candidates: []string{"A", "B"},
				Selected:   []string{"A"},
				Context: &service.Assembly{
					JSON:   `[{"title":"A","text":"alpha"}]`,
					Titles: []string{"A"},
					Tokens: 9,
				},
			}, nil)

		w := postJSON(t, h.Retrieve, RetrieveRequest{Query: "smb relay", History: history})

		require.Equal(t, http.StatusOK, w.Code)
		var resp RetrieveResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "smb relay summary", resp.Query)
		assert.Equal(t, 4000, resp.Budget)
		assert.Equal(t, []string{"A", "B"}, resp.Candidates)
		assert.Equal(t, []string{"A"}, resp.Selected)
		assert.JSONEq(t, `[{"title":"A","text":"alpha"}]`, string(resp.Context.Notes))
		assert.Equal(t, 9, resp.Context.Tokens)
	})

	t.Run("explicit budget", func(t *testing.T) {
		p := new(MockPipeline)
		h := NewQueryHandler(p, nil)

		p.On("Retrieve", mock.Anything, service.RetrieveInput{Query: "q", Budget: 50}).
			Return(&service.RetrieveOutput{Query: "q", Context: &service.Assembly{JSON: "[]"}}, nil)

		w := postJSON(t, h.Retrieve, `{"query":"q","budget":50}`)

		require.Equal(t, http.StatusOK, w.Code)
		var resp RetrieveResponse
		decodeData(t, w, &resp)
		assert.Equal(t, []string{}, resp.Selected)
		p.AssertNotCalled(t, "ContextBudget", mock.Anything)
	})

	t.Run("zero and negative budgets are passed through", func(t *testing.T) {
		for _, budget := range []int{0, -20} {
			p := new(MockPipeline)
			h := NewQueryHandler(p, nil)

			p.On("Retrieve", mock.Anything, service.RetrieveInput{Query: "q", Budget: budget}).
				Return(&service.RetrieveOutput{Query: "q", Context: &service.Assembly{JSON: "[]"}}, nil)

			w := postJSON(t, h.Retrieve, RetrieveRequest{Query: "q", Budget: &budget})

			require.Equal(t, http.StatusOK, w.Code)
			var resp RetrieveResponse
			decodeData(t, w, &resp)
			assert.Equal(t, budget, resp.Budget)
			p.AssertNotCalled(t, "ContextBudget", mock.Anything)
			p.AssertExpectations(t)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		p := new(MockPipeline)
		w := postJSON(t, NewQueryHandler(p, nil).Retrieve, RetrieveRequest{Query: "  "})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		p.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything)
	})

	t.Run("unknown role", func(t *testing.T) {
		p := new(MockPipeline)
		w := postJSON(t, NewQueryHandler(p, nil).Retrieve, `{"query":"q","history":[{"role":"system","message":"x"}]}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := postJSON(t, NewQueryHandler(new(MockPipeline), nil).Retrieve, "{not json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestQueryHandler_Answer(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p := new(MockPipeline)
		h := NewQueryHandler(p, nil)

		p.On("Answer", mock.Anything, service.AnswerInput{Query: "q"}).Return(&service.AnswerOutput{
			Answer:    "use responder",
			Retrieval: &service.RetrieveOutput{Query: "q", Selected: []string{"Responder"}},
		}, nil)

		w := postJSON(t, h.Answer, AnswerRequest{Query: "q"})

		require.Equal(t, http.StatusOK, w.Code)
		var resp AnswerResponse
		decodeData(t, w, &resp)
		assert.Equal(t, AnswerResponse{Answer: "use responder", Query: "q", Selected: []string{"Responder"}}, resp)
	})

	t.Run("model unavailable", func(t *testing.T) {
		p := new(MockPipeline)
		p.On("Answer", mock.Anything, mock.Anything).Return(nil, domain.ErrEmptyCompletion)

		w := postJSON(t, NewQueryHandler(p, nil).Answer, AnswerRequest{Query: "q"})

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		p := new(MockPipeline)
		p.On("Answer", mock.Anything, mock.Anything).Return(nil, errors.New("neo4j: connection refused"))

		w := postJSON(t, NewQueryHandler(p, nil).Answer, AnswerRequest{Query: "q"})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
