package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/danielbwilkinson/jargon-rag/internal/api"
	"github.com/danielbwilkinson/jargon-rag/internal/api/middleware"
	"github.com/danielbwilkinson/jargon-rag/internal/domain"
	"github.com/danielbwilkinson/jargon-rag/internal/service"
	"github.com/danielbwilkinson/jargon-rag/internal/telemetry"
)

// Pipeline is the query side of the RAG service.
type Pipeline interface {
	Retrieve(ctx context.Context, input service.RetrieveInput) (*service.RetrieveOutput, error)
	Answer(ctx context.Context, input service.AnswerInput) (*service.AnswerOutput, error)
	ContextBudget(history []domain.Message) int
}

// QueryHandler serves retrieval and answers. It keeps no conversation
// state; callers send the history they want considered.
type QueryHandler struct {
	pipeline Pipeline
	logger   *zap.Logger
}

func NewQueryHandler(pipeline Pipeline, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{pipeline: pipeline, logger: logger}
}

type RetrieveRequest struct {
	Query   string           `json:"query"`
	History []domain.Message `json:"history"`
	// Budget defaults to what the answer prompt would leave for context.
	// Zero and negative budgets are passed through.
	Budget *int `json:"budget,omitempty"`
}

type ContextResponse struct {
	Notes     json.RawMessage `json:"notes"`
	Titles    []string        `json:"titles"`
	Tokens    int             `json:"tokens"`
	Truncated bool            `json:"truncated"`
}

type RetrieveResponse struct {
	Query      string          `json:"query"`
	Budget     int             `json:"budget"`
	Candidates []string        `json:"candidates"`
	Selected   []string        `json:"selected"`
	Context    ContextResponse `json:"context"`
}

type AnswerRequest struct {
	Query   string           `json:"query"`
	History []domain.Message `json:"history"`
}

type AnswerResponse struct {
	Answer   string   `json:"answer"`
	Query    string   `json:"query"`
	Selected []string `json:"selected"`
}

func (h *QueryHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateQuery(w, req.Query, req.History) {
		return
	}

	var budget int
	if req.Budget != nil {
		budget = *req.Budget
	} else {
		budget = h.pipeline.ContextBudget(req.History)
	}

	out, err := h.pipeline.Retrieve(r.Context(), service.RetrieveInput{
		Query:   req.Query,
		History: req.History,
		Budget:  budget,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, RetrieveResponse{
		Query:      out.Query,
		Budget:     budget,
		Candidates: nonNil(out.Candidates),
		Selected:   nonNil(out.Selected),
		Context: ContextResponse{
			Notes:     json.RawMessage(out.Context.JSON),
			Titles:    nonNil(out.Context.Titles),
			Tokens:    out.Context.Tokens,
			Truncated: out.Context.Truncated,
		},
	})
}

func (h *QueryHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateQuery(w, req.Query, req.History) {
		return
	}

	out, err := h.pipeline.Answer(r.Context(), service.AnswerInput{
		Query:   req.Query,
		History: req.History,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, AnswerResponse{
		Answer:   out.Answer,
		Query:    out.Retrieval.Query,
		Selected: nonNil(out.Retrieval.Selected),
	})
}

func (h *QueryHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := api.DomainErrorToHTTP(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("query failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())), zap.Error(err))
		telemetry.CaptureError(r.Context(), err)
	}
	api.Error(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func validateQuery(w http.ResponseWriter, query string, history []domain.Message) bool {
	if strings.TrimSpace(query) == "" {
		api.HandleError(w, domain.ErrEmptyQuery)
		return false
	}
	if err := domain.ValidateHistory(history); err != nil {
		api.HandleError(w, err)
		return false
	}
	return true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
