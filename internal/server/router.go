package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/danielbwilkinson/jargon-rag/internal/api"
	"github.com/danielbwilkinson/jargon-rag/internal/api/handlers"
	"github.com/danielbwilkinson/jargon-rag/internal/api/middleware"
)

type RouterConfig struct {
	QueryHandler *handlers.QueryHandler
	Logger       *zap.Logger
	MaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody == 0 {
		maxBody = middleware.DefaultMaxBodyBytes
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.MaxBodyBytes(maxBody))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/retrieve", cfg.QueryHandler.Retrieve)
	r.Post("/answer", cfg.QueryHandler.Answer)

	return r
}
