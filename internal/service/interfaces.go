package service

import (
	"context"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
	"github.com/danielbwilkinson/jargon-rag/internal/vault"
)

// NoteStore is the read side of the note graph used at query time
type NoteStore interface {
	// VectorTopK returns up to k titles nearest to embedding by cosine similarity
	VectorTopK(ctx context.Context, embedding []float32, k int) ([]string, error)
	// ScoreCandidates scores the existing notes among titles, best first.
	// Titles without a note are omitted.
	ScoreCandidates(ctx context.Context, titles []string, embedding []float32) ([]domain.ScoredTitle, error)
	// TextContaining returns titles whose text contains any of words
	TextContaining(ctx context.Context, words []string) ([]string, error)
	// OutLinks returns the targets of every Link edge leaving titles
	OutLinks(ctx context.Context, titles []string) ([]string, error)
	// Fetch returns domain.ErrNoteNotFound for an unknown title
	Fetch(ctx context.Context, title string) (*domain.NoteText, error)
}

// NoteWriter is the write side of the note graph used by ingestion
type NoteWriter interface {
	Reset(ctx context.Context) error
	EnsureIndex(ctx context.Context, dims int) error
	CreateNote(ctx context.Context, n *domain.Note) error
	CreateLink(ctx context.Context, src, dst string) (bool, error)
}

// Embedder turns text into fixed-dimension vectors
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer sends a prompt to the language model
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TokenCounter must match the tokenizer behind the model's context window
type TokenCounter interface {
	CountTokens(text string) int
}

// VaultSource lists the raw notes to ingest
type VaultSource interface {
	Files(ctx context.Context) ([]vault.File, error)
}
