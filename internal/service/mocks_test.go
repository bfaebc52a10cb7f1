package service

import (
	"context"
	"unicode/utf8"

	"github.com/stretchr/testify/mock"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
	"github.com/danielbwilkinson/jargon-rag/internal/vault"
)

// MockNoteStore is a mock implementation of NoteStore
type MockNoteStore struct {
	mock.Mock
}

func (m *MockNoteStore) VectorTopK(ctx context.Context, embedding []float32, k int) ([]string, error) {
	args := m.Called(ctx, embedding, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockNoteStore) ScoreCandidates(ctx context.Context, titles []string, embedding []float32) ([]domain.ScoredTitle, error) {
	args := m.Called(ctx, titles, embedding)
	if rf, ok := args.Get(0).(func(context.Context, []string, []float32) []domain.ScoredTitle); ok {
		return rf(ctx, titles, embedding), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredTitle), args.Error(1)
}

func (m *MockNoteStore) TextContaining(ctx context.Context, words []string) ([]string, error) {
	args := m.Called(ctx, words)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockNoteStore) OutLinks(ctx context.Context, titles []string) ([]string, error) {
	args := m.Called(ctx, titles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockNoteStore) Fetch(ctx context.Context, title string) (*domain.NoteText, error) {
	args := m.Called(ctx, title)
	if rf, ok := args.Get(0).(func(context.Context, string) *domain.NoteText); ok {
		return rf(ctx, title), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NoteText), args.Error(1)
}

// MockNoteWriter is a mock implementation of NoteWriter
type MockNoteWriter struct {
	mock.Mock
}

func (m *MockNoteWriter) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockNoteWriter) EnsureIndex(ctx context.Context, dims int) error {
	args := m.Called(ctx, dims)
	return args.Error(0)
}

func (m *MockNoteWriter) CreateNote(ctx context.Context, n *domain.Note) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNoteWriter) CreateLink(ctx context.Context, src, dst string) (bool, error) {
	args := m.Called(ctx, src, dst)
	return args.Bool(0), args.Error(1)
}

// MockEmbedder is a mock implementation of Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if rf, ok := args.Get(0).(func(context.Context, []string) [][]float32); ok {
		return rf(ctx, texts), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockCompleter is a mock implementation of Completer
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockVaultSource is a mock implementation of VaultSource
type MockVaultSource struct {
	mock.Mock
}

func (m *MockVaultSource) Files(ctx context.Context) ([]vault.File, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vault.File), args.Error(1)
}

// runeCounter counts one token per character.
type runeCounter struct{}

func (runeCounter) CountTokens(text string) int {
	return utf8.RuneCountInString(text)
}

// fixedCounter returns preset counts, defaulting to one token per four characters.
type fixedCounter map[string]int

func (c fixedCounter) CountTokens(text string) int {
	if n, ok := c[text]; ok {
		return n
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}
