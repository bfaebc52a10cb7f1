// Package tokenizer counts language-model tokens for budget and jargon decisions.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

const DefaultEncoding = "cl100k_base"

// Counter is a BPE token counter backed by tiktoken.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// New loads the named BPE encoding. An empty name selects cl100k_base.
func New(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}

	return &Counter{enc: enc}, nil
}

// CountTokens returns the number of tokens text encodes to, with special
// tokens treated as plain text.
func (c *Counter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Heuristic approximates one token per four bytes. It is used when no BPE
// table can be loaded.
type Heuristic struct{}

func (Heuristic) CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// TokenCounter is satisfied by both Counter and Heuristic.
type TokenCounter interface {
	CountTokens(text string) int
}

// NewWithFallback returns a BPE counter, or the heuristic when the encoding
// cannot be loaded (for example without network access on first use).
func NewWithFallback(encoding string, logger *zap.Logger) TokenCounter {
	c, err := New(encoding)
	if err != nil {
		logger.Warn("tokenizer unavailable, using character heuristic; jargon detection will be inert",
			zap.String("encoding", encoding), zap.Error(err))
		return Heuristic{}
	}
	return c
}
