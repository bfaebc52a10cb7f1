package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
	"github.com/danielbwilkinson/jargon-rag/internal/telemetry"
)

// Assembly is the serialized context handed to the language model.
type Assembly struct {
	// JSON is an array of {"title","text"} objects
	JSON   string
	Titles []string
	Tokens int
	// Truncated is set when the sole remaining note was cut short
	Truncated bool
}

// Assembler fits an ordered list of notes into a token budget.
type Assembler struct {
	store  NoteStore
	tokens TokenCounter
	logger *zap.Logger
}

func NewAssembler(store NoteStore, tokens TokenCounter, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{store: store, tokens: tokens, logger: logger}
}

// Assemble fetches titles in order and serializes them. While over budget it
// drops the last note; once a single note remains it truncates that note's
// text in proportion to the overshoot and stops, so the result may still be
// slightly over budget.
func (a *Assembler) Assemble(ctx context.Context, titles []string, budget int) (*Assembly, error) {
	ctx, span := telemetry.StartSpan(ctx, "Assembler.Assemble", telemetry.SpanAttributes{Stage: "assemble", Count: len(titles)})
	defer span.End()

	records := make([]domain.NoteText, 0, len(titles))
	for _, title := range titles {
		nt, err := a.store.Fetch(ctx, title)
		if err != nil && !errors.Is(err, domain.ErrNoteNotFound) {
			span.SetError(err)
			return nil, err
		}
		if nt == nil || err != nil {
			a.logger.Debug("selected note not found", zap.String("title", title))
			continue
		}
		records = append(records, *nt)
	}

	out, tokens := a.measure(records)
	a.logger.Debug("context size", zap.Int("characters", len(out)), zap.Int("tokens", tokens))

	trimmed := false
	truncated := false
	for tokens > budget && len(records) > 0 {
		trimmed = true
		if len(records) == 1 {
			records[0].Text = truncateRunes(records[0].Text, proportionalLength(records[0].Text, tokens, budget))
			truncated = true
			out, tokens = a.measure(records)
			break
		}
		records = records[:len(records)-1]
		out, tokens = a.measure(records)
	}

	result := &Assembly{
		JSON:      out,
		Titles:    make([]string, len(records)),
		Tokens:    tokens,
		Truncated: truncated,
	}
	for i, r := range records {
		result.Titles[i] = r.Title
	}

	if trimmed {
		a.logger.Debug("context trimmed",
			zap.Int("characters", len(out)), zap.Int("tokens", tokens), zap.Strings("remaining", result.Titles))
	}

	span.SetCount(len(records))
	return result, nil
}

func (a *Assembler) measure(records []domain.NoteText) (string, int) {
	s := serializeRecords(records)
	return s, a.tokens.CountTokens(s)
}

// serializeRecords renders records as a compact JSON array without HTML escaping.
func serializeRecords(records []domain.NoteText) string {
	if records == nil {
		records = []domain.NoteText{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return "[]"
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// proportionalLength scales text's character count by budget/tokens, rounding
// half to even. A non-positive budget yields zero.
func proportionalLength(text string, tokens, budget int) int {
	if tokens <= 0 || budget <= 0 {
		return 0
	}
	n := math.RoundToEven(float64(utf8.RuneCountInString(text)) / float64(tokens) * float64(budget))
	return int(n)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
