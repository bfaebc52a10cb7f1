package service

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultJargonThreshold is the tokens-per-character ratio above which a word is jargon
const DefaultJargonThreshold = 0.5

// JargonDetector flags words a tokenizer fragments heavily. Technical terms
// split into more subword tokens than common words of the same length.
type JargonDetector struct {
	tokens    TokenCounter
	threshold float64
}

func NewJargonDetector(tokens TokenCounter, threshold float64) *JargonDetector {
	return &JargonDetector{tokens: tokens, threshold: threshold}
}

// Detect returns the jargon words of query in first-seen order, without duplicates.
func (d *JargonDetector) Detect(query string) []string {
	seen := make(map[string]struct{})
	var jargon []string

	for _, word := range splitWords(query) {
		if _, ok := seen[word]; ok {
			continue
		}
		if !d.IsJargon(word) {
			continue
		}
		seen[word] = struct{}{}
		jargon = append(jargon, word)
	}

	return jargon
}

// IsJargon applies the density test to a single word. Words shorter than two
// characters never qualify.
func (d *JargonDetector) IsJargon(word string) bool {
	n := utf8.RuneCountInString(word)
	if n < 2 {
		return false
	}
	return float64(d.tokens.CountTokens(word))/float64(n) > d.threshold
}

// splitWords breaks text on runs of anything that is not a letter or digit.
// Underscores separate words.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
}
