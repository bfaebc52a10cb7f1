package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJargonDetector_Detect(t *testing.T) {
	counter := fixedCounter{
		"CVE":   3,
		"2023":  3,
		"XXXX":  2,
		"x":     5,
	}
	d := NewJargonDetector(counter, DefaultJargonThreshold)

	t.Run("dense words are jargon", func(t *testing.T) {
		jargon := d.Detect("investigate CVE-2023-XXXX buffer overflow")
		// CVE 3/3, 2023 3/4; XXXX is exactly 0.5 which is not above the threshold
		assert.Equal(t, []string{"CVE", "2023"}, jargon)
	})

	t.Run("single characters never qualify", func(t *testing.T) {
		assert.False(t, d.IsJargon("x"))
		assert.Empty(t, d.Detect("x x x"))
	})

	t.Run("empty query", func(t *testing.T) {
		assert.Empty(t, d.Detect(""))
		assert.Empty(t, d.Detect("  --  "))
	})

	t.Run("deduplicated in first-seen order", func(t *testing.T) {
		assert.Equal(t, []string{"2023", "CVE"}, d.Detect("2023 CVE 2023_CVE"))
	})
}

func TestJargonDetector_CountsCharactersNotBytes(t *testing.T) {
	// 2 tokens over 4 runes (8 bytes) is exactly the threshold
	d := NewJargonDetector(fixedCounter{"ключ": 2, "пароль": 4}, DefaultJargonThreshold)

	assert.False(t, d.IsJargon("ключ"))
	assert.True(t, d.IsJargon("пароль"))
}

func TestSplitWords(t *testing.T) {
	assert.Equal(t, []string{"nmap", "sV", "p", "1", "65535", "host", "name"},
		splitWords("nmap -sV -p 1-65535 host_name"))
}
