package domain

import "fmt"

// NoteType is the vault category a note was loaded from
type NoteType string

const (
	NoteTypePrimary   NoteType = "primary"
	NoteTypeSecondary NoteType = "secondary"
	NoteTypeContent   NoteType = "content"
)

// Note is a unit of ingested knowledge stored as a graph node
type Note struct {
	Title        string
	Type         NoteType
	OriginalText string
	Text         string // cleaned body used for embedding and context assembly
	SearchTags   []string
	Embedding    []float32
}

// NoteText is the slice of a note handed to the language model as context
type NoteText struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ScoredTitle pairs a note title with its cosine similarity to a query
type ScoredTitle struct {
	Title string
	Score float64
}

// Link is a directed edge between two notes derived from a wiki-link
type Link struct {
	Source string
	Target string
}

// NewNote creates a new Note instance
func NewNote(title string, noteType NoteType, originalText, text string, searchTags []string) *Note {
	return &Note{
		Title:        title,
		Type:         noteType,
		OriginalText: originalText,
		Text:         text,
		SearchTags:   searchTags,
	}
}

// ValidateNote validates a Note before it is written to the graph
func ValidateNote(n *Note) error {
	if n == nil {
		return fmt.Errorf("note cannot be nil")
	}

	if n.Title == "" {
		return fmt.Errorf("note Title is required")
	}

	if !IsValidNoteType(n.Type) {
		return fmt.Errorf("note Type is invalid: %s", n.Type)
	}

	if len(n.Embedding) == 0 {
		return fmt.Errorf("note Embedding is required")
	}

	return nil
}

// IsValidNoteType checks if a NoteType is one of the vault categories
func IsValidNoteType(t NoteType) bool {
	switch t {
	case NoteTypePrimary, NoteTypeSecondary, NoteTypeContent:
		return true
	}
	return false
}
