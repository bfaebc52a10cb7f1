package service

import (
	"github.com/danielbwilkinson/jargon-rag/internal/domain"
)

// Session is the append-only conversation log of one interactive user. It is
// owned by the caller and never touched by the pipeline.
type Session struct {
	messages []domain.Message
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Append(role domain.Role, message string) {
	s.messages = append(s.messages, domain.Message{Role: role, Message: message})
}

// Exchange records a completed turn: the user query, then the answer.
func (s *Session) Exchange(query, answer string) {
	s.Append(domain.RoleUser, query)
	s.Append(domain.RoleAssistant, answer)
}

// Messages returns a copy of the log, nil when empty.
func (s *Session) Messages() []domain.Message {
	if len(s.messages) == 0 {
		return nil
	}
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) Len() int {
	return len(s.messages)
}
