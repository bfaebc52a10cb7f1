package domain

import "fmt"

// Role identifies who authored a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the interactive conversation.
// The JSON shape is what the language model sees in prompts.
type Message struct {
	Role    Role   `json:"role"`
	Message string `json:"message"`
}

func IsValidRole(r Role) bool {
	return r == RoleUser || r == RoleAssistant
}

// ValidateHistory rejects turns with an unknown role.
func ValidateHistory(history []Message) error {
	for i, m := range history {
		if !IsValidRole(m.Role) {
			return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidRole.Message,
				fmt.Errorf("message %d has role %q", i, m.Role))
		}
	}
	return nil
}
