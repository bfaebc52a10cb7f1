package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code and message so wrapped copies compare equal
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUnavailable      = "UNAVAILABLE"
)

// Validation errors
var (
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrEmptyText         = NewDomainError(ErrCodeValidation, "text cannot be empty")
	ErrInvalidNoteType   = NewDomainError(ErrCodeValidation, "invalid note type")
	ErrInvalidRole       = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrDimensionMismatch = NewDomainError(ErrCodeValidation, "embedding dimension does not match the vector index")
	ErrInvalidIndexName  = NewDomainError(ErrCodeValidation, "invalid vector index name")
)

// Not found errors
var (
	ErrNoteNotFound = NewDomainError(ErrCodeNotFound, "note not found")
)

// Already exists errors
var (
	ErrNoteAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "note already exists")
)

// Collaborator errors
var (
	ErrEmptyCompletion = NewDomainError(ErrCodeUnavailable, "language model returned no choices")
	ErrNoEmbedding     = NewDomainError(ErrCodeUnavailable, "embedding service returned no data")
)
