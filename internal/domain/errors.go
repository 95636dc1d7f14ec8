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
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrCodeProvider         = "PROVIDER_ERROR"
	ErrCodeParse            = "PARSE_ERROR"
)

// NewConfigurationError creates a user-actionable configuration error.
// Configuration errors are never retried.
func NewConfigurationError(message string) *DomainError {
	return NewDomainError(ErrCodeConfiguration, message)
}

// NewParseError creates an error for a response body that did not match
// any known provider format.
func NewParseError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeParse, message, err)
}

// ProviderError carries the HTTP status and raw body of a failed provider
// call for diagnostics. Bodies are logged server-side, never shown to end
// users.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// NewProviderError wraps a non-2xx provider response as a DomainError.
func NewProviderError(provider string, statusCode int, body string) *DomainError {
	return NewDomainErrorWithCause(
		ErrCodeProvider,
		fmt.Sprintf("%s request failed", provider),
		&ProviderError{Provider: provider, StatusCode: statusCode, Body: body},
	)
}

// Validation errors
var (
	ErrInvalidEmbeddingJobStatus = NewDomainError(ErrCodeValidation, "invalid embedding job status")
	ErrMissingRequiredField      = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound      = NewDomainError(ErrCodeNotFound, "document not found")
	ErrKnowledgeBaseNotFound = NewDomainError(ErrCodeNotFound, "knowledge base not found")
	ErrChunkNotFound         = NewDomainError(ErrCodeNotFound, "chunk not found")
)

// Already exists errors
var (
	ErrDocumentAlreadyExists      = NewDomainError(ErrCodeAlreadyExists, "document already exists")
	ErrKnowledgeBaseAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "knowledge base already exists")
)

// Operation errors
var (
	// ErrEmbeddingInProgress gates one embedding pass per document at a time.
	ErrEmbeddingInProgress = NewDomainError(ErrCodeInvalidOperation, "document embedding already in progress")
)
