package domain

import (
	"errors"
	"fmt"
)

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
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeInvalidOperation  = "INVALID_OPERATION"
	ErrCodeProviderTransient = "PROVIDER_TRANSIENT"
	ErrCodeProviderResponse  = "PROVIDER_MALFORMED_RESPONSE"
	ErrCodeUpstream          = "UPSTREAM_UNAVAILABLE"
	ErrCodeIsolation         = "TENANT_ISOLATION_VIOLATION"
	ErrCodeContentPolicy     = "CONTENT_POLICY_REJECTED"
)

// Validation errors
var (
	ErrInvalidSourceType      = NewDomainError(ErrCodeValidation, "invalid source type")
	ErrInvalidSourceStatus    = NewDomainError(ErrCodeValidation, "invalid source status")
	ErrInvalidIngestJobStatus = NewDomainError(ErrCodeValidation, "invalid ingest job status")
	ErrInvalidMessageRole     = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrInvalidAnswerState     = NewDomainError(ErrCodeValidation, "invalid answer state transition")
	ErrMissingRequiredField   = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyUserMessage       = NewDomainError(ErrCodeValidation, "user message must not be empty")
)

// Not found errors
var (
	ErrTenantNotFound       = NewDomainError(ErrCodeNotFound, "tenant not found")
	ErrSourceNotFound       = NewDomainError(ErrCodeNotFound, "source not found")
	ErrConversationNotFound = NewDomainError(ErrCodeNotFound, "conversation not found")
	ErrAPIKeyNotFound       = NewDomainError(ErrCodeNotFound, "api key not found")
)

// Already exists errors
var (
	ErrTenantAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "tenant already exists")
	ErrSourceAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "source already exists")
	ErrAPIKeyAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Provider errors. Transient errors are safe to retry, malformed
// responses are not.
var (
	ErrProviderRateLimited = NewDomainError(ErrCodeProviderTransient, "provider rate limit exceeded")
	ErrProviderTimeout     = NewDomainError(ErrCodeProviderTransient, "provider request timed out")
	ErrProviderOverloaded  = NewDomainError(ErrCodeProviderTransient, "provider temporarily overloaded")
	ErrMalformedResponse   = NewDomainError(ErrCodeProviderResponse, "provider returned a malformed response")
	ErrEmbeddingUpstream   = NewDomainError(ErrCodeUpstream, "embedding provider unavailable")
	ErrIndexUnavailable    = NewDomainError(ErrCodeUpstream, "vector index unavailable")
	ErrGenerationUpstream  = NewDomainError(ErrCodeUpstream, "answer generation provider unavailable")
	ErrContentPolicy       = NewDomainError(ErrCodeContentPolicy, "provider rejected the request on content policy grounds")
)

// Isolation errors
var (
	ErrTenantIsolation = NewDomainError(ErrCodeIsolation, "retrieved content belongs to another tenant")
)

// IsTransient reports whether err is a provider error that is safe to
// retry with the same arguments.
func IsTransient(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == ErrCodeProviderTransient
	}
	return false
}

