package entities

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input to a fact or decision mutation.
// It is rejected immediately and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a reference to an unknown id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ConflictError reports an invariant violation, such as presenting a second
// decision while one is already awaiting a choice.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// ServiceErrorKind classifies an external-service failure.
type ServiceErrorKind string

const (
	ServiceTimeout         ServiceErrorKind = "timeout"
	ServiceTransport       ServiceErrorKind = "transport"
	ServiceInvalidResponse ServiceErrorKind = "invalid_response"
)

// ExternalServiceError wraps a failure from the language-model or
// summarization collaborator. All kinds are recoverable via fallback and are
// never fatal to the session, but they are logged distinctly.
type ExternalServiceError struct {
	Service string
	Kind    ServiceErrorKind
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Service, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Service, e.Kind)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsExternalService reports whether err is an ExternalServiceError.
func IsExternalService(err error) bool {
	var ese *ExternalServiceError
	return errors.As(err, &ese)
}

// ServiceKind returns the failure kind if err is an ExternalServiceError,
// and "" otherwise.
func ServiceKind(err error) ServiceErrorKind {
	var ese *ExternalServiceError
	if errors.As(err, &ese) {
		return ese.Kind
	}
	return ""
}
