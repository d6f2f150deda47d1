package coordinator

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a coordination failure. Every error returned by Submit
// carries exactly one kind; transports map kinds to status codes.
type Kind string

const (
	// KindConflict means the job id already exists in the store
	KindConflict Kind = "conflict"
	// KindPrecondition means the request cannot be satisfied: the resolver
	// found no matching catalog entities, or the effective memory exceeds
	// the per-job maximum
	KindPrecondition Kind = "precondition"
	// KindUserLimitExceeded means the per-user active-job cap was reached
	KindUserLimitExceeded Kind = "user_limit_exceeded"
	// KindServerUnavailable means node-memory admission denied; the caller
	// may retry on another node
	KindServerUnavailable Kind = "server_unavailable"
	// KindServerError covers unclassified errors and broken catalog invariants
	KindServerError Kind = "server_error"
)

// CoordinationError is the typed rejection returned by the admission pipeline
type CoordinationError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *CoordinationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CoordinationError) Unwrap() error {
	return e.Err
}

func newConflictError(message string, err error) *CoordinationError {
	return &CoordinationError{Kind: KindConflict, Message: message, Err: err}
}

func newPreconditionError(message string, err error) *CoordinationError {
	return &CoordinationError{Kind: KindPrecondition, Message: message, Err: err}
}

func newUserLimitExceededError(user string, active, limit int) *CoordinationError {
	return &CoordinationError{
		Kind:    KindUserLimitExceeded,
		Message: fmt.Sprintf("user %s has %d active jobs which meets or exceeds the limit of %d", user, active, limit),
	}
}

func newServerUnavailableError(message string) *CoordinationError {
	return &CoordinationError{Kind: KindServerUnavailable, Message: message}
}

func newServerError(message string, err error) *CoordinationError {
	return &CoordinationError{Kind: KindServerError, Message: message, Err: err}
}

// Classify returns the kind of a coordination error, or KindServerError for
// anything the pipeline did not classify itself
func Classify(err error) Kind {
	var cErr *CoordinationError
	if errors.As(err, &cErr) {
		return cErr.Kind
	}
	return KindServerError
}

// HTTPStatus maps a failure kind to its transport status code
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindConflict:
		return http.StatusConflict
	case KindPrecondition:
		return http.StatusPreconditionFailed
	case KindUserLimitExceeded:
		return http.StatusTooManyRequests
	case KindServerUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
