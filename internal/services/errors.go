package services

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Error kinds carried on every failure response.
const (
	KindInvalidArgument   = "invalid_argument"
	KindNotFound          = "not_found"
	KindConflict          = "conflict"
	KindInsufficientFunds = "insufficient_funds"
	KindInvalidState      = "invalid_state"
	KindForbidden         = "forbidden"
	KindUnauthorized      = "unauthorized"
	KindUnknownAction     = "unknown_action"
	KindInternal          = "internal"
)

// DomainError is a failure with a machine-readable kind and a message safe
// to show to clients.
type DomainError struct {
	Kind    string
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.cause }

// Errf builds a DomainError with a formatted client-facing message.
func Errf(kind, format string, args ...any) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps a store or transport failure. The cause stays in the logs;
// clients only see the generic message.
func Internal(cause error) *DomainError {
	return &DomainError{Kind: KindInternal, Message: "internal error", cause: cause}
}

// KindOf extracts the error kind, defaulting to internal.
func KindOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf extracts the client-facing message, defaulting to a generic one.
func MessageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// Postgres error classification. Unique violations become conflicts;
// bounded lock waits and serialization failures also surface as conflicts
// so callers know the operation is safe to retry from scratch.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isRetryableConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "55P03", "40001", "40P01": // lock timeout, serialization failure, deadlock
		return true
	}
	return false
}
