// Package errors provides the error taxonomy shared by the archive, import,
// backup and restore layers.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Store errors
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDefaultCategory is returned when deleting a default category.
	ErrDefaultCategory = errors.New("default categories cannot be deleted")

	// ErrLastCategory is returned when deleting the only remaining category.
	ErrLastCategory = errors.New("at least one category must exist")

	// ErrCategoryNameTaken is returned when a live category already uses the name.
	ErrCategoryNameTaken = errors.New("category name already in use")
)

// Credential errors
var (
	// ErrCredentialRequired is returned when an encrypted archive is used without a credential.
	ErrCredentialRequired = errors.New("credential required")

	// ErrBadCredential is returned when decryption fails authentication.
	ErrBadCredential = errors.New("invalid credential or corrupted data")

	// ErrNoDeviceLock is returned when the device credential is requested but none is set.
	ErrNoDeviceLock = errors.New("no device lock configured")
)

// ErrDuplicate signals that content was already ingested. It is an outcome
// requiring a policy decision, not a failure.
var ErrDuplicate = errors.New("duplicate content")

// ValidationError reports a malformed or incompatible archive. It is always
// raised before anything is mutated.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid archive: %s: %v", e.Reason, e.Err)
	}
	return "invalid archive: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validationf builds a ValidationError with a formatted reason.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// SecurityKind classifies hostile archive input.
type SecurityKind int

const (
	TooManyEntries SecurityKind = iota + 1
	SizeLimitExceeded
	SuspiciousCompressionRatio
	PathTraversal
)

func (k SecurityKind) String() string {
	switch k {
	case TooManyEntries:
		return "too many entries"
	case SizeLimitExceeded:
		return "size limit exceeded"
	case SuspiciousCompressionRatio:
		return "suspicious compression ratio"
	case PathTraversal:
		return "path traversal"
	default:
		return "unknown"
	}
}

// SecurityError rejects an archive outright. Nothing is extracted when one is
// returned; anything partially written has already been removed.
type SecurityError struct {
	Kind   SecurityKind
	Entry  string
	Detail string
}

func (e *SecurityError) Error() string {
	msg := "archive rejected: " + e.Kind.String()
	if e.Entry != "" {
		msg += fmt.Sprintf(" (entry %q)", e.Entry)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches another SecurityError with the same Kind, so callers can write
// errors.Is(err, &SecurityError{Kind: PathTraversal}).
func (e *SecurityError) Is(target error) bool {
	t, ok := target.(*SecurityError)
	return ok && (t.Kind == 0 || t.Kind == e.Kind)
}

// IntegrityError reports a checksum mismatch or a missing file.
type IntegrityError struct {
	File     string
	Expected string
	Actual   string
	Missing  bool
}

func (e *IntegrityError) Error() string {
	if e.Missing {
		return fmt.Sprintf("integrity: %s is missing", e.File)
	}
	return fmt.Sprintf("integrity: %s checksum mismatch (expected %s, got %s)", e.File, short(e.Expected), short(e.Actual))
}

// IOError wraps a filesystem failure. Transient errors have already been
// retried once when they reach the caller.
type IOError struct {
	Op        string
	Path      string
	Err       error
	Transient bool
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// CircuitOpenError is returned when a circuit breaker refuses a call.
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
	// Remaining is the number of batch items that were not attempted.
	Remaining int
}

func (e *CircuitOpenError) Error() string {
	msg := fmt.Sprintf("circuit %q is open", e.Name)
	if e.Remaining > 0 {
		msg += fmt.Sprintf(": %d remaining items not attempted", e.Remaining)
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter.Round(time.Second))
	}
	return msg
}

// IsCircuitOpen reports whether err is or wraps a CircuitOpenError.
func IsCircuitOpen(err error) bool {
	var coe *CircuitOpenError
	return errors.As(err, &coe)
}

// IsSecurity reports whether err is or wraps a SecurityError.
func IsSecurity(err error) bool {
	var se *SecurityError
	return errors.As(err, &se)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func short(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
