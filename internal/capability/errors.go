// Package capability defines the typed request/response envelopes, the
// stable error taxonomy, and the static capability registry through which
// every transport drives the core.
package capability

import (
	"errors"

	boberrors "github.com/dioko-ai/bob/internal/errors"
)

// Code is a stable error code carried in error envelopes.
type Code string

// The error taxonomy. Codes are part of the wire contract and never change
// meaning.
const (
	CodeInvalidRequest   Code = "invalid_request"
	CodeValidationFailed Code = "validation_failed"
	CodeNotFound         Code = "not_found"
	CodeConflict         Code = "conflict"
	CodeIOFailure        Code = "io_failure"
	CodeExternalFailure  Code = "external_failure"
	CodeUnsupported      Code = "unsupported"
	CodeInternal         Code = "internal"
)

// Error is the wire form of a failed capability call.
type Error struct {
	// Code is the stable taxonomy code.
	Code Code `json:"code"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Retryable is reserved for future use; the core always reports false.
	Retryable bool `json:"retryable"`

	// Details optionally carries structured extra context.
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewError builds a wire error from a code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// FromError maps an internal error to its wire form using the sentinel
// taxonomy. Errors outside the taxonomy map to io_failure, the catch-all
// for store-level faults; internal is reserved for explicit invariant
// violations.
func FromError(err error) *Error {
	var wireErr *Error
	if errors.As(err, &wireErr) {
		return wireErr
	}
	return &Error{Code: codeFor(err), Message: err.Error()}
}

func codeFor(err error) Code {
	switch {
	case errors.Is(err, boberrors.ErrInvalidRequest),
		errors.Is(err, boberrors.ErrInvalidBackend):
		return CodeInvalidRequest
	case errors.Is(err, boberrors.ErrValidationFailed):
		return CodeValidationFailed
	case errors.Is(err, boberrors.ErrSessionNotFound),
		errors.Is(err, boberrors.ErrTaskNotFound),
		errors.Is(err, boberrors.ErrArtifactNotFound),
		errors.Is(err, boberrors.ErrCapabilityNotFound),
		errors.Is(err, boberrors.ErrConfigNotFound):
		return CodeNotFound
	case errors.Is(err, boberrors.ErrConflict),
		errors.Is(err, boberrors.ErrLockHeld),
		errors.Is(err, boberrors.ErrExecutionBusy),
		errors.Is(err, boberrors.ErrInvalidStatus):
		return CodeConflict
	case errors.Is(err, boberrors.ErrAgentFailed):
		return CodeExternalFailure
	case errors.Is(err, boberrors.ErrUnsupported):
		return CodeUnsupported
	case errors.Is(err, boberrors.ErrInternal):
		return CodeInternal
	default:
		// ErrSessionExists lands here too: an existing directory surfaces
		// as io_failure per the store's init contract.
		return CodeIOFailure
	}
}

// Exit code mapping for scripted transports.
const (
	exitInvalidRequest   = 10
	exitValidationFailed = 11
	exitNotFound         = 12
	exitConflict         = 13
	exitIOFailure        = 14
	exitExternalFailure  = 15
	exitUnsupported      = 16
	exitInternal         = 17
)

// ExitCode maps an error code to the scripted transport's process exit code.
func ExitCode(code Code) int {
	switch code {
	case CodeInvalidRequest:
		return exitInvalidRequest
	case CodeValidationFailed:
		return exitValidationFailed
	case CodeNotFound:
		return exitNotFound
	case CodeConflict:
		return exitConflict
	case CodeIOFailure:
		return exitIOFailure
	case CodeExternalFailure:
		return exitExternalFailure
	case CodeUnsupported:
		return exitUnsupported
	default:
		return exitInternal
	}
}
