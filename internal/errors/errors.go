// Package errors provides centralized error handling for bob.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrInvalidRequest indicates a malformed capability request envelope.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrValidationFailed indicates the task graph failed validation
	// (malformed structure, duplicate IDs, cycles, missing test_write pairs).
	ErrValidationFailed = errors.New("validation failed")

	// ErrSessionNotFound indicates the requested session directory does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists indicates an attempt to initialize a session directory
	// that already exists.
	ErrSessionExists = errors.New("session already exists")

	// ErrTaskNotFound indicates a task ID does not resolve in the graph.
	ErrTaskNotFound = errors.New("task not found")

	// ErrArtifactNotFound indicates a required session artifact is missing.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrConflict indicates a state conflict, such as applying a verdict to
	// a task that is not running.
	ErrConflict = errors.New("conflict")

	// ErrLockHeld indicates the session directory lock is held by another
	// process.
	ErrLockHeld = errors.New("session lock held")

	// ErrUnsupported indicates a capability or operation that is not
	// implemented by this core.
	ErrUnsupported = errors.New("unsupported")

	// ErrCapabilityNotFound indicates an unknown capability name.
	ErrCapabilityNotFound = errors.New("capability not found")

	// ErrAgentFailed indicates the backend agent process failed to execute.
	// Verdict-level failures are not errors; this covers spawn/stream faults.
	ErrAgentFailed = errors.New("agent invocation failed")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrInvalidStatus indicates a task is in an invalid status for the
	// requested transition.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrInvalidKind indicates an unknown task kind was supplied.
	ErrInvalidKind = errors.New("invalid task kind")

	// ErrCycleDetected indicates the parent references form a cycle.
	ErrCycleDetected = errors.New("cycle detected in task graph")

	// ErrDuplicateTaskID indicates two tasks share the same ID.
	ErrDuplicateTaskID = errors.New("duplicate task id")

	// ErrDanglingParent indicates a parent_id that does not resolve.
	ErrDanglingParent = errors.New("parent id does not resolve")

	// ErrMissingTestWrite indicates a test_run task with no matching
	// test_write sibling for its concern.
	ErrMissingTestWrite = errors.New("test_run has no matching test_write")

	// ErrAttemptsExhausted indicates a task has consumed its full retry budget.
	ErrAttemptsExhausted = errors.New("maximum attempts exhausted")

	// ErrExecutionBusy indicates a graph mutation was requested while a task
	// is running.
	ErrExecutionBusy = errors.New("execution in progress")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrConfigNotFound indicates that the configuration file was not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidBackend indicates an unknown backend name was selected.
	ErrInvalidBackend = errors.New("invalid backend")

	// ErrOperationCanceled indicates the user canceled an operation.
	ErrOperationCanceled = errors.New("operation canceled by user")

	// ErrInternal indicates a broken internal invariant (dangling reference
	// after mutation, missing ledger index). It signals a bug, not user error.
	ErrInternal = errors.New("internal invariant violated")
)
