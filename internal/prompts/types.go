// Package prompts composes the text handed to backend agents for each
// pipeline role. The workflow engine supplies raw data (task, prior
// failures, rolling context); this package owns the wording. Builders are
// pure so prompt output is reproducible in tests.
package prompts

import (
	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
)

// Input is the data a role builder renders into a prompt.
type Input struct {
	// Task is the task being run.
	Task domain.Task

	// Scope is the root task the run belongs to (may equal Task).
	Scope domain.Task

	// Attempt is the 1-based attempt number about to run.
	Attempt int

	// PriorFailures are the most recent failure records for the task,
	// oldest first.
	PriorFailures []domain.FailureRecord

	// RollingContext are the most recent session context entries, oldest
	// first.
	RollingContext []domain.ContextEntry

	// TaskTree is the compact textual rendering of the current graph.
	TaskTree string

	// ProjectInfo is the markdown describing the target project.
	ProjectInfo string
}

// Builder renders a prompt for one role.
type Builder func(Input) string

// AuditResultToken values: agents answer the audit protocol with exactly
// one of these on the first non-empty line.
const (
	AuditResultPass = "AUDIT_RESULT: PASS"
	AuditResultFail = "AUDIT_RESULT: FAIL"
)

// Changed-files summary markers emitted by implementation agents.
const (
	FilesChangedBegin = "FILES_CHANGED_BEGIN"
	FilesChangedEnd   = "FILES_CHANGED_END"
)

// RoleName returns the human-readable role label for a task kind.
func RoleName(kind constants.TaskKind) string {
	switch kind {
	case constants.KindImplementation:
		return "implementation"
	case constants.KindAudit:
		return "audit"
	case constants.KindTestWrite:
		return "test writer"
	case constants.KindTestRun:
		return "test runner"
	case constants.KindFinalAudit:
		return "final audit"
	default:
		return string(kind)
	}
}
