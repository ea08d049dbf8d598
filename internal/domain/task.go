// Package domain provides shared domain types for the bob workflow core.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"github.com/dioko-ai/bob/internal/constants"
)

// Task is one node of the session's task graph. The graph is a forest:
// each task has at most one parent and references resolve by ID, never by
// pointer.
//
// Example JSON representation:
//
//	{
//	    "id": "auth-1",
//	    "parent_id": "auth",
//	    "title": "Audit token refresh",
//	    "body": "Review the refresh path for ...",
//	    "kind": "audit",
//	    "concern": "token-refresh",
//	    "status": "pending",
//	    "attempt": 0,
//	    "max_attempts": 4,
//	    "linked_failure_refs": [2, 5]
//	}
type Task struct {
	// ID is the stable identifier, unique within the session.
	ID string `json:"id"`

	// ParentID references another task in the same session, or is empty
	// for root tasks.
	ParentID string `json:"parent_id,omitempty"`

	// Title is a short human-readable summary.
	Title string `json:"title"`

	// Body is the free-text description handed to agents.
	Body string `json:"body,omitempty"`

	// Kind is the pipeline stage this task belongs to.
	Kind constants.TaskKind `json:"kind"`

	// Concern is an optional grouping tag used by split/merge operations
	// and by the test_write/test_run pairing rule.
	Concern string `json:"concern,omitempty"`

	// Status is the current state in the per-task state machine.
	Status constants.TaskStatus `json:"status"`

	// Attempt counts completed attempts at this task.
	Attempt int `json:"attempt"`

	// MaxAttempts bounds Attempt per kind; validation fills it from the
	// policy table unless the raw record overrides within policy.
	MaxAttempts int `json:"max_attempts"`

	// LinkedFailureRefs are stable indices into the session failure ledger.
	LinkedFailureRefs []int `json:"linked_failure_refs,omitempty"`

	// Docs are reference documents attached to the task, injected into the
	// prompt ahead of the role instructions.
	Docs []DocRef `json:"docs,omitempty"`
}

// DocRef is a reference document attached to a task.
type DocRef struct {
	// Title is the display name of the document.
	Title string `json:"title"`

	// URL locates the document.
	URL string `json:"url"`

	// Summary is an optional one-line description.
	Summary string `json:"summary,omitempty"`
}

// FailureRecord is one entry of the append-only failure ledger.
// Entries are never reordered or removed; indices are stable.
type FailureRecord struct {
	// TaskID identifies the task the failure belongs to.
	TaskID string `json:"task_id"`

	// Attempt is the attempt number (1-based) that produced the failure.
	Attempt int `json:"attempt"`

	// Kind is the task kind at failure time.
	Kind constants.TaskKind `json:"kind"`

	// VerdictSummary is the one-line agent verdict, or a marker such as
	// "cancelled" or "skipped_due_to=<task_id>".
	VerdictSummary string `json:"verdict_summary"`

	// Details carries the full failure output, if any.
	Details string `json:"details,omitempty"`

	// Timestamp is the UTC time the entry was appended, RFC 3339.
	Timestamp string `json:"timestamp"`
}

// ContextEntry is one element of the bounded rolling context buffer.
type ContextEntry struct {
	// TaskID identifies the task the entry summarizes.
	TaskID string `json:"task_id"`

	// Timestamp is the UTC time of the status event, RFC 3339.
	Timestamp string `json:"timestamp"`

	// Summary is the one-line status text shown to later agents.
	Summary string `json:"summary"`
}
