// Package engine implements the workflow engine: deterministic execution
// ordering over a validated task graph, the per-task retry state machine,
// and failure propagation.
//
// The engine is pure. Next and Apply take the graph and failure ledger by
// value and return new values; persistence is the orchestrator's concern.
// Given identical graph, ledger and verdict stream, the sequence of
// actions is identical.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/dioko-ai/bob/internal/clock"
	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
	"github.com/dioko-ai/bob/internal/taskgraph"
)

// Ledger is the append-only failure ledger. Entries are never reordered or
// removed; indices are stable and referenced by Task.LinkedFailureRefs.
type Ledger []domain.FailureRecord

// Event is one observable state change produced by Apply, used for logging
// and the rolling context.
type Event struct {
	// TaskID identifies the task the event concerns.
	TaskID string

	// Summary is the one-line human-readable description.
	Summary string
}

// Engine decides next actions and applies verdicts. The zero value is not
// usable; construct with New.
type Engine struct {
	clock clock.Clock
}

// New creates an Engine. A nil clock defaults to the real clock.
func New(clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Engine{clock: clk}
}

// Next returns the action for the current graph state: the earliest
// eligible task in canonical order, Done when no work remains, or Blocked
// when a task is still running or the graph is wedged.
//
// rolling supplies the recent context entries exposed in the prompt
// context; it does not influence ordering.
func (e *Engine) Next(g taskgraph.Graph, ledger Ledger, rolling []domain.ContextEntry) domain.Action {
	for _, t := range g.Tasks() {
		if t.Status == constants.TaskStatusRunning {
			return domain.BlockedAction(fmt.Sprintf("task %q is running", t.ID))
		}
	}

	anyPending := false
	anyFailed := false
	for _, t := range g.Tasks() {
		switch t.Status {
		case constants.TaskStatusFailed:
			anyFailed = true
		case constants.TaskStatusPending:
			anyPending = true
			if e.eligible(g, t) {
				return domain.RunTaskAction(t.ID, t.Kind, e.promptContext(t, ledger, rolling))
			}
		}
	}

	if !anyPending {
		return domain.DoneAction(anyFailed)
	}
	if anyFailed {
		// Pending work exists but failure upstream makes it unreachable.
		return domain.DoneAction(true)
	}
	return domain.BlockedAction("pending tasks remain but none are eligible")
}

// eligible reports whether a pending task may run now: its parent (when
// present) has passed, and every sibling preceding it in canonical order is
// passed or skipped.
func (e *Engine) eligible(g taskgraph.Graph, t domain.Task) bool {
	if t.ParentID != "" {
		parent, ok := g.ByID(t.ParentID)
		if !ok || parent.Status != constants.TaskStatusPassed {
			return false
		}
	}
	for _, sib := range g.Siblings(t.ID) {
		if sib.ID == t.ID {
			break
		}
		if !subtreeSettled(g, sib) {
			return false
		}
	}
	return true
}

// subtreeSettled reports whether a task and all its descendants finished
// successfully (passed) or were skipped.
func subtreeSettled(g taskgraph.Graph, t domain.Task) bool {
	if t.Status != constants.TaskStatusPassed && t.Status != constants.TaskStatusSkipped {
		return false
	}
	for _, child := range g.Children(t.ID) {
		if !subtreeSettled(g, child) {
			return false
		}
	}
	return true
}

// promptContext assembles the raw retry data for one run: the last K
// failure summaries for the task plus the recent rolling-context entries.
func (e *Engine) promptContext(t domain.Task, ledger Ledger, rolling []domain.ContextEntry) *domain.PromptContext {
	var prior []domain.FailureRecord
	for _, rec := range ledger {
		if rec.TaskID == t.ID && !isMarkerRecord(rec) {
			prior = append(prior, rec)
		}
	}
	if len(prior) > constants.RetryContextDepth {
		prior = prior[len(prior)-constants.RetryContextDepth:]
	}
	return &domain.PromptContext{
		Attempt:        t.Attempt + 1,
		PriorFailures:  prior,
		RollingContext: rolling,
	}
}

// isMarkerRecord reports whether a ledger entry records propagation or
// cancellation rather than a verdict. Marker entries never feed retry
// prompt context.
func isMarkerRecord(rec domain.FailureRecord) bool {
	return rec.VerdictSummary == cancelledSummary ||
		strings.HasPrefix(rec.VerdictSummary, skippedPrefix) ||
		strings.HasPrefix(rec.VerdictSummary, failedViaPrefix)
}

// Start marks a pending task running. Called by the orchestrator when it
// commits to executing a RunTask action.
func (e *Engine) Start(g taskgraph.Graph, taskID string) (taskgraph.Graph, error) {
	t, ok := g.ByID(taskID)
	if !ok {
		return taskgraph.Graph{}, fmt.Errorf("%w: %q", boberrors.ErrTaskNotFound, taskID)
	}
	if t.Status != constants.TaskStatusPending {
		return taskgraph.Graph{}, fmt.Errorf("%w: task %q is %s, not pending", boberrors.ErrConflict, taskID, t.Status)
	}
	return g.WithStatus(taskID, constants.TaskStatusRunning), nil
}

// Apply records the verdict for a running task: updates its state machine,
// appends ledger entries, and performs failure propagation. It returns the
// new graph, the new ledger, and the events describing what changed.
func (e *Engine) Apply(g taskgraph.Graph, ledger Ledger, taskID string, verdict domain.Verdict) (taskgraph.Graph, Ledger, []Event, error) {
	t, ok := g.ByID(taskID)
	if !ok {
		return taskgraph.Graph{}, nil, nil, fmt.Errorf("%w: %q", boberrors.ErrTaskNotFound, taskID)
	}
	if t.Status != constants.TaskStatusRunning {
		return taskgraph.Graph{}, nil, nil, fmt.Errorf("%w: task %q is %s, not running", boberrors.ErrConflict, taskID, t.Status)
	}

	ledger = cloneLedger(ledger)

	if verdict.Cancelled {
		// Cancellation does not consume an attempt.
		g = g.WithStatus(taskID, constants.TaskStatusPending)
		ledger = append(ledger, e.record(t, t.Attempt, cancelledSummary, verdict.Details))
		return g, ledger, []Event{{TaskID: taskID, Summary: fmt.Sprintf("task %q cancelled; will retry", taskID)}}, nil
	}

	attempt := t.Attempt + 1
	if attempt > t.MaxAttempts {
		return taskgraph.Graph{}, nil, nil, fmt.Errorf("%w: task %q", boberrors.ErrAttemptsExhausted, taskID)
	}

	if verdict.Pass {
		g = g.Mutate(taskID, func(task *domain.Task) {
			task.Status = constants.TaskStatusPassed
			task.Attempt = attempt
		})
		return g, ledger, []Event{{TaskID: taskID, Summary: fmt.Sprintf("%s %q passed on attempt %d", t.Kind, taskID, attempt)}}, nil
	}

	ref := len(ledger)
	ledger = append(ledger, e.record(t, attempt, verdict.Summary, verdict.Details))

	if attempt < t.MaxAttempts {
		g = g.Mutate(taskID, func(task *domain.Task) {
			task.Status = constants.TaskStatusPending
			task.Attempt = attempt
			task.LinkedFailureRefs = append(task.LinkedFailureRefs, ref)
		})
		events := []Event{{TaskID: taskID, Summary: fmt.Sprintf("%s %q failed attempt %d of %d; retry queued", t.Kind, taskID, attempt, t.MaxAttempts)}}
		return g, ledger, events, nil
	}

	g = g.Mutate(taskID, func(task *domain.Task) {
		task.Status = constants.TaskStatusFailed
		task.Attempt = attempt
		task.LinkedFailureRefs = append(task.LinkedFailureRefs, ref)
	})
	events := []Event{{TaskID: taskID, Summary: fmt.Sprintf("%s %q failed attempt %d of %d; retries exhausted", t.Kind, taskID, attempt, t.MaxAttempts)}}

	g, ledger, propEvents := e.propagateFailure(g, ledger, taskID)
	return g, ledger, append(events, propEvents...), nil
}

// Cancel reverts a running task to pending without consuming an attempt and
// appends a cancelled ledger entry. Used when the orchestrator observes a
// cancellation or recovers a session that crashed mid-run.
func (e *Engine) Cancel(g taskgraph.Graph, ledger Ledger, taskID string) (taskgraph.Graph, Ledger, error) {
	t, ok := g.ByID(taskID)
	if !ok {
		return taskgraph.Graph{}, nil, fmt.Errorf("%w: %q", boberrors.ErrTaskNotFound, taskID)
	}
	if t.Status != constants.TaskStatusRunning {
		return taskgraph.Graph{}, nil, fmt.Errorf("%w: task %q is %s, not running", boberrors.ErrConflict, taskID, t.Status)
	}
	g = g.WithStatus(taskID, constants.TaskStatusPending)
	ledger = append(cloneLedger(ledger), e.record(t, t.Attempt, cancelledSummary, ""))
	return g, ledger, nil
}

// RecoverRunning reverts every running task to pending, appending cancelled
// ledger entries. A fresh advance after a crash or interrupt recomputes the
// next action consistently.
func (e *Engine) RecoverRunning(g taskgraph.Graph, ledger Ledger) (taskgraph.Graph, Ledger, []Event) {
	var events []Event
	for _, t := range g.Tasks() {
		if t.Status != constants.TaskStatusRunning {
			continue
		}
		g = g.WithStatus(t.ID, constants.TaskStatusPending)
		ledger = append(cloneLedger(ledger), e.record(t, t.Attempt, cancelledSummary, "recovered interrupted run"))
		events = append(events, Event{TaskID: t.ID, Summary: fmt.Sprintf("task %q was running at last shutdown; reverted to pending", t.ID)})
	}
	return g, ledger, events
}

// record builds a ledger entry stamped with the engine clock.
func (e *Engine) record(t domain.Task, attempt int, summary, details string) domain.FailureRecord {
	return domain.FailureRecord{
		TaskID:         t.ID,
		Attempt:        attempt,
		Kind:           t.Kind,
		VerdictSummary: summary,
		Details:        details,
		Timestamp:      e.clock.Now().UTC().Format(time.RFC3339),
	}
}

func cloneLedger(ledger Ledger) Ledger {
	out := make(Ledger, len(ledger))
	copy(out, ledger)
	return out
}
