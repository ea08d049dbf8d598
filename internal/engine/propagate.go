package engine

import (
	"fmt"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	"github.com/dioko-ai/bob/internal/taskgraph"
)

// Ledger marker summaries for non-verdict entries.
const (
	cancelledSummary = "cancelled"
	skippedPrefix    = "skipped_due_to="
	failedViaPrefix  = "failed_due_to="
)

// propagateFailure applies the failure-propagation rules after a task
// exhausts its retries:
//
//   - implementation failed: all sibling audit/test/final-audit tasks (and
//     the implementation's own descendants) become skipped, each with a
//     ledger entry naming the source.
//   - audit, test_write or test_run exhausted: the owning implementation is
//     marked failed and implementation propagation continues.
//   - final_audit exhausted: terminal for the session; no further spread.
func (e *Engine) propagateFailure(g taskgraph.Graph, ledger Ledger, taskID string) (taskgraph.Graph, Ledger, []Event) {
	t, ok := g.ByID(taskID)
	if !ok {
		return g, ledger, nil
	}

	switch t.Kind {
	case constants.KindImplementation:
		return e.skipDependents(g, ledger, t)
	case constants.KindAudit, constants.KindTestWrite, constants.KindTestRun:
		impl, found := owningImplementation(g, t)
		if !found {
			// No owning implementation (free-standing stage); nothing to spread to.
			return g, ledger, nil
		}
		var events []Event
		if impl.Status != constants.TaskStatusFailed {
			g = g.WithStatus(impl.ID, constants.TaskStatusFailed)
			ledger = append(ledger, e.record(impl, impl.Attempt, failedViaPrefix+t.ID, ""))
			events = append(events, Event{TaskID: impl.ID, Summary: fmt.Sprintf("implementation %q failed because %s %q exhausted retries", impl.ID, t.Kind, t.ID)})
		}
		g2, ledger2, more := e.skipDependents(g, ledger, impl)
		return g2, ledger2, append(events, more...)
	case constants.KindFinalAudit:
		return g, ledger, []Event{{TaskID: t.ID, Summary: fmt.Sprintf("final audit %q exhausted retries; session failed", t.ID)}}
	default:
		return g, ledger, nil
	}
}

// skipDependents marks the failed implementation's dependents skipped: its
// own unfinished descendants, and its unfinished sibling audit/test/final
// audit tasks with their descendants.
func (e *Engine) skipDependents(g taskgraph.Graph, ledger Ledger, impl domain.Task) (taskgraph.Graph, Ledger, []Event) {
	var events []Event

	skipSubtree := func(root domain.Task) {
		for _, victim := range collectSubtree(g, root) {
			v, _ := g.ByID(victim.ID)
			if v.Status != constants.TaskStatusPending && v.Status != constants.TaskStatusRunning {
				continue
			}
			g = g.WithStatus(v.ID, constants.TaskStatusSkipped)
			ledger = append(ledger, e.record(v, v.Attempt, skippedPrefix+impl.ID, ""))
			events = append(events, Event{TaskID: v.ID, Summary: fmt.Sprintf("task %q skipped due to %q", v.ID, impl.ID)})
		}
	}

	for _, child := range g.Children(impl.ID) {
		skipSubtree(child)
	}
	for _, sib := range g.Children(impl.ParentID) {
		if sib.ID == impl.ID || sib.Kind == constants.KindImplementation {
			continue
		}
		skipSubtree(sib)
	}

	return g, ledger, events
}

// collectSubtree returns root and all its descendants in canonical order.
func collectSubtree(g taskgraph.Graph, root domain.Task) []domain.Task {
	out := []domain.Task{root}
	for _, child := range g.Children(root.ID) {
		out = append(out, collectSubtree(g, child)...)
	}
	return out
}

// owningImplementation resolves the implementation a stage task belongs to:
// the parent when the stage is nested under an implementation, otherwise an
// implementation sibling, preferring a matching concern.
func owningImplementation(g taskgraph.Graph, t domain.Task) (domain.Task, bool) {
	if t.ParentID != "" {
		if parent, ok := g.ByID(t.ParentID); ok && parent.Kind == constants.KindImplementation {
			return parent, true
		}
	}
	var fallback domain.Task
	var found bool
	for _, sib := range g.Children(t.ParentID) {
		if sib.Kind != constants.KindImplementation {
			continue
		}
		if sib.Concern == t.Concern {
			return sib, true
		}
		if !found {
			fallback = sib
			found = true
		}
	}
	return fallback, found
}
