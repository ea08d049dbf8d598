package taskgraph

import (
	"fmt"
	"sort"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
)

// Validate checks raw task records against the model invariants and returns
// the normalized graph. It is a fixed point: validating the tasks of a
// validated graph returns an identical graph.
//
// The pass performs, in order:
//  1. non-empty unique IDs
//  2. parent references resolve, no self references
//  3. cycle detection (the forest property)
//  4. kind/status normalization, attempt bounds, max_attempts policy
//  5. canonical sibling ordering
//  6. test_run → test_write concern pairing
func Validate(tasks []domain.Task) (Graph, error) {
	byID := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			return Graph{}, fmt.Errorf("%w: task at position %d has an empty id", boberrors.ErrValidationFailed, i)
		}
		if _, dup := byID[t.ID]; dup {
			return Graph{}, fmt.Errorf("%w: %w: %q", boberrors.ErrValidationFailed, boberrors.ErrDuplicateTaskID, t.ID)
		}
		byID[t.ID] = i
	}

	for _, t := range tasks {
		if t.ParentID == "" {
			continue
		}
		if t.ParentID == t.ID {
			return Graph{}, fmt.Errorf("%w: task %q references itself as parent", boberrors.ErrValidationFailed, t.ID)
		}
		if _, ok := byID[t.ParentID]; !ok {
			return Graph{}, fmt.Errorf("%w: %w: task %q references parent %q", boberrors.ErrValidationFailed, boberrors.ErrDanglingParent, t.ID, t.ParentID)
		}
	}

	if cycleID := detectCycle(tasks, byID); cycleID != "" {
		return Graph{}, fmt.Errorf("%w: %w: involving task %q", boberrors.ErrValidationFailed, boberrors.ErrCycleDetected, cycleID)
	}

	normalized := make([]domain.Task, len(tasks))
	for i, t := range tasks {
		n, err := normalizeTask(t)
		if err != nil {
			return Graph{}, err
		}
		normalized[i] = n
	}

	ordered := canonicalOrder(normalized)

	if err := checkTestPairs(ordered); err != nil {
		return Graph{}, err
	}

	return newGraph(ordered), nil
}

// ValidateRaw parses a tasks.json payload and validates it in one step.
func ValidateRaw(raw []byte) (Graph, error) {
	tasks, err := ParseTasks(raw)
	if err != nil {
		return Graph{}, err
	}
	return Validate(tasks)
}

// detectCycle walks parent chains depth-first and returns the ID of a task
// on a cycle, or "" when the references form a forest.
func detectCycle(tasks []domain.Task, byID map[string]int) string {
	const (
		unseen = iota
		visiting
		done
	)
	state := make(map[string]int, len(tasks))

	for _, t := range tasks {
		id := t.ID
		if state[id] != unseen {
			continue
		}
		// Follow the parent chain, marking the path as visiting.
		var path []string
		for id != "" && state[id] == unseen {
			state[id] = visiting
			path = append(path, id)
			id = tasks[byID[id]].ParentID
		}
		if id != "" && state[id] == visiting {
			return id
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return ""
}

// normalizeTask fills defaults and enforces per-task bounds.
func normalizeTask(t domain.Task) (domain.Task, error) {
	if !t.Kind.Valid() {
		return domain.Task{}, fmt.Errorf("%w: %w: task %q has kind %q", boberrors.ErrValidationFailed, boberrors.ErrInvalidKind, t.ID, t.Kind)
	}

	if t.Status == "" {
		t.Status = constants.TaskStatusPending
	}
	if !t.Status.Valid() {
		return domain.Task{}, fmt.Errorf("%w: %w: task %q has status %q", boberrors.ErrValidationFailed, boberrors.ErrInvalidStatus, t.ID, t.Status)
	}

	if t.Attempt < 0 {
		return domain.Task{}, fmt.Errorf("%w: task %q has negative attempt count", boberrors.ErrValidationFailed, t.ID)
	}

	policy := t.Kind.MaxAttempts()
	switch {
	case t.MaxAttempts == 0:
		t.MaxAttempts = policy
	case t.MaxAttempts < 0 || t.MaxAttempts > policy:
		return domain.Task{}, taskErr(t.ID, "max_attempts %d outside policy bound %d for kind %q", t.MaxAttempts, policy, t.Kind)
	}

	if t.Attempt > t.MaxAttempts {
		return domain.Task{}, taskErr(t.ID, "attempt %d exceeds max_attempts %d", t.Attempt, t.MaxAttempts)
	}

	return t, nil
}

// taskErr builds a validation error scoped to one task.
func taskErr(id, format string, args ...any) error {
	return fmt.Errorf("%w: task %q: %s", boberrors.ErrValidationFailed, id, fmt.Sprintf(format, args...))
}

// canonicalOrder arranges the forest depth-first with the canonical sibling
// ordering: implementation, audits grouped by concern, test_writes,
// test_runs, final_audit. Ties keep the stable original order.
func canonicalOrder(tasks []domain.Task) []domain.Task {
	children := make(map[string][]int)
	for i, t := range tasks {
		children[t.ParentID] = append(children[t.ParentID], i)
	}

	for parent, idxs := range children {
		// Concern groups for audits: ordered by first appearance so the
		// ordering is a fixed point.
		concernRank := make(map[string]int)
		for _, i := range idxs {
			t := tasks[i]
			if t.Kind == constants.KindAudit {
				if _, ok := concernRank[t.Concern]; !ok {
					concernRank[t.Concern] = len(concernRank)
				}
			}
		}
		sorted := make([]int, len(idxs))
		copy(sorted, idxs)
		sort.SliceStable(sorted, func(a, b int) bool {
			ta, tb := tasks[sorted[a]], tasks[sorted[b]]
			ra, rb := ta.Kind.OrderRank(), tb.Kind.OrderRank()
			if ra != rb {
				return ra < rb
			}
			if ta.Kind == constants.KindAudit {
				return concernRank[ta.Concern] < concernRank[tb.Concern]
			}
			return false
		})
		children[parent] = sorted
	}

	out := make([]domain.Task, 0, len(tasks))
	var walk func(parentID string)
	walk = func(parentID string) {
		for _, i := range children[parentID] {
			out = append(out, tasks[i])
			walk(tasks[i].ID)
		}
	}
	walk("")
	return out
}

// checkTestPairs enforces that every test_run has a test_write sibling with
// the same concern. Canonical ordering already places test_writes before
// test_runs, so existence implies precedence.
func checkTestPairs(ordered []domain.Task) error {
	// Key: parentID + "\x00" + concern.
	writes := make(map[string]bool)
	for _, t := range ordered {
		if t.Kind == constants.KindTestWrite {
			writes[t.ParentID+"\x00"+t.Concern] = true
		}
	}
	for _, t := range ordered {
		if t.Kind != constants.KindTestRun {
			continue
		}
		if !writes[t.ParentID+"\x00"+t.Concern] {
			return fmt.Errorf("%w: %w: test_run %q (concern %q) requires a test_write sibling with the same concern",
				boberrors.ErrValidationFailed, boberrors.ErrMissingTestWrite, t.ID, t.Concern)
		}
	}
	return nil
}
