// Package taskgraph implements the task graph model: parsing, validation,
// normalization, the pure split/merge mutations, and the right-pane
// projection. The graph is a forest held in canonical order; all mutation
// helpers return new graph values and never share backing storage with
// their input.
package taskgraph

import (
	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
)

// Graph is a validated task forest. Tasks are stored flat in canonical
// order: depth-first over the forest, siblings ordered implementation →
// audits (grouped by concern) → test_writes → test_runs → final_audit,
// ties broken by stable original order.
//
// A Graph produced by Validate satisfies all model invariants: unique IDs,
// resolving parents, acyclicity, per-kind attempt bounds, and the
// test_run/test_write pairing rule.
type Graph struct {
	tasks []domain.Task
	index map[string]int
}

// Tasks returns a copy of the tasks in canonical order.
func (g Graph) Tasks() []domain.Task {
	out := make([]domain.Task, len(g.tasks))
	copy(out, g.tasks)
	return out
}

// Len returns the number of tasks in the graph.
func (g Graph) Len() int {
	return len(g.tasks)
}

// ByID returns the task with the given ID and whether it exists.
func (g Graph) ByID(id string) (domain.Task, bool) {
	i, ok := g.index[id]
	if !ok {
		return domain.Task{}, false
	}
	return g.tasks[i], true
}

// Children returns the direct children of parentID in canonical order.
// An empty parentID returns the root tasks.
func (g Graph) Children(parentID string) []domain.Task {
	var out []domain.Task
	for _, t := range g.tasks {
		if t.ParentID == parentID {
			out = append(out, t)
		}
	}
	return out
}

// Roots returns the root tasks in canonical order.
func (g Graph) Roots() []domain.Task {
	return g.Children("")
}

// Siblings returns the tasks sharing a parent with the given task,
// including the task itself, in canonical order.
func (g Graph) Siblings(id string) []domain.Task {
	t, ok := g.ByID(id)
	if !ok {
		return nil
	}
	return g.Children(t.ParentID)
}

// Depth returns the number of ancestors of the task, or 0 when the ID is
// unknown. Validated graphs are acyclic, so the walk terminates.
func (g Graph) Depth(id string) int {
	depth := 0
	t, ok := g.ByID(id)
	for ok && t.ParentID != "" {
		depth++
		t, ok = g.ByID(t.ParentID)
	}
	return depth
}

// WithStatus returns a copy of the graph with one task's status replaced.
func (g Graph) WithStatus(id string, status constants.TaskStatus) Graph {
	return g.Mutate(id, func(t *domain.Task) { t.Status = status })
}

// Mutate returns a copy of the graph with fn applied to the task with the
// given ID. Unknown IDs return the graph unchanged. The callback must not
// change the task's ID or parent; structural edits go through Validate.
func (g Graph) Mutate(id string, fn func(*domain.Task)) Graph {
	i, ok := g.index[id]
	if !ok {
		return g
	}
	tasks := make([]domain.Task, len(g.tasks))
	copy(tasks, g.tasks)
	fn(&tasks[i])
	return newGraph(tasks)
}

// newGraph builds a Graph around tasks assumed to already be in canonical
// order with unique IDs.
func newGraph(tasks []domain.Task) Graph {
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
	}
	return Graph{tasks: tasks, index: index}
}
