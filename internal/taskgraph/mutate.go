package taskgraph

import (
	"strings"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
)

// The split/merge operations are pure functions graph → graph used by the
// planning commands. They operate structurally: affected stage tasks are
// reset to pending with a zero attempt count, since splitting or merging a
// stage invalidates any prior verdict for it. Every mutation re-validates
// its result before returning.

// SplitAudits replaces, under each parent, a single unspecialized audit
// task with one audit per distinct concern present on its implementation
// siblings. IDs are preserved by suffixing ":<concern>".
func SplitAudits(g Graph) (Graph, error) {
	return splitStage(g, constants.KindAudit)
}

// SplitTests performs the analogous split for test_write/test_run pairs.
// Both members of the pair are split so the concern pairing rule holds on
// the result.
func SplitTests(g Graph) (Graph, error) {
	g2, err := splitStage(g, constants.KindTestWrite)
	if err != nil {
		return Graph{}, err
	}
	return splitStage(g2, constants.KindTestRun)
}

// MergeAudits collapses audits that share a parent back into one
// unspecialized audit. The merged ID is the common base of the suffixed
// IDs when present, otherwise the first audit's ID.
func MergeAudits(g Graph) (Graph, error) {
	return mergeStage(g, constants.KindAudit)
}

// MergeTests collapses per-concern test_write and test_run tasks back into
// one pair per parent.
func MergeTests(g Graph) (Graph, error) {
	g2, err := mergeStage(g, constants.KindTestWrite)
	if err != nil {
		return Graph{}, err
	}
	return mergeStage(g2, constants.KindTestRun)
}

// AddFinalAudit inserts a single final_audit task as the last root-level
// task. Adding when one already exists is a no-op.
func AddFinalAudit(g Graph) (Graph, error) {
	for _, t := range g.Roots() {
		if t.Kind == constants.KindFinalAudit {
			return g, nil
		}
	}
	tasks := g.Tasks()
	tasks = append(tasks, domain.Task{
		ID:     finalAuditID,
		Title:  "Final Audit",
		Body:   "Perform a holistic audit across all completed tasks and their outcomes.",
		Kind:   constants.KindFinalAudit,
		Status: constants.TaskStatusPending,
	})
	return Validate(tasks)
}

// RemoveFinalAudit removes all root-level final_audit tasks and their
// descendants. Removing when none exists is a no-op.
func RemoveFinalAudit(g Graph) (Graph, error) {
	doomed := make(map[string]bool)
	for _, t := range g.Roots() {
		if t.Kind == constants.KindFinalAudit {
			doomed[t.ID] = true
		}
	}
	if len(doomed) == 0 {
		return g, nil
	}
	var kept []domain.Task
	for _, t := range g.tasks {
		if doomed[t.ID] || hasDoomedAncestor(g, t, doomed) {
			continue
		}
		kept = append(kept, t)
	}
	return Validate(kept)
}

// finalAuditID is the ID used for the synthesized final_audit task.
const finalAuditID = "final-audit"

func hasDoomedAncestor(g Graph, t domain.Task, doomed map[string]bool) bool {
	for t.ParentID != "" {
		if doomed[t.ParentID] {
			return true
		}
		parent, ok := g.ByID(t.ParentID)
		if !ok {
			return false
		}
		t = parent
	}
	return false
}

// splitStage splits a single unspecialized task of the given kind under
// each parent into one per implementation-sibling concern.
func splitStage(g Graph, kind constants.TaskKind) (Graph, error) {
	var out []domain.Task
	for _, t := range g.tasks {
		if t.Kind != kind || t.Concern != "" {
			out = append(out, t)
			continue
		}
		if len(g.stageSiblings(t, kind)) != 1 {
			// Already specialized or duplicated; leave untouched.
			out = append(out, t)
			continue
		}
		concerns := g.siblingConcerns(t)
		if len(concerns) == 0 {
			out = append(out, t)
			continue
		}
		for _, concern := range concerns {
			split := t
			split.ID = t.ID + ":" + concern
			split.Concern = concern
			split.Status = constants.TaskStatusPending
			split.Attempt = 0
			split.LinkedFailureRefs = nil
			out = append(out, split)
		}
	}
	return Validate(out)
}

// mergeStage collapses per-concern tasks of the given kind under one parent
// into a single unspecialized task.
func mergeStage(g Graph, kind constants.TaskKind) (Graph, error) {
	mergedParents := make(map[string]bool)
	var out []domain.Task
	for _, t := range g.tasks {
		if t.Kind != kind {
			out = append(out, t)
			continue
		}
		group := g.stageSiblings(t, kind)
		if len(group) <= 1 {
			out = append(out, t)
			continue
		}
		key := t.ParentID
		if mergedParents[key] {
			continue
		}
		mergedParents[key] = true
		merged := group[0]
		merged.ID = mergeBaseID(group)
		merged.Concern = ""
		merged.Status = constants.TaskStatusPending
		merged.Attempt = 0
		merged.LinkedFailureRefs = nil
		out = append(out, merged)
	}
	return Validate(out)
}

// stageSiblings returns the tasks of the given kind sharing t's parent.
func (g Graph) stageSiblings(t domain.Task, kind constants.TaskKind) []domain.Task {
	var out []domain.Task
	for _, s := range g.Children(t.ParentID) {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// siblingConcerns returns the distinct non-empty concerns on t's
// implementation siblings, in order of first appearance.
func (g Graph) siblingConcerns(t domain.Task) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range g.Children(t.ParentID) {
		if s.Kind != constants.KindImplementation || s.Concern == "" {
			continue
		}
		if !seen[s.Concern] {
			seen[s.Concern] = true
			out = append(out, s.Concern)
		}
	}
	return out
}

// mergeBaseID strips the ":<concern>" suffix shared by a split family, or
// falls back to the first member's ID.
func mergeBaseID(group []domain.Task) string {
	first := group[0]
	if first.Concern == "" {
		return first.ID
	}
	base, found := strings.CutSuffix(first.ID, ":"+first.Concern)
	if !found {
		return first.ID
	}
	for _, t := range group[1:] {
		if t.Concern == "" || !strings.HasSuffix(t.ID, ":"+t.Concern) || !strings.HasPrefix(t.ID, base) {
			return first.ID
		}
	}
	return base
}
