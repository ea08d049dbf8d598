package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
	"github.com/dioko-ai/bob/internal/testutil"
)

func TestValidate_NormalizesDefaults(t *testing.T) {
	g, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "impl", Kind: constants.KindImplementation},
	))
	require.NoError(t, err)

	task, ok := g.ByID("impl")
	require.True(t, ok)
	assert.Equal(t, constants.TaskStatusPending, task.Status)
	assert.Equal(t, 0, task.Attempt)
	assert.Equal(t, 1, task.MaxAttempts)
}

func TestValidate_MaxAttemptsPolicyTable(t *testing.T) {
	tests := []struct {
		kind constants.TaskKind
		want int
	}{
		{constants.KindImplementation, 1},
		{constants.KindAudit, 4},
		{constants.KindTestWrite, 1},
		{constants.KindTestRun, 5},
		{constants.KindFinalAudit, 4},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.MaxAttempts())
		})
	}
}

func TestValidate_RejectsDuplicateIDs(t *testing.T) {
	_, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "a", Kind: constants.KindImplementation},
		testutil.TaskSpec{ID: "a", Kind: constants.KindAudit},
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, boberrors.ErrValidationFailed)
	assert.ErrorIs(t, err, boberrors.ErrDuplicateTaskID)
}

func TestValidate_RejectsEmptyID(t *testing.T) {
	_, err := Validate([]domain.Task{{Kind: constants.KindImplementation}})
	require.ErrorIs(t, err, boberrors.ErrValidationFailed)
}

func TestValidate_RejectsDanglingParent(t *testing.T) {
	_, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "a", Parent: "ghost", Kind: constants.KindImplementation},
	))
	require.ErrorIs(t, err, boberrors.ErrDanglingParent)
}

func TestValidate_RejectsSelfParent(t *testing.T) {
	_, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "a", Parent: "a", Kind: constants.KindImplementation},
	))
	require.ErrorIs(t, err, boberrors.ErrValidationFailed)
}

func TestValidate_DetectsTwoNodeCycle(t *testing.T) {
	_, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "A", Parent: "B", Kind: constants.KindImplementation},
		testutil.TaskSpec{ID: "B", Parent: "A", Kind: constants.KindAudit},
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, boberrors.ErrValidationFailed)
	assert.ErrorIs(t, err, boberrors.ErrCycleDetected)
}

func TestValidate_DetectsLongerCycleBelowRoot(t *testing.T) {
	_, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "root", Kind: constants.KindImplementation},
		testutil.TaskSpec{ID: "a", Parent: "c", Kind: constants.KindAudit},
		testutil.TaskSpec{ID: "b", Parent: "a", Kind: constants.KindAudit},
		testutil.TaskSpec{ID: "c", Parent: "b", Kind: constants.KindAudit},
	))
	require.ErrorIs(t, err, boberrors.ErrCycleDetected)
}

func TestValidate_TestRunRequiresMatchingTestWrite(t *testing.T) {
	_, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "R", Kind: constants.KindTestRun, Concern: "c1"},
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, boberrors.ErrValidationFailed)
	assert.ErrorIs(t, err, boberrors.ErrMissingTestWrite)
	assert.Contains(t, err.Error(), "test_write")
}

func TestValidate_TestRunConcernMismatchFails(t *testing.T) {
	_, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "W", Kind: constants.KindTestWrite, Concern: "c1"},
		testutil.TaskSpec{ID: "R", Kind: constants.KindTestRun, Concern: "c2"},
	))
	require.ErrorIs(t, err, boberrors.ErrMissingTestWrite)
}

func TestValidate_CanonicalSiblingOrder(t *testing.T) {
	g, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "final", Kind: constants.KindFinalAudit},
		testutil.TaskSpec{ID: "run", Kind: constants.KindTestRun, Concern: "c"},
		testutil.TaskSpec{ID: "write", Kind: constants.KindTestWrite, Concern: "c"},
		testutil.TaskSpec{ID: "audit", Kind: constants.KindAudit},
		testutil.TaskSpec{ID: "impl", Kind: constants.KindImplementation},
	))
	require.NoError(t, err)

	ids := make([]string, 0, g.Len())
	for _, task := range g.Tasks() {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"impl", "audit", "write", "run", "final"}, ids)
}

func TestValidate_AuditsGroupByConcernStable(t *testing.T) {
	g, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "a-sec-1", Kind: constants.KindAudit, Concern: "security"},
		testutil.TaskSpec{ID: "a-perf", Kind: constants.KindAudit, Concern: "perf"},
		testutil.TaskSpec{ID: "a-sec-2", Kind: constants.KindAudit, Concern: "security"},
		testutil.TaskSpec{ID: "impl", Kind: constants.KindImplementation},
	))
	require.NoError(t, err)

	ids := make([]string, 0, g.Len())
	for _, task := range g.Tasks() {
		ids = append(ids, task.ID)
	}
	// Concern groups keep first-appearance order; ties keep original order.
	assert.Equal(t, []string{"impl", "a-sec-1", "a-sec-2", "a-perf"}, ids)
}

func TestValidate_IsFixedPoint(t *testing.T) {
	g, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "t1", Kind: constants.KindImplementation, Concern: "core"},
		testutil.TaskSpec{ID: "t1-audit", Parent: "t1", Kind: constants.KindAudit},
		testutil.TaskSpec{ID: "w", Kind: constants.KindTestWrite, Concern: "core"},
		testutil.TaskSpec{ID: "r", Kind: constants.KindTestRun, Concern: "core"},
		testutil.TaskSpec{ID: "fin", Kind: constants.KindFinalAudit},
	))
	require.NoError(t, err)

	again, err := Validate(g.Tasks())
	require.NoError(t, err)
	assert.Equal(t, g.Tasks(), again.Tasks())
}

func TestValidate_UniqueIDsProperty(t *testing.T) {
	g, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "a", Kind: constants.KindImplementation},
		testutil.TaskSpec{ID: "b", Parent: "a", Kind: constants.KindAudit},
		testutil.TaskSpec{ID: "c", Kind: constants.KindImplementation},
	))
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, task := range g.Tasks() {
		assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
		seen[task.ID] = true
	}
	assert.Len(t, seen, g.Len())
}

func TestValidate_RejectsAttemptOverMax(t *testing.T) {
	tasks := testutil.Tasks(testutil.TaskSpec{ID: "a", Kind: constants.KindImplementation, Attempt: 2})
	_, err := Validate(tasks)
	require.ErrorIs(t, err, boberrors.ErrValidationFailed)
}

func TestValidate_RejectsMaxAttemptsOverPolicy(t *testing.T) {
	tasks := testutil.Tasks(testutil.TaskSpec{ID: "a", Kind: constants.KindAudit})
	tasks[0].MaxAttempts = 10
	_, err := Validate(tasks)
	require.ErrorIs(t, err, boberrors.ErrValidationFailed)
}

func TestValidate_AllowsMaxAttemptsWithinPolicy(t *testing.T) {
	tasks := testutil.Tasks(testutil.TaskSpec{ID: "a", Kind: constants.KindAudit})
	tasks[0].MaxAttempts = 2
	g, err := Validate(tasks)
	require.NoError(t, err)
	task, _ := g.ByID("a")
	assert.Equal(t, 2, task.MaxAttempts)
}

func TestValidate_RejectsUnknownKindAndStatus(t *testing.T) {
	_, err := Validate([]domain.Task{{ID: "a", Kind: "mystery"}})
	require.ErrorIs(t, err, boberrors.ErrInvalidKind)

	_, err = Validate([]domain.Task{{ID: "a", Kind: constants.KindAudit, Status: "limbo"}})
	require.ErrorIs(t, err, boberrors.ErrInvalidStatus)
}

func TestParseTasks_AcceptsNumericIDsAndLegacyDocs(t *testing.T) {
	raw := []byte(`[
		{"id": 1, "title": "Task", "kind": "implementation", "parent_id": null,
		 "docs": "guides/a.md, guides/b.md"}
	]`)
	tasks, err := ParseTasks(raw)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "1", tasks[0].ID)
	require.Len(t, tasks[0].Docs, 2)
	assert.Equal(t, "guides/a.md", tasks[0].Docs[0].Title)
}

func TestParseTasks_AcceptsStructuredDocs(t *testing.T) {
	raw := []byte(`[
		{"id": "a", "title": "Task", "kind": "implementation",
		 "docs": [{"title": "API docs", "url": "https://example.com", "summary": "endpoints"}]}
	]`)
	tasks, err := ParseTasks(raw)
	require.NoError(t, err)
	require.Len(t, tasks[0].Docs, 1)
	assert.Equal(t, "API docs", tasks[0].Docs[0].Title)
}

func TestValidateRaw_MalformedJSONIsValidationFailure(t *testing.T) {
	_, err := ValidateRaw([]byte(`{"not": "a list"`))
	require.ErrorIs(t, err, boberrors.ErrValidationFailed)
}

func TestGraph_ChildrenAndDepth(t *testing.T) {
	g, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "t", Kind: constants.KindImplementation},
		testutil.TaskSpec{ID: "a", Parent: "t", Kind: constants.KindAudit},
	))
	require.NoError(t, err)

	children := g.Children("t")
	require.Len(t, children, 1)
	assert.Equal(t, "a", children[0].ID)
	assert.Equal(t, 0, g.Depth("t"))
	assert.Equal(t, 1, g.Depth("a"))
}
