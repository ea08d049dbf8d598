package taskgraph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	"github.com/dioko-ai/bob/internal/testutil"
)

func TestRightPaneView_EmptyGraph(t *testing.T) {
	view := RightPaneView(Graph{}, 40)
	assert.Equal(t, []string{"Task Tree", "  (no tasks queued)"}, view.Lines)
	assert.Empty(t, view.Toggles)
}

func TestRightPaneView_OutlineSnapshot(t *testing.T) {
	g, err := Validate([]domain.Task{
		{ID: "t1", Title: "Ship feature", Kind: constants.KindImplementation, Status: constants.TaskStatusPassed},
		{ID: "t1-audit", ParentID: "t1", Title: "Audit feature", Kind: constants.KindAudit, Status: constants.TaskStatusRunning},
		{ID: "fin", Title: "Wrap up", Kind: constants.KindFinalAudit},
	})
	require.NoError(t, err)

	view := RightPaneView(g, 60)
	assert.Equal(t, []string{
		"Task Tree",
		"  [x] Impl: Ship feature",
		"    [~] Audit: Audit feature",
		"  [ ] FinalAudit: Wrap up",
	}, view.Lines)
}

func TestRightPaneView_DeterministicForSameInput(t *testing.T) {
	g, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "a", Kind: constants.KindImplementation},
		testutil.TaskSpec{ID: "b", Parent: "a", Kind: constants.KindAudit, Concern: "sec"},
	))
	require.NoError(t, err)

	first := RightPaneView(g, 44)
	second := RightPaneView(g, 44)
	assert.Equal(t, first, second)
}

func TestRightPaneView_WrapsToWidth(t *testing.T) {
	g, err := Validate([]domain.Task{{
		ID:    "long",
		Title: "a very long task title that certainly cannot fit on one narrow line",
		Kind:  constants.KindImplementation,
		Body:  "body text that should wrap as well across several lines of output",
	}})
	require.NoError(t, err)

	const width = 28
	view := RightPaneView(g, width)
	require.Greater(t, len(view.Lines), 3)
	for _, line := range view.Lines {
		assert.LessOrEqual(t, len([]rune(line)), width, "line over width: %q", line)
	}
}

func TestRightPaneView_StatusIcons(t *testing.T) {
	tests := []struct {
		status constants.TaskStatus
		icon   string
	}{
		{constants.TaskStatusPending, "[ ]"},
		{constants.TaskStatusRunning, "[~]"},
		{constants.TaskStatusPassed, "[x]"},
		{constants.TaskStatusFailed, "[!]"},
		{constants.TaskStatusSkipped, "[s]"},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			g, err := Validate([]domain.Task{{
				ID: "t", Title: "T", Kind: constants.KindImplementation,
				Status: tt.status, Attempt: statusAttempt(tt.status),
			}})
			require.NoError(t, err)
			view := RightPaneView(g, 60)
			assert.Contains(t, view.Lines[1], tt.icon)
		})
	}
}

// statusAttempt keeps attempt within bounds for terminal statuses.
func statusAttempt(s constants.TaskStatus) int {
	if s == constants.TaskStatusPassed || s == constants.TaskStatusFailed {
		return 1
	}
	return 0
}

func TestRightPaneView_TogglesPointAtHeaderLines(t *testing.T) {
	g, err := Validate(testutil.Tasks(
		testutil.TaskSpec{ID: "a", Kind: constants.KindImplementation},
		testutil.TaskSpec{ID: "b", Parent: "a", Kind: constants.KindAudit},
	))
	require.NoError(t, err)

	view := RightPaneView(g, 60)
	require.Len(t, view.Toggles, 2)
	for _, toggle := range view.Toggles {
		line := view.Lines[toggle.LineIndex]
		assert.True(t, strings.Contains(line, "Task "+toggle.TaskKey),
			"toggle %q should anchor its header line %q", toggle.TaskKey, line)
	}
}

func TestWrapWords_HardSplitsOverWideWords(t *testing.T) {
	segments := wrapWords("abcdefghij", 4)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, segments)
}

func TestWrapWords_EmptyTextYieldsOneEmptySegment(t *testing.T) {
	assert.Equal(t, []string{""}, wrapWords("", 10))
}
