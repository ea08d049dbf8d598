package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
)

func TestParseAuditResult(t *testing.T) {
	tests := []struct {
		name      string
		lines     []string
		wantPass  bool
		wantFound bool
	}{
		{"explicit pass", []string{"AUDIT_RESULT: PASS", "looks good"}, true, true},
		{"explicit fail", []string{"AUDIT_RESULT: FAIL", "missing tests"}, false, true},
		{"case insensitive", []string{"audit_result: pass"}, true, true},
		{"leading blank lines", []string{"", "  ", "AUDIT_RESULT: PASS"}, true, true},
		{"no token", []string{"all fine I suppose"}, false, false},
		{"token not on its own line", []string{"result was AUDIT_RESULT: PASS maybe"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass, found := ParseAuditResult(tt.lines)
			assert.Equal(t, tt.wantPass, pass)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestExtractChangedFiles(t *testing.T) {
	lines := []string{
		"did some work",
		"FILES_CHANGED_BEGIN",
		"- internal/auth/token.go: fixed refresh",
		"   ",
		"- internal/auth/token_test.go: added regression test",
		"FILES_CHANGED_END",
		"done",
	}
	got := ExtractChangedFiles(lines)
	assert.Equal(t, "- internal/auth/token.go: fixed refresh\n- internal/auth/token_test.go: added regression test", got)
}

func TestExtractChangedFiles_MissingBlock(t *testing.T) {
	assert.Empty(t, ExtractChangedFiles([]string{"no block here"}))
	assert.Empty(t, ExtractChangedFiles([]string{"FILES_CHANGED_BEGIN", "- a.go: x"}))
}

func TestVerdictFor_AuditRequiresExplicitToken(t *testing.T) {
	v := verdictFor(constants.KindAudit, []string{"AUDIT_RESULT: PASS"}, true)
	assert.True(t, v.Pass)

	v = verdictFor(constants.KindAudit, []string{"AUDIT_RESULT: FAIL", "bad"}, true)
	assert.False(t, v.Pass)
	assert.Contains(t, v.Summary, "FAIL")

	v = verdictFor(constants.KindAudit, []string{"looks fine"}, true)
	assert.False(t, v.Pass)
	assert.Contains(t, v.Summary, "explicit")
}

func TestVerdictFor_NonAuditPassesOnCleanExit(t *testing.T) {
	v := verdictFor(constants.KindImplementation, []string{"done"}, true)
	assert.True(t, v.Pass)

	v = verdictFor(constants.KindImplementation, []string{"boom"}, false)
	assert.False(t, v.Pass)
	assert.Equal(t, "boom", v.Summary)
}

func TestLookupBackend(t *testing.T) {
	b, err := LookupBackend("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBackendName, b.Name)

	b, err = LookupBackend("Claude")
	require.NoError(t, err)
	assert.Equal(t, "claude", b.Name)

	_, err = LookupBackend("mystery")
	require.ErrorIs(t, err, boberrors.ErrInvalidBackend)
}

func TestTestCommandRunner_SkipsWithoutCommand(t *testing.T) {
	runner := NewTestCommandRunner()
	v, err := runner.Run(context.Background(), constants.KindTestRun, "", RunContext{})
	require.NoError(t, err)
	assert.True(t, v.Pass)
	require.NotEmpty(t, runner.Transcript())
	assert.Contains(t, runner.Transcript()[0], "skipped")
}

func TestTestCommandRunner_RunsCommand(t *testing.T) {
	runner := NewTestCommandRunner()
	rc := RunContext{Cwd: t.TempDir(), TestCommand: "printf 'runner-out\\n'; exit 0"}

	v, err := runner.Run(context.Background(), constants.KindTestRun, "", rc)
	require.NoError(t, err)
	assert.True(t, v.Pass)
	assert.Contains(t, runner.Transcript(), "runner-out")
}

func TestTestCommandRunner_FailureCapturesOutput(t *testing.T) {
	runner := NewTestCommandRunner()
	rc := RunContext{Cwd: t.TempDir(), TestCommand: "printf 'case failed\\n' 1>&2; exit 3"}

	v, err := runner.Run(context.Background(), constants.KindTestRun, "", rc)
	require.NoError(t, err)
	assert.False(t, v.Pass)
	assert.Contains(t, v.Summary, "code 3")
	assert.Contains(t, v.Details, "case failed")
}

func TestStubRunner_ReplaysVerdictsInOrder(t *testing.T) {
	stub := NewStubRunner(domain.PassVerdict(), domain.FailVerdict("x", ""))

	v, err := stub.Run(context.Background(), constants.KindImplementation, "p1", RunContext{})
	require.NoError(t, err)
	assert.True(t, v.Pass)

	v, err = stub.Run(context.Background(), constants.KindAudit, "p2", RunContext{})
	require.NoError(t, err)
	assert.False(t, v.Pass)

	_, err = stub.Run(context.Background(), constants.KindAudit, "p3", RunContext{})
	require.ErrorIs(t, err, boberrors.ErrAgentFailed)

	require.Len(t, stub.Calls, 3)
	assert.Equal(t, "p1", stub.Calls[0].Prompt)
}
