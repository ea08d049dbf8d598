package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dioko-ai/bob/internal/agent"
	"github.com/dioko-ai/bob/internal/clock"
	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
	"github.com/dioko-ai/bob/internal/session"
	"github.com/dioko-ai/bob/internal/testutil"
)

func newTestService(runner agent.Runner) *Service {
	return New(Options{
		Clock:       clock.Fixed{T: time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)},
		Logger:      zerolog.Nop(),
		AgentRunner: runner,
		TestRunner:  runner,
	})
}

func newTestState(t *testing.T, svc *Service, tasks []domain.Task) *State {
	t.Helper()
	store, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	h, err := store.Init(context.Background(), session.InitOptions{Cwd: t.TempDir(), Title: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	require.NoError(t, h.WriteTasks(tasks))
	st, err := svc.Load(h)
	require.NoError(t, err)
	return st
}

func implAuditTasks() []domain.Task {
	return testutil.Tasks(
		testutil.TaskSpec{ID: "T1", Kind: constants.KindImplementation},
		testutil.TaskSpec{ID: "T2", Parent: "T1", Kind: constants.KindAudit},
	)
}

func TestAdvance_RunsEarliestEligibleTaskAndPersists(t *testing.T) {
	runner := agent.NewStubRunner(domain.PassVerdict())
	svc := newTestService(runner)
	st := newTestState(t, svc, implAuditTasks())

	action, err := svc.Advance(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionRunTask, action.Type)
	assert.Equal(t, "T1", action.TaskID)

	// The verdict and the resulting graph are on disk.
	raw, err := st.Handle.ReadTasksRaw()
	require.NoError(t, err)
	var persisted []domain.Task
	require.NoError(t, json.Unmarshal(raw, &persisted))
	var t1 domain.Task
	for _, task := range persisted {
		if task.ID == "T1" {
			t1 = task
		}
	}
	assert.Equal(t, constants.TaskStatusPassed, t1.Status)
	assert.Equal(t, 1, t1.Attempt)
}

func TestRunToCompletion_AuditRetryThenPass(t *testing.T) {
	runner := agent.NewStubRunner(
		domain.PassVerdict(),                         // T1
		domain.FailVerdict("missing docstrings", ""), // T2 attempt 1
		domain.PassVerdict(),                         // T2 attempt 2
	)
	svc := newTestService(runner)
	st := newTestState(t, svc, implAuditTasks())

	final, err := svc.RunToCompletion(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionDone, final.Type)
	assert.False(t, final.OverallFailed)

	t2, _ := st.Graph.ByID("T2")
	assert.Equal(t, constants.TaskStatusPassed, t2.Status)
	assert.Equal(t, 2, t2.Attempt)

	fails, err := st.Handle.ReadTaskFails()
	require.NoError(t, err)
	require.Len(t, fails, 1)
	assert.Equal(t, "T2", fails[0].TaskID)
	assert.Equal(t, "missing docstrings", fails[0].VerdictSummary)
}

func TestRunToCompletion_AuditExhaustionPropagates(t *testing.T) {
	verdicts := []domain.Verdict{domain.PassVerdict()}
	for i := 0; i < 4; i++ {
		verdicts = append(verdicts, domain.FailVerdict("still broken", ""))
	}
	runner := agent.NewStubRunner(verdicts...)
	svc := newTestService(runner)
	st := newTestState(t, svc, implAuditTasks())

	final, err := svc.RunToCompletion(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionDone, final.Type)
	assert.True(t, final.OverallFailed)

	t1, _ := st.Graph.ByID("T1")
	t2, _ := st.Graph.ByID("T2")
	assert.Equal(t, constants.TaskStatusFailed, t1.Status)
	assert.Equal(t, constants.TaskStatusFailed, t2.Status)
	assert.Equal(t, 4, t2.Attempt)

	fails, err := st.Handle.ReadTaskFails()
	require.NoError(t, err)
	var t2Fails int
	for _, rec := range fails {
		if rec.TaskID == "T2" {
			t2Fails++
		}
	}
	assert.Equal(t, 4, t2Fails)
}

func TestAdvance_RecoverInterruptedRunBeforeScheduling(t *testing.T) {
	runner := agent.NewStubRunner(domain.PassVerdict())
	svc := newTestService(runner)

	tasks := implAuditTasks()
	tasks[0].Status = constants.TaskStatusRunning
	st := newTestState(t, svc, tasks)

	action, err := svc.Advance(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionRunTask, action.Type)
	assert.Equal(t, "T1", action.TaskID, "recovered task is rescheduled first")

	fails, err := st.Handle.ReadTaskFails()
	require.NoError(t, err)
	require.NotEmpty(t, fails)
	assert.Equal(t, "cancelled", fails[0].VerdictSummary)
}

func TestAdvance_RunnerErrorRevertsClaim(t *testing.T) {
	// A stub with no verdicts errors on first use.
	runner := agent.NewStubRunner()
	svc := newTestService(runner)
	st := newTestState(t, svc, implAuditTasks())

	_, err := svc.Advance(context.Background(), st)
	require.ErrorIs(t, err, boberrors.ErrAgentFailed)

	t1, _ := st.Graph.ByID("T1")
	assert.Equal(t, constants.TaskStatusPending, t1.Status)
	assert.Equal(t, 0, t1.Attempt, "failed spawn must not consume an attempt")
}

func TestAdvance_UsesTestRunnerForTestRunTasks(t *testing.T) {
	agentRunner := agent.NewStubRunner(domain.PassVerdict())
	testRunner := agent.NewStubRunner(domain.PassVerdict())
	svc := New(Options{
		Logger:      zerolog.Nop(),
		AgentRunner: agentRunner,
		TestRunner:  testRunner,
	})
	st := newTestState(t, svc, testutil.Tasks(
		testutil.TaskSpec{ID: "W", Kind: constants.KindTestWrite, Concern: "c"},
		testutil.TaskSpec{ID: "R", Kind: constants.KindTestRun, Concern: "c"},
	))

	final, err := svc.RunToCompletion(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionDone, final.Type)

	require.Len(t, agentRunner.Calls, 1)
	assert.Equal(t, constants.KindTestWrite, agentRunner.Calls[0].Role)
	require.Len(t, testRunner.Calls, 1)
	assert.Equal(t, constants.KindTestRun, testRunner.Calls[0].Role)
}

func TestAdvance_RetryPromptCarriesPriorFailure(t *testing.T) {
	runner := agent.NewStubRunner(
		domain.PassVerdict(),
		domain.FailVerdict("missing docstrings", ""),
		domain.PassVerdict(),
	)
	svc := newTestService(runner)
	st := newTestState(t, svc, implAuditTasks())

	_, err := svc.RunToCompletion(context.Background(), st)
	require.NoError(t, err)

	require.Len(t, runner.Calls, 3)
	assert.Contains(t, runner.Calls[2].Prompt, "missing docstrings",
		"retry prompt must expose the prior verdict summary")
}

func TestApplyCommand_RefusedWhileRunning(t *testing.T) {
	svc := newTestService(agent.NewStubRunner())
	tasks := implAuditTasks()
	tasks[0].Status = constants.TaskStatusRunning
	st := newTestState(t, svc, tasks)

	err := svc.ApplyCommand(st, CommandAddFinalAudit)
	require.ErrorIs(t, err, boberrors.ErrExecutionBusy)
}

func TestApplyCommand_AddFinalAuditPersists(t *testing.T) {
	svc := newTestService(agent.NewStubRunner())
	st := newTestState(t, svc, implAuditTasks())

	require.NoError(t, svc.ApplyCommand(st, CommandAddFinalAudit))

	raw, err := st.Handle.ReadTasksRaw()
	require.NoError(t, err)
	var persisted []domain.Task
	require.NoError(t, json.Unmarshal(raw, &persisted))
	require.Len(t, persisted, 3)
	assert.Equal(t, constants.KindFinalAudit, persisted[len(persisted)-1].Kind)
}

func TestApplyCommand_UnknownCommandIsInvalidRequest(t *testing.T) {
	svc := newTestService(agent.NewStubRunner())
	st := newTestState(t, svc, implAuditTasks())

	err := svc.ApplyCommand(st, GraphCommand("reticulate-splines"))
	require.ErrorIs(t, err, boberrors.ErrInvalidRequest)
}

func TestPrepareMasterPrompt_IncludesTreeAndMessage(t *testing.T) {
	svc := newTestService(agent.NewStubRunner())
	st := newTestState(t, svc, implAuditTasks())

	text := svc.PrepareMasterPrompt(st, "please add caching")
	assert.Contains(t, text, "please add caching")
	assert.Contains(t, text, "Task T1")
	assert.Contains(t, text, constants.TasksFileName)
}

func TestPreparePlannerPrompt_IncludesPlanAndPaths(t *testing.T) {
	svc := newTestService(agent.NewStubRunner())
	st := newTestState(t, svc, implAuditTasks())

	text := svc.PreparePlannerPrompt(st, "", "# The plan", "# Project info")
	assert.Contains(t, text, "# The plan")
	assert.Contains(t, text, constants.PlannerFileName)
	assert.Contains(t, text, constants.TasksFileName)
}

func TestRollingContext_PersistedAndBounded(t *testing.T) {
	runner := agent.NewStubRunner(domain.PassVerdict(), domain.PassVerdict())
	svc := New(Options{
		Logger:            zerolog.Nop(),
		AgentRunner:       runner,
		TestRunner:        runner,
		RollingContextCap: 1,
	})
	st := newTestState(t, svc, implAuditTasks())

	_, err := svc.RunToCompletion(context.Background(), st)
	require.NoError(t, err)

	entries, err := st.Handle.ReadRollingContext()
	require.NoError(t, err)
	require.Len(t, entries, 1, "cap of 1 keeps only the newest entry")
	assert.Equal(t, "T2", entries[0].TaskID)
}
