package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dioko-ai/bob/internal/clock"
	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "sessions"), clock.RealClock{})
	require.NoError(t, err)
	return store
}

func initSession(t *testing.T, store *Store) *Handle {
	t.Helper()
	h, err := store.Init(context.Background(), InitOptions{
		Cwd:   t.TempDir(),
		Title: "test session",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestInit_CreatesDefaultArtifacts(t *testing.T) {
	store := newTestStore(t)
	h := initSession(t, store)

	for _, name := range []string{
		constants.TasksFileName,
		constants.PlannerFileName,
		constants.RollingContextFileName,
		constants.TaskFailsFileName,
		constants.ProjectInfoFileName,
		constants.SessionMetaFileName,
		constants.LockFileName,
	} {
		_, err := os.Stat(filepath.Join(h.Dir(), name))
		assert.NoError(t, err, "expected artifact %s", name)
	}

	meta, err := h.ReadMeta()
	require.NoError(t, err)
	assert.Equal(t, h.SessionID(), meta.SessionID)
	assert.Equal(t, "test session", meta.Title)
	assert.Equal(t, constants.SessionMetaSchemaVersion, meta.SchemaVersion)
}

func TestInit_RequiresAbsoluteCwd(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Init(context.Background(), InitOptions{Cwd: "relative/path"})
	require.Error(t, err)

	_, err = store.Init(context.Background(), InitOptions{})
	require.ErrorIs(t, err, boberrors.ErrEmptyValue)
}

func TestOpen_MissingDirectoryIsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Open(context.Background(), "no-such-session")
	require.ErrorIs(t, err, boberrors.ErrSessionNotFound)
}

func TestOpen_RecreatesMissingOptionalArtifacts(t *testing.T) {
	store := newTestStore(t)
	h := initSession(t, store)
	dir := h.Dir()

	require.NoError(t, os.Remove(filepath.Join(dir, constants.RollingContextFileName)))
	require.NoError(t, h.Close())

	reopened, err := store.Open(context.Background(), dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	entries, err := reopened.ReadRollingContext()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpen_SecondHandleIsRefusedWhileLocked(t *testing.T) {
	store := newTestStore(t)
	h := initSession(t, store)

	_, err := store.Open(context.Background(), h.Dir())
	require.ErrorIs(t, err, boberrors.ErrLockHeld)

	require.NoError(t, h.Close())
	reopened, err := store.Open(context.Background(), h.Dir())
	require.NoError(t, err)
	require.NoError(t, reopened.Close())
}

func TestList_NewestFirstIncludingLegacyRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "sessions")
	legacy := filepath.Join(t.TempDir(), "legacy-sessions")
	store, err := NewStore(root, clock.RealClock{})
	require.NoError(t, err)
	store.legacyDir = legacy

	writeMeta := func(dir string, id string, created time.Time) {
		require.NoError(t, os.MkdirAll(dir, 0o750))
		meta := domain.SessionMeta{SessionID: id, CreatedAt: created, SchemaVersion: 1}
		data, merr := json.Marshal(meta)
		require.NoError(t, merr)
		require.NoError(t, os.WriteFile(filepath.Join(dir, constants.SessionMetaFileName), data, 0o600))
	}

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	writeMeta(filepath.Join(root, "s-old"), "s-old", base)
	writeMeta(filepath.Join(root, "s-new"), "s-new", base.Add(2*time.Hour))
	writeMeta(filepath.Join(legacy, "s-mid"), "s-mid", base.Add(time.Hour))

	sessions, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "s-new", sessions[0].SessionID)
	assert.Equal(t, "s-mid", sessions[1].SessionID)
	assert.Equal(t, "s-old", sessions[2].SessionID)
}

func TestResolve_FallsBackToLegacyRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "sessions")
	legacy := filepath.Join(t.TempDir(), "legacy")
	store, err := NewStore(root, clock.RealClock{})
	require.NoError(t, err)
	store.legacyDir = legacy

	dir := filepath.Join(legacy, "old-session")
	require.NoError(t, os.MkdirAll(dir, 0o750))

	h, err := store.Open(context.Background(), "old-session")
	require.NoError(t, err)
	defer func() { _ = h.Close() }()
	assert.Equal(t, dir, h.Dir())
}

func TestTasks_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	h := initSession(t, store)

	tasks := []domain.Task{{
		ID: "t1", Title: "Task", Kind: constants.KindImplementation,
		Status: constants.TaskStatusPending, MaxAttempts: 1,
	}}
	require.NoError(t, h.WriteTasks(tasks))

	raw, err := h.ReadTasksRaw()
	require.NoError(t, err)
	var readBack []domain.Task
	require.NoError(t, json.Unmarshal(raw, &readBack))
	assert.Equal(t, tasks, readBack)
}

func TestAppendTaskFails_PreservesExistingEntries(t *testing.T) {
	store := newTestStore(t)
	h := initSession(t, store)

	first := domain.FailureRecord{TaskID: "a", Attempt: 1, Kind: constants.KindAudit, VerdictSummary: "bad", Timestamp: "2026-08-05T10:00:00Z"}
	second := domain.FailureRecord{TaskID: "a", Attempt: 2, Kind: constants.KindAudit, VerdictSummary: "worse", Timestamp: "2026-08-05T11:00:00Z"}

	require.NoError(t, h.AppendTaskFails([]domain.FailureRecord{first}))
	require.NoError(t, h.AppendTaskFails([]domain.FailureRecord{second}))

	entries, err := h.ReadTaskFails()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0])
	assert.Equal(t, second, entries[1])
}

func TestRollingContext_EvictsOldestBeyondCap(t *testing.T) {
	store := newTestStore(t)
	h := initSession(t, store)

	entries := make([]domain.ContextEntry, 5)
	for i := range entries {
		entries[i] = domain.ContextEntry{TaskID: "t", Summary: string(rune('a' + i)), Timestamp: "2026-08-05T10:00:00Z"}
	}
	require.NoError(t, h.WriteRollingContext(entries, 3))

	readBack, err := h.ReadRollingContext()
	require.NoError(t, err)
	require.Len(t, readBack, 3)
	assert.Equal(t, "c", readBack[0].Summary)
	assert.Equal(t, "e", readBack[2].Summary)
}

func TestAtomicWrite_LeavesOldContentOnTempFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.json")
	require.NoError(t, atomicWrite(path, []byte("old")))

	// A leftover temp file from a crashed writer must not disturb the
	// committed content.
	require.NoError(t, os.WriteFile(path+".tmp", []byte("torn"), 0o600))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	// The next successful write replaces both.
	require.NoError(t, atomicWrite(path, []byte("new")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestPersistBatch_WritesLedgerBeforeTasks(t *testing.T) {
	store := newTestStore(t)
	h := initSession(t, store)

	fails := []domain.FailureRecord{{TaskID: "t1", Attempt: 1, Kind: constants.KindAudit, VerdictSummary: "x", Timestamp: "2026-08-05T10:00:00Z"}}
	tasks := []domain.Task{{ID: "t1", Title: "T", Kind: constants.KindAudit, Status: constants.TaskStatusPending, Attempt: 1, MaxAttempts: 4}}
	require.NoError(t, h.PersistBatch(tasks, fails))

	gotFails, err := h.ReadTaskFails()
	require.NoError(t, err)
	assert.Len(t, gotFails, 1)

	raw, err := h.ReadTasksRaw()
	require.NoError(t, err)
	var gotTasks []domain.Task
	require.NoError(t, json.Unmarshal(raw, &gotTasks))
	assert.Len(t, gotTasks, 1)
}

// TestCrashBetweenLedgerAndTasksWrite simulates the crash window of
// PersistBatch: the ledger write landed, the tasks write did not. Reopening
// must observe the pre-transition graph with the extra ledger entry.
func TestCrashBetweenLedgerAndTasksWrite(t *testing.T) {
	store := newTestStore(t)
	h := initSession(t, store)

	preCrash := []domain.Task{{ID: "t1", Title: "T", Kind: constants.KindImplementation, Status: constants.TaskStatusRunning, MaxAttempts: 1}}
	require.NoError(t, h.WriteTasks(preCrash))

	// Crash: only the ledger write of the batch completes.
	require.NoError(t, h.WriteTaskFails([]domain.FailureRecord{{
		TaskID: "t1", Attempt: 1, Kind: constants.KindImplementation,
		VerdictSummary: "agent died", Timestamp: "2026-08-05T10:00:00Z",
	}}))
	require.NoError(t, h.Close())

	reopened, err := store.Open(context.Background(), h.Dir())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	raw, err := reopened.ReadTasksRaw()
	require.NoError(t, err)
	var tasks []domain.Task
	require.NoError(t, json.Unmarshal(raw, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, constants.TaskStatusRunning, tasks[0].Status, "tasks.json reflects the pre-crash state")

	fails, err := reopened.ReadTaskFails()
	require.NoError(t, err)
	assert.Len(t, fails, 1, "ledger may contain the new failure entry")
}

func TestPlannerAndProjectInfo_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	h := initSession(t, store)

	require.NoError(t, h.WritePlanner("# Plan\n- step"))
	md, err := h.ReadPlanner()
	require.NoError(t, err)
	assert.Equal(t, "# Plan\n- step", md)

	require.NoError(t, h.WriteProjectInfo("# Project"))
	info, err := h.ReadProjectInfo()
	require.NoError(t, err)
	assert.Equal(t, "# Project", info)
}

func TestNewSessionID_HasTimestampAndSuffix(t *testing.T) {
	now := time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)
	id := newSessionID(now)
	assert.Regexp(t, `^1785931200-[0-9a-f]{8}$`, id)
}
