package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dioko-ai/bob/internal/clock"
	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
	"github.com/dioko-ai/bob/internal/flock"
)

// Handle is an open session. It holds the directory-level advisory lock for
// its lifetime; callers must Close it when done. A Handle is not safe for
// concurrent use, matching the single-threaded cooperative scheduling model.
type Handle struct {
	dir      string
	lockFile *os.File
	clock    clock.Clock
}

// Dir returns the session directory.
func (h *Handle) Dir() string {
	return h.dir
}

// SessionID returns the session identifier (the directory base name).
func (h *Handle) SessionID() string {
	return filepath.Base(h.dir)
}

// Close releases the session lock. The handle must not be used afterwards.
func (h *Handle) Close() error {
	if h.lockFile == nil {
		return nil
	}
	err := flock.Unlock(h.lockFile.Fd())
	closeErr := h.lockFile.Close()
	h.lockFile = nil
	if err != nil {
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	return closeErr
}

// acquireLock takes the exclusive non-blocking lock on the session's .lock
// file. A held lock means another process has the session open.
func (h *Handle) acquireLock() error {
	path := filepath.Join(h.dir, constants.LockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, filePerm) //#nosec G304 -- path is constructed from the session dir
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := flock.Exclusive(f.Fd()); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %s", boberrors.ErrLockHeld, path)
	}
	h.lockFile = f
	return nil
}

func (h *Handle) releaseLock() {
	if h.lockFile != nil {
		_ = flock.Unlock(h.lockFile.Fd())
		_ = h.lockFile.Close()
		h.lockFile = nil
	}
}

// bootstrap creates any missing artifacts with defaults. Existing files are
// never touched, so reopening a session preserves all state.
func (h *Handle) bootstrap(meta domain.SessionMeta) error {
	defaults := []struct {
		name    string
		content []byte
	}{
		{constants.TasksFileName, []byte("[]\n")},
		{constants.PlannerFileName, nil},
		{constants.RollingContextFileName, []byte("[]\n")},
		{constants.TaskFailsFileName, []byte("[]\n")},
		{constants.ProjectInfoFileName, nil},
	}
	for _, d := range defaults {
		path := filepath.Join(h.dir, d.name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := atomicWrite(path, d.content); err != nil {
			return err
		}
	}

	metaPath := filepath.Join(h.dir, constants.SessionMetaFileName)
	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		return h.WriteMeta(meta)
	}
	return nil
}

// ReadMeta reads session_meta.json.
func (h *Handle) ReadMeta() (domain.SessionMeta, error) {
	var meta domain.SessionMeta
	if err := h.readJSON(constants.SessionMetaFileName, &meta); err != nil {
		return domain.SessionMeta{}, err
	}
	return meta, nil
}

// WriteMeta atomically replaces session_meta.json.
func (h *Handle) WriteMeta(meta domain.SessionMeta) error {
	return h.writeJSON(constants.SessionMetaFileName, meta)
}

// ReadTasksRaw reads the serialized task graph without interpretation.
// Parsing and validation belong to the taskgraph package.
func (h *Handle) ReadTasksRaw() ([]byte, error) {
	return h.readFile(constants.TasksFileName)
}

// WriteTasks atomically replaces tasks.json with the given task records.
func (h *Handle) WriteTasks(tasks []domain.Task) error {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return h.writeJSON(constants.TasksFileName, tasks)
}

// ReadPlanner reads the raw planner markdown.
func (h *Handle) ReadPlanner() (string, error) {
	data, err := h.readFile(constants.PlannerFileName)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WritePlanner atomically replaces planner.md.
func (h *Handle) WritePlanner(markdown string) error {
	return atomicWrite(filepath.Join(h.dir, constants.PlannerFileName), []byte(markdown))
}

// ReadProjectInfo reads the raw project info markdown.
func (h *Handle) ReadProjectInfo() (string, error) {
	data, err := h.readFile(constants.ProjectInfoFileName)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteProjectInfo atomically replaces project_info.md.
func (h *Handle) WriteProjectInfo(markdown string) error {
	return atomicWrite(filepath.Join(h.dir, constants.ProjectInfoFileName), []byte(markdown))
}

// ReadRollingContext reads the bounded recent-status buffer.
func (h *Handle) ReadRollingContext() ([]domain.ContextEntry, error) {
	var entries []domain.ContextEntry
	if err := h.readJSON(constants.RollingContextFileName, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteRollingContext atomically replaces the rolling context, evicting
// oldest entries beyond the cap.
func (h *Handle) WriteRollingContext(entries []domain.ContextEntry, limit int) error {
	if limit <= 0 {
		limit = constants.DefaultRollingContextCap
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	if entries == nil {
		entries = []domain.ContextEntry{}
	}
	return h.writeJSON(constants.RollingContextFileName, entries)
}

// ReadTaskFails reads the append-only failure ledger.
func (h *Handle) ReadTaskFails() ([]domain.FailureRecord, error) {
	var entries []domain.FailureRecord
	if err := h.readJSON(constants.TaskFailsFileName, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendTaskFails appends entries to the ledger via read-modify-write under
// the session lock. Existing entries are never reordered or removed.
func (h *Handle) AppendTaskFails(entries []domain.FailureRecord) error {
	if len(entries) == 0 {
		return nil
	}
	existing, err := h.ReadTaskFails()
	if err != nil {
		return err
	}
	return h.WriteTaskFails(append(existing, entries...))
}

// WriteTaskFails atomically replaces the ledger. Callers must only ever
// extend it; the engine enforces append-only semantics.
func (h *Handle) WriteTaskFails(entries []domain.FailureRecord) error {
	if entries == nil {
		entries = []domain.FailureRecord{}
	}
	return h.writeJSON(constants.TaskFailsFileName, entries)
}

// PersistBatch writes the failure ledger and then the task graph, each via
// its own atomic rename. The ledger lands first so a crash between the two
// leaves a pre-transition graph with (at most) extra ledger entries, which
// a fresh advance reconciles.
func (h *Handle) PersistBatch(tasks []domain.Task, fails []domain.FailureRecord) error {
	if err := h.WriteTaskFails(fails); err != nil {
		return err
	}
	return h.WriteTasks(tasks)
}

func (h *Handle) readFile(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(h.dir, name)) //#nosec G304 -- path is constructed from the session dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", boberrors.ErrArtifactNotFound, name)
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (h *Handle) readJSON(name string, v any) error {
	data, err := h.readFile(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: corrupted artifact: %w", name, err)
	}
	return nil
}

func (h *Handle) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", name, err)
	}
	return atomicWrite(filepath.Join(h.dir, name), append(data, '\n'))
}

// atomicWrite writes data to a file atomically: temp file in the same
// directory, fsync the file, rename over the target, fsync the directory.
// A crash at any point leaves either the old or the new content.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	// Persist the rename itself.
	dir, err := os.Open(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("failed to open directory for sync: %w", err)
	}
	if err := dir.Sync(); err != nil {
		_ = dir.Close()
		return fmt.Errorf("failed to sync directory: %w", err)
	}
	return dir.Close()
}
