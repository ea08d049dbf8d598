// Package session implements the durable per-session store. Each session
// exclusively owns one directory under the canonical root; the store is the
// sole writer and every artifact write is atomic (temp file + fsync +
// rename + directory fsync), so readers observe either the prior state or
// the new state, never a torn write.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dioko-ai/bob/internal/clock"
	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
)

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// Store locates sessions under the canonical root and the legacy root.
// New sessions are always created under the canonical root.
type Store struct {
	rootDir   string
	legacyDir string
	clock     clock.Clock
}

// NewStore creates a Store. An empty rootDir uses $HOME/.bob/sessions with
// the legacy $HOME/.metaagent/sessions read fallback. A nil clock defaults
// to the real clock.
func NewStore(rootDir string, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	legacyDir := ""
	if rootDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		rootDir = filepath.Join(home, constants.BobHome, constants.SessionsDir)
		legacyDir = filepath.Join(home, constants.LegacyHome, constants.SessionsDir)
	}
	return &Store{rootDir: rootDir, legacyDir: legacyDir, clock: clk}, nil
}

// RootDir returns the canonical sessions root.
func (s *Store) RootDir() string {
	return s.rootDir
}

// InitOptions are the attributes of a new session.
type InitOptions struct {
	Cwd         string
	Title       string
	TestCommand string
	Backend     string
}

// Init creates a new session directory with default artifacts and returns
// an open handle holding the directory lock. The directory must not already
// exist.
func (s *Store) Init(ctx context.Context, opts InitOptions) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Cwd == "" {
		return nil, fmt.Errorf("failed to init session: cwd %w", boberrors.ErrEmptyValue)
	}
	if !filepath.IsAbs(opts.Cwd) {
		return nil, fmt.Errorf("failed to init session: cwd %q is not absolute", opts.Cwd)
	}

	if err := os.MkdirAll(s.rootDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create sessions root: %w", err)
	}

	now := s.clock.Now().UTC()
	sessionID := newSessionID(now)
	dir := filepath.Join(s.rootDir, sessionID)

	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("failed to init session %q: %w", sessionID, boberrors.ErrSessionExists)
	}
	if err := os.Mkdir(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	meta := domain.SessionMeta{
		SessionID:     sessionID,
		Title:         opts.Title,
		CreatedAt:     now,
		Cwd:           opts.Cwd,
		TestCommand:   opts.TestCommand,
		Backend:       opts.Backend,
		SchemaVersion: constants.SessionMetaSchemaVersion,
	}

	h := &Handle{dir: dir, clock: s.clock}
	if err := h.acquireLock(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to init session %q: %w", sessionID, err)
	}
	if err := h.bootstrap(meta); err != nil {
		h.releaseLock()
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to init session %q: %w", sessionID, err)
	}
	return h, nil
}

// Open opens an existing session by directory path or session ID. IDs are
// resolved against the canonical root first, then the legacy root. Missing
// optional artifacts are recreated with defaults; a missing directory is
// ErrSessionNotFound.
func (s *Store) Open(ctx context.Context, dirOrID string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dirOrID == "" {
		return nil, fmt.Errorf("failed to open session: path %w", boberrors.ErrEmptyValue)
	}

	dir, err := s.resolve(dirOrID)
	if err != nil {
		return nil, err
	}

	h := &Handle{dir: dir, clock: s.clock}
	if err := h.acquireLock(); err != nil {
		return nil, fmt.Errorf("failed to open session %q: %w", dirOrID, err)
	}

	meta := domain.SessionMeta{
		SessionID:     filepath.Base(dir),
		CreatedAt:     s.clock.Now().UTC(),
		SchemaVersion: constants.SessionMetaSchemaVersion,
	}
	if err := h.bootstrap(meta); err != nil {
		h.releaseLock()
		return nil, fmt.Errorf("failed to open session %q: %w", dirOrID, err)
	}
	return h, nil
}

// resolve maps a directory path or bare session ID to an existing session
// directory.
func (s *Store) resolve(dirOrID string) (string, error) {
	candidates := []string{}
	if strings.ContainsRune(dirOrID, os.PathSeparator) || filepath.IsAbs(dirOrID) {
		candidates = append(candidates, dirOrID)
	} else {
		candidates = append(candidates, filepath.Join(s.rootDir, dirOrID))
		if s.legacyDir != "" {
			candidates = append(candidates, filepath.Join(s.legacyDir, dirOrID))
		}
	}
	for _, dir := range candidates {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("%w: %q", boberrors.ErrSessionNotFound, dirOrID)
}

// List enumerates sessions under the canonical and legacy roots, newest
// first by creation time.
func (s *Store) List(ctx context.Context) ([]domain.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summaries := []domain.SessionSummary{}
	for _, root := range []string{s.rootDir, s.legacyDir} {
		if root == "" {
			continue
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root, entry.Name())
			summaries = append(summaries, summarize(dir, entry))
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// summarize builds one listing row, tolerating missing or corrupt meta.
func summarize(dir string, entry os.DirEntry) domain.SessionSummary {
	summary := domain.SessionSummary{
		SessionID: entry.Name(),
		Dir:       dir,
	}
	data, err := os.ReadFile(filepath.Join(dir, constants.SessionMetaFileName)) //#nosec G304 -- path is constructed from the sessions root
	if err == nil {
		var meta domain.SessionMeta
		if json.Unmarshal(data, &meta) == nil {
			summary.Title = meta.Title
			summary.Cwd = meta.Cwd
			summary.CreatedAt = meta.CreatedAt
		}
	}
	if summary.CreatedAt.IsZero() {
		if info, err := entry.Info(); err == nil {
			summary.CreatedAt = info.ModTime().UTC()
		}
	}
	return summary
}

// newSessionID derives an opaque session ID from a timestamp plus a random
// suffix.
func newSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", now.Unix(), suffix)
}
