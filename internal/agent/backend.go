package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
)

// Backend describes one agent CLI the runner can spawn. The prompt is
// delivered on stdin; the transcript is the merged stdout/stderr stream.
type Backend struct {
	// Name is the backend identifier stored in session meta and config.
	Name string

	// Program is the executable to spawn.
	Program string

	// Args are the fixed arguments passed before the prompt.
	Args []string
}

// Known backends. The default matches the original tool's primary backend.
var knownBackends = map[string]Backend{ //nolint:gochecknoglobals // Static backend table
	"codex":  {Name: "codex", Program: "codex", Args: []string{"exec", "--skip-git-repo-check"}},
	"claude": {Name: "claude", Program: "claude", Args: []string{"-p"}},
}

// DefaultBackendName is used when no backend is configured.
const DefaultBackendName = "codex"

// LookupBackend resolves a backend by name. An empty name resolves to the
// default backend.
func LookupBackend(name string) (Backend, error) {
	if name == "" {
		name = DefaultBackendName
	}
	b, ok := knownBackends[strings.ToLower(name)]
	if !ok {
		return Backend{}, fmt.Errorf("%w: %q", boberrors.ErrInvalidBackend, name)
	}
	return b, nil
}

// BackendNames lists the known backend identifiers.
func BackendNames() []string {
	return []string{"claude", "codex"}
}

// CLIRunner runs prompts through a backend CLI process. For audit roles the
// verdict comes from the AUDIT_RESULT protocol token; for other roles a
// zero exit status is a pass.
type CLIRunner struct {
	backend Backend

	mu         sync.Mutex
	transcript []string
}

// NewCLIRunner creates a runner bound to one backend. Backend selection is
// applied only to runners created after a switch; in-flight runs keep the
// backend they started with.
func NewCLIRunner(backend Backend) *CLIRunner {
	return &CLIRunner{backend: backend}
}

// Run implements Runner.
func (r *CLIRunner) Run(ctx context.Context, role constants.TaskKind, prompt string, rc RunContext) (domain.Verdict, error) {
	r.mu.Lock()
	r.transcript = nil
	r.mu.Unlock()

	cmd := exec.CommandContext(ctx, r.backend.Program, r.backend.Args...) //#nosec G204 -- program comes from the static backend table
	cmd.Dir = rc.Cwd
	cmd.Stdin = strings.NewReader(prompt)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %s", boberrors.ErrAgentFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %s", boberrors.ErrAgentFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: failed to start %s: %s", boberrors.ErrAgentFailed, r.backend.Program, err)
	}

	var g errgroup.Group
	g.Go(func() error { return r.consume(stdout) })
	g.Go(func() error { return r.consume(stderr) })
	streamErr := g.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return domain.CancelledVerdict(), nil
	}
	if streamErr != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %s", boberrors.ErrAgentFailed, streamErr)
	}

	lines := r.Transcript()
	success := waitErr == nil
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		// Not an exit status: the process could not run at all.
		return domain.Verdict{}, fmt.Errorf("%w: %s", boberrors.ErrAgentFailed, waitErr)
	}

	return verdictFor(role, lines, success), nil
}

// Transcript returns the lines captured by the most recent run.
func (r *CLIRunner) Transcript() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.transcript))
	copy(out, r.transcript)
	return out
}

func (r *CLIRunner) consume(stream io.Reader) error {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		r.mu.Lock()
		r.transcript = append(r.transcript, scanner.Text())
		r.mu.Unlock()
	}
	return scanner.Err()
}

// verdictFor maps a finished run to a Verdict. Audit roles must answer the
// protocol explicitly; a clean exit without a PASS token still fails.
func verdictFor(role constants.TaskKind, lines []string, exitOK bool) domain.Verdict {
	details := strings.Join(lines, "\n")

	if !exitOK {
		return domain.FailVerdict(lastNonEmptyLine(lines), details)
	}

	if auditRole(role) {
		pass, found := ParseAuditResult(lines)
		if pass {
			return domain.PassVerdict()
		}
		if found {
			return domain.FailVerdict("audit reported FAIL: "+lastNonEmptyLine(lines), details)
		}
		return domain.FailVerdict("audit did not report an explicit AUDIT_RESULT", details)
	}

	return domain.PassVerdict()
}
