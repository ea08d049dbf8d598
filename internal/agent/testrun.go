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

// TestCommandRunner executes the session's deterministic test command for
// test_run tasks. The prompt text is ignored; the verdict is the command's
// exit status. With no test command configured the run is skipped with a
// passing verdict, matching the planning contract that test_run stages are
// optional until a command exists.
type TestCommandRunner struct {
	// Shell is the program used to run the command line. Defaults to bash.
	Shell string

	mu         sync.Mutex
	transcript []string
}

// NewTestCommandRunner creates a deterministic test runner.
func NewTestCommandRunner() *TestCommandRunner {
	return &TestCommandRunner{Shell: "bash"}
}

// Run implements Runner.
func (r *TestCommandRunner) Run(ctx context.Context, _ constants.TaskKind, _ string, rc RunContext) (domain.Verdict, error) {
	r.mu.Lock()
	r.transcript = nil
	r.mu.Unlock()

	command := strings.TrimSpace(rc.TestCommand)
	if command == "" {
		r.append("test run skipped: no test command configured in session meta")
		return domain.PassVerdict(), nil
	}

	cmd := exec.CommandContext(ctx, r.Shell, "-lc", command) //#nosec G204 -- the test command is the session's own configuration
	cmd.Dir = rc.Cwd

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %s", boberrors.ErrAgentFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %s", boberrors.ErrAgentFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: failed to start test command: %s", boberrors.ErrAgentFailed, err)
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

	if waitErr == nil {
		return domain.PassVerdict(), nil
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return domain.Verdict{}, fmt.Errorf("%w: %s", boberrors.ErrAgentFailed, waitErr)
	}

	lines := r.Transcript()
	summary := fmt.Sprintf("test command failed with code %d", exitErr.ExitCode())
	return domain.FailVerdict(summary, strings.Join(lines, "\n")), nil
}

// Transcript returns the output lines captured by the most recent run.
func (r *TestCommandRunner) Transcript() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.transcript))
	copy(out, r.transcript)
	return out
}

func (r *TestCommandRunner) append(line string) {
	r.mu.Lock()
	r.transcript = append(r.transcript, line)
	r.mu.Unlock()
}

func (r *TestCommandRunner) consume(stream io.Reader) error {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		r.append(scanner.Text())
	}
	return scanner.Err()
}
