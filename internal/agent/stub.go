package agent

import (
	"context"
	"fmt"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
)

// StubRunner replays a scripted verdict stream. Tests and dry runs use it
// in place of a backend process; the engine cannot tell the difference.
type StubRunner struct {
	// Verdicts are consumed in order, one per Run call.
	Verdicts []domain.Verdict

	// Calls records the roles and prompts observed, in order.
	Calls []StubCall

	next int
}

// StubCall is one observed Run invocation.
type StubCall struct {
	Role   constants.TaskKind
	Prompt string
}

// NewStubRunner creates a stub that replays the given verdicts.
func NewStubRunner(verdicts ...domain.Verdict) *StubRunner {
	return &StubRunner{Verdicts: verdicts}
}

// Run implements Runner.
func (s *StubRunner) Run(ctx context.Context, role constants.TaskKind, prompt string, _ RunContext) (domain.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.CancelledVerdict(), nil
	}
	s.Calls = append(s.Calls, StubCall{Role: role, Prompt: prompt})
	if s.next >= len(s.Verdicts) {
		return domain.Verdict{}, fmt.Errorf("%w: stub runner exhausted after %d calls", boberrors.ErrAgentFailed, s.next)
	}
	v := s.Verdicts[s.next]
	s.next++
	return v, nil
}
