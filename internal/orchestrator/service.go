// Package orchestrator binds the workflow engine to the session store and
// the agent-runner capability, and drives the pipeline one advance at a
// time. Scheduling is single-threaded cooperative per session: no two
// Advance calls for one session overlap, and only the agent run inside an
// advance may block for a long time.
package orchestrator

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dioko-ai/bob/internal/agent"
	"github.com/dioko-ai/bob/internal/clock"
	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	"github.com/dioko-ai/bob/internal/engine"
	boberrors "github.com/dioko-ai/bob/internal/errors"
	"github.com/dioko-ai/bob/internal/prompts"
	"github.com/dioko-ai/bob/internal/session"
	"github.com/dioko-ai/bob/internal/taskgraph"
)

// Service drives sessions through the pipeline.
type Service struct {
	engine     *engine.Engine
	clock      clock.Clock
	logger     zerolog.Logger
	contextCap int

	// newAgentRunner builds the backend runner for one run. Swapping the
	// backend replaces this factory; in-flight runs are not affected.
	newAgentRunner func() (agent.Runner, error)

	// testRunner executes test_run tasks deterministically.
	testRunner agent.Runner
}

// Options configure a Service.
type Options struct {
	// Backend is the agent backend name; empty selects the default.
	Backend string

	// RollingContextCap bounds the rolling context buffer; zero selects
	// the default cap.
	RollingContextCap int

	// Clock overrides the time source (tests).
	Clock clock.Clock

	// Logger receives structured progress events.
	Logger zerolog.Logger

	// AgentRunner overrides the backend runner (tests). When set, Backend
	// is ignored.
	AgentRunner agent.Runner

	// TestRunner overrides the deterministic test runner (tests).
	TestRunner agent.Runner
}

// New creates a Service.
func New(opts Options) *Service {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	s := &Service{
		engine:     engine.New(clk),
		clock:      clk,
		logger:     opts.Logger,
		contextCap: opts.RollingContextCap,
	}
	if s.contextCap <= 0 {
		s.contextCap = constants.DefaultRollingContextCap
	}

	if opts.AgentRunner != nil {
		runner := opts.AgentRunner
		s.newAgentRunner = func() (agent.Runner, error) { return runner, nil }
	} else {
		backendName := opts.Backend
		s.newAgentRunner = func() (agent.Runner, error) {
			backend, err := agent.LookupBackend(backendName)
			if err != nil {
				return nil, err
			}
			return agent.NewCLIRunner(backend), nil
		}
	}

	s.testRunner = opts.TestRunner
	if s.testRunner == nil {
		s.testRunner = agent.NewTestCommandRunner()
	}
	return s
}

// SetBackend switches the backend used for runners created after this call.
// In-flight agent runs keep the backend they started with. Session meta is
// not rewritten.
func (s *Service) SetBackend(name string) error {
	if _, err := agent.LookupBackend(name); err != nil {
		return err
	}
	s.newAgentRunner = func() (agent.Runner, error) {
		backend, err := agent.LookupBackend(name)
		if err != nil {
			return nil, err
		}
		return agent.NewCLIRunner(backend), nil
	}
	return nil
}

// State is the in-memory view of one open session. The graph is held by
// value; every transition produces a new version that is persisted before
// the state is updated.
type State struct {
	Handle  *session.Handle
	Meta    domain.SessionMeta
	Graph   taskgraph.Graph
	Ledger  engine.Ledger
	Rolling []domain.ContextEntry
}

// Load reads all session artifacts through the handle and validates the
// graph. Corrupt or invalid artifacts surface as errors; missing optional
// artifacts were already defaulted when the session was opened.
func (s *Service) Load(h *session.Handle) (*State, error) {
	meta, err := h.ReadMeta()
	if err != nil {
		return nil, boberrors.Wrap(err, "failed to load session meta")
	}
	raw, err := h.ReadTasksRaw()
	if err != nil {
		return nil, boberrors.Wrap(err, "failed to load tasks")
	}
	graph, err := taskgraph.ValidateRaw(raw)
	if err != nil {
		return nil, err
	}
	fails, err := h.ReadTaskFails()
	if err != nil {
		return nil, boberrors.Wrap(err, "failed to load failure ledger")
	}
	rolling, err := h.ReadRollingContext()
	if err != nil {
		return nil, boberrors.Wrap(err, "failed to load rolling context")
	}
	return &State{Handle: h, Meta: meta, Graph: graph, Ledger: fails, Rolling: rolling}, nil
}

// PrepareMasterPrompt is a pure projection of the session into the master
// planning prompt.
func (s *Service) PrepareMasterPrompt(st *State, message string) string {
	return prompts.BuildMasterPrompt(prompts.MasterInput{
		UserMessage:      message,
		ExecutionEnabled: anyRunning(st.Graph),
		TasksFile:        filepath.Join(st.Handle.Dir(), constants.TasksFileName),
		TaskTree:         treeText(st.Graph),
		RollingContext:   st.Rolling,
		ProjectInfo:      s.readProjectInfo(st),
	})
}

// PreparePlannerPrompt is a pure projection of the session into the
// plan-conversion prompt.
func (s *Service) PreparePlannerPrompt(st *State, message, plannerMD, projectInfoMD string) string {
	return prompts.BuildPlannerPrompt(prompts.PlannerInput{
		UserMessage:     message,
		PlannerFile:     filepath.Join(st.Handle.Dir(), constants.PlannerFileName),
		TasksFile:       filepath.Join(st.Handle.Dir(), constants.TasksFileName),
		PlannerMarkdown: plannerMD,
		ProjectInfo:     projectInfoMD,
	})
}

// PrepareAttachDocsPrompt is a pure projection of selected tasks into the
// docs-attachment prompt.
func (s *Service) PrepareAttachDocsPrompt(st *State, tasks []domain.Task) string {
	return prompts.BuildAttachDocsPrompt(filepath.Join(st.Handle.Dir(), constants.TasksFileName), tasks)
}

func (s *Service) readProjectInfo(st *State) string {
	info, err := st.Handle.ReadProjectInfo()
	if err != nil {
		return ""
	}
	return info
}

// treeText renders the compact task tree used inside prompts.
func treeText(g taskgraph.Graph) string {
	view := taskgraph.RightPaneView(g, 100)
	return strings.Join(view.Lines, "\n")
}

func anyRunning(g taskgraph.Graph) bool {
	for _, t := range g.Tasks() {
		if t.Status == constants.TaskStatusRunning {
			return true
		}
	}
	return false
}

// persist writes one durable batch (ledger first, then tasks) and then the
// rolling context best-effort.
func (s *Service) persist(st *State) error {
	if err := st.Handle.PersistBatch(st.Graph.Tasks(), st.Ledger); err != nil {
		return err
	}
	if err := st.Handle.WriteRollingContext(st.Rolling, s.contextCap); err != nil {
		// Durable at the next successful batch.
		s.logger.Warn().Err(err).Msg("rolling context write failed; will retry on next batch")
	}
	return nil
}

// pushContext appends a rolling-context entry, evicting oldest past the cap.
func (s *Service) pushContext(st *State, taskID, summary string) {
	st.Rolling = append(st.Rolling, domain.ContextEntry{
		TaskID:    taskID,
		Timestamp: s.clock.Now().UTC().Format(time.RFC3339),
		Summary:   summary,
	})
	if len(st.Rolling) > s.contextCap {
		st.Rolling = st.Rolling[len(st.Rolling)-s.contextCap:]
	}
}

// runnerFor selects the runner for a role: the deterministic test runner
// for test_run tasks, the backend runner otherwise.
func (s *Service) runnerFor(role constants.TaskKind) (agent.Runner, error) {
	if role == constants.KindTestRun {
		return s.testRunner, nil
	}
	return s.newAgentRunner()
}

// scopeOf resolves the root ancestor of a task for prompt context.
func scopeOf(g taskgraph.Graph, t domain.Task) domain.Task {
	scope := t
	for scope.ParentID != "" {
		parent, ok := g.ByID(scope.ParentID)
		if !ok {
			break
		}
		scope = parent
	}
	return scope
}

// describeVerdict is the one-line rolling-context summary for a finished run.
func describeVerdict(role constants.TaskKind, t domain.Task, v domain.Verdict) string {
	name := prompts.RoleName(role)
	switch {
	case v.Cancelled:
		return fmt.Sprintf("%s run for %q was cancelled before completing", name, t.Title)
	case v.Pass:
		return fmt.Sprintf("%s for %q finished its pass successfully", name, t.Title)
	default:
		return fmt.Sprintf("%s for %q ended with a failure: %s", name, t.Title, v.Summary)
	}
}
