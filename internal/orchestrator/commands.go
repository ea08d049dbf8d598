package orchestrator

import (
	"fmt"

	"github.com/dioko-ai/bob/internal/constants"
	boberrors "github.com/dioko-ai/bob/internal/errors"
	"github.com/dioko-ai/bob/internal/taskgraph"
)

// GraphCommand names one of the planning-time graph mutations.
type GraphCommand string

// Graph mutation commands, mirroring the interactive slash commands.
const (
	CommandSplitAudits      GraphCommand = "split-audits"
	CommandMergeAudits      GraphCommand = "merge-audits"
	CommandSplitTests       GraphCommand = "split-tests"
	CommandMergeTests       GraphCommand = "merge-tests"
	CommandAddFinalAudit    GraphCommand = "add-final-audit"
	CommandRemoveFinalAudit GraphCommand = "remove-final-audit"
)

// GraphCommands lists the supported mutation commands.
func GraphCommands() []GraphCommand {
	return []GraphCommand{
		CommandSplitAudits, CommandMergeAudits,
		CommandSplitTests, CommandMergeTests,
		CommandAddFinalAudit, CommandRemoveFinalAudit,
	}
}

// ApplyCommand applies one graph mutation and persists the result. Commands
// are refused while a task is running; the mutated graph must re-pass
// validation before anything is written.
func (s *Service) ApplyCommand(st *State, cmd GraphCommand) error {
	for _, t := range st.Graph.Tasks() {
		if t.Status == constants.TaskStatusRunning {
			return fmt.Errorf("%w: cannot apply %s while task %q is running", boberrors.ErrExecutionBusy, cmd, t.ID)
		}
	}

	var (
		mutated taskgraph.Graph
		err     error
	)
	switch cmd {
	case CommandSplitAudits:
		mutated, err = taskgraph.SplitAudits(st.Graph)
	case CommandMergeAudits:
		mutated, err = taskgraph.MergeAudits(st.Graph)
	case CommandSplitTests:
		mutated, err = taskgraph.SplitTests(st.Graph)
	case CommandMergeTests:
		mutated, err = taskgraph.MergeTests(st.Graph)
	case CommandAddFinalAudit:
		mutated, err = taskgraph.AddFinalAudit(st.Graph)
	case CommandRemoveFinalAudit:
		mutated, err = taskgraph.RemoveFinalAudit(st.Graph)
	default:
		return fmt.Errorf("%w: unknown graph command %q", boberrors.ErrInvalidRequest, cmd)
	}
	if err != nil {
		return err
	}

	st.Graph = mutated
	return s.persist(st)
}
