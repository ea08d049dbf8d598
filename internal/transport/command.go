package transport

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dioko-ai/bob/internal/capability"
	boberrors "github.com/dioko-ai/bob/internal/errors"
	"github.com/dioko-ai/bob/internal/orchestrator"
)

// InteractiveTransportName identifies the interactive adapter in request
// metadata.
const InteractiveTransportName = "interactive"

// CommandKind discriminates what a parsed slash command maps to.
type CommandKind int

// Command kinds.
const (
	// KindCapability maps to one capability request.
	KindCapability CommandKind = iota

	// KindGraph maps to one graph mutation.
	KindGraph

	// KindControl maps to a session-loop control action (start, quit, ...).
	KindControl

	// KindMessage is plain chat input for the master agent.
	KindMessage
)

// ControlAction names the interactive control surface.
type ControlAction string

// Control actions.
const (
	ControlStart      ControlAction = "start"
	ControlQuit       ControlAction = "quit"
	ControlBackend    ControlAction = "backend"
	ControlResume     ControlAction = "resume"
	ControlNewMaster  ControlAction = "newmaster"
	ControlPlanner    ControlAction = "planner"
	ControlConvert    ControlAction = "convert"
	ControlSkipPlan   ControlAction = "skip-plan"
	ControlAttachDocs ControlAction = "attach-docs"
)

// Command is one parsed interactive input.
type Command struct {
	Kind    CommandKind
	Request capability.RequestEnvelope
	Graph   orchestrator.GraphCommand
	Control ControlAction

	// Arg carries the remainder of the command line (backend name, chat
	// text, ...).
	Arg string
}

// ParseCommand maps one line of interactive input to a Command. Lines not
// starting with "/" are chat messages. Unknown slash commands are argument
// errors and belong on the transport's error channel, not in an envelope.
func ParseCommand(sessionDir, line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Command{}, fmt.Errorf("%w: empty input", boberrors.ErrInvalidRequest)
	}
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: KindMessage, Arg: trimmed}, nil
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(trimmed, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "start":
		return Command{Kind: KindControl, Control: ControlStart}, nil
	case "quit", "exit":
		return Command{Kind: KindControl, Control: ControlQuit}, nil
	case "backend":
		return Command{Kind: KindControl, Control: ControlBackend, Arg: arg}, nil
	case "resume":
		return Command{Kind: KindControl, Control: ControlResume, Arg: arg}, nil
	case "newmaster":
		return Command{Kind: KindControl, Control: ControlNewMaster}, nil
	case "planner":
		return Command{Kind: KindControl, Control: ControlPlanner}, nil
	case "convert":
		return Command{Kind: KindControl, Control: ControlConvert}, nil
	case "skip-plan":
		return Command{Kind: KindControl, Control: ControlSkipPlan}, nil
	case "attach-docs":
		return Command{Kind: KindControl, Control: ControlAttachDocs}, nil

	case "split-audits", "merge-audits", "split-tests", "merge-tests",
		"add-final-audit", "remove-final-audit":
		return Command{Kind: KindGraph, Graph: orchestrator.GraphCommand(name)}, nil

	case "tasks":
		return capabilityCommand("session.read_tasks", sessionDir)
	case "fails":
		return capabilityCommand("session.read_task_fails", sessionDir)
	case "sessions":
		return Command{Kind: KindCapability, Request: capability.RequestEnvelope{
			Capability: "session.list",
			Metadata:   capability.Metadata{Transport: InteractiveTransportName},
		}}, nil

	default:
		return Command{}, fmt.Errorf("%w: unknown command /%s", boberrors.ErrInvalidRequest, name)
	}
}

// capabilityCommand builds a session-scoped capability request.
func capabilityCommand(name, sessionDir string) (Command, error) {
	payload, err := json.Marshal(map[string]string{"session": sessionDir})
	if err != nil {
		return Command{}, fmt.Errorf("%w: %s", boberrors.ErrInternal, err)
	}
	return Command{Kind: KindCapability, Request: capability.RequestEnvelope{
		Capability: name,
		Metadata:   capability.Metadata{Transport: InteractiveTransportName},
		Payload:    payload,
	}}, nil
}
