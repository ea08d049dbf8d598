package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dioko-ai/bob/internal/agent"
	"github.com/dioko-ai/bob/internal/capability"
	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
	"github.com/dioko-ai/bob/internal/orchestrator"
	"github.com/dioko-ai/bob/internal/session"
	"github.com/dioko-ai/bob/internal/taskgraph"
	"github.com/dioko-ai/bob/internal/transport"
	"github.com/dioko-ai/bob/internal/tui"
)

// newTUICmd launches the interactive three-pane shell for one session.
func newTUICmd(_ *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [session]",
		Short: "Open the interactive shell for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			h, err := app.store.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			st, err := app.svc.Load(h)
			if err != nil {
				return err
			}

			driver := &sessionDriver{
				ctx:        cmd.Context(),
				app:        app,
				handle:     h,
				state:      st,
				chatRunner: newChatRunner(app, st),
			}
			return tui.Run(driver)
		},
	}
}

// newChatRunner builds the backend runner used for planning chat. Chat is
// best-effort; a missing backend degrades to prompt preview.
func newChatRunner(app *appContext, st *orchestrator.State) agent.Runner {
	name := st.Meta.Backend
	if name == "" {
		name = app.cfg.Backend
	}
	backend, err := agent.LookupBackend(name)
	if err != nil {
		return nil
	}
	return agent.NewCLIRunner(backend)
}

// sessionDriver routes interactive input through the command adapter and
// executes the result against the core. It holds no workflow logic of its
// own; state transitions happen inside the orchestration service.
type sessionDriver struct {
	ctx        context.Context
	app        *appContext
	handle     *session.Handle
	state      *orchestrator.State
	chatRunner agent.Runner
}

// Title implements tui.Driver.
func (d *sessionDriver) Title() string {
	title := d.state.Meta.Title
	if title == "" {
		title = d.state.Meta.SessionID
	}
	return "bob — " + title
}

// RightPane implements tui.Driver.
func (d *sessionDriver) RightPane(width int) []string {
	return taskgraph.RightPaneView(d.state.Graph, width).Lines
}

// Submit implements tui.Driver. The returned bool requests shutdown.
func (d *sessionDriver) Submit(line string) ([]string, bool) {
	cmd, err := transport.ParseCommand(d.handle.Dir(), line)
	if err != nil {
		// Argument errors stay on the transport's error channel.
		return []string{"! " + err.Error()}, false
	}

	switch cmd.Kind {
	case transport.KindCapability:
		return d.dispatch(cmd.Request), false
	case transport.KindGraph:
		return d.applyGraph(cmd.Graph), false
	case transport.KindControl:
		return d.control(cmd)
	default:
		return d.chat(cmd.Arg), false
	}
}

func (d *sessionDriver) dispatch(req capability.RequestEnvelope) []string {
	// This process already holds the session lock, so session-scoped reads
	// on the open session are served from loaded state; dispatching them
	// would deadlock on the advisory lock.
	switch req.Capability {
	case "session.read_tasks":
		return d.renderJSON(map[string]any{"tasks": d.state.Graph.Tasks()})
	case "session.read_task_fails":
		return d.renderJSON(map[string]any{"entries": d.state.Ledger})
	}

	resp := d.app.dispatcher.Dispatch(d.ctx, req)
	if resp.Result.Err != nil {
		return []string{"! " + resp.Result.Err.Error()}
	}
	pretty, err := json.MarshalIndent(json.RawMessage(resp.Result.Ok), "", "  ")
	if err != nil {
		return []string{"! failed to render response: " + err.Error()}
	}
	return []string{string(pretty)}
}

func (d *sessionDriver) renderJSON(v any) []string {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return []string{"! failed to render response: " + err.Error()}
	}
	return []string{string(pretty)}
}

func (d *sessionDriver) applyGraph(cmd orchestrator.GraphCommand) []string {
	if err := d.app.svc.ApplyCommand(d.state, cmd); err != nil {
		return []string{"! " + err.Error()}
	}
	return []string{fmt.Sprintf("Applied /%s; graph now has %d task(s).", cmd, d.state.Graph.Len())}
}

func (d *sessionDriver) control(cmd transport.Command) ([]string, bool) {
	switch cmd.Control {
	case transport.ControlQuit:
		return []string{"Goodbye."}, true

	case transport.ControlStart:
		return d.start(), false

	case transport.ControlBackend:
		if cmd.Arg == "" {
			return []string{"Usage: /backend <name>"}, false
		}
		if err := d.app.svc.SetBackend(cmd.Arg); err != nil {
			return []string{"! " + err.Error()}, false
		}
		return []string{"Backend switched to " + cmd.Arg + " for new agent runs."}, false

	case transport.ControlPlanner:
		md, err := d.handle.ReadPlanner()
		if err != nil {
			return []string{"! " + err.Error()}, false
		}
		if md == "" {
			return []string{"(planner is empty; edit planner.md in the session directory)"}, false
		}
		return []string{md}, false

	case transport.ControlConvert:
		prompt := d.app.svc.PreparePlannerPrompt(d.state, "", d.readPlanner(), d.readProjectInfo())
		return d.runChat(prompt, "planner conversion"), false

	case transport.ControlSkipPlan:
		return []string{"Planning skipped; edit tasks.json directly, then /start."}, false

	case transport.ControlAttachDocs:
		prompt := d.app.svc.PrepareAttachDocsPrompt(d.state, d.state.Graph.Tasks())
		return d.runChat(prompt, "doc attachment"), false

	case transport.ControlNewMaster, transport.ControlResume:
		return []string{"Use 'bob session init' / 'bob tui <session>' to switch sessions."}, false

	default:
		return []string{"! unknown control action"}, false
	}
}

// start drives the pipeline to completion, reporting each step.
func (d *sessionDriver) start() []string {
	var out []string
	for {
		action, err := d.app.svc.Advance(d.ctx, d.state)
		if err != nil {
			return append(out, "! "+err.Error())
		}
		switch action.Type {
		case domain.ActionRunTask:
			task, _ := d.state.Graph.ByID(action.TaskID)
			out = append(out, fmt.Sprintf("Ran %s task %s → %s", action.Role, action.TaskID, task.Status))
		case domain.ActionBlocked:
			return append(out, "Blocked: "+action.Reason)
		case domain.ActionDone:
			if action.OverallFailed {
				return append(out, "Execution finished with failures; see /fails.")
			}
			return append(out, "Execution finished; all tasks passed.")
		}
	}
}

// chat sends a plain message through the master planning prompt.
func (d *sessionDriver) chat(message string) []string {
	prompt := d.app.svc.PrepareMasterPrompt(d.state, message)
	return d.runChat(prompt, "planner")
}

// runChat executes a prompt on the chat backend and reloads state, since
// the agent may have edited tasks.json.
func (d *sessionDriver) runChat(prompt, label string) []string {
	if d.chatRunner == nil {
		return []string{"(no backend configured; prompt preview below)", "", prompt}
	}
	verdict, err := d.chatRunner.Run(d.ctx, constants.KindImplementation, prompt, agent.RunContext{
		SessionDir: d.handle.Dir(),
		Cwd:        d.state.Meta.Cwd,
	})
	if err != nil {
		return []string{"! " + label + " run failed: " + err.Error()}
	}

	out := []string{}
	if transcriptSource, ok := d.chatRunner.(*agent.CLIRunner); ok {
		out = append(out, transcriptSource.Transcript()...)
	}
	if !verdict.Pass && verdict.Summary != "" {
		out = append(out, "! "+verdict.Summary)
	}

	// The agent may have rewritten tasks.json; reload and revalidate.
	if st, err := d.app.svc.Load(d.handle); err != nil {
		out = append(out, "! task reload failed: "+err.Error())
	} else {
		d.state = st
	}
	return out
}

func (d *sessionDriver) readPlanner() string {
	md, err := d.handle.ReadPlanner()
	if err != nil {
		return ""
	}
	return md
}

func (d *sessionDriver) readProjectInfo() string {
	md, err := d.handle.ReadProjectInfo()
	if err != nil {
		return ""
	}
	return md
}
