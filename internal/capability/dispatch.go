package capability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
	"github.com/dioko-ai/bob/internal/orchestrator"
	"github.com/dioko-ai/bob/internal/session"
	"github.com/dioko-ai/bob/internal/taskgraph"
)

// Dispatcher is the single entry point every transport adapter calls. It
// resolves the capability name with a tagged switch and routes to the
// store, the task graph model, or the orchestration service. Sessions are
// opened per request and closed before the response is returned.
type Dispatcher struct {
	store *session.Store
	svc   *orchestrator.Service
}

// NewDispatcher creates a Dispatcher over a store and orchestration service.
func NewDispatcher(store *session.Store, svc *orchestrator.Service) *Dispatcher {
	return &Dispatcher{store: store, svc: svc}
}

// Dispatch executes one request and always returns a response envelope;
// domain errors are encoded in the envelope, never panicked or dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, req RequestEnvelope) ResponseEnvelope {
	if req.Capability == "" {
		return ErrResponse(req, NewError(CodeInvalidRequest, "capability name is required"))
	}
	data, err := d.route(ctx, req)
	if err != nil {
		return ErrResponse(req, FromError(err))
	}
	return OkResponse(req, data)
}

//nolint:gocyclo // One arm per capability; splitting hides the surface.
func (d *Dispatcher) route(ctx context.Context, req RequestEnvelope) (any, error) {
	switch req.Capability {
	case "capability.list":
		return map[string]any{"capabilities": List()}, nil

	case "capability.get":
		var p struct {
			Name string `json:"name"`
		}
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		desc, err := Get(p.Name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"descriptor": desc}, nil

	case "app.prepare_master_prompt":
		var p struct {
			Session string `json:"session"`
			Message string `json:"message"`
		}
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		var text string
		err := d.withState(ctx, p.Session, func(st *orchestrator.State) error {
			text = d.svc.PrepareMasterPrompt(st, p.Message)
			return nil
		})
		return map[string]string{"text": text}, err

	case "app.prepare_planner_prompt":
		var p struct {
			Session       string `json:"session"`
			Message       string `json:"message"`
			PlannerMD     string `json:"planner_md"`
			ProjectInfoMD string `json:"project_info_md"`
		}
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		var text string
		err := d.withState(ctx, p.Session, func(st *orchestrator.State) error {
			text = d.svc.PreparePlannerPrompt(st, p.Message, p.PlannerMD, p.ProjectInfoMD)
			return nil
		})
		return map[string]string{"text": text}, err

	case "app.prepare_attach_docs_prompt":
		var p struct {
			Session string        `json:"session"`
			Tasks   []domain.Task `json:"tasks"`
		}
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		var text string
		err := d.withState(ctx, p.Session, func(st *orchestrator.State) error {
			text = d.svc.PrepareAttachDocsPrompt(st, p.Tasks)
			return nil
		})
		return map[string]string{"text": text}, err

	case "workflow.validate_tasks":
		var p struct {
			Tasks json.RawMessage `json:"tasks"`
		}
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		g, err := taskgraph.ValidateRaw(p.Tasks)
		if err != nil {
			return nil, err
		}
		return map[string]any{"tasks": g.Tasks()}, nil

	case "workflow.right_pane_view":
		var p struct {
			Tasks json.RawMessage `json:"tasks"`
			Width int             `json:"width"`
		}
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		g, err := taskgraph.ValidateRaw(p.Tasks)
		if err != nil {
			return nil, err
		}
		return taskgraph.RightPaneView(g, p.Width), nil

	case "session.init":
		var p struct {
			Cwd         string `json:"cwd"`
			Title       string `json:"title"`
			TestCommand string `json:"test_command"`
			Backend     string `json:"backend"`
		}
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		h, err := d.store.Init(ctx, session.InitOptions{
			Cwd: p.Cwd, Title: p.Title, TestCommand: p.TestCommand, Backend: p.Backend,
		})
		if err != nil {
			return nil, err
		}
		defer closeQuietly(h)
		return map[string]string{"session_id": h.SessionID(), "dir": h.Dir()}, nil

	case "session.open":
		return d.withHandleResult(ctx, req.Payload, func(h *session.Handle) (any, error) {
			meta, err := h.ReadMeta()
			if err != nil {
				return nil, err
			}
			return map[string]any{"meta": meta}, nil
		})

	case "session.list":
		sessions, err := d.store.List(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"sessions": sessions}, nil

	case "session.read_tasks":
		return d.withHandleResult(ctx, req.Payload, func(h *session.Handle) (any, error) {
			raw, err := h.ReadTasksRaw()
			if err != nil {
				return nil, err
			}
			tasks, err := taskgraph.ParseTasks(raw)
			if err != nil {
				return nil, err
			}
			if tasks == nil {
				tasks = []domain.Task{}
			}
			return map[string]any{"tasks": tasks}, nil
		})

	case "session.read_planner":
		return d.withHandleResult(ctx, req.Payload, func(h *session.Handle) (any, error) {
			md, err := h.ReadPlanner()
			if err != nil {
				return nil, err
			}
			return map[string]string{"markdown": md}, nil
		})

	case "session.read_rolling_context":
		return d.withHandleResult(ctx, req.Payload, func(h *session.Handle) (any, error) {
			entries, err := h.ReadRollingContext()
			if err != nil {
				return nil, err
			}
			return map[string]any{"entries": entries}, nil
		})

	case "session.write_rolling_context":
		var p struct {
			Session string                `json:"session"`
			Entries []domain.ContextEntry `json:"entries"`
		}
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		return d.withSessionResult(ctx, p.Session, func(h *session.Handle) (any, error) {
			if err := h.WriteRollingContext(p.Entries, 0); err != nil {
				return nil, err
			}
			return map[string]int{"count": len(p.Entries)}, nil
		})

	case "session.read_task_fails":
		return d.withHandleResult(ctx, req.Payload, func(h *session.Handle) (any, error) {
			entries, err := h.ReadTaskFails()
			if err != nil {
				return nil, err
			}
			return map[string]any{"entries": entries}, nil
		})

	case "session.append_task_fails":
		var p struct {
			Session string                 `json:"session"`
			Entries []domain.FailureRecord `json:"entries"`
		}
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		return d.withSessionResult(ctx, p.Session, func(h *session.Handle) (any, error) {
			if err := h.AppendTaskFails(p.Entries); err != nil {
				return nil, err
			}
			all, err := h.ReadTaskFails()
			if err != nil {
				return nil, err
			}
			return map[string]int{"count": len(all)}, nil
		})

	case "session.read_project_info":
		return d.withHandleResult(ctx, req.Payload, func(h *session.Handle) (any, error) {
			md, err := h.ReadProjectInfo()
			if err != nil {
				return nil, err
			}
			return map[string]string{"markdown": md}, nil
		})

	case "session.write_project_info":
		var p struct {
			Session  string `json:"session"`
			Markdown string `json:"markdown"`
		}
		if err := decode(req.Payload, &p); err != nil {
			return nil, err
		}
		return d.withSessionResult(ctx, p.Session, func(h *session.Handle) (any, error) {
			return map[string]any{}, h.WriteProjectInfo(p.Markdown)
		})

	case "session.read_session_meta":
		return d.withHandleResult(ctx, req.Payload, func(h *session.Handle) (any, error) {
			meta, err := h.ReadMeta()
			if err != nil {
				return nil, err
			}
			return map[string]any{"meta": meta}, nil
		})

	default:
		return nil, fmt.Errorf("%w: capability %q", boberrors.ErrUnsupported, req.Capability)
	}
}

// withHandleResult decodes the standard {session} payload, opens the
// session, and runs fn.
func (d *Dispatcher) withHandleResult(ctx context.Context, payload json.RawMessage, fn func(*session.Handle) (any, error)) (any, error) {
	var p struct {
		Session string `json:"session"`
	}
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	return d.withSessionResult(ctx, p.Session, fn)
}

func (d *Dispatcher) withSessionResult(ctx context.Context, dirOrID string, fn func(*session.Handle) (any, error)) (any, error) {
	h, err := d.store.Open(ctx, dirOrID)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(h)
	return fn(h)
}

// withState opens a session and loads the orchestrator state for it.
func (d *Dispatcher) withState(ctx context.Context, dirOrID string, fn func(*orchestrator.State) error) error {
	h, err := d.store.Open(ctx, dirOrID)
	if err != nil {
		return err
	}
	defer closeQuietly(h)
	st, err := d.svc.Load(h)
	if err != nil {
		return err
	}
	return fn(st)
}

func closeQuietly(h *session.Handle) {
	_ = h.Close()
}

// decode parses a capability payload, treating malformed JSON as an
// invalid request (argument errors never reach the domain layers).
func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: malformed payload: %s", boberrors.ErrInvalidRequest, err)
	}
	return nil
}
