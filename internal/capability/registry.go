package capability

import (
	"fmt"

	boberrors "github.com/dioko-ai/bob/internal/errors"
)

// OpType classifies a capability's effect on session state.
type OpType string

// Operation types.
const (
	// OpPure computes from its payload alone.
	OpPure OpType = "pure"

	// OpRead reads session state without modifying it.
	OpRead OpType = "read"

	// OpWrite modifies session state.
	OpWrite OpType = "write"
)

// Descriptor describes one capability for introspection. The request and
// response schemas are human-readable summaries, not machine schemas.
type Descriptor struct {
	Name           string `json:"name"`
	Op             OpType `json:"op"`
	RequestSchema  string `json:"request_schema"`
	ResponseSchema string `json:"response_schema"`
	ErrorCodes     []Code `json:"error_codes"`
}

// registry is the static capability list. Dispatch is a tagged switch, not
// runtime reflection; this table only feeds introspection.
var registry = []Descriptor{ //nolint:gochecknoglobals // Static capability table
	{Name: "capability.list", Op: OpPure, RequestSchema: "{}", ResponseSchema: "{capabilities: [descriptor]}", ErrorCodes: []Code{}},
	{Name: "capability.get", Op: OpPure, RequestSchema: "{name}", ResponseSchema: "{descriptor}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound}},

	{Name: "app.prepare_master_prompt", Op: OpRead, RequestSchema: "{session, message}", ResponseSchema: "{text}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure, CodeValidationFailed}},
	{Name: "app.prepare_planner_prompt", Op: OpRead, RequestSchema: "{session, message, planner_md, project_info_md}", ResponseSchema: "{text}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure, CodeValidationFailed}},
	{Name: "app.prepare_attach_docs_prompt", Op: OpRead, RequestSchema: "{session, tasks}", ResponseSchema: "{text}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure, CodeValidationFailed}},

	{Name: "workflow.validate_tasks", Op: OpPure, RequestSchema: "{tasks}", ResponseSchema: "{tasks}", ErrorCodes: []Code{CodeInvalidRequest, CodeValidationFailed}},
	{Name: "workflow.right_pane_view", Op: OpPure, RequestSchema: "{tasks, width}", ResponseSchema: "{lines, toggles}", ErrorCodes: []Code{CodeInvalidRequest, CodeValidationFailed}},

	{Name: "session.init", Op: OpWrite, RequestSchema: "{cwd, title?, test_command?, backend?}", ResponseSchema: "{session_id, dir}", ErrorCodes: []Code{CodeInvalidRequest, CodeIOFailure}},
	{Name: "session.open", Op: OpRead, RequestSchema: "{session}", ResponseSchema: "{meta}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure}},
	{Name: "session.list", Op: OpRead, RequestSchema: "{}", ResponseSchema: "{sessions: [summary]}", ErrorCodes: []Code{CodeIOFailure}},
	{Name: "session.read_tasks", Op: OpRead, RequestSchema: "{session}", ResponseSchema: "{tasks}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure, CodeValidationFailed}},
	{Name: "session.read_planner", Op: OpRead, RequestSchema: "{session}", ResponseSchema: "{markdown}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure}},
	{Name: "session.read_rolling_context", Op: OpRead, RequestSchema: "{session}", ResponseSchema: "{entries}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure}},
	{Name: "session.write_rolling_context", Op: OpWrite, RequestSchema: "{session, entries}", ResponseSchema: "{count}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure}},
	{Name: "session.read_task_fails", Op: OpRead, RequestSchema: "{session}", ResponseSchema: "{entries}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure}},
	{Name: "session.append_task_fails", Op: OpWrite, RequestSchema: "{session, entries}", ResponseSchema: "{count}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure}},
	{Name: "session.read_project_info", Op: OpRead, RequestSchema: "{session}", ResponseSchema: "{markdown}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure}},
	{Name: "session.write_project_info", Op: OpWrite, RequestSchema: "{session, markdown}", ResponseSchema: "{}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure}},
	{Name: "session.read_session_meta", Op: OpRead, RequestSchema: "{session}", ResponseSchema: "{meta}", ErrorCodes: []Code{CodeInvalidRequest, CodeNotFound, CodeConflict, CodeIOFailure}},
}

// List returns the capability descriptors in registration order.
func List() []Descriptor {
	out := make([]Descriptor, len(registry))
	copy(out, registry)
	return out
}

// Get returns the descriptor for a capability name.
func Get(name string) (Descriptor, error) {
	for _, d := range registry {
		if d.Name == name {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %q", boberrors.ErrCapabilityNotFound, name)
}
