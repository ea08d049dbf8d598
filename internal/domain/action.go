package domain

import "github.com/dioko-ai/bob/internal/constants"

// ActionType discriminates the engine's next-action variants.
type ActionType string

// Action type constants.
const (
	// ActionRunTask instructs the orchestrator to run one task.
	ActionRunTask ActionType = "run_task"

	// ActionDone indicates no further work; OverallFailed distinguishes a
	// failed session from a clean finish.
	ActionDone ActionType = "done"

	// ActionBlocked indicates the engine cannot make progress, with a reason.
	ActionBlocked ActionType = "blocked"
)

// Action is the tagged value returned by the workflow engine.
type Action struct {
	// Type selects the variant.
	Type ActionType `json:"type"`

	// TaskID is set for run_task actions.
	TaskID string `json:"task_id,omitempty"`

	// Role is the agent role for run_task actions (derived from kind).
	Role constants.TaskKind `json:"role,omitempty"`

	// PromptContext carries the raw retry/rolling-context data the prompt
	// composer consumes. The engine never composes prompt text itself.
	PromptContext *PromptContext `json:"prompt_context,omitempty"`

	// OverallFailed is set on done actions when failure propagation reached
	// a terminal state.
	OverallFailed bool `json:"overall_failed,omitempty"`

	// Reason explains blocked actions.
	Reason string `json:"reason,omitempty"`
}

// PromptContext is the raw data supplied to the prompt composer for one run:
// the last K failure summaries for the same task plus recent rolling-context
// entries. K is constants.RetryContextDepth.
type PromptContext struct {
	// Attempt is the 1-based attempt number about to run.
	Attempt int `json:"attempt"`

	// PriorFailures are the most recent failure records for this task,
	// oldest first, at most constants.RetryContextDepth of them.
	PriorFailures []FailureRecord `json:"prior_failures,omitempty"`

	// RollingContext are the most recent context entries, oldest first.
	RollingContext []ContextEntry `json:"rolling_context,omitempty"`
}

// RunTaskAction constructs a run_task action.
func RunTaskAction(taskID string, role constants.TaskKind, pc *PromptContext) Action {
	return Action{Type: ActionRunTask, TaskID: taskID, Role: role, PromptContext: pc}
}

// DoneAction constructs a done action.
func DoneAction(overallFailed bool) Action {
	return Action{Type: ActionDone, OverallFailed: overallFailed}
}

// BlockedAction constructs a blocked action with a reason.
func BlockedAction(reason string) Action {
	return Action{Type: ActionBlocked, Reason: reason}
}
