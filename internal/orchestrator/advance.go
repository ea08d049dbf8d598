package orchestrator

import (
	"context"
	"fmt"

	"github.com/dioko-ai/bob/internal/agent"
	"github.com/dioko-ai/bob/internal/domain"
	boberrors "github.com/dioko-ai/bob/internal/errors"
	"github.com/dioko-ai/bob/internal/prompts"
)

// Advance performs one logical step of the pipeline: ask the engine for the
// next action; when it is a run, execute the agent, apply the verdict, and
// persist one durable batch. The returned action is the observed one — a
// run_task action carries the task that actually ran, and agent failures
// surface through the state machine, not as errors.
//
// Calls for the same session must not overlap; the session lock plus the
// caller's single-threaded loop enforce this.
func (s *Service) Advance(ctx context.Context, st *State) (domain.Action, error) {
	// Reconcile interrupted runs left on disk before scheduling.
	if recovered, err := s.recover(st); err != nil {
		return domain.Action{}, err
	} else if recovered {
		s.logger.Info().Msg("recovered interrupted run before advancing")
	}

	action := s.engine.Next(st.Graph, st.Ledger, st.Rolling)
	if action.Type != domain.ActionRunTask {
		return action, nil
	}

	task, ok := st.Graph.ByID(action.TaskID)
	if !ok {
		return domain.Action{}, fmt.Errorf("%w: scheduled task %q missing from graph", boberrors.ErrInternal, action.TaskID)
	}

	// Mark the task running and persist the claim so a crash mid-run is
	// observable on reopen.
	g, err := s.engine.Start(st.Graph, task.ID)
	if err != nil {
		return domain.Action{}, err
	}
	st.Graph = g
	if err := s.persist(st); err != nil {
		return domain.Action{}, err
	}

	prompt := prompts.ForRole(task.Kind)(prompts.Input{
		Task:           task,
		Scope:          scopeOf(st.Graph, task),
		Attempt:        action.PromptContext.Attempt,
		PriorFailures:  action.PromptContext.PriorFailures,
		RollingContext: action.PromptContext.RollingContext,
		TaskTree:       treeText(st.Graph),
		ProjectInfo:    s.readProjectInfo(st),
	})

	runner, err := s.runnerFor(task.Kind)
	if err != nil {
		return domain.Action{}, err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("role", task.Kind.String()).
		Int("attempt", action.PromptContext.Attempt).
		Msg("running task")

	verdict, runErr := runner.Run(ctx, task.Kind, prompt, agent.RunContext{
		SessionDir:  st.Handle.Dir(),
		Cwd:         st.Meta.Cwd,
		TestCommand: st.Meta.TestCommand,
	})
	if runErr != nil {
		// The agent could not run at all; revert the claim so a fresh
		// advance can retry without consuming an attempt.
		g, ledger, cancelErr := s.engine.Cancel(st.Graph, st.Ledger, task.ID)
		if cancelErr == nil {
			st.Graph, st.Ledger = g, ledger
			_ = s.persist(st)
		}
		return domain.Action{}, runErr
	}

	g, ledger, events, err := s.engine.Apply(st.Graph, st.Ledger, task.ID, verdict)
	if err != nil {
		return domain.Action{}, err
	}
	st.Graph, st.Ledger = g, ledger

	s.pushContext(st, task.ID, describeVerdict(task.Kind, task, verdict))
	for _, ev := range events {
		s.logger.Info().Str("task_id", ev.TaskID).Msg(ev.Summary)
	}

	if err := s.persist(st); err != nil {
		return domain.Action{}, err
	}
	return action, nil
}

// RunToCompletion advances until the engine reports done or blocked, or ctx
// is cancelled. It returns the final action.
func (s *Service) RunToCompletion(ctx context.Context, st *State) (domain.Action, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Action{}, err
		}
		action, err := s.Advance(ctx, st)
		if err != nil {
			return domain.Action{}, err
		}
		if action.Type != domain.ActionRunTask {
			return action, nil
		}
	}
}

// recover reverts any task left running on disk (crash or interrupt) to
// pending and persists the reconciled state.
func (s *Service) recover(st *State) (bool, error) {
	g, ledger, events := s.engine.RecoverRunning(st.Graph, st.Ledger)
	if len(events) == 0 {
		return false, nil
	}
	st.Graph, st.Ledger = g, ledger
	for _, ev := range events {
		s.pushContext(st, ev.TaskID, ev.Summary)
	}
	if err := s.persist(st); err != nil {
		return false, err
	}
	return true, nil
}
