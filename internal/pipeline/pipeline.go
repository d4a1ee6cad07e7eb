// Package pipeline is the single-step executor: a registry from state to
// handler, and a Step call that advances a job by exactly one state. It
// never loops — the worker runtime owns the loop, which is what makes
// pause/resume/cancel possible without coroutines.
package pipeline

import (
	"context"
	"fmt"

	"truetrack/internal/job"
	"truetrack/internal/state"
)

// Handler performs the work for one state and must leave the job in a new
// current_state (a new state, a pause state, or FAILED via a returned
// *state.Error).
type Handler func(ctx context.Context, j *job.Job) error

// Pipeline maps each runnable state to the handler that advances it.
type Pipeline struct {
	handlers map[state.State]Handler
}

// New builds an empty registry.
func New() *Pipeline {
	return &Pipeline{handlers: make(map[state.State]Handler)}
}

// Register binds a handler to a state. Terminal and pause states must never
// be registered: Step treats them as no-ops by contract.
func (p *Pipeline) Register(s state.State, h Handler) {
	p.handlers[s] = h
}

// Step executes exactly one handler for the job's current state. Terminal
// and pause states are no-ops. A handler that returns nil without advancing
// current_state is a contract violation surfaced as NO_STATE_CHANGE.
func (p *Pipeline) Step(ctx context.Context, j *job.Job) error {
	current := j.CurrentState
	if current.IsTerminal() || current.IsPause() {
		return nil
	}

	h, ok := p.handlers[current]
	if !ok {
		return state.NewError("NO_HANDLER", state.Content, fmt.Sprintf("no handler registered for state %s", current))
	}

	if err := h(ctx, j); err != nil {
		if perr, ok := err.(*state.Error); ok {
			return perr
		}
		return err
	}

	if j.CurrentState == current {
		return state.NewError("NO_STATE_CHANGE", state.Content, fmt.Sprintf("handler for %s did not advance state", current))
	}
	return nil
}
