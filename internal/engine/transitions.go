package engine

import (
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
	"github.com/OdaNilseng/FLSworkflow/pkg/util"
)

// StateTransitions maps states to their set of valid next states
type StateTransitions[T comparable] map[T]util.Set[T]

var (
	runTransitions = StateTransitions[api.RunStatus]{
		api.RunPending: util.SetOf(
			api.RunRunning,
		),
		api.RunRunning: util.SetOf(
			api.RunSucceeded,
			api.RunFailed,
		),
		api.RunSucceeded: {},
		api.RunFailed:    {},
	}

	taskTransitions = StateTransitions[api.TaskStatus]{
		api.TaskPending: util.SetOf(
			api.TaskReady,
			api.TaskSkipped,
		),
		api.TaskReady: util.SetOf(
			api.TaskRunning,
			api.TaskSkipped,
		),
		api.TaskRunning: util.SetOf(
			api.TaskSucceeded,
			api.TaskFailed,
		),
		api.TaskSucceeded: {},
		api.TaskFailed:    {},
		api.TaskSkipped:   {},
	}
)

// CanTransition returns whether transition from one state to another is valid
func (t StateTransitions[T]) CanTransition(from, to T) bool {
	allowed, ok := t[from]
	if !ok {
		return false
	}
	return allowed.Contains(to)
}

// IsTerminal returns true if the state has no valid transitions
func (t StateTransitions[T]) IsTerminal(state T) bool {
	allowed, ok := t[state]
	return ok && allowed.IsEmpty()
}
