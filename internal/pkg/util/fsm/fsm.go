package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// Fire triggers event on f and reports whether the state changed. Events that do not
// apply to the current state, or that lead to the state already held, are not errors.
func Fire(ctx context.Context, f *fsm.FSM, event string, args ...any) (bool, error) {
	err := f.Event(ctx, event, args...)
	if err == nil {
		return true, nil
	}
	if IsNoop(err) {
		return false, nil
	}
	return false, err
}

// IsNoop reports whether err only says that the event did not move the machine.
func IsNoop(err error) bool {
	var noTransition fsm.NoTransitionError
	var invalid fsm.InvalidEventError
	return errors.As(err, &noTransition) || errors.As(err, &invalid)
}
