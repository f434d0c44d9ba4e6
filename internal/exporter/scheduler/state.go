package scheduler

import (
	"context"
	"time"

	"github.com/looplab/fsm"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
	fsmutil "github.com/autopeer-io/tesla-exporter/internal/pkg/util/fsm"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
)

// Events of the vehicle state machine. Observe events carry a state reported by the
// API; lost is fired when an online vehicle stops answering.
const (
	EventObserveOnline  = "observe_online"
	EventObserveAsleep  = "observe_asleep"
	EventObserveOffline = "observe_offline"
	EventObserveUnknown = "observe_unknown"
	EventLost           = "lost"
)

var allStates = []string{
	string(model.StateUnknown),
	string(model.StateOnline),
	string(model.StateAsleep),
	string(model.StateOffline),
}

// StateMachine tracks the operational state of the vehicle. It only moves on signals
// from poll results. It is owned by the poll loop and not safe for concurrent use.
type StateMachine struct {
	fsm    *fsm.FSM
	clock  clock.PassiveClock
	since  time.Time
	logger log.Logger
}

// NewStateMachine starts in the unknown state.
func NewStateMachine(clk clock.PassiveClock) *StateMachine {
	sm := &StateMachine{
		clock:  clk,
		since:  clk.Now(),
		logger: log.WithName("scheduler"),
	}

	sm.fsm = fsm.NewFSM(
		string(model.StateUnknown),
		fsm.Events{
			{Name: EventObserveOnline, Src: allStates, Dst: string(model.StateOnline)},
			{Name: EventObserveAsleep, Src: allStates, Dst: string(model.StateAsleep)},
			{Name: EventObserveOffline, Src: allStates, Dst: string(model.StateOffline)},
			{Name: EventObserveUnknown, Src: allStates, Dst: string(model.StateUnknown)},
			{Name: EventLost, Src: []string{string(model.StateOnline)}, Dst: string(model.StateUnknown)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				sm.since = sm.clock.Now()
				sm.logger.Info("Vehicle state changed", "from", e.Src, "to", e.Dst, "event", e.Event)
			},
		},
	)
	return sm
}

// Observe applies a state reported by the API and reports whether it changed.
func (sm *StateMachine) Observe(ctx context.Context, state model.VehicleState) bool {
	return sm.fire(ctx, observeEvent(state))
}

// Lost moves an online vehicle to unknown after a failed fetch.
func (sm *StateMachine) Lost(ctx context.Context) bool {
	return sm.fire(ctx, EventLost)
}

// Current returns the current state.
func (sm *StateMachine) Current() model.VehicleState {
	return model.VehicleState(sm.fsm.Current())
}

// Record returns the current state with the time it was entered.
func (sm *StateMachine) Record() model.StateRecord {
	return model.StateRecord{State: sm.Current(), LastTransitionTime: sm.since}
}

func (sm *StateMachine) fire(ctx context.Context, event string) bool {
	changed, err := fsmutil.Fire(ctx, sm.fsm, event)
	if err != nil {
		sm.logger.Error(err, "Vehicle state transition failed", "event", event)
	}
	return changed
}

func observeEvent(state model.VehicleState) string {
	switch state {
	case model.StateOnline:
		return EventObserveOnline
	case model.StateAsleep:
		return EventObserveAsleep
	case model.StateOffline:
		return EventObserveOffline
	default:
		return EventObserveUnknown
	}
}
