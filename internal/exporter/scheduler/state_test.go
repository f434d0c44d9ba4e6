package scheduler

import (
	"context"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
)

func TestStateMachine(t *testing.T) {
	ctx := context.Background()
	clk := clocktesting.NewFakeClock(time.Unix(1_700_000_000, 0))
	sm := NewStateMachine(clk)

	if sm.Current() != model.StateUnknown {
		t.Fatalf("initial state = %s", sm.Current())
	}

	// Lost only applies to an online vehicle.
	if sm.Lost(ctx) {
		t.Errorf("Lost() changed state from unknown")
	}

	clk.Step(time.Minute)
	if !sm.Observe(ctx, model.StateOnline) {
		t.Fatalf("Observe(online) did not change state")
	}
	entered := clk.Now()

	clk.Step(time.Minute)
	if sm.Observe(ctx, model.StateOnline) {
		t.Errorf("Observe(online) twice reported a change")
	}
	if got := sm.Record(); got.State != model.StateOnline || !got.LastTransitionTime.Equal(entered) {
		t.Errorf("Record() = %+v, want online since %v", got, entered)
	}

	if !sm.Lost(ctx) || sm.Current() != model.StateUnknown {
		t.Errorf("Lost() from online = %s, want unknown", sm.Current())
	}

	for _, s := range []model.VehicleState{model.StateAsleep, model.StateOffline, model.StateUnknown, model.StateAsleep} {
		sm.Observe(ctx, s)
		if sm.Current() != s {
			t.Errorf("Observe(%s) left state %s", s, sm.Current())
		}
	}
}
