package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
)

func newMachine() *fsm.FSM {
	return fsm.NewFSM(
		"closed",
		fsm.Events{
			{Name: "open", Src: []string{"closed"}, Dst: "open"},
			{Name: "close", Src: []string{"open"}, Dst: "closed"},
			{Name: "stay", Src: []string{"closed"}, Dst: "closed"},
		},
		fsm.Callbacks{},
	)
}

func TestFire(t *testing.T) {
	ctx := context.Background()

	f := newMachine()
	if changed, err := Fire(ctx, f, "open"); !changed || err != nil {
		t.Fatalf("Fire(open) = %v, %v", changed, err)
	}
	if changed, err := Fire(ctx, f, "open"); changed || err != nil {
		t.Errorf("Fire(open) from open = %v, %v, want noop", changed, err)
	}

	f = newMachine()
	if changed, err := Fire(ctx, f, "stay"); changed || err != nil {
		t.Errorf("Fire(stay) = %v, %v, want noop", changed, err)
	}
}

func TestIsNoop(t *testing.T) {
	f := newMachine()
	err := f.Event(context.Background(), "close")
	if !IsNoop(err) {
		t.Errorf("IsNoop(%v) = false for an event invalid in the current state", err)
	}
	if IsNoop(errors.New("boom")) || IsNoop(nil) {
		t.Error("IsNoop reported a plain error as noop")
	}
}
