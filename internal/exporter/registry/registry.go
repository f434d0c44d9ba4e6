package registry

import (
	"sync"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
)

// Registry holds the latest vehicle snapshot and exporter health. Writers replace
// them wholesale so a reader never sees a mix of two polls.
type Registry struct {
	mu       sync.RWMutex
	snapshot *model.Snapshot
	health   model.Health
	ready    bool
}

// New returns an empty Registry that is not ready until the first Publish.
func New() *Registry {
	return &Registry{health: model.Health{Errors: map[string]uint64{}}}
}

// Publish swaps in the outcome of a poll attempt. A nil snapshot keeps the previous
// one so that vehicle metrics survive a sleeping vehicle or a failed fetch.
func (r *Registry) Publish(snapshot *model.Snapshot, health model.Health) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snapshot != nil {
		r.snapshot = snapshot
	}
	r.health = health.Clone()
	r.ready = true
}

// Read returns the current snapshot and a copy of the health.
func (r *Registry) Read() (*model.Snapshot, model.Health) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot, r.health.Clone()
}

// Ready reports whether at least one poll attempt has completed.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}
