package worker

import (
	"sync"

	"github.com/tanq16/telegrab/internal/types"
)

// progressRelay is a single-slot handoff between the engine's execution
// context and the worker's notification ticker. The engine stores events as
// fast as it likes; only the latest survives, and reported percentages never
// go backwards. Events arriving faster than the ticker drains are dropped,
// not queued.
type progressRelay struct {
	mu        sync.Mutex
	latest    types.Progress
	hasNew    bool
	highWater float64
}

func (r *progressRelay) Store(p types.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Percent < r.highWater {
		return
	}
	r.highWater = p.Percent
	r.latest = p
	r.hasNew = true
}

func (r *progressRelay) Take() (types.Progress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasNew {
		return types.Progress{}, false
	}
	r.hasNew = false
	return r.latest, true
}
