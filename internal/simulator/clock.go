package simulator

import (
	"sync/atomic"

	"repram/internal/engine"
)

// abortableClock wraps a Clock and turns a set abort flag into
// engine.ErrAborted on the next Sync call, which RunUntil propagates out
// of the scheduler's pump loop mid-chunk.
type abortableClock struct {
	inner   engine.Clock
	aborted *atomic.Bool
}

func (c abortableClock) Sync(t engine.Time) error {
	if c.aborted.Load() {
		return engine.ErrAborted
	}
	return c.inner.Sync(t)
}
