package engine

import (
	"fmt"
	"time"
)

// Clock is the capability the Scheduler depends on to translate simulated
// time into (optional) wall-clock pacing.
type Clock interface {
	// Sync blocks until wall-clock time has caught up with simulated time t,
	// or returns an error if the realtime contract was violated (strict mode).
	Sync(t Time) error
}

// Virtual is the default Clock: simulated time advances as fast as the
// scheduler can pop events, with no relation to wall-clock time.
type Virtual struct{}

func (Virtual) Sync(Time) error { return nil }

// Realtime paces event dispatch against the wall clock: event at simulated
// time t is not dispatched until wallStart + Factor*t has passed. In Strict
// mode, a Sync call that finds the wall clock has already overshot t by more
// than one tick of slack returns an error instead of catching up silently.
type Realtime struct {
	Factor     float64       // wall-seconds per simulated-second; 1.0 = real time
	Strict     bool          // if true, overshoot beyond Slack is an error
	Slack      time.Duration // permitted overshoot before Strict raises
	wallStart  time.Time
	started    bool
	sleepUntil func(time.Time)
}

// NewRealtime returns a Realtime clock with sane defaults (Factor 1.0, a
// 50ms slack tick) if factor <= 0.
func NewRealtime(factor float64, strict bool) *Realtime {
	if factor <= 0 {
		factor = 1.0
	}
	return &Realtime{
		Factor: factor,
		Strict: strict,
		Slack:  50 * time.Millisecond,
	}
}

func (r *Realtime) Sync(t Time) error {
	now := time.Now()
	if !r.started {
		r.wallStart = now
		r.started = true
	}
	target := r.wallStart.Add(time.Duration(float64(t) * r.Factor * float64(time.Second)))
	if now.Before(target) {
		sleep := target.Sub(now)
		if r.sleepUntil != nil {
			r.sleepUntil(target)
		} else {
			time.Sleep(sleep)
		}
		return nil
	}

	overshoot := now.Sub(target)
	if r.Strict && overshoot > r.Slack {
		return fmt.Errorf("realtime overshoot: simulated time %.3fs is %v behind wall clock (slack %v)", float64(t), overshoot, r.Slack)
	}
	// Non-strict (or within slack): catch up without sleeping.
	return nil
}
