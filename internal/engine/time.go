// Package engine implements the discrete-event scheduler that drives every
// PONS simulation: a single-threaded min-heap of timestamped tasks, with an
// optional realtime pacing layer for wall-clock-synchronised runs.
package engine

// Time is simulated time in seconds since the start of a run. A float64
// (rather than time.Duration) matches the unit contacts and TTLs are
// specified in throughout the external interfaces (contact plan files,
// message generator configs, scenario literals).
type Time float64

// Seconds returns t as a plain float64, useful at API boundaries that
// predate this type (JSON payloads, contact plan grammars).
func (t Time) Seconds() float64 { return float64(t) }
