// Package netplan implements the contact/topology layer: time-indexed link
// availability (Contact, ContactPlan) and its composition with a static
// graph (NetworkPlan).
package netplan

import (
	"errors"

	"repram/internal/engine"
	"repram/internal/message"
)

// ErrNoContact is returned by TxTimeForContact when no contact covers
// (t, a, b).
// Callers (Node.Send) fold this into a silent drop rather than propagating
// a fatal error.
var ErrNoContact = errors.New("netplan: no active contact")

// Contact is a value object (equality by field) describing a scheduled or
// always-on link between two nodes.
type Contact struct {
	Start  engine.Time
	End    engine.Time // < 0 means fixed/infinite
	A, B   message.NodeID
	BW     float64 // bits/s; 0 = unbounded
	Loss   float64 // [0,1]
	Delay  engine.Time
	Jitter engine.Time
}

// Fixed reports whether this contact is always-on (end < 0).
func (c Contact) Fixed() bool { return c.End < 0 }

// Active reports whether the contact covers simulated time t.
func (c Contact) Active(t engine.Time) bool {
	if c.Fixed() {
		return t >= c.Start
	}
	return t >= c.Start && t <= c.End
}

// Pair reports whether the contact connects the unordered pair {x, y}, in
// either direction.
func (c Contact) Pair(x, y message.NodeID) bool {
	return (c.A == x && c.B == y) || (c.A == y && c.B == x)
}

// Matches reports whether the contact serves a directed request from a to
// b, honouring symmetric (plan-level) semantics.
func (c Contact) Matches(a, b message.NodeID, symmetric bool) bool {
	if c.A == a && c.B == b {
		return true
	}
	if symmetric && c.A == b && c.B == a {
		return true
	}
	return false
}

// floorSecondsPerByte is the degenerate per-byte cost used when a contact's
// bandwidth is 0 ("unbounded" is modelled as a small fixed floor rather
// than literally instantaneous).
const floorSecondsPerByte = 1.0 / 1_000_000_000

// TxTime returns the transmission duration for sending size bytes over c.
// jitterSample is a pre-drawn uniform(-0.5,0.5) sample scaled by the
// contact's Jitter; pass 0 for deterministic callers (fixed/loop-free unit
// tests).
func (c Contact) TxTime(size int, jitterSample float64) engine.Time {
	var base engine.Time
	if c.BW <= 0 {
		base = engine.Time(float64(size) * floorSecondsPerByte)
	} else {
		base = engine.Time(float64(size) / c.BW)
	}
	j := engine.Time(jitterSample) * c.Jitter
	return base + c.Delay/1000 + j
}
