package netplan

import (
	"math"
	"math/rand"
	"sort"

	"repram/internal/engine"
	"repram/internal/logging"
	"repram/internal/message"
)

// ContactPlan is an ordered (by Start) sequence of contacts, with loop and
// symmetric flags, answering at/next_event/has_contact/tx_time in
// sub-linear time via a moving-window cache.
type ContactPlan struct {
	contacts  []Contact
	Symmetric bool
	Loop      bool

	maxEnd engine.Time // largest finite End seen; wrap point when Loop

	lastAtT   engine.Time
	lastAt    []Contact
	lastAtSet bool
	lastIdx   int // first contact index whose End >= lastAtT

	rng         *rand.Rand
	lastCleanup engine.Time
}

// NewContactPlan builds a plan from an unordered contact slice, sorting by
// Start once up front; re-sorting an already-sorted plan is a no-op.
func NewContactPlan(contacts []Contact, symmetric, loop bool, seed int64) *ContactPlan {
	cp := &ContactPlan{
		Symmetric: symmetric,
		Loop:      loop,
		rng:       rand.New(rand.NewSource(seed)),
	}
	cp.contacts = append(cp.contacts, contacts...)
	cp.sort()
	return cp
}

func (cp *ContactPlan) sort() {
	sort.SliceStable(cp.contacts, func(i, j int) bool {
		return cp.contacts[i].Start < cp.contacts[j].Start
	})
	cp.maxEnd = 0
	for _, c := range cp.contacts {
		if !c.Fixed() && c.End > cp.maxEnd {
			cp.maxEnd = c.End
		}
	}
	cp.invalidateCache()
}

func (cp *ContactPlan) invalidateCache() {
	cp.lastAtSet = false
	cp.lastIdx = 0
}

// Add appends a contact and invalidates the sort-dependent cache.
func (cp *ContactPlan) Add(c Contact) {
	cp.contacts = append(cp.contacts, c)
	cp.sort()
}

// Contacts returns a copy of the plan's contact slice for inspection (event
// log dumps, round-trip tests).
func (cp *ContactPlan) Contacts() []Contact {
	out := make([]Contact, len(cp.contacts))
	copy(out, cp.contacts)
	return out
}

// FixedLinks returns contacts with End < 0 (always-on).
func (cp *ContactPlan) FixedLinks() []Contact {
	var out []Contact
	for _, c := range cp.contacts {
		if c.Fixed() {
			out = append(out, c)
		}
	}
	return out
}

func (cp *ContactPlan) wrap(t engine.Time) engine.Time {
	if cp.Loop && cp.maxEnd > 0 && t > cp.maxEnd {
		return engine.Time(math.Mod(float64(t), float64(cp.maxEnd)))
	}
	return t
}

// At returns the contacts active at time t (start <= t <= end), honouring
// Loop wraparound. Results are memoised in lastAt for repeat queries at the
// same instant.
func (cp *ContactPlan) At(t engine.Time) []Contact {
	wt := cp.wrap(t)
	cp.maybeCleanup(t)

	if cp.lastAtSet && cp.lastAtT == wt {
		return cp.lastAt
	}

	// Bisect to the first contact whose Start could still be <= wt; contacts
	// are sorted by Start, so a binary search bounds the scan.
	idx := sort.Search(len(cp.contacts), func(i int) bool {
		return cp.contacts[i].Start > wt
	})

	// Every contact before lastIdx had already ended by lastAtT, so a query
	// that has not moved backwards in time can start scanning there.
	from := 0
	if cp.lastAtSet && wt >= cp.lastAtT {
		from = cp.lastIdx
	}
	first := idx
	var active []Contact
	for i := from; i < idx; i++ {
		c := cp.contacts[i]
		if c.Fixed() || c.End >= wt {
			if first == idx {
				first = i
			}
			active = append(active, c)
		}
	}

	cp.lastIdx = first
	cp.lastAtT = wt
	cp.lastAt = active
	cp.lastAtSet = true
	return active
}

// NextEvent returns the smallest time strictly greater than t at which some
// contact's Start or End occurs (wrapped per Loop), or false if none exists.
// Used by the scheduler to sleep efficiently until the next topology
// change.
func (cp *ContactPlan) NextEvent(t engine.Time) (engine.Time, bool) {
	wt := cp.wrap(t)
	best := engine.Time(0)
	found := false
	consider := func(candidate engine.Time) {
		if candidate > wt && (!found || candidate < best) {
			best = candidate
			found = true
		}
	}
	for _, c := range cp.contacts {
		consider(c.Start)
		if !c.Fixed() {
			consider(c.End)
		}
	}
	if !found && cp.Loop && cp.maxEnd > 0 {
		// Wrapping: the earliest event of the next cycle.
		for _, c := range cp.contacts {
			consider(c.Start + cp.maxEnd)
		}
	}
	if found {
		// Shift a wrapped result back onto t's own cycle.
		best += t - wt
	}
	return best, found
}

// HasContact reports whether some contact covers (t, a, b), honouring
// Symmetric.
func (cp *ContactPlan) HasContact(t engine.Time, a, b message.NodeID) bool {
	for _, c := range cp.At(t) {
		if c.Matches(a, b, cp.Symmetric) {
			return true
		}
	}
	return false
}

func (cp *ContactPlan) find(t engine.Time, a, b message.NodeID) (Contact, bool) {
	for _, c := range cp.At(t) {
		if c.Matches(a, b, cp.Symmetric) {
			return c, true
		}
	}
	return Contact{}, false
}

// LossForContact returns the configured loss probability for (t, a, b), or
// 0 if no such contact exists.
func (cp *ContactPlan) LossForContact(t engine.Time, a, b message.NodeID) float64 {
	if c, ok := cp.find(t, a, b); ok {
		return c.Loss
	}
	return 0
}

// TxTimeForContact returns the transmission time for size bytes over the
// contact covering (t, a, b). Returns ErrNoContact if none does.
func (cp *ContactPlan) TxTimeForContact(t engine.Time, a, b message.NodeID, size int) (engine.Time, error) {
	c, ok := cp.find(t, a, b)
	if !ok {
		return 0, ErrNoContact
	}
	jitter := 0.0
	if c.Jitter != 0 {
		jitter = cp.rng.Float64() - 0.5
	}
	return c.TxTime(size, jitter), nil
}

// maybeCleanup drops expired, non-fixed contacts when queried at an instant
// that is a multiple of maxEnd/10. Never runs when Loop is set (wrapped
// contacts stay relevant forever).
func (cp *ContactPlan) maybeCleanup(t engine.Time) {
	if cp.Loop || cp.maxEnd <= 0 {
		return
	}
	step := cp.maxEnd / 10
	if step <= 0 {
		return
	}
	if math.Mod(float64(t), float64(step)) != 0 {
		return
	}
	if t == cp.lastCleanup {
		return
	}
	cp.lastCleanup = t

	kept := cp.contacts[:0:0]
	dropped := 0
	for _, c := range cp.contacts {
		if !c.Fixed() && c.End < t {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	if dropped > 0 {
		cp.contacts = kept
		logging.Debug("netplan: cleanup at t=%.2f dropped %d expired contacts", float64(t), dropped)
		cp.invalidateCache()
	}
}
