// Package store implements the per-router message buffer: a capacity-bounded
// collection with expiry sweeping and smallest-oldest eviction.
package store

import (
	"errors"
	"sort"

	"repram/internal/engine"
	"repram/internal/message"
)

// ErrStoreFull is returned by Add when the message is larger than the
// store's entire capacity, so no amount of eviction could make room.
var ErrStoreFull = errors.New("store: message exceeds capacity")

// Reason distinguishes why a message left the store, for telemetry.
type Reason int

const (
	ReasonDelivered Reason = iota
	ReasonEvicted
	ReasonExpired
	ReasonPolicy
)

func (r Reason) String() string {
	switch r {
	case ReasonDelivered:
		return "delivered"
	case ReasonEvicted:
		return "evicted"
	case ReasonExpired:
		return "expired"
	case ReasonPolicy:
		return "policy"
	default:
		return "unknown"
	}
}

// Store is a capacity-bounded buffer of messages, run single-threaded as
// part of a router. Capacity 0 means unbounded. There is no internal lock:
// a Store is only ever touched from the simulation's single goroutine.
type Store struct {
	capacity int
	used     int
	items    map[string]*message.Message
}

// New returns an empty store with the given byte capacity (0 = unbounded).
func New(capacity int) *Store {
	return &Store{
		capacity: capacity,
		items:    make(map[string]*message.Message),
	}
}

// Used returns the sum of Size over all currently stored messages.
func (s *Store) Used() int { return s.used }

// Capacity returns the configured byte capacity (0 = unbounded).
func (s *Store) Capacity() int { return s.capacity }

// Len returns the number of messages currently stored.
func (s *Store) Len() int { return len(s.items) }

// Get returns the message with the given unique id, if present.
func (s *Store) Get(uniqueID string) (*message.Message, bool) {
	m, ok := s.items[uniqueID]
	return m, ok
}

// Has reports whether a message with the given unique id is stored.
func (s *Store) Has(uniqueID string) bool {
	_, ok := s.items[uniqueID]
	return ok
}

// All returns every currently stored message, in no particular order.
func (s *Store) All() []*message.Message {
	out := make([]*message.Message, 0, len(s.items))
	for _, m := range s.items {
		out = append(out, m)
	}
	return out
}

// Departure is one message leaving the store as a side effect of Add,
// tagged with why, so callers can route telemetry correctly (an expiry is
// not an eviction).
type Departure struct {
	Message *message.Message
	Reason  Reason
}

// SweepExpired removes every message expired as of now and returns them.
func (s *Store) SweepExpired(now engine.Time) (dropped []*message.Message) {
	for id, m := range s.items {
		if m.IsExpired(now) {
			delete(s.items, id)
			s.used -= m.Size
			dropped = append(dropped, m)
		}
	}
	return dropped
}

// Add inserts m, first sweeping expired messages and then evicting, in
// (size, created) ascending order, until m fits. If m's own size exceeds
// capacity, it is rejected with ErrStoreFull regardless of eviction.
// Returns every message that left the store to make room, tagged with why.
func (s *Store) Add(now engine.Time, m *message.Message) (departed []Departure, err error) {
	if s.capacity > 0 && m.Size > s.capacity {
		return nil, ErrStoreFull
	}

	if old, ok := s.items[m.UniqueID()]; ok {
		s.used -= old.Size
		delete(s.items, m.UniqueID())
	}

	for _, dropped := range s.SweepExpired(now) {
		departed = append(departed, Departure{Message: dropped, Reason: ReasonExpired})
	}

	if s.capacity > 0 {
		for s.used+m.Size > s.capacity {
			victim, ok := s.smallestOldest()
			if !ok {
				break
			}
			delete(s.items, victim.UniqueID())
			s.used -= victim.Size
			departed = append(departed, Departure{Message: victim, Reason: ReasonEvicted})
		}
	}

	s.items[m.UniqueID()] = m
	s.used += m.Size
	return departed, nil
}

// Remove deletes the message with the given unique id, if present,
// returning it and true on success.
func (s *Store) Remove(uniqueID string) (*message.Message, bool) {
	m, ok := s.items[uniqueID]
	if !ok {
		return nil, false
	}
	delete(s.items, uniqueID)
	s.used -= m.Size
	return m, true
}

func (s *Store) smallestOldest() (*message.Message, bool) {
	if len(s.items) == 0 {
		return nil, false
	}
	candidates := s.All()
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Size != candidates[j].Size {
			return candidates[i].Size < candidates[j].Size
		}
		return candidates[i].Created < candidates[j].Created
	})
	return candidates[0], true
}
