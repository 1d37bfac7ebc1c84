// Package router implements the store-and-forward routing core: a shared
// reception/bookkeeping path (Router) plus pluggable forwarding policies
// (DirectDelivery, FirstContact, Epidemic, SprayAndWait, PRoPHET, Static).
package router

import (
	"repram/internal/app"
	"repram/internal/engine"
	"repram/internal/eventlog"
	"repram/internal/message"
	"repram/internal/stats"
	"repram/internal/store"
)

// Sender is the capability a Router uses to hand a message to the link
// layer. A netnode.Node implements this.
type Sender interface {
	Send(now engine.Time, to message.NodeID, msg *message.Message)
}

// NeighborSource reports a node's current neighbours in a stable order. A
// netnode.Node implements this.
type NeighborSource interface {
	Neighbors() []message.NodeID
}

// Lookup resolves a node id to its Router, letting one policy (PRoPHET)
// read another node's routing state. It is read-only and safe under the
// simulator's single-threaded cooperative model.
type Lookup func(message.NodeID) *Router

// Policy is the pluggable forwarding strategy a Router delegates to. All
// methods receive the Router so they can use its shared state (peers,
// history, store) without Router needing a back-reference to itself.
type Policy interface {
	// PrepareNew sets any policy-specific metadata a brand new message
	// needs (e.g. SprayAndWait's copy counter). Called once, before the
	// message first enters the local store.
	PrepareNew(msg *message.Message)
	// OnMsgReceived handles a non-local message: usually stores it and
	// decides how to forward it onward.
	OnMsgReceived(now engine.Time, r *Router, msg *message.Message, from message.NodeID)
	// Forward decides how (if at all) to send msg onward to current peers.
	Forward(now engine.Time, r *Router, msg *message.Message)
	// OnPeerDiscovered is called whenever a new peer enters the peer set.
	OnPeerDiscovered(now engine.Time, r *Router, peer message.NodeID)
	// OnTxSucceeded/OnTxFailed let a policy react beyond the Router's own
	// bookkeeping (e.g. Static deletes from store on success).
	OnTxSucceeded(now engine.Time, r *Router, peer message.NodeID, msg *message.Message)
	OnTxFailed(now engine.Time, r *Router, peer message.NodeID, msg *message.Message)
}

// Router is the shared substrate every routing policy runs on: peer
// tracking, per-message history, the message store, and the application
// registry. It carries no lock; it is mutated only from scheduled tasks.
type Router struct {
	ID           message.NodeID
	ScanInterval engine.Time

	Store *store.Store
	Apps  *app.Registry

	Sender    Sender
	Neighbors NeighborSource
	Sched     *engine.Scheduler
	Stats     *stats.Counters
	Log       *eventlog.Log
	Lookup    Lookup

	Policy Policy

	peers   []message.NodeID
	peerSet map[message.NodeID]bool
	history map[string]map[message.NodeID]bool
}

// New returns a Router bound to the given node identity, capacity, and
// collaborators. SetPolicy must be called before the router starts
// receiving traffic.
func New(id message.NodeID, scanInterval engine.Time, capacity int, sched *engine.Scheduler, sender Sender, neighbors NeighborSource, counters *stats.Counters, log *eventlog.Log) *Router {
	return &Router{
		ID:           id,
		ScanInterval: scanInterval,
		Store:        store.New(capacity),
		Apps:         app.NewRegistry(),
		Sender:       sender,
		Neighbors:    neighbors,
		Sched:        sched,
		Stats:        counters,
		Log:          log,
		peerSet:      make(map[message.NodeID]bool),
		history:      make(map[string]map[message.NodeID]bool),
	}
}

// SetPolicy binds the forwarding strategy. Must be called before Start.
func (r *Router) SetPolicy(p Policy) { r.Policy = p }

// Peers returns the current peer set, in discovery order.
func (r *Router) Peers() []message.NodeID { return r.peers }

// IsPeer reports whether id is a current peer.
func (r *Router) IsPeer(id message.NodeID) bool { return r.peerSet[id] }

// AlreadySpread reports whether msg has already been sent (or is known) to
// peer, per the history set.
func (r *Router) AlreadySpread(uniqueID string, peer message.NodeID) bool {
	peers, ok := r.history[uniqueID]
	if !ok {
		return false
	}
	return peers[peer]
}

// IsKnown reports whether any history entry exists for msg at all.
func (r *Router) IsKnown(uniqueID string) bool {
	_, ok := r.history[uniqueID]
	return ok
}

// Remember records that peer has (or will have) a copy of the message with
// the given unique id.
func (r *Router) Remember(peer message.NodeID, uniqueID string) {
	peers, ok := r.history[uniqueID]
	if !ok {
		peers = make(map[message.NodeID]bool)
		r.history[uniqueID] = peers
	}
	peers[peer] = true
}

// Forget removes the (peer, uniqueID) history entry, letting a future
// retry be attempted after a failed transmission.
func (r *Router) Forget(peer message.NodeID, uniqueID string) {
	if peers, ok := r.history[uniqueID]; ok {
		delete(peers, peer)
	}
}

// SendTo hands a clone of msg to the link layer for peer, marks the start
// in stats, and records history. Messages are cloned per recipient: hops
// and metadata are independent per peer, while the payload bytes are
// shared.
func (r *Router) SendTo(now engine.Time, peer message.NodeID, msg *message.Message) {
	r.Stats.Routing.Started++
	r.Sender.Send(now, peer, msg.Clone())
	r.Remember(peer, msg.UniqueID())
}

// AddToStore inserts msg into the router's store, folding every eviction or
// expiry the insert triggers into the dropped counter and the event log.
// The returned error is Store.Add's own rejection (the message exceeds
// capacity outright); the caller still counts and logs that case itself,
// since nothing was briefly held for it to depart from.
func (r *Router) AddToStore(now engine.Time, msg *message.Message) (departed []store.Departure, err error) {
	departed, err = r.Store.Add(now, msg)
	for _, d := range departed {
		r.Log.Write(now, eventlog.Store, map[string]any{"event": d.Reason.String(), "msg": d.Message.UniqueID()})
		if d.Reason == store.ReasonEvicted || d.Reason == store.ReasonExpired {
			r.Stats.Routing.Dropped++
		}
	}
	return departed, err
}

// RemoveFromStore retires uniqueID from the store as a policy decision
// (a successful handoff, not a delivery or a drop) and counts it as such.
func (r *Router) RemoveFromStore(uniqueID string) {
	if _, ok := r.Store.Remove(uniqueID); ok {
		r.Stats.Routing.Removed++
	}
}

// Accept is the external entry point for a generator or local application
// emitting a brand new message at this router.
func (r *Router) Accept(now engine.Time, msg *message.Message) error {
	r.Policy.PrepareNew(msg)
	if _, err := r.AddToStore(now, msg); err != nil {
		r.Stats.Routing.Dropped++
		r.Log.Write(now, eventlog.Store, map[string]any{"event": "rejected", "msg": msg.UniqueID()})
		return err
	}
	r.Stats.Routing.Created++
	r.Policy.Forward(now, r, msg)
	return nil
}

// OnMsgReceived implements netnode.RouterHook: the shared reception path
// every policy variant runs through before its own Forward/OnMsgReceived
// hook is consulted for non-local traffic.
func (r *Router) OnMsgReceived(now engine.Time, msg *message.Message, from message.NodeID) {
	r.Stats.Routing.Relayed++
	r.Log.Write(now, eventlog.Router, map[string]any{"event": "RX", "msg": msg.UniqueID(), "from": from})

	if r.IsKnown(msg.UniqueID()) {
		r.Stats.Routing.Dups++
		return
	}
	r.Remember(from, msg.UniqueID())
	msg.Hops++

	if msg.Dst == r.ID {
		r.Stats.Routing.Delivered++
		r.Stats.Routing.Hops += msg.Hops
		r.Stats.Routing.Latency += float64(now - msg.Created)
		if err := r.Apps.Deliver(now, msg); err != nil {
			r.Log.Write(now, eventlog.App, map[string]any{"event": "APP_NOT_FOUND", "service": msg.DstService})
		}
		r.Log.Write(now, eventlog.Router, map[string]any{"event": "DELIVERED", "msg": msg.UniqueID()})
		return
	}
	r.Policy.OnMsgReceived(now, r, msg, from)
}

// OnTxSucceeded implements netnode.RouterHook: base bookkeeping is a no-op
// on success; the policy decides whether to retire the message from store.
func (r *Router) OnTxSucceeded(now engine.Time, peer message.NodeID, msg *message.Message) {
	r.Policy.OnTxSucceeded(now, r, peer, msg)
}

// OnTxFailed implements netnode.RouterHook: every policy shares the same
// failure bookkeeping (count it, retract the history entry so a retry is
// possible), then gets a chance to react further.
func (r *Router) OnTxFailed(now engine.Time, peer message.NodeID, msg *message.Message) {
	r.Stats.Routing.Aborted++
	r.Forget(peer, msg.UniqueID())
	r.Policy.OnTxFailed(now, r, peer, msg)
}

// Start installs the periodic peer-scan task: each tick, the router
// compares its node's current neighbour set against the previous scan,
// resets the peer set to the new snapshot, and notifies the policy of
// every newly discovered peer.
func (r *Router) Start() {
	var scan engine.TaskFunc
	scan = func(now engine.Time) engine.NextWake {
		r.rescan(now)
		return engine.At(now + r.ScanInterval)
	}
	r.Sched.Spawn(scan)
}

func (r *Router) rescan(now engine.Time) {
	r.sweepExpired(now)

	fresh := r.Neighbors.Neighbors()
	freshSet := make(map[message.NodeID]bool, len(fresh))
	for _, id := range fresh {
		freshSet[id] = true
	}

	var discovered []message.NodeID
	for _, id := range fresh {
		if !r.peerSet[id] {
			discovered = append(discovered, id)
		}
	}

	r.peers = fresh
	r.peerSet = freshSet
	r.Log.Write(now, eventlog.Peers, map[string]any{"peers": fresh})

	for _, id := range discovered {
		r.Policy.OnPeerDiscovered(now, r, id)
	}
}

// sweepExpired drops every message in the store whose TTL has lapsed as of
// now. TTL expiry has no dedicated task of its own: it is checked lazily
// here, on the router's own periodic scan, so a message bound for a
// destination it never meets is still eventually reclaimed.
func (r *Router) sweepExpired(now engine.Time) {
	for _, m := range r.Store.SweepExpired(now) {
		r.Stats.Routing.Dropped++
		r.Log.Write(now, eventlog.Store, map[string]any{"event": store.ReasonExpired.String(), "msg": m.UniqueID()})
	}
}
