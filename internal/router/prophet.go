package router

import (
	"math"

	"repram/internal/engine"
	"repram/internal/message"
)

// ProphetConfig tunes the PRoPHET delivery-predictability model.
type ProphetConfig struct {
	EncounterFirst float64 // predictability assigned on a node's first encounter with a peer
	FirstThreshold float64 // below this, a re-encounter is treated as a first encounter
	Encounter      float64 // weight applied to a repeat encounter
	Beta           float64 // weight of the transitive property
	Delta          float64 // caps predictability at 1-delta
	Gamma          float64 // aging decay per unit time; lower ages faster
}

// DefaultProphetConfig returns the commonly cited PRoPHET parameters.
func DefaultProphetConfig() ProphetConfig {
	return ProphetConfig{
		EncounterFirst: 0.5,
		FirstThreshold: 0.1,
		Encounter:      0.7,
		Beta:           0.9,
		Delta:          0.01,
		Gamma:          0.999,
	}
}

// Prophet forwards to a peer only when that peer's delivery predictability
// for the message's destination exceeds the local one, maintaining a
// per-destination predictability table that ages over time and updates
// transitively on every encounter.
type Prophet struct {
	Self message.NodeID
	Cfg  ProphetConfig

	pred      map[message.NodeID]float64
	lastAging map[message.NodeID]engine.Time
}

// NewProphet returns a Prophet policy for node self.
func NewProphet(self message.NodeID, cfg ProphetConfig) *Prophet {
	return &Prophet{
		Self:      self,
		Cfg:       cfg,
		pred:      map[message.NodeID]float64{self: 1},
		lastAging: make(map[message.NodeID]engine.Time),
	}
}

// predFor returns this node's predictability for reaching dst, 0 if unknown.
func (p *Prophet) predFor(dst message.NodeID) float64 {
	return p.pred[dst]
}

func (p *Prophet) PrepareNew(*message.Message) {}

func (p *Prophet) Forward(now engine.Time, r *Router, msg *message.Message) {
	if r.IsPeer(msg.Dst) && !r.AlreadySpread(msg.UniqueID(), msg.Dst) {
		r.SendTo(now, msg.Dst, msg)
		r.RemoveFromStore(msg.UniqueID())
		return
	}
	for _, peer := range r.Peers() {
		if r.AlreadySpread(msg.UniqueID(), peer) {
			continue
		}
		peerRouter := r.Lookup(peer)
		if peerRouter == nil {
			continue
		}
		peerPolicy, ok := peerRouter.Policy.(*Prophet)
		if !ok {
			continue
		}
		if peerPolicy.predFor(msg.Dst) > p.predFor(msg.Dst) {
			r.SendTo(now, peer, msg)
		}
	}
}

func (p *Prophet) OnMsgReceived(now engine.Time, r *Router, msg *message.Message, from message.NodeID) {
	if _, err := r.AddToStore(now, msg); err != nil {
		r.Stats.Routing.Dropped++
		return
	}
	p.Forward(now, r, msg)
}

// OnPeerDiscovered updates this node's predictability for the met peer,
// ages every other entry, folds in the peer's table transitively, and
// re-evaluates forwarding decisions for everything currently in store.
func (p *Prophet) OnPeerDiscovered(now engine.Time, r *Router, peer message.NodeID) {
	p.updateEncounter(peer, now)
	p.age(now, peer)
	p.updateTransitive(r, peer)

	for _, m := range r.Store.All() {
		p.Forward(now, r, m)
	}
}

func (p *Prophet) updateEncounter(peer message.NodeID, now engine.Time) {
	old, known := p.pred[peer]
	var next float64
	if !known || old < p.Cfg.FirstThreshold {
		next = p.Cfg.EncounterFirst
	} else {
		next = old + (1-p.Cfg.Delta-old)*p.Cfg.Encounter
	}
	p.pred[peer] = next
	p.lastAging[peer] = now
}

// age decays every predictability entry except self and the peer just met
// (whose entry was just set to a fresh value by updateEncounter).
func (p *Prophet) age(now engine.Time, justMet message.NodeID) {
	for id, val := range p.pred {
		if id == p.Self || id == justMet {
			continue
		}
		last, ok := p.lastAging[id]
		if !ok {
			last = now
		}
		elapsed := float64(now - last)
		p.pred[id] = val * math.Pow(p.Cfg.Gamma, elapsed)
		p.lastAging[id] = now
	}
}

func (p *Prophet) updateTransitive(r *Router, peer message.NodeID) {
	peerRouter := r.Lookup(peer)
	if peerRouter == nil {
		return
	}
	peerPolicy, ok := peerRouter.Policy.(*Prophet)
	if !ok {
		return
	}
	selfToPeer := p.predFor(peer)
	for dst, peerToX := range peerPolicy.snapshot() {
		if dst == p.Self {
			continue
		}
		transitive := selfToPeer * peerToX * p.Cfg.Beta
		if transitive > p.pred[dst] {
			p.pred[dst] = transitive
		}
	}
}

// snapshot returns a copy of this node's predictability table, for a peer
// to read during its own transitive update.
func (p *Prophet) snapshot() map[message.NodeID]float64 {
	out := make(map[message.NodeID]float64, len(p.pred))
	for k, v := range p.pred {
		out[k] = v
	}
	return out
}

func (*Prophet) OnTxSucceeded(now engine.Time, r *Router, peer message.NodeID, msg *message.Message) {}
func (*Prophet) OnTxFailed(now engine.Time, r *Router, peer message.NodeID, msg *message.Message)    {}
