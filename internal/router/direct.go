package router

import (
	"repram/internal/engine"
	"repram/internal/message"
)

// DirectDelivery forwards a message only when the destination is currently
// a peer, and drops it from the store the moment that handoff succeeds.
type DirectDelivery struct{}

func (DirectDelivery) PrepareNew(*message.Message) {}

func (DirectDelivery) Forward(now engine.Time, r *Router, msg *message.Message) {
	if r.IsPeer(msg.Dst) && !r.AlreadySpread(msg.UniqueID(), msg.Dst) {
		r.SendTo(now, msg.Dst, msg)
	}
}

func (d DirectDelivery) OnMsgReceived(now engine.Time, r *Router, msg *message.Message, from message.NodeID) {
	if _, err := r.AddToStore(now, msg); err != nil {
		r.Stats.Routing.Dropped++
		return
	}
	d.Forward(now, r, msg)
}

func (d DirectDelivery) OnPeerDiscovered(now engine.Time, r *Router, peer message.NodeID) {
	for _, m := range r.Store.All() {
		d.Forward(now, r, m)
	}
}

func (DirectDelivery) OnTxSucceeded(now engine.Time, r *Router, peer message.NodeID, msg *message.Message) {
	r.RemoveFromStore(msg.UniqueID())
}

func (DirectDelivery) OnTxFailed(now engine.Time, r *Router, peer message.NodeID, msg *message.Message) {}
