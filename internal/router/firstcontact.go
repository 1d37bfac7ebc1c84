package router

import (
	"repram/internal/engine"
	"repram/internal/message"
)

// FirstContact forwards to the first eligible peer it finds (destination
// first, then any peer that has not already seen the message), then
// removes the message from its own store.
type FirstContact struct{}

func (FirstContact) PrepareNew(*message.Message) {}

func (FirstContact) Forward(now engine.Time, r *Router, msg *message.Message) {
	if r.IsPeer(msg.Dst) && !r.AlreadySpread(msg.UniqueID(), msg.Dst) {
		r.SendTo(now, msg.Dst, msg)
		r.RemoveFromStore(msg.UniqueID())
		return
	}
	for _, peer := range r.Peers() {
		if r.AlreadySpread(msg.UniqueID(), peer) {
			continue
		}
		r.SendTo(now, peer, msg)
		r.RemoveFromStore(msg.UniqueID())
		return
	}
}

func (f FirstContact) OnMsgReceived(now engine.Time, r *Router, msg *message.Message, from message.NodeID) {
	if _, err := r.AddToStore(now, msg); err != nil {
		r.Stats.Routing.Dropped++
		return
	}
	f.Forward(now, r, msg)
}

func (f FirstContact) OnPeerDiscovered(now engine.Time, r *Router, peer message.NodeID) {
	for _, m := range r.Store.All() {
		f.Forward(now, r, m)
	}
}

func (FirstContact) OnTxSucceeded(now engine.Time, r *Router, peer message.NodeID, msg *message.Message) {}
func (FirstContact) OnTxFailed(now engine.Time, r *Router, peer message.NodeID, msg *message.Message)    {}
