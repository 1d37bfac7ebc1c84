package router

import (
	"repram/internal/engine"
	"repram/internal/message"
)

// Epidemic forwards a message to every peer that has not yet seen it,
// keeping its own copy until the message reaches its destination directly.
type Epidemic struct{}

func (Epidemic) PrepareNew(*message.Message) {}

func (Epidemic) Forward(now engine.Time, r *Router, msg *message.Message) {
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
	}
}

func (e Epidemic) OnMsgReceived(now engine.Time, r *Router, msg *message.Message, from message.NodeID) {
	if _, err := r.AddToStore(now, msg); err != nil {
		r.Stats.Routing.Dropped++
		return
	}
	e.Forward(now, r, msg)
}

func (e Epidemic) OnPeerDiscovered(now engine.Time, r *Router, peer message.NodeID) {
	for _, m := range r.Store.All() {
		e.Forward(now, r, m)
	}
}

func (Epidemic) OnTxSucceeded(now engine.Time, r *Router, peer message.NodeID, msg *message.Message) {}
func (Epidemic) OnTxFailed(now engine.Time, r *Router, peer message.NodeID, msg *message.Message)    {}
