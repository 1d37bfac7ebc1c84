package router

import (
	"repram/internal/engine"
	"repram/internal/message"
)

const copiesKey = "copies"

// SprayAndWait carries a copy counter in message metadata: a forward to a
// new peer splits the remaining copies between sender and peer (binary:
// ceil/floor; basic: 1 to the peer, the rest retained). Once a router is
// down to a single copy it only ever hands the message directly to the
// destination.
type SprayAndWait struct {
	InitialCopies int
	Binary        bool
}

func copiesOf(msg *message.Message) int {
	if msg.Metadata == nil {
		return 1
	}
	if v, ok := msg.Metadata[copiesKey].(int); ok {
		return v
	}
	return 1
}

func setCopies(msg *message.Message, n int) {
	if msg.Metadata == nil {
		msg.Metadata = make(map[string]any)
	}
	msg.Metadata[copiesKey] = n
}

func (s SprayAndWait) PrepareNew(msg *message.Message) {
	setCopies(msg, s.InitialCopies)
}

func (s SprayAndWait) Forward(now engine.Time, r *Router, msg *message.Message) {
	if r.IsPeer(msg.Dst) && !r.AlreadySpread(msg.UniqueID(), msg.Dst) {
		r.SendTo(now, msg.Dst, msg)
		r.RemoveFromStore(msg.UniqueID())
		return
	}
	if copiesOf(msg) <= 1 {
		return
	}
	for _, peer := range r.Peers() {
		if r.AlreadySpread(msg.UniqueID(), peer) {
			continue
		}
		n := copiesOf(msg)
		if n <= 1 {
			break
		}
		var toPeer, retained int
		if s.Binary {
			toPeer = (n + 1) / 2
			retained = n / 2
		} else {
			toPeer = 1
			retained = n - 1
		}

		out := msg.Clone()
		setCopies(out, toPeer)
		r.Stats.Routing.Started++
		r.Sender.Send(now, peer, out)
		r.Remember(peer, msg.UniqueID())

		setCopies(msg, retained)
	}
}

func (s SprayAndWait) OnMsgReceived(now engine.Time, r *Router, msg *message.Message, from message.NodeID) {
	if _, err := r.AddToStore(now, msg); err != nil {
		r.Stats.Routing.Dropped++
		return
	}
	s.Forward(now, r, msg)
}

func (s SprayAndWait) OnPeerDiscovered(now engine.Time, r *Router, peer message.NodeID) {
	for _, m := range r.Store.All() {
		s.Forward(now, r, m)
	}
}

func (SprayAndWait) OnTxSucceeded(now engine.Time, r *Router, peer message.NodeID, msg *message.Message) {}
func (SprayAndWait) OnTxFailed(now engine.Time, r *Router, peer message.NodeID, msg *message.Message)    {}
