package router

import (
	"testing"

	"repram/internal/engine"
	"repram/internal/eventlog"
	"repram/internal/message"
	"repram/internal/stats"
)

type fakeSender struct {
	sent []struct {
		to  message.NodeID
		msg *message.Message
	}
}

func (f *fakeSender) Send(now engine.Time, to message.NodeID, msg *message.Message) {
	f.sent = append(f.sent, struct {
		to  message.NodeID
		msg *message.Message
	}{to, msg})
}

type fakeNeighbors struct{ ids []message.NodeID }

func (f fakeNeighbors) Neighbors() []message.NodeID { return f.ids }

func newTestRouter(id message.NodeID, neighbors []message.NodeID, policy Policy) (*Router, *fakeSender) {
	sender := &fakeSender{}
	r := New(id, 2, 0, engine.NewScheduler(nil), sender, fakeNeighbors{neighbors}, &stats.Counters{}, eventlog.New(discard{}))
	r.SetPolicy(policy)
	return r, sender
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestRouterDedupsKnownMessage(t *testing.T) {
	r, _ := newTestRouter(1, nil, DirectDelivery{})
	msg := &message.Message{ID: "m", Src: 2, Dst: 1, Size: 10, TTL: 100}
	r.OnMsgReceived(0, msg, 2)
	if r.Stats.Routing.Delivered != 1 {
		t.Fatalf("Delivered = %d, want 1 after first receipt", r.Stats.Routing.Delivered)
	}
	msg2 := &message.Message{ID: "m", Src: 2, Dst: 1, Size: 10, TTL: 100}
	r.OnMsgReceived(0, msg2, 2)
	if r.Stats.Routing.Dups != 1 {
		t.Fatalf("Dups = %d, want 1 after re-receiving the same unique id", r.Stats.Routing.Dups)
	}
}

func TestRouterDeliveredLocalIncrementsHops(t *testing.T) {
	r, _ := newTestRouter(1, nil, DirectDelivery{})
	msg := &message.Message{ID: "m", Src: 2, Dst: 1, Size: 10, Created: 0, TTL: 100}
	r.OnMsgReceived(5, msg, 2)
	if msg.Hops < 1 {
		t.Fatalf("Hops = %d, want >= 1 for a delivered message", msg.Hops)
	}
	if r.Stats.Routing.Latency != 5 {
		t.Fatalf("Latency = %v, want 5", r.Stats.Routing.Latency)
	}
}

func TestRouterAppMissingIsNonFatal(t *testing.T) {
	r, _ := newTestRouter(1, nil, DirectDelivery{})
	msg := &message.Message{ID: "m", Src: 2, Dst: 1, DstService: 99, Size: 10, TTL: 100}
	r.OnMsgReceived(0, msg, 2)
	if r.Stats.Routing.Delivered != 1 {
		t.Fatal("a delivered message with no matching app should still count as delivered")
	}
}

func TestRouterOnTxFailedRetractsHistory(t *testing.T) {
	r, _ := newTestRouter(1, []message.NodeID{2}, DirectDelivery{})
	msg := &message.Message{ID: "m", Src: 1, Dst: 2, Size: 10, TTL: 100}
	r.Accept(0, msg)
	if !r.AlreadySpread(msg.UniqueID(), 2) {
		t.Fatal("sending to peer 2 should record history")
	}
	r.OnTxFailed(1, 2, msg)
	if r.AlreadySpread(msg.UniqueID(), 2) {
		t.Fatal("a failed transmission should retract the history entry to allow retry")
	}
	if r.Stats.Routing.Aborted != 1 {
		t.Fatalf("Aborted = %d, want 1", r.Stats.Routing.Aborted)
	}
}

func TestRouterScanDiscoversNewPeers(t *testing.T) {
	r, _ := newTestRouter(1, []message.NodeID{2, 3}, DirectDelivery{})
	r.rescan(0)
	if !r.IsPeer(2) || !r.IsPeer(3) {
		t.Fatal("rescan should populate the peer set from NeighborSource")
	}
}
