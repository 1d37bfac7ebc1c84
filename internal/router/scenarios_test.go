package router

import (
	"testing"

	"repram/internal/engine"
	"repram/internal/eventlog"
	"repram/internal/message"
	"repram/internal/netnode"
	"repram/internal/netplan"
	"repram/internal/stats"
)

// wiredNode bundles a netnode.Node with the Router that rides on top of it,
// matching how the simulator facade wires component A-G together.
type wiredNode struct {
	node   *netnode.Node
	router *Router
}

func wireNode(id message.NodeID, sched *engine.Scheduler, plan *netplan.NetworkPlan, counters *stats.Counters, log *eventlog.Log, policy Policy) *wiredNode {
	r := New(id, 2, 0, sched, nil, nil, counters, log)
	n := netnode.New(id, "n", 0, 0, 0, sched, r, int64(id)+1)
	n.AddPlanInterface("plan0", plan)
	r.Sender = n
	r.Neighbors = n
	r.SetPolicy(policy)
	return &wiredNode{node: n, router: r}
}

func wireDirectory(nodes []*wiredNode) netnode.Directory {
	dir := make(netnode.Directory, len(nodes))
	for _, wn := range nodes {
		dir[wn.node.ID] = wn.node
	}
	for _, wn := range nodes {
		wn.node.SetDirectory(dir)
	}
	return dir
}

// advance drives the scheduler up to t, recomputes every node's neighbour
// set as of t, and rescans every router's peer set, in the order a live
// simulator loop would: move time forward, observe topology, then let
// routers react to what changed.
func advance(t engine.Time, sched *engine.Scheduler, nodes []*wiredNode) {
	sched.RunUntil(t)
	all := make([]*netnode.Node, len(nodes))
	for i, wn := range nodes {
		all[i] = wn.node
	}
	for _, n := range all {
		n.CalcNeighbors(t, all)
	}
	for _, wn := range nodes {
		wn.router.rescan(t)
	}
}

// TestScenarioTwoNodeDirectDelivery matches the spec's literal scenario 1:
// a single contact (0,60,A,B,1e6bps,0 loss,0 delay,0 jitter), one message
// of size 1000 sent at t=10 from A to B with ttl=100. Expected:
// delivered=1, hops_avg=1, latency_avg ~= 0.001s.
func TestScenarioTwoNodeDirectDelivery(t *testing.T) {
	sched := engine.NewScheduler(nil)
	cp := netplan.NewContactPlan([]netplan.Contact{
		{Start: 0, End: 60, A: 0, B: 1, BW: 1_000_000},
	}, true, false, 1)
	plan := netplan.NewNetworkPlan(nil, nil, cp)

	var counters stats.Counters
	log := eventlog.New(discard{})
	a := wireNode(0, sched, plan, &counters, log, DirectDelivery{})
	b := wireNode(1, sched, plan, &counters, log, DirectDelivery{})
	nodes := []*wiredNode{a, b}
	wireDirectory(nodes)

	advance(10, sched, nodes)
	msg := &message.Message{ID: "m1", Src: 0, Dst: 1, Size: 1000, Created: 10, TTL: 100}
	a.router.Accept(10, msg)

	advance(200, sched, nodes)

	if counters.Routing.Delivered != 1 {
		t.Fatalf("Delivered = %d, want 1", counters.Routing.Delivered)
	}
	derived := counters.Routing.Derive()
	if derived.HopsAvg != 1 {
		t.Fatalf("HopsAvg = %v, want 1", derived.HopsAvg)
	}
	wantLatency := 1000.0 / 1_000_000.0
	if diff := derived.LatencyAvg - wantLatency; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("LatencyAvg = %v, want ~%v", derived.LatencyAvg, wantLatency)
	}
}

// TestScenarioUnreachableDestination matches scenario 2: same setup but the
// destination has no contact at all. Expected: created=1, delivered=0.
func TestScenarioUnreachableDestination(t *testing.T) {
	sched := engine.NewScheduler(nil)
	cp := netplan.NewContactPlan([]netplan.Contact{
		{Start: 0, End: 60, A: 0, B: 1, BW: 1_000_000},
	}, true, false, 1)
	plan := netplan.NewNetworkPlan(nil, nil, cp)

	var counters stats.Counters
	log := eventlog.New(discard{})
	a := wireNode(0, sched, plan, &counters, log, DirectDelivery{})
	b := wireNode(1, sched, plan, &counters, log, DirectDelivery{})
	c := wireNode(2, sched, plan, &counters, log, DirectDelivery{})
	nodes := []*wiredNode{a, b, c}
	wireDirectory(nodes)

	advance(10, sched, nodes)
	msg := &message.Message{ID: "m1", Src: 0, Dst: 2, Size: 1000, Created: 10, TTL: 100}
	a.router.Accept(10, msg)

	advance(200, sched, nodes)

	if counters.Routing.Created != 1 {
		t.Fatalf("Created = %d, want 1", counters.Routing.Created)
	}
	if counters.Routing.Delivered != 0 {
		t.Fatalf("Delivered = %d, want 0 for an unreachable destination", counters.Routing.Delivered)
	}
}

// TestScenarioEpidemicThreeNodeChain matches scenario 3: A-B active [0,50],
// B-C active [30,80], a message A->C accepted at t=5. Expected delivered=1,
// hops_avg=2 (A relays to B, B relays to C once the second contact opens).
func TestScenarioEpidemicThreeNodeChain(t *testing.T) {
	sched := engine.NewScheduler(nil)
	cp := netplan.NewContactPlan([]netplan.Contact{
		{Start: 0, End: 50, A: 0, B: 1, BW: 1_000_000},
		{Start: 30, End: 80, A: 1, B: 2, BW: 1_000_000},
	}, true, false, 1)
	plan := netplan.NewNetworkPlan(nil, nil, cp)

	var counters stats.Counters
	log := eventlog.New(discard{})
	a := wireNode(0, sched, plan, &counters, log, Epidemic{})
	b := wireNode(1, sched, plan, &counters, log, Epidemic{})
	c := wireNode(2, sched, plan, &counters, log, Epidemic{})
	nodes := []*wiredNode{a, b, c}
	wireDirectory(nodes)

	advance(5, sched, nodes)
	msg := &message.Message{ID: "m1", Src: 0, Dst: 2, Size: 100, Created: 5, TTL: 1000}
	a.router.Accept(5, msg)

	advance(20, sched, nodes)
	advance(30, sched, nodes)
	advance(90, sched, nodes)

	if counters.Routing.Delivered != 1 {
		t.Fatalf("Delivered = %d, want 1", counters.Routing.Delivered)
	}
	derived := counters.Routing.Derive()
	if derived.HopsAvg != 2 {
		t.Fatalf("HopsAvg = %v, want 2 (A->B->C)", derived.HopsAvg)
	}
}

// TestScenarioSprayAndWaitBinary matches scenario 6: copies=8 at A; A-B is
// in contact from t=0 and B-C only from t=15. Expected: right after the
// first meeting A retains 4 and B holds 4; once B meets C it splits again,
// leaving B with 2 and handing C 2.
func TestScenarioSprayAndWaitBinary(t *testing.T) {
	sched := engine.NewScheduler(nil)
	cp := netplan.NewContactPlan([]netplan.Contact{
		{Start: 0, End: -1, A: 0, B: 1, BW: 1_000_000},
		{Start: 15, End: -1, A: 1, B: 2, BW: 1_000_000},
	}, true, false, 1)
	plan := netplan.NewNetworkPlan(nil, nil, cp)

	var counters stats.Counters
	log := eventlog.New(discard{})
	a := wireNode(0, sched, plan, &counters, log, SprayAndWait{InitialCopies: 8, Binary: true})
	b := wireNode(1, sched, plan, &counters, log, SprayAndWait{InitialCopies: 8, Binary: true})
	c := wireNode(2, sched, plan, &counters, log, SprayAndWait{InitialCopies: 8, Binary: true})
	nodes := []*wiredNode{a, b, c}
	wireDirectory(nodes)

	advance(0, sched, nodes)
	msg := &message.Message{ID: "m1", Src: 0, Dst: 99, Size: 10, Created: 0, TTL: 1000}
	a.router.Accept(0, msg)

	advance(10, sched, nodes)

	aCopy, aHas := a.router.Store.Get(msg.UniqueID())
	bCopy, bHas := b.router.Store.Get(msg.UniqueID())
	if !aHas || !bHas {
		t.Fatalf("both A and B should retain a copy after the first split, got A=%v B=%v", aHas, bHas)
	}
	if copiesOf(aCopy) != 4 {
		t.Fatalf("A's retained copies = %d, want 4", copiesOf(aCopy))
	}
	if copiesOf(bCopy) != 4 {
		t.Fatalf("B's copies right after the first meeting = %d, want 4", copiesOf(bCopy))
	}

	advance(20, sched, nodes)

	bCopy, bHas = b.router.Store.Get(msg.UniqueID())
	if !bHas {
		t.Fatal("B should still hold its remaining copies after splitting with C")
	}
	if copiesOf(bCopy) != 2 {
		t.Fatalf("B's retained copies after meeting C = %d, want 2", copiesOf(bCopy))
	}

	advance(25, sched, nodes) // flush the delivery scheduled to C at ~t=20

	cCopy, cHas := c.router.Store.Get(msg.UniqueID())
	if !cHas {
		t.Fatal("C should have received a split copy once B met it")
	}
	if copiesOf(cCopy) != 2 {
		t.Fatalf("C's received copies = %d, want 2", copiesOf(cCopy))
	}
}

// TestScenarioStoreEvictionDropsOldestSmallest matches scenario 4: a store
// capacity that holds three 10-byte messages accepts a fourth only by
// evicting the smallest-oldest resident first. Expected: the eviction is
// counted as a drop, not silently discarded.
func TestScenarioStoreEvictionDropsOldestSmallest(t *testing.T) {
	var counters stats.Counters
	log := eventlog.New(discard{})
	r := New(0, 10, 30, engine.NewScheduler(nil), &fakeSender{}, fakeNeighbors{nil}, &counters, log)
	r.SetPolicy(DirectDelivery{})

	for i := 0; i < 3; i++ {
		m := &message.Message{ID: string(rune('a' + i)), Src: 0, Dst: 99, Size: 10, Created: engine.Time(i), TTL: 1000}
		if err := r.Accept(engine.Time(i), m); err != nil {
			t.Fatalf("Accept message %d: %v", i, err)
		}
	}
	if counters.Routing.Dropped != 0 {
		t.Fatalf("Dropped = %d, want 0 before the store is full", counters.Routing.Dropped)
	}

	fourth := &message.Message{ID: "d", Src: 0, Dst: 99, Size: 10, Created: 3, TTL: 1000}
	if err := r.Accept(3, fourth); err != nil {
		t.Fatalf("Accept fourth message: %v", err)
	}

	if counters.Routing.Dropped != 1 {
		t.Fatalf("Dropped = %d, want 1 after the 4th message forces an eviction", counters.Routing.Dropped)
	}
	if r.Store.Len() != 3 {
		t.Fatalf("Store.Len() = %d, want 3 (capacity holds only three 10-byte messages)", r.Store.Len())
	}
}

// TestScenarioExpiredMessageNeverDelivered matches scenario 5: a message
// whose destination is never met lapses past its TTL and must be swept out
// by the router's own periodic scan rather than lingering forever.
// Expected: delivered=0, dropped>=1.
func TestScenarioExpiredMessageNeverDelivered(t *testing.T) {
	sched := engine.NewScheduler(nil)
	cp := netplan.NewContactPlan(nil, true, false, 1)
	plan := netplan.NewNetworkPlan(nil, nil, cp)

	var counters stats.Counters
	log := eventlog.New(discard{})
	a := wireNode(0, sched, plan, &counters, log, DirectDelivery{})
	nodes := []*wiredNode{a}
	wireDirectory(nodes)

	advance(0, sched, nodes)
	msg := &message.Message{ID: "m1", Src: 0, Dst: 1, Size: 10, Created: 0, TTL: 10}
	a.router.Accept(0, msg)

	advance(11, sched, nodes)

	if counters.Routing.Delivered != 0 {
		t.Fatalf("Delivered = %d, want 0 for a message whose destination is never reached", counters.Routing.Delivered)
	}
	if counters.Routing.Dropped < 1 {
		t.Fatalf("Dropped = %d, want >= 1 once the TTL sweep catches the expired message", counters.Routing.Dropped)
	}
	if a.router.Store.Has(msg.UniqueID()) {
		t.Fatal("the expired message should have been swept out of the store")
	}
}
