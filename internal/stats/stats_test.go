package stats

import "testing"

func TestDeriveZeroCreated(t *testing.T) {
	r := RoutingStats{}
	d := r.Derive()
	if d.DeliveryProb != 0 || d.LatencyAvg != 0 || d.HopsAvg != 0 || d.OverheadRatio != 0 {
		t.Fatalf("Derive() on zero stats = %+v, want all zero", d)
	}
}

func TestDeriveScenarioOne(t *testing.T) {
	// Two-node direct delivery: delivered=1, hops=1, latency=0.001s, created=1, relayed=1.
	r := RoutingStats{Created: 1, Delivered: 1, Hops: 1, Latency: 0.001, Relayed: 1}
	d := r.Derive()
	if d.HopsAvg != 1 {
		t.Fatalf("HopsAvg = %v, want 1", d.HopsAvg)
	}
	if d.LatencyAvg != 0.001 {
		t.Fatalf("LatencyAvg = %v, want 0.001", d.LatencyAvg)
	}
	if d.DeliveryProb != 1 {
		t.Fatalf("DeliveryProb = %v, want 1", d.DeliveryProb)
	}
	if d.OverheadRatio != 0 {
		t.Fatalf("OverheadRatio = %v, want 0", d.OverheadRatio)
	}
}

func TestDeriveUnreachableDestination(t *testing.T) {
	r := RoutingStats{Created: 1, Delivered: 0}
	d := r.Derive()
	if d.DeliveryProb != 0 {
		t.Fatalf("DeliveryProb = %v, want 0", d.DeliveryProb)
	}
}

func TestCountersSnapshot(t *testing.T) {
	var c Counters
	c.Net.Tx = 5
	c.Routing.Created = 2
	c.Routing.Delivered = 1
	c.Routing.Hops = 2
	c.Routing.Latency = 0.5
	c.Routing.Relayed = 3

	snap := c.Snapshot()
	if snap.Net.Tx != 5 {
		t.Fatalf("snapshot net.Tx = %d, want 5", snap.Net.Tx)
	}
	if snap.Derived.HopsAvg != 2 {
		t.Fatalf("snapshot derived.HopsAvg = %v, want 2", snap.Derived.HopsAvg)
	}
}
