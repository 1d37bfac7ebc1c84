// Package stats holds the simulator's two counter buckets and the
// derivations computed from them once a run finishes.
package stats

// NetStats counts link-layer outcomes: Tx counts every attempted
// transmission, and an attempt then lands in at most one of Rx (delivered
// to the receiving node), Drop (the contact ended before delivery), or
// Loss (dropped by the configured loss probability).
type NetStats struct {
	Tx   int
	Rx   int
	Drop int
	Loss int
}

// RoutingStats counts router-level outcomes across the whole run.
type RoutingStats struct {
	Created   int
	Delivered int
	Dropped   int
	Hops      int
	Latency   float64
	Started   int
	Relayed   int
	Removed   int
	Aborted   int
	Dups      int
}

// Derived holds the post-run averages computed from RoutingStats. Zero
// values (e.g. delivery_prob with no created messages) are reported as 0
// rather than NaN.
type Derived struct {
	LatencyAvg    float64 `json:"latency_avg"`
	HopsAvg       float64 `json:"hops_avg"`
	DeliveryProb  float64 `json:"delivery_prob"`
	OverheadRatio float64 `json:"overhead_ratio"`
}

// Derive computes the four post-run averages named in the statistics
// design: latency_avg and hops_avg are per delivered message,
// delivery_prob is delivered/created, and overhead_ratio is the excess
// relaying per delivered message.
func (r RoutingStats) Derive() Derived {
	var d Derived
	if r.Delivered > 0 {
		d.LatencyAvg = r.Latency / float64(r.Delivered)
		d.HopsAvg = float64(r.Hops) / float64(r.Delivered)
		d.OverheadRatio = float64(r.Relayed-r.Delivered) / float64(r.Delivered)
	}
	if r.Created > 0 {
		d.DeliveryProb = float64(r.Delivered) / float64(r.Created)
	}
	return d
}

// Snapshot is the combined JSON-serialisable view exposed by the status API
// and the end-of-run report.
type Snapshot struct {
	Net     NetStats     `json:"net_stats"`
	Routing RoutingStats `json:"routing_stats"`
	Derived Derived      `json:"derived"`
}

// Counters accumulates both buckets over the life of a run. Like Store, it
// carries no lock: it is owned by the simulator and mutated only from
// scheduled tasks.
type Counters struct {
	Net     NetStats
	Routing RoutingStats
}

// Snapshot returns the current counter values plus their derivations.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{Net: c.Net, Routing: c.Routing, Derived: c.Routing.Derive()}
}
