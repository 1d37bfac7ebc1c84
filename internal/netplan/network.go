package netplan

import (
	"repram/internal/engine"
	"repram/internal/message"
)

// NetNode is the static-graph vertex: a named point in space. The dynamic
// neighbour/radio state lives in internal/netnode; this is purely the
// topology's view of a node.
type NetNode struct {
	ID      message.NodeID
	Name    string
	X, Y, Z float64
}

// edgeAttr carries the per-edge defaults used when a static edge has no
// covering contact: 0 loss, 0 delay, 0 jitter, unbounded bandwidth.
type edgeAttr struct {
	BW    float64
	Loss  float64
	Delay engine.Time
}

type edgeKey struct{ a, b message.NodeID }

func normKey(a, b message.NodeID) edgeKey {
	if a <= b {
		return edgeKey{a, b}
	}
	return edgeKey{b, a}
}

// NetworkPlan composes a static undirected graph with an optional
// ContactPlan. Static edges are authoritative only for pairs the contact
// plan does not schedule; a non-fixed scheduled contact for a pair shadows
// (removes) any static edge between that pair, while fixed contacts are
// additionally folded into the static edge set so FixedLinks/queries see
// them uniformly.
type NetworkPlan struct {
	nodes   map[message.NodeID]NetNode
	edges   map[edgeKey]edgeAttr
	Contact *ContactPlan // nil means static-only
}

// NewNetworkPlan builds a plan from a node list, an undirected edge list,
// and an optional contact plan (pass nil for a purely static topology).
// Binding happens once, at construction: duplicate edges between the same
// pair are idempotent, non-fixed scheduled contacts shadow static edges for
// that pair, and fixed contacts are promoted into the static edge set.
func NewNetworkPlan(nodes []NetNode, edges [][2]message.NodeID, cp *ContactPlan) *NetworkPlan {
	np := &NetworkPlan{
		nodes:   make(map[message.NodeID]NetNode, len(nodes)),
		edges:   make(map[edgeKey]edgeAttr),
		Contact: cp,
	}
	for _, n := range nodes {
		np.nodes[n.ID] = n
	}
	for _, e := range edges {
		np.edges[normKey(e[0], e[1])] = edgeAttr{Loss: 0, Delay: 0, BW: 0}
	}
	if cp != nil {
		for _, c := range cp.Contacts() {
			k := normKey(c.A, c.B)
			if c.Fixed() {
				np.edges[k] = edgeAttr{BW: c.BW, Loss: c.Loss, Delay: c.Delay}
				continue
			}
			delete(np.edges, k)
		}
	}
	return np
}

// Nodes returns the static graph's vertex set.
func (np *NetworkPlan) Nodes() map[message.NodeID]NetNode { return np.nodes }

// HasContact reports connectivity between a and b at time t: scheduled
// contacts are consulted first, falling back to the static edge set.
func (np *NetworkPlan) HasContact(t engine.Time, a, b message.NodeID) bool {
	if np.Contact != nil && np.Contact.HasContact(t, a, b) {
		return true
	}
	_, ok := np.edges[normKey(a, b)]
	return ok
}

// LossForContact returns the effective loss probability for (a, b) at t,
// preferring a scheduled contact's value and falling back to the static
// edge's attribute (0 if the pair has no static attributes recorded).
func (np *NetworkPlan) LossForContact(t engine.Time, a, b message.NodeID) float64 {
	if np.Contact != nil && np.Contact.HasContact(t, a, b) {
		return np.Contact.LossForContact(t, a, b)
	}
	if attr, ok := np.edges[normKey(a, b)]; ok {
		return attr.Loss
	}
	return 0
}

// TxTimeForContact returns the transmission duration for size bytes between
// a and b at t, consulting the contact plan first and the static edge
// attributes (no jitter) otherwise. Returns ErrNoContact if neither source
// covers the pair.
func (np *NetworkPlan) TxTimeForContact(t engine.Time, a, b message.NodeID, size int) (engine.Time, error) {
	if np.Contact != nil && np.Contact.HasContact(t, a, b) {
		return np.Contact.TxTimeForContact(t, a, b, size)
	}
	attr, ok := np.edges[normKey(a, b)]
	if !ok {
		return 0, ErrNoContact
	}
	c := Contact{BW: attr.BW, Loss: attr.Loss, Delay: attr.Delay, End: -1}
	return c.TxTime(size, 0), nil
}

// FixedLinks returns every always-on pair known to the plan: static edges
// not shadowed by a non-fixed scheduled contact, plus any fixed contacts
// already folded into the edge set at construction.
func (np *NetworkPlan) FixedLinks() [][2]message.NodeID {
	out := make([][2]message.NodeID, 0, len(np.edges))
	for k := range np.edges {
		out = append(out, [2]message.NodeID{k.a, k.b})
	}
	return out
}
