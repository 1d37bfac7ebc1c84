// Package netnode implements the simulated endpoint: identity, position,
// per-interface neighbour sets, and the send/receive glue between the
// contact layer and a node's router.
package netnode

import (
	"math/rand"
	"sort"

	"repram/internal/engine"
	"repram/internal/logging"
	"repram/internal/message"
	"repram/internal/netplan"
)

// RouterHook is the subset of router behaviour a Node drives directly: the
// reception path and the two transmission-outcome callbacks. A concrete
// router.Router implements this.
type RouterHook interface {
	OnMsgReceived(now engine.Time, m *message.Message, from message.NodeID)
	OnTxSucceeded(now engine.Time, peer message.NodeID, m *message.Message)
	OnTxFailed(now engine.Time, peer message.NodeID, m *message.Message)
}

// NetObserver receives link-layer outcome counts. Node.Observer may be
// left nil; Node no-ops on a nil observer.
type NetObserver interface {
	OnTx()
	OnRx()
	OnDrop()
	OnLoss()
}

// Interface is one radio/link-layer attachment point on a node: either
// proximity-driven (neighbours computed from distance) or plan-driven
// (neighbours/contacts come from a NetworkPlan).
type Interface struct {
	Name    string
	Range   float64 // proximity interfaces: max distance for a neighbour
	Plan    *netplan.NetworkPlan
	BW      float64
	Loss    float64
	Delay   engine.Time
	Jitter  engine.Time
	Members map[message.NodeID]bool
}

func newInterface(name string) *Interface {
	return &Interface{Name: name, Members: make(map[message.NodeID]bool)}
}

// Directory resolves node ids to Node pointers so a Node can reach its
// peers directly when scheduling delivery.
type Directory map[message.NodeID]*Node

// Node is a simulated DTN endpoint.
type Node struct {
	ID      message.NodeID
	Name    string
	X, Y, Z float64

	Interfaces map[string]*Interface
	Hook       RouterHook
	Observer   NetObserver

	sched *engine.Scheduler
	dir   Directory
	rng   *rand.Rand
}

// New returns a node with no interfaces attached. AddInterface must be
// called at least once before Send/CalcNeighbors do anything useful.
func New(id message.NodeID, name string, x, y, z float64, sched *engine.Scheduler, hook RouterHook, seed int64) *Node {
	return &Node{
		ID:         id,
		Name:       name,
		X:          x,
		Y:          y,
		Z:          z,
		Interfaces: make(map[string]*Interface),
		Hook:       hook,
		sched:      sched,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// SetDirectory wires the node to the set of all nodes in the run, so it can
// resolve peer ids to Node pointers when scheduling delivery.
func (n *Node) SetDirectory(d Directory) { n.dir = d }

// AddProximityInterface attaches an interface whose neighbours are derived
// from distance, using the given default link parameters when no plan
// overrides them.
func (n *Node) AddProximityInterface(name string, rang, bw, loss float64, delay, jitter engine.Time) *Interface {
	iface := newInterface(name)
	iface.Range, iface.BW, iface.Loss, iface.Delay, iface.Jitter = rang, bw, loss, delay, jitter
	n.Interfaces[name] = iface
	return iface
}

// AddPlanInterface attaches an interface whose neighbours and link
// parameters come entirely from a NetworkPlan.
func (n *Node) AddPlanInterface(name string, plan *netplan.NetworkPlan) *Interface {
	iface := newInterface(name)
	iface.Plan = plan
	n.Interfaces[name] = iface
	return iface
}

// CalcNeighbors recomputes every interface's member set as of now.
// Proximity interfaces compare squared distance against squared range;
// plan-driven interfaces consult the plan's HasContact. A node is never
// its own neighbour.
func (n *Node) CalcNeighbors(now engine.Time, all []*Node) {
	for _, iface := range n.Interfaces {
		members := make(map[message.NodeID]bool)
		for _, other := range all {
			if other.ID == n.ID {
				continue
			}
			if iface.Plan != nil {
				if iface.Plan.HasContact(now, n.ID, other.ID) {
					members[other.ID] = true
				}
				continue
			}
			dx, dy, dz := n.X-other.X, n.Y-other.Y, n.Z-other.Z
			d2 := dx*dx + dy*dy + dz*dz
			if d2 <= iface.Range*iface.Range {
				members[other.ID] = true
			}
		}
		iface.Members = members
	}
}

// neighbours returns the union of every interface's current members.
func (n *Node) neighbours() map[message.NodeID]bool {
	out := make(map[message.NodeID]bool)
	for _, iface := range n.Interfaces {
		for id := range iface.Members {
			out[id] = true
		}
	}
	return out
}

// Neighbors returns the union of every interface's current members, sorted
// by id for deterministic scan-order processing.
func (n *Node) Neighbors() []message.NodeID {
	set := n.neighbours()
	out := make([]message.NodeID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// linkParams returns the effective (bw, loss, delay, jitter) for sending
// from n to peer over iface at time now: the interface's configured
// defaults for a proximity interface; for a plan-driven interface only
// loss comes from the plan, and bw, delay and jitter are returned as 0
// (txTime asks the plan for the transmission time separately).
func (n *Node) linkParams(iface *Interface, now engine.Time, peer message.NodeID) (bw, loss float64, delay, jitter engine.Time, ok bool) {
	if iface.Plan != nil {
		if !iface.Plan.HasContact(now, n.ID, peer) {
			return 0, 0, 0, 0, false
		}
		return 0, iface.Plan.LossForContact(now, n.ID, peer), 0, 0, true
	}
	return iface.BW, iface.Loss, iface.Delay, iface.Jitter, true
}

// txTime returns the transmission duration for size bytes to peer over
// iface at now, using the plan when present or the interface defaults
// otherwise. ok is false if no contact covers the pair.
func (n *Node) txTime(iface *Interface, now engine.Time, peer message.NodeID, size int) (engine.Time, bool) {
	if iface.Plan != nil {
		t, err := iface.Plan.TxTimeForContact(now, n.ID, peer, size)
		if err != nil {
			return 0, false
		}
		return t, true
	}
	c := netplan.Contact{BW: iface.BW, Delay: iface.Delay, Jitter: iface.Jitter, End: -1}
	jitter := 0.0
	if iface.Jitter != 0 {
		jitter = n.rng.Float64() - 0.5
	}
	return c.TxTime(size, jitter), true
}

// Send attempts to deliver msg to `to` over every interface that has it (or
// every current neighbour, if to is message.Broadcast). Loss is sampled
// independently per recipient; a lost attempt counts toward Loss and stops
// there. A successful roll schedules the peer's OnRecv at now + tx_time.
// If tx-time cannot be computed (no contact), the attempt is silently
// dropped, per the NoContact error-handling rule.
func (n *Node) Send(now engine.Time, to message.NodeID, msg *message.Message) {
	for _, iface := range n.Interfaces {
		var recipients []message.NodeID
		if to == message.Broadcast {
			for id := range iface.Members {
				recipients = append(recipients, id)
			}
		} else if iface.Members[to] {
			recipients = append(recipients, to)
		}

		for _, peerID := range recipients {
			if n.Observer != nil {
				n.Observer.OnTx()
			}
			_, loss, _, _, ok := n.linkParams(iface, now, peerID)
			if !ok {
				continue
			}
			if loss > 0 && n.rng.Float64() < loss {
				if n.Observer != nil {
					n.Observer.OnLoss()
				}
				logging.Debug("netnode: loss roll dropped %s -> %d", msg.UniqueID(), peerID)
				continue
			}
			txTime, ok := n.txTime(iface, now, peerID, msg.Size)
			if !ok {
				continue
			}
			n.scheduleDelivery(now, txTime, peerID, msg)
		}
	}
}

// SendLocal lets an application emit a message without going through the
// link layer at all: it is handed straight to the local router's reception
// path at the current instant, matching the app-emits-traffic API.
func (n *Node) SendLocal(now engine.Time, m *message.Message) error {
	n.Hook.OnMsgReceived(now, m, n.ID)
	return nil
}

func (n *Node) scheduleDelivery(now, txTime engine.Time, peerID message.NodeID, msg *message.Message) {
	sender := n
	n.sched.Schedule(txTime, engine.TaskFunc(func(deliverAt engine.Time) engine.NextWake {
		peer, ok := sender.dir[peerID]
		if !ok {
			return engine.Done()
		}
		delivered := peer.onRecv(deliverAt, sender.ID, msg)
		if delivered {
			sender.Hook.OnTxSucceeded(deliverAt, peerID, msg)
		} else {
			sender.Hook.OnTxFailed(deliverAt, peerID, msg)
		}
		return engine.Done()
	}))
}

// onRecv re-verifies that from is still a neighbour at the delivery
// instant (the contact may have ended mid-transit) before dispatching to
// the router. Returns whether delivery succeeded.
func (n *Node) onRecv(now engine.Time, from message.NodeID, msg *message.Message) bool {
	if !n.neighbours()[from] {
		if n.Observer != nil {
			n.Observer.OnDrop()
		}
		logging.Debug("netnode: %d rejected delivery from %d, contact no longer active", n.ID, from)
		return false
	}
	if n.Observer != nil {
		n.Observer.OnRx()
	}
	n.Hook.OnMsgReceived(now, msg, from)
	return true
}
