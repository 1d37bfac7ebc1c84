package router

import (
	"fmt"
	"math/rand"
	"path"

	"github.com/RyanCarrier/dijkstra"

	"repram/internal/engine"
	"repram/internal/message"
)

// RouteEntry is one precomputed forwarding rule: messages whose destination
// matches Dst (an exact node id or a shell-glob wildcard pattern, e.g.
// "*") are forwarded toward NextHop.
type RouteEntry struct {
	Dst     string
	NextHop message.NodeID
	Hops    int
}

func (re RouteEntry) matches(dst message.NodeID) bool {
	ok, err := path.Match(re.Dst, fmt.Sprint(int(dst)))
	return err == nil && ok
}

// Static precomputes a next-hop table (typically via BuildRoutes from a
// topology graph) and forwards a message to the next hop only when that
// hop is currently a peer. When several routes resolve to different
// peers, one is chosen at random unless PickRandom is false, in which case
// the first matching route wins.
type Static struct {
	Routes     []RouteEntry
	PickRandom bool
	rng        *rand.Rand
}

// NewStatic returns a Static policy over a precomputed route table.
func NewStatic(routes []RouteEntry, pickRandom bool, seed int64) *Static {
	return &Static{Routes: routes, PickRandom: pickRandom, rng: rand.New(rand.NewSource(seed))}
}

// BuildRoutes computes a next-hop table for self from a weighted graph
// using Dijkstra's shortest path: for every other node reachable in graph,
// the resulting route's next hop is the second vertex on the shortest
// path. ids must list every graph vertex id in the same order they were
// added to graph (ids[i] corresponds to dijkstra vertex i).
func BuildRoutes(graph *dijkstra.Graph, self message.NodeID, ids []message.NodeID) ([]RouteEntry, error) {
	index := make(map[message.NodeID]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	selfIdx, ok := index[self]
	if !ok {
		return nil, fmt.Errorf("router: node %d not present in routing graph", self)
	}

	var routes []RouteEntry
	for _, dst := range ids {
		if dst == self {
			continue
		}
		best, err := graph.Shortest(selfIdx, index[dst])
		if err != nil || len(best.Path) < 2 {
			continue
		}
		routes = append(routes, RouteEntry{
			Dst:     fmt.Sprint(int(dst)),
			NextHop: ids[best.Path[1]],
			Hops:    len(best.Path) - 1,
		})
	}
	return routes, nil
}

func (s *Static) PrepareNew(*message.Message) {}

func (s *Static) Forward(now engine.Time, r *Router, msg *message.Message) {
	if r.IsPeer(msg.Dst) && !r.AlreadySpread(msg.UniqueID(), msg.Dst) {
		r.SendTo(now, msg.Dst, msg)
		return
	}

	var candidates []message.NodeID
	for _, route := range s.Routes {
		if !route.matches(msg.Dst) {
			continue
		}
		if r.IsPeer(route.NextHop) && !r.AlreadySpread(msg.UniqueID(), route.NextHop) {
			candidates = append(candidates, route.NextHop)
		}
	}
	if len(candidates) == 0 {
		return
	}
	var next message.NodeID
	if s.PickRandom {
		next = candidates[s.rng.Intn(len(candidates))]
	} else {
		next = candidates[0]
	}
	r.SendTo(now, next, msg)
}

func (s *Static) OnMsgReceived(now engine.Time, r *Router, msg *message.Message, from message.NodeID) {
	if _, err := r.AddToStore(now, msg); err != nil {
		r.Stats.Routing.Dropped++
		return
	}
	s.Forward(now, r, msg)
}

func (s *Static) OnPeerDiscovered(now engine.Time, r *Router, peer message.NodeID) {
	for _, m := range r.Store.All() {
		s.Forward(now, r, m)
	}
}

// OnTxSucceeded retires the message from the store only after a
// transmission actually completes, unlike the eager-delete variants.
func (*Static) OnTxSucceeded(now engine.Time, r *Router, peer message.NodeID, msg *message.Message) {
	r.RemoveFromStore(msg.UniqueID())
}

func (*Static) OnTxFailed(now engine.Time, r *Router, peer message.NodeID, msg *message.Message) {}
