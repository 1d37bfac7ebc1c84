package simulator

import (
	"fmt"

	"github.com/RyanCarrier/dijkstra"

	"repram/internal/config"
	"repram/internal/message"
	"repram/internal/router"
)

// buildPolicy returns the forwarding policy named by spec.Policy for node
// self. graph/ids are only consulted for the static policy when the
// config supplies no explicit route table, in which case routes are
// derived from the static topology with a shortest-path computation.
func buildPolicy(spec config.RouterSpec, self message.NodeID, graph *dijkstra.Graph, ids []message.NodeID) (router.Policy, error) {
	switch spec.Policy {
	case "", "epidemic":
		return router.Epidemic{}, nil
	case "direct":
		return router.DirectDelivery{}, nil
	case "first_contact":
		return router.FirstContact{}, nil
	case "spray_and_wait":
		copies := spec.InitialCopies
		if copies <= 0 {
			copies = 1
		}
		return router.SprayAndWait{InitialCopies: copies, Binary: spec.Binary}, nil
	case "prophet":
		return router.NewProphet(self, prophetConfigFrom(spec.Prophet)), nil
	case "static":
		routes, err := staticRoutesFor(spec, self, graph, ids)
		if err != nil {
			return nil, err
		}
		return router.NewStatic(routes, spec.PickRandom, 1), nil
	default:
		return nil, fmt.Errorf("simulator: unknown router policy %q", spec.Policy)
	}
}

// prophetConfigFrom returns spec's tuning, falling back to
// router.DefaultProphetConfig field-by-field for any zero-valued knob.
func prophetConfigFrom(spec config.ProphetSpec) router.ProphetConfig {
	def := router.DefaultProphetConfig()
	cfg := def
	if spec.EncounterFirst != 0 {
		cfg.EncounterFirst = spec.EncounterFirst
	}
	if spec.FirstThreshold != 0 {
		cfg.FirstThreshold = spec.FirstThreshold
	}
	if spec.Encounter != 0 {
		cfg.Encounter = spec.Encounter
	}
	if spec.Beta != 0 {
		cfg.Beta = spec.Beta
	}
	if spec.Delta != 0 {
		cfg.Delta = spec.Delta
	}
	if spec.Gamma != 0 {
		cfg.Gamma = spec.Gamma
	}
	return cfg
}

// staticRoutesFor returns spec.Routes converted to router.RouteEntry when
// the config supplies them explicitly, or derives a shortest-path table
// from the static topology graph otherwise.
func staticRoutesFor(spec config.RouterSpec, self message.NodeID, graph *dijkstra.Graph, ids []message.NodeID) ([]router.RouteEntry, error) {
	if len(spec.Routes) > 0 {
		routes := make([]router.RouteEntry, len(spec.Routes))
		for i, rs := range spec.Routes {
			routes[i] = router.RouteEntry{Dst: rs.Dst, NextHop: message.NodeID(rs.NextHop), Hops: rs.Hops}
		}
		return routes, nil
	}
	if graph == nil {
		return nil, nil
	}
	return router.BuildRoutes(graph, self, ids)
}

// buildStaticGraph builds a dijkstra.Graph over every node id with a unit-
// weight arc for each static edge (and its reverse, when symmetric), for
// use by the static policy's shortest-path route derivation.
func buildStaticGraph(ids []message.NodeID, edges [][2]int, symmetric bool) *dijkstra.Graph {
	index := make(map[int]int, len(ids))
	for i, id := range ids {
		index[int(id)] = i
	}
	graph := dijkstra.NewGraph()
	for i := range ids {
		graph.AddVertex(i)
	}
	for _, e := range edges {
		ai, aok := index[e[0]]
		bi, bok := index[e[1]]
		if !aok || !bok {
			continue
		}
		graph.AddArc(ai, bi, 1)
		if symmetric {
			graph.AddArc(bi, ai, 1)
		}
	}
	return graph
}
