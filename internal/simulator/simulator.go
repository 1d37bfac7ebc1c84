// Package simulator wires every other package into one runnable scenario:
// topology, nodes, routers, traffic generators, and the scheduler pump
// that drives them from t=0 to the configured run length.
package simulator

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/RyanCarrier/dijkstra"

	"repram/internal/config"
	"repram/internal/engine"
	"repram/internal/eventlog"
	"repram/internal/generator"
	"repram/internal/message"
	"repram/internal/netnode"
	"repram/internal/netplan"
	"repram/internal/planio"
	"repram/internal/router"
	"repram/internal/stats"
)

// routerSink fans a generator's emitted messages out to the originating
// node's router, keyed by the message's own Src field — the only way to
// serve a Burst generator, whose source varies per tick, through
// generator.Sink's single Accept entry point.
type routerSink struct {
	routers map[message.NodeID]*router.Router
}

func (s routerSink) Accept(now engine.Time, m *message.Message) error {
	r, ok := s.routers[m.Src]
	if !ok {
		return fmt.Errorf("simulator: generator source node %d has no router", m.Src)
	}
	return r.Accept(now, m)
}

// Simulator owns every component of one run: the scheduler, the topology,
// every node and its router, the running generators, and the shared
// counters/event log they all write to.
type Simulator struct {
	Cfg      *config.Config
	Sched    *engine.Scheduler
	Plan     *netplan.NetworkPlan
	Nodes    []*netnode.Node
	Routers  map[message.NodeID]*router.Router
	Counters *stats.Counters
	Log      *eventlog.Log

	generators   []*generator.Generator
	topologyStep engine.Time
	logFile      *os.File
	logPath      string

	mu         sync.Mutex
	pausedCond *sync.Cond
	paused     bool
	aborted    atomic.Bool
}

// New returns a Simulator ready for Setup.
func New(cfg *config.Config) *Simulator {
	s := &Simulator{Cfg: cfg, Counters: &stats.Counters{}}
	s.pausedCond = sync.NewCond(&s.mu)
	return s
}

// Setup builds the scheduler, topology, nodes, routers, and generators
// from the configuration, and opens eventLogPath (truncating it) as the
// run's event log. Call Run afterward to drive the scheduler.
func (s *Simulator) Setup(eventLogPath string) error {
	var clock engine.Clock = engine.Virtual{}
	if s.Cfg.RealtimeFactor > 0 {
		clock = engine.NewRealtime(s.Cfg.RealtimeFactor, false)
	}
	s.Sched = engine.NewScheduler(abortableClock{inner: clock, aborted: &s.aborted})

	f, err := os.Create(eventLogPath)
	if err != nil {
		return fmt.Errorf("simulator: create event log %s: %w", eventLogPath, err)
	}
	s.logFile = f
	s.logPath = eventLogPath
	s.Log = eventlog.New(f)

	if err := s.buildTopology(); err != nil {
		return err
	}
	if err := s.buildNodesAndRouters(); err != nil {
		return err
	}
	s.buildGenerators()

	for _, n := range s.Nodes {
		n.CalcNeighbors(s.Sched.Now(), s.Nodes)
	}
	for _, r := range s.Routers {
		r.Start()
	}
	s.startTopologyTask()

	return nil
}

func (s *Simulator) buildTopology() error {
	nodes := make([]netplan.NetNode, len(s.Cfg.Nodes))
	for i, ns := range s.Cfg.Nodes {
		nodes[i] = netplan.NetNode{ID: message.NodeID(ns.ID), Name: ns.Name, X: ns.X, Y: ns.Y, Z: ns.Z}
	}

	var cp *netplan.ContactPlan
	loopFromFile := false
	if s.Cfg.ContactPlanFile != "" {
		contacts, loop, err := planio.LoadContactPlanFile(s.Cfg.ContactPlanFile)
		if err != nil {
			return fmt.Errorf("simulator: load contact plan: %w", err)
		}
		loopFromFile = loop
		cp = netplan.NewContactPlan(contacts, s.Cfg.Symmetric, loopFromFile || s.Cfg.Loop, s.Cfg.Seed)
	}

	edges := make([][2]message.NodeID, len(s.Cfg.StaticEdges))
	for i, e := range s.Cfg.StaticEdges {
		edges[i] = [2]message.NodeID{message.NodeID(e[0]), message.NodeID(e[1])}
	}

	s.Plan = netplan.NewNetworkPlan(nodes, edges, cp)

	s.topologyStep = engine.Time(s.Cfg.ChunkSize)
	if s.topologyStep <= 0 {
		s.topologyStep = 5
	}
	return nil
}

func (s *Simulator) buildNodesAndRouters() error {
	ids := make([]message.NodeID, len(s.Cfg.Nodes))
	for i, ns := range s.Cfg.Nodes {
		ids[i] = message.NodeID(ns.ID)
	}

	var graph *dijkstra.Graph
	if s.Cfg.Router.Policy == "static" && len(s.Cfg.Router.Routes) == 0 {
		graph = buildStaticGraph(ids, s.Cfg.StaticEdges, s.Cfg.Symmetric)
	}

	s.Routers = make(map[message.NodeID]*router.Router, len(s.Cfg.Nodes))
	s.Nodes = make([]*netnode.Node, 0, len(s.Cfg.Nodes))

	for i, ns := range s.Cfg.Nodes {
		id := message.NodeID(ns.ID)
		r := router.New(id, engine.Time(s.Cfg.Router.ScanInterval), s.Cfg.Router.Capacity, s.Sched, nil, nil, s.Counters, s.Log)
		n := netnode.New(id, ns.Name, ns.X, ns.Y, ns.Z, s.Sched, r, s.Cfg.Seed+int64(i)+1)
		n.AddPlanInterface("plan0", s.Plan)
		r.Sender = n
		r.Neighbors = n

		policy, err := buildPolicy(s.Cfg.Router, id, graph, ids)
		if err != nil {
			return fmt.Errorf("simulator: node %d: %w", id, err)
		}
		r.SetPolicy(policy)

		s.Routers[id] = r
		s.Nodes = append(s.Nodes, n)
	}

	for _, r := range s.Routers {
		r.Lookup = func(id message.NodeID) *router.Router { return s.Routers[id] }
	}

	directory := make(netnode.Directory, len(s.Nodes))
	for _, n := range s.Nodes {
		directory[n.ID] = n
	}
	for _, n := range s.Nodes {
		n.SetDirectory(directory)
	}
	return nil
}

func (s *Simulator) buildGenerators() {
	sink := routerSink{routers: s.Routers}
	for i, gs := range s.Cfg.Generators {
		g := generator.New(generatorConfigFrom(gs), sink, s.Sched, s.Cfg.Seed+int64(i)+1000)
		g.Start()
		s.generators = append(s.generators, g)
	}
}

// startTopologyTask installs the recurring task that keeps every node's
// neighbour set current: it recomputes all of them, then sleeps until
// either the contact plan's next scheduled change or one chunk of
// simulated time passes, whichever is sooner.
func (s *Simulator) startTopologyTask() {
	var tick engine.TaskFunc
	tick = func(now engine.Time) engine.NextWake {
		for _, n := range s.Nodes {
			n.CalcNeighbors(now, s.Nodes)
		}
		next := now + s.topologyStep
		if s.Plan != nil && s.Plan.Contact != nil {
			if t, ok := s.Plan.Contact.NextEvent(now); ok && t < next {
				next = t
			}
		}
		return engine.At(next)
	}
	s.Sched.Spawn(tick)
}

// Run pumps the scheduler from its current time to Cfg.RunUntil in
// Cfg.ChunkSize steps, checking for pause/abort between chunks, and
// returns the final counters snapshot (raw counts plus derived averages).
func (s *Simulator) Run() (stats.Snapshot, error) {
	deadline := engine.Time(s.Cfg.RunUntil)
	chunk := engine.Time(s.Cfg.ChunkSize)
	if chunk <= 0 {
		chunk = deadline
	}

	for s.Sched.Now() < deadline {
		s.waitIfPaused()
		if s.aborted.Load() {
			return s.Counters.Snapshot(), engine.ErrAborted
		}
		next := s.Sched.Now() + chunk
		if next > deadline {
			next = deadline
		}
		if err := s.Sched.RunUntil(next); err != nil {
			return s.Counters.Snapshot(), err
		}
	}
	return s.Counters.Snapshot(), nil
}

func (s *Simulator) waitIfPaused() {
	s.mu.Lock()
	for s.paused && !s.aborted.Load() {
		s.pausedCond.Wait()
	}
	s.mu.Unlock()
}

// Pause, Resume, Abort, and Snapshot implement internal/control.Handler,
// letting a control.Server drive this run remotely.
func (s *Simulator) Pause() error {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	return nil
}

func (s *Simulator) Resume() error {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.pausedCond.Broadcast()
	return nil
}

func (s *Simulator) Abort() error {
	s.aborted.Store(true)
	s.mu.Lock()
	s.pausedCond.Broadcast()
	s.mu.Unlock()
	return nil
}

func (s *Simulator) Snapshot() stats.Snapshot { return s.Counters.Snapshot() }

// Now implements internal/statusapi.Clock.
func (s *Simulator) Now() engine.Time { return s.Sched.Now() }

// EventLogPath returns the path Setup opened for this run's event log.
func (s *Simulator) EventLogPath() string { return s.logPath }

// Close releases the event log file.
func (s *Simulator) Close() error {
	if s.logFile != nil {
		return s.logFile.Close()
	}
	return nil
}

// generatorConfigFrom maps a config.GeneratorSpec onto generator.Config.
// Any type other than "burst" yields a single generator; an unrecognised
// type is not reported as an error.
func generatorConfigFrom(gs config.GeneratorSpec) generator.Config {
	kind := generator.Single
	if gs.Type == "burst" {
		kind = generator.Burst
	}
	return generator.Config{
		Type:       kind,
		Interval:   timeField(gs.Interval),
		Src:        nodeField(gs.Src),
		Dst:        nodeField(gs.Dst),
		Size:       intField(gs.Size),
		TTL:        timeField(gs.TTL),
		IDPrefix:   gs.IDPrefix,
		StartTime:  engine.Time(gs.StartTime),
		EndTime:    engine.Time(gs.EndTime),
		SrcService: message.Port(gs.SrcService),
		DstService: message.Port(gs.DstService),
	}
}

func timeField(n config.NumberSpec) generator.Field[engine.Time] {
	if n.Ranged {
		return generator.Ranged(engine.Time(n.Low), engine.Time(n.High))
	}
	return generator.Scalar(engine.Time(n.Low))
}

func nodeField(n config.NumberSpec) generator.Field[message.NodeID] {
	if n.Ranged {
		return generator.Ranged(message.NodeID(n.Low), message.NodeID(n.High))
	}
	return generator.Scalar(message.NodeID(n.Low))
}

func intField(n config.NumberSpec) generator.Field[int] {
	if n.Ranged {
		return generator.Ranged(int(n.Low), int(n.High))
	}
	return generator.Scalar(int(n.Low))
}
