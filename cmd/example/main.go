// Command example runs a tiny two-node direct-delivery scenario end to end
// and prints the resulting counters, as a minimal demonstration of the
// simulator package outside of the scenariobench entry point.
package main

import (
	"fmt"
	"log"
	"os"

	"repram/internal/config"
	"repram/internal/simulator"
)

func main() {
	cfg := &config.Config{
		Seed: 1,
		Nodes: []config.NodeSpec{
			{ID: 0, Name: "origin"},
			{ID: 1, Name: "destination"},
		},
		StaticEdges: [][2]int{{0, 1}},
		Symmetric:   true,
		Router:      config.RouterSpec{Policy: "direct", ScanInterval: 1},
		Generators: []config.GeneratorSpec{
			{
				Type:     "single",
				Interval: config.NumberSpec{Low: 10, High: 10},
				Src:      config.NumberSpec{Low: 0, High: 0},
				Dst:      config.NumberSpec{Low: 1, High: 1},
				Size:     config.NumberSpec{Low: 1024, High: 1024},
				TTL:      config.NumberSpec{Low: 100, High: 100},
				IDPrefix: "demo",
			},
		},
		RunUntil:  100,
		ChunkSize: 5,
	}

	sim := simulator.New(cfg)
	logPath := "example_events.log"
	if err := sim.Setup(logPath); err != nil {
		log.Fatalf("setup: %v", err)
	}
	defer sim.Close()
	defer os.Remove(logPath)

	snap, err := sim.Run()
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	fmt.Printf("created=%d delivered=%d dropped=%d hops_avg=%.2f delivery_prob=%.2f\n",
		snap.Routing.Created, snap.Routing.Delivered, snap.Routing.Dropped,
		snap.Derived.HopsAvg, snap.Derived.DeliveryProb)
}
