package simulator

import (
	"path/filepath"
	"testing"

	"repram/internal/config"
)

func TestSimulatorTwoNodeDirectDelivery(t *testing.T) {
	cfg := &config.Config{
		Seed: 1,
		Nodes: []config.NodeSpec{
			{ID: 0, Name: "a"},
			{ID: 1, Name: "b"},
		},
		StaticEdges: [][2]int{{0, 1}},
		Router:      config.RouterSpec{Policy: "direct", ScanInterval: 1},
		Generators: []config.GeneratorSpec{
			{
				Type:     "single",
				Interval: config.NumberSpec{Low: 1000, High: 1000},
				Src:      config.NumberSpec{Low: 0, High: 0},
				Dst:      config.NumberSpec{Low: 1, High: 1},
				Size:     config.NumberSpec{Low: 1000, High: 1000},
				TTL:      config.NumberSpec{Low: 100, High: 100},
				IDPrefix: "m",
			},
		},
		RunUntil:  10,
		ChunkSize: 1,
	}

	sim := New(cfg)
	logPath := filepath.Join(t.TempDir(), "events.log")
	if err := sim.Setup(logPath); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer sim.Close()

	snap, err := sim.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Routing.Created != 1 {
		t.Fatalf("Created = %d, want 1", snap.Routing.Created)
	}
	if snap.Routing.Delivered != 1 {
		t.Fatalf("Delivered = %d, want 1", snap.Routing.Delivered)
	}
	if snap.Derived.HopsAvg != 1 {
		t.Fatalf("HopsAvg = %v, want 1", snap.Derived.HopsAvg)
	}
}

func TestSimulatorEpidemicChainDelivers(t *testing.T) {
	cfg := &config.Config{
		Seed: 2,
		Nodes: []config.NodeSpec{
			{ID: 0, Name: "a"},
			{ID: 1, Name: "b"},
			{ID: 2, Name: "c"},
		},
		StaticEdges: [][2]int{{0, 1}, {1, 2}},
		Router:      config.RouterSpec{Policy: "epidemic", ScanInterval: 1},
		Generators: []config.GeneratorSpec{
			{
				Type:     "single",
				Interval: config.NumberSpec{Low: 1000, High: 1000},
				Src:      config.NumberSpec{Low: 0, High: 0},
				Dst:      config.NumberSpec{Low: 2, High: 2},
				Size:     config.NumberSpec{Low: 500, High: 500},
				TTL:      config.NumberSpec{Low: 200, High: 200},
				IDPrefix: "e",
			},
		},
		RunUntil:  20,
		ChunkSize: 1,
	}

	sim := New(cfg)
	logPath := filepath.Join(t.TempDir(), "events.log")
	if err := sim.Setup(logPath); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer sim.Close()

	snap, err := sim.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Routing.Delivered != 1 {
		t.Fatalf("Delivered = %d, want 1", snap.Routing.Delivered)
	}
	if snap.Routing.Hops != 2 {
		t.Fatalf("Hops = %d, want 2 (two static hops a-b-c)", snap.Routing.Hops)
	}
}

func TestSimulatorAbortStopsRun(t *testing.T) {
	cfg := &config.Config{
		Nodes:     []config.NodeSpec{{ID: 0}},
		Router:    config.RouterSpec{Policy: "epidemic", ScanInterval: 1},
		RunUntil:  5,
		ChunkSize: 1,
	}
	sim := New(cfg)
	logPath := filepath.Join(t.TempDir(), "events.log")
	if err := sim.Setup(logPath); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer sim.Close()

	if err := sim.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := sim.Run(); err == nil {
		t.Fatal("Run() after Abort() should report an error")
	}
}
