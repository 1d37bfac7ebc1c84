// Command scenariobench runs one scenario configuration many times
// concurrently, each run seeded independently, and aggregates the
// resulting delivery statistics across the whole batch.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"repram/internal/config"
	"repram/internal/simulator"
)

// BatchRunner drives a fixed scenario configuration across many
// independently-seeded simulation runs and aggregates their stats.
type BatchRunner struct {
	cfg         *config.Config
	runs        int
	concurrency int
	seedBase    int64
	logDir      string

	totalRuns      int64
	successfulRuns int64
	failedRuns     int64

	totalCreated   int64
	totalDelivered int64
	totalDropped   int64
	totalHops      int64

	minLatencyUs int64
	maxLatencyUs int64
}

// RunResult is one batch's aggregated outcome.
type RunResult struct {
	TotalRuns      int64         `json:"total_runs"`
	SuccessfulRuns int64         `json:"successful_runs"`
	FailedRuns     int64         `json:"failed_runs"`
	TotalCreated   int64         `json:"total_created"`
	TotalDelivered int64         `json:"total_delivered"`
	TotalDropped   int64         `json:"total_dropped"`
	DeliveryProb   float64       `json:"delivery_prob"`
	AvgHops        float64       `json:"avg_hops"`
	MinRunLatency  time.Duration `json:"min_run_latency_ns"`
	MaxRunLatency  time.Duration `json:"max_run_latency_ns"`
	BatchDuration  time.Duration `json:"batch_duration"`
}

// NewBatchRunner returns a BatchRunner for cfg, ready to fan the given
// number of runs out across concurrency workers. logDir holds each run's
// event log, named scenario-<n>.log; "" discards them via os.DevNull.
func NewBatchRunner(cfg *config.Config, runs, concurrency int, seedBase int64, logDir string) *BatchRunner {
	return &BatchRunner{
		cfg:          cfg,
		runs:         runs,
		concurrency:  concurrency,
		seedBase:     seedBase,
		logDir:       logDir,
		minLatencyUs: int64(^uint64(0) >> 1),
	}
}

func (b *BatchRunner) runOne(index int) {
	atomic.AddInt64(&b.totalRuns, 1)

	cfg := *b.cfg
	cfg.Seed = b.seedBase + int64(index)

	logPath := os.DevNull
	if b.logDir != "" {
		logPath = filepath.Join(b.logDir, fmt.Sprintf("scenario-%d.log", index))
	}

	sim := simulator.New(&cfg)
	start := time.Now()

	if err := sim.Setup(logPath); err != nil {
		atomic.AddInt64(&b.failedRuns, 1)
		log.Printf("run %d: setup failed: %v", index, err)
		return
	}
	defer sim.Close()

	snap, err := sim.Run()
	elapsed := time.Since(start)

	b.recordLatency(elapsed)

	if err != nil {
		atomic.AddInt64(&b.failedRuns, 1)
		log.Printf("run %d: run failed: %v", index, err)
		return
	}

	atomic.AddInt64(&b.successfulRuns, 1)
	atomic.AddInt64(&b.totalCreated, int64(snap.Routing.Created))
	atomic.AddInt64(&b.totalDelivered, int64(snap.Routing.Delivered))
	atomic.AddInt64(&b.totalDropped, int64(snap.Routing.Dropped))
	atomic.AddInt64(&b.totalHops, int64(snap.Routing.Hops))
}

func (b *BatchRunner) recordLatency(d time.Duration) {
	us := d.Microseconds()
	for {
		current := atomic.LoadInt64(&b.minLatencyUs)
		if us >= current || atomic.CompareAndSwapInt64(&b.minLatencyUs, current, us) {
			break
		}
	}
	for {
		current := atomic.LoadInt64(&b.maxLatencyUs)
		if us <= current || atomic.CompareAndSwapInt64(&b.maxLatencyUs, current, us) {
			break
		}
	}
}

// Run executes the configured number of simulation runs across
// b.concurrency workers and returns the aggregated result.
func (b *BatchRunner) Run() RunResult {
	fmt.Printf("Starting scenario batch:\n")
	fmt.Printf("  Runs: %d\n", b.runs)
	fmt.Printf("  Concurrency: %d\n", b.concurrency)
	fmt.Printf("  Seed base: %d\n", b.seedBase)
	fmt.Printf("  Deadline: %.0f\n\n", b.cfg.RunUntil)

	start := time.Now()

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < b.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				b.runOne(idx)
			}
		}()
	}
	for i := 0; i < b.runs; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	duration := time.Since(start)

	totalDelivered := atomic.LoadInt64(&b.totalDelivered)
	totalCreated := atomic.LoadInt64(&b.totalCreated)
	totalHops := atomic.LoadInt64(&b.totalHops)

	var deliveryProb, avgHops float64
	if totalCreated > 0 {
		deliveryProb = float64(totalDelivered) / float64(totalCreated)
	}
	if totalDelivered > 0 {
		avgHops = float64(totalHops) / float64(totalDelivered)
	}

	return RunResult{
		TotalRuns:      atomic.LoadInt64(&b.totalRuns),
		SuccessfulRuns: atomic.LoadInt64(&b.successfulRuns),
		FailedRuns:     atomic.LoadInt64(&b.failedRuns),
		TotalCreated:   totalCreated,
		TotalDelivered: totalDelivered,
		TotalDropped:   atomic.LoadInt64(&b.totalDropped),
		DeliveryProb:   deliveryProb,
		AvgHops:        avgHops,
		MinRunLatency:  time.Duration(atomic.LoadInt64(&b.minLatencyUs)) * time.Microsecond,
		MaxRunLatency:  time.Duration(atomic.LoadInt64(&b.maxLatencyUs)) * time.Microsecond,
		BatchDuration:  duration,
	}
}

// PrintResult prints a human-readable summary followed by the JSON form.
func PrintResult(r RunResult) {
	fmt.Printf("\n=== Scenario Batch Results ===\n")
	fmt.Printf("Batch Duration: %s\n", r.BatchDuration.Round(time.Millisecond))
	fmt.Printf("Total Runs: %d\n", r.TotalRuns)
	fmt.Printf("Successful Runs: %d\n", r.SuccessfulRuns)
	fmt.Printf("Failed Runs: %d\n", r.FailedRuns)
	fmt.Printf("Delivery Probability: %.4f\n", r.DeliveryProb)
	fmt.Printf("Average Hops: %.2f\n", r.AvgHops)
	fmt.Printf("Min Run Latency: %s\n", r.MinRunLatency)
	fmt.Printf("Max Run Latency: %s\n", r.MaxRunLatency)

	fmt.Printf("\n=== JSON Results ===\n")
	jsonResult, _ := json.MarshalIndent(r, "", "  ")
	fmt.Printf("%s\n", jsonResult)
}

func main() {
	var (
		scenarioFile = flag.String("scenario", "", "Path to a scenario YAML configuration")
		runs         = flag.Int("runs", 20, "Number of independent simulation runs")
		concurrency  = flag.Int("c", 4, "Number of concurrent workers")
		seedBase     = flag.Int64("seed-base", 1, "First run's seed; each subsequent run adds 1")
		logDir       = flag.String("logdir", "", "Directory to write each run's event log (default: discard)")
	)
	flag.Parse()

	if *scenarioFile == "" {
		log.Fatal("scenariobench: -scenario is required")
	}

	cfg, err := config.LoadConfig(*scenarioFile)
	if err != nil {
		log.Fatalf("scenariobench: %v", err)
	}

	if *logDir != "" {
		if err := os.MkdirAll(*logDir, 0o755); err != nil {
			log.Fatalf("scenariobench: create log dir: %v", err)
		}
	}

	rand.Seed(time.Now().UnixNano())

	runner := NewBatchRunner(cfg, *runs, *concurrency, *seedBase, *logDir)
	result := runner.Run()
	PrintResult(result)
}
