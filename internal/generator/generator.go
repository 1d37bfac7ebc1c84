// Package generator produces synthetic message traffic on a schedule,
// driven entirely by declarative configuration: a Single generator emits
// one message per interval, a Burst generator emits one from every source
// in its src range per interval. Both honour optional start/end windows.
package generator

import (
	"fmt"
	"math/rand"

	"repram/internal/engine"
	"repram/internal/message"
)

// numeric is the set of field types a Field can sample: plain ints (node
// ids, ports, byte sizes) and simulated-time floats (intervals, ttls).
type numeric interface {
	~int | ~float64
}

// Field is either a fixed Scalar value or a uniform [Low, High) Range,
// sampled independently per call.
type Field[T numeric] struct {
	Low, High T
	ranged    bool
}

// Scalar returns a Field that always samples to v.
func Scalar[T numeric](v T) Field[T] { return Field[T]{Low: v, High: v} }

// Ranged returns a Field sampling uniformly from [lo, hi).
func Ranged[T numeric](lo, hi T) Field[T] { return Field[T]{Low: lo, High: hi, ranged: true} }

// Sample draws a value from the field: the scalar itself, or a uniform
// draw over [Low, High) when the field is a range.
func (f Field[T]) Sample(rng *rand.Rand) T {
	if !f.ranged || f.High <= f.Low {
		return f.Low
	}
	span := float64(f.High - f.Low)
	return f.Low + T(rng.Float64()*span)
}

// Kind distinguishes the two generator emission patterns.
type Kind string

const (
	Single Kind = "single"
	Burst  Kind = "burst"
)

// Config is a generator's full declarative configuration: every scalar
// field may instead be a range, sampled fresh on each emission.
type Config struct {
	Type Kind

	Interval Field[engine.Time]
	Src      Field[message.NodeID]
	Dst      Field[message.NodeID]
	Size     Field[int]
	TTL      Field[engine.Time]

	IDPrefix string

	StartTime  engine.Time
	EndTime    engine.Time // 0 means unbounded
	SrcService message.Port
	DstService message.Port
}

// Sink is the capability a Generator hands finished messages to — a
// router's external entry point.
type Sink interface {
	Accept(now engine.Time, m *message.Message) error
}

// Generator drives Single or Burst emission from a Config, scheduling
// itself on an engine.Scheduler as a self-rescheduling task.
type Generator struct {
	Cfg   Config
	Sink  Sink
	Sched *engine.Scheduler
	rng   *rand.Rand

	counter int
}

// New returns a Generator ready to Start.
func New(cfg Config, sink Sink, sched *engine.Scheduler, seed int64) *Generator {
	return &Generator{Cfg: cfg, Sink: sink, Sched: sched, rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) nextID() string {
	id := fmt.Sprintf("%s%d", g.Cfg.IDPrefix, g.counter)
	g.counter++
	return id
}

func (g *Generator) inWindow(now engine.Time) bool {
	if now < g.Cfg.StartTime {
		return false
	}
	if g.Cfg.EndTime > 0 && now > g.Cfg.EndTime {
		return false
	}
	return true
}

// emit builds and hands off one message from src to dst at now.
func (g *Generator) emit(now engine.Time, src, dst message.NodeID) {
	m := &message.Message{
		ID:         g.nextID(),
		Src:        src,
		Dst:        dst,
		SrcService: g.Cfg.SrcService,
		DstService: g.Cfg.DstService,
		Size:       g.Cfg.Size.Sample(g.rng),
		Created:    now,
		TTL:        g.Cfg.TTL.Sample(g.rng),
	}
	g.Sink.Accept(now, m)
}

// Start installs the generator's self-rescheduling task. Single emits one
// message per interval from a sampled src to a sampled dst; Burst emits
// one message per interval from every integer source in [Src.Low,
// Src.High) to a freshly sampled dst.
func (g *Generator) Start() {
	var tick engine.TaskFunc
	tick = func(now engine.Time) engine.NextWake {
		if g.Cfg.EndTime > 0 && now > g.Cfg.EndTime {
			return engine.Done()
		}
		if g.inWindow(now) {
			switch g.Cfg.Type {
			case Burst:
				lo, hi := g.Cfg.Src.Low, g.Cfg.Src.High
				if hi <= lo {
					hi = lo + 1
				}
				for src := lo; src < hi; src++ {
					g.emit(now, src, g.Cfg.Dst.Sample(g.rng))
				}
			default:
				g.emit(now, g.Cfg.Src.Sample(g.rng), g.Cfg.Dst.Sample(g.rng))
			}
		}
		interval := g.Cfg.Interval.Sample(g.rng)
		if interval <= 0 {
			interval = 1
		}
		return engine.At(now + interval)
	}
	start := g.Cfg.StartTime
	if g.Sched.Now() > start {
		start = g.Sched.Now()
	}
	g.Sched.Schedule(start-g.Sched.Now(), tick)
}
