// Package config loads a scenario's full declarative description — nodes,
// topology, routing policy, generators, and the diagnostics surface — from
// YAML, filling in defaults after unmarshal the same way the teacher's
// discord-bridge config loader does.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// NumberSpec is a YAML scalar-or-[low,high] field, the wire form of
// generator.Field: plain "10" decodes to a fixed value, "[10, 20]" decodes
// to a uniform range.
type NumberSpec struct {
	Low, High float64
	Ranged    bool
}

// UnmarshalYAML accepts either a bare number or a two-element sequence.
func (s *NumberSpec) UnmarshalYAML(unmarshal func(any) error) error {
	var scalar float64
	if err := unmarshal(&scalar); err == nil {
		*s = NumberSpec{Low: scalar, High: scalar}
		return nil
	}
	var pair [2]float64
	if err := unmarshal(&pair); err != nil {
		return fmt.Errorf("config: field must be a number or a [low, high] pair: %w", err)
	}
	*s = NumberSpec{Low: pair[0], High: pair[1], Ranged: true}
	return nil
}

// NodeSpec describes one simulated node's identity and initial position.
type NodeSpec struct {
	ID   int     `yaml:"id"`
	Name string  `yaml:"name"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Z    float64 `yaml:"z"`
}

// GeneratorSpec is the YAML form of a generator.Config.
type GeneratorSpec struct {
	Type       string     `yaml:"type"`
	Interval   NumberSpec `yaml:"interval"`
	Src        NumberSpec `yaml:"src"`
	Dst        NumberSpec `yaml:"dst"`
	Size       NumberSpec `yaml:"size"`
	TTL        NumberSpec `yaml:"ttl"`
	IDPrefix   string     `yaml:"id"`
	StartTime  float64    `yaml:"start_time"`
	EndTime    float64    `yaml:"end_time"`
	SrcService int        `yaml:"src_service"`
	DstService int        `yaml:"dst_service"`
}

// RouteSpec is one static-router forwarding rule.
type RouteSpec struct {
	Dst     string `yaml:"dst"`
	NextHop int    `yaml:"next_hop"`
	Hops    int    `yaml:"hops"`
}

// ProphetSpec tunes the PRoPHET policy; zero values fall back to
// router.DefaultProphetConfig.
type ProphetSpec struct {
	EncounterFirst float64 `yaml:"encounter_first"`
	FirstThreshold float64 `yaml:"first_threshold"`
	Encounter      float64 `yaml:"encounter"`
	Beta           float64 `yaml:"beta"`
	Delta          float64 `yaml:"delta"`
	Gamma          float64 `yaml:"gamma"`
}

// RouterSpec selects and configures one node's forwarding policy.
type RouterSpec struct {
	Policy        string      `yaml:"policy"` // direct | first_contact | epidemic | spray_and_wait | prophet | static
	Capacity      int         `yaml:"capacity"`
	ScanInterval  float64     `yaml:"scan_interval"`
	InitialCopies int         `yaml:"initial_copies"` // spray_and_wait
	Binary        bool        `yaml:"binary"`         // spray_and_wait
	Prophet       ProphetSpec `yaml:"prophet"`
	Routes        []RouteSpec `yaml:"routes"`  // static
	PickRandom    bool        `yaml:"pick_random"` // static
}

// Config is a complete scenario: topology, per-node routing, generators,
// and the diagnostics/control surface.
type Config struct {
	Seed int64 `yaml:"seed"`

	Nodes           []NodeSpec `yaml:"nodes"`
	ContactPlanFile string     `yaml:"contact_plan_file"`
	StaticEdges     [][2]int   `yaml:"static_edges"`
	Symmetric       bool       `yaml:"symmetric"`
	Loop            bool       `yaml:"loop"`

	Router     RouterSpec      `yaml:"router"`
	Generators []GeneratorSpec `yaml:"generators"`

	RunUntil      float64 `yaml:"run_until"`
	ChunkSize     float64 `yaml:"chunk_size"`
	RealtimeFactor float64 `yaml:"realtime_factor"` // 0 = virtual (as fast as possible)

	LogLevel     string `yaml:"log_level"`
	HTTPAddr     string `yaml:"http_addr"`
	ControlAddr  string `yaml:"control_addr"`
}

// LoadConfig reads and parses a scenario file, filling in defaults for any
// field the YAML left at its zero value and honouring the same
// environment-variable override convention as the teacher's discord-bridge
// loader for secrets-free fields (the diagnostics/control addresses).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Router.ScanInterval == 0 {
		cfg.Router.ScanInterval = 5
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 5
	}
	if cfg.Router.Policy == "" {
		cfg.Router.Policy = "epidemic"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.ControlAddr == "" {
		cfg.ControlAddr = ":9090"
	}

	if addr := os.Getenv("PONS_HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if addr := os.Getenv("PONS_CONTROL_ADDR"); addr != "" {
		cfg.ControlAddr = addr
	}
	if level := os.Getenv("PONS_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return &cfg, nil
}
