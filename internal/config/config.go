// Package config loads fleet scenarios from YAML and service settings from the environment.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"fleetnav/internal/assign"
	"fleetnav/internal/grid"
	"fleetnav/internal/pathfind"
	"fleetnav/internal/sim"
)

// RobotSpec places one robot.
type RobotSpec struct {
	ID       int           `yaml:"id"`
	Position grid.Position `yaml:"position"`
}

// Scenario describes a grid, a fleet and an initial order queue.
type Scenario struct {
	Grid          grid.Layout     `yaml:"grid"`
	Robots        []RobotSpec     `yaml:"robots"`
	Orders        []grid.Position `yaml:"orders"`
	Policy        string          `yaml:"policy,omitempty"`
	Workers       int             `yaml:"workers,omitempty"`
	MaxExpansions int             `yaml:"maxExpansions,omitempty"`
	// LowBattery nil keeps the simulation default; 0 disables the check.
	LowBattery *int `yaml:"lowBattery,omitempty"`
}

// DefaultScenario is the 10x10 demo: a short wall at x=4, two robots on the
// left edge and two orders on the right edge.
func DefaultScenario() Scenario {
	return Scenario{
		Grid: grid.Layout{
			Width:     10,
			Height:    10,
			Obstacles: []grid.Position{{X: 4, Y: 4}, {X: 4, Y: 5}, {X: 4, Y: 6}},
		},
		Robots: []RobotSpec{
			{ID: 1, Position: grid.Position{X: 0, Y: 0}},
			{ID: 2, Position: grid.Position{X: 0, Y: 9}},
		},
		Orders: []grid.Position{{X: 9, Y: 0}, {X: 9, Y: 9}},
		Policy: "greedy",
	}
}

// ParseScenario decodes YAML. Unknown keys are rejected.
func ParseScenario(data []byte) (Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	return sc, nil
}

// LoadScenario reads a scenario file. An empty path returns DefaultScenario.
func LoadScenario(path string) (Scenario, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultScenario(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	return ParseScenario(data)
}

// Marshal encodes the scenario back to YAML.
func (sc Scenario) Marshal() ([]byte, error) { return yaml.Marshal(sc) }

// Assigner builds the assigner the scenario asks for.
func (sc Scenario) Assigner() (*assign.Assigner, error) {
	policy, err := assign.ParsePolicy(sc.Policy)
	if err != nil {
		return nil, err
	}
	if sc.Workers < 0 || sc.MaxExpansions < 0 {
		return nil, fmt.Errorf("workers and maxExpansions must be >= 0")
	}
	return &assign.Assigner{Policy: policy, Workers: sc.Workers, Search: pathfind.Options{MaxExpansions: sc.MaxExpansions}}, nil
}

// Build creates a simulation populated with the scenario's robots and orders.
func (sc Scenario) Build() (*sim.Simulation, error) {
	g, err := sc.Grid.Build()
	if err != nil {
		return nil, err
	}
	a, err := sc.Assigner()
	if err != nil {
		return nil, err
	}
	opts := []sim.Option{sim.WithAssigner(a)}
	if sc.LowBattery != nil {
		opts = append(opts, sim.WithLowBattery(*sc.LowBattery))
	}
	s := sim.New(g, opts...)
	for _, r := range sc.Robots {
		if _, err := s.AddRobot(r.ID, r.Position); err != nil {
			return nil, fmt.Errorf("robot %d: %w", r.ID, err)
		}
	}
	for i, o := range sc.Orders {
		if _, err := s.AddOrder(o); err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
	}
	return s, nil
}

// ApplyEnv overrides scenario tuning from FLEET_POLICY, FLEET_WORKERS,
// FLEET_MAX_EXPANSIONS and FLEET_LOW_BATTERY.
func (sc *Scenario) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv("FLEET_POLICY")); v != "" {
		sc.Policy = v
	}
	if v := os.Getenv("FLEET_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FLEET_WORKERS: %w", err)
		}
		sc.Workers = n
	}
	if v := os.Getenv("FLEET_MAX_EXPANSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FLEET_MAX_EXPANSIONS: %w", err)
		}
		sc.MaxExpansions = n
	}
	if v := os.Getenv("FLEET_LOW_BATTERY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FLEET_LOW_BATTERY: %w", err)
		}
		sc.LowBattery = &n
	}
	return nil
}
