// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config holds the machine configuration passed to each task at
// construction: timing, priorities and the slot offset table.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me507/colorsorter/sorter/core"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// PositionerConfig configures the positioner task. Period is in scheduler
// ticks; StallTimeout is in positioner periods.
type PositionerConfig struct {
	Period       uint64 `yaml:"period"`
	Priority     int    `yaml:"priority"`
	StallTimeout uint64 `yaml:"stall_timeout"`
}

// ReleaserConfig configures the releaser task. All durations are in
// scheduler ticks.
type ReleaserConfig struct {
	Period   uint64 `yaml:"period"`
	Priority int    `yaml:"priority"`
	Dwell    uint64 `yaml:"dwell"`
	MaxDwell uint64 `yaml:"max_dwell"`
}

// Config is the root configuration.
type Config struct {
	Tick        time.Duration    `yaml:"tick"`
	Positioner  PositionerConfig `yaml:"positioner"`
	Releaser    ReleaserConfig   `yaml:"releaser"`
	StepsPerRev int              `yaml:"steps_per_rev"`
	Slots       map[string]int   `yaml:"slots"`
}

// Default returns the configuration used when no file is given. Priorities
// and steps per revolution match the sorter firmware; the releaser runs
// twice as often as the positioner.
func Default() Config {
	return Config{
		Tick: 10 * time.Millisecond,
		Positioner: PositionerConfig{
			Period:       10,
			Priority:     5,
			StallTimeout: 20,
		},
		Releaser: ReleaserConfig{
			Period:   5,
			Priority: 10,
			Dwell:    100,
			MaxDwell: 300,
		},
		StepsPerRev: 200,
		Slots: map[string]int{
			core.SlotA.String():   50,
			core.SlotB.String():   100,
			core.SlotC.String():   150,
			core.Unknown.String(): 0,
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the timing relationships the hand-off protocol relies on.
func (c Config) Validate() error {
	var errs []error
	if c.Tick <= 0 {
		errs = append(errs, fmt.Errorf("tick must be positive, got %s", c.Tick))
	}
	if c.Positioner.Period == 0 {
		errs = append(errs, errors.New("positioner.period must be positive"))
	}
	if c.Releaser.Period == 0 {
		errs = append(errs, errors.New("releaser.period must be positive"))
	}
	if c.Releaser.Period > c.Positioner.Period {
		errs = append(errs, fmt.Errorf("releaser.period (%d) must not exceed positioner.period (%d)",
			c.Releaser.Period, c.Positioner.Period))
	}
	if c.Releaser.Priority <= c.Positioner.Priority {
		errs = append(errs, fmt.Errorf("releaser.priority (%d) must be greater than positioner.priority (%d)",
			c.Releaser.Priority, c.Positioner.Priority))
	}
	if c.Positioner.StallTimeout == 0 {
		errs = append(errs, errors.New("positioner.stall_timeout must be at least one period"))
	}
	if c.Releaser.Dwell == 0 {
		errs = append(errs, errors.New("releaser.dwell must be positive"))
	}
	if c.Releaser.Dwell > c.Releaser.MaxDwell {
		errs = append(errs, fmt.Errorf("releaser.dwell (%d) exceeds releaser.max_dwell (%d)",
			c.Releaser.Dwell, c.Releaser.MaxDwell))
	}
	if c.Releaser.Period != 0 && c.Releaser.Dwell%c.Releaser.Period != 0 {
		errs = append(errs, fmt.Errorf("releaser.dwell (%d) must be a multiple of releaser.period (%d)",
			c.Releaser.Dwell, c.Releaser.Period))
	}
	if c.StepsPerRev < 0 {
		errs = append(errs, fmt.Errorf("steps_per_rev must not be negative, got %d", c.StepsPerRev))
	}
	if _, err := c.SlotTable(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// SlotTable returns the step offset of every label.
func (c Config) SlotTable() (map[core.ClassLabel]int, error) {
	table := make(map[core.ClassLabel]int, len(c.Slots))
	for name, offset := range c.Slots {
		label, err := core.ParseLabel(name)
		if err != nil {
			return nil, fmt.Errorf("slots: %w", err)
		}
		if c.StepsPerRev > 0 && (offset < 0 || offset >= c.StepsPerRev) {
			return nil, fmt.Errorf("slots: %s offset %d outside [0, %d)", name, offset, c.StepsPerRev)
		}
		table[label] = offset
	}
	for _, label := range core.Labels {
		if _, ok := table[label]; !ok {
			return nil, fmt.Errorf("slots: no offset for %s", label)
		}
	}
	return table, nil
}

// DrainBudget is the number of ticks shutdown may spend letting an in-flight
// move and release finish.
func (c Config) DrainBudget() uint64 {
	return c.Positioner.StallTimeout*c.Positioner.Period + c.Positioner.Period + c.Releaser.MaxDwell + c.Releaser.Period
}
