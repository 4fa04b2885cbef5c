// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package coordinator brings the sorter up: it initialises the hand-off
// state once, before either task exists, registers the positioner and the
// releaser with the scheduler, and drains both on shutdown.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/me507/colorsorter/sorter/config"
	"github.com/me507/colorsorter/sorter/core"
	"github.com/me507/colorsorter/sorter/core/statejson"
	"github.com/me507/colorsorter/sorter/fault"
	"github.com/me507/colorsorter/sorter/hal"
	"github.com/me507/colorsorter/sorter/positioner"
	"github.com/me507/colorsorter/sorter/releaser"
	"github.com/me507/colorsorter/sorter/scheduler"
	"github.com/me507/colorsorter/sorter/timeutil"
)

// Hardware bundles the primitives the tasks drive.
type Hardware struct {
	Classifier hal.Classifier
	Drive      hal.Drive
	Gate       hal.Gate
}

// Coordinator owns the tasks and the scheduler running them.
type Coordinator struct {
	cfg        config.Config
	runID      uuid.UUID
	handoff    *core.HandoffState
	positioner *positioner.Positioner
	releaser   *releaser.Releaser
	scheduler  *scheduler.Scheduler
}

// New validates cfg, closes the gate and wires the tasks. A nil clock
// selects the real clock; a nil reporter discards fault events.
func New(cfg config.Config, hw Hardware, clock timeutil.Clock, reporter fault.Reporter, runID uuid.UUID) (*Coordinator, error) {
	if hw.Classifier == nil || hw.Drive == nil || hw.Gate == nil {
		return nil, errors.New("classifier, drive and gate are all required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slots, err := cfg.SlotTable()
	if err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = fault.Discard
	}

	if err := hw.Gate.SetGate(hal.Closed); err != nil {
		return nil, fmt.Errorf("close gate at start-up: %w", err)
	}

	handoff := core.NewHandoffState()
	c := &Coordinator{
		cfg:     cfg,
		runID:   runID,
		handoff: handoff,
		positioner: positioner.New(positioner.Config{
			Slots:        slots,
			StepsPerRev:  cfg.StepsPerRev,
			StallTimeout: cfg.Positioner.StallTimeout,
		}, handoff, hw.Classifier, hw.Drive, reporter),
		releaser: releaser.New(releaser.Config{
			Dwell:    cfg.Releaser.Dwell,
			MaxDwell: cfg.Releaser.MaxDwell,
		}, handoff, hw.Gate, reporter),
		scheduler: scheduler.New(cfg.Tick, clock, reporter),
	}

	if err := c.scheduler.Register(c.releaser, cfg.Releaser.Period, cfg.Releaser.Priority); err != nil {
		return nil, err
	}
	if err := c.scheduler.Register(c.positioner, cfg.Positioner.Period, cfg.Positioner.Priority); err != nil {
		return nil, err
	}
	return c, nil
}

// Handoff exposes the shared token read-only for diagnostics and tests.
func (c *Coordinator) Handoff() *core.HandoffState { return c.handoff }

// Positioner returns the positioner task.
func (c *Coordinator) Positioner() *positioner.Positioner { return c.positioner }

// Releaser returns the releaser task.
func (c *Coordinator) Releaser() *releaser.Releaser { return c.releaser }

// Scheduler returns the scheduler.
func (c *Coordinator) Scheduler() *scheduler.Scheduler { return c.scheduler }

// Run dispatches the tasks on the clock until ctx is done, then drains.
func (c *Coordinator) Run(ctx context.Context) error {
	log.WithFields(log.Fields{
		"run_id":     c.runID.String(),
		"tick":       c.cfg.Tick,
		"positioner": c.cfg.Positioner.Period,
		"releaser":   c.cfg.Releaser.Period,
	}).Info("Starting sorter")

	err := c.scheduler.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return c.Drain(context.Background())
}

// Drain stops taking new objects, lets an in-flight move and release finish
// within the drain budget, and closes the gate.
func (c *Coordinator) Drain(ctx context.Context) error {
	c.positioner.Quiesce()

	drained, err := c.scheduler.RunUntil(ctx, c.quiescent, c.cfg.DrainBudget())
	if err != nil {
		log.WithError(err).Warn("Drain interrupted")
	} else if !drained {
		log.WithField("budget", c.cfg.DrainBudget()).Warn("Drain budget exhausted")
	}

	if closeErr := c.releaser.ForceClose(); closeErr != nil {
		log.WithError(closeErr).Error("Failed to close gate at shutdown")
		err = errors.Join(err, closeErr)
	}

	status := c.Status()
	log.WithField("status", string(status.AsJSON())).Info("Sorter stopped")
	return err
}

func (c *Coordinator) quiescent() bool {
	return c.positioner.Idle() && c.releaser.Idle() && c.handoff.TryAcquire(core.Positioner)
}

// Status describes the machine.
func (c *Coordinator) Status() statejson.StatusDescription {
	s := statejson.StatusDescription{
		RunID:    c.runID.String(),
		Tick:     c.scheduler.Now(),
		Handoff:  c.handoff.Describe(),
		Position: c.positioner.Position(),
		Gate:     c.releaser.Gate().String(),
		Sorted:   c.releaser.Released(),
		Positioner: statejson.TaskDescription{
			Name:   c.positioner.Name(),
			State:  c.positioner.State().String(),
			Halted: c.scheduler.Halted(c.positioner.Name()),
		},
		Releaser: statejson.TaskDescription{
			Name:   c.releaser.Name(),
			State:  c.releaser.State().String(),
			Halted: c.scheduler.Halted(c.releaser.Name()),
		},
	}
	return s
}
