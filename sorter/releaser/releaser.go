// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package releaser implements the task that opens the gate once the
// positioner has handed over the turn, holds it for the dwell and returns
// the turn.
//
//	Idle --turn+target--> Open --dwell elapsed--> Closing --handoff--> Idle
//
// Dwell is counted in scheduler ticks. The gate is closed before the turn is
// returned on every path, including actuation faults.
package releaser

import (
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/me507/colorsorter/sorter/core"
	"github.com/me507/colorsorter/sorter/fault"
	"github.com/me507/colorsorter/sorter/hal"
	"github.com/me507/colorsorter/sorter/invariant"
)

// TaskName is the scheduler name of the releaser.
const TaskName = "releaser"

// Config configures a Releaser. Both values are in scheduler ticks.
type Config struct {
	Dwell uint64
	// MaxDwell is the hard cap on gate energisation; zero means Dwell.
	MaxDwell uint64
}

// Releaser is a periodic task. Tick must be called from one goroutine;
// the getters may be called from any goroutine.
type Releaser struct {
	cfg      Config
	handoff  *core.HandoffState
	gate     hal.Gate
	reporter fault.Reporter

	state     atomic.Int32
	gateState atomic.Int32
	released  atomic.Uint64
	faults    atomic.Uint64
	last      atomic.Int32

	openedAt uint64
	sequence uint64
	target   core.ClassLabel
}

// New returns an idle releaser. The gate is assumed closed.
func New(cfg Config, handoff *core.HandoffState, gate hal.Gate, reporter fault.Reporter) *Releaser {
	if reporter == nil {
		reporter = fault.Discard
	}
	if cfg.MaxDwell == 0 {
		cfg.MaxDwell = cfg.Dwell
	}
	if cfg.Dwell > cfg.MaxDwell {
		cfg.Dwell = cfg.MaxDwell
	}
	return &Releaser{
		cfg:      cfg,
		handoff:  handoff,
		gate:     gate,
		reporter: reporter,
	}
}

func (r *Releaser) Name() string { return TaskName }

// State returns the current state.
func (r *Releaser) State() State { return State(r.state.Load()) }

// Gate returns the last commanded gate state.
func (r *Releaser) Gate() hal.GateState { return hal.GateState(r.gateState.Load()) }

// Released returns the number of completed release cycles.
func (r *Releaser) Released() uint64 { return r.released.Load() }

// Faults returns the number of actuation faults.
func (r *Releaser) Faults() uint64 { return r.faults.Load() }

// LastReleased returns the target of the most recent release cycle.
func (r *Releaser) LastReleased() core.ClassLabel { return core.ClassLabel(r.last.Load()) }

// Idle reports whether no release is in progress.
func (r *Releaser) Idle() bool { return r.State() == Idle }

// Tick runs one period of the state machine.
func (r *Releaser) Tick(now uint64) {
	defer r.closeOnPanic(now)
	log.WithField("tick", now).Trace("Entering releaser period")

	switch r.State() {
	case Idle:
		r.idle(now)
	case Open:
		r.open(now)
	default:
		invariant.Violatef("releaser period started in state %s", r.State())
	}
}

func (r *Releaser) idle(now uint64) {
	seq, ok := r.handoff.Acquire(core.Releaser)
	if !ok {
		return
	}
	target, ok := r.handoff.PeekTarget()
	invariant.Checkf(ok, "releaser holds the turn at sequence %d without a target", seq)

	r.sequence = seq
	r.target = target
	r.openedAt = now
	r.setState(Open)

	if err := r.setGate(hal.Open); err != nil {
		r.actuationFault(now, fmt.Errorf("open gate for %s: %w", target, err))
		return
	}
	log.WithFields(log.Fields{"tick": now, "target": target, "sequence": seq}).Debug("Gate open")
}

func (r *Releaser) open(now uint64) {
	if seq := r.handoff.Sequence(); seq != r.sequence {
		// The turn moved while the gate was open: undo our action first.
		r.forceClose(now)
		r.setState(Idle)
		invariant.Violatef("hand-off sequence moved from %d to %d during release of %s", r.sequence, seq, r.target)
	}

	elapsed := now - r.openedAt
	switch {
	case elapsed > r.cfg.MaxDwell:
		r.reporter.Report(fault.Event{
			Component: fault.ComponentReleaser,
			Code:      fault.DwellCapExceeded,
			Tick:      now,
			Detail:    fmt.Sprintf("gate open for %d ticks, cap %d", elapsed, r.cfg.MaxDwell),
		})
		r.close(now)
	case elapsed >= r.cfg.Dwell:
		r.close(now)
	}
}

func (r *Releaser) close(now uint64) {
	r.setState(Closing)
	r.forceClose(now)
	r.handoffBack(now)
}

// actuationFault fails forward: the gate is forced closed and the turn
// still goes back to the positioner.
func (r *Releaser) actuationFault(now uint64, cause error) {
	r.reportActuation(now, cause)
	r.setState(Closing)
	r.forceClose(now)
	r.handoffBack(now)
}

func (r *Releaser) handoffBack(now uint64) {
	seq := r.handoff.ClearAndHandoff()
	r.released.Add(1)
	r.last.Store(int32(r.target))
	log.WithFields(log.Fields{"tick": now, "target": r.target, "sequence": seq}).Info("Handed back to positioner")
	r.setState(Idle)
}

// forceClose commands the gate closed. The commanded state is CLOSED even if
// the hardware reports a fault; the fault is reported.
func (r *Releaser) forceClose(now uint64) {
	if err := r.setGate(hal.Closed); err != nil {
		r.reportActuation(now, fmt.Errorf("close gate: %w", err))
	}
}

// closeOnPanic drives the gate closed when a period panics and lets the panic
// continue to the scheduler, which halts the releaser.
func (r *Releaser) closeOnPanic(now uint64) {
	v := recover()
	if v == nil {
		return
	}
	if err := r.closeGuarded(); err != nil {
		r.reportActuation(now, fmt.Errorf("close gate after panic: %w", err))
	}
	log.WithFields(log.Fields{"tick": now, "gate": r.Gate()}).Error("Releaser period panicked, gate forced closed")
	panic(v)
}

// closeGuarded is setGate(Closed) that also survives a panicking driver.
func (r *Releaser) closeGuarded() (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%w: driver panicked: %v", hal.ErrGateFault, v)
		}
	}()
	return r.setGate(hal.Closed)
}

// ForceClose drives the gate closed outside of a period. It must only be
// called while the releaser is not being dispatched.
func (r *Releaser) ForceClose() error {
	err := r.setGate(hal.Closed)
	if err != nil {
		r.faults.Add(1)
	}
	return err
}

func (r *Releaser) setGate(state hal.GateState) error {
	r.gateState.Store(int32(state))
	return r.gate.SetGate(state)
}

func (r *Releaser) reportActuation(now uint64, cause error) {
	r.faults.Add(1)
	r.reporter.Report(fault.Event{
		Component: fault.ComponentReleaser,
		Code:      fault.ActuationFault,
		Tick:      now,
		Detail:    cause.Error(),
	})
}

func (r *Releaser) setState(s State) {
	r.state.Store(int32(s))
}
