// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package positioner implements the task that rotates the mechanism to the
// slot of the classified object and hands the turn to the releaser.
//
//	Idle --label--> Moving --complete/stall--> Done --handoff--> Idle
//
// A move may span many periods; the drive is polled once per period. A move
// that does not complete within the stall window is aborted and the hand-off
// happens anyway, from the best known position.
package positioner

import (
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/me507/colorsorter/sorter/core"
	"github.com/me507/colorsorter/sorter/fault"
	"github.com/me507/colorsorter/sorter/hal"
	"github.com/me507/colorsorter/sorter/invariant"
)

// TaskName is the scheduler name of the positioner.
const TaskName = "positioner"

// Config configures a Positioner.
type Config struct {
	// Slots maps each label to its step offset from home.
	Slots map[core.ClassLabel]int
	// StepsPerRev enables shortest-path moves around one revolution when positive.
	StepsPerRev int
	// StallTimeout is the number of periods a move may take.
	StallTimeout uint64
}

// Positioner is a periodic task. Tick must be called from one goroutine;
// the getters may be called from any goroutine.
type Positioner struct {
	cfg        Config
	handoff    *core.HandoffState
	classifier hal.Classifier
	drive      hal.Drive
	reporter   fault.Reporter

	state    atomic.Int32
	position atomic.Int64
	moves    atomic.Uint64
	stalls   atomic.Uint64
	quiesced atomic.Bool

	label       core.ClassLabel
	movePeriods uint64
}

// New returns an idle positioner at the position the drive reports.
func New(cfg Config, handoff *core.HandoffState, classifier hal.Classifier, drive hal.Drive, reporter fault.Reporter) *Positioner {
	if reporter == nil {
		reporter = fault.Discard
	}
	if cfg.StallTimeout == 0 {
		cfg.StallTimeout = 1
	}
	p := &Positioner{
		cfg:        cfg,
		handoff:    handoff,
		classifier: classifier,
		drive:      drive,
		reporter:   reporter,
	}
	p.setPosition(drive.CurrentPosition())
	return p
}

func (p *Positioner) Name() string { return TaskName }

// State returns the current state.
func (p *Positioner) State() State { return State(p.state.Load()) }

// Position returns the mechanism position in steps from home.
func (p *Positioner) Position() int { return int(p.position.Load()) }

// Moves returns the number of completed hand-offs.
func (p *Positioner) Moves() uint64 { return p.moves.Load() }

// Stalls returns the number of aborted moves.
func (p *Positioner) Stalls() uint64 { return p.stalls.Load() }

// Quiesce stops the positioner from taking new objects. A move in progress
// still completes and hands off.
func (p *Positioner) Quiesce() { p.quiesced.Store(true) }

// Idle reports whether the positioner has no move in progress.
func (p *Positioner) Idle() bool { return p.State() == Idle }

// Tick runs one period of the state machine.
func (p *Positioner) Tick(now uint64) {
	defer p.stopOnPanic(now)
	log.WithField("tick", now).Trace("Entering positioner period")

	switch p.State() {
	case Idle:
		p.idle(now)
	case Moving:
		p.moving(now)
	default:
		invariant.Violatef("positioner period started in state %s", p.State())
	}
}

func (p *Positioner) idle(now uint64) {
	if !p.handoff.TryAcquire(core.Positioner) {
		log.WithField("tick", now).Trace("Releaser holds the turn")
		return
	}
	if p.quiesced.Load() {
		return
	}

	label, ok := p.classifier.Sample()
	if !ok {
		log.WithFields(log.Fields{"tick": now, "code": fault.SensorTimeout}).Trace("No object")
		return
	}
	if !label.Valid() {
		log.WithFields(log.Fields{"tick": now, "label": label}).Warn("Classifier returned an invalid label, routing to unknown")
		label = core.Unknown
	}

	offset, ok := p.cfg.Slots[label]
	invariant.Checkf(ok, "no slot offset configured for %s", label)

	p.label = label
	p.movePeriods = 0
	delta := p.delta(offset)

	log.WithFields(log.Fields{"tick": now, "label": label, "from": p.Position(), "delta": delta}).Debug("Moving to slot")

	if delta == 0 {
		p.complete(now)
		return
	}
	if err := p.drive.BeginMove(delta); err != nil {
		p.abort(now, fmt.Errorf("begin move of %d steps: %w", delta, err))
		return
	}
	p.setState(Moving)
}

func (p *Positioner) moving(now uint64) {
	invariant.Check(p.handoff.TryAcquire(core.Positioner), "positioner is moving without holding the turn")

	p.movePeriods++
	done, err := p.drive.IsMoveComplete()
	switch {
	case err != nil:
		p.abort(now, err)
	case done:
		p.complete(now)
	case p.movePeriods >= p.cfg.StallTimeout:
		p.abort(now, fmt.Errorf("move incomplete after %d periods", p.movePeriods))
	}
}

func (p *Positioner) complete(now uint64) {
	p.setPosition(p.drive.CurrentPosition())
	p.handoffTo(now)
}

// abort stops the drive and fails forward: the releaser still gets the turn
// with the target set, from wherever the mechanism ended up.
func (p *Positioner) abort(now uint64, cause error) {
	p.drive.Stop()
	p.setPosition(p.drive.CurrentPosition())
	p.stalls.Add(1)

	p.reporter.Report(fault.Event{
		Component: fault.ComponentPositioner,
		Code:      fault.MechanicalStall,
		Tick:      now,
		Detail:    fmt.Sprintf("%s at position %d: %v", p.label, p.Position(), cause),
	})
	p.handoffTo(now)
}

func (p *Positioner) handoffTo(now uint64) {
	p.setState(Done)
	seq := p.handoff.SetTargetAndHandoff(p.label)
	p.moves.Add(1)
	log.WithFields(log.Fields{"tick": now, "label": p.label, "position": p.Position(), "sequence": seq}).Info("Handed off to releaser")
	p.setState(Idle)
}

func (p *Positioner) delta(target int) int {
	d := target - p.Position()
	if rev := p.cfg.StepsPerRev; rev > 0 {
		// Into (-rev/2, rev/2]; a half-revolution tie goes forward.
		d %= rev
		if 2*d > rev {
			d -= rev
		} else if 2*d <= -rev {
			d += rev
		}
	}
	return d
}

// stopOnPanic halts the drive when a period panics and lets the panic
// continue to the scheduler, which halts the positioner.
func (p *Positioner) stopOnPanic(now uint64) {
	v := recover()
	if v == nil {
		return
	}
	func() {
		defer func() {
			if sv := recover(); sv != nil {
				log.WithFields(log.Fields{"tick": now, "panic": sv}).Error("Drive stop panicked")
			}
		}()
		p.drive.Stop()
	}()
	log.WithFields(log.Fields{"tick": now, "state": p.State()}).Error("Positioner period panicked, drive stopped")
	panic(v)
}

func (p *Positioner) setPosition(pos int) {
	if rev := p.cfg.StepsPerRev; rev > 0 {
		pos %= rev
		if pos < 0 {
			pos += rev
		}
	}
	p.position.Store(int64(pos))
}

func (p *Positioner) setState(s State) {
	p.state.Store(int32(s))
}
