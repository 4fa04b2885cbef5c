// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"sync"

	"github.com/me507/colorsorter/sorter/core/statejson"
	"github.com/me507/colorsorter/sorter/invariant"
)

// Snapshot is a consistent read of all handoff fields.
type Snapshot struct {
	Turn     Owner
	Target   ClassLabel
	Sequence uint64
}

// HasTarget reports whether a target is set.
func (s Snapshot) HasTarget() bool {
	return s.Target != NoLabel
}

// HandoffState is the only mutable state shared between the positioner and
// the releaser. All fields are guarded by mu; critical sections are a handful
// of field writes and never block.
type HandoffState struct {
	mu       sync.Mutex
	turn     Owner
	target   ClassLabel
	sequence uint64
}

// NewHandoffState returns the state initialised once, before either task
// runs: the positioner holds the turn and there is no target.
func NewHandoffState() *HandoffState {
	return &HandoffState{turn: Positioner, target: NoLabel}
}

// TryAcquire reports whether owner holds the turn. It never blocks on
// anything but the bounded critical section and has no side effects.
func (h *HandoffState) TryAcquire(owner Owner) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.turn == owner
}

// Acquire is TryAcquire that also returns the sequence observed with the
// turn. A task can compare it with Sequence after acting to detect that a
// hand-off happened in between.
func (h *HandoffState) Acquire(owner Owner) (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sequence, h.turn == owner
}

// SetTargetAndHandoff publishes label and passes the turn to the releaser.
// Only the positioner may call it, and only while holding the turn.
func (h *HandoffState) SetTargetAndHandoff(label ClassLabel) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	invariant.Checkf(h.turn == Positioner, "SetTargetAndHandoff(%s) called while turn is held by %s", label, h.turn)
	invariant.Checkf(label.Valid(), "SetTargetAndHandoff called without a destination (%s)", label)

	h.target = label
	h.sequence++
	h.turn = Releaser
	return h.sequence
}

// ClearAndHandoff clears the target and returns the turn to the positioner.
// Only the releaser may call it, and only while holding the turn.
func (h *HandoffState) ClearAndHandoff() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	invariant.Checkf(h.turn == Releaser, "ClearAndHandoff called while turn is held by %s", h.turn)

	h.target = NoLabel
	h.sequence++
	h.turn = Positioner
	return h.sequence
}

// PeekTarget returns the current target. Callers must not act on it unless
// they also hold the turn.
func (h *HandoffState) PeekTarget() (ClassLabel, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.target, h.target != NoLabel
}

// Sequence returns the number of hand-offs performed so far.
func (h *HandoffState) Sequence() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sequence
}

// Snapshot returns all fields under a single lock acquisition.
func (h *HandoffState) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot{Turn: h.turn, Target: h.target, Sequence: h.sequence}
}

// Describe returns a description of the state for diagnostics.
func (h *HandoffState) Describe() statejson.HandoffDescription {
	s := h.Snapshot()
	res := statejson.HandoffDescription{
		Turn:     s.Turn.String(),
		Sequence: s.Sequence,
	}
	if s.HasTarget() {
		res.Target = s.Target.String()
	}
	return res
}
