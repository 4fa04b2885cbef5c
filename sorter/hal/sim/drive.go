// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package sim provides simulated hardware for dry runs and tests.
package sim

import (
	"fmt"
	"sync"

	"github.com/me507/colorsorter/sorter/hal"
)

// Drive is a stepper that advances StepsPerPoll steps each time completion
// is polled.
type Drive struct {
	mu           sync.Mutex
	stepsPerPoll int
	position     int
	remaining    int
	moved        int

	// faultAfter, when positive, makes the drive report a fault once that
	// many steps of a move have been taken.
	faultAfter int
	// jammed drives never advance.
	jammed bool

	moves []int
}

// DriveOption configures a simulated Drive.
type DriveOption func(*Drive)

// WithFaultAfter makes every move fault after n steps.
func WithFaultAfter(n int) DriveOption {
	return func(d *Drive) { d.faultAfter = n }
}

// WithJam makes the drive accept moves but never advance.
func WithJam() DriveOption {
	return func(d *Drive) { d.jammed = true }
}

// WithPosition sets the starting position.
func WithPosition(p int) DriveOption {
	return func(d *Drive) { d.position = p }
}

// NewDrive returns a drive moving stepsPerPoll steps per poll.
func NewDrive(stepsPerPoll int, opts ...DriveOption) *Drive {
	if stepsPerPoll <= 0 {
		stepsPerPoll = 1
	}
	d := &Drive{stepsPerPoll: stepsPerPoll}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Drive) BeginMove(deltaSteps int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remaining != 0 {
		return fmt.Errorf("move in progress (%d steps remaining)", d.remaining)
	}
	d.remaining = deltaSteps
	d.moved = 0
	d.moves = append(d.moves, deltaSteps)
	return nil
}

func (d *Drive) IsMoveComplete() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remaining == 0 {
		return true, nil
	}
	if d.jammed {
		return false, nil
	}

	step := d.stepsPerPoll
	if abs(d.remaining) < step {
		step = abs(d.remaining)
	}
	if d.faultAfter > 0 && d.moved+step > d.faultAfter {
		step = d.faultAfter - d.moved
	}
	dir := 1
	if d.remaining < 0 {
		dir = -1
	}
	d.position += dir * step
	d.remaining -= dir * step
	d.moved += step

	if d.faultAfter > 0 && d.moved >= d.faultAfter && d.remaining != 0 {
		return false, fmt.Errorf("%w: step %d", hal.ErrDriveFault, d.moved)
	}
	return d.remaining == 0, nil
}

func (d *Drive) CurrentPosition() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

func (d *Drive) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remaining = 0
}

// Moves returns the deltas passed to BeginMove.
func (d *Drive) Moves() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.moves...)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
