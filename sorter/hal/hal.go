// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package hal declares the hardware primitives consumed by the tasks.
package hal

import (
	"errors"

	"github.com/me507/colorsorter/sorter/core"
)

// ErrDriveFault is returned by drives that detect a mechanical fault.
var ErrDriveFault = errors.New("drive fault")

// ErrGateFault is returned by gates that detect an actuation fault.
var ErrGateFault = errors.New("gate fault")

// GateState is the commanded gate position.
type GateState int

const (
	Closed GateState = iota
	Open
)

func (g GateState) String() string {
	if g == Open {
		return "OPEN"
	}
	return "CLOSED"
}

// Classifier samples the sensor. ok is false when no object was identified
// during the sampling window; Sample must return within bounded latency.
type Classifier interface {
	Sample() (label core.ClassLabel, ok bool)
}

// Drive advances the sorting mechanism. Moves are incremental: BeginMove
// starts one, IsMoveComplete is polled once per positioner period.
type Drive interface {
	// BeginMove starts a move of deltaSteps (negative is reverse).
	BeginMove(deltaSteps int) error

	// IsMoveComplete reports completion, or an error if the drive faulted.
	IsMoveComplete() (bool, error)

	// CurrentPosition returns steps from home as known by the drive.
	CurrentPosition() int

	// Stop immediately halts the current move.
	Stop()
}

// Gate drives the release solenoid. SetGate is idempotent.
type Gate interface {
	SetGate(state GateState) error
}
