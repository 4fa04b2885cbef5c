// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package fault defines the fault taxonomy and the logging collaborator that
// receives fault events from the periodic tasks.
package fault

import (
	"fmt"

	"github.com/google/uuid"
)

// Code identifies a fault class. Values are "<Component>.<Kind>".
type Code string

const (
	ContractViolation Code = "Handoff.ContractViolation"   // a task mutated handoff without holding the turn
	MechanicalStall   Code = "Positioner.MechanicalStall"  // move did not complete within the stall window
	ActuationFault    Code = "Releaser.ActuationFault"     // gate hardware reported a fault
	SensorTimeout     Code = "Classifier.SensorTimeout"    // classifier produced no label; informational
	TaskPanic         Code = "Scheduler.TaskPanic"         // task panicked for a reason other than a contract violation
	DwellCapExceeded  Code = "Releaser.DwellCapExceeded"   // gate closed by the hard dwell cap
)

// Component names used in events.
const (
	ComponentPositioner = "positioner"
	ComponentReleaser   = "releaser"
	ComponentHandoff    = "handoff"
	ComponentScheduler  = "scheduler"
)

// Event is a structured fault record.
type Event struct {
	RunID     uuid.UUID
	Component string
	Code      Code
	Tick      uint64
	Detail    string
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s at tick %d: %s", e.Component, e.Code, e.Tick, e.Detail)
}

// Reporter receives fault events. Implementations must never block the caller.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})
