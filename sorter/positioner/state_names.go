// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package positioner

// State of the positioner state machine.
type State int32

const (
	Idle State = iota
	Moving
	Done
)

const (
	IdleStateName   = "Idle"
	MovingStateName = "Moving"
	DoneStateName   = "Done"
)

func (s State) String() string {
	switch s {
	case Idle:
		return IdleStateName
	case Moving:
		return MovingStateName
	case Done:
		return DoneStateName
	}
	return "Invalid"
}
