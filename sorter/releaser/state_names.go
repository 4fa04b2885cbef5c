// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package releaser

// State of the releaser state machine.
type State int32

const (
	Idle State = iota
	Open
	Closing
)

const (
	IdleStateName    = "Idle"
	OpenStateName    = "Open"
	ClosingStateName = "Closing"
)

func (s State) String() string {
	switch s {
	case Idle:
		return IdleStateName
	case Open:
		return OpenStateName
	case Closing:
		return ClosingStateName
	}
	return "Invalid"
}
