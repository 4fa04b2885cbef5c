// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

// Owner is the task holding the turn.
type Owner int

const (
	Positioner Owner = iota
	Releaser
)

const (
	PositionerName = "Positioner"
	ReleaserName   = "Releaser"
)

func (o Owner) String() string {
	switch o {
	case Positioner:
		return PositionerName
	case Releaser:
		return ReleaserName
	}
	return "Invalid"
}
