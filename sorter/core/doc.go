// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

/*
Package core provides the hand-off token shared by the positioner and the
releaser.

# Turn

Exactly one task owns the turn at any instant. The owner is the only task
allowed to act on its hardware (the positioner on the drive, the releaser on
the gate) and the only task allowed to mutate the handoff state:

	positioner                         releaser
	----------                         --------
	TryAcquire(Positioner) == true
	move to slot
	SetTargetAndHandoff(label) ------> TryAcquire(Releaser) == true
	                                   PeekTarget() == label
	                                   open gate, dwell, close gate
	TryAcquire(Positioner) == true <-- ClearAndHandoff()

Every hand-off increments Sequence. A task that sampled Sequence before acting
can compare it afterwards to detect that it raced a hand-off.

Mutating the state without holding the turn is a contract violation and fails
loudly through package invariant.
*/
package core
