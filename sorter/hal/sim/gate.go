// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"sync"

	"github.com/me507/colorsorter/sorter/hal"
)

// Gate records every change of the simulated solenoid.
type Gate struct {
	mu          sync.Mutex
	state       hal.GateState
	transitions []hal.GateState
	failOpen    int
	onChange    func(hal.GateState)
}

// NewGate returns a closed gate.
func NewGate() *Gate {
	return &Gate{}
}

// FailNextOpens makes the next n open commands report a fault. The gate
// still energises, as a real coil with a failed sense line would.
func (g *Gate) FailNextOpens(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failOpen = n
}

// OnChange installs a hook called, outside the gate lock, after each change.
func (g *Gate) OnChange(fn func(hal.GateState)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

func (g *Gate) SetGate(state hal.GateState) error {
	g.mu.Lock()
	changed := g.state != state
	g.state = state
	if changed {
		g.transitions = append(g.transitions, state)
	}
	var err error
	if state == hal.Open && g.failOpen > 0 {
		g.failOpen--
		err = hal.ErrGateFault
	}
	hook := g.onChange
	g.mu.Unlock()

	if changed && hook != nil {
		hook(state)
	}
	return err
}

// State returns the current gate state.
func (g *Gate) State() hal.GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Transitions returns every state change in order.
func (g *Gate) Transitions() []hal.GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]hal.GateState(nil), g.transitions...)
}
