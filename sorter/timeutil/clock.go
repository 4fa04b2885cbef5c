// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package timeutil abstracts the wall clock used by the scheduler so that
// periodic wakes can be driven by a mock in tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides the time operations the scheduler needs.
type Clock interface {
	Now() time.Time
	Until(t time.Time) time.Duration
	NewTimer(d time.Duration) Timer
}

// Timer represents a single event timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Until(t time.Time) time.Duration { return time.Until(t) }
func (RealClock) NewTimer(d time.Duration) Timer  { return &realTimer{timer: time.NewTimer(d)} }

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) C() <-chan time.Time { return t.timer.C }
func (t *realTimer) Stop() bool          { return t.timer.Stop() }

// MockClock is a manually controlled clock for testing.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*MockTimer
	created chan struct{}
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t, created: make(chan struct{}, 1024)}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Until(t time.Time) time.Duration {
	return t.Sub(c.Now())
}

// Advance moves the clock forward and fires expired timers.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.fireLocked()
	c.mu.Unlock()
}

// AdvanceToNext moves the clock to the earliest pending timer deadline and
// fires it. It reports false when no timer is pending.
func (c *MockClock) AdvanceToNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var next time.Time
	found := false
	for _, t := range c.timers {
		if d, ok := t.pendingDeadline(); ok && (!found || d.Before(next)) {
			next, found = d, true
		}
	}
	if !found {
		return false
	}
	if next.After(c.now) {
		c.now = next
	}
	c.fireLocked()
	return true
}

func (c *MockClock) fireLocked() {
	var pending []*MockTimer
	for _, t := range c.timers {
		if !t.checkAndFire(c.now) {
			pending = append(pending, t)
		}
	}
	c.timers = pending
}

func (c *MockClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	t := &MockTimer{
		ch:       make(chan time.Time, 1),
		deadline: c.now.Add(d),
	}
	c.timers = append(c.timers, t)
	c.mu.Unlock()

	select {
	case c.created <- struct{}{}:
	default:
	}
	return t
}

// TimerCreated receives once per NewTimer call, letting a test wait until
// the code under test is parked on a timer before advancing the clock.
func (c *MockClock) TimerCreated() <-chan struct{} {
	return c.created
}

// MockTimer is a manually controlled timer for testing.
type MockTimer struct {
	mu       sync.Mutex
	ch       chan time.Time
	deadline time.Time
	stopped  bool
	fired    bool
}

func (t *MockTimer) C() <-chan time.Time {
	return t.ch
}

func (t *MockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (t *MockTimer) pendingDeadline() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline, !t.stopped && !t.fired
}

// checkAndFire reports whether the timer is finished (fired or stopped).
func (t *MockTimer) checkAndFire(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.fired {
		return true
	}
	if !now.Before(t.deadline) {
		t.fired = true
		select {
		case t.ch <- now:
		default:
		}
		return true
	}
	return false
}
