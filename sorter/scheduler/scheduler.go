// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package scheduler runs a fixed set of periodic tasks at fixed periods.
//
// Time is counted in ticks. A task registered with period P wakes at ticks
// 0, P, 2P, ...: each wake is its previous wake plus P, and the wall-clock
// deadline of tick k is start + k*tick, so late dispatches never accumulate
// drift. When several tasks are due at the same tick they run in descending
// priority order. Tasks run to completion; cancellation is only observed
// between dispatches.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/me507/colorsorter/sorter/fault"
	"github.com/me507/colorsorter/sorter/invariant"
	"github.com/me507/colorsorter/sorter/timeutil"
)

var (
	// ErrStarted is returned when registering after the first dispatch.
	ErrStarted = errors.New("scheduler already started")
	// ErrInvalidPeriod is returned for a zero period.
	ErrInvalidPeriod = errors.New("period must be positive")
	// ErrDuplicatePriority is returned when two tasks share a priority.
	ErrDuplicatePriority = errors.New("duplicate task priority")
	// ErrDuplicateTask is returned when two tasks share a name.
	ErrDuplicateTask = errors.New("duplicate task name")
)

// Task is the body of a periodic task. Tick is called once per period with
// the tick at which the period started and must not block.
type Task interface {
	Name() string
	Tick(now uint64)
}

type entry struct {
	task     Task
	period   uint64
	priority int
	nextWake uint64
	runs     uint64
	halted   bool
}

// TaskStatus is a point-in-time view of one registered task.
type TaskStatus struct {
	Name     string
	Period   uint64
	Priority int
	Runs     uint64
	NextWake uint64
	Halted   bool
}

// Scheduler dispatches registered tasks. Dispatching methods (Step, Advance,
// Run, RunUntil) must be called from a single goroutine; the query methods
// are safe from any goroutine.
type Scheduler struct {
	tickDuration time.Duration
	clock        timeutil.Clock
	reporter     fault.Reporter

	mu       sync.Mutex
	entries  []*entry
	tick     uint64
	started  bool
	overruns uint64

	start time.Time
}

// New returns a scheduler whose tick lasts tickDuration on clock.
func New(tickDuration time.Duration, clock timeutil.Clock, reporter fault.Reporter) *Scheduler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if reporter == nil {
		reporter = fault.Discard
	}
	return &Scheduler{
		tickDuration: tickDuration,
		clock:        clock,
		reporter:     reporter,
	}
}

// Register adds a task. Tasks can only be registered before the first dispatch.
func (s *Scheduler) Register(task Task, period uint64, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrStarted
	}
	if period == 0 {
		return fmt.Errorf("%s: %w", task.Name(), ErrInvalidPeriod)
	}
	for _, e := range s.entries {
		if e.task.Name() == task.Name() {
			return fmt.Errorf("%s: %w", task.Name(), ErrDuplicateTask)
		}
		if e.priority == priority {
			return fmt.Errorf("%s and %s at %d: %w", e.task.Name(), task.Name(), priority, ErrDuplicatePriority)
		}
	}

	s.entries = append(s.entries, &entry{task: task, period: period, priority: priority})
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].priority > s.entries[j].priority
	})
	return nil
}

// Now returns the next tick to be dispatched.
func (s *Scheduler) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Overruns returns how many dispatches started after their deadline had
// already passed by more than one tick.
func (s *Scheduler) Overruns() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overruns
}

// Tasks returns the status of every task in dispatch order.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]TaskStatus, 0, len(s.entries))
	for _, e := range s.entries {
		res = append(res, TaskStatus{
			Name:     e.task.Name(),
			Period:   e.period,
			Priority: e.priority,
			Runs:     e.runs,
			NextWake: e.nextWake,
			Halted:   e.halted,
		})
	}
	return res
}

// Halted reports whether the named task was halted by a panic.
func (s *Scheduler) Halted(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.task.Name() == name {
			return e.halted
		}
	}
	return false
}

// Step dispatches every task due at the current tick and moves to the next.
func (s *Scheduler) Step() {
	s.mu.Lock()
	s.started = true
	now := s.tick
	var due []*entry
	for _, e := range s.entries {
		if !e.halted && e.nextWake <= now {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.dispatch(e, now)
	}

	s.mu.Lock()
	for _, e := range due {
		e.runs++
		for e.nextWake <= now {
			e.nextWake += e.period
		}
	}
	s.tick = now + 1
	s.mu.Unlock()
}

// Advance dispatches n consecutive ticks without waiting on the clock.
func (s *Scheduler) Advance(n uint64) {
	for i := uint64(0); i < n; i++ {
		s.Step()
	}
}

// Run dispatches tasks on the clock until ctx is done and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.run(ctx, nil, 0)
	return err
}

// RunUntil dispatches tasks on the clock until done reports true after a
// dispatch, budget ticks have elapsed, every task is halted or ctx is done.
// It reports whether done was satisfied.
func (s *Scheduler) RunUntil(ctx context.Context, done func() bool, budget uint64) (bool, error) {
	if done() {
		return true, nil
	}
	return s.run(ctx, done, budget)
}

func (s *Scheduler) run(ctx context.Context, done func() bool, budget uint64) (bool, error) {
	s.mu.Lock()
	if s.start.IsZero() {
		// Tick k is due at start + k*tick.
		s.start = s.clock.Now().Add(-time.Duration(s.tick) * s.tickDuration)
	}
	limit := s.tick + budget
	s.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		wake, ok := s.nextWake()
		if !ok {
			// Every task is halted; nothing will ever be due again.
			if done != nil {
				return false, nil
			}
			<-ctx.Done()
			return false, ctx.Err()
		}
		if done != nil && wake >= limit {
			return false, nil
		}

		if err := s.waitFor(ctx, wake); err != nil {
			return false, err
		}
		s.Step()

		if done != nil && done() {
			return true, nil
		}
	}
}

// nextWake fast-forwards the tick counter to the earliest due wake.
func (s *Scheduler) nextWake() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	var wake uint64
	for _, e := range s.entries {
		if e.halted {
			continue
		}
		if !found || e.nextWake < wake {
			wake, found = e.nextWake, true
		}
	}
	if found && wake > s.tick {
		s.tick = wake
	}
	return s.tick, found
}

func (s *Scheduler) waitFor(ctx context.Context, tick uint64) error {
	deadline := s.start.Add(time.Duration(tick) * s.tickDuration)
	d := s.clock.Until(deadline)
	if d <= 0 {
		if -d > s.tickDuration {
			s.mu.Lock()
			s.overruns++
			s.mu.Unlock()
			log.WithFields(log.Fields{"tick": tick, "lag": -d}).Debug("Dispatch overrun")
		}
		return nil
	}

	timer := s.clock.NewTimer(d)
	select {
	case <-timer.C():
		return nil
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}
}

func (s *Scheduler) dispatch(e *entry, now uint64) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		s.mu.Lock()
		e.halted = true
		s.mu.Unlock()

		event := fault.Event{Component: e.task.Name(), Code: fault.TaskPanic, Tick: now, Detail: fmt.Sprint(r)}
		if v, ok := invariant.AsViolation(r); ok {
			event.Code = fault.ContractViolation
			event.Detail = v.Statement
		}
		s.reporter.Report(event)
		log.WithFields(log.Fields{"task": e.task.Name(), "tick": now, "code": event.Code}).Error("Task halted")
	}()

	e.task.Tick(now)
}
