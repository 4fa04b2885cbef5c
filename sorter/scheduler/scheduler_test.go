// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me507/colorsorter/sorter/fault"
	"github.com/me507/colorsorter/sorter/invariant"
	"github.com/me507/colorsorter/sorter/timeutil"
)

type dispatch struct {
	Task string
	Tick uint64
}

type trace struct {
	mu  sync.Mutex
	log []dispatch
}

func (tr *trace) add(name string, tick uint64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.log = append(tr.log, dispatch{name, tick})
}

func (tr *trace) get() []dispatch {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]dispatch(nil), tr.log...)
}

type recordingTask struct {
	name   string
	trace  *trace
	onTick func(now uint64)
}

func (r *recordingTask) Name() string { return r.name }

func (r *recordingTask) Tick(now uint64) {
	r.trace.add(r.name, now)
	if r.onTick != nil {
		r.onTick(now)
	}
}

func TestPeriodsAndPriority(t *testing.T) {
	tr := &trace{}
	s := New(time.Millisecond, nil, nil)
	require.NoError(t, s.Register(&recordingTask{name: "slow", trace: tr}, 4, 5))
	require.NoError(t, s.Register(&recordingTask{name: "fast", trace: tr}, 2, 10))

	s.Advance(9)

	want := []dispatch{
		{"fast", 0}, {"slow", 0},
		{"fast", 2},
		{"fast", 4}, {"slow", 4},
		{"fast", 6},
		{"fast", 8}, {"slow", 8},
	}
	if diff := cmp.Diff(want, tr.get()); diff != "" {
		t.Errorf("dispatch order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(9), s.Now())
}

func TestRegisterRejects(t *testing.T) {
	tr := &trace{}
	s := New(time.Millisecond, nil, nil)
	require.NoError(t, s.Register(&recordingTask{name: "a", trace: tr}, 1, 1))

	assert.ErrorIs(t, s.Register(&recordingTask{name: "b", trace: tr}, 0, 2), ErrInvalidPeriod)
	assert.ErrorIs(t, s.Register(&recordingTask{name: "b", trace: tr}, 1, 1), ErrDuplicatePriority)
	assert.ErrorIs(t, s.Register(&recordingTask{name: "a", trace: tr}, 1, 3), ErrDuplicateTask)

	s.Step()
	assert.ErrorIs(t, s.Register(&recordingTask{name: "c", trace: tr}, 1, 4), ErrStarted)
}

func TestViolationHaltsOnlyOffendingTask(t *testing.T) {
	tr := &trace{}
	rec := &fault.Recorder{}
	s := New(time.Millisecond, nil, rec)

	require.NoError(t, s.Register(&recordingTask{name: "healthy", trace: tr}, 1, 10))
	require.NoError(t, s.Register(&recordingTask{name: "buggy", trace: tr, onTick: func(now uint64) {
		if now == 2 {
			invariant.Violate("handoff without turn")
		}
	}}, 1, 5))

	s.Advance(5)

	assert.True(t, s.Halted("buggy"))
	assert.False(t, s.Halted("healthy"))

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, fault.ContractViolation, events[0].Code)
	assert.Equal(t, "buggy", events[0].Component)
	assert.Equal(t, uint64(2), events[0].Tick)
	assert.Equal(t, "handoff without turn", events[0].Detail)

	var healthy, buggy int
	for _, d := range tr.get() {
		if d.Task == "healthy" {
			healthy++
		} else {
			buggy++
		}
	}
	assert.Equal(t, 5, healthy)
	assert.Equal(t, 3, buggy)
}

func TestOtherPanicReportedAsTaskPanic(t *testing.T) {
	rec := &fault.Recorder{}
	s := New(time.Millisecond, nil, rec)
	require.NoError(t, s.Register(&recordingTask{name: "p", trace: &trace{}, onTick: func(uint64) {
		panic("nil map")
	}}, 1, 1))

	s.Step()
	assert.Equal(t, []fault.Code{fault.TaskPanic}, rec.Codes())
	status := s.Tasks()
	require.Len(t, status, 1)
	assert.True(t, status[0].Halted)

	s.Advance(3)
	assert.Equal(t, uint64(1), s.Tasks()[0].Runs)
}

// pump releases every timer the scheduler parks on until stop is closed.
func pump(clock *timeutil.MockClock, stop <-chan struct{}) {
	for {
		select {
		case <-clock.TimerCreated():
			clock.AdvanceToNext()
		case <-stop:
			return
		}
	}
}

func TestRunWakesOnAbsoluteDeadlines(t *testing.T) {
	start := time.Date(2020, 11, 18, 0, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	s := New(10*time.Millisecond, clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var wakes []time.Time
	tr := &trace{}
	require.NoError(t, s.Register(&recordingTask{name: "task", trace: tr, onTick: func(now uint64) {
		mu.Lock()
		defer mu.Unlock()
		wakes = append(wakes, clock.Now())
		if now == 15 {
			// Burn time inside the task; the next wake must not shift.
			clock.Advance(7 * time.Millisecond)
		}
		if now >= 30 {
			cancel()
		}
	}}, 5, 1))

	stop := make(chan struct{})
	defer close(stop)
	go pump(clock, stop)

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, wakes, 7)
	for i, w := range wakes {
		assert.Equal(t, start.Add(time.Duration(i*5)*10*time.Millisecond), w, "wake %d", i)
	}
}

func TestRunUntilStopsOnConditionOrBudget(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s := New(time.Millisecond, clock, nil)
	var count int
	require.NoError(t, s.Register(&recordingTask{name: "t", trace: &trace{}, onTick: func(uint64) { count++ }}, 2, 1))

	stop := make(chan struct{})
	defer close(stop)
	go pump(clock, stop)

	ok, err := s.RunUntil(context.Background(), func() bool { return count >= 3 }, 100)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, count)

	ok, err = s.RunUntil(context.Background(), func() bool { return false }, 6)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 6, count)
}

func TestRunReturnsWhenAllTasksHalted(t *testing.T) {
	s := New(time.Millisecond, timeutil.NewMockClock(time.Unix(0, 0)), nil)
	require.NoError(t, s.Register(&recordingTask{name: "p", trace: &trace{}, onTick: func(uint64) {
		panic("dead")
	}}, 1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Halted("p") }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunUntilReturnsWhenAllTasksHalted(t *testing.T) {
	s := New(time.Millisecond, timeutil.NewMockClock(time.Unix(0, 0)), nil)
	require.NoError(t, s.Register(&recordingTask{name: "p", trace: &trace{}, onTick: func(uint64) {
		panic("dead")
	}}, 1, 1))

	s.Step()
	require.True(t, s.Halted("p"))

	finished := make(chan struct{})
	var ok bool
	var err error
	go func() {
		defer close(finished)
		ok, err = s.RunUntil(context.Background(), func() bool { return false }, 100)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("RunUntil blocked with every task halted")
	}
	require.NoError(t, err)
	assert.False(t, ok)
}
