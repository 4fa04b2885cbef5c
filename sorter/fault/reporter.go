// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const defaultQueueSize = 64

// AsyncReporter queues events on a bounded channel and writes them to logrus
// from its own goroutine. Report never blocks: when the queue is full the
// event is dropped and counted.
type AsyncReporter struct {
	runID   uuid.UUID
	events  chan Event
	dropped atomic.Uint64
	logger  log.FieldLogger

	closeOnce sync.Once
	done      chan struct{}
}

// NewAsyncReporter returns a reporter stamping events with runID.
// A queueSize of zero selects the default.
func NewAsyncReporter(runID uuid.UUID, queueSize int, logger log.FieldLogger) *AsyncReporter {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &AsyncReporter{
		runID:  runID,
		events: make(chan Event, queueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// RunID returns the identifier attached to every event.
func (r *AsyncReporter) RunID() uuid.UUID {
	return r.runID
}

// Report enqueues e without blocking.
func (r *AsyncReporter) Report(e Event) {
	if e.RunID == uuid.Nil {
		e.RunID = r.runID
	}
	select {
	case r.events <- e:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of events lost to a full queue.
func (r *AsyncReporter) Dropped() uint64 {
	return r.dropped.Load()
}

// Run drains the queue until ctx is done, then flushes what is left.
func (r *AsyncReporter) Run(ctx context.Context) error {
	defer r.closeOnce.Do(func() { close(r.done) })
	for {
		select {
		case e := <-r.events:
			r.write(e)
		case <-ctx.Done():
			r.flush()
			return nil
		}
	}
}

// Done is closed once Run has returned.
func (r *AsyncReporter) Done() <-chan struct{} {
	return r.done
}

func (r *AsyncReporter) flush() {
	for {
		select {
		case e := <-r.events:
			r.write(e)
		default:
			if n := r.Dropped(); n > 0 {
				r.logger.WithField("dropped", n).Warn("Fault events dropped")
			}
			return
		}
	}
}

func (r *AsyncReporter) write(e Event) {
	entry := r.logger.WithFields(log.Fields{
		"run_id":    e.RunID.String(),
		"component": e.Component,
		"code":      string(e.Code),
		"tick":      e.Tick,
	})
	if e.Detail != "" {
		entry = entry.WithField("detail", e.Detail)
	}

	switch e.Code {
	case ContractViolation, TaskPanic:
		entry.Error("Fault")
	case SensorTimeout:
		entry.Debug("Fault")
	default:
		entry.Warn("Fault")
	}
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Codes returns the recorded event codes in order.
func (r *Recorder) Codes() []Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]Code, 0, len(r.events))
	for _, e := range r.events {
		codes = append(codes, e.Code)
	}
	return codes
}
