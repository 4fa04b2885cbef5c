// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"sync"

	"github.com/me507/colorsorter/sorter/core"
)

// ScriptedClassifier returns queued labels in order, then reports no object.
type ScriptedClassifier struct {
	mu      sync.Mutex
	queue   []core.ClassLabel
	samples int
}

func NewScriptedClassifier(labels ...core.ClassLabel) *ScriptedClassifier {
	return &ScriptedClassifier{queue: labels}
}

// Push appends labels to the queue.
func (c *ScriptedClassifier) Push(labels ...core.ClassLabel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, labels...)
}

func (c *ScriptedClassifier) Sample() (core.ClassLabel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples++
	if len(c.queue) == 0 {
		return core.NoLabel, false
	}
	l := c.queue[0]
	c.queue = c.queue[1:]
	return l, true
}

// Pending returns the number of labels not yet sampled.
func (c *ScriptedClassifier) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Samples returns how many times Sample was called.
func (c *ScriptedClassifier) Samples() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samples
}

// CyclingClassifier detects an object every Every samples and cycles through
// core.Labels.
type CyclingClassifier struct {
	mu    sync.Mutex
	every int
	n     int
	next  int
}

func NewCyclingClassifier(every int) *CyclingClassifier {
	if every <= 0 {
		every = 1
	}
	return &CyclingClassifier{every: every}
}

func (c *CyclingClassifier) Sample() (core.ClassLabel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	if c.n%c.every != 0 {
		return core.NoLabel, false
	}
	l := core.Labels[c.next%len(core.Labels)]
	c.next++
	return l, true
}
