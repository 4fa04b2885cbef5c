// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package invariant makes protocol contract violations fail loudly.
//
// A violation is a programming error, never a runtime condition. The default
// executor panics; the scheduler recovers the panic on the offending task,
// reports it and halts that task.
package invariant

import (
	"errors"
	"fmt"
	"sync"
)

func Check(cond bool, statement string) {
	if !cond {
		Violate(statement)
	}
}

func Checkf(cond bool, format string, args ...any) {
	if !cond {
		Violatef(format, args...)
	}
}

func Violate(statement string) {
	std.mtx.Lock()
	executor := std.executor
	std.mtx.Unlock()

	executor.Exec(ViolationError{Statement: statement})
}

func Violatef(format string, args ...any) {
	Violate(fmt.Sprintf(format, args...))
}

// SetViolationExecutor replaces the process-wide executor and returns the previous one.
func SetViolationExecutor(executor ViolationExecutor) ViolationExecutor {
	std.mtx.Lock()
	defer std.mtx.Unlock()

	prev := std.executor
	std.executor = executor
	return prev
}

// AsViolation reports whether a recovered panic value is a contract violation.
func AsViolation(recovered any) (ViolationError, bool) {
	err, ok := recovered.(error)
	if !ok {
		return ViolationError{}, false
	}
	var v ViolationError
	if errors.As(err, &v) {
		return v, true
	}
	return ViolationError{}, false
}

var std = struct {
	executor ViolationExecutor
	mtx      sync.Mutex
}{
	executor: Panic,
}
