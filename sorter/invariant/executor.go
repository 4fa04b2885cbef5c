// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package invariant

import (
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// ExecutorFunc adapts a function to a ViolationExecutor.
type ExecutorFunc func(ViolationError)

func (f ExecutorFunc) Exec(err ViolationError) { f(err) }

// Panic raises the violation as the panic value. It is the default executor.
var Panic ViolationExecutor = ExecutorFunc(func(err ViolationError) {
	panic(err)
})

// LogAndPanic logs the violation with the stack of the offending task, then
// panics like Panic.
func LogAndPanic(logger log.FieldLogger) ViolationExecutor {
	return ExecutorFunc(func(err ViolationError) {
		logger.WithField("stack", string(debug.Stack())).Error(err.Error())
		panic(err)
	})
}
