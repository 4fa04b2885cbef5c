// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package invariant

import "github.com/stretchr/testify/mock"

// MockExecutor records violations instead of panicking.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Exec(err ViolationError) {
	m.Called(err)
}

// InstallMockExecutor makes a MockExecutor the process-wide executor for the
// duration of the test and asserts its expectations at cleanup.
func InstallMockExecutor(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockExecutor {
	m := &MockExecutor{}
	m.Test(t)

	prev := SetViolationExecutor(m)
	t.Cleanup(func() {
		SetViolationExecutor(prev)
		m.AssertExpectations(t)
	})
	return m
}
