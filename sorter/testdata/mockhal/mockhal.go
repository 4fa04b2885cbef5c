// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package mockhal provides testify mocks of the hardware primitives.
package mockhal

import (
	mock "github.com/stretchr/testify/mock"

	"github.com/me507/colorsorter/sorter/core"
	"github.com/me507/colorsorter/sorter/hal"
)

type MockClassifier struct {
	mock.Mock
}

func (_m *MockClassifier) Sample() (core.ClassLabel, bool) {
	ret := _m.Called()
	return ret.Get(0).(core.ClassLabel), ret.Bool(1)
}

type MockDrive struct {
	mock.Mock
}

func (_m *MockDrive) BeginMove(deltaSteps int) error {
	ret := _m.Called(deltaSteps)
	return ret.Error(0)
}

func (_m *MockDrive) IsMoveComplete() (bool, error) {
	ret := _m.Called()
	return ret.Bool(0), ret.Error(1)
}

func (_m *MockDrive) CurrentPosition() int {
	ret := _m.Called()
	return ret.Int(0)
}

func (_m *MockDrive) Stop() {
	_m.Called()
}

type MockGate struct {
	mock.Mock
}

func (_m *MockGate) SetGate(state hal.GateState) error {
	ret := _m.Called(state)
	return ret.Error(0)
}

var (
	_ hal.Classifier = (*MockClassifier)(nil)
	_ hal.Drive      = (*MockDrive)(nil)
	_ hal.Gate       = (*MockGate)(nil)
)
