// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger() (*logrus.Logger, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	logger := logrus.New()
	logger.SetOutput(buf)
	logger.SetLevel(logrus.DebugLevel)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return logger, buf
}

func TestReportNeverBlocks(t *testing.T) {
	logger, _ := newBufferLogger()
	r := NewAsyncReporter(uuid.New(), 2, logger)

	for i := 0; i < 5; i++ {
		r.Report(Event{Component: ComponentPositioner, Code: MechanicalStall, Tick: uint64(i)})
	}

	assert.Equal(t, uint64(3), r.Dropped())
}

func TestRunWritesStructuredFields(t *testing.T) {
	logger, buf := newBufferLogger()
	runID := uuid.New()
	r := NewAsyncReporter(runID, 0, logger)

	r.Report(Event{Component: ComponentReleaser, Code: ActuationFault, Tick: 42, Detail: "coil open"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))
	<-r.Done()

	out := buf.String()
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "code=Releaser.ActuationFault")
	assert.Contains(t, out, "component=releaser")
	assert.Contains(t, out, "tick=42")
	assert.Contains(t, out, "run_id="+runID.String())
	assert.Contains(t, out, `detail="coil open"`)
}

func TestContractViolationLoggedAsError(t *testing.T) {
	logger, buf := newBufferLogger()
	r := NewAsyncReporter(uuid.New(), 0, logger)
	r.Report(Event{Component: ComponentHandoff, Code: ContractViolation, Tick: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))

	assert.Contains(t, buf.String(), "level=error")
}

func TestRecorder(t *testing.T) {
	var rec Recorder
	rec.Report(Event{Code: MechanicalStall, Tick: 1})
	rec.Report(Event{Code: ActuationFault, Tick: 2})

	want := []Code{MechanicalStall, ActuationFault}
	if diff := cmp.Diff(want, rec.Codes()); diff != "" {
		t.Errorf("codes mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, rec.Events(), 2)
}
