// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package statejson

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"
)

// HandoffDescription describes the shared hand-off token.
type HandoffDescription struct {
	Turn     string `json:"turn"`
	Target   string `json:"target,omitempty"`
	Sequence uint64 `json:"sequence"`
}

// TaskDescription describes one periodic task.
type TaskDescription struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Halted bool   `json:"halted,omitempty"`
}

// StatusDescription is the machine status logged at shutdown.
type StatusDescription struct {
	RunID      string             `json:"runId"`
	Tick       uint64             `json:"tick"`
	Handoff    HandoffDescription `json:"handoff"`
	Position   int                `json:"position"`
	Gate       string             `json:"gate"`
	Sorted     uint64             `json:"sorted"`
	Positioner TaskDescription    `json:"positioner"`
	Releaser   TaskDescription    `json:"releaser"`
}

func (s *StatusDescription) AsJSON() []byte {
	bytes, err := json.Marshal(s)
	if err != nil {
		log.Panicf("Failed to marshall status: %s", err)
	}
	return bytes
}
