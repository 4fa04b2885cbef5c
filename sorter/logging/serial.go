// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the sorter firmware console.
const DefaultBaudRate = 115200

// SerialOptions describes the console the log stream is written to.
type SerialOptions struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// Mode validates the options, applies 115200 8N1 defaults and converts them
// to the go.bug.st/serial mode.
func (o SerialOptions) Mode() (*serial.Mode, error) {
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	if o.DataBits == 0 {
		o.DataBits = 8
	}
	if o.DataBits < 5 || o.DataBits > 8 {
		return nil, fmt.Errorf("invalid data bits %d: must be between 5 and 8", o.DataBits)
	}

	mode := &serial.Mode{BaudRate: o.BaudRate, DataBits: o.DataBits}

	switch o.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", o.StopBits)
	}

	switch strings.ToUpper(strings.TrimSpace(o.Parity)) {
	case "", "N", "NONE":
		mode.Parity = serial.NoParity
	case "E", "EVEN":
		mode.Parity = serial.EvenParity
	case "O", "ODD":
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return mode, nil
}

// OpenSerial opens the console at path for writing the log stream.
func OpenSerial(path string, opts SerialOptions) (io.WriteCloser, error) {
	mode, err := opts.Mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial console %s: %w", path, err)
	}
	return port, nil
}
