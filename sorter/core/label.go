// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"strings"
)

// ClassLabel is an output destination produced by the classifier.
type ClassLabel int

const (
	NoLabel ClassLabel = iota
	SlotA
	SlotB
	SlotC
	Unknown
)

// Labels lists every destination a classifier may produce.
var Labels = []ClassLabel{SlotA, SlotB, SlotC, Unknown}

const (
	slotAName   = "slot_a"
	slotBName   = "slot_b"
	slotCName   = "slot_c"
	unknownName = "unknown"
)

func (l ClassLabel) String() string {
	switch l {
	case SlotA:
		return slotAName
	case SlotB:
		return slotBName
	case SlotC:
		return slotCName
	case Unknown:
		return unknownName
	case NoLabel:
		return "none"
	}
	return fmt.Sprintf("label(%d)", int(l))
}

// Valid reports whether l is a destination, i.e. not NoLabel or out of range.
func (l ClassLabel) Valid() bool {
	return l >= SlotA && l <= Unknown
}

// ParseLabel accepts the names produced by String, case-insensitively.
func ParseLabel(s string) (ClassLabel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case slotAName:
		return SlotA, nil
	case slotBName:
		return SlotB, nil
	case slotCName:
		return SlotC, nil
	case unknownName:
		return Unknown, nil
	}
	return NoLabel, fmt.Errorf("unknown class label %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l ClassLabel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so labels can be map keys in config files.
func (l *ClassLabel) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
