// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// SetOutput configures logging output for standard loggers.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
	logrus.SetOutput(w)
}

// SetLogLevel parses and applies level, and installs InternalFormatter.
func SetLogLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q, valid levels are %v: %w", level, logrus.AllLevels, err)
	}
	logrus.SetLevel(parsed)
	logrus.SetFormatter(&InternalFormatter{})
	return nil
}

// InternalFormatter renders "time [level] message key=value ..." with keys
// sorted, one entry per line.
type InternalFormatter struct{}

func (f *InternalFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = new(bytes.Buffer)
	}

	fmt.Fprintf(b, "%s [%s] %s", entry.Time.UTC().Format(timestampFormat), levelName(entry.Level), entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, formatValue(entry.Data[k]))
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelName(l logrus.Level) string {
	switch l {
	case logrus.WarnLevel:
		return "WARN"
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return "ERROR"
	case logrus.DebugLevel, logrus.TraceLevel:
		return "DEBUG"
	}
	return "INFO"
}

func formatValue(v interface{}) interface{} {
	switch val := v.(type) {
	case error:
		return fmt.Sprintf("%q", val.Error())
	case string:
		if needsQuoting(val) {
			return fmt.Sprintf("%q", val)
		}
	case time.Duration:
		return val.String()
	}
	return v
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r == ' ' || r == '"' || r == '=' || r < 0x20 {
			return true
		}
	}
	return false
}
