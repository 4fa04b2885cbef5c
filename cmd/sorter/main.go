// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Command sorter runs the actuation coordinator against simulated hardware.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/me507/colorsorter/sorter/config"
	"github.com/me507/colorsorter/sorter/coordinator"
	"github.com/me507/colorsorter/sorter/fault"
	"github.com/me507/colorsorter/sorter/hal/sim"
	"github.com/me507/colorsorter/sorter/invariant"
	"github.com/me507/colorsorter/sorter/logging"
)

type options struct {
	Config        string `long:"config" description:"path to a YAML config file"`
	LogLevel      string `long:"log-level" default:"info" description:"log level"`
	SerialLog     string `long:"serial-log" description:"serial device to write the log stream to"`
	Baud          int    `long:"baud" default:"115200" description:"serial console baud rate"`
	Ticks         uint64 `long:"ticks" description:"stop after this many ticks (0 runs until interrupted)"`
	ClassifyEvery int    `long:"classify-every" default:"3" description:"simulated classifier detects an object every N samples"`
	StepsPerPoll  int    `long:"steps-per-poll" default:"20" description:"simulated drive steps per completion poll"`
}

func main() {
	opts := getCLIArgs(os.Args)

	if err := logging.SetLogLevel(opts.LogLevel); err != nil {
		log.WithError(err).Fatal("Invalid log level")
	}
	if opts.SerialLog != "" {
		port, err := logging.OpenSerial(opts.SerialLog, logging.SerialOptions{BaudRate: opts.Baud})
		if err != nil {
			log.WithError(err).Fatal("Failed to open serial console")
		}
		defer port.Close()
		logging.SetOutput(port)
	}
	invariant.SetViolationExecutor(invariant.LogAndPanic(log.StandardLogger()))

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	if err := run(cfg, opts); err != nil {
		log.WithError(err).Error("Sorter exited with error")
		os.Exit(1)
	}
}

func getCLIArgs(argv []string) options {
	var opts options
	parser := flags.NewParser(&opts, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(argv); err != nil {
		log.WithError(err).Fatal("Failed to parse command line arguments:", argv)
	}
	return opts
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func simulatedHardware(opts options) coordinator.Hardware {
	return coordinator.Hardware{
		Classifier: sim.NewCyclingClassifier(opts.ClassifyEvery),
		Drive:      sim.NewDrive(opts.StepsPerPoll),
		Gate:       sim.NewGate(),
	}
}

func run(cfg config.Config, opts options) error {
	runID := uuid.New()
	reporter := fault.NewAsyncReporter(runID, 0, log.StandardLogger())

	coord, err := coordinator.New(cfg, simulatedHardware(opts), nil, reporter, runID)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Ticks > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.Ticks)*cfg.Tick)
		defer cancel()
	}

	// The reporter outlives the coordinator so drain faults are still written.
	reportCtx, stopReporter := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error { return reporter.Run(reportCtx) })
	g.Go(func() error {
		defer stopReporter()
		return coord.Run(ctx)
	})
	return g.Wait()
}
