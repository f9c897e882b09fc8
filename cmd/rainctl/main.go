// Copyright 2026 The go-rainrfid Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// rainctl is a command-line tool for RAIN RFID readers: detection,
// single and continuous inventory, tag memory access and chip
// identification.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	rainrfid "github.com/s-2/go-rainrfid"
	"github.com/s-2/go-rainrfid/detection"
	"github.com/s-2/go-rainrfid/inventory"
	"github.com/s-2/go-rainrfid/tid"
	"github.com/s-2/go-rainrfid/transport/uart"
)

var (
	flagPort      string
	flagDialect   string
	flagConfig    string
	flagBaud      int
	flagDetect    bool
	flagInfo      bool
	flagFirmware  bool
	flagSingle    bool
	flagInventory bool
	flagTID       bool
	flagDebug     bool
)

func init() {
	flag.StringVar(&flagPort, "port", "", "Serial port (auto-detect if empty)")
	flag.StringVar(&flagDialect, "dialect", "", "Reader dialect: r200, yrm100x or cf600")
	flag.StringVar(&flagConfig, "config", "", "Path to a TOML config file")
	flag.IntVar(&flagBaud, "baud", 0, "Baud rate (default 115200)")
	flag.BoolVar(&flagDetect, "detect", false, "Scan serial ports for readers and exit")
	flag.BoolVar(&flagInfo, "info", false, "Print the reader's module info")
	flag.BoolVar(&flagFirmware, "firmware", false, "Print the reader's firmware version")
	flag.BoolVar(&flagSingle, "single", false, "Run one inventory round")
	flag.BoolVar(&flagInventory, "inventory", false, "Run continuous inventory until interrupted")
	flag.BoolVar(&flagTID, "tid", false, "Read the TID bank and identify the chip")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if flagDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		rainrfid.SetDebugEnabled(true)
	}

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("rainctl failed")
	}
}

func run() error {
	cfg := defaultRunConfig()
	if flagConfig != "" {
		if err := loadFileConfig(flagConfig, &cfg); err != nil {
			return err
		}
		log.Info().Str("path", flagConfig).Msg("loaded config")
	}
	if flagPort != "" {
		cfg.port = flagPort
	}
	if flagDialect != "" {
		cfg.dialect = flagDialect
	}
	if flagBaud > 0 {
		cfg.baudRate = flagBaud
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagDetect {
		return runDetect(ctx)
	}

	device, err := connect(ctx, &cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := device.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close failed")
		}
	}()

	switch {
	case flagInfo:
		return runInfo(ctx, device)
	case flagFirmware:
		return runFirmware(ctx, device)
	case flagSingle:
		return runSingle(ctx, device)
	case flagTID:
		return runTID(ctx, device, cfg.accessPassword)
	case flagInventory:
		return runInventory(ctx, device)
	default:
		flag.Usage()
		return errors.New("no operation given")
	}
}

func runDetect(ctx context.Context) error {
	devices, err := detection.Detect(ctx, nil)
	if err != nil {
		return err
	}
	for _, d := range devices {
		log.Info().
			Str("port", d.Port).
			Str("dialect", d.Dialect).
			Str("info", d.Info).
			Msg("reader found")
	}
	return nil
}

func connect(ctx context.Context, cfg *config) (*rainrfid.Device, error) {
	if cfg.port == "" {
		log.Info().Msg("no port given, auto-detecting")
		opts := detection.DefaultOptions()
		opts.FirstOnly = true
		if cfg.dialect != "" {
			opts.Dialects = []string{cfg.dialect}
		}
		devices, err := detection.Detect(ctx, &opts)
		if err != nil {
			return nil, err
		}
		cfg.port = devices[0].Port
		cfg.dialect = devices[0].Dialect
		log.Info().Str("port", cfg.port).Str("dialect", cfg.dialect).Msg("reader detected")
	}

	dialect, ok := rainrfid.GetDialect(cfg.dialect)
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (have %s)",
			cfg.dialect, strings.Join(rainrfid.DialectNames(), ", "))
	}

	transport, err := uart.NewWithBaudRate(cfg.port, cfg.baudRate)
	if err != nil {
		return nil, err
	}

	connCfg := rainrfid.DefaultConnConfig()
	if cfg.responseTimeout > 0 {
		connCfg.ResponseTimeout = cfg.responseTimeout
	}
	connCfg.MaxAttempts = cfg.maxAttempts
	connCfg.OnResync = func(discarded int) {
		log.Debug().Int("discarded", discarded).Msg("stream resync")
	}

	conn, err := rainrfid.NewConn(transport, dialect, connCfg)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	return rainrfid.NewDevice(conn, nil), nil
}

func runInfo(ctx context.Context, device *rainrfid.Device) error {
	info, err := device.ModuleInfo(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("module", info.Text).Msg("module info")
	return nil
}

func runFirmware(ctx context.Context, device *rainrfid.Device) error {
	version, err := device.FirmwareVersion(ctx)
	if err != nil {
		return err
	}
	log.Info().Str("firmware", version).Msg("firmware version")
	return nil
}

func runSingle(ctx context.Context, device *rainrfid.Device) error {
	report, err := device.ReadSingle(ctx)
	if errors.Is(err, rainrfid.ErrNoTagDetected) {
		log.Info().Msg("no tag in field")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().
		Str("epc", report.EPCString()).
		Int8("rssi", report.RSSI).
		Msg("tag")
	return nil
}

func runTID(ctx context.Context, device *rainrfid.Device, accessPwd uint32) error {
	result, err := device.ReadBank(ctx, accessPwd, rainrfid.BankTID, 0, 6)
	if err != nil {
		return err
	}
	info, err := tid.Decode(result.Data)
	if err != nil {
		return err
	}
	log.Info().
		Hex("epc", result.EPC).
		Str("chip", info.String()).
		Msg("tag identified")
	return nil
}

func runInventory(ctx context.Context, device *rainrfid.Device) error {
	cfg := inventory.DefaultConfig()
	cfg.OnTag = func(report *rainrfid.TagReport) {
		log.Info().
			Str("epc", report.EPCString()).
			Int8("rssi", report.RSSI).
			Msg("tag arrived")
	}
	cfg.OnTagLost = func(epc string) {
		log.Info().Str("epc", epc).Msg("tag departed")
	}
	cfg.OnError = func(err error) {
		log.Warn().Err(err).Msg("inventory error")
	}

	session := inventory.New(device, cfg)
	if err := session.Start(ctx); err != nil {
		return err
	}
	log.Info().Msg("continuous inventory running, press Ctrl+C to stop")

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return session.Stop(stopCtx)
}
