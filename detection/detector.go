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

// Package detection discovers RAIN RFID readers on serial ports by
// probing each candidate dialect's identification command.
package detection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	rainrfid "github.com/s-2/go-rainrfid"
	"github.com/s-2/go-rainrfid/transport/uart"
)

// DeviceInfo represents a detected reader.
type DeviceInfo struct {
	// Connection path (e.g., "/dev/ttyUSB0", "COM3")
	Port string
	// Name of the dialect the reader answered in
	Dialect string
	// Reader self description, when the probe returned one
	Info string
}

// String returns a human-readable representation of the device.
func (d DeviceInfo) String() string {
	if d.Info != "" {
		return fmt.Sprintf("%s reader at %s (%s)", d.Dialect, d.Port, d.Info)
	}
	return fmt.Sprintf("%s reader at %s", d.Dialect, d.Port)
}

// Options configures the detection behavior.
type Options struct {
	// Dialect names to probe (empty = all registered)
	Dialects []string
	// Device paths to explicitly ignore (e.g., ["/dev/ttyUSB0", "COM2"])
	IgnorePaths []string
	// Maximum time for the whole scan
	Timeout time.Duration
	// Per-probe response deadline
	ProbeTimeout time.Duration
	// Stop at the first reader found
	FirstOnly bool
}

// DefaultOptions returns sensible default detection options.
func DefaultOptions() Options {
	return Options{
		Timeout:      5 * time.Second,
		ProbeTimeout: 150 * time.Millisecond,
	}
}

// Errors
var (
	// ErrNoDevicesFound indicates no readers were detected
	ErrNoDevicesFound = errors.New("no RAIN RFID readers found")
	// ErrNoPorts indicates the system exposes no serial ports
	ErrNoPorts = errors.New("no serial ports present")
)

// Detect scans the system's serial ports for readers. Every port is
// probed with each candidate dialect's identification command; a port
// answers in at most one dialect, so probing stops at the first match
// per port.
func Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ports, err := uart.ListPorts()
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		return nil, ErrNoPorts
	}

	dialects := opts.Dialects
	if len(dialects) == 0 {
		dialects = rainrfid.DialectNames()
	}

	var found []DeviceInfo
	for _, port := range ports {
		if slices.Contains(opts.IgnorePaths, port) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return found, err
		}
		info, ok := probePort(ctx, port, dialects, opts.ProbeTimeout)
		if !ok {
			continue
		}
		found = append(found, info)
		if opts.FirstOnly {
			return found, nil
		}
	}

	if len(found) == 0 {
		return nil, ErrNoDevicesFound
	}
	return found, nil
}

// probePort tries each dialect on one port. The port is reopened per
// dialect so a garbled probe cannot poison the next one.
func probePort(ctx context.Context, port string, dialects []string, probeTimeout time.Duration) (DeviceInfo, bool) {
	for _, name := range dialects {
		dialect, ok := rainrfid.GetDialect(name)
		if !ok {
			continue
		}
		info, ok := probeDialect(ctx, port, dialect, probeTimeout)
		if ok {
			info.Dialect = dialect.Name
			return info, true
		}
	}
	return DeviceInfo{}, false
}

func probeDialect(ctx context.Context, port string, dialect *rainrfid.Dialect, probeTimeout time.Duration) (DeviceInfo, bool) {
	transport, err := uart.New(port)
	if err != nil {
		return DeviceInfo{}, false
	}

	cfg := rainrfid.DefaultConnConfig()
	// One send per Issue; the probe retry policy paces the re-sends so a
	// module still settling after power-up gets a second chance.
	cfg.MaxAttempts = 1
	if probeTimeout > 0 {
		cfg.ResponseTimeout = probeTimeout
	}
	conn, err := rainrfid.NewConn(transport, dialect, cfg)
	if err != nil {
		_ = transport.Close()
		return DeviceInfo{}, false
	}
	defer func() { _ = conn.Close() }()

	cmd, params := identCommand(dialect)
	frame, err := issueWithRetry(ctx, conn, cmd, params, probeRetry(cfg.ResponseTimeout))
	if err != nil {
		return DeviceInfo{}, false
	}

	info := DeviceInfo{Port: port}
	if cmd == rainrfid.CmdModuleInfo {
		if mi, perr := rainrfid.ParseModuleInfo(frame.Params); perr == nil {
			info.Info = mi.Text
		}
	}
	return info, true
}

// probeRetry returns the retry policy for one identification probe: a
// single backed-off re-send, bounded overall so a dead port cannot stall
// the scan.
func probeRetry(responseTimeout time.Duration) *rainrfid.RetryConfig {
	return &rainrfid.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      4 * responseTimeout,
	}
}

func issueWithRetry(ctx context.Context, conn *rainrfid.Conn, cmd byte, params []byte, policy *rainrfid.RetryConfig) (rainrfid.Frame, error) {
	var frame rainrfid.Frame
	err := rainrfid.RetryWithConfig(ctx, policy, func() error {
		f, ierr := conn.Issue(ctx, cmd, params)
		if ierr == nil {
			frame = f
		}
		return ierr
	})
	return frame, err
}

// identCommand returns the per-dialect identification probe.
func identCommand(d *rainrfid.Dialect) (byte, []byte) {
	if d.Name == rainrfid.CF600.Name {
		return rainrfid.CmdCFModuleInit, nil
	}
	return rainrfid.CmdModuleInfo, []byte{0x00}
}
