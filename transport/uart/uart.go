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

// Package uart provides the serial transport for RAIN RFID readers with
// UART or USB-UART bridge interfaces.
package uart

import (
	"fmt"
	"sync"
	"time"

	rainrfid "github.com/s-2/go-rainrfid"
	"go.bug.st/serial"
)

// DefaultBaudRate is the rate R200 and YRM100x modules ship with.
const DefaultBaudRate = 115200

// Transport implements the rainrfid.Transport interface for UART
// communication.
type Transport struct {
	port     serial.Port
	portName string
	mu       sync.Mutex
	closed   bool
}

// New opens a UART transport on the given port at the default baud rate.
func New(portName string) (*Transport, error) {
	return NewWithBaudRate(portName, DefaultBaudRate)
}

// NewWithBaudRate opens a UART transport at a specific baud rate for
// modules reconfigured away from the factory default.
func NewWithBaudRate(portName string, baudRate int) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(50 * time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}

	// Stale bytes from a previous session would desynchronize the first
	// exchange.
	_ = port.ResetInputBuffer()

	return &Transport{
		port:     port,
		portName: portName,
	}, nil
}

// PortName returns the name of the open port.
func (t *Transport) PortName() string {
	return t.portName
}

// Write sends raw bytes to the reader.
func (t *Transport) Write(data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, rainrfid.NewProtocolError("write", t.portName,
			rainrfid.ErrTransportClosed, rainrfid.ErrorTypePermanent)
	}
	n, err := t.port.Write(data)
	if err != nil {
		return n, rainrfid.NewProtocolError("write", t.portName, err,
			rainrfid.ErrorTypeTransient)
	}
	return n, nil
}

// Read reads raw bytes from the reader. A read timeout surfaces as
// (0, nil), matching go.bug.st/serial semantics.
func (t *Transport) Read(buf []byte) (int, error) {
	n, err := t.port.Read(buf)
	if err != nil {
		return n, rainrfid.NewProtocolError("read", t.portName, err,
			rainrfid.ErrorTypeTransient)
	}
	return n, nil
}

// SetReadTimeout sets the serial read timeout.
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return rainrfid.NewProtocolError("set_timeout", t.portName, err,
			rainrfid.ErrorTypePermanent)
	}
	return nil
}

// Close closes the serial port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return rainrfid.NewProtocolError("close", t.portName, err,
			rainrfid.ErrorTypePermanent)
	}
	return nil
}

// IsConnected reports whether the port is open.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Type identifies the transport.
func (t *Transport) Type() rainrfid.TransportType {
	return rainrfid.TransportUART
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return ports, nil
}

var _ rainrfid.Transport = (*Transport)(nil)
