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

package rainrfid

import (
	"io"
	"sync"
	"time"
)

// Transport is an opaque duplex byte stream to a reader. Baud rate, port
// naming and OS-level serial configuration are entirely the transport's
// concern; the core only moves bytes through it.
//
// Read returns (0, nil) when the read timeout elapses with no data, so a
// connection's reader loop can poll for shutdown without busy-waiting.
type Transport interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)

	// SetReadTimeout bounds how long a single Read may block.
	SetReadTimeout(timeout time.Duration) error

	// Close closes the transport connection.
	Close() error

	// IsConnected returns true if the transport is connected.
	IsConnected() bool

	// Type returns the transport type.
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockTransport provides an in-memory Transport for testing. Bytes given
// to InjectRead become available to Read in injection order; Write
// captures outgoing bytes and optionally forwards them to a hook, which
// may in turn inject a scripted response.
type MockTransport struct {
	incoming  chan []byte
	done      chan struct{}
	writeHook func([]byte)
	writes    [][]byte
	pending   []byte
	timeout   time.Duration
	mu        sync.Mutex
	closed    bool
}

// NewMockTransport creates a connected mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		incoming: make(chan []byte, 64),
		done:     make(chan struct{}),
		timeout:  10 * time.Millisecond,
	}
}

// Write implements Transport
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, NewProtocolError("write", "mock", ErrTransportClosed, ErrorTypePermanent)
	}
	data := make([]byte, len(p))
	copy(data, p)
	m.writes = append(m.writes, data)
	hook := m.writeHook
	m.mu.Unlock()

	// Hook runs unlocked so that it may call InjectRead.
	if hook != nil {
		hook(data)
	}
	return len(p), nil
}

// Read implements Transport. It blocks until injected data arrives, the
// timeout elapses (returning 0, nil) or the transport is closed.
func (m *MockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	if len(m.pending) > 0 {
		n := copy(p, m.pending)
		m.pending = m.pending[n:]
		m.mu.Unlock()
		return n, nil
	}
	timeout := m.timeout
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case chunk := <-m.incoming:
		n := copy(p, chunk)
		if n < len(chunk) {
			m.mu.Lock()
			m.pending = append(m.pending, chunk[n:]...)
			m.mu.Unlock()
		}
		return n, nil
	case <-timer.C:
		return 0, nil
	case <-m.done:
		return 0, io.EOF
	}
}

// SetReadTimeout implements Transport
func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	return nil
}

// IsConnected implements Transport
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// InjectRead makes data available to subsequent Read calls.
func (m *MockTransport) InjectRead(p []byte) {
	data := make([]byte, len(p))
	copy(data, p)
	select {
	case m.incoming <- data:
	case <-m.done:
	}
}

// SetWriteHook installs a function invoked with a copy of every written
// buffer. Useful for scripting request/response exchanges.
func (m *MockTransport) SetWriteHook(hook func([]byte)) {
	m.mu.Lock()
	m.writeHook = hook
	m.mu.Unlock()
}

// Writes returns copies of all buffers written so far, in order.
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// WriteCount returns how many Write calls have been made.
func (m *MockTransport) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

var _ Transport = (*MockTransport)(nil)
