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

// Package testing provides wire-level reader simulators for integration
// testing without hardware.
package testing

import (
	"io"
	"sync"
	"time"

	rainrfid "github.com/s-2/go-rainrfid"
)

// redirect scripts a response under a different command code than the
// one received, the way readers report errors out of band.
type redirect struct {
	params []byte
	cmd    byte
}

// CommandLogEntry records a command frame received by the virtual reader.
type CommandLogEntry struct {
	Timestamp time.Time
	Params    []byte
	Cmd       byte
}

// VirtualReader is a scripted wire-level reader: it decodes the frames
// the host writes, consults its script, and queues encoded responses for
// the host to read. It implements rainrfid.Transport so it can back a
// real Conn in integration tests.
type VirtualReader struct {
	dialect *rainrfid.Dialect

	mu          sync.Mutex
	scanner     *rainrfid.Scanner
	responses   map[byte][]byte
	redirects   map[byte]redirect
	silenced    map[byte]bool
	dropBefore  map[byte]int
	commandLog  []CommandLogEntry
	corruptNext bool
	closed      bool

	outgoing chan []byte
	done     chan struct{}
	pending  []byte

	timeoutMu   sync.Mutex
	readTimeout time.Duration
}

// NewVirtualReader returns a virtual reader speaking the given dialect.
func NewVirtualReader(d *rainrfid.Dialect) *VirtualReader {
	return &VirtualReader{
		dialect:     d,
		scanner:     rainrfid.NewScanner(d),
		responses:   make(map[byte][]byte),
		redirects:   make(map[byte]redirect),
		silenced:    make(map[byte]bool),
		dropBefore:  make(map[byte]int),
		outgoing:    make(chan []byte, 64),
		done:        make(chan struct{}),
		readTimeout: time.Second,
	}
}

// SetResponse scripts the response params for a command code.
func (v *VirtualReader) SetResponse(cmd byte, params []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.responses[cmd] = append([]byte(nil), params...)
}

// RedirectResponse makes the reader answer cmd with a frame carrying a
// different command code, e.g. an error report for a failed poll.
func (v *VirtualReader) RedirectResponse(cmd, respCmd byte, params []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.redirects[cmd] = redirect{cmd: respCmd, params: append([]byte(nil), params...)}
}

// Silence makes the reader drop every occurrence of the command.
func (v *VirtualReader) Silence(cmd byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silenced[cmd] = true
}

// RespondAfter makes the reader drop the first n occurrences of the
// command before answering, exercising the host's retry path.
func (v *VirtualReader) RespondAfter(cmd byte, n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropBefore[cmd] = n
}

// CorruptNextResponse flips a byte inside the next response frame so the
// host's checksum validation rejects it.
func (v *VirtualReader) CorruptNextResponse() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.corruptNext = true
}

// InjectFrame queues an unsolicited frame, e.g. a multi-poll tag report.
func (v *VirtualReader) InjectFrame(cmd byte, params []byte) error {
	raw, err := rainrfid.Encode(v.dialect, cmd, params)
	if err != nil {
		return err
	}
	v.InjectRaw(raw)
	return nil
}

// InjectRaw queues arbitrary bytes, valid frame or noise.
func (v *VirtualReader) InjectRaw(raw []byte) {
	select {
	case v.outgoing <- append([]byte(nil), raw...):
	case <-v.done:
	}
}

// CommandLog returns the commands received so far.
func (v *VirtualReader) CommandLog() []CommandLogEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]CommandLogEntry(nil), v.commandLog...)
}

// Write decodes host frames and queues scripted responses.
func (v *VirtualReader) Write(p []byte) (int, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return 0, rainrfid.ErrTransportClosed
	}
	events := v.scanner.Feed(p)
	var replies [][]byte
	for _, ev := range events {
		if ev.Kind != rainrfid.EventFrame {
			continue
		}
		if raw := v.handleFrame(ev.Frame); raw != nil {
			replies = append(replies, raw)
		}
	}
	v.mu.Unlock()

	for _, raw := range replies {
		select {
		case v.outgoing <- raw:
		case <-v.done:
			return 0, rainrfid.ErrTransportClosed
		}
	}
	return len(p), nil
}

// handleFrame is called with v.mu held.
func (v *VirtualReader) handleFrame(f rainrfid.Frame) []byte {
	v.commandLog = append(v.commandLog, CommandLogEntry{
		Cmd:       f.Cmd,
		Params:    append([]byte(nil), f.Params...),
		Timestamp: time.Now(),
	})

	if v.silenced[f.Cmd] {
		return nil
	}
	if n := v.dropBefore[f.Cmd]; n > 0 {
		v.dropBefore[f.Cmd] = n - 1
		return nil
	}

	respCmd, respParams := f.Cmd, v.responses[f.Cmd]
	if r, ok := v.redirects[f.Cmd]; ok {
		respCmd, respParams = r.cmd, r.params
	}
	raw, err := rainrfid.Encode(v.dialect, respCmd, respParams)
	if err != nil {
		return nil
	}
	if v.corruptNext && len(raw) > 2 {
		v.corruptNext = false
		raw[len(raw)/2] ^= 0xFF
	}
	return raw
}

// Read delivers queued reader-to-host bytes, honoring the configured
// read timeout the way a serial port does: (0, nil) when nothing
// arrives in time.
func (v *VirtualReader) Read(p []byte) (int, error) {
	if len(v.pending) > 0 {
		n := copy(p, v.pending)
		v.pending = v.pending[n:]
		return n, nil
	}

	v.timeoutMu.Lock()
	timeout := v.readTimeout
	v.timeoutMu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case chunk := <-v.outgoing:
		n := copy(p, chunk)
		if n < len(chunk) {
			v.pending = chunk[n:]
		}
		return n, nil
	case <-timer.C:
		return 0, nil
	case <-v.done:
		return 0, io.EOF
	}
}

// SetReadTimeout sets the Read poll interval.
func (v *VirtualReader) SetReadTimeout(timeout time.Duration) error {
	v.timeoutMu.Lock()
	defer v.timeoutMu.Unlock()
	v.readTimeout = timeout
	return nil
}

// Close shuts the virtual reader down.
func (v *VirtualReader) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	close(v.done)
	return nil
}

// IsConnected reports whether the virtual reader is open.
func (v *VirtualReader) IsConnected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed
}

// Type identifies the transport as a mock.
func (v *VirtualReader) Type() rainrfid.TransportType {
	return rainrfid.TransportMock
}

var _ rainrfid.Transport = (*VirtualReader)(nil)
