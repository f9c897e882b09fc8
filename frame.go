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

// Package rainrfid abstracts serial communication with RAIN RFID readers.
//
// The byte-level frame envelope (markers, checksum algorithm, length
// semantics) varies by reader family and is described by a Dialect. A
// Scanner recovers validated frames from an arbitrary byte stream, and a
// Conn correlates command frames with their responses while routing
// unsolicited tag reports to notification subscribers. Higher-level
// operations (polling, tag memory access) live in Device, built entirely
// on top of Conn.Issue.
package rainrfid

import (
	"fmt"
	"strings"
	"time"
)

// Frame is one complete, validated protocol message.
type Frame struct {
	// Params is the raw parameter bytes, already unescaped.
	Params []byte
	// Checksum is the checksum bytes as received or computed.
	Checksum []byte
	// Cmd is the command code discriminator used for correlation.
	Cmd byte
}

// String formats the frame for diagnostics.
func (f Frame) String() string {
	return fmt.Sprintf("cmd=0x%02X params=[%s]", f.Cmd, formatHexBytes(f.Params))
}

// FrameEventKind discriminates Scanner output.
type FrameEventKind int

const (
	// EventFrame carries a validated frame.
	EventFrame FrameEventKind = iota
	// EventResync reports bytes discarded after a framing or checksum
	// failure. Callers can use the discarded count to judge link health.
	EventResync
)

// FrameEvent is one unit of Scanner output: a validated Frame or a
// resynchronization report.
type FrameEvent struct {
	Frame     Frame
	Kind      FrameEventKind
	Discarded int
}

// NotificationEvent is a decoded frame not claimed by any pending
// transaction, e.g. a periodic tag report during continuous inventory.
type NotificationEvent struct {
	Received time.Time
	Frame    Frame
}

// formatHexBytes formats a byte slice as space-separated hex values,
// truncating long data.
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	n := len(data)
	truncated := false
	if n > 32 {
		n = 32
		truncated = true
	}
	parts := make([]string, n)
	for i := range n {
		parts[i] = fmt.Sprintf("%02X", data[i])
	}
	s := strings.Join(parts, " ")
	if truncated {
		s += fmt.Sprintf(" ... (%d bytes total)", len(data))
	}
	return s
}
