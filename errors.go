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
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Error categories for error handling and retry logic
var (
	// Framing errors - recovered locally by stream resynchronization,
	// never fatal on their own
	ErrTruncated        = errors.New("frame truncated")
	ErrBadChecksum      = errors.New("checksum mismatch")
	ErrLengthMismatch   = errors.New("length field mismatch")
	ErrUnexpectedMarker = errors.New("unexpected start or end marker")

	// Transaction errors - surfaced to the caller of Issue
	ErrTimeout           = errors.New("response timeout")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrParametersTooLong = errors.New("parameters exceed length field range")

	// Transport errors - potentially retryable at the operation level
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportClosed  = errors.New("transport is closed")
	ErrTransportTimeout = errors.New("transport timeout")

	// Device errors - generally not retryable
	ErrNoTagDetected   = errors.New("no tag detected")
	ErrInvalidResponse = errors.New("invalid response format")
	ErrInvalidDialect  = errors.New("invalid dialect definition")
	ErrInvalidParams   = errors.New("invalid parameters")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// ProtocolError wraps protocol and transport level errors with context
// about the operation and connection that produced them.
type ProtocolError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *ProtocolError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a protocol error with consistent formatting
func NewProtocolError(op, port string, err error, errType ErrorType) *ProtocolError {
	return &ProtocolError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// TimeoutError reports an exhausted transaction: the reader never produced
// a response with the expected command code within the attempt budget.
type TimeoutError struct {
	Cmd      byte
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command 0x%02X: %v after %d attempts", e.Cmd, ErrTimeout, e.Attempts)
}

func (*TimeoutError) Unwrap() error {
	return ErrTimeout
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Retryable
	}

	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrBadChecksum),
		errors.Is(err, ErrNoTagDetected):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the connection is gone and
// the caller should stop rather than retry the operation. Distinct from
// IsRetryable, which only judges a single operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var pe *ProtocolError
	if errors.As(err, &pe) && pe.Type == ErrorTypePermanent {
		return true
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrConnectionClosed),
		errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// isDeviceGoneError checks for OS-level errors indicating device
// disconnection, as seen when a USB serial adapter is unplugged mid I/O.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}
	return false
}
