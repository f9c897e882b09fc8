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
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

// Reader error-report codes carried in the error report frame.
const (
	errCodeNoTag       = 0x15 // polling found no tag in the field
	errCodeAccessBase  = 0xA0 // access failed; low nibble is the Gen2 tag error
	errCodeAccessLimit = 0xAF
)

// ModuleInfo is the reader's self description.
type ModuleInfo struct {
	Text     string
	InfoType byte
}

// ParseModuleInfo decodes a module info response payload: one info type
// byte followed by an ASCII description, e.g. "M100 26dBm V1.0".
func ParseModuleInfo(params []byte) (ModuleInfo, error) {
	if len(params) < 1 {
		return ModuleInfo{}, fmt.Errorf("%w: empty module info", ErrInvalidResponse)
	}
	return ModuleInfo{
		InfoType: params[0],
		Text:     string(params[1:]),
	}, nil
}

// TagReport is one inventoried tag as reported by a poll response.
type TagReport struct {
	EPC  []byte
	PC   uint16
	CRC  uint16
	RSSI int8
}

// EPCString returns the EPC as lowercase hex.
func (t *TagReport) EPCString() string {
	return fmt.Sprintf("%x", t.EPC)
}

func (t *TagReport) String() string {
	return fmt.Sprintf("EPC %x (RSSI %d, PC 0x%04X)", t.EPC, t.RSSI, t.PC)
}

// ParseTagReport decodes a poll response payload: signed RSSI, the
// 16-bit PC word, the EPC, and the tag's stored CRC.
func ParseTagReport(params []byte) (*TagReport, error) {
	if len(params) < 5 {
		return nil, fmt.Errorf("%w: tag report %d bytes", ErrInvalidResponse, len(params))
	}
	return &TagReport{
		RSSI: int8(params[0]), //nolint:gosec // wire value is two's complement
		PC:   binary.BigEndian.Uint16(params[1:3]),
		EPC:  append([]byte(nil), params[3:len(params)-2]...),
		CRC:  binary.BigEndian.Uint16(params[len(params)-2:]),
	}, nil
}

// ReadResult is the outcome of a tag memory read: which tag answered and
// the words it returned.
type ReadResult struct {
	EPC  []byte
	Data []byte
	PC   uint16
}

// parseReadResult decodes a read-data response payload. The leading
// length byte covers the PC word plus EPC; the remainder is the data.
func parseReadResult(params []byte) (*ReadResult, error) {
	if len(params) < 3 {
		return nil, fmt.Errorf("%w: read result %d bytes", ErrInvalidResponse, len(params))
	}
	ul := int(params[0])
	if ul < 2 || 1+ul > len(params) {
		return nil, fmt.Errorf("%w: read result length byte %d", ErrInvalidResponse, ul)
	}
	return &ReadResult{
		PC:   binary.BigEndian.Uint16(params[1:3]),
		EPC:  append([]byte(nil), params[3:1+ul]...),
		Data: append([]byte(nil), params[1+ul:]...),
	}, nil
}

// Device wraps a connection with the R200-family operations: polling,
// Select, tag memory access and reader management. All methods are safe
// for concurrent use; the connection serializes the commands.
type Device struct {
	conn    *Conn
	catalog *Catalog
}

// NewDevice returns a device over an established connection. A nil
// catalog selects the R200 catalog.
func NewDevice(conn *Conn, catalog *Catalog) *Device {
	if catalog == nil {
		catalog = R200Catalog
	}
	return &Device{conn: conn, catalog: catalog}
}

// Conn returns the underlying connection.
func (d *Device) Conn() *Conn {
	return d.conn
}

// Catalog returns the command catalog in use.
func (d *Device) Catalog() *Catalog {
	return d.catalog
}

// Close shuts down the underlying connection.
func (d *Device) Close() error {
	return d.conn.Close()
}

// Subscribe registers for unsolicited frames, chiefly multi-poll tag
// reports and reader error reports.
func (d *Device) Subscribe() (<-chan NotificationEvent, func()) {
	return d.conn.Subscribe()
}

// ModuleInfo queries the reader's self description.
func (d *Device) ModuleInfo(ctx context.Context) (ModuleInfo, error) {
	frame, err := d.conn.Issue(ctx, CmdModuleInfo, []byte{0x00})
	if err != nil {
		return ModuleInfo{}, err
	}
	return ParseModuleInfo(frame.Params)
}

// FirmwareVersion queries the reader's firmware version string.
func (d *Device) FirmwareVersion(ctx context.Context) (string, error) {
	frame, err := d.conn.Issue(ctx, CmdFirmwareVersion, []byte{0x01})
	if err != nil {
		return "", err
	}
	if len(frame.Params) < 1 {
		return "", fmt.Errorf("%w: empty firmware response", ErrInvalidResponse)
	}
	return string(frame.Params[1:]), nil
}

// ReadSingle performs one inventory round and returns the strongest tag,
// or ErrNoTagDetected when the field is empty.
func (d *Device) ReadSingle(ctx context.Context) (*TagReport, error) {
	frame, err := d.issueChecked(ctx, CmdSinglePoll, nil)
	if err != nil {
		return nil, err
	}
	return ParseTagReport(frame.Params)
}

// StartMultiPoll begins continuous inventory for count rounds. The first
// tag report answers the command itself and is returned; subsequent
// reports arrive as notifications on subscriber channels. A field with
// no tags yields ErrNoTagDetected; polling continues regardless until
// the rounds are exhausted or StopMultiPoll is called.
func (d *Device) StartMultiPoll(ctx context.Context, count uint16) (*TagReport, error) {
	frame, err := d.issueChecked(ctx, CmdMultiPoll, BuildMultiPoll(count))
	if err != nil {
		return nil, err
	}
	return ParseTagReport(frame.Params)
}

// StopMultiPoll ends a running multi-poll.
func (d *Device) StopMultiPoll(ctx context.Context) error {
	_, err := d.conn.Issue(ctx, CmdStopMultiPoll, nil)
	return err
}

// Select programs the reader's Select filter; subsequent polls and
// access commands address only matching tags.
func (d *Device) Select(ctx context.Context, params SelectParams) error {
	payload, err := BuildSelect(params)
	if err != nil {
		return err
	}
	_, err = d.conn.Issue(ctx, CmdSetSelect, payload)
	return err
}

// GetSelect reads back the reader's current Select filter.
func (d *Device) GetSelect(ctx context.Context) (SelectParams, error) {
	frame, err := d.conn.Issue(ctx, CmdGetSelect, nil)
	if err != nil {
		return SelectParams{}, err
	}
	return ParseSelect(frame.Params)
}

// SetSelectMode controls when the reader transmits the Select before
// other commands; see the SelectMode constants.
func (d *Device) SetSelectMode(ctx context.Context, mode byte) error {
	if mode > SelectModeNonPolling {
		return fmt.Errorf("%w: select mode %d", ErrInvalidParams, mode)
	}
	_, err := d.conn.Issue(ctx, CmdSetSelectMode, []byte{mode})
	return err
}

// ReadBank reads lenWords 16-bit words from tag memory starting at
// offsetWords. The selected tag answers; use Select first to address a
// specific tag in a populated field.
func (d *Device) ReadBank(ctx context.Context, accessPwd uint32, bank MemBank, offsetWords, lenWords uint16) (*ReadResult, error) {
	frame, err := d.issueChecked(ctx, CmdReadData, BuildRead(accessPwd, bank, offsetWords, lenWords))
	if err != nil {
		return nil, err
	}
	return parseReadResult(frame.Params)
}

// WriteBank writes whole words to tag memory starting at offsetWords.
func (d *Device) WriteBank(ctx context.Context, accessPwd uint32, bank MemBank, offsetWords uint16, data []byte) error {
	payload, err := BuildWrite(accessPwd, bank, offsetWords, data)
	if err != nil {
		return err
	}
	_, err = d.issueChecked(ctx, CmdWriteData, payload)
	return err
}

// Lock applies a lock payload to the selected tag.
func (d *Device) Lock(ctx context.Context, accessPwd uint32, lock LockPayload) error {
	_, err := d.issueChecked(ctx, CmdLock, BuildLock(accessPwd, lock))
	return err
}

// SetDenseReaderMode toggles dense reader mode, which trades read rate
// for resilience when multiple readers share the band.
func (d *Device) SetDenseReaderMode(ctx context.Context, enabled bool) error {
	param := byte(0x00)
	if enabled {
		param = 0x01
	}
	_, err := d.conn.Issue(ctx, CmdDenseReader, []byte{param})
	return err
}

// issueChecked issues a command while watching for the reader's error
// report frame. The reader answers a failed poll or access command with
// an error report instead of a response under the original command code,
// which would otherwise surface as a bare timeout.
func (d *Device) issueChecked(ctx context.Context, cmd byte, params []byte) (Frame, error) {
	notes, cancel := d.conn.Subscribe()
	defer cancel()

	frame, err := d.conn.Issue(ctx, cmd, params)
	if err == nil {
		return frame, nil
	}

	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		return Frame{}, err
	}

	// The error report, if any, was dispatched as a notification before
	// the transaction expired; it is already buffered.
	for {
		select {
		case ev, ok := <-notes:
			if !ok {
				return Frame{}, err
			}
			if ev.Frame.Cmd != CmdErrorReport || len(ev.Frame.Params) == 0 {
				continue
			}
			return Frame{}, decodeErrorReport(ev.Frame.Params[0])
		default:
			return Frame{}, err
		}
	}
}

// decodeErrorReport maps a reader error-report code onto the error
// taxonomy.
func decodeErrorReport(code byte) error {
	switch {
	case code == errCodeNoTag:
		return ErrNoTagDetected
	case code >= errCodeAccessBase && code <= errCodeAccessLimit:
		return TagError(code & 0x0F)
	default:
		return fmt.Errorf("%w: reader error 0x%02X", ErrInvalidResponse, code)
	}
}
