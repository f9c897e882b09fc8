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

package rainrfid_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rainrfid "github.com/s-2/go-rainrfid"
	rtesting "github.com/s-2/go-rainrfid/internal/testing"
)

// errNoTag is the reader's error-report code for an empty field.
const errNoTag = 0x15

func newTestDevice(t *testing.T, reader *rtesting.VirtualReader) *rainrfid.Device {
	t.Helper()
	cfg := rainrfid.DefaultConnConfig()
	cfg.ResponseTimeout = 50 * time.Millisecond
	conn, err := rainrfid.NewConn(reader, rainrfid.R200, cfg)
	require.NoError(t, err)
	device := rainrfid.NewDevice(conn, nil)
	t.Cleanup(func() { _ = device.Close() })
	return device
}

func TestDeviceModuleInfo(t *testing.T) {
	t.Parallel()

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdModuleInfo, append([]byte{0x00}, []byte("M100 26dBm V1.0")...))
	device := newTestDevice(t, reader)

	info, err := device.ModuleInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "M100 26dBm V1.0", info.Text)
}

func TestDeviceFirmwareVersion(t *testing.T) {
	t.Parallel()

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdFirmwareVersion, append([]byte{0x01}, []byte("V1.0")...))
	device := newTestDevice(t, reader)

	version, err := device.FirmwareVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "V1.0", version)
}

func TestDeviceReadSingle(t *testing.T) {
	t.Parallel()

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdSinglePoll, []byte{
		0xC9, 0x34, 0x00,
		0xE2, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA,
		0xBE, 0xEF,
	})
	device := newTestDevice(t, reader)

	report, err := device.ReadSingle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int8(-55), report.RSSI)
	assert.Equal(t, "e200112233445566778899aa", report.EPCString())
}

func TestDeviceReadSingleNoTag(t *testing.T) {
	t.Parallel()

	// An empty field answers the poll with an error report frame, not a
	// response under the poll's own command code.
	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.RedirectResponse(rainrfid.CmdSinglePoll, rainrfid.CmdErrorReport, []byte{errNoTag})
	device := newTestDevice(t, reader)

	_, err := device.ReadSingle(context.Background())
	assert.ErrorIs(t, err, rainrfid.ErrNoTagDetected)
}

func TestDeviceReadBank(t *testing.T) {
	t.Parallel()

	epc := []byte{0x11, 0x22, 0x33, 0x44}
	tidData := []byte{0xE2, 0x80, 0x11, 0x60, 0x20, 0x00, 0x72, 0x8A, 0x21, 0xC8, 0x01, 0x3C}
	resp := []byte{byte(len(epc) + 2), 0x34, 0x00}
	resp = append(resp, epc...)
	resp = append(resp, tidData...)

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdReadData, resp)
	device := newTestDevice(t, reader)

	result, err := device.ReadBank(context.Background(), 0, rainrfid.BankTID, 0, 6)
	require.NoError(t, err)
	assert.Equal(t, epc, result.EPC)
	assert.Equal(t, tidData, result.Data)

	// The encoded request carried the bank, offset and word count.
	log := reader.CommandLog()
	require.Len(t, log, 1)
	assert.Equal(t, rainrfid.BuildRead(0, rainrfid.BankTID, 0, 6), log[0].Params)
}

func TestDeviceWriteBank(t *testing.T) {
	t.Parallel()

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdWriteData, []byte{0x00})
	device := newTestDevice(t, reader)

	err := device.WriteBank(context.Background(), 0, rainrfid.BankUser, 0, []byte{0xCA, 0xFE})
	require.NoError(t, err)

	err = device.WriteBank(context.Background(), 0, rainrfid.BankUser, 0, []byte{0x01})
	assert.ErrorIs(t, err, rainrfid.ErrInvalidParams)
}

func TestDeviceWriteLockedBank(t *testing.T) {
	t.Parallel()

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.RedirectResponse(rainrfid.CmdWriteData, rainrfid.CmdErrorReport, []byte{0xA4})
	device := newTestDevice(t, reader)

	err := device.WriteBank(context.Background(), 0, rainrfid.BankEPC, 2, []byte{0x00, 0x01})
	var tagErr rainrfid.TagError
	require.ErrorAs(t, err, &tagErr)
	assert.Equal(t, rainrfid.TagErrMemoryLocked, tagErr)
}

func TestDeviceLock(t *testing.T) {
	t.Parallel()

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdLock, []byte{0x00})
	device := newTestDevice(t, reader)

	payload, err := rainrfid.NewLockPayload(rainrfid.LockEPC, rainrfid.Locked)
	require.NoError(t, err)
	require.NoError(t, device.Lock(context.Background(), 0, payload))

	log := reader.CommandLog()
	require.Len(t, log, 1)
	assert.Equal(t, rainrfid.BuildLock(0, payload), log[0].Params)
}

func TestDeviceSelectRoundTrip(t *testing.T) {
	t.Parallel()

	params := rainrfid.NewSelectParams([]byte{0xE2, 0x00, 0x11, 0x22})
	payload, err := rainrfid.BuildSelect(params)
	require.NoError(t, err)

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdSetSelect, []byte{0x00})
	reader.SetResponse(rainrfid.CmdGetSelect, payload)
	device := newTestDevice(t, reader)

	require.NoError(t, device.Select(context.Background(), params))

	got, err := device.GetSelect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, params, got)
}

func TestDeviceSetSelectMode(t *testing.T) {
	t.Parallel()

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdSetSelectMode, []byte{0x00})
	device := newTestDevice(t, reader)

	require.NoError(t, device.SetSelectMode(context.Background(), rainrfid.SelectModeNonPolling))
	assert.ErrorIs(t, device.SetSelectMode(context.Background(), 0x05), rainrfid.ErrInvalidParams)
}

func TestDeviceMultiPollNotifications(t *testing.T) {
	t.Parallel()

	tagReport := []byte{
		0xC9, 0x34, 0x00,
		0xE2, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA,
		0xBE, 0xEF,
	}

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdMultiPoll, tagReport)
	reader.SetResponse(rainrfid.CmdStopMultiPoll, nil)
	device := newTestDevice(t, reader)

	notes, cancel := device.Subscribe()
	defer cancel()

	// The first report answers the command; later reports arrive as
	// notifications.
	first, err := device.StartMultiPoll(context.Background(), 0x2710)
	require.NoError(t, err)
	assert.Equal(t, "e200112233445566778899aa", first.EPCString())

	require.NoError(t, reader.InjectFrame(rainrfid.CmdMultiPoll, tagReport))
	select {
	case ev := <-notes:
		assert.Equal(t, rainrfid.CmdMultiPoll, ev.Frame.Cmd)
	case <-time.After(time.Second):
		t.Fatal("tag report notification not delivered")
	}

	require.NoError(t, device.StopMultiPoll(context.Background()))
}

func TestDeviceSetDenseReaderMode(t *testing.T) {
	t.Parallel()

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdDenseReader, []byte{0x00})
	device := newTestDevice(t, reader)

	require.NoError(t, device.SetDenseReaderMode(context.Background(), true))

	log := reader.CommandLog()
	require.Len(t, log, 1)
	assert.Equal(t, []byte{0x01}, log[0].Params)
}

func TestDeviceOverJitteryTransport(t *testing.T) {
	t.Parallel()

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdModuleInfo, append([]byte{0x00}, []byte("M100 26dBm V1.0")...))

	jittery := rtesting.NewJitteryTransport(reader, rtesting.JitterConfig{
		MaxLatencyMs:     2,
		FragmentReads:    true,
		FragmentMinBytes: 1,
		Seed:             42,
	})

	cfg := rainrfid.DefaultConnConfig()
	cfg.ResponseTimeout = 500 * time.Millisecond
	conn, err := rainrfid.NewConn(jittery, rainrfid.R200, cfg)
	require.NoError(t, err)
	device := rainrfid.NewDevice(conn, nil)
	defer func() { _ = device.Close() }()

	// Fragmented delivery must be invisible above the scanner.
	for range 5 {
		info, err := device.ModuleInfo(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "M100 26dBm V1.0", info.Text)
	}
}
