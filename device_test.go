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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModuleInfo(t *testing.T) {
	t.Parallel()

	params := append([]byte{0x00}, []byte("M100 26dBm V1.0")...)
	require.Len(t, params, 16)

	info, err := ParseModuleInfo(params)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), info.InfoType)
	assert.Equal(t, "M100 26dBm V1.0", info.Text)
}

func TestParseModuleInfoEmpty(t *testing.T) {
	t.Parallel()

	_, err := ParseModuleInfo(nil)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseTagReport(t *testing.T) {
	t.Parallel()

	params := []byte{
		0xC9,       // RSSI -55 dBm
		0x34, 0x00, // PC word
		0xE2, 0x00, 0x42, 0x13, 0x37, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, // EPC-96
		0xBE, 0xEF, // stored CRC
	}

	report, err := ParseTagReport(params)
	require.NoError(t, err)
	assert.Equal(t, int8(-55), report.RSSI)
	assert.Equal(t, uint16(0x3400), report.PC)
	assert.Equal(t, params[3:15], report.EPC)
	assert.Equal(t, uint16(0xBEEF), report.CRC)
	assert.Equal(t, "e20042133700112233445566", report.EPCString())
}

func TestParseTagReportTooShort(t *testing.T) {
	t.Parallel()

	_, err := ParseTagReport([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseReadResult(t *testing.T) {
	t.Parallel()

	epc := []byte{0xE2, 0x80, 0x11, 0x60, 0x60, 0x00, 0x02, 0x05, 0x2A, 0x5F, 0xB2, 0xD5}
	data := []byte{0xE2, 0x80, 0x11, 0x60, 0x20, 0x00, 0x72, 0x8A, 0x21, 0xC8, 0x01, 0x3C}

	params := []byte{byte(len(epc) + 2), 0x34, 0x00}
	params = append(params, epc...)
	params = append(params, data...)

	result, err := parseReadResult(params)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x3400), result.PC)
	assert.Equal(t, epc, result.EPC)
	assert.Equal(t, data, result.Data)
}

func TestParseReadResultBadLength(t *testing.T) {
	t.Parallel()

	_, err := parseReadResult([]byte{0x0E, 0x34})
	assert.ErrorIs(t, err, ErrInvalidResponse)

	// ul claims more bytes than the payload holds.
	_, err = parseReadResult([]byte{0x10, 0x34, 0x00, 0x01})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestDecodeErrorReport(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, decodeErrorReport(0x15), ErrNoTagDetected)

	err := decodeErrorReport(0xA4)
	var tagErr TagError
	require.ErrorAs(t, err, &tagErr)
	assert.Equal(t, TagErrMemoryLocked, tagErr)

	assert.ErrorIs(t, decodeErrorReport(0x7F), ErrInvalidResponse)
}
