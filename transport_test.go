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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockTransportReadTimeout(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	require.NoError(t, m.SetReadTimeout(10*time.Millisecond))

	// Serial semantics: a timed-out read is (0, nil), not an error.
	buf := make([]byte, 16)
	n, err := m.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMockTransportInjectAndRead(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	require.NoError(t, m.SetReadTimeout(time.Second))
	m.InjectRead([]byte{0x01, 0x02, 0x03})

	buf := make([]byte, 2)
	n, err := m.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0x01, 0x02}, buf[:n])

	// The partial chunk carries over to the next read.
	n, err = m.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(0x03), buf[0])
}

func TestMockTransportWriteHook(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	require.NoError(t, m.SetReadTimeout(time.Second))

	m.SetWriteHook(func(p []byte) {
		// Echo every write straight back as a read.
		m.InjectRead(p)
	})

	payload := []byte{0xAA, 0x22, 0xDD}
	n, err := m.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	assert.Equal(t, 1, m.WriteCount())
	assert.Equal(t, payload, m.Writes()[0])

	buf := make([]byte, 8)
	n, err = m.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])
}

func TestMockTransportClose(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	assert.True(t, m.IsConnected())
	require.NoError(t, m.Close())
	assert.False(t, m.IsConnected())

	_, err := m.Write([]byte{0x01})
	assert.Error(t, err)

	buf := make([]byte, 4)
	_, err = m.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	// Idempotent.
	assert.NoError(t, m.Close())
}

func TestMockTransportType(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	assert.Equal(t, TransportMock, m.Type())
}
