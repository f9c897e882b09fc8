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

package detection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rainrfid "github.com/s-2/go-rainrfid"
	rtesting "github.com/s-2/go-rainrfid/internal/testing"
)

func TestDeviceInfoString(t *testing.T) {
	t.Parallel()

	withInfo := DeviceInfo{
		Port:    "/dev/ttyUSB0",
		Dialect: "R200",
		Info:    "M100 26dBm V1.0",
	}
	assert.Equal(t, "R200 reader at /dev/ttyUSB0 (M100 26dBm V1.0)", withInfo.String())

	bare := DeviceInfo{
		Port:    "COM3",
		Dialect: "CF600",
	}
	assert.Equal(t, "CF600 reader at COM3", bare.String())
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	assert.Positive(t, opts.Timeout)
	assert.Positive(t, opts.ProbeTimeout)
	assert.Less(t, opts.ProbeTimeout, opts.Timeout)
	assert.Empty(t, opts.Dialects)
	assert.False(t, opts.FirstOnly)
}

func TestIdentCommand(t *testing.T) {
	t.Parallel()

	// R200 and YRM100x answer the module info query; CF600 modules only
	// respond once initialized, so the init command doubles as the probe.
	cmd, params := identCommand(rainrfid.R200)
	assert.Equal(t, rainrfid.CmdModuleInfo, cmd)
	assert.Equal(t, []byte{0x00}, params)

	cmd, params = identCommand(rainrfid.YRM100x)
	assert.Equal(t, rainrfid.CmdModuleInfo, cmd)
	assert.Equal(t, []byte{0x00}, params)

	cmd, params = identCommand(rainrfid.CF600)
	assert.Equal(t, rainrfid.CmdCFModuleInit, cmd)
	assert.Nil(t, params)
}

func newProbeConn(t *testing.T, reader *rtesting.VirtualReader) *rainrfid.Conn {
	t.Helper()
	cfg := rainrfid.DefaultConnConfig()
	cfg.MaxAttempts = 1
	cfg.ResponseTimeout = 30 * time.Millisecond
	conn, err := rainrfid.NewConn(reader, rainrfid.R200, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestIssueWithRetryRecovers(t *testing.T) {
	t.Parallel()

	// A module still settling after power-up swallows the first probe;
	// the retry policy's second send must find it.
	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdModuleInfo, append([]byte{0x00}, []byte("M100 26dBm V1.0")...))
	reader.RespondAfter(rainrfid.CmdModuleInfo, 1)
	conn := newProbeConn(t, reader)

	frame, err := issueWithRetry(context.Background(), conn,
		rainrfid.CmdModuleInfo, []byte{0x00}, probeRetry(30*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, rainrfid.CmdModuleInfo, frame.Cmd)
	assert.Len(t, reader.CommandLog(), 2)
}

func TestIssueWithRetryGivesUp(t *testing.T) {
	t.Parallel()

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.Silence(rainrfid.CmdModuleInfo)
	conn := newProbeConn(t, reader)

	policy := probeRetry(30 * time.Millisecond)
	_, err := issueWithRetry(context.Background(), conn,
		rainrfid.CmdModuleInfo, []byte{0x00}, policy)
	require.Error(t, err)
	assert.ErrorIs(t, err, rainrfid.ErrTimeout)
	assert.Len(t, reader.CommandLog(), policy.MaxAttempts)
}
