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

package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rainrfid "github.com/s-2/go-rainrfid"
	rtesting "github.com/s-2/go-rainrfid/internal/testing"
	"github.com/s-2/go-rainrfid/inventory"
)

func tagReportParams(lastEPCByte byte) []byte {
	return []byte{
		0xC9, 0x34, 0x00,
		0xE2, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, lastEPCByte,
		0xBE, 0xEF,
	}
}

func newSessionFixture(t *testing.T) (*rtesting.VirtualReader, *rainrfid.Device) {
	t.Helper()
	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.SetResponse(rainrfid.CmdMultiPoll, tagReportParams(0xAA))
	reader.SetResponse(rainrfid.CmdStopMultiPoll, nil)

	cfg := rainrfid.DefaultConnConfig()
	cfg.ResponseTimeout = 50 * time.Millisecond
	conn, err := rainrfid.NewConn(reader, rainrfid.R200, cfg)
	require.NoError(t, err)
	device := rainrfid.NewDevice(conn, nil)
	t.Cleanup(func() { _ = device.Close() })
	return reader, device
}

// arrivals collects OnTag callbacks for assertion.
type arrivals struct {
	mu   sync.Mutex
	epcs []string
}

func (a *arrivals) add(report *rainrfid.TagReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.epcs = append(a.epcs, report.EPCString())
}

func (a *arrivals) list() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.epcs...)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSessionDeduplicatesArrivals(t *testing.T) {
	t.Parallel()

	reader, device := newSessionFixture(t)

	var got arrivals
	session := inventory.New(device, inventory.Config{OnTag: got.add})
	require.NoError(t, session.Start(context.Background()))

	// Repeat reports of the same tag must not re-fire OnTag.
	for range 3 {
		require.NoError(t, reader.InjectFrame(rainrfid.CmdMultiPoll, tagReportParams(0xAA)))
	}
	require.NoError(t, reader.InjectFrame(rainrfid.CmdMultiPoll, tagReportParams(0xBB)))

	waitFor(t, func() bool { return len(got.list()) == 2 }, "expected two tag arrivals")
	assert.Equal(t, []string{
		"e200112233445566778899aa",
		"e200112233445566778899bb",
	}, got.list())
	assert.ElementsMatch(t, []string{
		"e200112233445566778899aa",
		"e200112233445566778899bb",
	}, session.Present())

	require.NoError(t, session.Stop(context.Background()))
}

func TestSessionReportsLostTags(t *testing.T) {
	t.Parallel()

	reader, device := newSessionFixture(t)

	var (
		mu   sync.Mutex
		lost []string
	)
	session := inventory.New(device, inventory.Config{
		LostAfter: 100 * time.Millisecond,
		OnTagLost: func(epc string) {
			mu.Lock()
			defer mu.Unlock()
			lost = append(lost, epc)
		},
	})
	require.NoError(t, session.Start(context.Background()))
	reader.Silence(rainrfid.CmdMultiPoll)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(lost) == 1
	}, "expected the tag to be reported lost")
	mu.Lock()
	assert.Equal(t, []string{"e200112233445566778899aa"}, lost)
	mu.Unlock()
	assert.Empty(t, session.Present())

	require.NoError(t, session.Stop(context.Background()))
}

func TestSessionStartOnEmptyField(t *testing.T) {
	t.Parallel()

	reader := rtesting.NewVirtualReader(rainrfid.R200)
	reader.RedirectResponse(rainrfid.CmdMultiPoll, rainrfid.CmdErrorReport, []byte{0x15})
	reader.SetResponse(rainrfid.CmdStopMultiPoll, nil)

	cfg := rainrfid.DefaultConnConfig()
	cfg.ResponseTimeout = 30 * time.Millisecond
	conn, err := rainrfid.NewConn(reader, rainrfid.R200, cfg)
	require.NoError(t, err)
	device := rainrfid.NewDevice(conn, nil)
	defer func() { _ = device.Close() }()

	var got arrivals
	session := inventory.New(device, inventory.Config{OnTag: got.add})
	require.NoError(t, session.Start(context.Background()))
	assert.Empty(t, session.Present())

	// A tag entering the field later still produces an arrival.
	require.NoError(t, reader.InjectFrame(rainrfid.CmdMultiPoll, tagReportParams(0xAA)))
	waitFor(t, func() bool { return len(got.list()) == 1 }, "expected a tag arrival")

	require.NoError(t, session.Stop(context.Background()))
}

func TestSessionStopIdempotent(t *testing.T) {
	t.Parallel()

	_, device := newSessionFixture(t)

	session := inventory.New(device, inventory.Config{})
	require.NoError(t, session.Start(context.Background()))
	require.NoError(t, session.Stop(context.Background()))
	require.NoError(t, session.Stop(context.Background()))

	err := session.Start(context.Background())
	assert.Error(t, err)
}

func TestSessionKeepAliveReissuesPoll(t *testing.T) {
	t.Parallel()

	reader, device := newSessionFixture(t)

	session := inventory.New(device, inventory.Config{
		KeepAlive: 50 * time.Millisecond,
	})
	require.NoError(t, session.Start(context.Background()))

	waitFor(t, func() bool {
		var polls int
		for _, entry := range reader.CommandLog() {
			if entry.Cmd == rainrfid.CmdMultiPoll {
				polls++
			}
		}
		return polls >= 3
	}, "expected keep-alive to re-issue the multi-poll command")

	require.NoError(t, session.Stop(context.Background()))
}
