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

func TestR200CatalogContents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		code         byte
		notification bool
	}{
		{"module info", CmdModuleInfo, false},
		{"single poll", CmdSinglePoll, true},
		{"multi poll", CmdMultiPoll, true},
		{"read data", CmdReadData, false},
		{"write data", CmdWriteData, false},
		{"lock", CmdLock, false},
		{"error report", CmdErrorReport, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			desc, ok := R200Catalog.Lookup(tt.code)
			require.True(t, ok)
			assert.Equal(t, tt.name, desc.Name)
			assert.Equal(t, tt.notification, desc.Notification)
		})
	}
}

func TestCatalogLookupUnknown(t *testing.T) {
	t.Parallel()

	_, ok := CF600Catalog.Lookup(0xEE)
	assert.False(t, ok)
}

func TestCatalogDescribe(t *testing.T) {
	t.Parallel()

	s := R200Catalog.Describe(Frame{Cmd: CmdSinglePoll, Params: []byte{0x01, 0x02}})
	assert.Contains(t, s, "single poll")
	assert.Contains(t, s, "0x22")

	s = R200Catalog.Describe(Frame{Cmd: 0xEE})
	assert.Contains(t, s, "unknown")
}

func TestCatalogCodesSorted(t *testing.T) {
	t.Parallel()

	codes := R200Catalog.Codes()
	require.NotEmpty(t, codes)
	for i := 1; i < len(codes); i++ {
		assert.Less(t, codes[i-1], codes[i])
	}
}

func TestCatalogParseResponse(t *testing.T) {
	t.Parallel()

	// Registered parser runs.
	params := append([]byte{0x00}, []byte("M100 26dBm V1.0")...)
	parsed, err := R200Catalog.ParseResponse(Frame{Cmd: CmdModuleInfo, Params: params})
	require.NoError(t, err)
	info, ok := parsed.(ModuleInfo)
	require.True(t, ok)
	assert.Equal(t, "M100 26dBm V1.0", info.Text)

	// No parser registered: raw params come back.
	parsed, err = R200Catalog.ParseResponse(Frame{Cmd: CmdWriteData, Params: []byte{0x01}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, parsed)
}

func TestCatalogRegisterCustom(t *testing.T) {
	t.Parallel()

	c := NewCatalog("custom")
	c.Register(CommandDesc{Code: 0x42, Name: "answer"})

	desc, ok := c.Lookup(0x42)
	require.True(t, ok)
	assert.Equal(t, "answer", desc.Name)
	assert.Equal(t, "custom", c.Name())
}
