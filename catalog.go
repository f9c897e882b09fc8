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
	"fmt"
	"sort"

	"github.com/s-2/go-rainrfid/internal/syncutil"
)

// CommandDesc describes one command code of a dialect: its human name
// and how its response payload, if any, is interpreted. Parse is
// optional; commands whose responses are consumed raw leave it nil.
type CommandDesc struct {
	Parse        func(params []byte) (any, error)
	Name         string
	Code         byte
	Notification bool // code also arrives unsolicited
}

// Catalog maps the command codes of one dialect to their descriptors.
// Catalogs are independent of the framing dialect so that protocol
// families sharing a command set but not a frame format can reuse one.
type Catalog struct {
	mu      syncutil.RWMutex
	name    string
	entries map[byte]CommandDesc
}

// NewCatalog returns an empty catalog with the given name.
func NewCatalog(name string) *Catalog {
	return &Catalog{
		name:    name,
		entries: make(map[byte]CommandDesc),
	}
}

// Name returns the catalog's name.
func (c *Catalog) Name() string {
	return c.name
}

// Register adds or replaces a command descriptor.
func (c *Catalog) Register(desc CommandDesc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[desc.Code] = desc
}

// Lookup returns the descriptor for a command code.
func (c *Catalog) Lookup(code byte) (CommandDesc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	desc, ok := c.entries[code]
	return desc, ok
}

// Codes returns the registered command codes in ascending order.
func (c *Catalog) Codes() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	codes := make([]byte, 0, len(c.entries))
	for code := range c.entries {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Describe renders a frame for logs: the command's catalog name when
// known, otherwise the bare code.
func (c *Catalog) Describe(f Frame) string {
	if desc, ok := c.Lookup(f.Cmd); ok {
		return fmt.Sprintf("%s (0x%02X) params=%d", desc.Name, f.Cmd, len(f.Params))
	}
	return fmt.Sprintf("unknown (0x%02X) params=%d", f.Cmd, len(f.Params))
}

// ParseResponse interprets a response frame using the registered parser.
// Frames without a registered parser return their raw params.
func (c *Catalog) ParseResponse(f Frame) (any, error) {
	desc, ok := c.Lookup(f.Cmd)
	if !ok || desc.Parse == nil {
		return f.Params, nil
	}
	return desc.Parse(f.Params)
}

// R200Catalog describes the R200/YRM100x command set.
var R200Catalog = NewCatalog("r200")

// CF600Catalog describes the CF600 command set.
var CF600Catalog = NewCatalog("cf600")

func init() {
	for _, desc := range []CommandDesc{
		{Code: CmdModuleInfo, Name: "module info", Parse: func(p []byte) (any, error) { return ParseModuleInfo(p) }},
		{Code: CmdFirmwareVersion, Name: "firmware version"},
		{Code: CmdGetSelect, Name: "get select"},
		{Code: CmdSetSelect, Name: "set select"},
		{Code: CmdSetSelectMode, Name: "set select mode"},
		{Code: CmdSinglePoll, Name: "single poll", Notification: true,
			Parse: func(p []byte) (any, error) { return ParseTagReport(p) }},
		{Code: CmdMultiPoll, Name: "multi poll", Notification: true,
			Parse: func(p []byte) (any, error) { return ParseTagReport(p) }},
		{Code: CmdStopMultiPoll, Name: "stop multi poll"},
		{Code: CmdReadData, Name: "read data",
			Parse: func(p []byte) (any, error) { return parseReadResult(p) }},
		{Code: CmdWriteData, Name: "write data"},
		{Code: CmdLock, Name: "lock"},
		{Code: CmdDenseReader, Name: "dense reader mode"},
		{Code: CmdErrorReport, Name: "error report", Notification: true},
	} {
		R200Catalog.Register(desc)
	}

	for _, desc := range []CommandDesc{
		{Code: CmdCFModuleInit, Name: "module init"},
		{Code: CmdCFDeviceInfo, Name: "device info"},
		{Code: CmdCFInventory, Name: "inventory", Notification: true},
	} {
		CF600Catalog.Register(desc)
	}
}
