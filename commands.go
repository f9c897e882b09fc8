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

// R200/YRM100x family command codes. The same codes also answer as
// response command codes; unsolicited reports reuse them too.
const (
	CmdModuleInfo      byte = 0x03
	CmdFirmwareVersion byte = 0x07
	CmdGetSelect       byte = 0x0B
	CmdSetSelect       byte = 0x0C
	CmdSetSelectMode   byte = 0x12
	CmdSinglePoll      byte = 0x22
	CmdMultiPoll       byte = 0x27
	CmdStopMultiPoll   byte = 0x28
	CmdReadData        byte = 0x39
	CmdWriteData       byte = 0x49
	CmdLock            byte = 0x82
	CmdDenseReader     byte = 0xF5
	CmdErrorReport     byte = 0xFF
)

// CF600 family command codes.
const (
	CmdCFInventory  byte = 0x01
	CmdCFModuleInit byte = 0x50
	CmdCFDeviceInfo byte = 0x70
)

// Select mode values for CmdSetSelectMode.
const (
	SelectModeAlways     byte = 0x00 // apply Select before every operation
	SelectModeNever      byte = 0x01 // never apply Select
	SelectModeNonPolling byte = 0x02 // apply Select before all but polling
)
