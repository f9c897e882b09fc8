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

// Package tid decodes the Gen2 TID memory bank: the tag mask-designer
// identifier and model number assigned by GS1.
package tid

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Info is the decoded identity of a tag chip.
type Info struct {
	// Manufacturer is the registered mask designer name, empty when the
	// MDID is not in the registry.
	Manufacturer string
	// Model is the chip model name, empty when the TMN is not known.
	Model string
	// MDID is the 9-bit mask designer identifier.
	MDID uint16
	// TMN is the 12-bit tag model number.
	TMN uint16
	// XTID reports whether the tag carries an extended TID.
	XTID bool
}

func (i Info) String() string {
	manufacturer := i.Manufacturer
	if manufacturer == "" {
		manufacturer = fmt.Sprintf("MDID 0x%03X", i.MDID)
	}
	model := i.Model
	if model == "" {
		model = fmt.Sprintf("TMN 0x%03X", i.TMN)
	}
	return manufacturer + " " + model
}

// ErrTooShort indicates the TID data does not cover the class
// identifier and designer words.
var ErrTooShort = errors.New("TID data too short")

// ErrNotGen2 indicates the TID does not begin with the Gen2 class
// identifier 0xE2.
var ErrNotGen2 = errors.New("not a Gen2 TID")

// Decode extracts chip identity from raw TID bank data. The first four
// bytes hold the 0xE2 class identifier, the XTID and security
// indicators, the 9-bit mask designer ID and the 12-bit model number.
func Decode(data []byte) (Info, error) {
	if len(data) < 4 {
		return Info{}, fmt.Errorf("%w: %d bytes", ErrTooShort, len(data))
	}
	if data[0] != 0xE2 {
		return Info{}, fmt.Errorf("%w: class identifier 0x%02X", ErrNotGen2, data[0])
	}

	first := binary.BigEndian.Uint32(data[:4])
	info := Info{
		MDID: uint16((first & 0x001FF000) >> 12),
		TMN:  uint16(first & 0x00000FFF),
		XTID: first&0x00800000 != 0,
	}

	if designer, ok := designers[info.MDID]; ok {
		info.Manufacturer = designer.name
		info.Model = designer.models[info.TMN]
	}
	return info, nil
}

type designer struct {
	models map[uint16]string
	name   string
}

// designers is a subset of the GS1 registered mask designer list,
// covering the chips most common in the field.
// Full list: https://www.gs1.org/docs/epc/mdid_list.json
var designers = map[uint16]designer{
	0x001: {name: "Impinj", models: map[uint16]string{
		0x100: "Monza 4D",
		0x10C: "Monza 4QT",
		0x105: "Monza 4E",
		0x130: "Monza 5",
		0x160: "Monza R6",
		0x170: "Monza R6-P",
		0x190: "M730",
		0x191: "M750",
		0x1A0: "M770",
		0x1A1: "M775",
	}},
	0x003: {name: "Alien Technology", models: map[uint16]string{
		0x412: "Higgs 3",
		0x414: "Higgs 4",
		0x416: "Higgs EC",
		0x429: "Higgs 9",
	}},
	0x006: {name: "NXP Semiconductors", models: map[uint16]string{
		0x806: "UCODE 7",
		0x807: "UCODE 7m",
		0x890: "UCODE 8",
		0x891: "UCODE 8m",
		0x994: "UCODE 9",
	}},
	0x008: {name: "EM Microelectronic", models: map[uint16]string{
		0x090: "EM4124",
		0x425: "em|echo-V",
	}},
	0x00B: {name: "Fudan Microelectronics", models: map[uint16]string{
		0x384: "FM13DT160",
	}},
	0x02C: {name: "Kiloway", models: map[uint16]string{}},
}
