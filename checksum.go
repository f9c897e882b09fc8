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

// ComputeChecksum computes the dialect's checksum over the given span.
// The result is the checksum's wire representation; for CRC16 the high
// byte comes first. Pure and deterministic.
func (d *Dialect) ComputeChecksum(span []byte) []byte {
	switch d.Checksum {
	case ChecksumNone:
		return nil
	case ChecksumSum:
		var sum byte
		for _, b := range span {
			sum += b
		}
		return []byte{sum}
	case ChecksumXOR:
		var x byte
		for _, b := range span {
			x ^= b
		}
		return []byte{x}
	case ChecksumCRC16:
		crc := crc16(span)
		return []byte{byte(crc >> 8), byte(crc)}
	default:
		return nil
	}
}

// ChecksumWidth returns the wire width of the dialect's checksum in bytes.
func (d *Dialect) ChecksumWidth() int {
	switch d.Checksum {
	case ChecksumSum, ChecksumXOR:
		return 1
	case ChecksumCRC16:
		return 2
	default:
		return 0
	}
}

// crc16 is the reflected CRC-16 used by the CF600 family: polynomial
// 0x8408, preset 0xFFFF, no final XOR.
func crc16(data []byte) uint16 {
	const poly = 0x8408
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for range 8 {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
