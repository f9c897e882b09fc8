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
	"encoding/binary"
	"fmt"
)

// MemBank identifies a Gen2 tag memory bank.
type MemBank byte

// Gen2 memory banks.
const (
	BankReserved MemBank = 0b00
	BankEPC      MemBank = 0b01
	BankTID      MemBank = 0b10
	BankUser     MemBank = 0b11
)

func (b MemBank) String() string {
	switch b {
	case BankReserved:
		return "RESERVED"
	case BankEPC:
		return "EPC"
	case BankTID:
		return "TID"
	case BankUser:
		return "USER"
	default:
		return fmt.Sprintf("bank(%d)", byte(b))
	}
}

// LockBank identifies a lockable region of tag memory. Unlike MemBank,
// the kill and access passwords lock independently.
type LockBank byte

// Lockable regions, in lock payload bit order.
const (
	LockKillPassword   LockBank = 0
	LockAccessPassword LockBank = 1
	LockEPC            LockBank = 2
	LockTID            LockBank = 3
	LockUser           LockBank = 4
)

func (b LockBank) String() string {
	switch b {
	case LockKillPassword:
		return "kill password"
	case LockAccessPassword:
		return "access password"
	case LockEPC:
		return "EPC"
	case LockTID:
		return "TID"
	case LockUser:
		return "USER"
	default:
		return fmt.Sprintf("lockbank(%d)", byte(b))
	}
}

// LockMode is the two-bit action applied to a lockable region. The enum
// values are the wire action bits.
type LockMode byte

// Lock actions.
const (
	Unlocked     LockMode = 0b00
	PermUnlocked LockMode = 0b01 // irreversible
	Locked       LockMode = 0b10
	PermLocked   LockMode = 0b11 // irreversible
)

func (m LockMode) String() string {
	switch m {
	case Unlocked:
		return "unlocked"
	case PermUnlocked:
		return "permanently unlocked"
	case Locked:
		return "locked"
	case PermLocked:
		return "permanently locked"
	default:
		return fmt.Sprintf("lockmode(%d)", byte(m))
	}
}

// TagError is the four-bit Gen2 tag error code carried in backscatter
// error replies.
type TagError byte

// Gen2 tag error codes.
const (
	TagErrOther                  TagError = 0b0000
	TagErrNotSupported           TagError = 0b0001
	TagErrPrivileges             TagError = 0b0010
	TagErrMemoryOverrun          TagError = 0b0011
	TagErrMemoryLocked           TagError = 0b0100
	TagErrCryptoSuite            TagError = 0b0101
	TagErrNotEncapsulated        TagError = 0b0110
	TagErrResponseBufferOverflow TagError = 0b0111
	TagErrSecurityTimeout        TagError = 0b1000
	TagErrInsufficientPower      TagError = 0b1011
	TagErrNonSpecific            TagError = 0b1111
)

func (e TagError) String() string {
	switch e {
	case TagErrOther:
		return "other error"
	case TagErrNotSupported:
		return "not supported"
	case TagErrPrivileges:
		return "insufficient privileges"
	case TagErrMemoryOverrun:
		return "memory overrun"
	case TagErrMemoryLocked:
		return "memory locked"
	case TagErrCryptoSuite:
		return "crypto suite error"
	case TagErrNotEncapsulated:
		return "command not encapsulated"
	case TagErrResponseBufferOverflow:
		return "response buffer overflow"
	case TagErrSecurityTimeout:
		return "security timeout"
	case TagErrInsufficientPower:
		return "insufficient power"
	case TagErrNonSpecific:
		return "non-specific error"
	default:
		return fmt.Sprintf("tag error %#04b", byte(e))
	}
}

func (e TagError) Error() string {
	return "tag error: " + e.String()
}

// LockPayload accumulates the 20-bit Gen2 lock command: mask bits 19..10
// select which regions are affected, action bits 9..0 carry the two-bit
// mode per region.
type LockPayload struct {
	bits uint32
}

// NewLockPayload returns a payload locking a single region.
func NewLockPayload(bank LockBank, mode LockMode) (LockPayload, error) {
	var p LockPayload
	if err := p.Set(bank, mode); err != nil {
		return LockPayload{}, err
	}
	return p, nil
}

// Set adds or replaces the lock state for one region. Regions not set
// are masked out and left untouched on the tag.
func (p *LockPayload) Set(bank LockBank, mode LockMode) error {
	if bank > LockUser {
		return fmt.Errorf("%w: lock bank %d", ErrInvalidParams, bank)
	}
	if mode > PermLocked {
		return fmt.Errorf("%w: lock mode %d", ErrInvalidParams, mode)
	}
	shift := 2 * (4 - uint(bank))
	p.bits &^= 0b11 << (10 + shift)
	p.bits &^= 0b11 << shift
	p.bits |= 0b11 << (10 + shift)
	p.bits |= uint32(mode) << shift
	return nil
}

// Bytes returns the payload as three big-endian bytes, the upper four
// bits zero.
func (p LockPayload) Bytes() []byte {
	return []byte{
		byte(p.bits >> 16),
		byte(p.bits >> 8),
		byte(p.bits),
	}
}

// SelectParams describes a Gen2 Select: which tags answer subsequent
// inventory and access commands. Mask offsets and lengths are in bits,
// not words; MaskOffset defaults to 0x20, the start of the EPC proper
// after CRC and PC words.
type SelectParams struct {
	Mask       []byte
	MaskLen    int
	MaskOffset uint32
	Bank       MemBank
	Target     byte
	Action     byte
	Truncate   bool
}

// NewSelectParams builds Select parameters matching the full mask
// against EPC memory from bit offset 0x20.
func NewSelectParams(mask []byte) SelectParams {
	return SelectParams{
		Mask:       mask,
		MaskLen:    len(mask) * 8,
		MaskOffset: 0x20,
		Bank:       BankEPC,
	}
}

// BuildSelect encodes Select parameters into the command payload:
// one SelParam byte, four offset bytes, mask length, truncate flag, then
// the mask itself rounded up to whole bytes.
func BuildSelect(p SelectParams) ([]byte, error) {
	if len(p.Mask) == 0 {
		return nil, fmt.Errorf("%w: no select mask given", ErrInvalidParams)
	}
	maskLen := p.MaskLen
	if maskLen == 0 {
		maskLen = len(p.Mask) * 8
	}
	if maskLen > 255 || maskLen > len(p.Mask)*8 {
		return nil, fmt.Errorf("%w: mask length %d bits", ErrInvalidParams, maskLen)
	}
	if p.Bank > BankUser {
		return nil, fmt.Errorf("%w: memory bank %d", ErrInvalidParams, p.Bank)
	}

	maskBytes := (maskLen + 7) / 8
	payload := make([]byte, 7+maskBytes)
	payload[0] = ((p.Target & 0b111) << 5) | ((p.Action & 0b111) << 3) | byte(p.Bank&0b11)
	binary.BigEndian.PutUint32(payload[1:5], p.MaskOffset)
	payload[5] = byte(maskLen)
	if p.Truncate {
		payload[6] = 1
	}
	copy(payload[7:], p.Mask[:maskBytes])
	return payload, nil
}

// ParseSelect decodes a Select payload back into its parameters; it is
// the inverse of BuildSelect and interprets get-select responses.
func ParseSelect(payload []byte) (SelectParams, error) {
	if len(payload) < 7 {
		return SelectParams{}, fmt.Errorf("%w: select payload %d bytes", ErrInvalidResponse, len(payload))
	}
	p := SelectParams{
		Target:     payload[0] >> 5,
		Action:     (payload[0] >> 3) & 0b111,
		Bank:       MemBank(payload[0] & 0b11),
		MaskOffset: binary.BigEndian.Uint32(payload[1:5]),
		MaskLen:    int(payload[5]),
		Truncate:   payload[6] != 0,
	}
	maskBytes := (p.MaskLen + 7) / 8
	if len(payload) < 7+maskBytes {
		return SelectParams{}, fmt.Errorf("%w: select mask truncated", ErrInvalidResponse)
	}
	p.Mask = append([]byte(nil), payload[7:7+maskBytes]...)
	return p, nil
}

// BuildRead encodes a read-data payload: access password, bank, word
// offset and word count, all big endian.
func BuildRead(accessPwd uint32, bank MemBank, offsetWords, lenWords uint16) []byte {
	payload := make([]byte, 9)
	binary.BigEndian.PutUint32(payload[0:4], accessPwd)
	payload[4] = byte(bank)
	binary.BigEndian.PutUint16(payload[5:7], offsetWords)
	binary.BigEndian.PutUint16(payload[7:9], lenWords)
	return payload
}

// BuildWrite encodes a write-data payload. Tag memory is addressed in
// 16-bit words, so data must be an even number of bytes.
func BuildWrite(accessPwd uint32, bank MemBank, offsetWords uint16, data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: write data must be a positive even number of bytes, got %d",
			ErrInvalidParams, len(data))
	}
	lenWords := uint16(len(data) / 2) //nolint:gosec // bounded by MaxPayload
	payload := make([]byte, 9+len(data))
	binary.BigEndian.PutUint32(payload[0:4], accessPwd)
	payload[4] = byte(bank)
	binary.BigEndian.PutUint16(payload[5:7], offsetWords)
	binary.BigEndian.PutUint16(payload[7:9], lenWords)
	copy(payload[9:], data)
	return payload, nil
}

// BuildLock encodes a lock payload: access password followed by the
// three lock command bytes.
func BuildLock(accessPwd uint32, lock LockPayload) []byte {
	payload := make([]byte, 7)
	binary.BigEndian.PutUint32(payload[0:4], accessPwd)
	copy(payload[4:], lock.Bytes())
	return payload
}

// BuildMultiPoll encodes the multi-poll parameters for the given round
// count.
func BuildMultiPoll(count uint16) []byte {
	return []byte{0x22, byte(count >> 8), byte(count)}
}
