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
	"bytes"
)

// Encode builds the wire representation of a command under the given
// dialect: start marker, command code, length field, parameters, checksum
// and end marker, with body escaping applied when the dialect requires it.
func Encode(d *Dialect, cmd byte, params []byte) ([]byte, error) {
	if d == nil {
		return nil, NewProtocolError("encode", "", ErrInvalidDialect, ErrorTypePermanent)
	}
	lengthValue := len(params) + d.lengthOverhead()
	if len(params) > d.MaxPayload || lengthValue > d.maxLengthValue() {
		return nil, NewProtocolError("encode", "", ErrParametersTooLong, ErrorTypePermanent)
	}

	body := make([]byte, 0, 1+d.LengthWidth+len(params)+d.ChecksumWidth())
	body = append(body, cmd)
	if d.LengthWidth == 2 {
		body = append(body, byte(lengthValue>>8), byte(lengthValue))
	} else {
		body = append(body, byte(lengthValue))
	}
	body = append(body, params...)
	body = append(body, d.ComputeChecksum(d.checksumSpan(body))...)

	if d.Escaped {
		body = escapeBody(d, body)
	}

	out := make([]byte, 0, len(body)+2)
	out = append(out, d.StartByte)
	out = append(out, body...)
	out = append(out, d.EndByte)
	return out, nil
}

// Decode validates a complete, already-delimited wire frame and returns
// its logical form. Delimiting an arbitrary byte stream is the Scanner's
// job; Decode is a pure function over one frame.
func Decode(d *Dialect, raw []byte) (Frame, error) {
	if d == nil {
		return Frame{}, NewProtocolError("decode", "", ErrInvalidDialect, ErrorTypePermanent)
	}
	if len(raw) < 2+1+d.LengthWidth+d.ChecksumWidth() {
		return Frame{}, NewProtocolError("decode", "", ErrTruncated, ErrorTypeTransient)
	}
	if raw[0] != d.StartByte || raw[len(raw)-1] != d.EndByte {
		return Frame{}, NewProtocolError("decode", "", ErrUnexpectedMarker, ErrorTypeTransient)
	}

	body := raw[1 : len(raw)-1]
	if d.Escaped {
		unescaped, ok := unescapeBody(d, body)
		if !ok {
			return Frame{}, NewProtocolError("decode", "", ErrTruncated, ErrorTypeTransient)
		}
		body = unescaped
	}
	return decodeBody(d, body)
}

// decodeBody validates an unescaped frame body (everything between the
// markers) and extracts the logical frame. Shared by Decode and the
// Scanner so the two can never disagree on validity.
func decodeBody(d *Dialect, body []byte) (Frame, error) {
	cw := d.ChecksumWidth()
	if len(body) < 1+d.LengthWidth+cw {
		return Frame{}, NewProtocolError("decode", "", ErrTruncated, ErrorTypeTransient)
	}

	cmd := body[0]
	var lengthValue int
	if d.LengthWidth == 2 {
		lengthValue = int(body[1])<<8 | int(body[2])
	} else {
		lengthValue = int(body[1])
	}
	plen := lengthValue - d.lengthOverhead()
	if plen < 0 || len(body) != 1+d.LengthWidth+plen+cw {
		return Frame{}, NewProtocolError("decode", "", ErrLengthMismatch, ErrorTypeTransient)
	}

	covered := body[:len(body)-cw]
	received := body[len(body)-cw:]
	if want := d.ComputeChecksum(d.checksumSpan(covered)); !bytes.Equal(received, want) {
		return Frame{}, NewProtocolError("decode", "", ErrBadChecksum, ErrorTypeTransient)
	}

	params := make([]byte, plen)
	copy(params, body[1+d.LengthWidth:1+d.LengthWidth+plen])
	checksum := make([]byte, cw)
	copy(checksum, received)
	return Frame{Cmd: cmd, Params: params, Checksum: checksum}, nil
}

// checksumSpan widens the covered bytes to include the start marker when
// the dialect computes its checksum from the start of the frame.
func (d *Dialect) checksumSpan(covered []byte) []byte {
	if d.Span != SpanFromStart {
		return covered
	}
	span := make([]byte, 0, len(covered)+1)
	span = append(span, d.StartByte)
	return append(span, covered...)
}

// escapeBody applies the dialect's two-byte escape sequence to every body
// byte that aliases a frame marker or the escape byte itself.
func escapeBody(d *Dialect, body []byte) []byte {
	out := make([]byte, 0, len(body))
	for _, b := range body {
		if d.mustEscape(b) {
			out = append(out, d.EscapeByte, b^d.EscapeXOR)
			continue
		}
		out = append(out, b)
	}
	return out
}

// unescapeBody reverses escapeBody. Returns false on a dangling escape
// byte at the end of the body.
func unescapeBody(d *Dialect, body []byte) ([]byte, bool) {
	out := make([]byte, 0, len(body))
	esc := false
	for _, b := range body {
		if esc {
			out = append(out, b^d.EscapeXOR)
			esc = false
			continue
		}
		if b == d.EscapeByte {
			esc = true
			continue
		}
		out = append(out, b)
	}
	if esc {
		return nil, false
	}
	return out, true
}
