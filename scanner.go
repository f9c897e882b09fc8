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

// scanState tracks the Scanner's position within the frame envelope.
type scanState int

const (
	stateSeekStart scanState = iota
	stateCommand
	stateLength
	statePayload
	stateTrailer
)

// Scanner is an incremental frame recognizer for one dialect. It consumes
// an arbitrary byte stream, possibly split across many Feed calls, and
// emits validated frames. After corruption (bad marker, bad checksum, or
// a length field over the dialect's payload bound) it discards bytes up
// to the next start marker and reports the discarded count, so callers
// can detect a degrading link.
//
// A Scanner never blocks: Feed only consumes what it is given and returns.
// It is not safe for concurrent use; a connection drives its Scanner from
// a single reader goroutine.
type Scanner struct {
	d *Dialect
	// body holds the unescaped bytes of the frame in progress:
	// command, length field, parameters, checksum, end marker.
	body     []byte
	state    scanState
	plen     int
	consumed int // raw bytes consumed since the current start marker
	skipped  int // raw bytes skipped while seeking a start marker
	esc      bool
}

// NewScanner creates a Scanner for the given dialect.
func NewScanner(d *Dialect) *Scanner {
	return &Scanner{d: d}
}

// Reset discards any partial frame and returns the Scanner to seeking a
// start marker. Pending skipped-byte counts are dropped, not reported.
func (s *Scanner) Reset() {
	s.state = stateSeekStart
	s.body = s.body[:0]
	s.plen = 0
	s.consumed = 0
	s.skipped = 0
	s.esc = false
}

// Feed consumes one buffer of newly arrived bytes and returns the frame
// and resync events they complete. Feeding a frame split across any
// partition of chunks yields the same events as feeding it whole.
func (s *Scanner) Feed(p []byte) []FrameEvent {
	var events []FrameEvent
	for _, b := range p {
		if s.state == stateSeekStart {
			if b != s.d.StartByte {
				s.skipped++
				continue
			}
			if s.skipped > 0 {
				events = append(events, FrameEvent{Kind: EventResync, Discarded: s.skipped})
				s.skipped = 0
			}
			s.state = stateCommand
			s.body = s.body[:0]
			s.consumed = 1
			s.esc = false
			continue
		}

		s.consumed++
		if s.d.Escaped {
			if s.esc {
				b ^= s.d.EscapeXOR
				s.esc = false
			} else if b == s.d.EscapeByte {
				s.esc = true
				continue
			}
		}

		switch s.state {
		case stateCommand:
			s.body = append(s.body, b)
			s.state = stateLength

		case stateLength:
			s.body = append(s.body, b)
			if len(s.body) < 1+s.d.LengthWidth {
				continue
			}
			var lengthValue int
			if s.d.LengthWidth == 2 {
				lengthValue = int(s.body[1])<<8 | int(s.body[2])
			} else {
				lengthValue = int(s.body[1])
			}
			s.plen = lengthValue - s.d.lengthOverhead()
			if s.plen < 0 || s.plen > s.d.MaxPayload {
				// Corrupted length field. Abandon before buffering.
				events = append(events, s.resync())
				continue
			}
			if s.plen == 0 {
				s.state = stateTrailer
			} else {
				s.state = statePayload
			}

		case statePayload:
			s.body = append(s.body, b)
			if len(s.body) == 1+s.d.LengthWidth+s.plen {
				s.state = stateTrailer
			}

		case stateTrailer:
			s.body = append(s.body, b)
			if len(s.body) < 1+s.d.LengthWidth+s.plen+s.d.ChecksumWidth()+1 {
				continue
			}
			events = append(events, s.complete())

		case stateSeekStart:
			// Handled above; listed to keep the switch exhaustive.
		}
	}
	return events
}

// complete validates the buffered frame and produces its event, returning
// the scanner to marker seeking either way.
func (s *Scanner) complete() FrameEvent {
	end := s.body[len(s.body)-1]
	if end != s.d.EndByte {
		return s.resync()
	}
	frame, err := decodeBody(s.d, s.body[:len(s.body)-1])
	if err != nil {
		return s.resync()
	}
	ev := FrameEvent{Kind: EventFrame, Frame: frame}
	s.state = stateSeekStart
	s.body = s.body[:0]
	s.consumed = 0
	return ev
}

// resync abandons the frame in progress. The discarded count covers every
// raw byte consumed since (and including) the start marker; the discarded
// window is not re-scanned for embedded start markers.
func (s *Scanner) resync() FrameEvent {
	ev := FrameEvent{Kind: EventResync, Discarded: s.consumed}
	s.state = stateSeekStart
	s.body = s.body[:0]
	s.plen = 0
	s.consumed = 0
	s.esc = false
	return ev
}
