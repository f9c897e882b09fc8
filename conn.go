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
	"context"
	"errors"
	"time"

	"github.com/s-2/go-rainrfid/internal/syncutil"
)

// ConnConfig contains configuration options for a connection.
type ConnConfig struct {
	// OnResync, if set, is invoked from the reader goroutine whenever the
	// scanner discards bytes. Keep it cheap; it blocks frame delivery.
	OnResync func(discarded int)
	// ResponseTimeout is the per-attempt deadline for a matching response.
	ResponseTimeout time.Duration
	// MaxAttempts is how many times the identical encoded frame is sent
	// before the transaction times out.
	MaxAttempts int
	// NotifyBuffer is the per-subscriber notification channel depth.
	// When a subscriber falls behind, events are dropped and counted
	// rather than stalling the reader.
	NotifyBuffer int
	// ReadBuffer is the size of the reader loop's scratch buffer.
	ReadBuffer int
}

// DefaultConnConfig returns the default connection configuration.
// The serial link runs at 115200 baud, so 250ms comfortably covers any
// single command/response exchange.
func DefaultConnConfig() *ConnConfig {
	return &ConnConfig{
		ResponseTimeout: 250 * time.Millisecond,
		MaxAttempts:     3,
		NotifyBuffer:    16,
		ReadBuffer:      256,
	}
}

// Stats counts connection activity. Resyncs and BytesDiscarded rising
// faster than FramesReceived indicates a degrading link.
type Stats struct {
	FramesSent           uint64
	FramesReceived       uint64
	Retries              uint64
	TimedOut             uint64
	Resyncs              uint64
	BytesDiscarded       uint64
	Notifications        uint64
	NotificationsDropped uint64
}

// expectation is the single in-flight response slot.
type expectation struct {
	ch  chan Frame // buffered, capacity 1
	cmd byte
}

// abandonment suppresses the late response of a cancelled transaction so
// it cannot be misattributed as a notification.
type abandonment struct {
	expires time.Time
	cmd     byte
}

// Conn owns the command lifecycle of one reader connection: it is the
// only writer to the transport, runs the single reader goroutine that
// feeds the Scanner, and demultiplexes incoming frames into the response
// slot or the notification subscribers.
//
// The wire protocol is half duplex for commands, so only one transaction
// is ever awaiting a response; concurrent Issue callers queue in
// submission order. The dialect is fixed for the connection's lifetime.
type Conn struct {
	transport Transport
	dialect   *Dialect
	cfg       *ConnConfig

	mu         syncutil.Mutex
	pending    *expectation
	abandoned  *abandonment
	queue      []chan struct{}
	subs       map[int]chan NotificationEvent
	stats      Stats
	nextSub    int
	txSeq      uint64
	busy       bool
	closed     bool
	closeCause error

	done       chan struct{}
	readerDone chan struct{}
}

// NewConn starts a connection over the given transport using a fixed
// dialect. The connection takes ownership of the transport and closes it
// on shutdown. Switching dialect requires a new connection.
func NewConn(t Transport, d *Dialect, cfg *ConnConfig) (*Conn, error) {
	if d == nil {
		return nil, NewProtocolError("connect", "", ErrInvalidDialect, ErrorTypePermanent)
	}
	if cfg == nil {
		cfg = DefaultConnConfig()
	}
	// Short poll interval so the reader notices shutdown promptly.
	if err := t.SetReadTimeout(20 * time.Millisecond); err != nil {
		return nil, NewProtocolError("connect", "", err, ErrorTypePermanent)
	}
	c := &Conn{
		transport:  t,
		dialect:    d,
		cfg:        cfg,
		subs:       make(map[int]chan NotificationEvent),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Dialect returns the connection's fixed dialect.
func (c *Conn) Dialect() *Dialect {
	return c.dialect
}

// Stats returns a snapshot of the connection counters.
func (c *Conn) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Issue encodes and sends a command, then suspends the caller until a
// frame with the matching command code arrives or the attempt budget is
// exhausted. Concurrent callers are served one at a time in call order.
func (c *Conn) Issue(ctx context.Context, cmd byte, params []byte) (Frame, error) {
	_, frame, err := c.IssueTransaction(ctx, cmd, params)
	return frame, err
}

// IssueTransaction is Issue with the resolved transaction record exposed
// for callers that want attempt counts or final state.
func (c *Conn) IssueTransaction(ctx context.Context, cmd byte, params []byte) (*Transaction, Frame, error) {
	tx := &Transaction{Cmd: cmd, State: TxPending}

	if err := c.acquire(ctx); err != nil {
		tx.State = TxFailed
		return tx, Frame{}, err
	}
	defer c.release()

	c.mu.Lock()
	c.txSeq++
	tx.ID = c.txSeq
	c.mu.Unlock()

	encoded, err := Encode(c.dialect, cmd, params)
	if err != nil {
		tx.State = TxFailed
		return tx, Frame{}, err
	}

	for tx.Attempts < c.cfg.MaxAttempts {
		tx.Attempts++
		frame, rerr := c.attempt(ctx, tx, encoded, cmd)
		switch {
		case rerr == nil:
			tx.State = TxSucceeded
			return tx, frame, nil
		case errors.Is(rerr, errAttemptExpired):
			c.countRetry(tx)
		default:
			tx.State = TxFailed
			return tx, Frame{}, rerr
		}
	}

	tx.State = TxTimedOut
	c.mu.Lock()
	c.stats.TimedOut++
	c.mu.Unlock()
	return tx, Frame{}, &TimeoutError{Cmd: cmd, Attempts: tx.Attempts}
}

// errAttemptExpired is the internal signal that one attempt's deadline
// passed without a matching response; the caller decides whether the
// attempt budget allows re-sending.
var errAttemptExpired = errors.New("attempt expired")

// attempt performs one send-and-wait cycle for the identical encoded frame.
func (c *Conn) attempt(ctx context.Context, tx *Transaction, encoded []byte, cmd byte) (Frame, error) {
	exp := &expectation{cmd: cmd, ch: make(chan Frame, 1)}

	c.mu.Lock()
	if c.closed {
		cause := c.closeCause
		c.mu.Unlock()
		return Frame{}, cause
	}
	c.pending = exp
	c.mu.Unlock()

	if _, err := c.transport.Write(encoded); err != nil {
		c.clearPending(exp)
		// A write failure is fatal for the connection: the stream state
		// is unknowable and every queued transaction must fail.
		werr := NewProtocolError("write", "", err, ErrorTypePermanent)
		c.shutdown(werr)
		return Frame{}, werr
	}

	tx.State = TxAwaitingResponse
	tx.Deadline = time.Now().Add(c.cfg.ResponseTimeout)
	c.mu.Lock()
	c.stats.FramesSent++
	c.mu.Unlock()
	Debugf("tx %d attempt %d: sent cmd 0x%02X", tx.ID, tx.Attempts, cmd)

	timer := time.NewTimer(c.cfg.ResponseTimeout)
	defer timer.Stop()

	select {
	case frame := <-exp.ch:
		return frame, nil

	case <-timer.C:
		c.clearPending(exp)
		// The dispatcher may have claimed the expectation just before we
		// cleared it; the response is then already in the channel.
		select {
		case frame := <-exp.ch:
			return frame, nil
		default:
		}
		return Frame{}, errAttemptExpired

	case <-ctx.Done():
		c.abandon(exp)
		return Frame{}, ctx.Err()

	case <-c.done:
		c.clearPending(exp)
		c.mu.Lock()
		cause := c.closeCause
		c.mu.Unlock()
		return Frame{}, cause
	}
}

func (c *Conn) countRetry(tx *Transaction) {
	if tx.Attempts >= c.cfg.MaxAttempts {
		return
	}
	c.mu.Lock()
	c.stats.Retries++
	c.mu.Unlock()
	Debugf("tx %d: no response for cmd 0x%02X, re-sending", tx.ID, tx.Cmd)
}

// clearPending removes the expectation if it is still installed.
func (c *Conn) clearPending(exp *expectation) {
	c.mu.Lock()
	if c.pending == exp {
		c.pending = nil
	}
	c.mu.Unlock()
}

// abandon removes the expectation and arranges for its eventual response,
// should one still arrive, to be discarded instead of surfacing as a
// notification.
func (c *Conn) abandon(exp *expectation) {
	c.mu.Lock()
	if c.pending == exp {
		c.pending = nil
		c.abandoned = &abandonment{
			cmd:     exp.cmd,
			expires: time.Now().Add(c.cfg.ResponseTimeout),
		}
	}
	c.mu.Unlock()
}

// acquire claims the connection's single command slot, queueing in strict
// call order behind earlier claimants.
func (c *Conn) acquire(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		cause := c.closeCause
		c.mu.Unlock()
		return cause
	}
	if !c.busy {
		c.busy = true
		c.mu.Unlock()
		return nil
	}
	turn := make(chan struct{})
	c.queue = append(c.queue, turn)
	c.mu.Unlock()

	select {
	case <-turn:
		return nil
	case <-ctx.Done():
		if c.dequeue(turn) {
			return ctx.Err()
		}
		// The slot was handed to us in the same instant; pass it on so
		// the cancellation leaves no write side effects.
		c.release()
		return ctx.Err()
	case <-c.done:
		c.dequeue(turn)
		c.mu.Lock()
		cause := c.closeCause
		c.mu.Unlock()
		return cause
	}
}

// dequeue removes a waiting turn, returning false when the turn had
// already been granted.
func (c *Conn) dequeue(turn chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.queue {
		if t == turn {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return true
		}
	}
	return false
}

// release hands the command slot to the oldest queued waiter, or frees it.
func (c *Conn) release() {
	c.mu.Lock()
	if len(c.queue) > 0 {
		turn := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()
		close(turn)
		return
	}
	c.busy = false
	c.mu.Unlock()
}

// Subscribe registers a notification subscriber. Events arrive in wire
// order; the channel is closed when the connection shuts down. The
// returned cancel function is idempotent.
func (c *Conn) Subscribe() (<-chan NotificationEvent, func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ch := make(chan NotificationEvent)
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	ch := make(chan NotificationEvent, c.cfg.NotifyBuffer)
	c.subs[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// Close shuts the connection down: the transport is closed and every
// pending and queued transaction fails with ErrConnectionClosed.
func (c *Conn) Close() error {
	c.shutdown(nil)
	return nil
}

// shutdown closes the connection once; cause, when non-nil, is the fatal
// transport error that forced it.
func (c *Conn) shutdown(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if cause != nil {
		c.closeCause = NewProtocolError("conn", "", errors.Join(ErrConnectionClosed, cause), ErrorTypePermanent)
	} else {
		c.closeCause = NewProtocolError("conn", "", ErrConnectionClosed, ErrorTypePermanent)
	}
	subs := c.subs
	c.subs = make(map[int]chan NotificationEvent)
	close(c.done)
	c.mu.Unlock()

	_ = c.transport.Close()
	for _, ch := range subs {
		close(ch)
	}
}

// readLoop is the single consumer of the transport: it feeds raw bytes to
// the scanner and dispatches every emitted frame, preserving arrival
// order for responses and notifications alike.
func (c *Conn) readLoop() {
	defer close(c.readerDone)
	scanner := NewScanner(c.dialect)
	buf := make([]byte, c.cfg.ReadBuffer)

	for {
		select {
		case <-c.done:
			return
		default:
		}

		n, err := c.transport.Read(buf)
		if err != nil {
			c.shutdown(NewProtocolError("read", "", err, ErrorTypePermanent))
			return
		}
		if n == 0 {
			continue
		}

		for _, ev := range scanner.Feed(buf[:n]) {
			switch ev.Kind {
			case EventFrame:
				c.dispatch(ev.Frame)
			case EventResync:
				c.mu.Lock()
				c.stats.Resyncs++
				c.stats.BytesDiscarded += uint64(ev.Discarded)
				c.mu.Unlock()
				Debugf("resync: discarded %d bytes", ev.Discarded)
				if c.cfg.OnResync != nil {
					c.cfg.OnResync(ev.Discarded)
				}
			}
		}
	}
}

// dispatch offers a frame to the pending expectation first; anything that
// does not match by command code is broadcast to the subscribers. This is
// the demultiplexing rule that keeps responses and notifications apart on
// the shared channel.
func (c *Conn) dispatch(frame Frame) {
	c.mu.Lock()
	c.stats.FramesReceived++

	if exp := c.pending; exp != nil && exp.cmd == frame.Cmd {
		c.pending = nil
		c.mu.Unlock()
		exp.ch <- frame
		return
	}

	if a := c.abandoned; a != nil && a.cmd == frame.Cmd && time.Now().Before(a.expires) {
		c.abandoned = nil
		c.mu.Unlock()
		Debugf("discarding late response for abandoned cmd 0x%02X", frame.Cmd)
		return
	}

	c.stats.Notifications++
	ev := NotificationEvent{Frame: frame, Received: time.Now()}
	for _, sub := range c.subs {
		select {
		case sub <- ev:
		default:
			c.stats.NotificationsDropped++
		}
	}
	c.mu.Unlock()
}
