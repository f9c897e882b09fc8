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

// Package inventory runs continuous tag inventory over a reader,
// deduplicating the raw report stream into tag arrival and departure
// events.
package inventory

import (
	"context"
	"errors"
	"sync"
	"time"

	rainrfid "github.com/s-2/go-rainrfid"
)

// Config configures an inventory session.
type Config struct {
	// OnTag fires once per tag arrival; repeat reports of a present tag
	// only refresh its last-seen time.
	OnTag func(report *rainrfid.TagReport)
	// OnTagLost fires when a present tag has not been reported for
	// LostAfter.
	OnTagLost func(epc string)
	// OnError receives session errors; the session keeps running.
	OnError func(err error)
	// Rounds is the round count per multi-poll command.
	Rounds uint16
	// LostAfter is how long a tag may go unreported before it counts as
	// departed.
	LostAfter time.Duration
	// KeepAlive is how often the multi-poll command is re-issued so
	// inventory outlives the round budget.
	KeepAlive time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Rounds:    10000,
		LostAfter: 2 * time.Second,
		KeepAlive: 5 * time.Second,
	}
}

// Session is one continuous inventory run. Create with New, then Start;
// a stopped session cannot be restarted.
type Session struct {
	device *rainrfid.Device
	cfg    Config

	mu      sync.Mutex
	seen    map[string]time.Time
	started bool
	stopped bool

	done   chan struct{}
	wg     sync.WaitGroup
	cancel func()
}

// New returns an inventory session over the device.
func New(device *rainrfid.Device, cfg Config) *Session {
	if cfg.Rounds == 0 {
		cfg.Rounds = DefaultConfig().Rounds
	}
	if cfg.LostAfter <= 0 {
		cfg.LostAfter = DefaultConfig().LostAfter
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultConfig().KeepAlive
	}
	return &Session{
		device: device,
		cfg:    cfg,
		seen:   make(map[string]time.Time),
		done:   make(chan struct{}),
	}
}

// Start begins inventory. Tag reports flow to the configured callbacks
// from a dedicated goroutine until Stop is called or the connection
// fails.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return errors.New("inventory session already used")
	}
	s.started = true
	s.mu.Unlock()

	notes, cancel := s.device.Subscribe()
	s.cancel = cancel

	// The first report answers the command itself; an empty field
	// reports no tag but the reader polls on regardless.
	first, err := s.device.StartMultiPoll(ctx, s.cfg.Rounds)
	switch {
	case err == nil:
		s.handleReport(first)
	case errors.Is(err, rainrfid.ErrNoTagDetected):
	case isTimeout(err):
	default:
		cancel()
		return err
	}

	s.wg.Add(1)
	go s.run(ctx, notes)
	return nil
}

// Stop ends the session: the reader's multi-poll is stopped and the
// callback goroutine drained. Safe to call more than once.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	if s.cancel != nil {
		s.cancel()
	}
	return s.device.StopMultiPoll(ctx)
}

// Present returns the EPCs currently considered in the field.
func (s *Session) Present() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	epcs := make([]string, 0, len(s.seen))
	for epc := range s.seen {
		epcs = append(epcs, epc)
	}
	return epcs
}

func (s *Session) run(ctx context.Context, notes <-chan rainrfid.NotificationEvent) {
	defer s.wg.Done()

	prune := time.NewTicker(s.cfg.LostAfter / 2)
	defer prune.Stop()
	keepAlive := time.NewTicker(s.cfg.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return

		case ev, ok := <-notes:
			if !ok {
				s.reportError(rainrfid.ErrConnectionClosed)
				return
			}
			s.handleEvent(ev)

		case <-prune.C:
			s.pruneLost()

		case <-keepAlive.C:
			_, err := s.device.StartMultiPoll(ctx, s.cfg.Rounds)
			if err == nil {
				continue
			}
			if errors.Is(err, rainrfid.ErrNoTagDetected) || isTimeout(err) {
				continue
			}
			s.reportError(err)
			if errors.Is(err, rainrfid.ErrConnectionClosed) {
				return
			}
		}
	}
}

func (s *Session) handleEvent(ev rainrfid.NotificationEvent) {
	switch ev.Frame.Cmd {
	case rainrfid.CmdMultiPoll, rainrfid.CmdSinglePoll:
		report, err := rainrfid.ParseTagReport(ev.Frame.Params)
		if err != nil {
			s.reportError(err)
			return
		}
		s.handleReport(report)
	case rainrfid.CmdErrorReport:
		// Empty-field reports are routine during continuous inventory.
	}
}

func (s *Session) handleReport(report *rainrfid.TagReport) {
	epc := report.EPCString()

	s.mu.Lock()
	_, present := s.seen[epc]
	s.seen[epc] = time.Now()
	s.mu.Unlock()

	if !present && s.cfg.OnTag != nil {
		s.cfg.OnTag(report)
	}
}

func (s *Session) pruneLost() {
	cutoff := time.Now().Add(-s.cfg.LostAfter)

	s.mu.Lock()
	var lost []string
	for epc, last := range s.seen {
		if last.Before(cutoff) {
			delete(s.seen, epc)
			lost = append(lost, epc)
		}
	}
	s.mu.Unlock()

	if s.cfg.OnTagLost != nil {
		for _, epc := range lost {
			s.cfg.OnTagLost(epc)
		}
	}
}

func (s *Session) reportError(err error) {
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}

func isTimeout(err error) bool {
	var timeout *rainrfid.TimeoutError
	return errors.As(err, &timeout)
}
