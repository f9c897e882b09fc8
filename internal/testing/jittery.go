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

package testing

import (
	"math/rand/v2"
	"time"

	rainrfid "github.com/s-2/go-rainrfid"
)

// JitterConfig configures the behavior of JitteryTransport.
type JitterConfig struct {
	MaxLatencyMs     int
	FragmentMinBytes int
	Seed             uint64
	FragmentReads    bool
}

// DefaultJitterConfig returns a sensible default configuration for testing.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		MaxLatencyMs:     5,
		FragmentReads:    true,
		FragmentMinBytes: 1,
	}
}

// JitteryTransport wraps a Transport to simulate USB-UART bridge
// behavior: unpredictable latency and fragmented delivery. Useful for
// exercising resynchronization and timeout handling under realistic
// timing.
type JitteryTransport struct {
	backend rainrfid.Transport
	rng     *rand.Rand
	config  JitterConfig
	pending []byte
}

// NewJitteryTransport wraps a backend transport with jitter simulation.
func NewJitteryTransport(backend rainrfid.Transport, config JitterConfig) *JitteryTransport {
	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewPCG(config.Seed, config.Seed^0xDEADBEEF)) //nolint:gosec // Test code, not crypto
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Test code, not crypto
	}
	if config.FragmentMinBytes < 1 {
		config.FragmentMinBytes = 1
	}
	return &JitteryTransport{
		backend: backend,
		config:  config,
		rng:     rng,
	}
}

// Write passes writes through unmodified. Jitter only affects reads to
// simulate realistic UART behavior.
func (j *JitteryTransport) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // Pass-through wrapper
}

// Read reads from the backend with simulated latency and fragmentation.
func (j *JitteryTransport) Read(buf []byte) (int, error) {
	if j.config.MaxLatencyMs > 0 {
		delay := time.Duration(j.rng.IntN(j.config.MaxLatencyMs+1)) * time.Millisecond
		if delay > 0 {
			time.Sleep(delay)
		}
	}

	if len(j.pending) > 0 {
		return j.deliver(buf, j.pending), nil
	}

	n, err := j.backend.Read(buf)
	if err != nil || n == 0 {
		return n, err //nolint:wrapcheck // Pass-through wrapper
	}

	if !j.config.FragmentReads || n <= j.config.FragmentMinBytes {
		return n, nil
	}

	// Hold back a random tail for later reads.
	cut := j.config.FragmentMinBytes + j.rng.IntN(n-j.config.FragmentMinBytes+1)
	if cut < n {
		j.pending = append(j.pending, buf[cut:n]...)
		n = cut
	}
	return n, nil
}

func (j *JitteryTransport) deliver(buf, src []byte) int {
	n := len(src)
	if j.config.FragmentReads && n > j.config.FragmentMinBytes {
		n = j.config.FragmentMinBytes + j.rng.IntN(n-j.config.FragmentMinBytes+1)
	}
	n = copy(buf, src[:n])
	j.pending = j.pending[n:]
	if len(j.pending) == 0 {
		j.pending = nil
	}
	return n
}

// SetReadTimeout passes through to the backend.
func (j *JitteryTransport) SetReadTimeout(timeout time.Duration) error {
	return j.backend.SetReadTimeout(timeout) //nolint:wrapcheck // Pass-through wrapper
}

// Close passes through to the backend.
func (j *JitteryTransport) Close() error {
	return j.backend.Close() //nolint:wrapcheck // Pass-through wrapper
}

// IsConnected passes through to the backend.
func (j *JitteryTransport) IsConnected() bool {
	return j.backend.IsConnected()
}

// Type passes through to the backend.
func (j *JitteryTransport) Type() rainrfid.TransportType {
	return j.backend.Type()
}

var _ rainrfid.Transport = (*JitteryTransport)(nil)
