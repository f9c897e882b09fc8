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

import "time"

// TxState is the lifecycle state of one issued command.
type TxState int

const (
	// TxPending means the transaction holds or is waiting for the
	// connection's write slot and has not been sent yet.
	TxPending TxState = iota
	// TxAwaitingResponse means the encoded frame has been written and the
	// response deadline is running.
	TxAwaitingResponse
	// TxSucceeded means a response with the matching command code arrived.
	TxSucceeded
	// TxTimedOut means every attempt expired without a matching response.
	TxTimedOut
	// TxFailed means the transaction ended for a non-timeout reason:
	// write failure, connection shutdown or caller cancellation.
	TxFailed
)

// String returns the state name for diagnostics.
func (s TxState) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxAwaitingResponse:
		return "awaiting-response"
	case TxSucceeded:
		return "succeeded"
	case TxTimedOut:
		return "timed-out"
	case TxFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transaction records the lifecycle of one issued command. It is owned by
// the connection that created it and is never reused; once resolved it
// only serves introspection (attempt count, final state, deadline of the
// last attempt).
type Transaction struct {
	Deadline time.Time
	ID       uint64
	Attempts int
	State    TxState
	Cmd      byte
}
