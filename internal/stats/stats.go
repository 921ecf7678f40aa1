// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package stats fans out a read-only copy of the scheduler's state after
// each exchange to whatever is watching (pkg/observer's websocket feed,
// the debug HTTP endpoint), without the protocol loop ever blocking on a
// slow or absent subscriber.
package stats

import (
	"sync"
	"time"

	"github.com/jontk/batsched/internal/policy"
)

// Snapshot pairs a policy.Snapshot with the simulated time it was taken
// at and the wall-clock time it was published, for subscribers that want
// to reason about staleness.
type Snapshot struct {
	SimTime     float64         `json:"sim_time"`
	ObservedAt  time.Time       `json:"observed_at"`
	Policy      policy.Snapshot `json:"policy"`
}

// Feed is a single-producer, multi-consumer broadcast of the latest
// Snapshot. Publish never blocks: each subscriber channel buffers at most
// one snapshot, and while that buffer is full further publishes are
// dropped for that subscriber, so it never accumulates a queue. Latest
// always returns the most recent snapshot.
type Feed struct {
	mu          sync.Mutex
	latest      Snapshot
	subscribers map[chan Snapshot]struct{}
}

// NewFeed returns an empty Feed.
func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan Snapshot]struct{})}
}

// Publish records snap as the latest state and offers it to every
// current subscriber, dropping it for any subscriber whose channel is
// still full rather than waiting.
func (f *Feed) Publish(simTime float64, ps policy.Snapshot) {
	snap := Snapshot{SimTime: simTime, ObservedAt: time.Now(), Policy: ps}

	f.mu.Lock()
	f.latest = snap
	for ch := range f.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
	f.mu.Unlock()
}

// Latest returns the most recently published snapshot.
func (f *Feed) Latest() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

// Subscribe registers a new channel that receives every subsequent
// Publish. The returned func unregisters it; callers must call it when
// done to avoid leaking the channel.
func (f *Feed) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	unsubscribe := func() {
		f.mu.Lock()
		delete(f.subscribers, ch)
		f.mu.Unlock()
	}
	return ch, unsubscribe
}
