// Copyright 2025 Edgeo SCADA
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

package bridge

import (
	"context"
	"fmt"
)

// DefaultQueueDepth is the capacity of the event queue.
const DefaultQueueDepth = 10

// EventKind identifies a bridge event.
type EventKind int

const (
	// EventBrokerDisconnected reports that a broker session was lost.
	EventBrokerDisconnected EventKind = iota
	// EventPublishAnalogInputs requests a publish of the analog-input snapshot.
	EventPublishAnalogInputs
	// EventPublishAnalogOutputs requests a publish of the analog-output snapshot.
	EventPublishAnalogOutputs
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventBrokerDisconnected:
		return "BrokerDisconnected"
	case EventPublishAnalogInputs:
		return "PublishAnalogInputs"
	case EventPublishAnalogOutputs:
		return "PublishAnalogOutputs"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one notification for the bridge loop. Conn identifies the broker
// session a disconnect belongs to.
type Event struct {
	Kind EventKind
	Conn uint64
}

// Queue is a bounded FIFO of events with many producers and one consumer.
// Posting never blocks; an event posted to a full queue is dropped.
type Queue struct {
	ch chan Event
}

// NewQueue creates a queue holding up to depth events.
func NewQueue(depth int) *Queue {
	if depth < 1 {
		depth = DefaultQueueDepth
	}
	return &Queue{ch: make(chan Event, depth)}
}

// Post enqueues ev and reports whether it was accepted.
func (q *Queue) Post(ev Event) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

// Next blocks until an event is available or ctx is done.
func (q *Queue) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-q.ch:
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue depth.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
