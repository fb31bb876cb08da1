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
	"log/slog"
	"time"

	"github.com/edgeo-scada/remote-io/netif"
	"github.com/edgeo-scada/remote-io/registers"
)

// Option is a functional option for configuring the bridge.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	topics         Topics
	qos            byte
	retain         bool
	reconnectDelay time.Duration
	pollInterval   time.Duration
	passthrough    func(payload []byte)
	sampler        *registers.Sampler
	reachability   netif.Reachability
	queue          *Queue
}

func defaultOptions() *options {
	return &options{
		logger:         slog.Default(),
		topics:         DefaultTopics(DefaultTopicRoot),
		qos:            2,
		retain:         true,
		reconnectDelay: time.Second,
		pollInterval:   time.Second,
		reachability:   netif.InterfaceProbe{},
	}
}

// WithLogger sets the logger for the bridge.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTopics replaces the topic set.
func WithTopics(t Topics) Option {
	return func(o *options) {
		o.topics = t
	}
}

// WithQoS sets the QoS used for subscriptions and publishes.
func WithQoS(qos byte) Option {
	return func(o *options) {
		o.qos = qos
	}
}

// WithRetain sets the retained flag of snapshot publishes.
func WithRetain(retain bool) Option {
	return func(o *options) {
		o.retain = retain
	}
}

// WithReconnectDelay sets the pause after a failed connect attempt.
func WithReconnectDelay(d time.Duration) Option {
	return func(o *options) {
		o.reconnectDelay = d
	}
}

// WithPollInterval sets how often reachability is polled while the
// network is down.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithPassthrough sets the callback receiving payloads of the user topic.
func WithPassthrough(fn func(payload []byte)) Option {
	return func(o *options) {
		o.passthrough = fn
	}
}

// WithSampler makes analog-input publishes refresh the input registers
// first.
func WithSampler(s *registers.Sampler) Option {
	return func(o *options) {
		o.sampler = s
	}
}

// WithReachability sets the network reachability source.
func WithReachability(r netif.Reachability) Option {
	return func(o *options) {
		o.reachability = r
	}
}

// WithQueue sets the event queue.
func WithQueue(q *Queue) Option {
	return func(o *options) {
		o.queue = q
	}
}
