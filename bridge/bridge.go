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

// Package bridge mirrors the register store to an MQTT broker: inbound
// messages configure enable masks and calibration, and flag messages
// trigger publishes of the analog snapshots.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgeo-scada/remote-io/netif"
	"github.com/edgeo-scada/remote-io/registers"
)

// State represents the broker session state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateConnected
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Bridge runs the broker session state machine over a register store.
type Bridge struct {
	dialer  Dialer
	store   *registers.Store
	opts    *options
	queue   *Queue
	metrics *Metrics

	conn atomic.Uint64

	mu         sync.Mutex
	state      State
	userConfig []byte
}

// New creates a bridge that opens sessions with dialer.
func New(dialer Dialer, store *registers.Store, opts ...Option) *Bridge {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	queue := options.queue
	if queue == nil {
		queue = NewQueue(DefaultQueueDepth)
	}
	return &Bridge{
		dialer:  dialer,
		store:   store,
		opts:    options,
		queue:   queue,
		metrics: &Metrics{},
	}
}

// Metrics returns the bridge metrics.
func (b *Bridge) Metrics() *Metrics {
	return b.metrics
}

// Topics returns the topic set in use.
func (b *Bridge) Topics() Topics {
	return b.opts.topics
}

// State returns the current session state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	prev := b.state
	b.state = s
	b.mu.Unlock()
	if prev != s {
		b.opts.logger.Debug("bridge state",
			slog.String("from", prev.String()),
			slog.String("to", s.String()))
	}
}

// UserConfig returns the last payload received on the user topic.
func (b *Bridge) UserConfig() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.userConfig))
	copy(out, b.userConfig)
	return out
}

// Run drives the session state machine until ctx is cancelled. It waits for
// the network, connects and subscribes, then handles queued events until
// the session is lost, and starts over. Run returns nil when ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.setState(StateDisconnected)

	for {
		if err := netif.WaitUp(ctx, b.opts.reachability, b.opts.pollInterval); err != nil {
			return nil
		}

		sess, gen, lost, err := b.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.metrics.ConnectFailures.Add(1)
			b.opts.logger.Warn("broker connect failed",
				slog.String("error", err.Error()))
			b.setState(StateDisconnected)
			if !sleep(ctx, b.opts.reconnectDelay) {
				return nil
			}
			continue
		}

		err = b.serve(ctx, sess, gen, lost)
		sess.Close()
		b.setState(StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}
		b.metrics.Disconnects.Add(1)
		b.opts.logger.Warn("broker session ended", slog.String("error", err.Error()))
	}
}

// connect enters Connecting, opens a session and subscribes to every inbound
// topic. A failure at any step discards the session. The returned flag is
// set once the session is lost.
func (b *Bridge) connect(ctx context.Context) (Session, uint64, *atomic.Bool, error) {
	b.setState(StateConnecting)
	gen := b.conn.Add(1)

	lost := new(atomic.Bool)
	onLost := func(err error) {
		// at most one disconnect event per session
		if !lost.CompareAndSwap(false, true) {
			return
		}
		b.opts.logger.Warn("broker connection lost", slog.Any("error", err))
		b.post(Event{Kind: EventBrokerDisconnected, Conn: gen})
	}

	sess, err := b.dialer.Dial(ctx, onLost)
	if err != nil {
		return nil, 0, nil, err
	}

	filters := make(map[string]byte)
	for _, t := range b.opts.topics.Subscriptions() {
		filters[t] = b.opts.qos
	}
	if err := sess.Subscribe(ctx, filters, b.HandleMessage); err != nil {
		sess.Close()
		if !errors.Is(err, ErrSessionFailure) {
			err = fmt.Errorf("%w: subscribe: %v", ErrSessionFailure, err)
		}
		return nil, 0, nil, err
	}
	b.setState(StateSubscribed)
	b.metrics.Connects.Add(1)
	b.opts.logger.Info("broker session established", slog.Int("topics", len(filters)))
	return sess, gen, lost, nil
}

// serve handles events for one session. It returns when the session is lost
// or ctx is done. lost covers a disconnect event dropped on a full queue.
func (b *Bridge) serve(ctx context.Context, sess Session, gen uint64, lost *atomic.Bool) error {
	b.setState(StateConnected)
	for {
		if lost.Load() {
			return ErrSessionLost
		}
		ev, err := b.queue.Next(ctx)
		if err != nil {
			return err
		}

		switch ev.Kind {
		case EventBrokerDisconnected:
			if ev.Conn != gen {
				b.opts.logger.Debug("ignoring disconnect of previous session",
					slog.Uint64("conn", ev.Conn))
				continue
			}
			return ErrSessionLost
		case EventPublishAnalogInputs:
			if b.opts.sampler != nil {
				b.opts.sampler.SampleAnalog()
			}
			b.publish(ctx, sess, b.opts.topics.AnalogInputs, b.store.Values(registers.InputRegisters))
		case EventPublishAnalogOutputs:
			b.publish(ctx, sess, b.opts.topics.AnalogOutputs, b.store.Values(registers.HoldingRegisters))
		}
	}
}

func (b *Bridge) publish(ctx context.Context, sess Session, topic string, values [registers.Channels]float32) {
	payload := FormatValues(values)
	if err := sess.Publish(ctx, topic, b.opts.qos, b.opts.retain, []byte(payload)); err != nil {
		b.metrics.PublishErrors.Add(1)
		b.opts.logger.Warn("publish failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()))
		return
	}
	b.metrics.Publishes.Add(1)
	b.opts.logger.Debug("published",
		slog.String("topic", topic),
		slog.String("payload", payload))
}

func (b *Bridge) post(ev Event) {
	if !b.queue.Post(ev) {
		b.metrics.EventsDropped.Add(1)
		b.opts.logger.Warn("event queue full, dropping event",
			slog.String("event", ev.Kind.String()))
	}
}

// HandleMessage demultiplexes one inbound message. Malformed configuration
// payloads are dropped and the previous configuration is kept.
func (b *Bridge) HandleMessage(topic string, payload []byte) {
	t := b.opts.topics
	switch topic {
	case t.CoilMask:
		b.updateMask(registers.Coils, payload)
	case t.DiscreteMask:
		b.updateMask(registers.DiscreteInputs, payload)
	case t.HoldingMask:
		b.updateMask(registers.HoldingRegisters, payload)
	case t.InputMask:
		b.updateMask(registers.InputRegisters, payload)
	case t.InputCalibration:
		b.updateCalibration(registers.InputCalibration, payload)
	case t.OutputCalibration:
		b.updateCalibration(registers.OutputCalibration, payload)
	case t.User:
		b.mu.Lock()
		b.userConfig = append(b.userConfig[:0], payload...)
		b.mu.Unlock()
		if b.opts.passthrough != nil {
			b.opts.passthrough(payload)
		} else {
			b.opts.logger.Info("user config", slog.String("payload", string(payload)))
		}
	case t.FlagAnalogInputs:
		if isSet(payload) {
			b.post(Event{Kind: EventPublishAnalogInputs})
		}
	case t.FlagAnalogOutputs:
		if isSet(payload) {
			b.post(Event{Kind: EventPublishAnalogOutputs})
		}
	default:
		b.opts.logger.Debug("message on unknown topic", slog.String("topic", topic))
	}
}

func (b *Bridge) updateMask(g registers.Group, payload []byte) {
	m, err := registers.ParseMask(string(payload))
	if err != nil {
		b.metrics.MalformedMessages.Add(1)
		b.opts.logger.Warn("dropping mask update",
			slog.String("group", g.String()),
			slog.String("error", err.Error()))
		return
	}
	b.store.SetMask(g, m)
	b.metrics.MaskUpdates.Add(1)
	b.opts.logger.Info("mask updated",
		slog.String("group", g.String()),
		slog.String("mask", registers.FormatMask(m)))
}

func (b *Bridge) updateCalibration(t registers.Table, payload []byte) {
	ch, c, err := registers.ParseCalibration(string(payload))
	if err == nil {
		err = b.store.SetCalibration(t, ch, c)
	}
	if err != nil {
		b.metrics.MalformedMessages.Add(1)
		b.opts.logger.Warn("dropping calibration update",
			slog.String("table", t.String()),
			slog.String("error", err.Error()))
		return
	}
	b.metrics.CalibrationUpdates.Add(1)
	b.opts.logger.Info("calibration updated",
		slog.String("table", t.String()),
		slog.Int("channel", ch),
		slog.Float64("src_min", c.SrcMin),
		slog.Float64("dst_min", c.DstMin),
		slog.Float64("src_max", c.SrcMax),
		slog.Float64("dst_max", c.DstMax))
}

func isSet(payload []byte) bool {
	return strings.TrimSpace(string(payload)) == "1"
}

// FormatValues renders four channel values with one decimal place,
// comma-separated.
func FormatValues(values [registers.Channels]float32) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.1f", v)
	}
	return strings.Join(parts, ",")
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
