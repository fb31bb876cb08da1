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

// Package exporter publishes gateway metrics and a live register snapshot
// in the Prometheus exposition format.
package exporter

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	modbus "github.com/edgeo-scada/remote-io"
	"github.com/edgeo-scada/remote-io/bridge"
	"github.com/edgeo-scada/remote-io/registers"
)

const namespace = "remoteio"

// Collector reads the listener metrics, the bridge metrics and the register
// store on every scrape. Any source may be nil.
type Collector struct {
	server *modbus.ServerMetrics
	bridge *bridge.Metrics
	store  *registers.Store

	requests    *prometheus.Desc
	exceptions  *prometheus.Desc
	ignored     *prometheus.Desc
	connections *prometheus.Desc
	active      *prometheus.Desc
	rebuilds    *prometheus.Desc
	perFunction *prometheus.Desc
	latency     *prometheus.Desc

	bridgeCounters []bridgeCounter

	value   *prometheus.Desc
	state   *prometheus.Desc
	enabled *prometheus.Desc
}

type bridgeCounter struct {
	desc *prometheus.Desc
	get  func(*bridge.Metrics) int64
}

func newDesc(subsystem, name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
}

// NewCollector creates a collector over the given sources.
func NewCollector(server *modbus.ServerMetrics, b *bridge.Metrics, store *registers.Store) *Collector {
	return &Collector{
		server: server,
		bridge: b,
		store:  store,

		requests:    newDesc("modbus", "requests_total", "Modbus requests received."),
		exceptions:  newDesc("modbus", "exceptions_total", "Modbus requests answered with an exception."),
		ignored:     newDesc("modbus", "ignored_requests_total", "Modbus requests with an unsupported function code."),
		connections: newDesc("modbus", "connections_total", "Modbus client connections accepted."),
		active:      newDesc("modbus", "active_connections", "Modbus client connections currently open."),
		rebuilds:    newDesc("modbus", "listener_rebuilds_total", "Times the Modbus listener was torn down and rebuilt."),
		perFunction: newDesc("modbus", "function_requests_total", "Modbus requests by function code.", "function"),
		latency:     newDesc("modbus", "request_latency_milliseconds", "Modbus request handling latency."),

		bridgeCounters: []bridgeCounter{
			{newDesc("bridge", "connects_total", "Broker sessions established."),
				func(m *bridge.Metrics) int64 { return m.Connects.Value() }},
			{newDesc("bridge", "connect_failures_total", "Failed broker connect attempts."),
				func(m *bridge.Metrics) int64 { return m.ConnectFailures.Value() }},
			{newDesc("bridge", "disconnects_total", "Broker sessions lost."),
				func(m *bridge.Metrics) int64 { return m.Disconnects.Value() }},
			{newDesc("bridge", "publishes_total", "Snapshots published."),
				func(m *bridge.Metrics) int64 { return m.Publishes.Value() }},
			{newDesc("bridge", "publish_errors_total", "Snapshot publishes that failed."),
				func(m *bridge.Metrics) int64 { return m.PublishErrors.Value() }},
			{newDesc("bridge", "events_dropped_total", "Events dropped on a full queue."),
				func(m *bridge.Metrics) int64 { return m.EventsDropped.Value() }},
			{newDesc("bridge", "malformed_messages_total", "Configuration messages dropped as malformed."),
				func(m *bridge.Metrics) int64 { return m.MalformedMessages.Value() }},
		},

		value:   newDesc("channel", "value", "Analog channel value.", "group", "channel"),
		state:   newDesc("channel", "state", "Digital channel state.", "group", "channel"),
		enabled: newDesc("channel", "enabled", "Channel enable mask.", "group", "channel"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.requests, c.exceptions, c.ignored, c.connections, c.active,
		c.rebuilds, c.perFunction, c.latency, c.value, c.state, c.enabled,
	} {
		ch <- d
	}
	for _, bc := range c.bridgeCounters {
		ch <- bc.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if m := c.server; m != nil {
		counter := func(d *prometheus.Desc, v int64, labels ...string) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
		}
		counter(c.requests, m.RequestsTotal.Value())
		counter(c.exceptions, m.RequestsErrors.Value())
		counter(c.ignored, m.RequestsIgnored.Value())
		counter(c.connections, m.TotalConns.Value())
		counter(c.rebuilds, m.Rebuilds.Value())
		ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(m.ActiveConns.Value()))
		buckets, count, sum := m.Latency.Buckets()
		ch <- prometheus.MustNewConstHistogram(c.latency, count, sum, buckets)
		m.Functions(func(fc modbus.FunctionCode, fm *modbus.FunctionMetrics) {
			counter(c.perFunction, fm.Requests.Value(), fc.String())
		})
	}

	if m := c.bridge; m != nil {
		for _, bc := range c.bridgeCounters {
			ch <- prometheus.MustNewConstMetric(bc.desc, prometheus.CounterValue, float64(bc.get(m)))
		}
	}

	if c.store != nil {
		c.collectStore(ch)
	}
}

func (c *Collector) collectStore(ch chan<- prometheus.Metric) {
	var (
		masks  [len(registers.Groups)][registers.Channels]bool
		values = map[registers.Group][registers.Channels]float32{}
		bits   = map[registers.Group][registers.Channels]bool{}
	)
	c.store.Do(func(b *registers.Bank) error {
		for i, g := range registers.Groups {
			masks[i] = b.Mask(g)
			if g.IsBits() {
				var s [registers.Channels]bool
				for n := range s {
					s[n] = b.Bit(g, n)
				}
				bits[g] = s
			} else {
				values[g] = b.Values(g)
			}
		}
		return nil
	})

	for i, g := range registers.Groups {
		for n := 0; n < registers.Channels; n++ {
			channel := strconv.Itoa(n)
			ch <- prometheus.MustNewConstMetric(c.enabled, prometheus.GaugeValue, boolFloat(masks[i][n]), g.String(), channel)
			if g.IsBits() {
				ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, boolFloat(bits[g][n]), g.String(), channel)
			} else {
				ch <- prometheus.MustNewConstMetric(c.value, prometheus.GaugeValue, float64(values[g][n]), g.String(), channel)
			}
		}
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// NewRegistry returns a registry holding c and the Go runtime collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}

// Handler serves reg at /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
