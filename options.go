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

package modbus

import (
	"log/slog"
	"time"
)

// ServerOption is a functional option for configuring the server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	logger       *slog.Logger
	acceptPoll   time.Duration
	rebuildDelay time.Duration
	readTimeout  time.Duration
	metrics      *ServerMetrics
}

func defaultServerOptions() *serverOptions {
	return &serverOptions{
		logger:       slog.Default(),
		acceptPoll:   DefaultAcceptPoll,
		rebuildDelay: DefaultRebuildDelay,
	}
}

// WithServerLogger sets the logger for the server.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

// WithAcceptPoll sets how long one accept attempt blocks before the
// listener checks for shutdown.
func WithAcceptPoll(d time.Duration) ServerOption {
	return func(o *serverOptions) {
		if d > 0 {
			o.acceptPoll = d
		}
	}
}

// WithRebuildDelay sets the pause between a transport failure and binding
// a fresh listener.
func WithRebuildDelay(d time.Duration) ServerOption {
	return func(o *serverOptions) {
		o.rebuildDelay = d
	}
}

// WithReadTimeout sets the read timeout for the client connection. Zero
// blocks until the client sends or disconnects.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(o *serverOptions) {
		o.readTimeout = d
	}
}

// WithServerMetrics makes the server record into m instead of its own
// metrics.
func WithServerMetrics(m *ServerMetrics) ServerOption {
	return func(o *serverOptions) {
		o.metrics = m
	}
}
