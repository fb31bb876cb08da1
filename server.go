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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Server is a single-connection Modbus TCP server.
//
// It binds, accepts one client and serves it until the connection fails or
// the peer leaves. It then closes both sockets, waits for the rebuild
// delay and binds again. Other clients wait in the kernel backlog until the
// current one is gone.
type Server struct {
	dispatcher *Dispatcher
	opts       *serverOptions

	mu       sync.Mutex
	listener *net.TCPListener
	conn     net.Conn
	state    ListenerState
	closed   int32
	done     chan struct{}
	metrics  *ServerMetrics
}

// NewServer creates a new Modbus TCP server answering through d.
func NewServer(d *Dispatcher, opts ...ServerOption) *Server {
	options := defaultServerOptions()
	for _, opt := range opts {
		opt(options)
	}

	metrics := options.metrics
	if metrics == nil {
		metrics = NewServerMetrics()
	}

	return &Server{
		dispatcher: d,
		opts:       options,
		done:       make(chan struct{}),
		metrics:    metrics,
	}
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *ServerMetrics {
	return s.metrics
}

// State returns the current listener state.
func (s *Server) State() ListenerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) setState(state ListenerState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Serve binds addr and serves clients one at a time until ctx is cancelled
// or Close is called, rebuilding the listener after every failure. It
// always returns ErrServerClosed.
//
// When addr requests an ephemeral port, the port bound first is reused for
// every rebuild.
func (s *Server) Serve(ctx context.Context, addr string) error {
	if s.stopped() {
		return ErrServerClosed
	}
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()
	defer s.setState(StateStopped)

	for {
		err := s.serveOnce(&addr)
		if s.stopped() {
			return ErrServerClosed
		}

		if errors.Is(err, ErrConnectionClosed) {
			s.opts.logger.Info("client disconnected, rebuilding listener")
		} else {
			s.opts.logger.Warn("listener failed, rebuilding",
				slog.String("addr", addr),
				slog.String("error", err.Error()))
		}
		s.metrics.Rebuilds.Add(1)
		s.setState(StateRebuilding)

		select {
		case <-s.done:
			return ErrServerClosed
		case <-time.After(s.opts.rebuildDelay):
		}
	}
}

// serveOnce runs one bind/accept/serve cycle. It always returns a non-nil
// error describing why the cycle ended.
func (s *Server) serveOnce(addr *string) error {
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return fmt.Errorf("listen: unexpected listener type %T", ln)
	}
	*addr = ln.Addr().String()

	s.mu.Lock()
	if atomic.LoadInt32(&s.closed) == 1 {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = tcpLn
	s.state = StateListening
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.listener = nil
		s.mu.Unlock()
		ln.Close()
	}()

	s.opts.logger.Info("listening", slog.String("addr", *addr))

	conn, err := s.accept(tcpLn)
	if err != nil {
		return err
	}
	return s.handleConn(conn)
}

func (s *Server) accept(ln *net.TCPListener) (net.Conn, error) {
	for {
		if s.stopped() {
			return nil, ErrServerClosed
		}
		ln.SetDeadline(timeNow().Add(s.opts.acceptPoll))
		conn, err := ln.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return nil, fmt.Errorf("accept: %w", err)
		}
		return conn, nil
	}
}

// Close shuts the server down and unblocks Serve.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	close(s.done)

	s.mu.Lock()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()

	s.opts.logger.Info("server stopped")
	return err
}

func (s *Server) stopped() bool {
	return atomic.LoadInt32(&s.closed) == 1
}

// Addr returns the address of the live listener, or nil between rebuilds.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

func (s *Server) handleConn(conn net.Conn) (err error) {
	remote := conn.RemoteAddr().String()

	s.mu.Lock()
	s.conn = conn
	s.state = StateServing
	s.mu.Unlock()
	s.metrics.ActiveConns.Add(1)
	s.metrics.TotalConns.Add(1)

	defer func() {
		// Recover from panic to prevent server crash
		if r := recover(); r != nil {
			s.opts.logger.Error("panic in connection handler",
				slog.String("remote", remote),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic in connection handler: %v", r)
		}

		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		s.metrics.ActiveConns.Add(-1)
	}()

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
	}

	s.opts.logger.Info("client connected", slog.String("remote", remote))

	for {
		if s.opts.readTimeout > 0 {
			conn.SetReadDeadline(timeNow().Add(s.opts.readTimeout))
		}

		frame, err := ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrConnectionClosed
			}
			return fmt.Errorf("read from %s: %w", remote, err)
		}

		start := timeNow()
		fc := frame.FunctionCode()
		s.metrics.RequestsTotal.Add(1)

		resp := s.dispatcher.Process(frame)
		if resp == nil {
			s.metrics.RequestsIgnored.Add(1)
			continue
		}

		fm := s.metrics.ForFunction(fc)
		fm.Requests.Add(1)
		exc := ParseExceptionResponse(resp.PDU)
		if exc != nil {
			s.metrics.RequestsErrors.Add(1)
			fm.Errors.Add(1)
			s.opts.logger.Debug("sending exception",
				slog.String("remote", remote),
				slog.String("error", exc.Error()))
		}

		if s.opts.readTimeout > 0 {
			conn.SetWriteDeadline(timeNow().Add(s.opts.readTimeout))
		}

		if _, err := conn.Write(resp.Encode()); err != nil {
			return fmt.Errorf("write to %s: %w", remote, err)
		}

		if exc == nil {
			s.metrics.RequestsSuccess.Add(1)
		}
		elapsed := timeNow().Sub(start)
		s.metrics.Latency.Observe(elapsed)
		fm.Latency.Observe(elapsed)
	}
}

// timeNow is a variable for testing
var timeNow = time.Now
