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
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	mbclient "github.com/goburrow/modbus"

	"github.com/edgeo-scada/remote-io/board"
	"github.com/edgeo-scada/remote-io/registers"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer serves d on a loopback port until the test ends.
func startServer(t *testing.T, d *Dispatcher) *Server {
	t.Helper()
	server := NewServer(d,
		WithServerLogger(testLogger()),
		WithAcceptPoll(5*time.Millisecond),
		WithRebuildDelay(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, "127.0.0.1:0") }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; !errors.Is(err, ErrServerClosed) {
			t.Errorf("Serve: expected ErrServerClosed, got %v", err)
		}
	})

	waitListening(t, server)
	return server
}

func waitListening(t *testing.T, server *Server) net.Addr {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := server.Addr(); addr != nil && server.State() == StateListening {
			return addr
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("server not listening, state %s", server.State())
	return nil
}

func newClient(t *testing.T, addr net.Addr) (mbclient.Client, *mbclient.TCPClientHandler) {
	t.Helper()
	handler := mbclient.NewTCPClientHandler(addr.String())
	handler.Timeout = 2 * time.Second
	handler.SlaveId = 1
	if err := handler.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { handler.Close() })
	return mbclient.NewClient(handler), handler
}

func enabledDispatcher() (*Dispatcher, *registers.Store, *board.Sim) {
	store := registers.NewStore()
	for _, g := range registers.Groups {
		store.SetMask(g, [registers.Channels]bool{true, true, true, true})
	}
	sim := board.NewSim()
	return NewDispatcher(store, sim, testLogger()), store, sim
}

func TestNewServer(t *testing.T) {
	d, _, _ := enabledDispatcher()
	server := NewServer(d)

	if server == nil {
		t.Fatal("NewServer returned nil")
	}
	if server.State() != StateStopped {
		t.Errorf("State: expected stopped, got %s", server.State())
	}
	if server.Addr() != nil {
		t.Error("Addr should be nil before listening")
	}
}

func TestServer_ReadWrite(t *testing.T) {
	d, _, sim := enabledDispatcher()
	server := startServer(t, d)
	client, _ := newClient(t, server.Addr())

	if _, err := client.WriteSingleCoil(2, CoilOn); err != nil {
		t.Fatalf("WriteSingleCoil failed: %v", err)
	}
	coils, err := client.ReadCoils(1, 4)
	if err != nil {
		t.Fatalf("ReadCoils failed: %v", err)
	}
	if !bytes.Equal(coils, []byte{0b0010}) {
		t.Errorf("coils: expected 02, got %x", coils)
	}

	if _, err := client.WriteMultipleRegisters(5, 2, floatBytes(7.5)); err != nil {
		t.Fatalf("WriteMultipleRegisters failed: %v", err)
	}
	regs, err := client.ReadHoldingRegisters(5, 2)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters failed: %v", err)
	}
	if !bytes.Equal(regs, floatBytes(7.5)) {
		t.Errorf("registers: expected %x, got %x", floatBytes(7.5), regs)
	}
	if got := sim.AnalogOutput(2); got != 7.5 {
		t.Errorf("analog output 2: expected 7.5, got %v", got)
	}

	if server.State() != StateServing {
		t.Errorf("State: expected serving, got %s", server.State())
	}
	if got := server.Metrics().RequestsTotal.Value(); got != 4 {
		t.Errorf("RequestsTotal: expected 4, got %d", got)
	}
}

func TestServer_Exception(t *testing.T) {
	d, _, _ := enabledDispatcher()
	server := startServer(t, d)
	client, _ := newClient(t, server.Addr())

	_, err := client.ReadCoils(5, 1)
	var mbErr *mbclient.ModbusError
	if !errors.As(err, &mbErr) {
		t.Fatalf("expected ModbusError, got %v", err)
	}
	if mbErr.ExceptionCode != byte(ExceptionIllegalDataAddress) {
		t.Errorf("ExceptionCode: expected 2, got %d", mbErr.ExceptionCode)
	}

	// the connection stays open after an exception
	if _, err := client.ReadCoils(1, 1); err != nil {
		t.Errorf("ReadCoils after exception failed: %v", err)
	}
	if got := server.Metrics().RequestsErrors.Value(); got != 1 {
		t.Errorf("RequestsErrors: expected 1, got %d", got)
	}
	if got := server.Metrics().Rebuilds.Value(); got != 0 {
		t.Errorf("Rebuilds: expected 0, got %d", got)
	}
}

func TestServer_UnsupportedFunctionIsSilent(t *testing.T) {
	d, _, _ := enabledDispatcher()
	server := startServer(t, d)

	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	unsupported := &Frame{Header: MBAPHeader{TransactionID: 1, UnitID: 1}, PDU: []byte{0x2B, 0x0E, 0x01, 0x00}}
	supported := &Frame{Header: MBAPHeader{TransactionID: 2, UnitID: 1}, PDU: []byte{0x01, 0x00, 0x01, 0x00, 0x04}}
	if _, err := conn.Write(append(unsupported.Encode(), supported.Encode()...)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := ReadFrame(conn)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if resp.Header.TransactionID != 2 {
		t.Errorf("TransactionID: expected 2, got %d", resp.Header.TransactionID)
	}
	if got := server.Metrics().RequestsIgnored.Value(); got != 1 {
		t.Errorf("RequestsIgnored: expected 1, got %d", got)
	}
}

func TestServer_RebuildsAfterDisconnect(t *testing.T) {
	d, _, _ := enabledDispatcher()
	server := startServer(t, d)
	addr := server.Addr()

	client, handler := newClient(t, addr)
	if _, err := client.WriteSingleCoil(1, CoilOn); err != nil {
		t.Fatalf("WriteSingleCoil failed: %v", err)
	}
	handler.Close()

	waitForRebuild(t, server, 1)
	rebuilt := waitListening(t, server)
	if rebuilt.String() != addr.String() {
		t.Errorf("Addr: expected %s after rebuild, got %s", addr, rebuilt)
	}

	client, _ = newClient(t, rebuilt)
	coils, err := client.ReadCoils(1, 4)
	if err != nil {
		t.Fatalf("ReadCoils after rebuild failed: %v", err)
	}
	if !bytes.Equal(coils, []byte{0b0001}) {
		t.Errorf("coils: expected 01, got %x", coils)
	}
	if got := server.Metrics().TotalConns.Value(); got != 2 {
		t.Errorf("TotalConns: expected 2, got %d", got)
	}
}

func TestServer_RebuildsAfterMalformedFrame(t *testing.T) {
	d, _, _ := enabledDispatcher()
	server := startServer(t, d)

	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	// protocol id 7
	conn.Write([]byte{0x00, 0x01, 0x00, 0x07, 0x00, 0x06, 0x01, 0x01, 0x00, 0x01, 0x00, 0x01})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 16)); err == nil {
		t.Error("expected the connection to be closed without a response")
	}
	waitForRebuild(t, server, 1)
}

func waitForRebuild(t *testing.T, server *Server, n int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if server.Metrics().Rebuilds.Value() >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("expected %d rebuilds, got %d", n, server.Metrics().Rebuilds.Value())
}

func TestServer_Close(t *testing.T) {
	d, _, _ := enabledDispatcher()
	server := NewServer(d, WithServerLogger(testLogger()), WithAcceptPoll(5*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- server.Serve(context.Background(), "127.0.0.1:0") }()
	waitListening(t, server)

	if err := server.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrServerClosed) {
			t.Errorf("Serve: expected ErrServerClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}

	if server.State() != StateStopped {
		t.Errorf("State: expected stopped, got %s", server.State())
	}
	if err := server.Serve(context.Background(), "127.0.0.1:0"); !errors.Is(err, ErrServerClosed) {
		t.Errorf("Serve after Close: expected ErrServerClosed, got %v", err)
	}
}
