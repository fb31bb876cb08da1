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

// Package modbus implements the Modbus/TCP side of the remote I/O gateway:
// MBAP framing, the request dispatcher that validates each request against
// the register store, and the single-connection listener that rebuilds
// itself after any transport failure.
package modbus

import (
	"time"

	"github.com/edgeo-scada/remote-io/registers"
)

// UnitID represents the Modbus unit identifier (slave address).
type UnitID uint8

// FunctionCode represents a Modbus function code.
type FunctionCode uint8

// Function codes served by the gateway.
const (
	FuncReadCoils              FunctionCode = 0x01
	FuncReadDiscreteInputs     FunctionCode = 0x02
	FuncReadHoldingRegisters   FunctionCode = 0x03
	FuncReadInputRegisters     FunctionCode = 0x04
	FuncWriteSingleCoil        FunctionCode = 0x05
	FuncWriteSingleRegister    FunctionCode = 0x06
	FuncWriteMultipleCoils     FunctionCode = 0x0F
	FuncWriteMultipleRegisters FunctionCode = 0x10
)

// String returns a string representation of FunctionCode.
func (fc FunctionCode) String() string {
	switch fc {
	case FuncReadCoils:
		return "ReadCoils"
	case FuncReadDiscreteInputs:
		return "ReadDiscreteInputs"
	case FuncReadHoldingRegisters:
		return "ReadHoldingRegisters"
	case FuncReadInputRegisters:
		return "ReadInputRegisters"
	case FuncWriteSingleCoil:
		return "WriteSingleCoil"
	case FuncWriteSingleRegister:
		return "WriteSingleRegister"
	case FuncWriteMultipleCoils:
		return "WriteMultipleCoils"
	case FuncWriteMultipleRegisters:
		return "WriteMultipleRegisters"
	default:
		return "Unknown"
	}
}

// Protocol constants.
const (
	// MBAPHeaderSize is the size of the MBAP header in bytes.
	MBAPHeaderSize = 7

	// MaxPDUSize is the largest PDU a Modbus/TCP frame may carry.
	MaxPDUSize = 253

	// ProtocolID is the Modbus protocol identifier (always 0 for Modbus TCP).
	ProtocolID = 0

	// ExceptionFrameSize is the encoded size of every exception response.
	ExceptionFrameSize = MBAPHeaderSize + 2

	// DefaultPort is the default Modbus TCP port.
	DefaultPort = 502

	// DefaultAcceptPoll is how long one accept attempt waits before the
	// listener checks for shutdown and tries again.
	DefaultAcceptPoll = 10 * time.Millisecond

	// DefaultRebuildDelay is the pause between tearing a failed listener
	// down and binding a new one.
	DefaultRebuildDelay = 100 * time.Millisecond
)

// Coil values for write operations.
const (
	CoilOn  = registers.BitOn
	CoilOff = registers.BitOff
)

// ListenerState represents the state of the Modbus listener.
type ListenerState int

const (
	StateStopped ListenerState = iota
	StateListening
	StateServing
	StateRebuilding
)

// String returns the string representation of the listener state.
func (s ListenerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateListening:
		return "listening"
	case StateServing:
		return "serving"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}
