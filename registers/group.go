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

// Package registers holds the register file of the remote I/O device: the
// coil, discrete input, holding register and input register buffers, their
// per-channel enable masks and the analog calibration tables.
//
// All addresses are 1-based, as they appear on the wire.
package registers

import "fmt"

// Channels is the number of I/O channels in every group.
const Channels = 4

// RegistersPerChannel is the number of 16-bit registers holding one analog
// channel value (a big-endian float32).
const RegistersPerChannel = 2

// Group identifies one of the four Modbus data tables.
type Group int

const (
	Coils Group = iota
	DiscreteInputs
	HoldingRegisters
	InputRegisters

	groupCount
)

// Groups lists all groups in table order.
var Groups = [...]Group{Coils, DiscreteInputs, HoldingRegisters, InputRegisters}

// String returns the string representation of the group.
func (g Group) String() string {
	switch g {
	case Coils:
		return "coils"
	case DiscreteInputs:
		return "discrete_inputs"
	case HoldingRegisters:
		return "holding_registers"
	case InputRegisters:
		return "input_registers"
	default:
		return fmt.Sprintf("group(%d)", int(g))
	}
}

// IsBits reports whether the group is addressed bit by bit.
func (g Group) IsBits() bool {
	return g == Coils || g == DiscreteInputs
}

// Writable reports whether the protocol may write the group.
func (g Group) Writable() bool {
	return g == Coils || g == HoldingRegisters
}

// Size returns the number of addressable elements in the group.
func (g Group) Size() int {
	if g.IsBits() {
		return Channels
	}
	return Channels * RegistersPerChannel
}

// CheckAddress validates a starting address.
func (g Group) CheckAddress(addr int) error {
	if addr < 1 || addr > g.Size() {
		return ErrIllegalAddress
	}
	return nil
}

// Channel returns the channel owning the element at addr.
// addr must already be in range.
func (g Group) Channel(addr int) int {
	if g.IsBits() {
		return addr - 1
	}
	return (addr - 1) / RegistersPerChannel
}

// ChannelAddress returns the first address belonging to channel ch.
func (g Group) ChannelAddress(ch int) int {
	if g.IsBits() {
		return ch + 1
	}
	return ch*RegistersPerChannel + 1
}
