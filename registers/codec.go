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

package registers

import (
	"encoding/binary"
	"math"
)

// Coil values accepted by WriteBit.
const (
	BitOn  uint16 = 0xFF00
	BitOff uint16 = 0x0000
)

// ReadBits packs amount bits of bits starting at the 1-based address addr,
// LSB first. The first byte of the result is the number of packed bytes that
// follow, which is also the Modbus byte-count field.
func ReadBits(bits []byte, addr, amount int) []byte {
	size := (amount + 7) / 8
	out := make([]byte, 1+size)
	out[0] = byte(size)
	for i := 0; i < amount; i++ {
		idx := addr - 1 + i
		if bits[idx/8]&(1<<(idx%8)) != 0 {
			out[1+i/8] |= 1 << (i % 8)
		}
	}
	return out
}

// ReadRegisters returns a copy of amount big-endian registers starting at addr.
func ReadRegisters(regs []byte, addr, amount int) []byte {
	start := (addr - 1) * 2
	out := make([]byte, 2*amount)
	copy(out, regs[start:start+2*amount])
	return out
}

// WriteBit sets (BitOn) or clears (BitOff) the bit at addr.
func WriteBit(bits []byte, addr int, value uint16) error {
	if value != BitOn && value != BitOff {
		return ErrIllegalValue
	}
	idx := addr - 1
	bits[idx/8] &^= 1 << (idx % 8)
	if value == BitOn {
		bits[idx/8] |= 1 << (idx % 8)
	}
	return nil
}

// WriteRegister stores value big-endian at register addr.
func WriteRegister(regs []byte, addr int, value uint16) {
	binary.BigEndian.PutUint16(regs[(addr-1)*2:], value)
}

// WriteMultipleBits writes amount bits from the LSB-first packed values,
// starting at addr.
func WriteMultipleBits(bits []byte, addr, amount int, values []byte) {
	for i := 0; i < amount; i++ {
		v := BitOff
		if values[i/8]&(1<<(i%8)) != 0 {
			v = BitOn
		}
		WriteBit(bits, addr+i, v)
	}
}

// WriteMultipleRegisters writes amount big-endian registers from values,
// starting at addr.
func WriteMultipleRegisters(regs []byte, addr, amount int, values []byte) {
	for i := 0; i < amount; i++ {
		WriteRegister(regs, addr+i, binary.BigEndian.Uint16(values[2*i:]))
	}
}

// Float decodes the float32 of channel ch from a register buffer.
func Float(regs []byte, ch int) float32 {
	off := ch * RegistersPerChannel * 2
	return math.Float32frombits(binary.BigEndian.Uint32(regs[off:]))
}

// PutFloat encodes v as the float32 of channel ch in a register buffer.
func PutFloat(regs []byte, ch int, v float32) {
	off := ch * RegistersPerChannel * 2
	binary.BigEndian.PutUint32(regs[off:], math.Float32bits(v))
}
