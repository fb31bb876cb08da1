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

import "fmt"

// Bank is the register file: one raw buffer per group, a per-channel enable
// mask per group and the two calibration tables. A Bank does no locking; use
// it through Store.Do when it is shared.
type Bank struct {
	coils    [1]byte
	discrete [1]byte
	holding  [Channels * RegistersPerChannel * 2]byte
	input    [Channels * RegistersPerChannel * 2]byte

	masks       [groupCount][Channels]bool
	calibration [2][Channels]Calibration
}

// Buffer returns the live buffer of g.
func (b *Bank) Buffer(g Group) []byte {
	switch g {
	case Coils:
		return b.coils[:]
	case DiscreteInputs:
		return b.discrete[:]
	case HoldingRegisters:
		return b.holding[:]
	case InputRegisters:
		return b.input[:]
	default:
		panic(fmt.Sprintf("registers: unknown group %d", int(g)))
	}
}

// CheckAddress validates a starting address.
func (b *Bank) CheckAddress(g Group, addr int) error {
	return g.CheckAddress(addr)
}

// CheckAmount validates amount elements starting at addr.
func (b *Bank) CheckAmount(g Group, addr, amount int) error {
	if amount < 1 || amount > g.Size() || addr+amount-1 > g.Size() {
		return ErrIllegalValue
	}
	return nil
}

// CheckEnabled reports ErrChannelDisabled if any channel touched by the
// range is masked off. The range must already be valid.
func (b *Bank) CheckEnabled(g Group, addr, amount int) error {
	for a := addr; a < addr+amount; a++ {
		if !b.masks[g][g.Channel(a)] {
			return ErrChannelDisabled
		}
	}
	return nil
}

// Check runs the address, amount and mask checks in that order and returns
// the first failure.
func (b *Bank) Check(g Group, addr, amount int) error {
	if err := b.CheckAddress(g, addr); err != nil {
		return err
	}
	if err := b.CheckAmount(g, addr, amount); err != nil {
		return err
	}
	return b.CheckEnabled(g, addr, amount)
}

// Read returns amount elements of g starting at addr. Bit groups are packed
// by ReadBits, including the leading byte count; register groups are
// returned as 2*amount raw bytes.
func (b *Bank) Read(g Group, addr, amount int) ([]byte, error) {
	if err := b.Check(g, addr, amount); err != nil {
		return nil, err
	}
	if g.IsBits() {
		return ReadBits(b.Buffer(g), addr, amount), nil
	}
	return ReadRegisters(b.Buffer(g), addr, amount), nil
}

// Write stores values starting at addr. For coils each value must be BitOn
// or BitOff; for holding registers each value is one 16-bit register.
// Nothing is written unless every check passes.
func (b *Bank) Write(g Group, addr int, values []uint16) error {
	if !g.Writable() {
		return ErrReadOnly
	}
	if err := b.CheckAddress(g, addr); err != nil {
		return err
	}
	if err := b.CheckAmount(g, addr, len(values)); err != nil {
		return err
	}
	if g.IsBits() {
		for _, v := range values {
			if v != BitOn && v != BitOff {
				return ErrIllegalValue
			}
		}
	}
	if err := b.CheckEnabled(g, addr, len(values)); err != nil {
		return err
	}

	buf := b.Buffer(g)
	for i, v := range values {
		if g.IsBits() {
			WriteBit(buf, addr+i, v)
		} else {
			WriteRegister(buf, addr+i, v)
		}
	}
	return nil
}

// Mask returns the enable mask of g.
func (b *Bank) Mask(g Group) [Channels]bool {
	return b.masks[g]
}

// SetMask replaces all channel bits of g at once.
func (b *Bank) SetMask(g Group, m [Channels]bool) {
	b.masks[g] = m
}

// Bit returns the state of bit channel ch, ignoring the mask.
func (b *Bank) Bit(g Group, ch int) bool {
	buf := b.Buffer(g)
	return buf[ch/8]&(1<<(ch%8)) != 0
}

// SetBit stores the state of bit channel ch, ignoring the mask.
func (b *Bank) SetBit(g Group, ch int, on bool) {
	v := BitOff
	if on {
		v = BitOn
	}
	WriteBit(b.Buffer(g), ch+1, v)
}

// Value returns the float32 of analog channel ch, ignoring the mask.
func (b *Bank) Value(g Group, ch int) float32 {
	return Float(b.Buffer(g), ch)
}

// SetValue stores the float32 of analog channel ch, ignoring the mask.
func (b *Bank) SetValue(g Group, ch int, v float32) {
	PutFloat(b.Buffer(g), ch, v)
}

// Values returns all four analog channel values of g.
func (b *Bank) Values(g Group) [Channels]float32 {
	var out [Channels]float32
	for ch := range out {
		out[ch] = b.Value(g, ch)
	}
	return out
}

// Calibration returns the entry of channel ch in table t.
func (b *Bank) Calibration(t Table, ch int) Calibration {
	return b.calibration[t][ch]
}

// SetCalibration replaces the entry of channel ch in table t.
func (b *Bank) SetCalibration(t Table, ch int, c Calibration) error {
	if t != InputCalibration && t != OutputCalibration {
		return fmt.Errorf("%w: table %d", ErrMalformedConfig, int(t))
	}
	if ch < 0 || ch >= Channels {
		return fmt.Errorf("%w: channel %d out of range", ErrMalformedConfig, ch)
	}
	b.calibration[t][ch] = c
	return nil
}
