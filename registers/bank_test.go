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
	"testing"

	"gotest.tools/v3/assert"
)

var allOn = [Channels]bool{true, true, true, true}

func enabledBank() *Bank {
	b := &Bank{}
	for _, g := range Groups {
		b.SetMask(g, allOn)
	}
	return b
}

func TestBankCheckOrder(t *testing.T) {
	tests := []struct {
		name         string
		group        Group
		addr, amount int
		mask         [Channels]bool
		want         error
	}{
		{"address zero", Coils, 0, 1, allOn, ErrIllegalAddress},
		{"address past end", Coils, 5, 1, allOn, ErrIllegalAddress},
		{"address past end beats amount", InputRegisters, 9, 0, [Channels]bool{}, ErrIllegalAddress},
		{"zero amount", Coils, 1, 0, allOn, ErrIllegalValue},
		{"range overflow", HoldingRegisters, 7, 3, allOn, ErrIllegalValue},
		{"amount beats mask", Coils, 1, 5, [Channels]bool{}, ErrIllegalValue},
		{"disabled channel", InputRegisters, 3, 2, [Channels]bool{true, false, true, true}, ErrChannelDisabled},
		{"ok", InputRegisters, 1, 8, allOn, nil},
		{"ok single", Coils, 4, 1, [Channels]bool{false, false, false, true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Bank{}
			b.SetMask(tt.group, tt.mask)
			err := b.Check(tt.group, tt.addr, tt.amount)
			if tt.want == nil {
				assert.NilError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGroupCheckAddress(t *testing.T) {
	for _, g := range Groups {
		assert.ErrorIs(t, g.CheckAddress(0), ErrIllegalAddress, "group %s", g)
		assert.NilError(t, g.CheckAddress(1), "group %s", g)
		assert.NilError(t, g.CheckAddress(g.Size()), "group %s", g)
		assert.ErrorIs(t, g.CheckAddress(g.Size()+1), ErrIllegalAddress, "group %s", g)
	}
}

func TestBankReadBits(t *testing.T) {
	b := enabledBank()
	b.SetBit(Coils, 1, true)

	got, err := b.Read(Coils, 1, 4)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, []byte{1, 0b0010})
}

func TestBankReadRegistersFresh(t *testing.T) {
	b := enabledBank()
	got, err := b.Read(HoldingRegisters, 1, 4)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, make([]byte, 8))
}

func TestBankWriteCoil(t *testing.T) {
	b := enabledBank()

	assert.NilError(t, b.Write(Coils, 2, []uint16{BitOn}))
	assert.Equal(t, b.Buffer(Coils)[0], byte(0b0010))

	assert.ErrorIs(t, b.Write(Coils, 2, []uint16{0x1234}), ErrIllegalValue)
	assert.Equal(t, b.Buffer(Coils)[0], byte(0b0010))
}

func TestBankWriteRejected(t *testing.T) {
	b := &Bank{}
	b.SetMask(HoldingRegisters, [Channels]bool{true, false, true, true})

	assert.ErrorIs(t, b.Write(InputRegisters, 1, []uint16{1}), ErrReadOnly)
	assert.ErrorIs(t, b.Write(DiscreteInputs, 1, []uint16{BitOn}), ErrReadOnly)

	// a write spanning a disabled channel leaves every register untouched
	assert.ErrorIs(t, b.Write(HoldingRegisters, 2, []uint16{1, 2}), ErrChannelDisabled)
	assert.DeepEqual(t, b.Buffer(HoldingRegisters), make([]byte, 16))
}

func TestBankValues(t *testing.T) {
	b := &Bank{}
	b.SetValue(HoldingRegisters, 3, -1.5)
	assert.Equal(t, b.Values(HoldingRegisters), [Channels]float32{0, 0, 0, -1.5})
	assert.Equal(t, b.Values(InputRegisters), [Channels]float32{})
}

func TestBankSetCalibration(t *testing.T) {
	b := &Bank{}
	c := Calibration{SrcMin: 0, DstMin: 1, SrcMax: 2, DstMax: 3}

	assert.NilError(t, b.SetCalibration(OutputCalibration, 3, c))
	assert.Equal(t, b.Calibration(OutputCalibration, 3), c)
	assert.ErrorIs(t, b.SetCalibration(InputCalibration, 4, c), ErrMalformedConfig)
	assert.ErrorIs(t, b.SetCalibration(Table(5), 0, c), ErrMalformedConfig)
}

func TestStoreSnapshots(t *testing.T) {
	s := NewStore()
	s.SetMask(Coils, [Channels]bool{true, false, false, false})
	assert.Equal(t, s.Mask(Coils), [Channels]bool{true, false, false, false})
	assert.Equal(t, s.Mask(DiscreteInputs), [Channels]bool{})

	err := s.Do(func(b *Bank) error {
		return b.Write(Coils, 1, []uint16{BitOn})
	})
	assert.NilError(t, err)
	assert.Equal(t, s.Bits(Coils), [Channels]bool{true, false, false, false})
}

type fakeInputs struct {
	digital [Channels]bool
	analog  [Channels]float32
	reads   int
}

func (f *fakeInputs) ReadDigitalInput(ch int) bool {
	f.reads++
	return f.digital[ch]
}

func (f *fakeInputs) ReadAnalogInput(ch int) float32 {
	f.reads++
	return f.analog[ch]
}

func TestSampleAnalog(t *testing.T) {
	s := NewStore()
	s.SetMask(InputRegisters, [Channels]bool{true, true, false, true})
	assert.NilError(t, s.SetCalibration(InputCalibration, 1, Calibration{SrcMin: 0, DstMin: 4, SrcMax: 1, DstMax: 20}))

	in := &fakeInputs{analog: [Channels]float32{0.25, 0.5, 0.75, 1}}
	NewSampler(s, in).SampleAnalog()

	assert.Equal(t, s.Values(InputRegisters), [Channels]float32{0.25, 12, 0, 1})
	assert.Equal(t, in.reads, 3)
}

func TestSampleAnalogClearsDisabled(t *testing.T) {
	s := NewStore()
	s.Do(func(b *Bank) error {
		b.SetValue(InputRegisters, 2, 9)
		return nil
	})

	NewSampler(s, &fakeInputs{}).SampleAnalog()
	assert.Equal(t, s.Values(InputRegisters), [Channels]float32{})
}

func TestSampleDigital(t *testing.T) {
	s := NewStore()
	s.SetMask(DiscreteInputs, [Channels]bool{true, false, true, false})
	s.Do(func(b *Bank) error {
		b.SetBit(DiscreteInputs, 1, true)
		return nil
	})

	in := &fakeInputs{digital: [Channels]bool{true, false, false, true}}
	NewSampler(s, in).SampleDigital()

	// channel 1 keeps its last value, channel 3 is not sampled
	assert.Equal(t, s.Bits(DiscreteInputs), [Channels]bool{true, true, false, false})
}
