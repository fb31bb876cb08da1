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

// Inputs is the part of the I/O board the sampler reads from.
type Inputs interface {
	ReadDigitalInput(channel int) bool
	ReadAnalogInput(channel int) float32
}

// Sampler refreshes the input tables from live readings.
type Sampler struct {
	store *Store
	in    Inputs
}

// NewSampler creates a sampler reading from in into store.
func NewSampler(store *Store, in Inputs) *Sampler {
	return &Sampler{store: store, in: in}
}

// SampleAnalog reads every enabled analog input, applies its input
// calibration and stores the result as a float32 in the input registers.
// Disabled channels are stored as 0.0.
func (s *Sampler) SampleAnalog() {
	var (
		mask [Channels]bool
		cal  [Channels]Calibration
	)
	s.store.Do(func(b *Bank) error {
		mask = b.Mask(InputRegisters)
		for ch := range cal {
			cal[ch] = b.Calibration(InputCalibration, ch)
		}
		return nil
	})

	var values [Channels]float32
	for ch := 0; ch < Channels; ch++ {
		if !mask[ch] {
			continue
		}
		raw := s.in.ReadAnalogInput(ch)
		values[ch] = float32(cal[ch].Apply(float64(raw)))
	}

	s.store.Do(func(b *Bank) error {
		for ch, v := range values {
			b.SetValue(InputRegisters, ch, v)
		}
		return nil
	})
}

// SampleDigital reads every enabled discrete input into the discrete input
// table. Disabled channels keep their last value.
func (s *Sampler) SampleDigital() {
	mask := s.store.Mask(DiscreteInputs)

	var states [Channels]bool
	for ch := 0; ch < Channels; ch++ {
		if mask[ch] {
			states[ch] = s.in.ReadDigitalInput(ch)
		}
	}

	s.store.Do(func(b *Bank) error {
		for ch, on := range states {
			if mask[ch] {
				b.SetBit(DiscreteInputs, ch, on)
			}
		}
		return nil
	})
}
