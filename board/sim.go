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

package board

import "sync"

// Channels is the number of channels of each kind on the simulated board.
const Channels = 4

// Sim is an in-memory board. Inputs are set by the caller; outputs record
// the last value driven. It is safe for concurrent use.
type Sim struct {
	mu sync.Mutex

	digitalIn  [Channels]bool
	digitalOut [Channels]bool
	analogIn   [Channels]float32
	analogOut  [Channels]float32

	digitalWrites int
	analogWrites  int
	ready         bool
}

// NewSim creates a simulated board with all channels at zero.
func NewSim() *Sim {
	return &Sim{}
}

func (s *Sim) InitAnalogSubsystem() error {
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	return nil
}

func (s *Sim) InitPWMSubsystem() error {
	return nil
}

// Ready reports whether the analog subsystem was initialized.
func (s *Sim) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Sim) ReadDigitalInput(channel int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel < 0 || channel >= Channels {
		return false
	}
	return s.digitalIn[channel]
}

func (s *Sim) WriteDigitalOutput(channel int, state bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel < 0 || channel >= Channels {
		return
	}
	s.digitalOut[channel] = state
	s.digitalWrites++
}

func (s *Sim) ReadAnalogInput(channel int) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel < 0 || channel >= Channels {
		return 0
	}
	return s.analogIn[channel]
}

func (s *Sim) WriteAnalogOutput(channel int, voltage float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel < 0 || channel >= Channels {
		return
	}
	s.analogOut[channel] = voltage
	s.analogWrites++
}

// SetDigitalInput sets the level seen on a digital input.
func (s *Sim) SetDigitalInput(channel int, state bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel >= 0 && channel < Channels {
		s.digitalIn[channel] = state
	}
}

// SetAnalogInput sets the normalized reading of an analog input.
func (s *Sim) SetAnalogInput(channel int, v float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel >= 0 && channel < Channels {
		s.analogIn[channel] = v
	}
}

// DigitalOutput returns the last state driven on a digital output.
func (s *Sim) DigitalOutput(channel int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digitalOut[channel]
}

// AnalogOutput returns the last voltage driven on an analog output.
func (s *Sim) AnalogOutput(channel int) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analogOut[channel]
}

// Writes returns how many digital and analog output writes were made.
func (s *Sim) Writes() (digital, analog int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digitalWrites, s.analogWrites
}
