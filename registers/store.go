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

import "sync"

// Store is the process-wide register file shared by the Modbus dispatcher,
// the analog sampler and the telemetry bridge. Every access goes through a
// single mutex so that a request's validation and execution see one
// consistent mask and buffer state.
type Store struct {
	mu   sync.Mutex
	bank Bank
}

// NewStore returns a zeroed store with every channel disabled.
func NewStore() *Store {
	return &Store{}
}

// Do runs fn with exclusive access to the bank.
// fn must not block or call back into the Store.
func (s *Store) Do(fn func(b *Bank) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.bank)
}

// SetMask replaces the enable mask of g.
func (s *Store) SetMask(g Group, m [Channels]bool) {
	s.mu.Lock()
	s.bank.SetMask(g, m)
	s.mu.Unlock()
}

// Mask returns the enable mask of g.
func (s *Store) Mask(g Group) [Channels]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank.Mask(g)
}

// SetCalibration replaces one calibration entry.
func (s *Store) SetCalibration(t Table, ch int, c Calibration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank.SetCalibration(t, ch, c)
}

// Calibration returns one calibration entry.
func (s *Store) Calibration(t Table, ch int) Calibration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank.calibration[t][ch]
}

// Values returns a snapshot of the analog channel values of g.
func (s *Store) Values(g Group) [Channels]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank.Values(g)
}

// Bits returns a snapshot of the bit channel states of g.
func (s *Store) Bits(g Group) [Channels]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [Channels]bool
	for ch := range out {
		out[ch] = s.bank.Bit(g, ch)
	}
	return out
}
