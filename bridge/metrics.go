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

package bridge

import modbus "github.com/edgeo-scada/remote-io"

// Metrics holds bridge-side counters.
type Metrics struct {
	Connects           modbus.Counter
	ConnectFailures    modbus.Counter
	Disconnects        modbus.Counter
	Publishes          modbus.Counter
	PublishErrors      modbus.Counter
	EventsDropped      modbus.Counter
	MaskUpdates        modbus.Counter
	CalibrationUpdates modbus.Counter
	MalformedMessages  modbus.Counter
}

// Collect returns all metrics as a map.
func (m *Metrics) Collect() map[string]interface{} {
	return map[string]interface{}{
		"connects":            m.Connects.Value(),
		"connect_failures":    m.ConnectFailures.Value(),
		"disconnects":         m.Disconnects.Value(),
		"publishes":           m.Publishes.Value(),
		"publish_errors":      m.PublishErrors.Value(),
		"events_dropped":      m.EventsDropped.Value(),
		"mask_updates":        m.MaskUpdates.Value(),
		"calibration_updates": m.CalibrationUpdates.Value(),
		"malformed_messages":  m.MalformedMessages.Value(),
	}
}
