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

// Package board defines the hardware collaborators of the gateway: the
// digital and analog channel drivers and their one-time initialization.
package board

import "fmt"

// IO drives the physical channels. Channels are 0-based. Analog inputs are
// returned in the driver's normalized range; analog outputs take a voltage.
type IO interface {
	ReadDigitalInput(channel int) bool
	WriteDigitalOutput(channel int, state bool)
	ReadAnalogInput(channel int) float32
	WriteAnalogOutput(channel int, voltage float32)
}

// Outputs is the write half of IO.
type Outputs interface {
	WriteDigitalOutput(channel int, state bool)
	WriteAnalogOutput(channel int, voltage float32)
}

// Initializer brings up the ADC and PWM subsystems.
type Initializer interface {
	InitAnalogSubsystem() error
	InitPWMSubsystem() error
}

// Init brings up a board. Failure is unrecoverable for the device.
func Init(i Initializer) error {
	if err := i.InitPWMSubsystem(); err != nil {
		return fmt.Errorf("board: pwm init: %w", err)
	}
	if err := i.InitAnalogSubsystem(); err != nil {
		return fmt.Errorf("board: adc init: %w", err)
	}
	return nil
}
