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

// DefaultTopicRoot is the prefix of every bridge topic.
const DefaultTopicRoot = "/cc3200/Meliora"

// Topics names every topic the bridge subscribes or publishes to.
type Topics struct {
	CoilMask          string // do
	DiscreteMask      string // di
	HoldingMask       string // ao
	InputMask         string // ai
	InputCalibration  string // ai/autoscalling
	OutputCalibration string // ao/slopeintercept
	User              string
	FlagAnalogInputs  string
	FlagAnalogOutputs string

	AnalogInputs  string // vai, published
	AnalogOutputs string // vao, published
}

// DefaultTopics returns the topic set rooted at root.
func DefaultTopics(root string) Topics {
	if root == "" {
		root = DefaultTopicRoot
	}
	return Topics{
		CoilMask:          root + "/do",
		DiscreteMask:      root + "/di",
		HoldingMask:       root + "/ao",
		InputMask:         root + "/ai",
		InputCalibration:  root + "/ai/autoscalling",
		OutputCalibration: root + "/ao/slopeintercept",
		User:              root + "/user",
		FlagAnalogInputs:  root + "/flagvai",
		FlagAnalogOutputs: root + "/flagvao",
		AnalogInputs:      root + "/vai",
		AnalogOutputs:     root + "/vao",
	}
}

// Subscriptions returns the inbound topics.
func (t Topics) Subscriptions() []string {
	return []string{
		t.CoilMask,
		t.DiscreteMask,
		t.HoldingMask,
		t.InputMask,
		t.InputCalibration,
		t.OutputCalibration,
		t.User,
		t.FlagAnalogInputs,
		t.FlagAnalogOutputs,
	}
}
