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

import "errors"

// Access errors, checked in this order by Bank.Check and Bank.Write.
var (
	// ErrIllegalAddress indicates a starting address outside the group.
	ErrIllegalAddress = errors.New("registers: illegal address")

	// ErrIllegalValue indicates an amount or value the group cannot hold.
	ErrIllegalValue = errors.New("registers: illegal amount or value")

	// ErrChannelDisabled indicates that at least one touched channel is masked off.
	ErrChannelDisabled = errors.New("registers: channel disabled")
)

var (
	// ErrReadOnly indicates a write against discrete inputs or input registers.
	ErrReadOnly = errors.New("registers: group is read-only")

	// ErrMalformedConfig indicates a control message that could not be parsed.
	ErrMalformedConfig = errors.New("registers: malformed config")
)
