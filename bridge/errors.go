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

import "errors"

var (
	// ErrSessionFailure indicates a broker connect or subscribe failure. The
	// session is discarded and the bridge retries.
	ErrSessionFailure = errors.New("bridge: session failure")

	// ErrSessionLost indicates the broker dropped an established session.
	ErrSessionLost = errors.New("bridge: session lost")
)
