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

package netif

import (
	"context"
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestWaitUpImmediate(t *testing.T) {
	err := WaitUp(context.Background(), NewStatic(true), time.Hour)
	assert.NilError(t, err)
}

func TestWaitUpPolls(t *testing.T) {
	s := NewStatic(false)
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Set(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NilError(t, WaitUp(ctx, s, 5*time.Millisecond))
	assert.Assert(t, s.Up())
}

func TestWaitUpCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := WaitUp(ctx, NewStatic(false), 5*time.Millisecond)
	assert.Assert(t, errors.Is(err, context.DeadlineExceeded))
}

func TestInterfaceProbeUnknownName(t *testing.T) {
	p := InterfaceProbe{Name: "no-such-interface0"}
	assert.Assert(t, !p.Up())
}
