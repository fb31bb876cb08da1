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

func TestScale(t *testing.T) {
	tests := []struct {
		name                           string
		srcMin, dstMin, srcMax, dstMax float64
		value                          float64
		want                           float64
	}{
		{"midpoint", 0, 0, 1, 10, 0.5, 5},
		{"offset", 0, 4, 1, 20, 0.25, 8},
		{"symmetric source", -1, 0, 1, 100, 0, 50},
		{"symmetric destination", 0, -24, 1.5, 24, 0.75, 0},
		{"at source min", 0, -24, 1.5, 24, 0, -24},
		{"at source max", 0, -24, 1.5, 24, 1.5, 24},
		{"inverted", 0, 10, 1, 0, 0.25, 7.5},
		{"extrapolated", 0, 0, 1, 10, 2, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scale(tt.srcMin, tt.dstMin, tt.srcMax, tt.dstMax, tt.value)
			assert.Equal(t, got, tt.want)
		})
	}
}

func TestScaleMonotonic(t *testing.T) {
	prev := Scale(0, -24, 1.5, 24, 0)
	for v := 0.05; v <= 1.5; v += 0.05 {
		got := Scale(0, -24, 1.5, 24, v)
		assert.Assert(t, got > prev, "Scale(%v) = %v, not above %v", v, got, prev)
		prev = got
	}
}

func TestCalibrationApply(t *testing.T) {
	assert.Assert(t, Calibration{}.Degenerate())
	assert.Equal(t, Calibration{}.Apply(0.7), 0.7)
	assert.Equal(t, Calibration{SrcMin: 2, DstMin: 0, SrcMax: 2, DstMax: 5}.Apply(3), 3.0)
	assert.Equal(t, Calibration{SrcMin: 0, DstMin: 0, SrcMax: 10, DstMax: 5}.Apply(4), 2.0)
}

func TestParseCalibration(t *testing.T) {
	ch, c, err := ParseCalibration("1, 0, 4, 1, 20")
	assert.NilError(t, err)
	assert.Equal(t, ch, 1)
	assert.Equal(t, c, Calibration{SrcMin: 0, DstMin: 4, SrcMax: 1, DstMax: 20})

	for _, payload := range []string{
		"",
		"1,2,3",
		"x,0,0,1,1",
		"4,0,0,1,1",
		"-1,0,0,1,1",
		"0,0,nope,1,1",
		"0,0,NaN,1,1",
		"0,0,0,Inf,1",
	} {
		_, _, err := ParseCalibration(payload)
		assert.ErrorIs(t, err, ErrMalformedConfig, "payload %q", payload)
	}
}

func TestParseMask(t *testing.T) {
	m, err := ParseMask("0001")
	assert.NilError(t, err)
	assert.Equal(t, m, [Channels]bool{true, false, false, false})

	m, err = ParseMask("1100\n")
	assert.NilError(t, err)
	assert.Equal(t, m, [Channels]bool{false, false, true, true})
	assert.Equal(t, FormatMask(m), "1100")

	m, err = ParseMask("0902")
	assert.NilError(t, err)
	assert.Equal(t, m, [Channels]bool{true, false, true, false})
	assert.Equal(t, FormatMask(m), "0101")

	for _, payload := range []string{"", "101", "10a1", "-100", "1 01"} {
		_, err := ParseMask(payload)
		assert.ErrorIs(t, err, ErrMalformedConfig, "payload %q", payload)
	}
}
