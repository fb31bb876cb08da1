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
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Table selects one of the two calibration tables.
type Table int

const (
	// InputCalibration maps raw analog readings to engineering units.
	InputCalibration Table = iota

	// OutputCalibration maps engineering values written by a client to the
	// voltage driven on the analog output.
	OutputCalibration
)

// String returns the string representation of the table.
func (t Table) String() string {
	switch t {
	case InputCalibration:
		return "input"
	case OutputCalibration:
		return "output"
	default:
		return fmt.Sprintf("table(%d)", int(t))
	}
}

// Calibration is a linear map from [SrcMin,SrcMax] onto [DstMin,DstMax].
type Calibration struct {
	SrcMin float64
	DstMin float64
	SrcMax float64
	DstMax float64
}

// Scale maps value linearly from (srcMin,srcMax) onto (dstMin,dstMax).
func Scale(srcMin, dstMin, srcMax, dstMax, value float64) float64 {
	return dstMin + (value-srcMin)*(dstMax-dstMin)/(srcMax-srcMin)
}

// Degenerate reports whether the source span is empty. The zero Calibration
// is degenerate.
func (c Calibration) Degenerate() bool {
	return c.SrcMax == c.SrcMin
}

// Apply scales v. A degenerate calibration passes v through unchanged.
func (c Calibration) Apply(v float64) float64 {
	if c.Degenerate() {
		return v
	}
	return Scale(c.SrcMin, c.DstMin, c.SrcMax, c.DstMax, v)
}

// ParseCalibration parses a calibration control message of the form
// "channel,src_min,dst_min,src_max,dst_max" where channel is 0-based.
func ParseCalibration(payload string) (int, Calibration, error) {
	fields := strings.Split(strings.TrimSpace(payload), ",")
	if len(fields) < 5 {
		return 0, Calibration{}, fmt.Errorf("%w: want 5 fields, got %d", ErrMalformedConfig, len(fields))
	}

	ch, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return 0, Calibration{}, fmt.Errorf("%w: channel %q", ErrMalformedConfig, fields[0])
	}
	if ch < 0 || ch >= Channels {
		return 0, Calibration{}, fmt.Errorf("%w: channel %d out of range", ErrMalformedConfig, ch)
	}

	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, Calibration{}, fmt.Errorf("%w: field %d %q", ErrMalformedConfig, i+1, fields[i+1])
		}
		v[i] = f
	}

	return ch, Calibration{SrcMin: v[0], DstMin: v[1], SrcMax: v[2], DstMax: v[3]}, nil
}

// ParseMask parses a 4-digit enable mask. The leftmost digit is the highest
// channel, so "0001" enables channel 0 only. Any digit 1-9 enables its
// channel; anything other than a digit is rejected.
func ParseMask(payload string) ([Channels]bool, error) {
	var m [Channels]bool
	s := strings.TrimSpace(payload)
	if len(s) < Channels {
		return m, fmt.Errorf("%w: mask %q too short", ErrMalformedConfig, s)
	}
	for i := 0; i < Channels; i++ {
		switch s[Channels-1-i] {
		case '0':
		case '1', '2', '3', '4', '5', '6', '7', '8', '9':
			m[i] = true
		default:
			return m, fmt.Errorf("%w: mask %q", ErrMalformedConfig, s)
		}
	}
	return m, nil
}

// FormatMask renders m in the ParseMask layout.
func FormatMask(m [Channels]bool) string {
	var b [Channels]byte
	for i := 0; i < Channels; i++ {
		b[Channels-1-i] = '0'
		if m[i] {
			b[Channels-1-i] = '1'
		}
	}
	return string(b[:])
}
