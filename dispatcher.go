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

package modbus

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/edgeo-scada/remote-io/board"
	"github.com/edgeo-scada/remote-io/registers"
)

var errShortRequest = fmt.Errorf("%w: request too short", registers.ErrIllegalValue)

// Dispatcher validates request frames against the register store and
// builds exactly one response per supported request.
//
// Every request runs one ordered pipeline: address range, then amount or
// value, then the channel enable masks, then execution. The first failing
// check decides the exception code. Hardware outputs are driven after the
// store has been updated and released.
type Dispatcher struct {
	store   *registers.Store
	sampler *registers.Sampler
	outputs board.Outputs
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher over store. io may be nil, in which
// case no sampling happens and no outputs are driven.
func NewDispatcher(store *registers.Store, io board.IO, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		store:  store,
		logger: logger,
	}
	if io != nil {
		d.sampler = registers.NewSampler(store, io)
		d.outputs = io
	}
	return d
}

// Process handles one request. It returns nil when the function code is not
// supported; no response is sent in that case.
func (d *Dispatcher) Process(req *Frame) *Frame {
	fc := req.FunctionCode()

	var (
		pdu []byte
		err error
	)

	switch fc {
	case FuncReadCoils:
		pdu, err = d.readBits(fc, registers.Coils, req.PDU)
	case FuncReadDiscreteInputs:
		if d.sampler != nil {
			d.sampler.SampleDigital()
		}
		pdu, err = d.readBits(fc, registers.DiscreteInputs, req.PDU)
	case FuncReadHoldingRegisters:
		pdu, err = d.readRegisters(fc, registers.HoldingRegisters, req.PDU)
	case FuncReadInputRegisters:
		if d.sampler != nil {
			d.sampler.SampleAnalog()
		}
		pdu, err = d.readRegisters(fc, registers.InputRegisters, req.PDU)
	case FuncWriteSingleCoil:
		pdu, err = d.writeSingleCoil(req.PDU)
	case FuncWriteSingleRegister:
		pdu, err = d.writeSingleRegister(req.PDU)
	case FuncWriteMultipleCoils:
		pdu, err = d.writeMultipleCoils(req.PDU)
	case FuncWriteMultipleRegisters:
		pdu, err = d.writeMultipleRegisters(req.PDU)
	default:
		d.logger.Debug("unsupported function code, ignoring",
			slog.Uint64("tx_id", uint64(req.Header.TransactionID)),
			slog.Int("func", int(fc)))
		return nil
	}

	if err != nil {
		ec := exceptionFor(err)
		d.logger.Debug("request rejected",
			slog.Uint64("tx_id", uint64(req.Header.TransactionID)),
			slog.String("func", fc.String()),
			slog.String("exception", ec.String()),
			slog.String("error", err.Error()))
		pdu = buildException(fc, ec)
	}

	return &Frame{
		Header: MBAPHeader{
			TransactionID: req.Header.TransactionID,
			ProtocolID:    req.Header.ProtocolID,
			UnitID:        req.Header.UnitID,
		},
		PDU: pdu,
	}
}

// parseAddress decodes and range-checks the starting address, so a request
// that is both out of range and truncated reports the address first.
func parseAddress(g registers.Group, pdu []byte) (int, error) {
	if len(pdu) < 3 {
		return 0, errShortRequest
	}
	addr := int(binary.BigEndian.Uint16(pdu[1:3]))
	if err := g.CheckAddress(addr); err != nil {
		return 0, err
	}
	return addr, nil
}

func parseRange(g registers.Group, pdu []byte) (addr, amount int, err error) {
	addr, err = parseAddress(g, pdu)
	if err != nil {
		return 0, 0, err
	}
	if len(pdu) < 5 {
		return 0, 0, errShortRequest
	}
	return addr, int(binary.BigEndian.Uint16(pdu[3:5])), nil
}

func (d *Dispatcher) readBits(fc FunctionCode, g registers.Group, pdu []byte) ([]byte, error) {
	addr, amount, err := parseRange(g, pdu)
	if err != nil {
		return nil, err
	}

	var packed []byte
	err = d.store.Do(func(b *registers.Bank) error {
		var err error
		packed, err = b.Read(g, addr, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	// packed already leads with the byte count
	resp := make([]byte, 1+len(packed))
	resp[0] = byte(fc)
	copy(resp[1:], packed)
	return resp, nil
}

func (d *Dispatcher) readRegisters(fc FunctionCode, g registers.Group, pdu []byte) ([]byte, error) {
	addr, amount, err := parseRange(g, pdu)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = d.store.Do(func(b *registers.Bank) error {
		var err error
		data, err = b.Read(g, addr, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	resp := make([]byte, 2+len(data))
	resp[0] = byte(fc)
	resp[1] = byte(len(data))
	copy(resp[2:], data)
	return resp, nil
}

func (d *Dispatcher) writeSingleCoil(pdu []byte) ([]byte, error) {
	addr, value, err := parseRange(registers.Coils, pdu)
	if err != nil {
		return nil, err
	}

	var outs []output
	err = d.store.Do(func(b *registers.Bank) error {
		if err := b.Write(registers.Coils, addr, []uint16{uint16(value)}); err != nil {
			return err
		}
		outs = digitalOutputs(b, addr, 1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.drive(outs)

	// Echo request as response (copy to avoid sharing slice)
	resp := make([]byte, 5)
	copy(resp, pdu[:5])
	return resp, nil
}

func (d *Dispatcher) writeSingleRegister(pdu []byte) ([]byte, error) {
	addr, value, err := parseRange(registers.HoldingRegisters, pdu)
	if err != nil {
		return nil, err
	}

	var outs []output
	err = d.store.Do(func(b *registers.Bank) error {
		if err := b.Write(registers.HoldingRegisters, addr, []uint16{uint16(value)}); err != nil {
			return err
		}
		outs = analogOutputs(b, addr, 1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.drive(outs)

	resp := make([]byte, 5)
	copy(resp, pdu[:5])
	return resp, nil
}

func (d *Dispatcher) writeMultipleCoils(pdu []byte) ([]byte, error) {
	g := registers.Coils
	addr, err := parseAddress(g, pdu)
	if err != nil {
		return nil, err
	}
	if len(pdu) < 6 {
		return nil, errShortRequest
	}
	amount := int(binary.BigEndian.Uint16(pdu[3:5]))
	byteCount := int(pdu[5])

	var outs []output
	err = d.store.Do(func(b *registers.Bank) error {
		if err := b.CheckAmount(g, addr, amount); err != nil {
			return err
		}
		if byteCount != (amount+7)/8 || len(pdu) < 6+byteCount {
			return registers.ErrIllegalValue
		}
		if err := b.CheckEnabled(g, addr, amount); err != nil {
			return err
		}
		registers.WriteMultipleBits(b.Buffer(g), addr, amount, pdu[6:6+byteCount])
		outs = digitalOutputs(b, addr, amount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.drive(outs)

	resp := make([]byte, 5)
	copy(resp, pdu[:5])
	return resp, nil
}

func (d *Dispatcher) writeMultipleRegisters(pdu []byte) ([]byte, error) {
	g := registers.HoldingRegisters
	addr, err := parseAddress(g, pdu)
	if err != nil {
		return nil, err
	}
	// A multi-register write must start on the first register of a channel.
	if (addr-1)%registers.RegistersPerChannel != 0 {
		return nil, registers.ErrIllegalAddress
	}
	if len(pdu) < 6 {
		return nil, errShortRequest
	}
	amount := int(binary.BigEndian.Uint16(pdu[3:5]))
	byteCount := int(pdu[5])

	var outs []output
	err = d.store.Do(func(b *registers.Bank) error {
		if err := b.CheckAmount(g, addr, amount); err != nil {
			return err
		}
		if amount%registers.RegistersPerChannel != 0 || byteCount != 2*amount || len(pdu) < 6+byteCount {
			return registers.ErrIllegalValue
		}
		if err := b.CheckEnabled(g, addr, amount); err != nil {
			return err
		}
		registers.WriteMultipleRegisters(b.Buffer(g), addr, amount, pdu[6:6+byteCount])
		outs = analogOutputs(b, addr, amount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.drive(outs)

	resp := make([]byte, 5)
	copy(resp, pdu[:5])
	return resp, nil
}

// output is one pending hardware write, captured under the store lock.
type output struct {
	analog  bool
	channel int
	state   bool
	voltage float32
}

func digitalOutputs(b *registers.Bank, addr, amount int) []output {
	outs := make([]output, 0, amount)
	for a := addr; a < addr+amount; a++ {
		ch := registers.Coils.Channel(a)
		outs = append(outs, output{channel: ch, state: b.Bit(registers.Coils, ch)})
	}
	return outs
}

// analogOutputs returns one output per channel touched by the register range.
func analogOutputs(b *registers.Bank, addr, amount int) []output {
	g := registers.HoldingRegisters
	first, last := g.Channel(addr), g.Channel(addr+amount-1)
	outs := make([]output, 0, last-first+1)
	for ch := first; ch <= last; ch++ {
		cal := b.Calibration(registers.OutputCalibration, ch)
		v := cal.Apply(float64(b.Value(g, ch)))
		outs = append(outs, output{analog: true, channel: ch, voltage: float32(v)})
	}
	return outs
}

func (d *Dispatcher) drive(outs []output) {
	if d.outputs == nil {
		return
	}
	for _, o := range outs {
		if o.analog {
			d.outputs.WriteAnalogOutput(o.channel, o.voltage)
		} else {
			d.outputs.WriteDigitalOutput(o.channel, o.state)
		}
	}
}
