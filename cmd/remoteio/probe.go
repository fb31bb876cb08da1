package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	mb "github.com/goburrow/modbus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	modbus "github.com/edgeo-scada/remote-io"
)

var (
	probeAddr     uint16
	probeBitCount uint16
	probeRegCount uint16
	probeFormat   string
	probeValues   []string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Talk to a gateway as a Modbus/TCP master",
	Long: `Read and write the channels of a running gateway. Addresses are the
1-based values carried on the wire: 1-4 for coils and discrete inputs, 1-8
for holding and input registers.`,
}

var probeReadCmd = &cobra.Command{
	Use:     "read",
	Aliases: []string{"r"},
	Short:   "Read channels",
}

var probeWriteCmd = &cobra.Command{
	Use:     "write",
	Aliases: []string{"w"},
	Short:   "Write channels",
}

// Read coils (FC01)
var probeReadCoilsCmd = &cobra.Command{
	Use:     "coils",
	Aliases: []string{"c"},
	Short:   "Read digital outputs (FC01)",
	Example: `  remoteio probe read coils -a 1 -c 4 -H 192.168.1.50`,
}

// Read discrete inputs (FC02)
var probeReadDiscreteCmd = &cobra.Command{
	Use:     "discrete-inputs",
	Aliases: []string{"di"},
	Short:   "Read digital inputs (FC02)",
	RunE:    runReadBits,
}

// Read holding registers (FC03)
var probeReadHoldingCmd = &cobra.Command{
	Use:     "holding-registers",
	Aliases: []string{"hr"},
	Short:   "Read analog outputs (FC03)",
	Example: `  remoteio probe read hr -a 1 -c 8
  remoteio probe read hr -a 3 -c 2 --format uint16`,
}

// Read input registers (FC04)
var probeReadInputCmd = &cobra.Command{
	Use:     "input-registers",
	Aliases: []string{"ir"},
	Short:   "Read analog inputs (FC04)",
	RunE:    runReadRegisters,
}

// Write single coil (FC05)
var probeWriteCoilCmd = &cobra.Command{
	Use:     "coil",
	Aliases: []string{"c"},
	Short:   "Write a digital output (FC05)",
	Long: `Write a single digital output.

Value can be: 1, 0, true, false, on, off`,
	Example: `  remoteio probe write coil -a 2 -V on`,
	RunE:    runWriteCoil,
}

// Write multiple coils (FC15)
var probeWriteCoilsCmd = &cobra.Command{
	Use:     "coils",
	Aliases: []string{"cs"},
	Short:   "Write several digital outputs (FC15)",
	Example: `  remoteio probe write coils -a 1 -V 1,0,1,1`,
	RunE:    runWriteCoils,
}

// Write single register (FC06)
var probeWriteRegisterCmd = &cobra.Command{
	Use:     "register",
	Aliases: []string{"reg", "r"},
	Short:   "Write one holding register (FC06)",
	Long: `Write a single holding register. The gateway drives the analog output of
the channel holding the register.

Value can be decimal, hexadecimal (0x prefix), or binary (0b prefix).`,
	Example: `  remoteio probe write register -a 1 -V 0x4020`,
	RunE:    runWriteRegister,
}

// Write analog output channels (FC16)
var probeWriteFloatCmd = &cobra.Command{
	Use:     "float",
	Aliases: []string{"f"},
	Short:   "Write analog outputs as float32 channels (FC16)",
	Long: `Write one or more analog-output channels. Each value is encoded as a
big-endian float32 over two registers, starting at a channel boundary
(address 1, 3, 5 or 7).`,
	Example: `  remoteio probe write float -a 1 -V 2.5
  remoteio probe write float -a 3 -V 1.2,3.3`,
	RunE: runWriteFloat,
}

func init() {
	// Assigned here rather than in the literals: the handlers compare cmd
	// against these variables, which would otherwise be an initialization cycle.
	probeReadCoilsCmd.RunE = runReadBits
	probeReadHoldingCmd.RunE = runReadRegisters

	pf := probeCmd.PersistentFlags()
	pf.StringP("host", "H", "localhost", "Gateway host")
	pf.IntP("port", "p", modbus.DefaultPort, "Gateway port")
	pf.Uint8P("unit", "u", 1, "Modbus unit ID")
	pf.DurationP("timeout", "t", 5*time.Second, "Operation timeout")

	viper.BindPFlag("probe.host", pf.Lookup("host"))
	viper.BindPFlag("probe.port", pf.Lookup("port"))
	viper.BindPFlag("probe.unit", pf.Lookup("unit"))
	viper.BindPFlag("probe.timeout", pf.Lookup("timeout"))

	probeReadCmd.AddCommand(probeReadCoilsCmd, probeReadDiscreteCmd, probeReadHoldingCmd, probeReadInputCmd)
	probeWriteCmd.AddCommand(probeWriteCoilCmd, probeWriteCoilsCmd, probeWriteRegisterCmd, probeWriteFloatCmd)
	probeCmd.AddCommand(probeReadCmd, probeWriteCmd)

	for _, cmd := range []*cobra.Command{probeReadCoilsCmd, probeReadDiscreteCmd} {
		cmd.Flags().Uint16VarP(&probeAddr, "address", "a", 1, "Starting address")
		cmd.Flags().Uint16VarP(&probeBitCount, "count", "c", 4, "Number of channels to read")
	}
	for _, cmd := range []*cobra.Command{probeReadHoldingCmd, probeReadInputCmd} {
		cmd.Flags().Uint16VarP(&probeAddr, "address", "a", 1, "Starting address")
		cmd.Flags().Uint16VarP(&probeRegCount, "count", "c", 8, "Number of registers to read")
		cmd.Flags().StringVarP(&probeFormat, "format", "f", "float32", "Data format: float32, uint16")
	}
	for _, cmd := range []*cobra.Command{probeWriteCoilCmd, probeWriteCoilsCmd, probeWriteRegisterCmd, probeWriteFloatCmd} {
		cmd.Flags().Uint16VarP(&probeAddr, "address", "a", 1, "Starting address")
		cmd.Flags().StringSliceVarP(&probeValues, "values", "V", nil, "Values to write")
		cmd.MarkFlagRequired("values")
	}
}

func probeAddress() string {
	return fmt.Sprintf("%s:%d", viper.GetString("probe.host"), viper.GetInt("probe.port"))
}

// withClient connects to the gateway, runs fn and closes the connection.
func withClient(fn func(c mb.Client) error) error {
	handler := mb.NewTCPClientHandler(probeAddress())
	handler.Timeout = viper.GetDuration("probe.timeout")
	handler.SlaveId = byte(viper.GetUint("probe.unit"))

	if err := handler.Connect(); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer handler.Close()

	return fn(mb.NewClient(handler))
}

func runReadBits(cmd *cobra.Command, args []string) error {
	return withClient(func(c mb.Client) error {
		var (
			data  []byte
			err   error
			title string
		)
		switch cmd {
		case probeReadCoilsCmd:
			title = "Digital Outputs"
			data, err = c.ReadCoils(probeAddr, probeBitCount)
		default:
			title = "Digital Inputs"
			data, err = c.ReadDiscreteInputs(probeAddr, probeBitCount)
		}
		if err != nil {
			return fmt.Errorf("read failed: %w", describeError(err))
		}
		return outputBoolValues(title, probeAddr, unpackBits(data, int(probeBitCount)))
	})
}

func runReadRegisters(cmd *cobra.Command, args []string) error {
	if probeFormat != "float32" && probeFormat != "uint16" {
		return fmt.Errorf("unknown format %q", probeFormat)
	}
	return withClient(func(c mb.Client) error {
		var (
			data  []byte
			err   error
			title string
		)
		switch cmd {
		case probeReadHoldingCmd:
			title = "Analog Outputs"
			data, err = c.ReadHoldingRegisters(probeAddr, probeRegCount)
		default:
			title = "Analog Inputs"
			data, err = c.ReadInputRegisters(probeAddr, probeRegCount)
		}
		if err != nil {
			return fmt.Errorf("read failed: %w", describeError(err))
		}
		return outputRegisterValues(title, probeAddr, bytesToUint16(data), probeFormat)
	})
}

func runWriteCoil(cmd *cobra.Command, args []string) error {
	value, err := parseBoolValue(probeValues[0])
	if err != nil {
		return fmt.Errorf("invalid coil value: %w", err)
	}
	return withClient(func(c mb.Client) error {
		v := modbus.CoilOff
		if value {
			v = modbus.CoilOn
		}
		if _, err := c.WriteSingleCoil(probeAddr, v); err != nil {
			return fmt.Errorf("write coil failed: %w", describeError(err))
		}
		outputSuccess("Wrote coil %d = %v", probeAddr, value)
		return nil
	})
}

func runWriteCoils(cmd *cobra.Command, args []string) error {
	values, err := parseBoolValues(probeValues)
	if err != nil {
		return fmt.Errorf("invalid coil values: %w", err)
	}
	if len(values) == 0 {
		return fmt.Errorf("at least one value required")
	}
	return withClient(func(c mb.Client) error {
		if _, err := c.WriteMultipleCoils(probeAddr, uint16(len(values)), packBits(values)); err != nil {
			return fmt.Errorf("write coils failed: %w", describeError(err))
		}
		outputSuccess("Wrote %d coils starting at %d", len(values), probeAddr)
		return nil
	})
}

func runWriteRegister(cmd *cobra.Command, args []string) error {
	value, err := parseUint16Value(probeValues[0])
	if err != nil {
		return fmt.Errorf("invalid register value: %w", err)
	}
	return withClient(func(c mb.Client) error {
		if _, err := c.WriteSingleRegister(probeAddr, value); err != nil {
			return fmt.Errorf("write register failed: %w", describeError(err))
		}
		outputSuccess("Wrote register %d = %d (0x%04X)", probeAddr, value, value)
		return nil
	})
}

func runWriteFloat(cmd *cobra.Command, args []string) error {
	values, err := parseFloatValues(probeValues)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("at least one value required")
	}
	return withClient(func(c mb.Client) error {
		if _, err := c.WriteMultipleRegisters(probeAddr, uint16(2*len(values)), encodeFloats(values)); err != nil {
			return fmt.Errorf("write float failed: %w", describeError(err))
		}
		outputSuccess("Wrote %d channels starting at channel %d", len(values), channelOf(probeAddr))
		return nil
	})
}

// describeError turns an exception returned by the gateway into a
// ModbusError, with a hint for the gateway-specific cases.
func describeError(err error) error {
	var mbErr *mb.ModbusError
	if !errors.As(err, &mbErr) {
		return err
	}
	exc := modbus.NewModbusError(
		modbus.FunctionCode(mbErr.FunctionCode&0x7F),
		modbus.ExceptionCode(mbErr.ExceptionCode))

	switch {
	case modbus.IsException(exc, modbus.ExceptionServerDeviceFailure):
		return fmt.Errorf("%w (channel disabled)", exc)
	case errors.Is(exc, modbus.NewModbusError(0, modbus.ExceptionIllegalDataAddress)):
		return fmt.Errorf("%w (address out of range or not on a channel boundary)", exc)
	}
	return exc
}

func parseBoolValue(s string) (bool, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "1", "true", "on", "yes":
		return true, nil
	case "0", "false", "off", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

func parseBoolValues(values []string) ([]bool, error) {
	var result []bool
	for _, p := range splitValues(values) {
		b, err := parseBoolValue(p)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

func parseUint16Value(s string) (uint16, error) {
	s = strings.TrimSpace(s)

	var value uint64
	var err error

	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		value, err = strconv.ParseUint(s[2:], 16, 16)
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		value, err = strconv.ParseUint(s[2:], 2, 16)
	default:
		value, err = strconv.ParseUint(s, 10, 16)
	}

	if err != nil {
		return 0, fmt.Errorf("invalid uint16 value: %s", s)
	}
	return uint16(value), nil
}

func parseFloatValues(values []string) ([]float32, error) {
	var result []float32
	for _, p := range splitValues(values) {
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid float value: %s", p)
		}
		result = append(result, float32(f))
	}
	return result, nil
}

// splitValues splits every flag value on commas and spaces.
func splitValues(values []string) []string {
	var parts []string
	for _, v := range values {
		parts = append(parts, strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' '
		})...)
	}
	return parts
}

func unpackBits(data []byte, n int) []bool {
	out := make([]bool, 0, n)
	for i := 0; i < n && i/8 < len(data); i++ {
		out = append(out, data[i/8]&(1<<(i%8)) != 0)
	}
	return out
}

func packBits(values []bool) []byte {
	out := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

func bytesToUint16(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return out
}

func encodeFloats(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}
