package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"
)

// Color codes
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBold  = "\033[1m"
)

func color(c, s string) string {
	if noColor {
		return s
	}
	return c + s + colorReset
}

func outputSuccess(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(color(colorGreen, "OK") + " " + msg)
}

type BoolResult struct {
	Address uint16 `json:"address"`
	Value   bool   `json:"value"`
}

type RegisterResult struct {
	Address uint16      `json:"address"`
	Raw     uint16      `json:"raw"`
	Hex     string      `json:"hex"`
	Value   interface{} `json:"value,omitempty"`
	Format  string      `json:"format,omitempty"`
}

func outputBoolValues(title string, startAddr uint16, values []bool) error {
	switch outputFmt {
	case "json":
		return outputBoolJSON(startAddr, values)
	default:
		return outputBoolTable(title, startAddr, values)
	}
}

func outputBoolTable(title string, startAddr uint16, values []bool) error {
	fmt.Printf("\n%s (Address %d-%d, Count: %d)\n",
		color(colorBold, title),
		startAddr,
		startAddr+uint16(len(values))-1,
		len(values))
	fmt.Println(strings.Repeat("-", 40))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tVALUE\tSTATUS")
	fmt.Fprintln(w, "-------\t-----\t------")

	for i, v := range values {
		addr := startAddr + uint16(i)
		valStr, statusStr := "0", color(colorRed, "OFF")
		if v {
			valStr, statusStr = "1", color(colorGreen, "ON")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", addr, valStr, statusStr)
	}
	w.Flush()
	fmt.Println()
	return nil
}

func outputBoolJSON(startAddr uint16, values []bool) error {
	results := make([]BoolResult, len(values))
	for i, v := range values {
		results[i] = BoolResult{
			Address: startAddr + uint16(i),
			Value:   v,
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func outputRegisterValues(title string, startAddr uint16, values []uint16, format string) error {
	switch outputFmt {
	case "json":
		return outputRegisterJSON(startAddr, values, format)
	default:
		return outputRegisterTable(title, startAddr, values, format)
	}
}

func outputRegisterTable(title string, startAddr uint16, values []uint16, format string) error {
	fmt.Printf("\n%s (Address %d-%d, Count: %d)\n",
		color(colorBold, title),
		startAddr,
		startAddr+uint16(len(values))-1,
		len(values))
	fmt.Println(strings.Repeat("-", 60))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	switch format {
	case "float32":
		fmt.Fprintln(w, "CHANNEL\tADDRESS\tVALUE\tHEX")
		fmt.Fprintln(w, "-------\t-------\t-----\t---")
		for i := 0; i+1 < len(values); i += 2 {
			addr := startAddr + uint16(i)
			bits := combineRegisters(values[i], values[i+1])
			fmt.Fprintf(w, "%d\t%d-%d\t%g\t0x%08X\n",
				channelOf(addr), addr, addr+1, math.Float32frombits(bits), bits)
		}
	default:
		fmt.Fprintln(w, "ADDRESS\tDECIMAL\tHEX\tBINARY")
		fmt.Fprintln(w, "-------\t-------\t---\t------")
		for i, v := range values {
			addr := startAddr + uint16(i)
			fmt.Fprintf(w, "%d\t%d\t0x%04X\t%016b\n", addr, v, v, v)
		}
	}

	w.Flush()
	fmt.Println()
	return nil
}

func outputRegisterJSON(startAddr uint16, values []uint16, format string) error {
	results := make([]RegisterResult, 0, len(values))

	switch format {
	case "float32":
		for i := 0; i+1 < len(values); i += 2 {
			bits := combineRegisters(values[i], values[i+1])
			results = append(results, RegisterResult{
				Address: startAddr + uint16(i),
				Raw:     values[i],
				Hex:     fmt.Sprintf("0x%08X", bits),
				Value:   math.Float32frombits(bits),
				Format:  format,
			})
		}
	default:
		for i, v := range values {
			results = append(results, RegisterResult{
				Address: startAddr + uint16(i),
				Raw:     v,
				Hex:     fmt.Sprintf("0x%04X", v),
				Value:   v,
				Format:  "uint16",
			})
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// channelOf returns the 1-based analog channel holding register addr.
func channelOf(addr uint16) int {
	return int(addr-1)/2 + 1
}

func combineRegisters(high, low uint16) uint32 {
	return uint32(high)<<16 | uint32(low)
}
