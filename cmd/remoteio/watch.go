package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	mb "github.com/goburrow/modbus"
	"github.com/spf13/cobra"
)

var (
	watchInterval  time.Duration
	watchCount     int
	watchShowDiff  bool
	watchClearTerm bool
	watchLogFile   string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously monitor the channels of a gateway",
	Long: `Poll one channel group of a gateway at a fixed interval and show its four
channels, highlighting changes between polls.`,
	Example: `  # Watch the analog inputs every 500ms
  remoteio probe watch ai -i 500ms -H 192.168.1.50

  # Watch the digital outputs and log to file
  remoteio probe watch do -i 2s --log outputs.csv`,
}

var watchAnalogInputsCmd = &cobra.Command{
	Use:     "analog-inputs",
	Aliases: []string{"ai"},
	Short:   "Watch the analog inputs (input registers)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch("Analog Inputs", func(c mb.Client) ([]float64, error) {
			return readFloatChannels(c.ReadInputRegisters)
		})
	},
}

var watchAnalogOutputsCmd = &cobra.Command{
	Use:     "analog-outputs",
	Aliases: []string{"ao"},
	Short:   "Watch the analog outputs (holding registers)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch("Analog Outputs", func(c mb.Client) ([]float64, error) {
			return readFloatChannels(c.ReadHoldingRegisters)
		})
	},
}

var watchDigitalInputsCmd = &cobra.Command{
	Use:     "digital-inputs",
	Aliases: []string{"di"},
	Short:   "Watch the digital inputs (discrete inputs)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch("Digital Inputs", func(c mb.Client) ([]float64, error) {
			return readBitChannels(c.ReadDiscreteInputs)
		})
	},
}

var watchDigitalOutputsCmd = &cobra.Command{
	Use:     "digital-outputs",
	Aliases: []string{"do"},
	Short:   "Watch the digital outputs (coils)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch("Digital Outputs", func(c mb.Client) ([]float64, error) {
			return readBitChannels(c.ReadCoils)
		})
	},
}

func init() {
	probeCmd.AddCommand(watchCmd)
	watchCmd.AddCommand(watchAnalogInputsCmd, watchAnalogOutputsCmd, watchDigitalInputsCmd, watchDigitalOutputsCmd)

	f := watchCmd.PersistentFlags()
	f.DurationVarP(&watchInterval, "interval", "i", 1*time.Second, "Poll interval")
	f.IntVarP(&watchCount, "iterations", "n", 0, "Number of iterations (0 = infinite)")
	f.BoolVar(&watchShowDiff, "diff", true, "Highlight changed values")
	f.BoolVar(&watchClearTerm, "clear", true, "Clear terminal between updates")
	f.StringVar(&watchLogFile, "log", "", "Log values to file (CSV format)")
}

type readFunc func(address, quantity uint16) ([]byte, error)

// readFloatChannels reads the four float32 channels of a register group.
func readFloatChannels(read readFunc) ([]float64, error) {
	data, err := read(1, 8)
	if err != nil {
		return nil, err
	}
	regs := bytesToUint16(data)
	out := make([]float64, 0, len(regs)/2)
	for i := 0; i+1 < len(regs); i += 2 {
		out = append(out, float64(math.Float32frombits(combineRegisters(regs[i], regs[i+1]))))
	}
	return out, nil
}

// readBitChannels reads the four channels of a bit group as 0 or 1.
func readBitChannels(read readFunc) ([]float64, error) {
	data, err := read(1, 4)
	if err != nil {
		return nil, err
	}
	bits := unpackBits(data, 4)
	out := make([]float64, len(bits))
	for i, b := range bits {
		if b {
			out[i] = 1
		}
	}
	return out, nil
}

// WatchState tracks one watch session.
type WatchState struct {
	title        string
	prev         []float64
	iteration    int
	logFile      *os.File
	startTime    time.Time
	errorCount   int
	successCount int
}

func runWatch(title string, read func(mb.Client) ([]float64, error)) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withClient(func(c mb.Client) error {
		state := &WatchState{title: title, startTime: time.Now()}
		if watchLogFile != "" {
			f, err := os.Create(watchLogFile)
			if err != nil {
				return fmt.Errorf("failed to create log file: %w", err)
			}
			defer f.Close()
			state.logFile = f
		}

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		for {
			values, err := read(c)
			if err != nil {
				state.errorCount++
				if verbose {
					fmt.Fprintf(os.Stderr, "read failed: %v\n", describeError(err))
				}
			} else if err := state.display(values, time.Now()); err != nil {
				return err
			}
			if watchCount > 0 && state.iteration >= watchCount {
				state.printSummary()
				return nil
			}

			select {
			case <-ctx.Done():
				fmt.Println("\n\nStopping watch...")
				state.printSummary()
				return nil
			case <-ticker.C:
			}
		}
	})
}

func (s *WatchState) display(values []float64, now time.Time) error {
	s.iteration++
	s.successCount++
	defer func() { s.prev = values }()

	if s.logFile != nil {
		s.logToFile(now, values)
	}

	if outputFmt == "json" {
		return json.NewEncoder(os.Stdout).Encode(struct {
			Timestamp string    `json:"timestamp"`
			Iteration int       `json:"iteration"`
			Group     string    `json:"group"`
			Values    []float64 `json:"values"`
		}{
			Timestamp: now.Format(time.RFC3339Nano),
			Iteration: s.iteration,
			Group:     s.title,
			Values:    values,
		})
	}

	if watchClearTerm && s.iteration > 1 {
		fmt.Print("\033[H\033[2J")
	}

	fmt.Printf("%s - Watching %s\n", color(colorBold, "REMOTE I/O WATCH"), s.title)
	fmt.Printf("Host: %s | Interval: %s\n", probeAddress(), watchInterval)
	fmt.Printf("Time: %s | Iteration: %d", now.Format("15:04:05.000"), s.iteration)
	if watchCount > 0 {
		fmt.Printf("/%d", watchCount)
	}
	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tVALUE\tCHANGE")
	fmt.Fprintln(w, "-------\t-----\t------")
	for i, v := range values {
		fmt.Fprintf(w, "%d\t%.1f\t%s\n", i+1, v, s.change(i, v))
	}
	return w.Flush()
}

func (s *WatchState) change(i int, v float64) string {
	if !watchShowDiff || s.prev == nil || i >= len(s.prev) {
		return ""
	}
	diff := v - s.prev[i]
	switch {
	case diff > 0:
		return color(colorGreen, fmt.Sprintf("%+.1f", diff))
	case diff < 0:
		return color(colorRed, fmt.Sprintf("%+.1f", diff))
	}
	return ""
}

func (s *WatchState) logToFile(ts time.Time, values []float64) {
	if s.iteration == 1 {
		header := "timestamp"
		for i := range values {
			header += fmt.Sprintf(",ch_%d", i+1)
		}
		fmt.Fprintln(s.logFile, header)
	}

	line := ts.Format(time.RFC3339)
	for _, v := range values {
		line += fmt.Sprintf(",%.1f", v)
	}
	fmt.Fprintln(s.logFile, line)
}

func (s *WatchState) printSummary() {
	duration := time.Since(s.startTime)
	fmt.Println()
	fmt.Println(color(colorBold, "Watch Summary"))
	fmt.Println(strings.Repeat("-", 30))
	fmt.Printf("Duration:    %s\n", duration.Round(time.Millisecond))
	fmt.Printf("Iterations:  %d\n", s.iteration)
	fmt.Printf("Success:     %d\n", s.successCount)
	fmt.Printf("Errors:      %d\n", s.errorCount)
	if s.iteration > 0 {
		fmt.Printf("Avg Rate:    %.2f reads/sec\n", float64(s.iteration)/duration.Seconds())
	}
}
