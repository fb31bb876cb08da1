package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/remote-io/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	noColor   bool
	outputFmt string

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "remoteio",
	Short: "Modbus/TCP remote I/O gateway with an MQTT telemetry bridge",
	Long: `remoteio exposes four digital and four analog channels in each direction
as a Modbus/TCP slave and mirrors channel configuration and telemetry over MQTT.

Examples:
  # Run the gateway with the default configuration
  remoteio serve

  # Run on a custom port with metrics enabled
  remoteio serve --listen :1502 --metrics-listen :9102

  # Read the four analog inputs as float32 channels
  remoteio probe read ir -a 1 -c 8 -H 192.168.1.50

  # Drive analog output 2 to 3.3
  remoteio probe write float -a 3 -V 3.3 -H 192.168.1.50`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.remoteio.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
}

func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".remoteio")
		v.SetConfigType("yaml")
	}

	config.BindEnv(v)

	if err := v.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
		}
	}
}
