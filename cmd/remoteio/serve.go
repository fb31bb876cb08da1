package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	modbus "github.com/edgeo-scada/remote-io"
	"github.com/edgeo-scada/remote-io/board"
	"github.com/edgeo-scada/remote-io/bridge"
	"github.com/edgeo-scada/remote-io/internal/config"
	"github.com/edgeo-scada/remote-io/internal/exporter"
	"github.com/edgeo-scada/remote-io/netif"
	"github.com/edgeo-scada/remote-io/registers"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Modbus/TCP listener and the telemetry bridge",
	Long: `Run the gateway: initialise the board, wait for the network, then serve
Modbus/TCP requests and keep a broker session for configuration and telemetry.

Every setting can come from the config file, from REMOTEIO_* environment
variables (dots replaced by underscores) or from the flags below.`,
	Example: `  remoteio serve
  remoteio serve --listen :1502 --broker tcp://10.0.0.2:1883
  REMOTEIO_BROKER_QOS=1 remoteio serve --metrics-listen :9102`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("listen", ":502", "Modbus/TCP listen address")
	f.String("broker", "tcp://mqtt.eclipseprojects.io:1883", "MQTT broker URL")
	f.String("client-id", "", "MQTT client id (default: generated)")
	f.String("topic-root", bridge.DefaultTopicRoot, "Root of the MQTT topic tree")
	f.Int("qos", 2, "MQTT QoS for subscriptions and publishes")
	f.String("metrics-listen", "", "Prometheus metrics listen address (empty disables)")
	f.String("interface", "", "Network interface that must be up before serving (empty: any)")

	viper.BindPFlag("modbus.listen", f.Lookup("listen"))
	viper.BindPFlag("broker.url", f.Lookup("broker"))
	viper.BindPFlag("broker.client_id", f.Lookup("client-id"))
	viper.BindPFlag("broker.topic_root", f.Lookup("topic-root"))
	viper.BindPFlag("broker.qos", f.Lookup("qos"))
	viper.BindPFlag("metrics.listen", f.Lookup("metrics-listen"))
	viper.BindPFlag("network.interface", f.Lookup("interface"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sim := board.NewSim()
	if err := board.Init(sim); err != nil {
		return fmt.Errorf("board init: %w", err)
	}
	logger.Info("board ready", slog.String("board", "sim"))

	reach := netif.InterfaceProbe{Name: cfg.Network.Interface}
	logger.Info("waiting for network", slog.String("interface", cfg.Network.Interface))
	if err := netif.WaitUp(ctx, reach, cfg.Network.Poll); err != nil {
		return nil
	}

	store := registers.NewStore()

	dispatcher := modbus.NewDispatcher(store, sim, logger.With(slog.String("component", "modbus")))
	metrics := modbus.NewServerMetrics()
	server := modbus.NewServer(dispatcher,
		modbus.WithServerMetrics(metrics),
		modbus.WithServerLogger(logger.With(slog.String("component", "listener"))),
		modbus.WithAcceptPoll(cfg.Modbus.AcceptPoll),
		modbus.WithRebuildDelay(cfg.Modbus.RebuildDelay),
		modbus.WithReadTimeout(cfg.Modbus.ReadTimeout),
	)

	br := bridge.New(
		bridge.NewPahoDialer(cfg.Broker.Paho(), logger.With(slog.String("component", "paho"))),
		store,
		bridge.WithLogger(logger.With(slog.String("component", "bridge"))),
		bridge.WithTopics(bridge.DefaultTopics(cfg.Broker.TopicRoot)),
		bridge.WithQoS(byte(cfg.Broker.QoS)),
		bridge.WithRetain(cfg.Broker.Retain),
		bridge.WithReconnectDelay(cfg.Broker.ReconnectDelay),
		bridge.WithPollInterval(cfg.Network.Poll),
		bridge.WithSampler(registers.NewSampler(store, sim)),
		bridge.WithReachability(reach),
		bridge.WithQueue(bridge.NewQueue(cfg.Broker.QueueDepth)),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Serve(gctx, cfg.Modbus.Listen); !errors.Is(err, modbus.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return br.Run(gctx)
	})

	if cfg.Metrics.Listen != "" {
		collector := exporter.NewCollector(metrics, br.Metrics(), store)
		httpServer := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           exporter.Handler(exporter.NewRegistry(collector)),
			ReadHeaderTimeout: shutdownTimeout,
		}

		g.Go(func() error {
			logger.Info("metrics endpoint listening", slog.String("addr", cfg.Metrics.Listen))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(sctx)
		})
	}

	err := g.Wait()
	logger.Info("gateway stopped",
		slog.Any("modbus", metrics.Collect()),
		slog.Any("bridge", br.Metrics().Collect()))
	return err
}
