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

// Package config loads the gateway configuration from file, environment
// and flags through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/edgeo-scada/remote-io/bridge"
)

// EnvPrefix prefixes every environment override, e.g. REMOTEIO_BROKER_URL.
const EnvPrefix = "REMOTEIO"

// ClientIDPrefix prefixes generated broker client identifiers.
const ClientIDPrefix = "remoteio-"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid")

// Config is the complete gateway configuration.
type Config struct {
	Modbus  ModbusConfig  `mapstructure:"modbus"`
	Broker  BrokerConfig  `mapstructure:"broker"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Network NetworkConfig `mapstructure:"network"`
}

// ModbusConfig configures the Modbus/TCP listener.
type ModbusConfig struct {
	Listen       string        `mapstructure:"listen"`
	AcceptPoll   time.Duration `mapstructure:"accept_poll"`
	RebuildDelay time.Duration `mapstructure:"rebuild_delay"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
}

// BrokerConfig configures the telemetry bridge and its broker session.
type BrokerConfig struct {
	URL            string        `mapstructure:"url"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	TopicRoot      string        `mapstructure:"topic_root"`
	QoS            int           `mapstructure:"qos"`
	Retain         bool          `mapstructure:"retain"`
	WillTopic      string        `mapstructure:"will_topic"`
	WillMessage    string        `mapstructure:"will_message"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	QueueDepth     int           `mapstructure:"queue_depth"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Listen
// disables it.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// NetworkConfig configures the reachability probe.
type NetworkConfig struct {
	Interface string        `mapstructure:"interface"`
	Poll      time.Duration `mapstructure:"poll"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("modbus.listen", ":502")
	v.SetDefault("modbus.accept_poll", 10*time.Millisecond)
	v.SetDefault("modbus.rebuild_delay", 100*time.Millisecond)
	v.SetDefault("modbus.read_timeout", time.Duration(0))

	v.SetDefault("broker.url", "tcp://mqtt.eclipseprojects.io:1883")
	v.SetDefault("broker.client_id", "")
	v.SetDefault("broker.username", "")
	v.SetDefault("broker.password", "")
	v.SetDefault("broker.keep_alive", 25*time.Second)
	v.SetDefault("broker.connect_timeout", 10*time.Second)
	v.SetDefault("broker.topic_root", bridge.DefaultTopicRoot)
	v.SetDefault("broker.qos", 2)
	v.SetDefault("broker.retain", true)
	v.SetDefault("broker.will_topic", "Client")
	v.SetDefault("broker.will_message", "Client Stopped")
	v.SetDefault("broker.reconnect_delay", time.Second)
	v.SetDefault("broker.queue_depth", bridge.DefaultQueueDepth)

	v.SetDefault("metrics.listen", "")

	v.SetDefault("network.interface", "")
	v.SetDefault("network.poll", time.Second)
}

// BindEnv makes v read REMOTEIO_* environment variables, with dots in key
// names replaced by underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the configuration held by v. A missing broker
// client id is generated.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Broker.ClientID == "" {
		cfg.Broker.ClientID = ClientIDPrefix + uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the gateway cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Modbus.Listen == "":
		return fmt.Errorf("%w: modbus.listen is empty", ErrInvalidConfig)
	case c.Modbus.AcceptPoll <= 0:
		return fmt.Errorf("%w: modbus.accept_poll must be positive", ErrInvalidConfig)
	case c.Modbus.RebuildDelay < 0:
		return fmt.Errorf("%w: modbus.rebuild_delay is negative", ErrInvalidConfig)
	case c.Modbus.ReadTimeout < 0:
		return fmt.Errorf("%w: modbus.read_timeout is negative", ErrInvalidConfig)
	case c.Broker.URL == "":
		return fmt.Errorf("%w: broker.url is empty", ErrInvalidConfig)
	case c.Broker.QoS < 0 || c.Broker.QoS > 2:
		return fmt.Errorf("%w: broker.qos %d not in 0..2", ErrInvalidConfig, c.Broker.QoS)
	case c.Broker.QueueDepth < 1:
		return fmt.Errorf("%w: broker.queue_depth must be at least 1", ErrInvalidConfig)
	case c.Broker.TopicRoot == "":
		return fmt.Errorf("%w: broker.topic_root is empty", ErrInvalidConfig)
	case c.Network.Poll <= 0:
		return fmt.Errorf("%w: network.poll must be positive", ErrInvalidConfig)
	}
	return nil
}

// Paho returns the session settings for the broker client.
func (b BrokerConfig) Paho() bridge.PahoConfig {
	return bridge.PahoConfig{
		Broker:         b.URL,
		ClientID:       b.ClientID,
		Username:       b.Username,
		Password:       b.Password,
		KeepAlive:      b.KeepAlive,
		ConnectTimeout: b.ConnectTimeout,
		CleanSession:   true,
		WillTopic:      b.WillTopic,
		WillMessage:    b.WillMessage,
		WillQoS:        byte(b.QoS),
	}
}
