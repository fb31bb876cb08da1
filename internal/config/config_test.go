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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	assert.NilError(t, err)

	assert.Equal(t, cfg.Modbus.Listen, ":502")
	assert.Equal(t, cfg.Modbus.AcceptPoll, 10*time.Millisecond)
	assert.Equal(t, cfg.Modbus.RebuildDelay, 100*time.Millisecond)
	assert.Equal(t, cfg.Broker.TopicRoot, "/cc3200/Meliora")
	assert.Equal(t, cfg.Broker.QoS, 2)
	assert.Assert(t, cfg.Broker.Retain)
	assert.Equal(t, cfg.Broker.WillTopic, "Client")
	assert.Equal(t, cfg.Broker.WillMessage, "Client Stopped")
	assert.Equal(t, cfg.Broker.QueueDepth, 10)
	assert.Equal(t, cfg.Metrics.Listen, "")
	assert.Check(t, strings.HasPrefix(cfg.Broker.ClientID, ClientIDPrefix))
	assert.Check(t, is.Len(cfg.Broker.ClientID, len(ClientIDPrefix)+36))
}

func TestGeneratedClientIDsDiffer(t *testing.T) {
	a, err := Load(newViper())
	assert.NilError(t, err)
	b, err := Load(newViper())
	assert.NilError(t, err)
	assert.Assert(t, a.Broker.ClientID != b.Broker.ClientID)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remoteio.yaml")
	err := os.WriteFile(path, []byte(`
modbus:
  listen: 127.0.0.1:1502
  rebuild_delay: 250ms
broker:
  url: tcp://broker.local:1883
  client_id: gateway-7
  qos: 1
  retain: false
metrics:
  listen: :9102
`), 0o600)
	assert.NilError(t, err)

	v := newViper()
	v.SetConfigFile(path)
	assert.NilError(t, v.ReadInConfig())

	cfg, err := Load(v)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Modbus.Listen, "127.0.0.1:1502")
	assert.Equal(t, cfg.Modbus.RebuildDelay, 250*time.Millisecond)
	assert.Equal(t, cfg.Modbus.AcceptPoll, 10*time.Millisecond)
	assert.Equal(t, cfg.Broker.URL, "tcp://broker.local:1883")
	assert.Equal(t, cfg.Broker.ClientID, "gateway-7")
	assert.Equal(t, cfg.Broker.QoS, 1)
	assert.Assert(t, !cfg.Broker.Retain)
	assert.Equal(t, cfg.Metrics.Listen, ":9102")
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("REMOTEIO_BROKER_TOPIC_ROOT", "/site/a")
	t.Setenv("REMOTEIO_MODBUS_LISTEN", ":15020")

	cfg, err := Load(newViper())
	assert.NilError(t, err)
	assert.Equal(t, cfg.Broker.TopicRoot, "/site/a")
	assert.Equal(t, cfg.Modbus.Listen, ":15020")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Modbus.Listen = "" }},
		{"zero accept poll", func(c *Config) { c.Modbus.AcceptPoll = 0 }},
		{"negative rebuild delay", func(c *Config) { c.Modbus.RebuildDelay = -time.Second }},
		{"empty broker", func(c *Config) { c.Broker.URL = "" }},
		{"qos too high", func(c *Config) { c.Broker.QoS = 3 }},
		{"zero queue", func(c *Config) { c.Broker.QueueDepth = 0 }},
		{"empty topic root", func(c *Config) { c.Broker.TopicRoot = "" }},
		{"zero network poll", func(c *Config) { c.Network.Poll = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(newViper())
			assert.NilError(t, err)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestPaho(t *testing.T) {
	cfg, err := Load(newViper())
	assert.NilError(t, err)

	p := cfg.Broker.Paho()
	assert.Equal(t, p.Broker, cfg.Broker.URL)
	assert.Equal(t, p.ClientID, cfg.Broker.ClientID)
	assert.Equal(t, p.WillTopic, "Client")
	assert.Equal(t, p.WillQoS, byte(2))
	assert.Assert(t, !p.WillRetained)
	assert.Assert(t, p.CleanSession)
}
