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

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// PahoConfig configures broker sessions opened by PahoDialer.
type PahoConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	CleanSession   bool

	WillTopic    string
	WillMessage  string
	WillQoS      byte
	WillRetained bool
}

// PahoDialer opens sessions with the Eclipse Paho MQTT client. Automatic
// reconnection is disabled; the bridge owns the reconnect policy.
type PahoDialer struct {
	cfg    PahoConfig
	logger *slog.Logger
}

// NewPahoDialer creates a dialer for cfg.
func NewPahoDialer(cfg PahoConfig, logger *slog.Logger) *PahoDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PahoDialer{cfg: cfg, logger: logger}
}

func (d *PahoDialer) clientOptions(onLost func(error)) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(d.cfg.Broker).
		SetClientID(d.cfg.ClientID).
		SetCleanSession(d.cfg.CleanSession).
		SetAutoReconnect(false).
		SetConnectRetry(false)
	if d.cfg.KeepAlive > 0 {
		opts.SetKeepAlive(d.cfg.KeepAlive)
	}
	if d.cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(d.cfg.ConnectTimeout)
	}
	if d.cfg.Username != "" {
		opts.SetUsername(d.cfg.Username)
		opts.SetPassword(d.cfg.Password)
	}
	if d.cfg.WillTopic != "" {
		opts.SetWill(d.cfg.WillTopic, d.cfg.WillMessage, d.cfg.WillQoS, d.cfg.WillRetained)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		onLost(err)
	})
	return opts
}

// Dial connects to the broker.
func (d *PahoDialer) Dial(ctx context.Context, onLost func(error)) (Session, error) {
	client := mqtt.NewClient(d.clientOptions(onLost))

	d.logger.Debug("connecting to broker",
		slog.String("broker", d.cfg.Broker),
		slog.String("client_id", d.cfg.ClientID))

	if err := wait(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrSessionFailure, d.cfg.Broker, err)
	}
	return &pahoSession{client: client}, nil
}

type pahoSession struct {
	client mqtt.Client
}

func (s *pahoSession) Subscribe(ctx context.Context, filters map[string]byte, handler MessageHandler) error {
	tok := s.client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if err := wait(ctx, tok); err != nil {
		return fmt.Errorf("%w: subscribe: %v", ErrSessionFailure, err)
	}
	return nil
}

func (s *pahoSession) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	if err := wait(ctx, s.client.Publish(topic, qos, retained, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (s *pahoSession) Close() {
	s.client.Disconnect(250)
}

func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
