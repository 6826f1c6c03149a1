// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mqttpub publishes samples to an MQTT broker.
//
// Each sample is a retained JSON message on <topic>/<sensor>, so a client
// subscribing later gets the last reading right away.
package mqttpub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/GermanBionicSystems/dhtsense/internal/config"
	"github.com/GermanBionicSystems/dhtsense/internal/monitor"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// client is the part of mqtt.Client used here.
type client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher is a monitor.Sink publishing to MQTT.
type Publisher struct {
	client client
	topic  string
	log    *slog.Logger

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Message is the payload of a sample.
type Message struct {
	Sensor       string    `json:"sensor"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	TemperatureC float64   `json:"temperature_c"`
	HumidityPct  float64   `json:"humidity_pct"`
}

// New returns a Publisher for the broker in cfg. Call Connect before
// publishing.
func New(cfg config.MQTT, log *slog.Logger) *Publisher {
	p := &Publisher{
		topic:  cfg.Topic,
		log:    log,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL())
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		log.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		log.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Connect waits for the first connection to the broker. The client keeps
// retrying in the background after ctx is done.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return errors.New("mqttpub: publisher closed")
	default:
	}
	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqttpub: connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return errors.New("mqttpub: publisher closed")
		default:
		}
	}
}

// Record implements monitor.Sink.
func (p *Publisher) Record(ctx context.Context, s monitor.Sample) error {
	if !p.IsConnected() {
		return errors.New("mqttpub: not connected")
	}
	topic, payload, err := p.message(s)
	if err != nil {
		return err
	}
	token := p.client.Publish(topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqttpub: publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqttpub: publish: %w", err)
	}
	p.log.Debug("published sample", "topic", topic)
	return nil
}

func (p *Publisher) message(s monitor.Sample) (string, []byte, error) {
	m := Message{
		Sensor:       s.Sensor,
		Type:         s.Reading.Variant().String(),
		Timestamp:    s.Time.UTC(),
		TemperatureC: math.Round(float64(s.Reading.TemperatureCelsius())*10) / 10,
		HumidityPct:  math.Round(float64(s.Reading.HumidityPercent())*10) / 10,
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", nil, fmt.Errorf("mqttpub: marshal: %w", err)
	}
	return p.topic + "/" + s.Sensor, b, nil
}

// IsConnected returns whether the publisher is connected.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Close disconnects from the broker. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.client.Disconnect(250)
	p.setConnected(false)
	p.log.Info("mqtt disconnected")
	return nil
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

var _ monitor.Sink = &Publisher{}
