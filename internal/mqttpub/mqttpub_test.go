// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mqttpub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/GermanBionicSystems/dhtsense/dht"
	"github.com/GermanBionicSystems/dhtsense/internal/config"
	"github.com/GermanBionicSystems/dhtsense/internal/monitor"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { <-t.done; return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	connected   bool
	connectErr  error
	publishErr  error
	published   []published
	disconnects int
}

func (c *fakeClient) Connect() mqtt.Token { return newToken(c.connectErr) }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, published{topic, qos, retained, payload.([]byte)})
	return newToken(c.publishErr)
}

func (c *fakeClient) IsConnected() bool { return c.connected }
func (c *fakeClient) Disconnect(uint)   { c.disconnects++; c.connected = false }

func newTestPublisher(c *fakeClient) *Publisher {
	return &Publisher{
		client: c,
		topic:  "home/dht",
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		stopCh: make(chan struct{}),
	}
}

func sample(t *testing.T) monitor.Sample {
	r, err := dht.Decode([5]byte{0x02, 0x8c, 0x01, 0x5f, 0xee}, dht.DHT22)
	if err != nil {
		t.Fatal(err)
	}
	return monitor.Sample{Sensor: "porch", Reading: r, Time: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)}
}

func TestRecord(t *testing.T) {
	c := &fakeClient{connected: true}
	p := newTestPublisher(c)
	if err := p.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	p.setConnected(true)
	if err := p.Record(context.Background(), sample(t)); err != nil {
		t.Fatal(err)
	}
	if len(c.published) != 1 {
		t.Fatalf("%d messages", len(c.published))
	}
	m := c.published[0]
	if m.topic != "home/dht/porch" || m.qos != 1 || !m.retained {
		t.Fatalf("message %+v", m)
	}
	var got Message
	if err := json.Unmarshal(m.payload, &got); err != nil {
		t.Fatal(err)
	}
	expected := Message{Sensor: "porch", Type: "DHT22", Timestamp: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC), TemperatureC: 35.1, HumidityPct: 65.2}
	if got != expected {
		t.Fatalf("payload %+v", got)
	}
}

func TestRecord_Errors(t *testing.T) {
	c := &fakeClient{}
	p := newTestPublisher(c)
	if err := p.Record(context.Background(), sample(t)); err == nil {
		t.Fatal("expected error while disconnected")
	}
	c.connected = true
	p.setConnected(true)
	c.publishErr = errors.New("broker gone")
	if err := p.Record(context.Background(), sample(t)); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestConnect_Error(t *testing.T) {
	p := newTestPublisher(&fakeClient{connectErr: errors.New("refused")})
	if err := p.Connect(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestClose(t *testing.T) {
	c := &fakeClient{connected: true}
	p := newTestPublisher(c)
	p.setConnected(true)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if c.disconnects != 2 || p.IsConnected() {
		t.Fatalf("disconnects=%d connected=%t", c.disconnects, p.IsConnected())
	}
	if err := p.Connect(context.Background()); err == nil {
		t.Fatal("expected error after Close")
	}
}

func TestNew(t *testing.T) {
	p := New(config.MQTT{Broker: "localhost", Port: 1883, ClientID: "dhtd", Topic: "dht"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if p.IsConnected() {
		t.Fatal("connected before Connect")
	}
	if p.topic != "dht" {
		t.Fatalf("topic = %q", p.topic)
	}
}
