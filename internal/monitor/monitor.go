// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package monitor polls DHT sensors on a schedule and fans the readings out
// to sinks and subscribers.
//
// A failed read is retried with an exponential backoff that never waits less
// than the sensor's minimum interval between reads. Timeout and checksum
// errors are transient; a pin IO error ends the attempt.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/GermanBionicSystems/dhtsense/dht"
	"github.com/cenkalti/backoff/v4"
)

// Reader reads a sensor once. *dht.Dev implements it.
type Reader interface {
	Read() (dht.Reading, error)
}

// Sensor is a sensor to poll.
type Sensor struct {
	Name     string
	Reader   Reader
	Variant  dht.Variant
	Interval time.Duration
	// Retries is the number of reads after a failed one within a poll.
	Retries int
}

// Sample is a successful poll.
type Sample struct {
	Sensor   string
	Reading  dht.Reading
	Time     time.Time
	Attempts int
}

// Status is the state of a sensor.
type Status struct {
	Name    string
	Variant dht.Variant
	// Reading is the last successful reading, taken at Time. Time is zero
	// until the first one.
	Reading dht.Reading
	Time    time.Time
	// Err is the error of the last poll, if it failed, at ErrTime.
	Err     error
	ErrTime time.Time
	// Polls and Failures count polls; Reads counts every attempt.
	Polls    uint64
	Failures uint64
	Reads    uint64
}

// Sink receives every sample.
type Sink interface {
	Record(ctx context.Context, s Sample) error
}

// Monitor polls a set of sensors.
type Monitor struct {
	log     *slog.Logger
	sensors []Sensor
	sinks   []Sink

	newBackOff func(s *Sensor) backoff.BackOff
	now        func() time.Time

	mu     sync.RWMutex
	status map[string]*Status
	subs   map[chan Sample]struct{}
}

// New returns a Monitor for sensors. Sensor names must be unique.
func New(log *slog.Logger, sensors []Sensor, sinks ...Sink) (*Monitor, error) {
	if log == nil {
		log = slog.Default()
	}
	m := &Monitor{
		log:        log,
		sensors:    make([]Sensor, len(sensors)),
		sinks:      sinks,
		newBackOff: readBackOff,
		now:        time.Now,
		status:     make(map[string]*Status, len(sensors)),
		subs:       map[chan Sample]struct{}{},
	}
	copy(m.sensors, sensors)
	for _, s := range sensors {
		switch {
		case s.Name == "":
			return nil, errors.New("monitor: sensor name is required")
		case s.Reader == nil:
			return nil, fmt.Errorf("monitor: sensor %s has no reader", s.Name)
		case s.Interval <= 0:
			return nil, fmt.Errorf("monitor: sensor %s has no interval", s.Name)
		case s.Retries < 0:
			return nil, fmt.Errorf("monitor: sensor %s has negative retries", s.Name)
		}
		if _, ok := m.status[s.Name]; ok {
			return nil, fmt.Errorf("monitor: duplicate sensor %s", s.Name)
		}
		m.status[s.Name] = &Status{Name: s.Name, Variant: s.Variant}
	}
	return m, nil
}

// readBackOff starts at the sensor's minimum interval between reads.
func readBackOff(s *Sensor) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.Variant.MinInterval()
	b.RandomizationFactor = 0
	b.Multiplier = 1.5
	b.MaxInterval = s.Interval
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.MaxElapsedTime = 0
	return b
}

// Run polls every sensor until ctx is done. Each sensor is read immediately,
// then Interval after the end of the previous poll, retries included.
func (m *Monitor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := range m.sensors {
		wg.Add(1)
		go func(s *Sensor) {
			defer wg.Done()
			m.watch(ctx, s)
		}(&m.sensors[i])
	}
	m.log.Info("monitor started", "sensors", len(m.sensors))
	wg.Wait()
	return nil
}

func (m *Monitor) watch(ctx context.Context, s *Sensor) {
	t := time.NewTimer(s.Interval)
	defer t.Stop()
	for {
		sample, err := m.poll(ctx, s)
		if err == nil {
			m.publish(ctx, sample)
		} else if ctx.Err() == nil {
			m.log.Warn("read failed", "sensor", s.Name, "error", err)
		}
		// Wait a full interval from the end of the poll. Reset drops an
		// expiry that happened during the retries.
		t.Reset(s.Interval)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// poll reads s, retrying transient failures, and updates its status.
func (m *Monitor) poll(ctx context.Context, s *Sensor) (Sample, error) {
	attempts := 0
	op := func() (dht.Reading, error) {
		attempts++
		r, err := s.Reader.Read()
		if err != nil && !dht.IsTimeout(err) && !dht.IsChecksum(err) {
			return r, backoff.Permanent(err)
		}
		return r, err
	}
	notify := func(err error, d time.Duration) {
		m.log.Debug("retrying read", "sensor", s.Name, "attempt", attempts, "wait", d, "error", err)
	}
	// WithMaxRetries(b, 0) retries forever.
	var b backoff.BackOff = &backoff.StopBackOff{}
	if s.Retries > 0 {
		b = backoff.WithMaxRetries(m.newBackOff(s), uint64(s.Retries))
	}
	r, err := backoff.RetryNotifyWithData(op, backoff.WithContext(b, ctx), notify)

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status[s.Name]
	st.Polls++
	st.Reads += uint64(attempts)
	if err != nil {
		st.Failures++
		st.Err = err
		st.ErrTime = now
		return Sample{}, fmt.Errorf("%s: %w", s.Name, err)
	}
	st.Reading = r
	st.Time = now
	st.Err = nil
	st.ErrTime = time.Time{}
	return Sample{Sensor: s.Name, Reading: r, Time: now, Attempts: attempts}, nil
}

func (m *Monitor) publish(ctx context.Context, s Sample) {
	m.log.Debug("sample", "sensor", s.Sensor, "temperature_c", s.Reading.TemperatureCelsius(), "humidity_pct", s.Reading.HumidityPercent(), "attempts", s.Attempts)
	for _, sink := range m.sinks {
		if err := sink.Record(ctx, s); err != nil {
			m.log.Warn("sink failed", "sensor", s.Sensor, "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.subs {
		select {
		case ch <- s:
		default:
			// Slow subscribers miss samples.
		}
	}
}

// Subscribe returns a channel receiving every sample, and a function to
// close it.
func (m *Monitor) Subscribe() (<-chan Sample, func()) {
	ch := make(chan Sample, 16)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			close(ch)
			m.mu.Unlock()
		})
	}
}

// Snapshot returns the status of every sensor, sorted by name.
func (m *Monitor) Snapshot() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.status))
	for _, st := range m.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the status of the named sensor.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.status[name]
	if !ok {
		return Status{}, false
	}
	return *st, true
}
