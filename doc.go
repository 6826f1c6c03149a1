// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dhtsense is a container for the DHT11/DHT22 temperature and
// humidity sensor driver and the tools built on it.
//
// The driver is in package dht. dhtread reads a sensor once; dhtd polls
// sensors and serves the readings over HTTP, sqlite and MQTT.
package dhtsense
