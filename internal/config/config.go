// runtime configuration
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package config holds the shared configuration record read by the
// acquisition goroutine and written by the network goroutine's command
// handlers. Per spec.md §9, each field is a single machine word stored and
// loaded atomically; no mutex guards the record, and a reader that races a
// writer observes either the old or the new value, never a torn one.
package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Compile-time defaults (spec.md §6).
const (
	DefaultChannel     = 0
	DefaultThresholdMv = 1650
	DefaultBatchSize   = 100
	UARTBaud           = 115200
	DefaultLocalPort   = 5000
	MaxBatchSize       = 500
)

// LogLevel is the severity ordering internal/logger filters on. It is
// defined here rather than in that package because logger imports config
// to read the current level.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
	LevelNone
)

// Config is the live, mutable configuration shared across goroutines.
type Config struct {
	channel     atomic.Int32
	thresholdMv atomic.Int32
	batchSize   atomic.Int32
	logLevel    atomic.Int32
	localPort   atomic.Int32
}

// New returns a Config initialized to the compile-time defaults, optionally
// overridden by the contents of path (if non-empty and present). The
// override happens once, at bootstrap, before the network and acquisition
// goroutines start; nothing re-reads the file afterwards.
func New(path string) (*Config, error) {
	c := &Config{}
	c.channel.Store(DefaultChannel)
	c.thresholdMv.Store(DefaultThresholdMv)
	c.batchSize.Store(DefaultBatchSize)
	c.logLevel.Store(int32(LevelInfo))
	c.localPort.Store(DefaultLocalPort)

	if path == "" {
		return c, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var override fileOverride
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	override.apply(c)
	return c, nil
}

// fileOverride is the optional bootstrap YAML shape.
type fileOverride struct {
	Channel     *int `yaml:"channel"`
	ThresholdMv *int `yaml:"threshold_mv"`
	BatchSize   *int `yaml:"batch_size"`
	LogLevel    *int `yaml:"log_level"`
	LocalPort   *int `yaml:"local_port"`
}

func (o fileOverride) apply(c *Config) {
	if o.Channel != nil {
		c.SetChannel(*o.Channel)
	}
	if o.ThresholdMv != nil {
		c.SetThresholdMv(*o.ThresholdMv)
	}
	if o.BatchSize != nil {
		c.SetBatchSize(*o.BatchSize)
	}
	if o.LogLevel != nil {
		c.logLevel.Store(int32(*o.LogLevel))
	}
	if o.LocalPort != nil {
		c.localPort.Store(int32(*o.LocalPort))
	}
}

// Channel returns the current ADC channel.
func (c *Config) Channel() int { return int(c.channel.Load()) }

// SetChannel validates and stores a new channel. Channel changes are always
// accepted; the caller (acquisition loop) is responsible for reinitializing
// the ADC and resetting the in-progress batch.
func (c *Config) SetChannel(ch int) error {
	if ch < 0 || ch > 7 {
		return fmt.Errorf("config: channel %d out of range [0,7]", ch)
	}
	c.channel.Store(int32(ch))
	return nil
}

// ThresholdMv returns the current threshold in millivolts.
func (c *Config) ThresholdMv() int { return int(c.thresholdMv.Load()) }

// SetThresholdMv validates and stores a new threshold in millivolts.
func (c *Config) SetThresholdMv(mv int) error {
	if mv < 0 || mv > 3300 {
		return fmt.Errorf("config: threshold %d mV out of range [0,3300]", mv)
	}
	c.thresholdMv.Store(int32(mv))
	return nil
}

// SetThresholdPercent converts a percentage to millivolts and stores it.
func (c *Config) SetThresholdPercent(pct int) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("config: threshold %d%% out of range [0,100]", pct)
	}
	return c.SetThresholdMv(pct * 3300 / 100)
}

// BatchSize returns the current batch size.
func (c *Config) BatchSize() int { return int(c.batchSize.Load()) }

// SetBatchSize validates and stores a new batch size. The acquisition loop
// observes the change and resets its in-progress batch.
func (c *Config) SetBatchSize(n int) error {
	if n < 1 || n > MaxBatchSize {
		return fmt.Errorf("config: batch size %d out of range [1,%d]", n, MaxBatchSize)
	}
	c.batchSize.Store(int32(n))
	return nil
}

// LogLevel returns the current log level.
func (c *Config) LogLevel() LogLevel { return LogLevel(c.logLevel.Load()) }

// SetLogLevel validates and stores a new log level.
func (c *Config) SetLogLevel(l int) error {
	if l < int(LevelDebug) || l > int(LevelNone) {
		return fmt.Errorf("config: log level %d out of range", l)
	}
	c.logLevel.Store(int32(l))
	return nil
}

// LocalPort returns the UDP port the network goroutine binds to.
func (c *Config) LocalPort() int { return int(c.localPort.Load()) }
