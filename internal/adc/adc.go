// ADC driver
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package adc implements the single-channel, interrupt-completion ADC
// driver contract of spec.md §4.3. The real peripheral (clock divider,
// pin muxing, conversion register) is the out-of-scope MCU-level
// collaborator named in spec.md §1; this package specifies and implements
// its calling contract against a pluggable Source, the same way the
// teacher's RNGB driver (soc/nxp/rngb) separates the register-level
// self-test/seed sequence from a fillable byte source (internal/rng).
package adc

import (
	"errors"
	"sync"
)

// ErrBusy is returned by GetValue while a conversion is still in flight.
var ErrBusy = errors.New("adc: busy")

// Source produces one sample for the given channel. The default
// production source is a deterministic generator (see NewLCGSource);
// tests supply a scripted source to reproduce literal sample sequences.
type Source func(channel int) uint16

// ADC is a single-channel, interrupt-completion analog-to-digital driver.
// It is not safe for concurrent use by multiple callers; the acquisition
// loop is the sole caller, matching spec.md §4.3's invariant.
type ADC struct {
	mu sync.Mutex

	source      Source
	initialized bool
	channel     int

	// done and value are written by the completion goroutine (playing
	// the role of the conversion-complete interrupt) and read by
	// GetValue/ConversionDone.
	done  chan uint16
	value uint16
	has   bool
}

// New returns an uninitialized ADC driver using source to produce samples.
func New(source Source) *ADC {
	return &ADC{source: source}
}

// Initialize configures the driver for the given channel. It is idempotent:
// calling it again with the same channel is a no-op; a different channel
// tears down and reconfigures.
func (a *ADC) Initialize(channel int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if channel < 0 || channel > 7 {
		return errors.New("adc: channel out of range [0,7]")
	}
	if a.initialized && a.channel == channel {
		return nil
	}
	a.channel = channel
	a.initialized = true
	a.done = nil
	a.has = false
	return nil
}

// Deinitialize reverses Initialize.
func (a *ADC) Deinitialize() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialized = false
	a.done = nil
	a.has = false
}

// StartConversion arms the peripheral asynchronously and clears the done
// flag. At most one conversion is ever in flight.
func (a *ADC) StartConversion() error {
	a.mu.Lock()
	if !a.initialized {
		a.mu.Unlock()
		return errors.New("adc: not initialized")
	}
	a.has = false
	done := make(chan uint16, 1)
	a.done = done
	channel := a.channel
	source := a.source
	a.mu.Unlock()

	// The completion goroutine plays the role of the conversion-done
	// interrupt: it stores the 12-bit result and signals completion
	// exactly once.
	go func() {
		v := source(channel) & 0x0FFF
		done <- v
	}()
	return nil
}

// ConversionDone reports whether the last-armed conversion has completed.
func (a *ADC) ConversionDone() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.has {
		return true
	}
	select {
	case v := <-a.done:
		a.value = v
		a.has = true
		return true
	default:
		return false
	}
}

// GetValue returns the last converted 12-bit value if done, else ErrBusy.
func (a *ADC) GetValue() (uint16, error) {
	if !a.ConversionDone() {
		return 0, ErrBusy
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value, nil
}

// ReadSynchronous starts a conversion and busy-waits until it completes,
// matching spec.md §4.3's ReadSynchronous contract (no suspension point).
func (a *ADC) ReadSynchronous() (uint16, error) {
	if err := a.StartConversion(); err != nil {
		return 0, err
	}
	for !a.ConversionDone() {
		// busy-wait; the acquisition loop's synchronous read is
		// specified to not suspend.
	}
	return a.GetValue()
}
