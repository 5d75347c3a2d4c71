// acquisition state machine
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package acqstate holds the acquisition state machine of spec.md §3,
// shared between the network goroutine (which drives Idle<->Running via
// START_ACQ/STOP_ACQ) and the acquisition goroutine (which drives any
// state to Error on an unrecoverable ADC failure). The state fits in one
// machine word, so a single atomic value satisfies spec.md §9's no-mutex
// allowance.
package acqstate

import "sync/atomic"

// State is one of Idle, Running, or Error.
type State int32

const (
	Idle State = iota
	Running
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Machine is the shared acquisition-state word.
type Machine struct {
	v atomic.Int32
}

// Get returns the current state.
func (m *Machine) Get() State { return State(m.v.Load()) }

// Start transitions Idle to Running. It is a no-op if already Running.
func (m *Machine) Start() { m.v.Store(int32(Running)) }

// Stop transitions to Idle.
func (m *Machine) Stop() { m.v.Store(int32(Idle)) }

// Fault transitions to Error from any state.
func (m *Machine) Fault() { m.v.Store(int32(Error)) }

// IsRunning reports whether the state is currently Running.
func (m *Machine) IsRunning() bool { return m.Get() == Running }
