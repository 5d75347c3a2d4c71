// network state machine
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package netstate holds the network state machine of spec.md §3
// (Init/WaitLink/WaitIp/Ready/Error), readable by the acquisition goroutine
// (which gates sends on Ready) and writable only by the network goroutine.
package netstate

import "sync/atomic"

// State is one of the five network lifecycle states.
type State int32

const (
	Init State = iota
	WaitLink
	WaitIp
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case WaitLink:
		return "wait_link"
	case WaitIp:
		return "wait_ip"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Machine is the shared network-state word.
type Machine struct {
	v atomic.Int32
}

// Get returns the current state.
func (m *Machine) Get() State { return State(m.v.Load()) }

// Set stores a new state.
func (m *Machine) Set(s State) { m.v.Store(int32(s)) }

// IsReady reports whether the state is currently Ready.
func (m *Machine) IsReady() bool { return m.Get() == Ready }
