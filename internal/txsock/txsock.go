// shared send socket handle
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package txsock holds the one send-capable UDP socket handle the network
// goroutine binds during bring-up and the acquisition goroutine sends DATA
// packets through. It exists only to avoid a direct package dependency
// between internal/network and internal/acquisition, which otherwise
// share no other state besides the config/target/acqstate/netstate
// records.
package txsock

import (
	"net"
	"sync"
)

// Sender is the subset of *netudp.Socket the acquisition goroutine needs.
// Expressing it as an interface lets tests exercise the acquisition loop
// against a fake without bringing up a real network stack.
type Sender interface {
	Send(remote net.UDPAddr, payload []byte) error
}

// Handle holds the current bound socket, or nil before the network
// goroutine has completed bring-up.
type Handle struct {
	mu sync.RWMutex
	s  Sender
}

// Set stores the current socket.
func (h *Handle) Set(s Sender) {
	h.mu.Lock()
	h.s = s
	h.mu.Unlock()
}

// Get returns the current socket, or nil if not yet bound.
func (h *Handle) Get() Sender {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}
