// transmit target endpoint
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package target holds the transmit target endpoint shared between the
// network goroutine (which latches it from the first START_ACQ sender)
// and the acquisition goroutine (which reads it to address outbound DATA
// packets). Per spec.md §9, latching must be atomic with respect to
// concurrent reads; a small mutex around the two-word net.UDPAddr value is
// the simplest implementation satisfying that.
package target

import (
	"net"
	"sync"
)

// Target is the current transmit endpoint, unset until the first START_ACQ.
type Target struct {
	mu  sync.RWMutex
	set bool
	ip  net.IP
	port int
}

// Set latches addr as the new transmit target, replacing any previous one.
func (t *Target) Set(addr net.UDPAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.set = true
	t.ip = append(net.IP(nil), addr.IP...)
	t.port = addr.Port
}

// Get returns the current target and whether one has been set yet.
func (t *Target) Get() (net.UDPAddr, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.set {
		return net.UDPAddr{}, false
	}
	return net.UDPAddr{IP: append(net.IP(nil), t.ip...), Port: t.port}, true
}
