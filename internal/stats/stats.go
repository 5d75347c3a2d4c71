// transport and acquisition counters
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package stats holds the two monotonic counter groups named in spec.md
// §3: network transport counters and acquisition counters. Counters never
// decrease and are never reset except by process restart.
package stats

import "sync/atomic"

// Network counts network-goroutine activity.
type Network struct {
	PacketsSent     atomic.Uint64
	PacketsReceived atomic.Uint64
	BytesSent       atomic.Uint64
	BytesReceived   atomic.Uint64
	Errors          atomic.Uint64
}

// NetworkSnapshot is a point-in-time copy of Network's counters.
type NetworkSnapshot struct {
	PacketsSent, PacketsReceived, BytesSent, BytesReceived, Errors uint64
}

// Snapshot reads all counters without locking; each field is read
// independently and may reflect slightly different instants under
// concurrent writers, which is acceptable for monitoring counters.
func (n *Network) Snapshot() NetworkSnapshot {
	return NetworkSnapshot{
		PacketsSent:     n.PacketsSent.Load(),
		PacketsReceived: n.PacketsReceived.Load(),
		BytesSent:       n.BytesSent.Load(),
		BytesReceived:   n.BytesReceived.Load(),
		Errors:          n.Errors.Load(),
	}
}

// Acquisition counts acquisition-goroutine activity.
type Acquisition struct {
	SamplesCollected atomic.Uint64
	PacketsSent      atomic.Uint64
	Errors           atomic.Uint64
}

// AcquisitionSnapshot is a point-in-time copy of Acquisition's counters.
type AcquisitionSnapshot struct {
	SamplesCollected, PacketsSent, Errors uint64
}

// Snapshot reads all counters without locking.
func (a *Acquisition) Snapshot() AcquisitionSnapshot {
	return AcquisitionSnapshot{
		SamplesCollected: a.SamplesCollected.Load(),
		PacketsSent:      a.PacketsSent.Load(),
		Errors:           a.Errors.Load(),
	}
}
