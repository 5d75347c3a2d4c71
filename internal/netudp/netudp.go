// UDP socket layer
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package netudp implements the UDP socket layer of spec.md §4.2: a
// fixed-size pool of socket slots over the third-party IP stack, each
// offering a blocking receive with timeout (or an exclusive registered
// callback), send with an explicit remote endpoint, and a link-state
// query. The stack itself is gvisor's netstack (internal/netlink); this
// package bridges its callback-style delivery into the pool+queue model
// spec.md §9 describes, the same duality the teacher's example programs
// achieve by draining a gonet.PacketConn on a dedicated goroutine
// (example/usb_ethernet.go: startEchoServer's ReadFrom loop).
package netudp

import (
	"errors"
	"net"
	"sync"
	"time"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/adapters/gonet"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"

	"github.com/SzewczykW/rtos-data-acquisition/internal/netlink"
)

// Sentinel errors, matching the taxonomy of spec.md §7.
var (
	ErrTimeout    = errors.New("netudp: timeout")
	ErrClosed     = errors.New("netudp: socket closed")
	ErrNoMemory   = errors.New("netudp: pool exhausted")
	ErrLinkDown   = errors.New("netudp: link down")
	ErrNetError   = errors.New("netudp: stack error")
	ErrNotBound   = errors.New("netudp: socket not bound")
)

// MaxSlots bounds the handle pool, matching the "fixed-size array of
// socket slots" of spec.md §4.2.
const MaxSlots = 8

// queueDepth bounds each slot's receive queue.
const queueDepth = 32

// datagramCap is the per-datagram truncation capacity applied by the
// dispatch path before the caller's own buffer is even considered.
const datagramCap = protocolMaxPacketSize

// protocolMaxPacketSize mirrors protocol.MaxPacketSize without importing
// the protocol package, keeping netudp protocol-agnostic.
const protocolMaxPacketSize = 1472

// Datagram is one received payload, queued for a blocking consumer.
type Datagram struct {
	Data   []byte
	Remote net.UDPAddr
	// closing marks the sentinel record used to wake a blocked receiver
	// when the slot is being closed.
	closing bool
}

// Callback is a slot's optional inline dispatch handler. Its return value
// indicates whether it consumed the datagram; a false return is treated
// the same as no callback being registered for that one datagram.
type Callback func(remote net.UDPAddr, data []byte) bool

// Socket is one pool slot: a bound conn over the stack, a bounded receive
// queue, an optional exclusive callback, and a drop counter.
type Socket struct {
	pool *Pool
	conn *gonet.PacketConn
	port uint16

	mu       sync.Mutex
	bound    bool
	closing  bool
	callback Callback

	queue chan Datagram
	drops uint64
}

// Pool is the fixed-size socket handle pool of spec.md §4.2.
type Pool struct {
	stack *netlink.Stack

	mu    sync.Mutex
	slots []*Socket
}

// NewPool returns a socket pool bound to the given network stack.
func NewPool(s *netlink.Stack) *Pool {
	return &Pool{stack: s}
}

// Open allocates a slot and binds a UDP listener on the given local port.
// It fails with ErrNoMemory if the pool is exhausted.
func (p *Pool) Open(port uint16) (*Socket, error) {
	p.mu.Lock()
	if len(p.slots) >= MaxSlots {
		p.mu.Unlock()
		return nil, ErrNoMemory
	}
	p.mu.Unlock()

	full := &tcpip.FullAddress{Port: port, NIC: netlink.NICID}
	conn, err := gonet.DialUDP(p.stack.S, full, nil, ipv4.ProtocolNumber)
	if err != nil {
		return nil, ErrNetError
	}

	sock := &Socket{
		pool:  p,
		conn:  conn,
		port:  port,
		bound: true,
		queue: make(chan Datagram, queueDepth),
	}

	p.mu.Lock()
	p.slots = append(p.slots, sock)
	p.mu.Unlock()

	go sock.dispatchLoop()

	return sock, nil
}

// dispatchLoop plays the role of the stack's shared dispatch routine: it
// reads datagrams off the underlying conn (the stack's callback-driven
// delivery, here a blocking ReadFrom on the gvisor waiter queue) and either
// invokes the registered callback inline or enqueues a pool-allocated
// datagram record, truncated at the per-slot capacity, dropping on
// pool/queue exhaustion.
func (s *Socket) dispatchLoop() {
	buf := make([]byte, datagramCap)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			continue
		}

		udpAddr, _ := addr.(*net.UDPAddr)
		if udpAddr == nil {
			udpAddr = &net.UDPAddr{}
		}

		s.mu.Lock()
		cb := s.callback
		s.mu.Unlock()

		payload := make([]byte, n)
		copy(payload, buf[:n])

		if cb != nil && cb(*udpAddr, payload) {
			continue
		}

		select {
		case s.queue <- Datagram{Data: payload, Remote: *udpAddr}:
		default:
			s.mu.Lock()
			s.drops++
			s.mu.Unlock()
		}
	}
}

// SetCallback registers an exclusive inline handler for this slot. It is
// mutually exclusive with Receive: once set, only datagrams the callback
// declines (returns false for) are queued, alongside the close sentinel.
func (s *Socket) SetCallback(cb Callback) {
	s.mu.Lock()
	s.callback = cb
	s.mu.Unlock()
}

// Receive dequeues one datagram with the given timeout, copying at most
// len(buf) bytes into buf. It returns the actual length (which may be less
// than the original datagram if buf is smaller) and the remote endpoint.
func (s *Socket) Receive(buf []byte, timeout time.Duration) (int, net.UDPAddr, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case dg := <-s.queue:
		if dg.closing {
			return 0, net.UDPAddr{}, ErrClosed
		}
		n := copy(buf, dg.Data)
		return n, dg.Remote, nil
	case <-timer.C:
		return 0, net.UDPAddr{}, ErrTimeout
	}
}

// Send transmits payload to remote. It requires the slot to be bound and
// the link to be up.
func (s *Socket) Send(remote net.UDPAddr, payload []byte) error {
	s.mu.Lock()
	bound := s.bound
	s.mu.Unlock()
	if !bound {
		return ErrNotBound
	}
	if !s.pool.stack.Cable.LinkUp() {
		return ErrLinkDown
	}

	_, err := s.conn.WriteTo(payload, &remote)
	if err != nil {
		return ErrNetError
	}
	return nil
}

// Drops returns the number of datagrams discarded due to pool or queue
// exhaustion.
func (s *Socket) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

// Close marks the slot closing, drains and wakes any blocked receiver with
// a sentinel, then closes the underlying conn and frees the slot.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.bound = false
	s.mu.Unlock()

drain:
	for {
		select {
		case <-s.queue:
		default:
			break drain
		}
	}

	select {
	case s.queue <- Datagram{closing: true}:
	default:
	}

	err := s.conn.Close()

	p := s.pool
	p.mu.Lock()
	for i, sl := range p.slots {
		if sl == s {
			p.slots = append(p.slots[:i], p.slots[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	if err != nil {
		return ErrNetError
	}
	return nil
}

// LinkUp reports whether the underlying link is currently up.
func (p *Pool) LinkUp() bool {
	return p.stack.Cable.LinkUp()
}

// LocalAddress reports the currently assigned local IPv4 address, or nil.
func (p *Pool) LocalAddress() net.IP {
	return p.stack.Cable.Address()
}
