// network stack bring-up
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package netlink brings up the userspace TCP/IP stack that stands in for
// spec.md's "third-party stack that provides raw UDP datagrams and
// link-state notifications" (spec.md §1). It follows the teacher's own
// pattern for driving gvisor's netstack from a software link
// (example/usb_ethernet.go: a channel.Endpoint in place of a USB/Ethernet
// MAC), so the bring-up sequence (NIC creation, address assignment, route
// table) is grounded directly on working teacher code.
package netlink

import (
	"net"
	"sync/atomic"
	"time"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/network/arp"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
	"gvisor.dev/gvisor/pkg/tcpip/transport/icmp"
	"gvisor.dev/gvisor/pkg/tcpip/transport/udp"
)

// NICID is the single NIC every cable attaches to; one node, one link.
const NICID tcpip.NICID = 1

// QueueDepth bounds the channel endpoint's internal packet queue.
const QueueDepth = 256

// MTU mirrors spec.md §6: one Ethernet frame.
const MTU = 1500

// Cable models the Ethernet PHY: the software equivalent of the link-state
// booleans an Ethernet notification callback would set (spec.md §4.2,
// §5 "Interrupts"). Readers observe LinkUp/Address without locking; writers
// (SetLinkUp/SetAddress) are the only mutators.
type Cable struct {
	up      atomic.Bool
	known   atomic.Bool
	address atomic.Uint32 // 0 = unassigned
}

// LinkUp reports the cached link state. Before the first SetLinkUp call it
// is derived heuristically from whether a non-zero address has been
// assigned, matching spec.md §4.2.
func (c *Cable) LinkUp() bool {
	if c.known.Load() {
		return c.up.Load()
	}
	return c.address.Load() != 0
}

// SetLinkUp records an explicit link-state notification.
func (c *Cable) SetLinkUp(up bool) {
	c.known.Store(true)
	c.up.Store(up)
}

// Address returns the currently assigned IPv4 address, or nil if none.
func (c *Cable) Address() net.IP {
	v := c.address.Load()
	if v == 0 {
		return nil
	}
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).To4()
}

// SetAddress records the acquired IPv4 address.
func (c *Cable) SetAddress(ip net.IP) {
	ip4 := ip.To4()
	if ip4 == nil {
		c.address.Store(0)
		return
	}
	v := uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
	c.address.Store(v)
}

// Stack bundles a gvisor network stack with the Cable feeding it.
type Stack struct {
	S     *stack.Stack
	Cable *Cable
	nic   tcpip.NICID
	link  *channel.Endpoint
}

// NewStack brings up a gvisor stack with IPv4+ARP network protocols and a
// UDP (plus ICMP, for diagnostic pings) transport protocol over a software
// link endpoint, in the same shape as the teacher's configureNetworkStack.
func NewStack(mac net.HardwareAddr) *Stack {
	s := stack.New(stack.Options{
		NetworkProtocols: []stack.NetworkProtocol{
			ipv4.NewProtocol(),
			arp.NewProtocol(),
		},
		TransportProtocols: []stack.TransportProtocol{
			udp.NewProtocol(),
			icmp.NewProtocol4(),
		},
	})

	linkAddr := tcpip.LinkAddress(mac)
	ep := channel.New(QueueDepth, MTU, linkAddr)

	if err := s.CreateNIC(NICID, ep); err != nil {
		panic("netlink: CreateNIC: " + err.String())
	}
	if err := s.AddAddress(NICID, arp.ProtocolNumber, arp.ProtocolAddress); err != nil {
		panic("netlink: AddAddress(arp): " + err.String())
	}

	subnet, err := tcpip.NewSubnet(tcpip.Address("\x00\x00\x00\x00"), tcpip.AddressMask("\x00\x00\x00\x00"))
	if err != nil {
		panic("netlink: NewSubnet: " + err.Error())
	}
	s.SetRouteTable([]tcpip.Route{{Destination: subnet, NIC: NICID}})

	return &Stack{S: s, Cable: &Cable{}, nic: NICID, link: ep}
}

// AssignAddress assigns ip to the NIC's IPv4 protocol and records it on the
// Cable, completing the WaitIp step of the network loop.
func (n *Stack) AssignAddress(ip net.IP) error {
	ip4 := ip.To4()
	if ip4 == nil {
		return &net.AddrError{Err: "not an IPv4 address", Addr: ip.String()}
	}
	addr := tcpip.Address(string(ip4))
	if err := n.S.AddAddress(n.nic, ipv4.ProtocolNumber, addr); err != nil {
		return &net.OpError{Op: "assign", Err: errString(err.String())}
	}
	n.Cable.SetAddress(ip)
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }

// SimulateBringUp drives the Cable's link-up and address-assignment timing
// on a background timer, standing in for the PHY link-state interrupt and
// DHCP lease arrival that a real board's network driver would deliver
// asynchronously (spec.md §4.2's "link-state notifications"). linkDelay and
// ipDelay are measured from the call to SimulateBringUp, not from each
// other. It returns immediately; callers that want a one-shot simulation
// on process start should call it right after NewStack.
func (n *Stack) SimulateBringUp(linkDelay, ipDelay time.Duration, ip net.IP) {
	go func() {
		time.Sleep(linkDelay)
		n.Cable.SetLinkUp(true)
	}()
	go func() {
		time.Sleep(ipDelay)
		if err := n.AssignAddress(ip); err != nil {
			// Best effort: WaitIp will simply time out if this fails,
			// which is the same failure mode a real lease timeout
			// produces.
			return
		}
	}()
}
