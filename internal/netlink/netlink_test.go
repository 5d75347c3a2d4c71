// network stack bring-up tests
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package netlink

import (
	"net"
	"testing"
	"time"
)

func TestCableLinkUpDerivedFromAddressBeforeExplicitState(t *testing.T) {
	c := &Cable{}
	if c.LinkUp() {
		t.Fatal("expected link down before any address or explicit state")
	}
	c.SetAddress(net.IPv4(10, 0, 0, 1))
	if !c.LinkUp() {
		t.Fatal("expected link up once an address is present and no explicit state was set")
	}
}

func TestCableExplicitStateOverridesAddressHeuristic(t *testing.T) {
	c := &Cable{}
	c.SetAddress(net.IPv4(10, 0, 0, 1))
	c.SetLinkUp(false)
	if c.LinkUp() {
		t.Fatal("expected explicit SetLinkUp(false) to override the address-derived heuristic")
	}
}

func TestCableAddressRoundTrip(t *testing.T) {
	c := &Cable{}
	if c.Address() != nil {
		t.Fatal("expected nil address before SetAddress")
	}
	ip := net.IPv4(192, 168, 1, 42)
	c.SetAddress(ip)
	got := c.Address()
	if got == nil || !got.Equal(ip) {
		t.Fatalf("expected %s, got %v", ip, got)
	}
}

func TestCableSetAddressRejectsNonIPv4(t *testing.T) {
	c := &Cable{}
	c.SetAddress(net.IPv4(10, 0, 0, 1))
	c.SetAddress(net.ParseIP("::1"))
	if c.Address() != nil {
		t.Fatal("expected address cleared when SetAddress is given a non-IPv4 value")
	}
}

func TestAssignAddressRejectsNonIPv4(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:01")
	stk := NewStack(mac)

	err := stk.AssignAddress(net.ParseIP("::1"))
	if err == nil {
		t.Fatal("expected an error assigning a non-IPv4 address")
	}
	if stk.Cable.Address() != nil {
		t.Fatal("expected Cable address to remain unset after a rejected assignment")
	}
}

func TestAssignAddressSetsCable(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:02")
	stk := NewStack(mac)

	ip := net.IPv4(10, 0, 0, 5)
	if err := stk.AssignAddress(ip); err != nil {
		t.Fatalf("AssignAddress: %v", err)
	}
	got := stk.Cable.Address()
	if got == nil || !got.Equal(ip) {
		t.Fatalf("expected Cable address %s, got %v", ip, got)
	}
}

func TestSimulateBringUpAppliesBothDelaysIndependently(t *testing.T) {
	mac, _ := net.ParseMAC("02:00:00:00:00:03")
	stk := NewStack(mac)

	stk.SimulateBringUp(10*time.Millisecond, 30*time.Millisecond, net.IPv4(10, 0, 0, 9))

	if stk.Cable.LinkUp() {
		t.Fatal("expected link still down immediately after SimulateBringUp returns")
	}

	time.Sleep(20 * time.Millisecond)
	if !stk.Cable.LinkUp() {
		t.Fatal("expected link up after linkDelay has elapsed")
	}
	if stk.Cable.Address() != nil {
		t.Fatal("expected address still unset before ipDelay has elapsed")
	}

	time.Sleep(30 * time.Millisecond)
	if stk.Cable.Address() == nil {
		t.Fatal("expected address set after ipDelay has elapsed")
	}
}
