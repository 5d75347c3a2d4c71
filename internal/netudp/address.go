// UDP address helpers
// https://github.com/SzewczykW/rtos-data-acquisition
//
// Copyright (c) The daqnode Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package netudp

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParseDottedQuad converts a dotted-quad string to a 4-byte IPv4 address,
// rejecting any octet above 255, per spec.md §4.2's address-conversion
// contract.
func ParseDottedQuad(s string) (net.IP, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("netudp: %q is not a dotted quad", s)
	}
	out := make(net.IP, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return nil, fmt.Errorf("netudp: octet %q out of range [0,255]", p)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// FormatDottedQuad renders a 4-byte IPv4 address as a dotted-quad string.
func FormatDottedQuad(ip net.IP) string {
	ip4 := ip.To4()
	if ip4 == nil {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d.%d", ip4[0], ip4[1], ip4[2], ip4[3])
}
