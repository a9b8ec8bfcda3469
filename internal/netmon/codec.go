// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netmon

import (
	"net/netip"

	"grimm.is/netcapture/internal/ebpf/types"
	"grimm.is/netcapture/internal/event"
)

// ToHost converts a wire address to a resolved host. IPv4 octets are
// taken most significant first; IPv6 bytes are used as is.
func ToHost(a types.Addr) event.Host {
	switch v := a.(type) {
	case types.AddrV4:
		return event.Host{
			IP: netip.AddrFrom4([4]byte{
				byte(v.IP >> 24),
				byte(v.IP >> 16),
				byte(v.IP >> 8),
				byte(v.IP),
			}),
			Port: v.Port,
		}
	case types.AddrV6:
		return event.Host{IP: netip.AddrFrom16(v.IP), Port: v.Port}
	}
	return event.Host{}
}

// FromHost is the inverse of ToHost.
func FromHost(h event.Host) types.Addr {
	if h.IP.Is4() {
		b := h.IP.As4()
		return types.AddrV4{
			Port: h.Port,
			IP:   uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]),
		}
	}
	return types.AddrV6{Port: h.Port, IP: h.IP.As16()}
}
