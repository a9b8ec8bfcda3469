// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netmon

import (
	"math/rand"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"grimm.is/netcapture/internal/ebpf/types"
	"grimm.is/netcapture/internal/event"
)

func TestToHostV4(t *testing.T) {
	h := ToHost(types.AddrV4{Port: 8080, IP: 0xC0A80105})
	assert.Equal(t, netip.MustParseAddr("192.168.1.5"), h.IP)
	assert.Equal(t, uint16(8080), h.Port)
}

func TestToHostV6(t *testing.T) {
	ip := netip.MustParseAddr("2001:db8::1")
	h := ToHost(types.AddrV6{Port: 53, IP: ip.As16(), ScopeID: 2})
	assert.Equal(t, ip, h.IP)
	assert.Equal(t, uint16(53), h.Port)
	assert.Equal(t, types.AddrV6{Port: 53, IP: ip.As16()}, FromHost(h))
}

func TestToHostNil(t *testing.T) {
	assert.Equal(t, event.Host{}, ToHost(nil))
}

func TestIPv4RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0xff, 0x100, 0x7f000001, 0x80000000, 0xC0A80105, 0xfffffffe, 0xffffffff}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		values = append(values, rng.Uint32())
	}

	for _, raw := range values {
		in := types.AddrV4{Port: uint16(raw), IP: raw}
		out := FromHost(ToHost(in))
		if out != in {
			t.Fatalf("round trip of %#08x produced %v", raw, out)
		}
	}
}

func TestDottedQuadOrder(t *testing.T) {
	h := ToHost(types.AddrV4{IP: 0x0A000102})
	assert.Equal(t, "10.0.1.2:0", h.String())
}
