// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package types

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"
)

// Address variant tags as written by the kernel program.
const (
	AddrTagV4 uint8 = 0
	AddrTagV6 uint8 = 1
)

// Addr slot layout:
//
//	struct addr {
//	    __u8 variant;            // 0
//	    __u8 _pad[3];            // 1
//	    union {                  // 4
//	        struct sockaddr_in  v4;
//	        struct sockaddr_in6 v6;
//	    };
//	};                           // 32
const (
	addrSize     = 32
	sockaddrOff  = 4
	sockaddrSize = 28
)

// Addr is a family-tagged socket address taken from a wire record.
// Exactly one of AddrV4 and AddrV6 implements it.
type Addr interface {
	fmt.Stringer
	isAddr()
}

// AddrV4 holds a sockaddr_in. IP is the address read in network byte
// order, so the first octet sits in bits 31..24.
type AddrV4 struct {
	Port uint16
	IP   uint32
}

// AddrV6 holds a sockaddr_in6.
type AddrV6 struct {
	Port     uint16
	FlowInfo uint32
	IP       [16]byte
	ScopeID  uint32
}

func (AddrV4) isAddr() {}
func (AddrV6) isAddr() {}

func (a AddrV4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", byte(a.IP>>24), byte(a.IP>>16), byte(a.IP>>8), byte(a.IP), a.Port)
}

func (a AddrV6) String() string {
	return netip.AddrPortFrom(netip.AddrFrom16(a.IP), a.Port).String()
}

func decodeAddr(b []byte) (Addr, error) {
	if len(b) < addrSize {
		return nil, fmt.Errorf("address slot truncated: %d bytes", len(b))
	}

	sa := b[sockaddrOff : sockaddrOff+sockaddrSize]
	family := binary.LittleEndian.Uint16(sa[0:2])
	port := binary.BigEndian.Uint16(sa[2:4])

	switch b[0] {
	case AddrTagV4:
		if family != unix.AF_INET {
			return nil, fmt.Errorf("v4 address slot carries family %d", family)
		}
		return AddrV4{
			Port: port,
			IP:   binary.BigEndian.Uint32(sa[4:8]),
		}, nil
	case AddrTagV6:
		if family != unix.AF_INET6 {
			return nil, fmt.Errorf("v6 address slot carries family %d", family)
		}
		a := AddrV6{
			Port:     port,
			FlowInfo: binary.BigEndian.Uint32(sa[4:8]),
			ScopeID:  binary.LittleEndian.Uint32(sa[24:28]),
		}
		copy(a.IP[:], sa[8:24])
		return a, nil
	}
	return nil, fmt.Errorf("unknown address variant %d", b[0])
}

func encodeAddr(b []byte, a Addr) error {
	sa := b[sockaddrOff : sockaddrOff+sockaddrSize]
	switch v := a.(type) {
	case AddrV4:
		b[0] = AddrTagV4
		binary.LittleEndian.PutUint16(sa[0:2], unix.AF_INET)
		binary.BigEndian.PutUint16(sa[2:4], v.Port)
		binary.BigEndian.PutUint32(sa[4:8], v.IP)
	case AddrV6:
		b[0] = AddrTagV6
		binary.LittleEndian.PutUint16(sa[0:2], unix.AF_INET6)
		binary.BigEndian.PutUint16(sa[2:4], v.Port)
		binary.BigEndian.PutUint32(sa[4:8], v.FlowInfo)
		copy(sa[8:24], v.IP[:])
		binary.LittleEndian.PutUint32(sa[24:28], v.ScopeID)
	default:
		return fmt.Errorf("cannot encode address %T", a)
	}
	return nil
}
