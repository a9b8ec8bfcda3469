// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package event defines the protocol-agnostic network payloads handed to
// downstream consumers. Payloads speak in resolved hosts and plain flags;
// they never carry kernel-side identifiers such as raw pids or buffer bytes.
package event

import (
	"net/netip"
	"strconv"
)

// Host is a resolved transport endpoint.
type Host struct {
	IP   netip.Addr `json:"ip"`
	Port uint16     `json:"port"`
}

// String returns "ip:port", bracketing IPv6 addresses.
func (h Host) String() string {
	return netip.AddrPortFrom(h.IP, h.Port).String()
}

// Kind names a payload arm.
type Kind string

const (
	KindBind    Kind = "bind"
	KindListen  Kind = "listen"
	KindConnect Kind = "connect"
	KindAccept  Kind = "accept"
	KindSend    Kind = "send"
	KindReceive Kind = "receive"
	KindClose   Kind = "close"
)

// Kinds lists every payload arm in tag order.
var Kinds = []Kind{KindBind, KindListen, KindConnect, KindAccept, KindSend, KindReceive, KindClose}

// Payload is one arm of the network taxonomy.
type Payload interface {
	Kind() Kind
	// TCP reports whether the underlying socket is TCP. Arms that only
	// exist for TCP return true unconditionally.
	TCP() bool
	isPayload()
}

// Bind reports a socket bound to a local address.
type Bind struct {
	Address Host `json:"address"`
	IsTCP   bool `json:"is_tcp"`
}

// Listen reports a TCP socket entering the listening state.
type Listen struct {
	Address Host `json:"address"`
}

// Connect reports an outgoing connection attempt.
type Connect struct {
	Destination Host `json:"destination"`
	IsTCP       bool `json:"is_tcp"`
}

// Accept reports an accepted TCP connection.
type Accept struct {
	Source      Host `json:"source"`
	Destination Host `json:"destination"`
}

// Send reports outgoing data. Source and Destination are the
// communication sides of the flow, not the packet addresses.
type Send struct {
	Source      Host `json:"source"`
	Destination Host `json:"destination"`
	Len         int  `json:"len"`
	IsTCP       bool `json:"is_tcp"`
}

// Receive reports incoming data, with the same endpoint roles as Send.
type Receive struct {
	Source      Host `json:"source"`
	Destination Host `json:"destination"`
	Len         int  `json:"len"`
	IsTCP       bool `json:"is_tcp"`
}

// Close reports a TCP connection being closed.
type Close struct {
	Source      Host `json:"source"`
	Destination Host `json:"destination"`
}

func (Bind) Kind() Kind    { return KindBind }
func (Listen) Kind() Kind  { return KindListen }
func (Connect) Kind() Kind { return KindConnect }
func (Accept) Kind() Kind  { return KindAccept }
func (Send) Kind() Kind    { return KindSend }
func (Receive) Kind() Kind { return KindReceive }
func (Close) Kind() Kind   { return KindClose }

func (p Bind) TCP() bool    { return p.IsTCP }
func (Listen) TCP() bool    { return true }
func (p Connect) TCP() bool { return p.IsTCP }
func (Accept) TCP() bool    { return true }
func (p Send) TCP() bool    { return p.IsTCP }
func (p Receive) TCP() bool { return p.IsTCP }
func (Close) TCP() bool     { return true }

func (Bind) isPayload()    {}
func (Listen) isPayload()  {}
func (Connect) isPayload() {}
func (Accept) isPayload()  {}
func (Send) isPayload()    {}
func (Receive) isPayload() {}
func (Close) isPayload()   {}

// Describe renders a payload as a single log-friendly line.
func Describe(p Payload) string {
	proto := "udp"
	if p.TCP() {
		proto = "tcp"
	}

	switch v := p.(type) {
	case Bind:
		return "bind " + v.Address.String() + " " + proto
	case Listen:
		return "listen " + v.Address.String()
	case Connect:
		return "connect " + v.Destination.String() + " " + proto
	case Accept:
		return "accept " + v.Source.String() + " -> " + v.Destination.String()
	case Send:
		return "send " + v.Source.String() + " -> " + v.Destination.String() + " " + strconv.Itoa(v.Len) + "B " + proto
	case Receive:
		return "receive " + v.Source.String() + " -> " + v.Destination.String() + " " + strconv.Itoa(v.Len) + "B " + proto
	case Close:
		return "close " + v.Source.String() + " -> " + v.Destination.String()
	}
	return string(p.Kind())
}
