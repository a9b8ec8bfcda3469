// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package types holds the fixed-layout records shared with the kernel
// capture program.
package types

import "fmt"

// Proto is the transport protocol carried by a record.
type Proto uint8

const (
	ProtoTCP Proto = 0
	ProtoUDP Proto = 1
)

func (p Proto) String() string {
	switch p {
	case ProtoTCP:
		return "TCP"
	case ProtoUDP:
		return "UDP"
	}
	return fmt.Sprintf("Proto(%d)", uint8(p))
}

// Tag is the NetworkEvent discriminant. Values are shared with the
// kernel program and must never be renumbered.
type Tag uint8

const (
	TagBind    Tag = 0
	TagListen  Tag = 1
	TagConnect Tag = 2
	TagAccept  Tag = 3
	TagSend    Tag = 4
	TagReceive Tag = 5
	TagClose   Tag = 6
)

func (t Tag) String() string {
	switch t {
	case TagBind:
		return "bind"
	case TagListen:
		return "listen"
	case TagConnect:
		return "connect"
	case TagAccept:
		return "accept"
	case TagSend:
		return "send"
	case TagReceive:
		return "receive"
	case TagClose:
		return "close"
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// NetworkEvent is one captured socket operation.
type NetworkEvent interface {
	fmt.Stringer
	Tag() Tag
	isNetworkEvent()
}

type Bind struct {
	Addr  Addr
	Proto Proto
}

// Listen is TCP-only.
type Listen struct {
	Addr Addr
}

type Connect struct {
	Dst   Addr
	Proto Proto
}

// Accept is TCP-only.
type Accept struct {
	Src Addr
	Dst Addr
}

// Send and Receive name the communication sides of the flow in Src and
// Dst, not the source of the message.
type Send struct {
	Src     Addr
	Dst     Addr
	Data    BufferIndex
	DataLen uint32
	Proto   Proto
}

type Receive struct {
	Src     Addr
	Dst     Addr
	Data    BufferIndex
	DataLen uint32
	Proto   Proto
}

// Close is TCP-only. OriginalPid is the process that opened the socket.
type Close struct {
	OriginalPid int32
	Src         Addr
	Dst         Addr
}

func (Bind) Tag() Tag    { return TagBind }
func (Listen) Tag() Tag  { return TagListen }
func (Connect) Tag() Tag { return TagConnect }
func (Accept) Tag() Tag  { return TagAccept }
func (Send) Tag() Tag    { return TagSend }
func (Receive) Tag() Tag { return TagReceive }
func (Close) Tag() Tag   { return TagClose }

func (Bind) isNetworkEvent()    {}
func (Listen) isNetworkEvent()  {}
func (Connect) isNetworkEvent() {}
func (Accept) isNetworkEvent()  {}
func (Send) isNetworkEvent()    {}
func (Receive) isNetworkEvent() {}
func (Close) isNetworkEvent()   {}

func (e Bind) String() string    { return fmt.Sprintf("bind on %s (%s)", e.Addr, e.Proto) }
func (e Listen) String() string  { return fmt.Sprintf("listen on %s", e.Addr) }
func (e Connect) String() string { return fmt.Sprintf("connect -> %s (%s)", e.Dst, e.Proto) }
func (e Accept) String() string  { return fmt.Sprintf("accept %s -> %s", e.Src, e.Dst) }
func (e Send) String() string    { return fmt.Sprintf("sent %d bytes", e.DataLen) }
func (e Receive) String() string { return fmt.Sprintf("received %d bytes", e.DataLen) }
func (e Close) String() string {
	return fmt.Sprintf("close %s -> %s (original pid: %d)", e.Src, e.Dst, e.OriginalPid)
}
