// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netmon

import (
	"net/netip"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/netcapture/internal/ebpf/types"
	"grimm.is/netcapture/internal/errors"
	"grimm.is/netcapture/internal/event"
)

var (
	addrA = types.AddrV4{Port: 40000, IP: 0x0A000001}
	addrB = types.AddrV4{Port: 443, IP: 0x0A000002}
)

func host(s string) event.Host {
	ap := netip.MustParseAddrPort(s)
	return event.Host{IP: ap.Addr(), Port: ap.Port()}
}

func TestTranslateEveryVariant(t *testing.T) {
	buf := make([]byte, 16)
	data := types.BufferIndex{Start: 0, Len: 16}

	tests := []struct {
		in      types.NetworkEvent
		kind    event.Kind
		wantTCP bool
	}{
		{types.Bind{Addr: addrA, Proto: types.ProtoTCP}, event.KindBind, true},
		{types.Bind{Addr: addrA, Proto: types.ProtoUDP}, event.KindBind, false},
		{types.Listen{Addr: addrA}, event.KindListen, true},
		{types.Connect{Dst: addrB, Proto: types.ProtoTCP}, event.KindConnect, true},
		{types.Connect{Dst: addrB, Proto: types.ProtoUDP}, event.KindConnect, false},
		{types.Accept{Src: addrA, Dst: addrB}, event.KindAccept, true},
		{types.Send{Src: addrA, Dst: addrB, Data: data, DataLen: 16, Proto: types.ProtoTCP}, event.KindSend, true},
		{types.Send{Src: addrA, Dst: addrB, Data: data, DataLen: 16, Proto: types.ProtoUDP}, event.KindSend, false},
		{types.Receive{Src: addrA, Dst: addrB, Data: data, DataLen: 16, Proto: types.ProtoTCP}, event.KindReceive, true},
		{types.Receive{Src: addrA, Dst: addrB, Data: data, DataLen: 16, Proto: types.ProtoUDP}, event.KindReceive, false},
		{types.Close{OriginalPid: 99, Src: addrA, Dst: addrB}, event.KindClose, true},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			p, err := Translate(&types.Event{Payload: tt.in, Buffer: buf})
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.Kind())
			assert.Equal(t, tt.wantTCP, p.TCP())
		})
	}
}

func TestTranslateBindScenario(t *testing.T) {
	in := &types.Event{Payload: types.Bind{Addr: types.AddrV4{Port: 8080, IP: 0xC0A80105}, Proto: types.ProtoTCP}}

	p, err := Translate(in)
	require.NoError(t, err)
	assert.Equal(t, event.Bind{Address: host("192.168.1.5:8080"), IsTCP: true}, p)
}

func TestTranslateSendUnresolvable(t *testing.T) {
	in := &types.Event{
		Payload: types.Send{
			Src:     addrA,
			Dst:     addrB,
			Data:    types.BufferIndex{Start: 0, Len: 1460},
			DataLen: 1460,
			Proto:   types.ProtoTCP,
		},
	}

	p, err := Translate(in)

	var terr *TranslationError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, event.KindSend, terr.Kind)
	assert.Equal(t, errors.KindMalformed, errors.GetKind(err))
	assert.False(t, errors.IsFatal(err))

	var ierr *types.IndexError
	assert.ErrorAs(t, err, &ierr)

	assert.Equal(t, event.Send{
		Source:      host("10.0.0.1:40000"),
		Destination: host("10.0.0.2:443"),
		Len:         1460,
		IsTCP:       true,
	}, p)
}

func TestDataLenPreserved(t *testing.T) {
	for _, dataLen := range []uint32{0, 1, 1460, 65535, 1 << 20, 0xffffffff} {
		for _, buf := range [][]byte{nil, make([]byte, 8)} {
			ev := &types.Event{
				Payload: types.Receive{Src: addrA, Dst: addrB, Data: types.BufferIndex{Len: 8}, DataLen: dataLen},
				Buffer:  buf,
			}
			p, _ := Translate(ev)
			require.NotNil(t, p)
			assert.Equal(t, int(dataLen), p.(event.Receive).Len)
		}
	}
}

func TestOriginalPidNotCarried(t *testing.T) {
	p, err := Translate(&types.Event{Pid: 1, Payload: types.Close{OriginalPid: 31337, Src: addrA, Dst: addrB}})
	require.NoError(t, err)

	v := reflect.ValueOf(p)
	for i := 0; i < v.NumField(); i++ {
		name := strings.ToLower(v.Type().Field(i).Name)
		assert.NotContains(t, name, "pid")
	}
	assert.Equal(t, event.Close{Source: host("10.0.0.1:40000"), Destination: host("10.0.0.2:443")}, p)
}
