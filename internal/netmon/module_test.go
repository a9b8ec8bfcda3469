// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netmon

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/netcapture/internal/ebpf/capture"
	"grimm.is/netcapture/internal/ebpf/metrics"
	"grimm.is/netcapture/internal/ebpf/types"
	"grimm.is/netcapture/internal/errors"
	"grimm.is/netcapture/internal/event"
	"grimm.is/netcapture/internal/kernel"
	"grimm.is/netcapture/internal/sender"
)

type fixture struct {
	sim     *kernel.SimKernel
	rec     *sender.Recorder
	metrics *metrics.Metrics
	mod     *Module
}

func newFixture(t *testing.T, iface string) *fixture {
	t.Helper()
	f := &fixture{
		sim:     kernel.NewSimKernel(),
		rec:     &sender.Recorder{},
		metrics: metrics.NewMetrics(),
	}
	f.sim.AddLink("eth0")
	f.mod = New(Config{Interface: iface, ChannelSize: 16}, Options{
		Kernel:  f.sim,
		Sender:  f.rec,
		Metrics: f.metrics,
	})
	return f
}

func (f *fixture) emit(t *testing.T, ev *types.Event) {
	t.Helper()
	raw, err := ev.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, f.sim.Emit("eth0", raw))
}

func TestModulePipeline(t *testing.T) {
	f := newFixture(t, "eth0")
	require.NoError(t, f.mod.Start(context.Background()))
	assert.Equal(t, "attached", f.mod.Status().State)

	f.emit(t, &types.Event{
		Timestamp: uint64(5 * time.Second),
		Pid:       100,
		Payload:   types.Bind{Addr: types.AddrV4{Port: 8080, IP: 0xC0A80105}, Proto: types.ProtoTCP},
	})
	f.emit(t, &types.Event{
		Pid:     101,
		Payload: types.Send{Src: addrA, Dst: addrB, Data: types.BufferIndex{Len: 1460}, DataLen: 1460, Proto: types.ProtoTCP},
	})
	f.emit(t, &types.Event{
		Pid:     102,
		Payload: types.Receive{Src: addrA, Dst: addrB, Data: types.BufferIndex{Len: 4}, DataLen: 4, Proto: types.ProtoUDP},
		Buffer:  []byte("pong"),
	})

	require.Eventually(t, func() bool {
		return f.rec.Len() == 2 && testutil.ToFloat64(f.metrics.TranslationFailures.WithLabelValues("send")) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, f.mod.Stop())
	assert.Equal(t, "detached", f.mod.Status().State)
	assert.False(t, f.sim.Attached("eth0"))

	got := f.rec.Events()
	require.Len(t, got, 2)

	assert.Equal(t, event.Bind{Address: host("192.168.1.5:8080"), IsTCP: true}, got[0].Payload)
	assert.Equal(t, int32(100), got[0].Pid)
	assert.Equal(t, ModuleName, got[0].Module)
	assert.Equal(t, "eth0", got[0].Interface)
	assert.True(t, f.sim.Boottime().Add(5*time.Second).Equal(got[0].Timestamp))

	assert.Equal(t, event.KindReceive, got[1].Payload.Kind())
	assert.Equal(t, int32(102), got[1].Pid)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.EventsTranslated.WithLabelValues("bind")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.EventsTranslated.WithLabelValues("receive")))
}

func TestModuleSendFailuresAreCounted(t *testing.T) {
	f := newFixture(t, "eth0")
	f.rec.Err = errors.New(errors.KindUnavailable, "sink down")
	require.NoError(t, f.mod.Start(context.Background()))

	f.emit(t, &types.Event{Payload: types.Listen{Addr: addrA}})
	f.emit(t, &types.Event{Payload: types.Listen{Addr: addrB}})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.SendFailures) == 2
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, f.mod.Stop())
}

func TestModuleUnknownInterface(t *testing.T) {
	f := newFixture(t, "nope0")

	err := f.mod.Start(context.Background())
	var aerr *capture.AttachError
	require.ErrorAs(t, err, &aerr)
	assert.True(t, errors.IsFatal(err))

	assert.Zero(t, f.rec.Len())
	assert.Zero(t, f.sim.Loaded())
	assert.Equal(t, "unattached", f.mod.Status().State)
	assert.NoError(t, f.mod.Stop())
}

func TestModuleStopsWithContext(t *testing.T) {
	f := newFixture(t, "eth0")
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.mod.Start(ctx))

	f.emit(t, &types.Event{Payload: types.Accept{Src: addrA, Dst: addrB}})
	require.Eventually(t, func() bool { return f.rec.Len() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	done := make(chan error, 1)
	go func() { done <- f.mod.Wait() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("module did not stop after context cancellation")
	}
	assert.False(t, f.sim.Attached("eth0"))
}

func TestModuleDoubleStart(t *testing.T) {
	f := newFixture(t, "eth0")
	require.NoError(t, f.mod.Start(context.Background()))
	defer f.mod.Stop()

	assert.Error(t, f.mod.Start(context.Background()))
}

func TestModuleAttachTimeout(t *testing.T) {
	sim := kernel.NewSimKernel()
	sim.AddLink("eth0")
	mod := New(Config{Interface: "eth0", AttachTimeout: time.Nanosecond}, Options{Kernel: sim, Sender: &sender.Recorder{}})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	err := mod.Start(ctx)
	var aerr *capture.AttachError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, errors.KindTimeout, errors.GetKind(err))
}
