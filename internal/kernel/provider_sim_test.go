// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"grimm.is/netcapture/internal/ebpf/programs"
	"grimm.is/netcapture/internal/errors"
)

func loadBuiltin(t *testing.T, k Kernel) Program {
	t.Helper()
	img, err := programs.Builtin(0)
	require.NoError(t, err)
	prog, err := k.Load(img)
	require.NoError(t, err)
	return prog
}

func TestSimLinkIndex(t *testing.T) {
	sim := NewSimKernel()
	idx := sim.AddLink("eth0")
	assert.Equal(t, idx, sim.AddLink("eth0"))

	got, err := sim.LinkIndex("eth0")
	require.NoError(t, err)
	assert.Equal(t, idx, got)

	_, err = sim.LinkIndex("nope0")
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
	assert.ErrorIs(t, err, unix.ENODEV)
}

func TestSimClsact(t *testing.T) {
	sim := NewSimKernel()
	idx := sim.AddLink("eth0")

	require.NoError(t, sim.AddClsact(idx))
	assert.True(t, sim.HasClsact("eth0"))
	assert.ErrorIs(t, sim.AddClsact(idx), unix.EEXIST)

	require.NoError(t, sim.DelClsact(idx))
	assert.False(t, sim.HasClsact("eth0"))
	assert.ErrorIs(t, sim.DelClsact(idx), unix.ENOENT)
}

func TestSimEmitAndRead(t *testing.T) {
	sim := NewSimKernel()
	idx := sim.AddLink("eth0")
	prog := loadBuiltin(t, sim)
	defer prog.Close()

	assert.Error(t, sim.Emit("eth0", []byte{1}), "nothing attached yet")

	hook, err := sim.AttachIngress(idx, prog)
	require.NoError(t, err)
	assert.Equal(t, "tcx", hook.Mode())
	assert.True(t, sim.Attached("eth0"))

	_, err = sim.AttachIngress(idx, prog)
	assert.ErrorIs(t, err, unix.EBUSY)

	rd, err := prog.Records()
	require.NoError(t, err)

	rec := []byte{1, 2, 3}
	require.NoError(t, sim.Emit("eth0", rec))
	rec[0] = 9

	got, err := rd.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	require.NoError(t, hook.Close())
	assert.False(t, sim.Attached("eth0"))

	require.NoError(t, rd.Close())
	_, err = rd.Read()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSimReadUnblocksOnClose(t *testing.T) {
	sim := NewSimKernel()
	prog := loadBuiltin(t, sim)
	rd, err := prog.Records()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := rd.Read()
		done <- err
	}()

	require.NoError(t, prog.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Read did not return after program close")
	}
	assert.Zero(t, sim.Loaded())
}

func TestSimRingFull(t *testing.T) {
	sim := NewSimKernel()
	sim.RingRecords = 2
	idx := sim.AddLink("eth0")
	prog := loadBuiltin(t, sim)
	_, err := sim.AttachIngress(idx, prog)
	require.NoError(t, err)

	require.NoError(t, sim.Emit("eth0", []byte{1}))
	require.NoError(t, sim.Emit("eth0", []byte{2}))
	assert.ErrorIs(t, sim.Emit("eth0", []byte{3}), unix.ENOSPC)
}

func TestSimFailureSwitches(t *testing.T) {
	sim := NewSimKernel()
	sim.LoadErr = unix.EPERM

	img, err := programs.Builtin(0)
	require.NoError(t, err)
	_, err = sim.Load(img)
	assert.ErrorIs(t, err, unix.EPERM)
}

func TestWallTime(t *testing.T) {
	sim := NewSimKernel()
	want := sim.Boottime().Add(90 * time.Second)
	assert.True(t, want.Equal(WallTime(sim, uint64(90*time.Second))))
}
