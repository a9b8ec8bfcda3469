// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package kernel provides an abstraction over the kernel facilities used by
// the capture attacher. On Linux it wraps netlink and the BPF syscalls.
// SimKernel is a stateful in-memory implementation for tests and replay.
package kernel

import (
	"errors"
	"time"

	"grimm.is/netcapture/internal/ebpf/programs"
)

// ErrClosed is returned by RecordReader.Read once the reader is closed.
var ErrClosed = errors.New("record reader closed")

// Kernel abstracts the OS facilities the capture pipeline touches.
// Components interact with this interface instead of making direct syscalls.
type Kernel interface {
	// LinkIndex resolves an interface name.
	LinkIndex(name string) (int, error)

	// AddClsact adds a clsact qdisc to the interface. It fails if one
	// already exists.
	AddClsact(ifindex int) error
	DelClsact(ifindex int) error

	// Load verifies and loads a program image.
	Load(img *programs.Image) (Program, error)

	// AttachIngress hooks the image's classifier on ingress.
	AttachIngress(ifindex int, prog Program) (Hook, error)

	// Now returns the current wall-clock time.
	Now() time.Time

	// Boottime returns the wall-clock instant of the kernel monotonic
	// clock's origin. Record timestamps are offsets from it.
	Boottime() time.Time
}

// Program is a loaded collection.
type Program interface {
	// Records opens a reader on the output ring buffer.
	Records() (RecordReader, error)
	Close() error
}

// RecordReader yields raw records in publication order.
type RecordReader interface {
	// Read blocks until a record is available or the reader is closed.
	Read() ([]byte, error)
	Close() error
}

// Hook is an attached ingress program.
type Hook interface {
	// Mode reports the attach mechanism, "tcx" or "cls_bpf".
	Mode() string
	Close() error
}

// WallTime converts a kernel monotonic timestamp to wall-clock time.
func WallTime(k Kernel, ktime uint64) time.Time {
	return k.Boottime().Add(time.Duration(ktime))
}
