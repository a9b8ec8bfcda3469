// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package capture attaches the ingress capture program to an interface and
// streams decoded records out of its ring buffer.
package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"grimm.is/netcapture/internal/ebpf/metrics"
	"grimm.is/netcapture/internal/ebpf/programs"
	"grimm.is/netcapture/internal/ebpf/types"
	"grimm.is/netcapture/internal/errors"
	"grimm.is/netcapture/internal/kernel"
	"grimm.is/netcapture/internal/logging"
)

// DefaultChannelSize bounds the decoded record channel.
const DefaultChannelSize = 1024

// Retry bounds for failing ring buffer reads. The delay doubles per
// consecutive failure and resets on the next good read.
const (
	readBackoffMin = time.Millisecond
	readBackoffMax = time.Second
)

// State is the lifecycle position of a Handle.
type State int32

const (
	StateUnattached State = iota
	StateAttached
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateAttached:
		return "attached"
	case StateDetached:
		return "detached"
	}
	return "unknown"
}

// Options configures Attach.
type Options struct {
	Interface string
	// Image overrides ObjectPath. With neither set the built-in image
	// is used.
	Image       *programs.Image
	ObjectPath  string
	RingSize    uint32
	ChannelSize int
	Metrics     *metrics.Metrics
	Logger      *logging.Logger
}

// Handle owns every kernel resource of one attached capture.
type Handle struct {
	iface   string
	ifindex int

	k         kernel.Kernel
	prog      kernel.Program
	hook      kernel.Hook
	reader    kernel.RecordReader
	ownsQdisc bool

	events chan *types.Event
	stop   chan struct{}
	done   chan struct{}
	state  atomic.Int32

	closeOnce sync.Once
	closeErr  error

	metrics *metrics.Metrics
	logger  *logging.Logger
}

// Attach hooks the capture program on opts.Interface and starts reading.
// ctx bounds the attach sequence only; the returned handle runs until
// Close. Every failure is an *AttachError and leaves no kernel state behind.
func Attach(ctx context.Context, k kernel.Kernel, opts Options) (*Handle, error) {
	if opts.ChannelSize <= 0 {
		opts.ChannelSize = DefaultChannelSize
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("capture")
	}
	log := opts.Logger.With("interface", opts.Interface)

	h := &Handle{
		iface:   opts.Interface,
		k:       k,
		events:  make(chan *types.Event, opts.ChannelSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		metrics: opts.Metrics,
		logger:  log,
	}

	var cleanups []func()
	fail := func(stage Stage, err error) (*Handle, error) {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		opts.Metrics.AttachErrors.WithLabelValues(string(stage)).Inc()
		aerr := newAttachError(opts.Interface, stage, err)
		log.WithError(err).Error("Capture attach failed", "stage", stage)
		return nil, aerr
	}

	// Link
	if err := ctx.Err(); err != nil {
		return fail(StageLink, err)
	}
	idx, err := k.LinkIndex(opts.Interface)
	if err != nil {
		return fail(StageLink, err)
	}
	h.ifindex = idx

	if err := k.AddClsact(idx); err != nil {
		log.Debug("clsact qdisc not added", "error", err)
	} else {
		h.ownsQdisc = true
		cleanups = append(cleanups, func() { k.DelClsact(idx) })
	}

	// Load
	if err := ctx.Err(); err != nil {
		return fail(StageLoad, err)
	}
	img := opts.Image
	if img == nil {
		if opts.ObjectPath != "" {
			img, err = programs.FromObject(opts.ObjectPath, opts.RingSize)
		} else {
			img, err = programs.Builtin(opts.RingSize)
		}
		if err != nil {
			return fail(StageLoad, err)
		}
	}
	prog, err := k.Load(img)
	if err != nil {
		return fail(StageLoad, err)
	}
	h.prog = prog
	cleanups = append(cleanups, func() { prog.Close() })

	// Attach
	if err := ctx.Err(); err != nil {
		return fail(StageAttach, err)
	}
	hook, err := k.AttachIngress(idx, prog)
	if err != nil {
		return fail(StageAttach, err)
	}
	h.hook = hook
	cleanups = append(cleanups, func() { hook.Close() })

	// Start
	if err := ctx.Err(); err != nil {
		return fail(StageStart, err)
	}
	rd, err := prog.Records()
	if err != nil {
		return fail(StageStart, err)
	}
	h.reader = rd

	h.state.Store(int32(StateAttached))
	opts.Metrics.HookAttached.WithLabelValues(opts.Interface).Set(1)
	log.Info("Capture attached", "ifindex", idx, "mode", hook.Mode(), "image", img.Source, "owns_qdisc", h.ownsQdisc)

	go h.run()
	return h, nil
}

// Events returns decoded records in ring order. The channel is closed
// once the handle is closed and the reader has stopped.
func (h *Handle) Events() <-chan *types.Event {
	return h.events
}

// Interface returns the interface the handle is attached to.
func (h *Handle) Interface() string {
	return h.iface
}

// Mode reports how the ingress hook was attached.
func (h *Handle) Mode() string {
	return h.hook.Mode()
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

func (h *Handle) run() {
	defer close(h.done)

	backoff := readBackoffMin
	for {
		raw, err := h.reader.Read()
		if err != nil {
			if errors.Is(err, kernel.ErrClosed) {
				h.logger.Debug("Ring buffer reader closed")
				return
			}
			h.metrics.ReadErrors.Inc()
			h.logger.Debug("Ring buffer read error", "error", err, "retry_in", backoff)
			if !h.wait(backoff) {
				return
			}
			backoff = min(2*backoff, readBackoffMax)
			continue
		}
		backoff = readBackoffMin
		h.metrics.RecordsReceived.Inc()

		ev, err := types.Decode(raw)
		if err != nil {
			h.metrics.RecordsMalformed.Inc()
			h.logger.Debug("Dropping malformed record", "error", err, "size", len(raw))
			continue
		}

		select {
		case h.events <- ev:
			h.metrics.ChannelDepth.Set(float64(len(h.events)))
		case <-h.stop:
			return
		}
	}
}

// wait sleeps for d and reports false if the handle was closed first.
func (h *Handle) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-h.stop:
		return false
	}
}

// Close stops the reader, closes the event channel and releases the
// hook, the program and any qdisc the handle created. Safe to call more
// than once.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		close(h.stop)
		rerr := h.reader.Close()
		<-h.done
		close(h.events)

		herr := h.hook.Close()
		perr := h.prog.Close()
		var qerr error
		if h.ownsQdisc {
			qerr = h.k.DelClsact(h.ifindex)
		}

		h.state.Store(int32(StateDetached))
		h.metrics.HookAttached.WithLabelValues(h.iface).Set(0)
		h.closeErr = errors.Join(rerr, herr, perr, qerr)
		if h.closeErr != nil {
			h.logger.WithError(h.closeErr).Warn("Capture detached with errors")
		} else {
			h.logger.Info("Capture detached")
		}
	})
	return h.closeErr
}
