// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netmon is the network monitoring module. It attaches the
// ingress capture to one interface and forwards translated socket
// activity to a sender.
package netmon

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"grimm.is/netcapture/internal/ebpf/capture"
	"grimm.is/netcapture/internal/ebpf/metrics"
	"grimm.is/netcapture/internal/ebpf/types"
	"grimm.is/netcapture/internal/errors"
	"grimm.is/netcapture/internal/event"
	"grimm.is/netcapture/internal/kernel"
	"grimm.is/netcapture/internal/logging"
	"grimm.is/netcapture/internal/sender"
)

// ModuleName identifies the module in config and on envelopes.
const ModuleName = "netmon"

// Options wires a Module to its collaborators.
type Options struct {
	Kernel  kernel.Kernel
	Sender  sender.Sender
	Metrics *metrics.Metrics
	Logger  *logging.Logger
}

// Module runs one capture pipeline.
type Module struct {
	cfg     Config
	kernel  kernel.Kernel
	sender  sender.Sender
	metrics *metrics.Metrics
	logger  *logging.Logger

	mu     sync.Mutex
	handle *capture.Handle
	group  *errgroup.Group
	stop   context.CancelFunc
}

// New creates an unstarted module.
func New(cfg Config, opts Options) *Module {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent(ModuleName)
	}
	return &Module{
		cfg:     cfg,
		kernel:  opts.Kernel,
		sender:  opts.Sender,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("interface", cfg.Interface),
	}
}

// Start attaches the capture and launches the consumer. It returns once
// the capture is attached; a failed attach is returned as is and nothing
// is left running. Cancelling ctx stops the module.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		return errors.New(errors.KindInternal, "netmon module already started")
	}

	attachCtx := ctx
	if m.cfg.AttachTimeout > 0 {
		var cancel context.CancelFunc
		attachCtx, cancel = context.WithTimeout(ctx, m.cfg.AttachTimeout)
		defer cancel()
	}

	h, err := capture.Attach(attachCtx, m.kernel, capture.Options{
		Interface:   m.cfg.Interface,
		ObjectPath:  m.cfg.ObjectPath,
		RingSize:    m.cfg.RingSize,
		ChannelSize: m.cfg.ChannelSize,
		Metrics:     m.metrics,
		Logger:      m.logger.WithComponent("capture"),
	})
	if err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	g := new(errgroup.Group)

	g.Go(func() error {
		<-runCtx.Done()
		return h.Close()
	})
	g.Go(func() error {
		// Events already dequeued are delivered even after stop.
		m.consume(context.WithoutCancel(runCtx), h)
		return nil
	})

	m.handle = h
	m.group = g
	m.stop = stop
	m.logger.Info("Network monitor started")
	return nil
}

func (m *Module) consume(ctx context.Context, h *capture.Handle) {
	events := h.Events()
	for ev := range events {
		m.metrics.ChannelDepth.Set(float64(len(events)))
		m.process(ctx, ev)
	}
	m.metrics.ChannelDepth.Set(0)
}

func (m *Module) process(ctx context.Context, ev *types.Event) {
	kind := ev.Payload.Tag().String()

	payload, err := Translate(ev)
	if err != nil {
		m.metrics.TranslationFailures.WithLabelValues(kind).Inc()
		m.logger.Debug("Dropping event", "kind", kind, "pid", ev.Pid, "error", err)
		return
	}
	m.metrics.EventsTranslated.WithLabelValues(kind).Inc()

	env := event.NewEnvelope(ModuleName, m.cfg.Interface, kernel.WallTime(m.kernel, ev.Timestamp), ev.Pid, payload)
	if err := m.sender.Send(ctx, env); err != nil {
		m.metrics.SendFailures.Inc()
		m.logger.WithError(err).Warn("Sender rejected event", "kind", kind)
	}
}

// Stop detaches the capture, drains queued events and waits for the
// consumer. It is a no-op on a module that never started.
func (m *Module) Stop() error {
	m.mu.Lock()
	stop, g := m.stop, m.group
	m.mu.Unlock()

	if g == nil {
		return nil
	}
	stop()
	err := g.Wait()
	m.logger.Info("Network monitor stopped")
	return err
}

// Wait blocks until the module has stopped.
func (m *Module) Wait() error {
	m.mu.Lock()
	g := m.group
	m.mu.Unlock()

	if g == nil {
		return nil
	}
	return g.Wait()
}

// Status describes a module for the API.
type Status struct {
	Module    string           `json:"module"`
	Interface string           `json:"interface"`
	State     string           `json:"state"`
	Mode      string           `json:"mode,omitempty"`
	Counters  metrics.Snapshot `json:"counters"`
}

// Status reports the current state and counters.
func (m *Module) Status() Status {
	m.mu.Lock()
	h := m.handle
	m.mu.Unlock()

	st := Status{
		Module:    ModuleName,
		Interface: m.cfg.Interface,
		State:     capture.StateUnattached.String(),
		Counters:  m.metrics.Snapshot(),
	}
	if h != nil {
		st.State = h.State().String()
		st.Mode = h.Mode()
	}
	return st
}
