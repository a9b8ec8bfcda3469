// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package sender delivers translated events to downstream consumers.
package sender

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"grimm.is/netcapture/internal/errors"
	"grimm.is/netcapture/internal/event"
)

// Sender accepts one event at a time, in arrival order. A returned error
// is counted and logged by the caller; the pipeline keeps running.
type Sender interface {
	Send(ctx context.Context, env event.Envelope) error
}

// Func adapts a function to Sender.
type Func func(ctx context.Context, env event.Envelope) error

func (f Func) Send(ctx context.Context, env event.Envelope) error {
	return f(ctx, env)
}

// JSONSender writes one JSON document per line.
type JSONSender struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSender writes to w.
func NewJSONSender(w io.Writer) *JSONSender {
	return &JSONSender{enc: json.NewEncoder(w)}
}

func (s *JSONSender) Send(_ context.Context, env event.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(env); err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to write event")
	}
	return nil
}

// Multi fans an event out to every sender. All senders are tried; their
// errors are joined.
type Multi []Sender

func (m Multi) Send(ctx context.Context, env event.Envelope) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every event it receives. Used by tests and the
// simulator.
type Recorder struct {
	mu   sync.Mutex
	envs []event.Envelope
	// Err, when set, is returned from Send after recording.
	Err error
}

func (r *Recorder) Send(_ context.Context, env event.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return r.Err
}

// Events returns a copy of the recorded envelopes.
func (r *Recorder) Events() []event.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Envelope(nil), r.envs...)
}

// Len returns the number of recorded envelopes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.envs)
}
