// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package kernel

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"grimm.is/netcapture/internal/ebpf/programs"
	"grimm.is/netcapture/internal/errors"
)

// DefaultSimRingRecords bounds the number of records a simulated ring
// buffer holds before Emit reports it full.
const DefaultSimRingRecords = 1024

// SimKernel is a stateful in-memory kernel simulator.
// It tracks interfaces, qdiscs and attached programs without requiring Linux.
type SimKernel struct {
	mu sync.RWMutex

	links    map[string]int
	nextIdx  int
	clsact   map[int]bool
	attached map[int]*simProgram
	loaded   int

	now  time.Time
	boot time.Time

	// RingRecords sizes the ring of programs loaded after it is set.
	RingRecords int

	// Failure switches, returned from the matching operation when set.
	ClsactErr  error
	LoadErr    error
	AttachErr  error
	RecordsErr error

	readErr error
}

// SetReadErr makes every ring read fail with err until it is cleared
// with nil.
func (s *SimKernel) SetReadErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

func (s *SimKernel) currentReadErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readErr
}

// NewSimKernel creates a simulator with a loopback interface.
func NewSimKernel() *SimKernel {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &SimKernel{
		links:       make(map[string]int),
		nextIdx:     1,
		clsact:      make(map[int]bool),
		attached:    make(map[int]*simProgram),
		now:         now,
		boot:        now.Add(-time.Hour),
		RingRecords: DefaultSimRingRecords,
	}
	s.AddLink("lo")
	return s
}

// AddLink registers an interface and returns its index.
func (s *SimKernel) AddLink(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.links[name]; ok {
		return idx
	}
	idx := s.nextIdx
	s.nextIdx++
	s.links[name] = idx
	return idx
}

// SetNow moves the simulated clock.
func (s *SimKernel) SetNow(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}

// Now returns the simulated time.
func (s *SimKernel) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

// Boottime returns the simulated monotonic origin.
func (s *SimKernel) Boottime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boot
}

// LinkIndex resolves a registered interface.
func (s *SimKernel) LinkIndex(name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.links[name]
	if !ok {
		return 0, errors.Wrapf(unix.ENODEV, errors.KindNotFound, "interface %s", name)
	}
	return idx, nil
}

// AddClsact mirrors the kernel: a second clsact on a link is EEXIST.
func (s *SimKernel) AddClsact(ifindex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ClsactErr != nil {
		return s.ClsactErr
	}
	if s.clsact[ifindex] {
		return unix.EEXIST
	}
	s.clsact[ifindex] = true
	return nil
}

// DelClsact removes the qdisc. Simulated hooks are TCX links and survive it.
func (s *SimKernel) DelClsact(ifindex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.clsact[ifindex] {
		return unix.ENOENT
	}
	delete(s.clsact, ifindex)
	return nil
}

// Load validates the image and creates an in-memory ring.
func (s *SimKernel) Load(img *programs.Image) (Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	s.loaded++
	return &simProgram{
		sim:  s,
		ring: make(chan []byte, s.RingRecords),
		done: make(chan struct{}),
	}, nil
}

// AttachIngress hooks the program on the interface. One program per link.
func (s *SimKernel) AttachIngress(ifindex int, p Program) (Hook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AttachErr != nil {
		return nil, s.AttachErr
	}
	sp, ok := p.(*simProgram)
	if !ok {
		return nil, errors.Errorf(errors.KindInternal, "program %T was not loaded by this provider", p)
	}
	if _, busy := s.attached[ifindex]; busy {
		return nil, unix.EBUSY
	}
	s.attached[ifindex] = sp
	return &simHook{sim: s, ifindex: ifindex}, nil
}

// Emit publishes a record on the program attached to iface. It reports
// unix.ENOSPC when the ring is full, as bpf_ringbuf_output would.
func (s *SimKernel) Emit(iface string, record []byte) error {
	s.mu.RLock()
	idx, ok := s.links[iface]
	sp := s.attached[idx]
	s.mu.RUnlock()

	if !ok {
		return errors.Wrapf(unix.ENODEV, errors.KindNotFound, "interface %s", iface)
	}
	if sp == nil {
		return errors.Errorf(errors.KindUnavailable, "no program attached to %s", iface)
	}

	buf := append([]byte(nil), record...)
	select {
	case sp.ring <- buf:
		return nil
	default:
		return unix.ENOSPC
	}
}

// Attached reports whether a program is hooked on iface.
func (s *SimKernel) Attached(iface string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.links[iface]
	if !ok {
		return false
	}
	_, attached := s.attached[idx]
	return attached
}

// HasClsact reports whether iface carries a clsact qdisc.
func (s *SimKernel) HasClsact(iface string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.links[iface]
	return ok && s.clsact[idx]
}

// Loaded returns the number of programs currently loaded.
func (s *SimKernel) Loaded() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

type simProgram struct {
	sim  *SimKernel
	ring chan []byte
	done chan struct{}
	once sync.Once
}

func (p *simProgram) Records() (RecordReader, error) {
	p.sim.mu.RLock()
	err := p.sim.RecordsErr
	p.sim.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return &simReader{prog: p, closed: make(chan struct{})}, nil
}

func (p *simProgram) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.sim.mu.Lock()
		p.sim.loaded--
		p.sim.mu.Unlock()
	})
	return nil
}

type simReader struct {
	prog   *simProgram
	closed chan struct{}
	once   sync.Once
}

func (r *simReader) Read() ([]byte, error) {
	select {
	case <-r.closed:
		return nil, ErrClosed
	case <-r.prog.done:
		return nil, ErrClosed
	default:
	}
	if err := r.prog.sim.currentReadErr(); err != nil {
		return nil, err
	}

	select {
	case rec := <-r.prog.ring:
		return rec, nil
	case <-r.closed:
		return nil, ErrClosed
	case <-r.prog.done:
		return nil, ErrClosed
	}
}

func (r *simReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

type simHook struct {
	sim     *SimKernel
	ifindex int
	once    sync.Once
}

func (h *simHook) Mode() string { return "tcx" }

func (h *simHook) Close() error {
	h.once.Do(func() {
		h.sim.mu.Lock()
		delete(h.sim.attached, h.ifindex)
		h.sim.mu.Unlock()
	})
	return nil
}
