// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package kernel

import (
	"runtime"
	"sync"
	"time"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"

	"grimm.is/netcapture/internal/ebpf/programs"
	"grimm.is/netcapture/internal/errors"
)

var (
	memlockOnce sync.Once
	memlockErr  error
)

// LinuxOptions configures the Linux provider.
type LinuxOptions struct {
	// Namespace is a named network namespace (/var/run/netns) holding
	// the target interface. Empty means the current namespace.
	Namespace string
}

// LinuxKernel implements Kernel using netlink and the BPF syscalls.
type LinuxKernel struct {
	namespace string
	ns        netns.NsHandle
	nl        *netlink.Handle
}

// NewLinuxKernel creates a new Linux kernel provider.
func NewLinuxKernel(opts LinuxOptions) (*LinuxKernel, error) {
	k := &LinuxKernel{namespace: opts.Namespace, ns: netns.None()}

	if opts.Namespace == "" {
		h, err := netlink.NewHandle()
		if err != nil {
			return nil, errors.Wrap(err, errors.Classify(err), "failed to open netlink handle")
		}
		k.nl = h
		return k, nil
	}

	ns, err := netns.GetFromName(opts.Namespace)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindNotFound, "network namespace %s", opts.Namespace)
	}
	h, err := netlink.NewHandleAt(ns)
	if err != nil {
		ns.Close()
		return nil, errors.Wrapf(err, errors.Classify(err), "failed to open netlink handle in %s", opts.Namespace)
	}
	k.ns = ns
	k.nl = h
	return k, nil
}

// Close releases the netlink handle and namespace reference.
func (k *LinuxKernel) Close() error {
	k.nl.Close()
	if k.ns.IsOpen() {
		return k.ns.Close()
	}
	return nil
}

// Now returns the current system time.
func (k *LinuxKernel) Now() time.Time {
	return time.Now()
}

// Boottime derives the monotonic origin from CLOCK_MONOTONIC, the clock
// bpf_ktime_get_ns() reads.
func (k *LinuxKernel) Boottime() time.Time {
	var ts unix.Timespec
	now := time.Now()
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return now
	}
	return now.Add(-time.Duration(ts.Nano()))
}

// LinkIndex resolves an interface name in the provider's namespace.
func (k *LinuxKernel) LinkIndex(name string) (int, error) {
	l, err := k.nl.LinkByName(name)
	if err != nil {
		var nf netlink.LinkNotFoundError
		if errors.As(err, &nf) {
			return 0, errors.Wrapf(err, errors.KindNotFound, "interface %s", name)
		}
		return 0, errors.Wrapf(err, errors.Classify(err), "failed to look up interface %s", name)
	}
	return l.Attrs().Index, nil
}

func clsact(ifindex int) *netlink.GenericQdisc {
	return &netlink.GenericQdisc{
		QdiscAttrs: netlink.QdiscAttrs{
			LinkIndex: ifindex,
			Handle:    netlink.MakeHandle(0xffff, 0),
			Parent:    netlink.HANDLE_CLSACT,
		},
		QdiscType: "clsact",
	}
}

// AddClsact adds the clsact qdisc. An existing one yields unix.EEXIST.
func (k *LinuxKernel) AddClsact(ifindex int) error {
	return k.nl.QdiscAdd(clsact(ifindex))
}

// DelClsact removes the clsact qdisc and every filter attached to it.
func (k *LinuxKernel) DelClsact(ifindex int) error {
	return k.nl.QdiscDel(clsact(ifindex))
}

// Load loads the image into the kernel.
func (k *LinuxKernel) Load(img *programs.Image) (Program, error) {
	memlockOnce.Do(func() {
		memlockErr = rlimit.RemoveMemlock()
	})
	if memlockErr != nil {
		return nil, errors.Wrap(memlockErr, errors.Classify(memlockErr), "failed to remove memlock limit")
	}

	coll, err := ebpf.NewCollection(img.Spec)
	if err != nil {
		var ve *ebpf.VerifierError
		if errors.As(err, &ve) {
			return nil, errors.Attr(errors.Wrapf(err, errors.KindValidation, "verifier rejected %s", img.Source), "verifier_log", ve.Log)
		}
		return nil, errors.Wrapf(err, errors.Classify(err), "failed to load %s", img.Source)
	}
	return &linuxProgram{coll: coll}, nil
}

// AttachIngress attaches with a TCX link, falling back to a direct-action
// cls_bpf filter under clsact on kernels without TCX.
func (k *LinuxKernel) AttachIngress(ifindex int, p Program) (Hook, error) {
	lp, ok := p.(*linuxProgram)
	if !ok {
		return nil, errors.Errorf(errors.KindInternal, "program %T was not loaded by this provider", p)
	}
	prog := lp.coll.Programs[programs.ProgramName]
	if prog == nil {
		return nil, errors.Errorf(errors.KindValidation, "collection has no %s program", programs.ProgramName)
	}

	var l link.Link
	err := k.inNamespace(func() error {
		var err error
		l, err = link.AttachTCX(link.TCXOptions{
			Interface: ifindex,
			Program:   prog,
			Attach:    ebpf.AttachTCXIngress,
		})
		return err
	})
	if err == nil {
		return &tcxHook{link: l}, nil
	}
	if !errors.Is(err, ebpf.ErrNotSupported) {
		return nil, errors.Wrap(err, errors.Classify(err), "failed to attach tcx ingress link")
	}

	filter := &netlink.BpfFilter{
		FilterAttrs: netlink.FilterAttrs{
			LinkIndex: ifindex,
			Parent:    netlink.HANDLE_MIN_INGRESS,
			Handle:    netlink.MakeHandle(0, 1),
			Protocol:  unix.ETH_P_ALL,
			Priority:  1,
		},
		Fd:           prog.FD(),
		Name:         programs.ProgramName,
		DirectAction: true,
	}
	if err := k.nl.FilterAdd(filter); err != nil {
		return nil, errors.Wrap(err, errors.Classify(err), "failed to add cls_bpf ingress filter")
	}
	return &filterHook{nl: k.nl, filter: filter}, nil
}

// inNamespace runs fn on a thread switched into the provider's namespace.
func (k *LinuxKernel) inNamespace(fn func() error) error {
	if !k.ns.IsOpen() {
		return fn()
	}

	runtime.LockOSThread()
	orig, err := netns.Get()
	if err != nil {
		runtime.UnlockOSThread()
		return errors.Wrap(err, errors.KindInternal, "failed to get current namespace")
	}
	defer orig.Close()

	if err := netns.Set(k.ns); err != nil {
		runtime.UnlockOSThread()
		return errors.Wrapf(err, errors.Classify(err), "failed to enter namespace %s", k.namespace)
	}
	defer func() {
		// A thread left in the wrong namespace must not be reused.
		if err := netns.Set(orig); err == nil {
			runtime.UnlockOSThread()
		}
	}()

	return fn()
}

type linuxProgram struct {
	coll *ebpf.Collection
}

func (p *linuxProgram) Records() (RecordReader, error) {
	m := p.coll.Maps[programs.OutputMap]
	if m == nil {
		return nil, errors.Errorf(errors.KindValidation, "collection has no %s map", programs.OutputMap)
	}
	rd, err := ringbuf.NewReader(m)
	if err != nil {
		return nil, errors.Wrap(err, errors.Classify(err), "failed to open ring buffer reader")
	}
	return &ringReader{rd: rd}, nil
}

func (p *linuxProgram) Close() error {
	p.coll.Close()
	return nil
}

type ringReader struct {
	rd *ringbuf.Reader
}

func (r *ringReader) Read() ([]byte, error) {
	rec, err := r.rd.Read()
	if err != nil {
		if errors.Is(err, ringbuf.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return rec.RawSample, nil
}

func (r *ringReader) Close() error {
	return r.rd.Close()
}

type tcxHook struct {
	link link.Link
}

func (h *tcxHook) Mode() string { return "tcx" }
func (h *tcxHook) Close() error { return h.link.Close() }

type filterHook struct {
	nl     *netlink.Handle
	filter *netlink.BpfFilter
}

func (h *filterHook) Mode() string { return "cls_bpf" }
func (h *filterHook) Close() error { return h.nl.FilterDel(h.filter) }
