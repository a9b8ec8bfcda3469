// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package programs provides the kernel-side capture program image.
package programs

import (
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"

	"grimm.is/netcapture/internal/errors"
)

const (
	// ProgramName is the ingress classifier entry point.
	ProgramName = "tc_ingress"
	// OutputMap is the ring buffer the program publishes records to.
	OutputMap = "map_output_network_event"
	// License must be GPL compatible for the helpers the program uses.
	License = "Dual BSD/GPL"

	// DefaultRingSize is the ring buffer size in bytes.
	DefaultRingSize = 256 * 1024

	// TC_ACT_OK lets the packet continue through the stack.
	tcActOK = 0
)

// Image is a loadable program collection.
type Image struct {
	Spec *ebpf.CollectionSpec
	// Source is "builtin" or the object path the image was read from.
	Source string
}

// Builtin assembles the default image: a classifier that passes every
// packet through unchanged and an empty output ring. It never writes
// records, so it only proves the attach path. Set the module's
// object_path to load a compiled object that emits them.
func Builtin(ringSize uint32) (*Image, error) {
	if ringSize == 0 {
		ringSize = DefaultRingSize
	}
	if err := checkRingSize(ringSize); err != nil {
		return nil, err
	}

	spec := &ebpf.CollectionSpec{
		Maps: map[string]*ebpf.MapSpec{
			OutputMap: {
				// Kernel object names are limited to 15 characters.
				Name:       "netcap_output",
				Type:       ebpf.RingBuf,
				MaxEntries: ringSize,
			},
		},
		Programs: map[string]*ebpf.ProgramSpec{
			ProgramName: {
				Name:    ProgramName,
				Type:    ebpf.SchedCLS,
				License: License,
				Instructions: asm.Instructions{
					asm.Mov.Imm(asm.R0, tcActOK),
					asm.Return(),
				},
			},
		},
	}

	img := &Image{Spec: spec, Source: "builtin"}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// FromObject reads a compiled ELF object. A non-zero ringSize overrides
// the ring buffer size declared in the object.
func FromObject(path string, ringSize uint32) (*Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, errors.KindNotFound, "program object %s", path)
	}

	spec, err := ebpf.LoadCollectionSpec(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindMalformed, "failed to parse program object %s", path)
	}

	img := &Image{Spec: spec, Source: path}
	if err := img.Validate(); err != nil {
		return nil, err
	}

	if ringSize != 0 {
		if err := checkRingSize(ringSize); err != nil {
			return nil, err
		}
		spec.Maps[OutputMap].MaxEntries = ringSize
	}
	return img, nil
}

// Validate checks that the image carries the classifier and the output ring.
func (img *Image) Validate() error {
	if img == nil || img.Spec == nil {
		return errors.New(errors.KindValidation, "empty program image")
	}

	prog, ok := img.Spec.Programs[ProgramName]
	if !ok {
		return errors.Errorf(errors.KindValidation, "image %s: program %s not found", img.Source, ProgramName)
	}
	if prog.Type != ebpf.SchedCLS {
		return errors.Errorf(errors.KindValidation, "image %s: program %s has type %s, want %s",
			img.Source, ProgramName, prog.Type, ebpf.SchedCLS)
	}

	m, ok := img.Spec.Maps[OutputMap]
	if !ok {
		return errors.Errorf(errors.KindValidation, "image %s: map %s not found", img.Source, OutputMap)
	}
	if m.Type != ebpf.RingBuf {
		return errors.Errorf(errors.KindValidation, "image %s: map %s has type %s, want %s",
			img.Source, OutputMap, m.Type, ebpf.RingBuf)
	}
	return nil
}

// RingSize returns the configured output ring size in bytes.
func (img *Image) RingSize() uint32 {
	return img.Spec.Maps[OutputMap].MaxEntries
}

func checkRingSize(size uint32) error {
	page := uint32(os.Getpagesize())
	if size&(size-1) != 0 || size%page != 0 {
		return errors.Errorf(errors.KindValidation,
			"ring size %d must be a power of two and a multiple of the page size (%d)", size, page)
	}
	return nil
}
