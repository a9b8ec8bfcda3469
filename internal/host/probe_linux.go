// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package host

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/features"
)

func probeKernel() []SystemRequirementError {
	var errs []SystemRequirementError
	if err := features.HaveProgramType(ebpf.SchedCLS); err != nil {
		errs = append(errs, SystemRequirementError{
			Feature: "SchedCLS",
			Message: "tc classifier programs unavailable: " + err.Error(),
			Fatal:   true,
		})
	}
	if err := features.HaveMapType(ebpf.RingBuf); err != nil {
		errs = append(errs, SystemRequirementError{
			Feature: "RingBuf",
			Message: "ring buffer maps unavailable (kernel 5.8+ required): " + err.Error(),
			Fatal:   true,
		})
	}
	return errs
}
