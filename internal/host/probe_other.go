// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package host

func probeKernel() []SystemRequirementError {
	return []SystemRequirementError{{
		Feature: "eBPF",
		Message: "ingress capture requires Linux",
		Fatal:   true,
	}}
}
