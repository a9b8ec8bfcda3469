// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package main

import (
	"grimm.is/netcapture/internal/errors"
	"grimm.is/netcapture/internal/kernel"
)

func openKernel(string) (kernel.Kernel, func(), error) {
	return nil, nil, errors.New(errors.KindUnavailable, "ingress capture requires Linux")
}
