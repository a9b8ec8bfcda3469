// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package main

import "grimm.is/netcapture/internal/kernel"

func openKernel(namespace string) (kernel.Kernel, func(), error) {
	k, err := kernel.NewLinuxKernel(kernel.LinuxOptions{Namespace: namespace})
	if err != nil {
		return nil, nil, err
	}
	return k, func() { k.Close() }, nil
}
