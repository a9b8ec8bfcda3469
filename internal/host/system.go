// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package host checks that the running kernel can host the ingress
// capture program.
package host

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultProcRoot is where procfs is mounted.
const DefaultProcRoot = "/proc"

// MemoryInfo holds system memory statistics.
type MemoryInfo struct {
	TotalBytes     uint64
	FreeBytes      uint64
	AvailableBytes uint64
}

// GetMemoryInfo parses meminfo under procRoot.
func GetMemoryInfo(procRoot string) (*MemoryInfo, error) {
	file, err := os.Open(filepath.Join(procRoot, "meminfo"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info := &MemoryInfo{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		// "Key: VALUE kB"
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		val, _ := strconv.ParseUint(fields[1], 10, 64)
		valBytes := val * 1024

		switch fields[0] {
		case "MemTotal:":
			info.TotalBytes = valBytes
		case "MemFree:":
			info.FreeBytes = valBytes
		case "MemAvailable:":
			info.AvailableBytes = valBytes
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Older kernels lack MemAvailable.
	if info.AvailableBytes == 0 {
		info.AvailableBytes = info.FreeBytes
	}
	return info, nil
}

// CheckBPFJIT reports whether the eBPF JIT is enabled.
func CheckBPFJIT(procRoot string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(procRoot, "sys/net/core/bpf_jit_enable"))
	if err != nil {
		return false, err
	}
	v := strings.TrimSpace(string(data))
	// 2 is JIT with debug output.
	return v == "1" || v == "2", nil
}

// GetBPFJITLimit returns the eBPF JIT memory limit in MB.
func GetBPFJITLimit(procRoot string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(procRoot, "sys/net/core/bpf_jit_limit"))
	if err != nil {
		return 0, err
	}
	limit, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, err
	}
	return limit / 1024 / 1024, nil
}

// SystemRequirementError represents a missing system requirement.
type SystemRequirementError struct {
	Feature string
	Message string
	Fatal   bool
}

func (e *SystemRequirementError) Error() string {
	return fmt.Sprintf("%s: %s", e.Feature, e.Message)
}

// Requirements tunes VerifyCaptureSupport.
type Requirements struct {
	ProcRoot string
	// RingSize is the ring buffer the capture will allocate, in bytes.
	RingSize uint32
	// Probe checks kernel program and map support. Nil uses the
	// platform's feature probes.
	Probe func() []SystemRequirementError
}

// VerifyCaptureSupport checks if the system can run the capture. Fatal
// entries mean Attach will fail; the rest only degrade it.
func VerifyCaptureSupport(req Requirements) []SystemRequirementError {
	if req.ProcRoot == "" {
		req.ProcRoot = DefaultProcRoot
	}
	if req.Probe == nil {
		req.Probe = probeKernel
	}

	var errs []SystemRequirementError

	if _, err := os.Stat(filepath.Join(req.ProcRoot, "sys/net/core/bpf_jit_enable")); os.IsNotExist(err) {
		return append(errs, SystemRequirementError{
			Feature: "eBPF",
			Message: "Kernel does not support eBPF JIT",
			Fatal:   true,
		})
	}

	errs = append(errs, req.Probe()...)

	if enabled, err := CheckBPFJIT(req.ProcRoot); err != nil || !enabled {
		errs = append(errs, SystemRequirementError{
			Feature: "JIT",
			Message: "eBPF JIT is not enabled",
		})
	}

	if limit, err := GetBPFJITLimit(req.ProcRoot); err == nil && limit < 64 {
		errs = append(errs, SystemRequirementError{
			Feature: "JIT Limit",
			Message: fmt.Sprintf("eBPF JIT limit too low (%d MB, recommended >= 64 MB)", limit),
		})
	}

	if mem, err := GetMemoryInfo(req.ProcRoot); err == nil && req.RingSize > 0 {
		if mem.AvailableBytes < 4*uint64(req.RingSize) {
			errs = append(errs, SystemRequirementError{
				Feature: "Memory",
				Message: fmt.Sprintf("Low available memory (%d MB) for a %d KB ring buffer",
					mem.AvailableBytes/1024/1024, req.RingSize/1024),
			})
		}
	}

	return errs
}

// HasFatal reports whether any entry in errs is fatal.
func HasFatal(errs []SystemRequirementError) bool {
	for _, e := range errs {
		if e.Fatal {
			return true
		}
	}
	return false
}
