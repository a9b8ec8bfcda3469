// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netmon

import (
	"math"
	"time"

	"grimm.is/netcapture/internal/config"
	"grimm.is/netcapture/internal/ebpf/capture"
	"grimm.is/netcapture/internal/ebpf/programs"
)

// DefaultInterface is used when the module config names none.
const DefaultInterface = "enp1s0"

// Config holds the resolved netmon options.
type Config struct {
	Interface string
	// AttachTimeout bounds the attach sequence. Zero means no limit.
	AttachTimeout time.Duration
	// ObjectPath selects a compiled program object instead of the
	// built-in image.
	ObjectPath  string
	ChannelSize int
	RingSize    uint32
	// Namespace names the network namespace holding Interface.
	Namespace string
}

// ResolveConfig extracts the module options, applying defaults.
func ResolveConfig(c config.ModuleConfig) (Config, error) {
	var (
		cfg Config
		err error
	)

	if cfg.Interface, err = c.String("interface", DefaultInterface); err != nil {
		return Config{}, err
	}
	if cfg.AttachTimeout, err = c.Duration("attach_timeout", 0); err != nil {
		return Config{}, err
	}
	if cfg.ObjectPath, err = c.String("object_path", ""); err != nil {
		return Config{}, err
	}
	if cfg.Namespace, err = c.String("namespace", ""); err != nil {
		return Config{}, err
	}

	if cfg.ChannelSize, err = c.Int("channel_size", capture.DefaultChannelSize); err != nil {
		return Config{}, err
	}
	if cfg.ChannelSize <= 0 {
		return Config{}, config.NewConfigError(c.Module(), "channel_size", "must be positive, got %d", cfg.ChannelSize)
	}

	ring, err := c.Int("ring_size", programs.DefaultRingSize)
	if err != nil {
		return Config{}, err
	}
	if ring <= 0 || int64(ring) > math.MaxUint32 {
		return Config{}, config.NewConfigError(c.Module(), "ring_size", "out of range: %d", ring)
	}
	cfg.RingSize = uint32(ring)

	return cfg, nil
}
