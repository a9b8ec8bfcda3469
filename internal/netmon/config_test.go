// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netmon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/netcapture/internal/config"
	"grimm.is/netcapture/internal/ebpf/capture"
	"grimm.is/netcapture/internal/ebpf/programs"
)

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := ResolveConfig(config.NewModuleConfig(ModuleName, cty.EmptyObjectVal))
	require.NoError(t, err)

	assert.Equal(t, Config{
		Interface:   "enp1s0",
		ChannelSize: capture.DefaultChannelSize,
		RingSize:    programs.DefaultRingSize,
	}, cfg)
}

func TestResolveConfigOverrides(t *testing.T) {
	cfg, err := ResolveConfig(config.NewModuleConfig(ModuleName, cty.ObjectVal(map[string]cty.Value{
		"interface":      cty.StringVal("eth0"),
		"attach_timeout": cty.StringVal("2s"),
		"object_path":    cty.StringVal("/usr/lib/netcapture/capture.o"),
		"channel_size":   cty.NumberIntVal(64),
		"ring_size":      cty.NumberIntVal(1 << 20),
		"namespace":      cty.StringVal("blue"),
	})))
	require.NoError(t, err)

	assert.Equal(t, "eth0", cfg.Interface)
	assert.Equal(t, 2*time.Second, cfg.AttachTimeout)
	assert.Equal(t, "/usr/lib/netcapture/capture.o", cfg.ObjectPath)
	assert.Equal(t, 64, cfg.ChannelSize)
	assert.Equal(t, uint32(1<<20), cfg.RingSize)
	assert.Equal(t, "blue", cfg.Namespace)
}

func TestResolveConfigErrors(t *testing.T) {
	tests := map[string]cty.Value{
		"interface":    cty.NumberIntVal(7),
		"channel_size": cty.NumberIntVal(0),
		"ring_size":    cty.NumberIntVal(-1),
	}

	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := ResolveConfig(config.NewModuleConfig(ModuleName, cty.ObjectVal(map[string]cty.Value{key: val})))
			var ce *config.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, key, ce.Key)
		})
	}
}
