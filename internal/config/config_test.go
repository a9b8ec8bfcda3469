// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/netcapture/internal/errors"
)

const sampleHCL = `
schema_version = "1.0"

logging {
  level = "debug"
  json  = true
}

metrics {
  enabled = true
  listen  = "127.0.0.1:9464"
}

output {
  stdout    = false
  websocket = true
}

module "netmon" {
  config = {
    interface      = "eth1"
    attach_timeout = "5s"
    channel_size   = 2048
  }
}
`

const sampleYAML = `
schema_version: "1.0"
logging:
  level: warn
output:
  stdout: true
modules:
  - name: netmon
    enabled: true
    config:
      interface: wlan0
      ring_size: 524288
`

func TestLoadHCL(t *testing.T) {
	cfg, err := Load("netcapture.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Listen)
	assert.False(t, cfg.Output.StdoutEnabled())
	assert.True(t, cfg.Output.WebSocketEnabled())

	mod, ok := cfg.Module("netmon")
	require.True(t, ok)
	assert.True(t, mod.IsEnabled())

	opts := mod.Options()
	iface, err := opts.String("interface", "enp1s0")
	require.NoError(t, err)
	assert.Equal(t, "eth1", iface)

	d, err := opts.Duration("attach_timeout", 0)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	n, err := opts.Int("channel_size", 1024)
	require.NoError(t, err)
	assert.Equal(t, 2048, n)

	assert.Equal(t, []string{"attach_timeout", "channel_size", "interface"}, opts.Keys())
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load("netcapture.yaml", []byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.IsEnabled(), "absent block gets defaults")
	assert.Equal(t, ":9464", cfg.Metrics.Listen)

	mod, ok := cfg.Module("netmon")
	require.True(t, ok)
	iface, err := mod.Options().String("interface", "enp1s0")
	require.NoError(t, err)
	assert.Equal(t, "wlan0", iface)

	ring, err := mod.Options().Int("ring_size", 0)
	require.NoError(t, err)
	assert.Equal(t, 524288, ring)
}

func TestLoadPartialBlocksKeepDefaults(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
	}{
		{"hcl", "c.hcl", "metrics {\n  listen = \":9000\"\n}\noutput {\n  stdout = true\n}\n"},
		{"yaml", "c.yaml", "metrics:\n  listen: \":9000\"\noutput:\n  stdout: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filename, []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, ":9000", cfg.Metrics.Listen)
			assert.True(t, cfg.Metrics.IsEnabled())
			assert.True(t, cfg.Output.StdoutEnabled())
			assert.True(t, cfg.Output.WebSocketEnabled())
		})
	}
}

func TestLoadExplicitlyDisabled(t *testing.T) {
	cfg, err := Load("c.hcl", []byte("metrics {\n  enabled = false\n}\noutput {\n  websocket = false\n}\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Metrics.IsEnabled())
	assert.False(t, cfg.Output.WebSocketEnabled())
	assert.True(t, cfg.Output.StdoutEnabled())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netcapture.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sampleHCL), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Modules, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
	}{
		{"unknown format", "netcapture.toml", ""},
		{"bad hcl", "c.hcl", "module {"},
		{"bad yaml", "c.yaml", "modules: [:"},
		{"schema version", "c.hcl", `schema_version = "9.9"`},
		{"log level", "c.hcl", `logging { level = "loud" }`},
		{"duplicate module", "c.hcl", "module \"netmon\" {}\nmodule \"netmon\" {}"},
		{"scalar module config", "c.hcl", "module \"netmon\" {\n  config = \"eth0\"\n}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.filename, []byte(tt.data))
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.True(t, errors.IsFatal(err))
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	mod, ok := cfg.Module("netmon")
	require.True(t, ok)
	assert.True(t, mod.IsEnabled())
	assert.Empty(t, mod.Options().Keys())

	iface, err := mod.Options().String("interface", "enp1s0")
	require.NoError(t, err)
	assert.Equal(t, "enp1s0", iface)
}

func TestModuleConfigTypeErrors(t *testing.T) {
	opts := NewModuleConfig("netmon", cty.ObjectVal(map[string]cty.Value{
		"interface":      cty.NumberIntVal(3),
		"channel_size":   cty.StringVal("big"),
		"fraction":       cty.NumberFloatVal(1.5),
		"attach_timeout": cty.StringVal("soon"),
		"negative":       cty.StringVal("-1s"),
		"flag":           cty.StringVal("yes"),
		"unset":          cty.NullVal(cty.String),
	}))

	_, err := opts.String("interface", "")
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "netmon", ce.Module)
	assert.Equal(t, "interface", ce.Key)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))

	_, err = opts.Int("channel_size", 0)
	assert.ErrorAs(t, err, &ce)
	_, err = opts.Int("fraction", 0)
	assert.ErrorAs(t, err, &ce)
	_, err = opts.Duration("attach_timeout", 0)
	assert.ErrorAs(t, err, &ce)
	_, err = opts.Duration("negative", 0)
	assert.ErrorAs(t, err, &ce)
	_, err = opts.Bool("flag", false)
	assert.ErrorAs(t, err, &ce)

	s, err := opts.String("unset", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", s)
}

func TestModuleConfigMap(t *testing.T) {
	opts := NewModuleConfig("netmon", cty.MapVal(map[string]cty.Value{
		"interface": cty.StringVal("eth2"),
	}))

	s, err := opts.String("interface", "")
	require.NoError(t, err)
	assert.Equal(t, "eth2", s)
	assert.False(t, opts.Has("namespace"))

	empty := NewModuleConfig("netmon", cty.NilVal)
	s, err = empty.String("interface", "enp1s0")
	require.NoError(t, err)
	assert.Equal(t, "enp1s0", s)
}
