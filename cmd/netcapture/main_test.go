// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/netcapture/internal/config"
	"grimm.is/netcapture/internal/logging"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(flags{})
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	_, ok := cfg.Module("netmon")
	assert.True(t, ok)
}

func TestLoadConfigLogLevelOverride(t *testing.T) {
	cfg, err := loadConfig(flags{logLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)

	_, err = loadConfig(flags{logLevel: "loud"})
	var cerr *config.ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netcapture.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
schema_version = "1.0"

module "netmon" {
  config = {
    interface = "eth1"
  }
}
`), 0o644))

	cfg, err := loadConfig(flags{configPath: path})
	require.NoError(t, err)
	block, ok := cfg.Module("netmon")
	require.True(t, ok)
	iface, err := block.Options().String("interface", "")
	require.NoError(t, err)
	assert.Equal(t, "eth1", iface)
}

func TestSetupLogging(t *testing.T) {
	logger, closeLog, err := setupLogging(&config.LoggingConfig{Level: "warn", JSON: true})
	require.NoError(t, err)
	defer closeLog()
	assert.NotNil(t, logger)

	_, _, err = setupLogging(&config.LoggingConfig{
		Level:  "info",
		Syslog: &logging.SyslogConfig{Enabled: true},
	})
	assert.ErrorContains(t, err, "syslog")
}

func TestBuildSinks(t *testing.T) {
	var logs, out bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelInfo, Output: &logs, JSON: true})

	sinks, hub := buildSinks(config.Default(), &out, logger)
	require.NotNil(t, hub)
	defer hub.Close()
	assert.Len(t, sinks, 2)
	assert.Empty(t, logs.String())
}

func TestBuildSinksWarnsWhenWebSocketHasNoServer(t *testing.T) {
	var logs, out bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelInfo, Output: &logs, JSON: true})

	cfg, err := config.Load("c.hcl", []byte("metrics {\n  enabled = false\n}\n"))
	require.NoError(t, err)

	sinks, hub := buildSinks(cfg, &out, logger)
	assert.Nil(t, hub)
	assert.Len(t, sinks, 1)
	assert.Contains(t, logs.String(), "WebSocket output ignored")
}
