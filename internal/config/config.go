// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the netcapture configuration from HCL or YAML.
package config

import (
	"github.com/zclconf/go-cty/cty"

	"grimm.is/netcapture/internal/logging"
)

// CurrentSchemaVersion is the only schema this build understands.
const CurrentSchemaVersion = "1.0"

// Config is the top-level configuration.
type Config struct {
	// @default: "1.0"
	SchemaVersion string `hcl:"schema_version,optional" yaml:"schema_version" json:"schema_version"`

	Logging *LoggingConfig `hcl:"logging,block" yaml:"logging" json:"logging"`
	Metrics *MetricsConfig `hcl:"metrics,block" yaml:"metrics" json:"metrics"`
	Output  *OutputConfig  `hcl:"output,block" yaml:"output" json:"output"`

	Modules []*ModuleBlock `hcl:"module,block" yaml:"-" json:"modules"`
}

// LoggingConfig selects level, format and optional syslog forwarding.
type LoggingConfig struct {
	// @default: "info"
	Level string `hcl:"level,optional" yaml:"level" json:"level"`
	// @default: false
	JSON   bool                  `hcl:"json,optional" yaml:"json" json:"json"`
	Syslog *logging.SyslogConfig `hcl:"syslog,block" yaml:"syslog" json:"syslog,omitempty"`
}

// MetricsConfig controls the HTTP API that serves /metrics, /status and /events.
type MetricsConfig struct {
	// @default: true
	Enabled *bool `hcl:"enabled,optional" yaml:"enabled" json:"enabled,omitempty"`
	// @default: ":9464"
	Listen string `hcl:"listen,optional" yaml:"listen" json:"listen"`
}

// OutputConfig selects event sinks.
type OutputConfig struct {
	// Stdout writes one JSON document per event.
	// @default: true
	Stdout *bool `hcl:"stdout,optional" yaml:"stdout" json:"stdout,omitempty"`
	// WebSocket streams events on the API's /events endpoint.
	// @default: true
	WebSocket *bool `hcl:"websocket,optional" yaml:"websocket" json:"websocket,omitempty"`
}

// IsEnabled reports whether the API server runs. Unset means enabled.
func (m *MetricsConfig) IsEnabled() bool {
	return m == nil || m.Enabled == nil || *m.Enabled
}

// StdoutEnabled reports whether events go to stdout. Unset means enabled.
func (o *OutputConfig) StdoutEnabled() bool {
	return o == nil || o.Stdout == nil || *o.Stdout
}

// WebSocketEnabled reports whether events go to /events. Unset means enabled.
func (o *OutputConfig) WebSocketEnabled() bool {
	return o == nil || o.WebSocket == nil || *o.WebSocket
}

// ModuleBlock configures one capture module instance.
type ModuleBlock struct {
	Name string `hcl:"name,label" json:"name"`
	// @default: true
	Enabled *bool `hcl:"enabled,optional" json:"enabled,omitempty"`
	// Module-specific options, free form.
	Config cty.Value `hcl:"config,optional" json:"-"`
}

// IsEnabled reports whether the module should run. Unset means enabled.
func (m *ModuleBlock) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Options exposes the module's free-form options.
func (m *ModuleBlock) Options() ModuleConfig {
	return NewModuleConfig(m.Name, m.Config)
}

// Default returns a config with one enabled netmon module and no overrides.
func Default() *Config {
	cfg := &Config{
		Modules: []*ModuleBlock{{Name: "netmon", Config: cty.EmptyObjectVal}},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9464"
	}
	if c.Output == nil {
		c.Output = &OutputConfig{}
	}
	for _, m := range c.Modules {
		if m.Config.IsNull() {
			m.Config = cty.EmptyObjectVal
		}
	}
}

// Module returns the block with the given name.
func (c *Config) Module(name string) (*ModuleBlock, bool) {
	for _, m := range c.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Validate checks cross-field constraints the decoders cannot express.
func (c *Config) Validate() error {
	if c.SchemaVersion != CurrentSchemaVersion {
		return NewConfigError("", "schema_version", "unsupported schema version %q (want %q)", c.SchemaVersion, CurrentSchemaVersion)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return NewConfigError("", "logging.level", "%v", err)
	}
	if c.Metrics.IsEnabled() && c.Metrics.Listen == "" {
		return NewConfigError("", "metrics.listen", "required when metrics are enabled")
	}

	seen := make(map[string]bool)
	for _, m := range c.Modules {
		if m.Name == "" {
			return NewConfigError("", "module", "module name is required")
		}
		if seen[m.Name] {
			return NewConfigError(m.Name, "", "module declared more than once")
		}
		seen[m.Name] = true

		if !m.Config.Type().IsObjectType() && !m.Config.Type().IsMapType() {
			return NewConfigError(m.Name, "config", "must be an object, got %s", m.Config.Type().FriendlyName())
		}
	}
	return nil
}
