// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"

	"grimm.is/netcapture/internal/errors"
)

// LoadFile loads a config file, picking the format from its extension
// (.hcl, .yaml, .yml).
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.Classify(err), "failed to read config file")
	}
	return Load(path, data)
}

// Load decodes data in the format implied by filename, applies defaults
// and validates the result.
func Load(filename string, data []byte) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".hcl":
		cfg, err = decodeHCL(filename, data)
	case ".yaml", ".yml":
		cfg, err = decodeYAML(data)
	default:
		return nil, NewConfigError("", "", "unsupported config format %q", filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeHCL(filename string, data []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, NewConfigError("", "", "failed to decode %s: %v", filename, err)
	}
	return &cfg, nil
}

type yamlConfig struct {
	Config  `yaml:",inline"`
	Modules []yamlModule `yaml:"modules"`
}

type yamlModule struct {
	Name    string         `yaml:"name"`
	Enabled *bool          `yaml:"enabled"`
	Config  map[string]any `yaml:"config"`
}

func decodeYAML(data []byte) (*Config, error) {
	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, NewConfigError("", "", "failed to decode yaml: %v", err)
	}

	cfg := raw.Config
	for _, m := range raw.Modules {
		val, err := toCty(m.Config)
		if err != nil {
			return nil, NewConfigError(m.Name, "config", "%v", err)
		}
		cfg.Modules = append(cfg.Modules, &ModuleBlock{
			Name:    m.Name,
			Enabled: m.Enabled,
			Config:  val,
		})
	}
	return &cfg, nil
}

// toCty converts decoded YAML into a cty object by way of JSON.
func toCty(m map[string]any) (cty.Value, error) {
	if len(m) == 0 {
		return cty.EmptyObjectVal, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return cty.NilVal, err
	}
	typ, err := ctyjson.ImpliedType(b)
	if err != nil {
		return cty.NilVal, err
	}
	return ctyjson.Unmarshal(b, typ)
}
