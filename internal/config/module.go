// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"grimm.is/netcapture/internal/errors"
)

// ConfigError reports an invalid configuration value. It is always fatal.
type ConfigError struct {
	Module string
	Key    string
	Err    error
}

// NewConfigError builds a fatal validation error for a module option.
func NewConfigError(module, key, format string, args ...any) *ConfigError {
	cause := errors.Errorf(errors.KindValidation, format, args...)
	return &ConfigError{
		Module: module,
		Key:    key,
		Err:    errors.Fatalf(cause, "invalid configuration"),
	}
}

func (e *ConfigError) Error() string {
	switch {
	case e.Module != "" && e.Key != "":
		return fmt.Sprintf("module %q option %q: %v", e.Module, e.Key, e.Err)
	case e.Module != "":
		return fmt.Sprintf("module %q: %v", e.Module, e.Err)
	case e.Key != "":
		return fmt.Sprintf("%s: %v", e.Key, e.Err)
	}
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ModuleConfig is a read-only view of a module's free-form options.
// Getters return the default when the key is absent or null.
type ModuleConfig struct {
	module string
	value  cty.Value
}

// NewModuleConfig wraps an object or map value.
func NewModuleConfig(module string, v cty.Value) ModuleConfig {
	return ModuleConfig{module: module, value: v}
}

// Module returns the owning module's name.
func (c ModuleConfig) Module() string {
	return c.module
}

func (c ModuleConfig) get(key string) (cty.Value, bool) {
	v := c.value
	if v.IsNull() || !v.IsKnown() {
		return cty.NilVal, false
	}

	var out cty.Value
	switch {
	case v.Type().IsObjectType():
		if !v.Type().HasAttribute(key) {
			return cty.NilVal, false
		}
		out = v.GetAttr(key)
	case v.Type().IsMapType():
		if v.LengthInt() == 0 || v.HasIndex(cty.StringVal(key)).False() {
			return cty.NilVal, false
		}
		out = v.Index(cty.StringVal(key))
	default:
		return cty.NilVal, false
	}

	if out.IsNull() {
		return cty.NilVal, false
	}
	return out, true
}

// Has reports whether key is set.
func (c ModuleConfig) Has(key string) bool {
	_, ok := c.get(key)
	return ok
}

// Keys returns the set option names, sorted.
func (c ModuleConfig) Keys() []string {
	v := c.value
	if v.IsNull() || !v.IsKnown() || !v.CanIterateElements() {
		return nil
	}
	var keys []string
	for k := range v.AsValueMap() {
		if c.Has(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// String returns a string option.
func (c ModuleConfig) String(key, def string) (string, error) {
	v, ok := c.get(key)
	if !ok {
		return def, nil
	}
	if v.Type() != cty.String {
		return "", NewConfigError(c.module, key, "expected string, got %s", v.Type().FriendlyName())
	}
	return v.AsString(), nil
}

// Int returns a whole-number option.
func (c ModuleConfig) Int(key string, def int) (int, error) {
	v, ok := c.get(key)
	if !ok {
		return def, nil
	}
	if v.Type() != cty.Number {
		return 0, NewConfigError(c.module, key, "expected number, got %s", v.Type().FriendlyName())
	}
	var n int
	if err := gocty.FromCtyValue(v, &n); err != nil {
		return 0, NewConfigError(c.module, key, "%v", err)
	}
	return n, nil
}

// Bool returns a boolean option.
func (c ModuleConfig) Bool(key string, def bool) (bool, error) {
	v, ok := c.get(key)
	if !ok {
		return def, nil
	}
	if v.Type() != cty.Bool {
		return false, NewConfigError(c.module, key, "expected bool, got %s", v.Type().FriendlyName())
	}
	return v.True(), nil
}

// Duration returns a duration option written as a Go duration string ("10s").
func (c ModuleConfig) Duration(key string, def time.Duration) (time.Duration, error) {
	s, err := c.String(key, "")
	if err != nil {
		return 0, err
	}
	if !c.Has(key) {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, NewConfigError(c.module, key, "%v", err)
	}
	if d < 0 {
		return 0, NewConfigError(c.module, key, "duration must not be negative")
	}
	return d, nil
}
