// Copyright © Aptos Foundation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config carries the tunable settings of the verifier. Fields missing from the
// config file keep their defaults; private fields are not populated from a
// yaml file, but computed after initialization.
type Config struct {
	Options `yaml:",inline"`

	sourceFile string
}

// Options are the settings the command line can override field by field.
type Options struct {
	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// SilenceWarn suppresses warnings
	SilenceWarn bool `yaml:"silence-warn"`

	// Jobs is the number of functions verified concurrently. Values below 2
	// keep verification sequential.
	Jobs int `yaml:"jobs"`

	// MeterUnitsPerFunction is the metering budget the verification of a
	// single function may spend. 0 selects the default budget; a negative
	// value removes the bound.
	MeterUnitsPerFunction int64 `yaml:"meter-units-per-function"`

	// MeterUnitsPerModule is the metering budget all functions of a module
	// may spend together. 0 selects the default budget; a negative value
	// removes the bound.
	MeterUnitsPerModule int64 `yaml:"meter-units-per-module"`

	// MaxBasicBlocks bounds the number of basic blocks per function.
	// 0 selects the default; a negative value removes the bound.
	MaxBasicBlocks int `yaml:"max-basic-blocks"`

	// MaxLoopDepth bounds the loop nesting depth per function.
	// 0 selects the default; a negative value removes the bound.
	MaxLoopDepth int `yaml:"max-loop-depth"`

	// MaxParameters bounds the parameter count per function.
	// 0 selects the default; a negative value removes the bound.
	MaxParameters int `yaml:"max-parameters"`

	// MaxLocals bounds the frame size per function, parameters included.
	// 0 selects the default; a negative value removes the bound.
	MaxLocals int `yaml:"max-locals"`
}

// NewDefault returns the configuration used when no file overrides anything.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := &Config{}
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}
	cfg.sourceFile = filename
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults replaces every zero field with its default. Negative fields
// stay as they are; Bound and MeterBudget turn them into "unbounded" when the
// values are consumed.
func (c *Config) applyDefaults() {
	if c.LogLevel == 0 {
		c.LogLevel = int(InfoLevel)
	}
	if c.Jobs == 0 {
		c.Jobs = DefaultJobs
	}
	if c.MeterUnitsPerFunction == 0 {
		c.MeterUnitsPerFunction = DefaultMeterUnitsPerFunction
	}
	if c.MeterUnitsPerModule == 0 {
		c.MeterUnitsPerModule = DefaultMeterUnitsPerModule
	}
	if c.MaxBasicBlocks == 0 {
		c.MaxBasicBlocks = DefaultMaxBasicBlocks
	}
	if c.MaxLoopDepth == 0 {
		c.MaxLoopDepth = DefaultMaxLoopDepth
	}
	if c.MaxParameters == 0 {
		c.MaxParameters = DefaultMaxParameters
	}
	if c.MaxLocals == 0 {
		c.MaxLocals = DefaultMaxLocals
	}
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// Verbose returns true if the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// Bound returns the effective value of a configured limit. Negative
// configuration values remove the bound and map to 0, which the checks treat
// as unbounded.
func Bound(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// MeterBudget returns the effective meter budget for a configured unit count.
// Negative configuration values remove the bound and map to 0, which the
// meter treats as unlimited.
func MeterBudget(units int64) uint64 {
	if units < 0 {
		return 0
	}
	return uint64(units)
}
