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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(fname, []byte(text), 0o600); err != nil {
		t.Fatalf("could not write config file: %v", err)
	}
	return fname
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "jobs: 4\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Jobs != 4 {
		t.Errorf("Jobs got = %v, want %v", cfg.Jobs, 4)
	}
	if cfg.LogLevel != int(InfoLevel) {
		t.Errorf("LogLevel got = %v, want %v", cfg.LogLevel, int(InfoLevel))
	}
	if cfg.MeterUnitsPerFunction != DefaultMeterUnitsPerFunction {
		t.Errorf("MeterUnitsPerFunction got = %v, want %v",
			cfg.MeterUnitsPerFunction, int64(DefaultMeterUnitsPerFunction))
	}
	if cfg.MeterUnitsPerModule != DefaultMeterUnitsPerModule {
		t.Errorf("MeterUnitsPerModule got = %v, want %v",
			cfg.MeterUnitsPerModule, int64(DefaultMeterUnitsPerModule))
	}
	if cfg.MaxBasicBlocks != DefaultMaxBasicBlocks {
		t.Errorf("MaxBasicBlocks got = %v, want %v", cfg.MaxBasicBlocks, DefaultMaxBasicBlocks)
	}
	if cfg.MaxLoopDepth != DefaultMaxLoopDepth {
		t.Errorf("MaxLoopDepth got = %v, want %v", cfg.MaxLoopDepth, DefaultMaxLoopDepth)
	}
	if cfg.MaxParameters != DefaultMaxParameters {
		t.Errorf("MaxParameters got = %v, want %v", cfg.MaxParameters, DefaultMaxParameters)
	}
	if cfg.MaxLocals != DefaultMaxLocals {
		t.Errorf("MaxLocals got = %v, want %v", cfg.MaxLocals, DefaultMaxLocals)
	}
}

func TestLoadOverrides(t *testing.T) {
	text := strings.Join([]string{
		"log-level: 4",
		"silence-warn: true",
		"jobs: 2",
		"meter-units-per-function: 1000",
		"meter-units-per-module: 2000",
		"max-basic-blocks: 16",
		"max-loop-depth: 3",
		"max-parameters: 4",
		"max-locals: 8",
	}, "\n")
	cfg, err := Load(writeConfig(t, text))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Options{
		LogLevel:              4,
		SilenceWarn:           true,
		Jobs:                  2,
		MeterUnitsPerFunction: 1000,
		MeterUnitsPerModule:   2000,
		MaxBasicBlocks:        16,
		MaxLoopDepth:          3,
		MaxParameters:         4,
		MaxLocals:             8,
	}
	if cfg.Options != want {
		t.Errorf("Load() options = %+v, want %+v", cfg.Options, want)
	}
	if !cfg.Verbose() {
		t.Errorf("Verbose() got = false, want true at log level 4")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Load() of a missing file returned no error")
	}
	if _, err := Load(writeConfig(t, "jobs: [")); err == nil {
		t.Errorf("Load() of malformed yaml returned no error")
	}
}

func TestBoundsRemoval(t *testing.T) {
	cfg, err := Load(writeConfig(t, "max-loop-depth: -1\nmeter-units-per-function: -1\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := Bound(cfg.MaxLoopDepth); got != 0 {
		t.Errorf("Bound() got = %v, want 0", got)
	}
	if got := Bound(cfg.MaxBasicBlocks); got != DefaultMaxBasicBlocks {
		t.Errorf("Bound() got = %v, want %v", got, DefaultMaxBasicBlocks)
	}
	if got := MeterBudget(cfg.MeterUnitsPerFunction); got != 0 {
		t.Errorf("MeterBudget() got = %v, want 0", got)
	}
	if got := MeterBudget(cfg.MeterUnitsPerModule); got != uint64(DefaultMeterUnitsPerModule) {
		t.Errorf("MeterBudget() got = %v, want %v", got, uint64(DefaultMeterUnitsPerModule))
	}
}

func TestRelPath(t *testing.T) {
	fname := writeConfig(t, "")
	cfg, err := Load(fname)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := filepath.Join(filepath.Dir(fname), "mod.mvb")
	if got := cfg.RelPath("mod.mvb"); got != want {
		t.Errorf("RelPath() got = %v, want %v", got, want)
	}
}

func TestLogGroupLevels(t *testing.T) {
	cfg := NewDefault()
	lg := NewLogGroup(cfg)
	var buf bytes.Buffer
	lg.SetAllOutput(&buf)
	lg.SetAllFlags(0)

	lg.Debugf("hidden %d", 1)
	lg.Infof("shown %d", 2)
	lg.Warnf("warned %d", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Debugf() printed at info level: %q", out)
	}
	if !strings.Contains(out, "[INFO] shown 2") {
		t.Errorf("Infof() missing from output: %q", out)
	}
	if !strings.Contains(out, "[WARN] warned 3") {
		t.Errorf("Warnf() missing from output: %q", out)
	}
}

func TestLogGroupSilenceWarn(t *testing.T) {
	cfg := NewDefault()
	cfg.SilenceWarn = true
	lg := NewLogGroup(cfg)
	var buf bytes.Buffer
	lg.SetAllOutput(&buf)
	lg.SetAllFlags(0)

	lg.Warnf("warned")
	lg.Errorf("failed")

	out := buf.String()
	if strings.Contains(out, "warned") {
		t.Errorf("Warnf() printed with silence-warn set: %q", out)
	}
	if !strings.Contains(out, "[ERROR] failed") {
		t.Errorf("Errorf() missing from output: %q", out)
	}
}
