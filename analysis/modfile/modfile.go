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

// Package modfile reads and writes compiled modules in their on-disk form, a
// CBOR envelope around the module tables. Encoding is canonical so the bytes
// of a module are stable across writers.
package modfile

import (
	"fmt"
	"os"

	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/fxamacker/cbor/v2"
)

const (
	// Magic identifies a compiled module file.
	Magic = "MVBC"
	// Version is the envelope version this package writes and the only one
	// it accepts.
	Version = 1
	// Extension is the conventional file name extension of module files.
	Extension = ".mvb"
)

// envelope is the on-disk frame around the module tables.
type envelope struct {
	Magic   string                   `cbor:"1,keyasint"`
	Version uint16                   `cbor:"2,keyasint"`
	Module  *bytecode.CompiledModule `cbor:"3,keyasint"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("modfile: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Marshal serializes a module into its envelope form.
func Marshal(m *bytecode.CompiledModule) ([]byte, error) {
	b, err := encMode.Marshal(envelope{Magic: Magic, Version: Version, Module: m})
	if err != nil {
		return nil, fmt.Errorf("modfile: marshal module: %w", err)
	}
	return b, nil
}

// Unmarshal deserializes an envelope and returns the module inside. The magic
// and version must match what this package writes.
func Unmarshal(data []byte) (*bytecode.CompiledModule, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("modfile: unmarshal module: %w", err)
	}
	if env.Magic != Magic {
		return nil, fmt.Errorf("modfile: bad magic %q, want %q", env.Magic, Magic)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("modfile: unsupported version %d, want %d", env.Version, Version)
	}
	if env.Module == nil {
		return nil, fmt.Errorf("modfile: envelope carries no module")
	}
	return env.Module, nil
}

// Load reads the module file at path.
func Load(path string) (*bytecode.CompiledModule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("modfile: read module: %w", err)
	}
	return Unmarshal(b)
}

// Save writes the module to path, replacing whatever was there.
func Save(path string, m *bytecode.CompiledModule) error {
	b, err := Marshal(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("modfile: write module: %w", err)
	}
	return nil
}
