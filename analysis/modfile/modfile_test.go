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

package modfile

import (
	"bytes"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/sirkon/deepequal"
)

// sampleModule covers every table: nested signature tokens, constants,
// acquires lists and branching code. It is deliberately not validated so both
// sides of a round trip compare with their lazy caches unset.
func sampleModule() *bytecode.CompiledModule {
	return &bytecode.CompiledModule{
		Name: "token",
		Structs: []bytecode.StructDef{
			{Name: "Coin", Fields: []bytecode.Field{
				{Name: "value", Type: bytecode.TokenU64},
				{Name: "frozen", Type: bytecode.TokenBool},
			}},
			{Name: "Registry", Fields: []bytecode.Field{
				{Name: "coins", Type: bytecode.VectorOf(bytecode.StructType(0))},
			}},
		},
		FieldHandles: []bytecode.FieldHandle{{Owner: 0, Field: 0}, {Owner: 1, Field: 0}},
		FunctionHandles: []bytecode.FunctionHandle{
			{Name: "burn", Parameters: 0, Returns: 1},
			{Name: "peek", Parameters: 2, Returns: 3},
		},
		FunctionTypes: []bytecode.FunctionType{{Parameters: 2, Returns: 3}},
		Signatures: []bytecode.Signature{
			{bytecode.TokenSigner, bytecode.TokenU64},
			{},
			{bytecode.ReferenceTo(bytecode.StructType(0))},
			{bytecode.TokenU64},
			{bytecode.MutableReferenceTo(bytecode.TokenU64), bytecode.TokenBool},
		},
		Constants: []bytecode.Constant{
			{Type: bytecode.TokenAddress, Data: []byte{0xca, 0xfe}},
		},
		Functions: []bytecode.FunctionDef{
			{
				Handle:          0,
				AcquiresGlobals: []bytecode.StructDefIndex{0},
				Locals:          4,
				Code: []bytecode.Instruction{
					{Op: bytecode.OpLdU64, Num: 10},
					{Op: bytecode.OpStLoc, Local: 2},
					{Op: bytecode.OpCopyLoc, Local: 2},
					{Op: bytecode.OpBrTrue, Target: 5},
					{Op: bytecode.OpPop},
					{Op: bytecode.OpRet},
				},
			},
			{Handle: 1, Locals: 1, Native: true},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	want := sampleModule()
	b, err := Marshal(want)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		deepequal.SideBySide(t, "module", want, got)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	first, err := Marshal(sampleModule())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	second, err := Marshal(sampleModule())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("Marshal() produced different bytes for the same module")
	}
}

func TestUnmarshalRejectsEnvelope(t *testing.T) {
	mustEncode := func(t *testing.T, env envelope) []byte {
		t.Helper()
		b, err := encMode.Marshal(env)
		if err != nil {
			t.Fatalf("marshal envelope: %v", err)
		}
		return b
	}

	tests := []struct {
		name string
		data func(t *testing.T) []byte
		want string
	}{
		{
			name: "bad magic",
			data: func(t *testing.T) []byte {
				return mustEncode(t, envelope{Magic: "NOPE", Version: Version, Module: sampleModule()})
			},
			want: "bad magic",
		},
		{
			name: "future version",
			data: func(t *testing.T) []byte {
				return mustEncode(t, envelope{Magic: Magic, Version: Version + 1, Module: sampleModule()})
			},
			want: "unsupported version",
		},
		{
			name: "missing module",
			data: func(t *testing.T) []byte {
				return mustEncode(t, envelope{Magic: Magic, Version: Version})
			},
			want: "no module",
		},
		{
			name: "truncated input",
			data: func(t *testing.T) []byte {
				b := mustEncode(t, envelope{Magic: Magic, Version: Version, Module: sampleModule()})
				return b[:len(b)/2]
			},
			want: "unmarshal module",
		},
		{
			name: "not cbor at all",
			data: func(t *testing.T) []byte { return []byte("module 0x1::token") },
			want: "unmarshal module",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data(t))
			if err == nil {
				t.Fatalf("Unmarshal() accepted a broken envelope")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Unmarshal() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token"+Extension)
	want := sampleModule()
	if err := Save(path, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		deepequal.SideBySide(t, "module", want, got)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.mvb")); err == nil {
		t.Errorf("Load() of a missing file returned no error")
	}
}
