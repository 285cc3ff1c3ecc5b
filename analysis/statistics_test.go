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

package analysis

import (
	"reflect"
	"testing"

	"golang.org/x/exp/slices"

	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
)

func TestModuleStatistics(t *testing.T) {
	mod := buildModule(t,
		moduleFn{
			params: bytecode.Signature{bytecode.TokenBool},
			code: []bytecode.Instruction{
				{Op: bytecode.OpCopyLoc, Local: 0},
				{Op: bytecode.OpBrTrue, Target: 4},
				{Op: bytecode.OpNop},
				{Op: bytecode.OpBranch, Target: 5},
				{Op: bytecode.OpNop},
				{Op: bytecode.OpRet},
			},
		},
		moduleFn{native: true},
	)
	got := ModuleStatistics(mod)
	want := Result{
		NumberOfFunctions:       2,
		NumberOfNativeFunctions: 1,
		NumberOfBlocks:          4,
		NumberOfInstructions:    6,
	}
	if got != want {
		t.Errorf("ModuleStatistics() = %+v, want %+v", got, want)
	}
}

func TestOpcodeHistogram(t *testing.T) {
	mod := buildModule(t,
		moduleFn{code: []bytecode.Instruction{
			{Op: bytecode.OpLdU64, Num: 1},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpRet},
		}},
		moduleFn{code: []bytecode.Instruction{
			{Op: bytecode.OpLdU64, Num: 2},
			{Op: bytecode.OpLdU64, Num: 3},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpRet},
		}},
	)
	got := OpcodeHistogram(mod)
	want := map[bytecode.Opcode]uint{
		bytecode.OpLdU64: 3,
		bytecode.OpPop:   3,
		bytecode.OpRet:   2,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OpcodeHistogram() = %v, want %v", got, want)
	}
}

func TestAcquiredResources(t *testing.T) {
	onlyRet := []bytecode.Instruction{{Op: bytecode.OpRet}}
	mod := &bytecode.CompiledModule{
		Name: "m",
		Structs: []bytecode.StructDef{
			{Name: "Coin", Fields: []bytecode.Field{{Name: "value", Type: bytecode.TokenU64}}},
			{Name: "Bank", Fields: []bytecode.Field{{Name: "total", Type: bytecode.TokenU64}}},
		},
		Signatures: []bytecode.Signature{{}},
		FunctionHandles: []bytecode.FunctionHandle{
			{Name: "f0", Parameters: 0, Returns: 0},
			{Name: "f1", Parameters: 0, Returns: 0},
			{Name: "f2", Parameters: 0, Returns: 0},
		},
		Functions: []bytecode.FunctionDef{
			{Handle: 0, Locals: 0, AcquiresGlobals: []bytecode.StructDefIndex{1}, Code: onlyRet},
			{Handle: 1, Locals: 0, AcquiresGlobals: []bytecode.StructDefIndex{0, 1}, Code: onlyRet},
			{Handle: 2, Locals: 0, Code: onlyRet},
		},
	}
	if err := mod.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := []bytecode.StructDefIndex{0, 1}
	if got := AcquiredResources(mod); !slices.Equal(got, want) {
		t.Errorf("AcquiredResources() = %v, want %v", got, want)
	}
}
