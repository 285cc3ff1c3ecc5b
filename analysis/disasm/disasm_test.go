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

package disasm_test

import (
	"strings"
	"testing"

	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/analysis/disasm"
)

func listingModule(t *testing.T) *bytecode.CompiledModule {
	t.Helper()
	mod := &bytecode.CompiledModule{
		Name: "listing",
		Structs: []bytecode.StructDef{
			{Name: "Item", Fields: []bytecode.Field{{Name: "value", Type: bytecode.TokenU64}}},
		},
		FieldHandles: []bytecode.FieldHandle{{Owner: 0, Field: 0}},
		Constants:    []bytecode.Constant{{Type: bytecode.TokenAddress, Data: []byte{0x42}}},
		Signatures: []bytecode.Signature{
			{},
			{bytecode.StructType(0)},
			{bytecode.TokenU64},
		},
		FunctionHandles: []bytecode.FunctionHandle{
			{Name: "main", Parameters: 1, Returns: 0},
			{Name: "frob", Parameters: 0, Returns: 0},
		},
		Functions: []bytecode.FunctionDef{
			{Handle: 0, Locals: 2, Code: []bytecode.Instruction{
				{Op: bytecode.OpImmBorrowLoc, Local: 0},
				{Op: bytecode.OpImmBorrowField, Field: 0},
				{Op: bytecode.OpReadRef},
				{Op: bytecode.OpPop},
				{Op: bytecode.OpCall, Func: 1},
				{Op: bytecode.OpLdTrue},
				{Op: bytecode.OpBrTrue, Target: 0},
				{Op: bytecode.OpRet},
			}},
			{Handle: 1, Locals: 0, Native: true},
		},
	}
	if err := mod.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return mod
}

func TestModuleListing(t *testing.T) {
	mod := listingModule(t)
	out, err := disasm.Module(mod)
	if err != nil {
		t.Fatalf("Module() error = %v", err)
	}
	for _, want := range []string{
		"; === module listing ===",
		"Item { value: u64 }",
		"address 0x42",
		"; === main ===",
		"; === frob ===",
		"; native",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Module() listing missing %q:\n%s", want, out)
		}
	}
}

func TestFunctionListing(t *testing.T) {
	mod := listingModule(t)
	view, err := bytecode.NewFunctionView(mod, 0)
	if err != nil {
		t.Fatalf("NewFunctionView() error = %v", err)
	}
	out := disasm.Function(view)
	for _, want := range []string{
		"; Signature: (struct#0): ()",
		"; Locals (1): u64",
		"0000  imm_borrow_loc 0",
		"; Item.value",
		"; frob",
		"br_true 0 (-> 0000)",
		"0007  ret",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Function() listing missing %q:\n%s", want, out)
		}
	}
}

func TestInstructionAnnotations(t *testing.T) {
	mod := listingModule(t)
	view, err := bytecode.NewFunctionView(mod, 0)
	if err != nil {
		t.Fatalf("NewFunctionView() error = %v", err)
	}

	tests := []struct {
		offset bytecode.CodeOffset
		want   string
	}{
		{1, "imm_borrow_field 0       ; Item.value"},
		{4, "call 1                   ; frob"},
		{6, "br_true 0 (-> 0000)"},
		{100, "<end of code>"},
	}
	for _, tt := range tests {
		if got := disasm.Instruction(view, tt.offset); got != tt.want {
			t.Errorf("Instruction(%d) = %q, want %q", tt.offset, got, tt.want)
		}
	}
}
