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

package bytecode

import (
	"fmt"
	"testing"
)

func TestVMErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *VMError
		want string
	}{
		{
			name: "unattributed",
			err:  NewVMError(StatusEmptyCodeUnit, ""),
			want: "EMPTY_CODE_UNIT",
		},
		{
			name: "with message",
			err:  NewVMError(StatusWriteRefExistsBorrowError, "reference is borrowed"),
			want: "WRITEREF_EXISTS_BORROW_ERROR: reference is borrowed",
		},
		{
			name: "at function",
			err:  NewVMError(StatusTooManyLocals, "").AtFunction(2),
			want: "TOO_MANY_LOCALS (function 2)",
		},
		{
			name: "at code offset",
			err:  NewVMError(StatusMoveLocExistsBorrowError, "local 1").AtCodeOffset(0, 17),
			want: "MOVELOC_EXISTS_BORROW_ERROR: local 1 (function 0, offset 17)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() got = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("verifying module %q: %w", "m", NewVMError(StatusGlobalReferenceError, ""))
	if got := CodeOf(err); got != StatusGlobalReferenceError {
		t.Errorf("CodeOf() got = %v, want %v", got, StatusGlobalReferenceError)
	}
	vmErr, ok := AsVMError(err)
	if !ok || vmErr.Code != StatusGlobalReferenceError {
		t.Errorf("AsVMError() got = (%v, %v), want status %v", vmErr, ok, StatusGlobalReferenceError)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != StatusUnknown {
		t.Errorf("CodeOf(plain) got = %v, want %v", got, StatusUnknown)
	}
}

func TestOpcodePredicates(t *testing.T) {
	tests := []struct {
		op          Opcode
		branch      bool
		conditional bool
		terminal    bool
	}{
		{op: OpBranch, branch: true},
		{op: OpBrTrue, branch: true, conditional: true},
		{op: OpBrFalse, branch: true, conditional: true},
		{op: OpRet, terminal: true},
		{op: OpAbort, terminal: true},
		{op: OpAdd},
		{op: OpCall},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			if got := tt.op.IsBranch(); got != tt.branch {
				t.Errorf("IsBranch() got = %v, want %v", got, tt.branch)
			}
			if got := tt.op.IsConditionalBranch(); got != tt.conditional {
				t.Errorf("IsConditionalBranch() got = %v, want %v", got, tt.conditional)
			}
			if got := tt.op.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() got = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		instr Instruction
		want  string
	}{
		{instr: Instruction{Op: OpCopyLoc, Local: 3}, want: "copy_loc 3"},
		{instr: Instruction{Op: OpMutBorrowField, Field: 1}, want: "mut_borrow_field 1"},
		{instr: Instruction{Op: OpLdU64, Num: 42}, want: "ld_u64 42"},
		{instr: Instruction{Op: OpBranch, Target: 7}, want: "branch 7"},
		{instr: Instruction{Op: OpRet}, want: "ret"},
		{instr: Instruction{Op: Opcode(0xEE)}, want: "opcode(0xEE)"},
	}
	for _, tt := range tests {
		if got := tt.instr.String(); got != tt.want {
			t.Errorf("String() got = %v, want %v", got, tt.want)
		}
	}
}
