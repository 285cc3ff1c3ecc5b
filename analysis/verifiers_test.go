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
	"fmt"
	"io"
	"testing"

	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/analysis/config"
)

// moduleFn describes one function of a test module.
type moduleFn struct {
	params   bytecode.Signature
	returns  bytecode.Signature
	declared bytecode.Signature
	acquires []bytecode.StructDefIndex
	native   bool
	code     []bytecode.Instruction
}

func buildModule(t *testing.T, fns ...moduleFn) *bytecode.CompiledModule {
	t.Helper()
	mod := &bytecode.CompiledModule{
		Name: "m",
		Structs: []bytecode.StructDef{
			{Name: "Item", Fields: []bytecode.Field{{Name: "value", Type: bytecode.TokenU64}}},
		},
		FieldHandles: []bytecode.FieldHandle{{Owner: 0, Field: 0}},
		Constants:    []bytecode.Constant{{Type: bytecode.TokenAddress, Data: []byte{0x42}}},
	}
	for i, fn := range fns {
		base := bytecode.SignatureIndex(len(mod.Signatures))
		mod.Signatures = append(mod.Signatures, fn.params, fn.returns, fn.declared)
		mod.FunctionHandles = append(mod.FunctionHandles, bytecode.FunctionHandle{
			Name: fmt.Sprintf("f%d", i), Parameters: base, Returns: base + 1,
		})
		mod.Functions = append(mod.Functions, bytecode.FunctionDef{
			Handle: bytecode.FunctionHandleIndex(i), Locals: base + 2,
			AcquiresGlobals: fn.acquires, Native: fn.native, Code: fn.code,
		})
	}
	if err := mod.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return mod
}

func quietLog(cfg *config.Config) *config.LogGroup {
	lg := config.NewLogGroup(cfg)
	lg.SetAllOutput(io.Discard)
	return lg
}

func wellFormedModule(t *testing.T) *bytecode.CompiledModule {
	return buildModule(t,
		moduleFn{
			declared: bytecode.Signature{bytecode.StructType(0)},
			code: []bytecode.Instruction{
				{Op: bytecode.OpImmBorrowLoc, Local: 0},
				{Op: bytecode.OpImmBorrowField, Field: 0},
				{Op: bytecode.OpReadRef},
				{Op: bytecode.OpPop},
				{Op: bytecode.OpCall, Func: 1},
				{Op: bytecode.OpRet},
			},
		},
		moduleFn{
			code: []bytecode.Instruction{{Op: bytecode.OpRet}},
		},
		moduleFn{
			params: bytecode.Signature{bytecode.MutableReferenceTo(bytecode.TokenU64)},
			native: true,
		},
	)
}

func rejectedModule(t *testing.T) *bytecode.CompiledModule {
	return buildModule(t,
		moduleFn{code: []bytecode.Instruction{{Op: bytecode.OpRet}}},
		moduleFn{
			declared: bytecode.Signature{bytecode.TokenU64},
			code: []bytecode.Instruction{
				{Op: bytecode.OpMutBorrowLoc, Local: 0},
				{Op: bytecode.OpCopyLoc, Local: 0},
				{Op: bytecode.OpPop},
				{Op: bytecode.OpPop},
				{Op: bytecode.OpRet},
			},
		},
	)
}

func TestVerifyModuleAccepts(t *testing.T) {
	cfg := config.NewDefault()
	if err := VerifyModule(cfg, quietLog(cfg), wellFormedModule(t)); err != nil {
		t.Errorf("VerifyModule() error = %v, want nil", err)
	}
}

func TestVerifyModuleRejects(t *testing.T) {
	cfg := config.NewDefault()
	err := VerifyModule(cfg, quietLog(cfg), rejectedModule(t))
	if got := bytecode.CodeOf(err); got != bytecode.StatusCopyLocExistsBorrowError {
		t.Fatalf("VerifyModule() error code = %v, want COPYLOC_EXISTS_BORROW_ERROR (err = %v)", got, err)
	}
	vmErr, _ := bytecode.AsVMError(err)
	if vmErr.Function != 1 {
		t.Errorf("VerifyModule() error function = %d, want 1", vmErr.Function)
	}
}

func TestVerifyModuleParallelMatchesSequential(t *testing.T) {
	seqCfg := config.NewDefault()
	parCfg := config.NewDefault()
	parCfg.Jobs = 4

	if err := VerifyModule(parCfg, quietLog(parCfg), wellFormedModule(t)); err != nil {
		t.Errorf("VerifyModule(jobs=4) error = %v, want nil", err)
	}

	seqErr := VerifyModule(seqCfg, quietLog(seqCfg), rejectedModule(t))
	parErr := VerifyModule(parCfg, quietLog(parCfg), rejectedModule(t))
	if bytecode.CodeOf(seqErr) != bytecode.CodeOf(parErr) {
		t.Errorf("error codes differ: sequential %v, parallel %v", seqErr, parErr)
	}
	seqVM, _ := bytecode.AsVMError(seqErr)
	parVM, _ := bytecode.AsVMError(parErr)
	if seqVM.Function != parVM.Function {
		t.Errorf("error functions differ: sequential %d, parallel %d", seqVM.Function, parVM.Function)
	}
}

func TestVerifyModuleBlockLimit(t *testing.T) {
	mod := buildModule(t, moduleFn{
		params: bytecode.Signature{bytecode.TokenBool},
		code: []bytecode.Instruction{
			{Op: bytecode.OpCopyLoc, Local: 0},
			{Op: bytecode.OpBrTrue, Target: 4},
			{Op: bytecode.OpNop},
			{Op: bytecode.OpBranch, Target: 5},
			{Op: bytecode.OpNop},
			{Op: bytecode.OpRet},
		},
	})
	cfg := config.NewDefault()
	cfg.MaxBasicBlocks = 2
	err := VerifyModule(cfg, quietLog(cfg), mod)
	if got := bytecode.CodeOf(err); got != bytecode.StatusTooManyBasicBlocks {
		t.Errorf("VerifyModule() error code = %v, want TOO_MANY_BASIC_BLOCKS (err = %v)", got, err)
	}
}

func TestVerifyModuleBudgetDeterministic(t *testing.T) {
	work := func() moduleFn {
		return moduleFn{code: []bytecode.Instruction{
			{Op: bytecode.OpLdU64, Num: 1},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpRet},
		}}
	}
	seqCfg := config.NewDefault()
	seqCfg.MeterUnitsPerModule = 70
	parCfg := config.NewDefault()
	parCfg.MeterUnitsPerModule = 70
	parCfg.Jobs = 3

	seqErr := VerifyModule(seqCfg, quietLog(seqCfg), buildModule(t, work(), work(), work()))
	parErr := VerifyModule(parCfg, quietLog(parCfg), buildModule(t, work(), work(), work()))

	if got := bytecode.CodeOf(seqErr); got != bytecode.StatusProgramTooComplex {
		t.Fatalf("VerifyModule() error code = %v, want PROGRAM_TOO_COMPLEX (err = %v)", got, seqErr)
	}
	if got := bytecode.CodeOf(parErr); got != bytecode.StatusProgramTooComplex {
		t.Fatalf("VerifyModule(jobs=3) error code = %v, want PROGRAM_TOO_COMPLEX (err = %v)", got, parErr)
	}
	seqVM, _ := bytecode.AsVMError(seqErr)
	parVM, _ := bytecode.AsVMError(parErr)
	if seqVM.Function != parVM.Function {
		t.Errorf("budget trips at function %d sequentially but %d in parallel", seqVM.Function, parVM.Function)
	}
}

func TestVerifyModuleInvalidOperand(t *testing.T) {
	mod := &bytecode.CompiledModule{
		Name:            "broken",
		Signatures:      []bytecode.Signature{{}},
		FunctionHandles: []bytecode.FunctionHandle{{Name: "f", Parameters: 0, Returns: 0}},
		Functions: []bytecode.FunctionDef{{
			Handle: 0, Locals: 0,
			Code: []bytecode.Instruction{
				{Op: bytecode.OpCopyLoc, Local: 9},
				{Op: bytecode.OpRet},
			},
		}},
	}
	cfg := config.NewDefault()
	err := VerifyModule(cfg, quietLog(cfg), mod)
	if got := bytecode.CodeOf(err); got != bytecode.StatusIndexOutOfBounds {
		t.Errorf("VerifyModule() error code = %v, want INDEX_OUT_OF_BOUNDS (err = %v)", got, err)
	}
}
