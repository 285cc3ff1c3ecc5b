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

package absint

import (
	"testing"

	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/analysis/meter"
)

// constSet is a toy domain tracking which small constants may have been
// loaded on some path.
type constSet struct {
	bits uint64
}

func (s *constSet) Join(other *constSet, _ meter.Meter) (JoinResult, error) {
	merged := s.bits | other.bits
	if merged == s.bits {
		return JoinUnchanged, nil
	}
	s.bits = merged
	return JoinChanged, nil
}

func (s *constSet) Clone() *constSet { return &constSet{bits: s.bits} }

// constTracker counts executed instructions and records the domain at every
// return.
type constTracker struct {
	steps int
	atRet uint64
}

func (t *constTracker) Execute(state *constSet, instr bytecode.Instruction, _, _ bytecode.CodeOffset, m meter.Meter) error {
	if err := m.Add(meter.ScopeFunction, 1); err != nil {
		return err
	}
	t.steps++
	switch instr.Op {
	case bytecode.OpLdU64:
		state.bits |= 1 << (instr.Num % 64)
	case bytecode.OpRet:
		t.atRet |= state.bits
	}
	return nil
}

func funcView(t *testing.T, code []bytecode.Instruction) *bytecode.FunctionView {
	t.Helper()
	m := &bytecode.CompiledModule{
		Name:            "t",
		FunctionHandles: []bytecode.FunctionHandle{{Name: "f", Parameters: 0, Returns: 0}},
		Signatures:      []bytecode.Signature{{}, {bytecode.TokenU64}},
		Functions:       []bytecode.FunctionDef{{Handle: 0, Locals: 1, Code: code}},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate() got = %v, want nil", err)
	}
	view, err := bytecode.NewFunctionView(m, 0)
	if err != nil {
		t.Fatalf("NewFunctionView() got = %v, want nil", err)
	}
	return view
}

func TestAnalyzeFunctionJoinsBranches(t *testing.T) {
	code := []bytecode.Instruction{
		{Op: bytecode.OpLdU64, Num: 1},           // 0
		{Op: bytecode.OpBrTrue, Target: 4},       // 1
		{Op: bytecode.OpLdU64, Num: 2},           // 2
		{Op: bytecode.OpBranch, Target: 5},       // 3
		{Op: bytecode.OpLdU64, Num: 3},           // 4
		{Op: bytecode.OpRet},                     // 5
	}
	tracker := &constTracker{}
	err := AnalyzeFunction[*constSet](tracker, &constSet{}, funcView(t, code), meter.UnmeteredMeter{})
	if err != nil {
		t.Fatalf("AnalyzeFunction() got = %v, want nil", err)
	}
	want := uint64(1<<1 | 1<<2 | 1<<3)
	if tracker.atRet != want {
		t.Errorf("constants at return got = %b, want %b", tracker.atRet, want)
	}
}

func TestAnalyzeFunctionLoopConverges(t *testing.T) {
	code := []bytecode.Instruction{
		{Op: bytecode.OpLdU64, Num: 5},     // 0
		{Op: bytecode.OpBrTrue, Target: 0}, // 1 back edge
		{Op: bytecode.OpRet},               // 2
	}
	tracker := &constTracker{}
	err := AnalyzeFunction[*constSet](tracker, &constSet{}, funcView(t, code), meter.UnmeteredMeter{})
	if err != nil {
		t.Fatalf("AnalyzeFunction() got = %v, want nil", err)
	}
	if tracker.atRet != 1<<5 {
		t.Errorf("constants at return got = %b, want %b", tracker.atRet, uint64(1<<5))
	}
	// First sweep runs the loop block, the changed join re-runs it once, the
	// second join is stable and the exit block runs last.
	if tracker.steps != 5 {
		t.Errorf("steps got = %v, want 5", tracker.steps)
	}
}

func TestAnalyzeFunctionSkipsUnreachable(t *testing.T) {
	code := []bytecode.Instruction{
		{Op: bytecode.OpBranch, Target: 2}, // 0
		{Op: bytecode.OpLdU64, Num: 9},     // 1 unreachable
		{Op: bytecode.OpRet},               // 2
	}
	tracker := &constTracker{}
	err := AnalyzeFunction[*constSet](tracker, &constSet{}, funcView(t, code), meter.UnmeteredMeter{})
	if err != nil {
		t.Fatalf("AnalyzeFunction() got = %v, want nil", err)
	}
	if tracker.atRet != 0 {
		t.Errorf("constants at return got = %b, want 0", tracker.atRet)
	}
	if tracker.steps != 2 {
		t.Errorf("steps got = %v, want 2", tracker.steps)
	}
}

func TestAnalyzeFunctionMeterAborts(t *testing.T) {
	code := []bytecode.Instruction{
		{Op: bytecode.OpLdU64, Num: 5},     // 0
		{Op: bytecode.OpBrTrue, Target: 0}, // 1
		{Op: bytecode.OpRet},               // 2
	}
	m := meter.NewBoundMeter(meter.Limits{FunctionUnits: 3})
	m.EnterScope("f", meter.ScopeFunction)
	tracker := &constTracker{}
	err := AnalyzeFunction[*constSet](tracker, &constSet{}, funcView(t, code), m)
	if err == nil {
		t.Fatalf("AnalyzeFunction() got = nil, want metering error")
	}
	if got := bytecode.CodeOf(err); got != bytecode.StatusProgramTooComplex {
		t.Errorf("status got = %v, want %v", got, bytecode.StatusProgramTooComplex)
	}
}
