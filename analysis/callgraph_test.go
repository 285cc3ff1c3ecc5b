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
	"reflect"
	"testing"

	"golang.org/x/exp/slices"

	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
)

func call(fn bytecode.FunctionHandleIndex) bytecode.Instruction {
	return bytecode.Instruction{Op: bytecode.OpCall, Func: fn}
}

func ret() bytecode.Instruction {
	return bytecode.Instruction{Op: bytecode.OpRet}
}

func TestComputeCallGraphCallees(t *testing.T) {
	mod := buildModule(t,
		moduleFn{code: []bytecode.Instruction{call(1), call(2), call(1), ret()}},
		moduleFn{code: []bytecode.Instruction{call(2), ret()}},
		moduleFn{code: []bytecode.Instruction{ret()}},
	)
	g := ComputeCallGraph(mod)
	tests := []struct {
		fn   bytecode.FunctionDefIndex
		want []bytecode.FunctionDefIndex
	}{
		{0, []bytecode.FunctionDefIndex{1, 2}},
		{1, []bytecode.FunctionDefIndex{2}},
		{2, nil},
	}
	for _, tt := range tests {
		if got := g.Callees(tt.fn); !slices.Equal(got, tt.want) {
			t.Errorf("Callees(%d) = %v, want %v", tt.fn, got, tt.want)
		}
	}
}

func TestRecursiveGroups(t *testing.T) {
	mod := buildModule(t,
		moduleFn{code: []bytecode.Instruction{call(1), ret()}},
		moduleFn{code: []bytecode.Instruction{ret()}},
		moduleFn{code: []bytecode.Instruction{call(2), ret()}},
		moduleFn{code: []bytecode.Instruction{call(4), ret()}},
		moduleFn{code: []bytecode.Instruction{call(3), ret()}},
	)
	got := ComputeCallGraph(mod).RecursiveGroups()
	want := [][]bytecode.FunctionDefIndex{{2}, {3, 4}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RecursiveGroups() = %v, want %v", got, want)
	}
}

func TestRecursiveGroupsNone(t *testing.T) {
	mod := buildModule(t,
		moduleFn{code: []bytecode.Instruction{call(1), ret()}},
		moduleFn{code: []bytecode.Instruction{ret()}},
	)
	if got := ComputeCallGraph(mod).RecursiveGroups(); len(got) != 0 {
		t.Errorf("RecursiveGroups() = %v, want none", got)
	}
}

func TestCallGraphCycles(t *testing.T) {
	mod := buildModule(t,
		moduleFn{code: []bytecode.Instruction{call(1), ret()}},
		moduleFn{code: []bytecode.Instruction{call(2), ret()}},
		moduleFn{code: []bytecode.Instruction{call(1), ret()}},
		moduleFn{code: []bytecode.Instruction{call(3), ret()}},
	)
	got := ComputeCallGraph(mod).Cycles()
	want := [][]bytecode.FunctionDefIndex{{1, 2, 1}, {3, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cycles() = %v, want %v", got, want)
	}
}

func TestCallGraphCyclesSelfCallInGroup(t *testing.T) {
	mod := buildModule(t,
		moduleFn{code: []bytecode.Instruction{call(0), call(1), ret()}},
		moduleFn{code: []bytecode.Instruction{call(0), ret()}},
	)
	got := ComputeCallGraph(mod).Cycles()
	want := [][]bytecode.FunctionDefIndex{{0, 0}, {0, 1, 0}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cycles() = %v, want %v", got, want)
	}
}

func TestCallGraphFlowGraph(t *testing.T) {
	mod := buildModule(t,
		moduleFn{code: []bytecode.Instruction{call(1), ret()}},
		moduleFn{code: []bytecode.Instruction{ret()}},
		moduleFn{code: []bytecode.Instruction{call(2), ret()}},
	)
	fg := ComputeCallGraph(mod).FlowGraph()
	if fg.Order() != 3 {
		t.Fatalf("Order() = %d, want 3", fg.Order())
	}
	for i, want := range []string{"f0", "f1", "f2"} {
		if got := fmt.Sprint(fg.Node(int64(i))); got != want {
			t.Errorf("Node(%d) = %q, want %q", i, got, want)
		}
	}
	if !fg.HasEdgeFromTo(0, 1) || fg.HasEdgeFromTo(1, 0) {
		t.Errorf("HasEdgeFromTo: got 0->1 %t, 1->0 %t, want true, false",
			fg.HasEdgeFromTo(0, 1), fg.HasEdgeFromTo(1, 0))
	}
	if fg.Edge(0, 1) == nil {
		t.Errorf("Edge(0, 1) = nil, want edge")
	}
	if fg.Edge(1, 0) != nil {
		t.Errorf("Edge(1, 0) = %v, want nil", fg.Edge(1, 0))
	}
	if !fg.HasEdgeBetween(2, 2) {
		t.Errorf("HasEdgeBetween(2, 2) = false, want true")
	}
}
