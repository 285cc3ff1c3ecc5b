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
	"sort"

	"golang.org/x/exp/slices"

	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/internal/funcutil"
	"github.com/aptos-labs/aptos-core-sub029/internal/graphutil"
)

// CallGraph is the static call graph of one module: a node per function
// definition and an edge per direct call. Closure calls have no static
// callee and contribute no edges.
type CallGraph struct {
	module  *bytecode.CompiledModule
	callees map[bytecode.FunctionDefIndex][]bytecode.FunctionDefIndex
}

// ComputeCallGraph builds the call graph of mod. The module must have passed
// Validate; calls to handles the module does not define are skipped.
func ComputeCallGraph(mod *bytecode.CompiledModule) *CallGraph {
	g := &CallGraph{
		module:  mod,
		callees: make(map[bytecode.FunctionDefIndex][]bytecode.FunctionDefIndex, len(mod.Functions)),
	}
	for i := range mod.Functions {
		var callees []bytecode.FunctionDefIndex
		for _, instr := range mod.Functions[i].Code {
			if instr.Op != bytecode.OpCall {
				continue
			}
			callee, ok := mod.DefinitionOf(instr.Func)
			if !ok {
				continue
			}
			if !funcutil.Contains(callees, callee) {
				callees = append(callees, callee)
			}
		}
		slices.Sort(callees)
		g.callees[bytecode.FunctionDefIndex(i)] = callees
	}
	return g
}

// Callees returns the functions fn calls directly, in ascending index order.
func (g *CallGraph) Callees(fn bytecode.FunctionDefIndex) []bytecode.FunctionDefIndex {
	return g.callees[fn]
}

// RecursiveGroups returns the sets of mutually recursive functions of the
// module: every strongly connected component of the call graph with more
// than one member, plus every self-calling function. Groups come back in the
// leaves-first order of the component decomposition.
func (g *CallGraph) RecursiveGroups() [][]bytecode.FunctionDefIndex {
	nodes := make([]bytecode.FunctionDefIndex, len(g.module.Functions))
	for i := range nodes {
		nodes[i] = bytecode.FunctionDefIndex(i)
	}
	var groups [][]bytecode.FunctionDefIndex
	for _, scc := range graphutil.StronglyConnectedComponents(nodes, g.Callees) {
		if len(scc) > 1 || funcutil.Contains(g.Callees(scc[0]), scc[0]) {
			slices.Sort(scc)
			groups = append(groups, scc)
		}
	}
	return groups
}

// Cycles returns every elementary call cycle of the module. Each path starts
// and ends at the cycle's lowest function index, and a directly recursive
// function appears as a two-element path. Cycles come back in lexicographic
// order.
func (g *CallGraph) Cycles() [][]bytecode.FunctionDefIndex {
	var cycles [][]bytecode.FunctionDefIndex
	for i := range g.module.Functions {
		fn := bytecode.FunctionDefIndex(i)
		if funcutil.Contains(g.Callees(fn), fn) {
			cycles = append(cycles, []bytecode.FunctionDefIndex{fn, fn})
		}
	}
	for _, path := range graphutil.FindAllElementaryCycles(g.FlowGraph()) {
		// The search reports a self-call only when the function opens a
		// round; the pass above collects them all, so keep the longer paths.
		if len(path) == 2 {
			continue
		}
		cycles = append(cycles, funcutil.Map(path,
			func(id int64) bytecode.FunctionDefIndex { return bytecode.FunctionDefIndex(id) }))
	}
	sort.Slice(cycles, func(i, j int) bool {
		a, b := cycles[i], cycles[j]
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
	return cycles
}

// FlowGraph adapts the call graph to the graphutil iterator, with one node
// per function definition named by its function for DOT renderings.
func (g *CallGraph) FlowGraph() graphutil.FlowGraph {
	entries := make([]int64, len(g.module.Functions))
	for i := range entries {
		entries[i] = int64(i)
	}
	succ := func(entry int64) []int64 {
		return funcutil.Map(g.Callees(bytecode.FunctionDefIndex(entry)),
			func(callee bytecode.FunctionDefIndex) int64 { return int64(callee) })
	}
	name := func(entry int64) string {
		def := g.module.Functions[entry]
		return g.module.FunctionHandles[def.Handle].Name
	}
	return graphutil.NewNamedFlowIterator(entries, succ, name)
}
