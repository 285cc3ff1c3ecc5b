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

// Package controlflow checks the structural shape of a function's code before
// the dataflow passes run: code units terminate instead of falling off the
// end, and block count, loop nesting, parameter count and frame size stay
// within the configured limits.
package controlflow

import (
	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/internal/graphutil"
)

// Limits bounds the shape of a single function. A zero value leaves the
// corresponding dimension unbounded.
type Limits struct {
	// MaxBasicBlocks bounds the number of basic blocks of one code unit.
	MaxBasicBlocks int
	// MaxLoopDepth bounds the loop nesting depth of the control-flow graph.
	MaxLoopDepth int
	// MaxParameters bounds the number of declared parameters.
	MaxParameters int
	// MaxLocals bounds the full frame size, parameters included.
	MaxLocals int
}

// Verify checks the control-flow structure of one function against limits.
// Native functions have no code and always pass.
func Verify(view *bytecode.FunctionView, limits Limits) error {
	if view.IsNative() {
		return nil
	}
	fn := int(view.Index())

	code := view.Code()
	if len(code) == 0 {
		return bytecode.NewVMError(bytecode.StatusEmptyCodeUnit, "function has no code").
			AtFunction(fn)
	}

	if limits.MaxParameters > 0 && len(view.Parameters()) > limits.MaxParameters {
		return bytecode.NewVMErrorf(bytecode.StatusTooManyParameters,
			"function has %d parameters, maximum is %d",
			len(view.Parameters()), limits.MaxParameters).AtFunction(fn)
	}
	if limits.MaxLocals > 0 && len(view.Locals()) > limits.MaxLocals {
		return bytecode.NewVMErrorf(bytecode.StatusTooManyLocals,
			"function frame has %d slots, maximum is %d",
			len(view.Locals()), limits.MaxLocals).AtFunction(fn)
	}

	// The instruction at the last offset is the only place control can leave
	// the unit without an explicit jump. A conditional branch is not enough;
	// its fall-through arm would run off the end.
	last := code[len(code)-1]
	if !last.Op.IsTerminal() && last.Op != bytecode.OpBranch {
		return bytecode.NewVMError(bytecode.StatusInvalidFallThrough,
			"control falls off the end of the code unit").
			AtCodeOffset(fn, len(code)-1)
	}

	cfg := view.CFG()
	if limits.MaxBasicBlocks > 0 && cfg.NumBlocks() > limits.MaxBasicBlocks {
		return bytecode.NewVMErrorf(bytecode.StatusTooManyBasicBlocks,
			"function has %d basic blocks, maximum is %d",
			cfg.NumBlocks(), limits.MaxBasicBlocks).AtFunction(fn)
	}
	if limits.MaxLoopDepth > 0 {
		if depth := graphutil.LoopNestingDepth(FlowGraph(cfg)); depth > limits.MaxLoopDepth {
			return bytecode.NewVMErrorf(bytecode.StatusLoopMaxDepthReached,
				"loop nesting depth %d exceeds maximum %d",
				depth, limits.MaxLoopDepth).AtFunction(fn)
		}
	}
	return nil
}

// FlowGraph adapts a control-flow graph to the graphutil iterator, with one
// node per basic block named by its entry offset.
func FlowGraph(cfg *bytecode.CFG) graphutil.FlowGraph {
	blocks := cfg.Blocks()
	entries := make([]int64, len(blocks))
	for i, id := range blocks {
		entries[i] = int64(id)
	}
	return graphutil.NewFlowIterator(entries, func(entry int64) []int64 {
		succs := cfg.Successors(bytecode.BlockID(entry))
		out := make([]int64, len(succs))
		for i, s := range succs {
			out[i] = int64(s)
		}
		return out
	})
}
