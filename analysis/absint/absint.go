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

// Package absint drives abstract interpretation to a fixed point over the
// control-flow graph of one function. The domain and transfer functions are
// supplied by the analysis, the driver owns block scheduling and the join
// bookkeeping.
package absint

import (
	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/analysis/meter"
)

// JoinResult tells the driver whether a join grew the stored block
// precondition.
type JoinResult int

const (
	JoinUnchanged JoinResult = iota
	JoinChanged
)

// Domain is the abstract state contract. Join merges other into the receiver
// and reports whether the receiver grew. Both operations may charge the meter.
type Domain[S any] interface {
	Join(other S, m meter.Meter) (JoinResult, error)
	Clone() S
}

// TransferFunctions executes one instruction against the abstract state,
// mutating it in place. last is the offset of the final instruction of the
// current basic block, which is where analyses canonicalize their state.
type TransferFunctions[S any] interface {
	Execute(state S, instr bytecode.Instruction, offset, last bytecode.CodeOffset, m meter.Meter) error
}

// AnalyzeFunction runs tf over the reachable blocks of view until the block
// preconditions stop changing. Blocks are swept in reverse postorder. When a
// join over an edge that does not lead forward grows its target, the sweep
// jumps back to the earliest such target and re-runs the loop body.
//
// The join lattice alone does not guarantee convergence on adversarial input.
// Callers bound the run time through the meter, whose exhaustion aborts the
// analysis with a PROGRAM_TOO_COMPLEX error.
func AnalyzeFunction[S Domain[S]](tf TransferFunctions[S], initial S, view *bytecode.FunctionView, m meter.Meter) error {
	cfg := view.CFG()
	if cfg.NumBlocks() == 0 {
		return nil
	}
	code := view.Code()

	order := cfg.BlocksInRPO()
	position := make(map[bytecode.BlockID]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	pre := make(map[bytecode.BlockID]S, len(order))
	pre[cfg.Entry()] = initial

	idx := 0
	for idx < len(order) {
		blockID := order[idx]
		preState, ok := pre[blockID]
		if !ok {
			// Unreachable block, nothing flows into it.
			idx++
			continue
		}
		block := cfg.Block(blockID)

		post := preState.Clone()
		for off := int(block.Entry); off <= int(block.Exit); off++ {
			if err := tf.Execute(post, code[off], bytecode.CodeOffset(off), block.Exit, m); err != nil {
				return err
			}
		}

		jumpBack := -1
		for _, succ := range cfg.Successors(blockID) {
			existing, seen := pre[succ]
			if !seen {
				pre[succ] = post.Clone()
				continue
			}
			result, err := existing.Join(post, m)
			if err != nil {
				return err
			}
			if result == JoinChanged && position[succ] <= idx {
				if jumpBack == -1 || position[succ] < jumpBack {
					jumpBack = position[succ]
				}
			}
		}
		if jumpBack >= 0 {
			idx = jumpBack
		} else {
			idx++
		}
	}
	return nil
}
