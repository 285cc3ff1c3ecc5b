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
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// BlockID names a basic block by the offset of its first instruction.
type BlockID = CodeOffset

// BasicBlock is a maximal straight-line run of instructions. Exit is the
// offset of the last instruction in the block.
type BasicBlock struct {
	Entry      CodeOffset
	Exit       CodeOffset
	Successors []BlockID
}

// CFG is the control-flow graph of one code unit. All returned slices are
// read-only.
type CFG struct {
	blocks    map[BlockID]*BasicBlock
	order     []BlockID // ascending entry offsets
	rpo       map[BlockID]int
	rpoOrder  []BlockID
	backEdges map[BlockID]map[BlockID]bool
	loopHeads map[BlockID]bool
}

// BuildCFG splits code into basic blocks. Block boundaries sit at offset 0,
// at every branch target, and after every instruction that ends a block.
// Branch targets must already be bounds checked.
func BuildCFG(code []Instruction) *CFG {
	cfg := &CFG{
		blocks:    make(map[BlockID]*BasicBlock),
		rpo:       make(map[BlockID]int),
		backEdges: make(map[BlockID]map[BlockID]bool),
		loopHeads: make(map[BlockID]bool),
	}
	if len(code) == 0 {
		return cfg
	}

	boundaries := map[CodeOffset]bool{0: true}
	for off, instr := range code {
		if instr.Op.IsBranch() {
			boundaries[instr.Target] = true
		}
		if instr.Op.EndsBlock() && off+1 < len(code) {
			boundaries[CodeOffset(off+1)] = true
		}
	}
	cfg.order = maps.Keys(boundaries)
	slices.Sort(cfg.order)

	for i, entry := range cfg.order {
		exit := CodeOffset(len(code) - 1)
		if i+1 < len(cfg.order) {
			exit = cfg.order[i+1] - 1
		}
		cfg.blocks[entry] = &BasicBlock{
			Entry:      entry,
			Exit:       exit,
			Successors: successors(code, exit),
		}
	}
	cfg.traverse()
	return cfg
}

func successors(code []Instruction, exit CodeOffset) []BlockID {
	instr := code[exit]
	next := exit + 1
	switch {
	case instr.Op == OpBranch:
		return []BlockID{instr.Target}
	case instr.Op.IsConditionalBranch():
		if instr.Target == next {
			return []BlockID{next}
		}
		if int(next) >= len(code) {
			return []BlockID{instr.Target}
		}
		return []BlockID{instr.Target, next}
	case instr.Op.IsTerminal():
		return nil
	default:
		if int(next) >= len(code) {
			return nil
		}
		return []BlockID{next}
	}
}

// traverse numbers the blocks reachable from the entry in reverse postorder
// and records back edges. Unreachable blocks are numbered after the reachable
// ones in ascending entry order.
func (cfg *CFG) traverse() {
	const (
		white = iota
		gray
		black
	)
	color := make(map[BlockID]int, len(cfg.blocks))
	var postorder []BlockID

	var visit func(id BlockID)
	visit = func(id BlockID) {
		color[id] = gray
		for _, succ := range cfg.blocks[id].Successors {
			switch color[succ] {
			case white:
				visit(succ)
			case gray:
				if cfg.backEdges[id] == nil {
					cfg.backEdges[id] = make(map[BlockID]bool)
				}
				cfg.backEdges[id][succ] = true
				cfg.loopHeads[succ] = true
			}
		}
		color[id] = black
		postorder = append(postorder, id)
	}
	if _, ok := cfg.blocks[0]; ok {
		visit(0)
	}

	cfg.rpoOrder = make([]BlockID, 0, len(cfg.blocks))
	for i := len(postorder) - 1; i >= 0; i-- {
		cfg.rpoOrder = append(cfg.rpoOrder, postorder[i])
	}
	for _, id := range cfg.order {
		if color[id] == white {
			cfg.rpoOrder = append(cfg.rpoOrder, id)
		}
	}
	for i, id := range cfg.rpoOrder {
		cfg.rpo[id] = i
	}
}

// Entry returns the entry block id. The entry is always offset 0.
func (cfg *CFG) Entry() BlockID { return 0 }

// NumBlocks returns the number of basic blocks.
func (cfg *CFG) NumBlocks() int { return len(cfg.blocks) }

// Blocks returns the block ids in ascending entry order.
func (cfg *CFG) Blocks() []BlockID { return cfg.order }

// Block returns the block with the given id, or nil.
func (cfg *CFG) Block(id BlockID) *BasicBlock { return cfg.blocks[id] }

// Successors returns the successor block ids of id.
func (cfg *CFG) Successors(id BlockID) []BlockID {
	if b := cfg.blocks[id]; b != nil {
		return b.Successors
	}
	return nil
}

// RPONumber returns the reverse postorder number of id, used as worklist
// priority. Lower numbers come earlier in execution order.
func (cfg *CFG) RPONumber(id BlockID) int { return cfg.rpo[id] }

// BlocksInRPO returns the block ids in reverse postorder, unreachable blocks
// last.
func (cfg *CFG) BlocksInRPO() []BlockID { return cfg.rpoOrder }

// IsBackEdge reports whether the edge from one block to another closes a loop.
func (cfg *CFG) IsBackEdge(from, to BlockID) bool {
	return cfg.backEdges[from][to]
}

// IsLoopHead reports whether id is the target of a back edge.
func (cfg *CFG) IsLoopHead(id BlockID) bool { return cfg.loopHeads[id] }
