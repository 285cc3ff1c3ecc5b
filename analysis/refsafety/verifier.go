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

package refsafety

import (
	"github.com/aptos-labs/aptos-core-sub029/analysis/absint"
	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/analysis/meter"
)

// Metering costs. Steps and joins are charged per local and per graph edge
// so that the bill tracks the actual state size; reference edges created by
// calls grow geometrically because chains of many-ref calls are what blow
// the graph up in practice.
const (
	StepBaseCost         uint64 = 10
	StepPerLocalCost     uint64 = 20
	StepPerGraphItemCost uint64 = 50

	JoinBaseCost         uint64 = 100
	JoinPerLocalCost     uint64 = 10
	JoinPerGraphItemCost uint64 = 50

	RefParamEdgeCost    uint64 = 100
	CallPerAcquiresCost uint64 = 100
)

// RefParamEdgeCostGrowth is the per-edge cost multiplier applied while
// charging the reference edges of a single call.
const RefParamEdgeCostGrowth = 1.5

// Verify runs the reference safety analysis over one function. It returns
// nil when every possible execution respects borrow discipline, a VMError
// naming the violation otherwise.
func Verify(view *bytecode.FunctionView, m meter.Meter) error {
	if view.IsNative() {
		return nil
	}
	v := &verifier{
		view:   view,
		module: view.Module(),
		stack:  &abstractStack{},
	}
	return absint.AnalyzeFunction[*AbstractState](v, NewAbstractState(view), view, m)
}

// verifier carries the per-function context of the analysis. The operand
// stack lives here rather than in the state: it is empty at every block
// boundary, so it never takes part in join.
type verifier struct {
	view   *bytecode.FunctionView
	module *bytecode.CompiledModule
	stack  *abstractStack
}

var _ absint.TransferFunctions[*AbstractState] = (*verifier)(nil)

// Execute implements absint.TransferFunctions.
func (v *verifier) Execute(state *AbstractState, instr bytecode.Instruction,
	offset, last bytecode.CodeOffset, m meter.Meter) error {
	if err := m.Add(meter.ScopeFunction, StepBaseCost); err != nil {
		return err
	}
	if err := m.AddItems(meter.ScopeFunction, StepPerLocalCost, len(state.locals)); err != nil {
		return err
	}
	if err := m.AddItems(meter.ScopeFunction, StepPerGraphItemCost, state.graph.GraphSize()); err != nil {
		return err
	}
	if err := v.executeInstruction(state, instr, offset, m); err != nil {
		return err
	}
	if offset == last {
		if v.stack.len() != 0 {
			return state.invariant(offset, "operand stack not empty at end of block")
		}
		state.Canonicalize()
	}
	return nil
}

func (v *verifier) pop(state *AbstractState, offset bytecode.CodeOffset) (AbstractValue, error) {
	val, ok := v.stack.pop()
	if !ok {
		return NonReference, state.invariant(offset, "operand stack underflow")
	}
	return val, nil
}

// popValue pops an operand that type safety guarantees is not a reference.
func (v *verifier) popValue(state *AbstractState, offset bytecode.CodeOffset) error {
	val, err := v.pop(state, offset)
	if err != nil {
		return err
	}
	if val.IsRef {
		return state.invariant(offset, "reference in value operand position")
	}
	return nil
}

func (v *verifier) popValues(state *AbstractState, offset bytecode.CodeOffset, n int) error {
	for i := 0; i < n; i++ {
		if err := v.popValue(state, offset); err != nil {
			return err
		}
	}
	return nil
}

// popReference pops an operand that type safety guarantees is a reference.
func (v *verifier) popReference(state *AbstractState, offset bytecode.CodeOffset) (AbstractValue, error) {
	val, err := v.pop(state, offset)
	if err != nil {
		return NonReference, err
	}
	if !val.IsRef {
		return NonReference, state.invariant(offset, "value in reference operand position")
	}
	return val, nil
}

//gocyclo:ignore
func (v *verifier) executeInstruction(state *AbstractState, instr bytecode.Instruction,
	offset bytecode.CodeOffset, m meter.Meter) error {
	switch instr.Op {
	case bytecode.OpNop:
		return nil

	case bytecode.OpPop:
		val, err := v.pop(state, offset)
		if err != nil {
			return err
		}
		return state.releaseValue(offset, val)

	case bytecode.OpLdU64, bytecode.OpLdTrue, bytecode.OpLdFalse, bytecode.OpLdConst:
		v.stack.push(NonReference)
		return nil

	case bytecode.OpCopyLoc:
		val, err := state.copyLoc(offset, instr.Local)
		if err != nil {
			return err
		}
		v.stack.push(val)
		return nil

	case bytecode.OpMoveLoc:
		val, err := state.moveLoc(offset, instr.Local)
		if err != nil {
			return err
		}
		v.stack.push(val)
		return nil

	case bytecode.OpStLoc:
		val, err := v.pop(state, offset)
		if err != nil {
			return err
		}
		return state.stLoc(offset, instr.Local, val)

	case bytecode.OpFreezeRef:
		ref, err := v.popReference(state, offset)
		if err != nil {
			return err
		}
		frozen, err := state.freezeRef(offset, ref.Ref)
		if err != nil {
			return err
		}
		v.stack.push(frozen)
		return nil

	case bytecode.OpReadRef:
		ref, err := v.popReference(state, offset)
		if err != nil {
			return err
		}
		if err := state.readRef(offset, ref.Ref); err != nil {
			return err
		}
		v.stack.push(NonReference)
		return nil

	case bytecode.OpWriteRef:
		ref, err := v.popReference(state, offset)
		if err != nil {
			return err
		}
		if err := v.popValue(state, offset); err != nil {
			return err
		}
		return state.writeRef(offset, ref.Ref)

	case bytecode.OpMutBorrowLoc, bytecode.OpImmBorrowLoc:
		val, err := state.borrowLoc(offset, instr.Op == bytecode.OpMutBorrowLoc, instr.Local)
		if err != nil {
			return err
		}
		v.stack.push(val)
		return nil

	case bytecode.OpMutBorrowField, bytecode.OpImmBorrowField:
		ref, err := v.popReference(state, offset)
		if err != nil {
			return err
		}
		fh := v.module.FieldHandles[instr.Field]
		val, err := state.borrowField(offset, instr.Op == bytecode.OpMutBorrowField, fieldLabel(fh), ref.Ref)
		if err != nil {
			return err
		}
		v.stack.push(val)
		return nil

	case bytecode.OpMutBorrowGlobal, bytecode.OpImmBorrowGlobal:
		if err := v.popValue(state, offset); err != nil {
			return err
		}
		val, err := state.borrowGlobal(offset, instr.Op == bytecode.OpMutBorrowGlobal, instr.Struct)
		if err != nil {
			return err
		}
		v.stack.push(val)
		return nil

	case bytecode.OpExists:
		if err := v.popValue(state, offset); err != nil {
			return err
		}
		v.stack.push(NonReference)
		return nil

	case bytecode.OpMoveFrom:
		if err := v.popValue(state, offset); err != nil {
			return err
		}
		val, err := state.moveFrom(offset, instr.Struct)
		if err != nil {
			return err
		}
		v.stack.push(val)
		return nil

	case bytecode.OpMoveTo:
		if err := v.popValue(state, offset); err != nil {
			return err
		}
		signer, err := v.popReference(state, offset)
		if err != nil {
			return err
		}
		return state.releaseValue(offset, signer)

	case bytecode.OpPack:
		if err := v.popValues(state, offset, len(v.module.Structs[instr.Struct].Fields)); err != nil {
			return err
		}
		v.stack.push(NonReference)
		return nil

	case bytecode.OpUnpack:
		if err := v.popValue(state, offset); err != nil {
			return err
		}
		v.stack.pushN(NonReference, len(v.module.Structs[instr.Struct].Fields))
		return nil

	case bytecode.OpVecPack:
		if err := v.popValues(state, offset, int(instr.Num)); err != nil {
			return err
		}
		v.stack.push(NonReference)
		return nil

	case bytecode.OpVecLen:
		ref, err := v.popReference(state, offset)
		if err != nil {
			return err
		}
		if err := state.vectorOp(offset, ref, false); err != nil {
			return err
		}
		v.stack.push(NonReference)
		return nil

	case bytecode.OpVecImmBorrow, bytecode.OpVecMutBorrow:
		ref, err := v.popReference(state, offset)
		if err != nil {
			return err
		}
		elem, err := state.vectorElementBorrow(offset, ref, instr.Op == bytecode.OpVecMutBorrow)
		if err != nil {
			return err
		}
		v.stack.push(elem)
		return nil

	case bytecode.OpVecPushBack:
		if err := v.popValue(state, offset); err != nil {
			return err
		}
		ref, err := v.popReference(state, offset)
		if err != nil {
			return err
		}
		return state.vectorOp(offset, ref, true)

	case bytecode.OpVecPopBack:
		ref, err := v.popReference(state, offset)
		if err != nil {
			return err
		}
		if err := state.vectorOp(offset, ref, true); err != nil {
			return err
		}
		v.stack.push(NonReference)
		return nil

	case bytecode.OpVecUnpack:
		if err := v.popValue(state, offset); err != nil {
			return err
		}
		v.stack.pushN(NonReference, int(instr.Num))
		return nil

	case bytecode.OpVecSwap:
		if err := v.popValues(state, offset, 2); err != nil {
			return err
		}
		ref, err := v.popReference(state, offset)
		if err != nil {
			return err
		}
		return state.vectorOp(offset, ref, true)

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpMod, bytecode.OpDiv,
		bytecode.OpBitOr, bytecode.OpBitAnd, bytecode.OpXor, bytecode.OpShl, bytecode.OpShr,
		bytecode.OpOr, bytecode.OpAnd, bytecode.OpLt, bytecode.OpGt, bytecode.OpLe, bytecode.OpGe:
		if err := v.popValues(state, offset, 2); err != nil {
			return err
		}
		v.stack.push(NonReference)
		return nil

	case bytecode.OpNot, bytecode.OpCastU8, bytecode.OpCastU16, bytecode.OpCastU32,
		bytecode.OpCastU64, bytecode.OpCastU128, bytecode.OpCastU256:
		if err := v.popValue(state, offset); err != nil {
			return err
		}
		v.stack.push(NonReference)
		return nil

	case bytecode.OpEq, bytecode.OpNeq:
		v1, err := v.pop(state, offset)
		if err != nil {
			return err
		}
		v2, err := v.pop(state, offset)
		if err != nil {
			return err
		}
		val, err := state.comparison(offset, v1, v2)
		if err != nil {
			return err
		}
		v.stack.push(val)
		return nil

	case bytecode.OpCall:
		fh := v.module.FunctionHandles[instr.Func]
		var acquires []bytecode.StructDefIndex
		if defIdx, ok := v.module.DefinitionOf(instr.Func); ok {
			acquires = v.module.Functions[defIdx].AcquiresGlobals
		}
		return v.executeCall(state, offset, fh.Parameters, fh.Returns, acquires, m)

	case bytecode.OpCallClosure:
		// The closure value itself is on top of the arguments. The callee is
		// unknown, so it cannot acquire anything local to this module.
		if err := v.popValue(state, offset); err != nil {
			return err
		}
		ft := v.module.FunctionTypes[instr.Type]
		return v.executeCall(state, offset, ft.Parameters, ft.Returns, nil, m)

	case bytecode.OpBranch:
		return nil

	case bytecode.OpBrTrue, bytecode.OpBrFalse:
		return v.popValue(state, offset)

	case bytecode.OpRet:
		values, ok := v.stack.popN(len(v.view.Returns()))
		if !ok {
			return state.invariant(offset, "operand stack underflow")
		}
		return state.ret(offset, values)

	case bytecode.OpAbort:
		return v.popValue(state, offset)

	default:
		return state.invariant(offset, "unknown instruction %v", instr.Op)
	}
}

func (v *verifier) executeCall(state *AbstractState, offset bytecode.CodeOffset,
	params, returns bytecode.SignatureIndex, acquires []bytecode.StructDefIndex, m meter.Meter) error {
	args, ok := v.stack.popN(len(v.module.Signatures[params]))
	if !ok {
		return state.invariant(offset, "operand stack underflow")
	}
	values, err := state.call(offset, args, acquires, v.module.Signatures[returns], m)
	if err != nil {
		return err
	}
	for _, val := range values {
		v.stack.push(val)
	}
	return nil
}
