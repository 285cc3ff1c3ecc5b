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
	"golang.org/x/exp/slices"

	"github.com/aptos-labs/aptos-core-sub029/analysis/absint"
	"github.com/aptos-labs/aptos-core-sub029/analysis/borrow"
	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/analysis/meter"
	"github.com/aptos-labs/aptos-core-sub029/internal/funcutil"
)

// AbstractValue is the verifier's view of one runtime value: either a
// reference tracked in the borrow graph, or any non-reference value.
type AbstractValue struct {
	Ref   borrow.RefID
	IsRef bool
}

// NonReference is the abstract value of anything that is not a reference.
var NonReference = AbstractValue{}

// Reference wraps a borrow graph id as an abstract value.
func Reference(id borrow.RefID) AbstractValue {
	return AbstractValue{Ref: id, IsRef: true}
}

// AbstractState tracks, for one code offset, which locals hold references
// and how every live reference borrows from locals, globals and other
// references. The frame root is an implicit extra reference that stands for
// the whole frame plus global storage; borrows of a local or a resource are
// edges out of the frame root labeled with the local or the resource.
type AbstractState struct {
	function int
	locals   []AbstractValue
	graph    *borrow.Graph[Label]
	nextID   borrow.RefID
}

// NewAbstractState builds the state at function entry: every reference
// parameter is a fresh root in the borrow graph, everything else is a plain
// value.
func NewAbstractState(view *bytecode.FunctionView) *AbstractState {
	numLocals := len(view.Locals())
	s := &AbstractState{
		function: int(view.Index()),
		locals:   make([]AbstractValue, numLocals),
		graph:    newBorrowGraph(),
		nextID:   borrow.RefID(numLocals) + 1,
	}
	for i, tok := range view.Parameters() {
		if tok.IsReference() {
			id := borrow.RefID(i)
			s.graph.NewRef(id, tok.IsMutableReference())
			s.locals[i] = Reference(id)
		}
	}
	s.graph.NewRef(s.frameRoot(), true)
	return s
}

func (s *AbstractState) frameRoot() borrow.RefID {
	return borrow.RefID(len(s.locals))
}

func (s *AbstractState) newRef(mutable bool) borrow.RefID {
	id := s.nextID
	s.nextID++
	s.graph.NewRef(id, mutable)
	return id
}

func (s *AbstractState) err(code bytecode.StatusCode, offset bytecode.CodeOffset, format string, args ...interface{}) *bytecode.VMError {
	return bytecode.NewVMErrorf(code, format, args...).AtCodeOffset(s.function, int(offset))
}

func (s *AbstractState) invariant(offset bytecode.CodeOffset, format string, args ...interface{}) *bytecode.VMError {
	return s.err(bytecode.StatusUnknownInvariantViolation, offset, format, args...)
}

func (s *AbstractState) release(offset bytecode.CodeOffset, id borrow.RefID) error {
	if !s.graph.Release(id) {
		return s.invariant(offset, "release of unknown reference %d", id)
	}
	return nil
}

func (s *AbstractState) releaseValue(offset bytecode.CodeOffset, v AbstractValue) error {
	if v.IsRef {
		return s.release(offset, v.Ref)
	}
	return nil
}

func (s *AbstractState) isLocalBorrowed(idx bytecode.LocalIndex) bool {
	lbl := localLabel(idx)
	return s.graph.HasConsistentBorrows(s.frameRoot(), &lbl)
}

func (s *AbstractState) isLocalMutablyBorrowed(idx bytecode.LocalIndex) bool {
	lbl := localLabel(idx)
	return s.graph.HasConsistentMutableBorrows(s.frameRoot(), &lbl)
}

func (s *AbstractState) isGlobalBorrowed(resource bytecode.StructDefIndex) bool {
	lbl := globalLabel(resource)
	return s.graph.HasConsistentBorrows(s.frameRoot(), &lbl)
}

func (s *AbstractState) isGlobalMutablyBorrowed(resource bytecode.StructDefIndex) bool {
	lbl := globalLabel(resource)
	return s.graph.HasConsistentMutableBorrows(s.frameRoot(), &lbl)
}

func (s *AbstractState) isFrameSafeToDestroy() bool {
	return !s.graph.HasConsistentBorrows(s.frameRoot(), nil)
}

// copyLoc models copy_loc. Copying a reference clones it as a strong full
// borrow of the original; copying a value only needs the local to be free of
// mutable borrows.
func (s *AbstractState) copyLoc(offset bytecode.CodeOffset, idx bytecode.LocalIndex) (AbstractValue, error) {
	if int(idx) >= len(s.locals) {
		return NonReference, s.invariant(offset, "copy of out of range local %d", idx)
	}
	v := s.locals[idx]
	if v.IsRef {
		id := s.newRef(s.graph.IsMutable(v.Ref))
		s.graph.AddStrongBorrow(v.Ref, id)
		return Reference(id), nil
	}
	if s.isLocalMutablyBorrowed(idx) {
		return NonReference, s.err(bytecode.StatusCopyLocExistsBorrowError, offset,
			"cannot copy local %d while it is mutably borrowed", idx)
	}
	return NonReference, nil
}

// moveLoc models move_loc. Moving a value out of a borrowed local would
// leave its borrowers dangling.
func (s *AbstractState) moveLoc(offset bytecode.CodeOffset, idx bytecode.LocalIndex) (AbstractValue, error) {
	if int(idx) >= len(s.locals) {
		return NonReference, s.invariant(offset, "move of out of range local %d", idx)
	}
	v := s.locals[idx]
	if v.IsRef {
		s.locals[idx] = NonReference
		return v, nil
	}
	if s.isLocalBorrowed(idx) {
		return NonReference, s.err(bytecode.StatusMoveLocExistsBorrowError, offset,
			"cannot move local %d while it is borrowed", idx)
	}
	return NonReference, nil
}

// stLoc models st_loc. Overwriting a borrowed value destroys it under its
// borrowers; overwriting a reference releases it.
func (s *AbstractState) stLoc(offset bytecode.CodeOffset, idx bytecode.LocalIndex, v AbstractValue) error {
	if int(idx) >= len(s.locals) {
		return s.invariant(offset, "store to out of range local %d", idx)
	}
	old := s.locals[idx]
	s.locals[idx] = v
	if old.IsRef {
		return s.release(offset, old.Ref)
	}
	if s.isLocalBorrowed(idx) {
		return s.err(bytecode.StatusStLocUnsafeToDestroyError, offset,
			"cannot overwrite local %d while it is borrowed", idx)
	}
	return nil
}

// freezeRef models freeze_ref: the mutable input is released and replaced by
// an immutable reference to the same value.
func (s *AbstractState) freezeRef(offset bytecode.CodeOffset, id borrow.RefID) (AbstractValue, error) {
	if !s.graph.IsMutable(id) {
		return NonReference, s.invariant(offset, "freeze of immutable reference %d", id)
	}
	if !s.graph.IsFreezable(id, nil) {
		return NonReference, s.err(bytecode.StatusFreezeRefExistsMutableBorrowError, offset,
			"cannot freeze reference %d while it has mutable borrows", id)
	}
	frozen := s.newRef(false)
	s.graph.AddStrongBorrow(id, frozen)
	if err := s.release(offset, id); err != nil {
		return NonReference, err
	}
	return Reference(frozen), nil
}

// comparison models eq and neq. Comparing references reads through both, so
// both must be readable; the references are then consumed.
func (s *AbstractState) comparison(offset bytecode.CodeOffset, v1, v2 AbstractValue) (AbstractValue, error) {
	switch {
	case v1.IsRef && v2.IsRef:
		if !s.graph.IsReadable(v1.Ref, nil) || !s.graph.IsReadable(v2.Ref, nil) {
			return NonReference, s.err(bytecode.StatusReadRefExistsMutableBorrowError, offset,
				"cannot compare references while one has mutable borrows")
		}
		if err := s.release(offset, v1.Ref); err != nil {
			return NonReference, err
		}
		if err := s.release(offset, v2.Ref); err != nil {
			return NonReference, err
		}
		return NonReference, nil
	case !v1.IsRef && !v2.IsRef:
		return NonReference, nil
	default:
		return NonReference, s.invariant(offset, "comparison of reference and value")
	}
}

// readRef models read_ref; the reference is consumed by the read.
func (s *AbstractState) readRef(offset bytecode.CodeOffset, id borrow.RefID) error {
	if !s.graph.IsReadable(id, nil) {
		return s.err(bytecode.StatusReadRefExistsMutableBorrowError, offset,
			"cannot read reference %d while it has mutable borrows", id)
	}
	return s.release(offset, id)
}

// writeRef models write_ref; writing requires exclusive access.
func (s *AbstractState) writeRef(offset bytecode.CodeOffset, id borrow.RefID) error {
	if !s.graph.IsWritable(id) {
		return s.err(bytecode.StatusWriteRefExistsBorrowError, offset,
			"cannot write through reference %d while it is borrowed", id)
	}
	return s.release(offset, id)
}

// borrowLoc models mut_borrow_loc and imm_borrow_loc. A new mutable borrow
// is always granted; conflicts surface when the reference is used. A new
// immutable borrow must not overlap an existing mutable one.
func (s *AbstractState) borrowLoc(offset bytecode.CodeOffset, mutable bool, idx bytecode.LocalIndex) (AbstractValue, error) {
	if int(idx) >= len(s.locals) {
		return NonReference, s.invariant(offset, "borrow of out of range local %d", idx)
	}
	if !mutable && s.isLocalMutablyBorrowed(idx) {
		return NonReference, s.err(bytecode.StatusBorrowLocExistsBorrowError, offset,
			"cannot immutably borrow local %d while it is mutably borrowed", idx)
	}
	id := s.newRef(mutable)
	s.graph.AddStrongFieldBorrow(s.frameRoot(), localLabel(idx), id)
	return Reference(id), nil
}

// borrowField models mut_borrow_field and imm_borrow_field. The parent
// reference is consumed; the new reference extends whatever the parent
// borrowed by the field label.
func (s *AbstractState) borrowField(offset bytecode.CodeOffset, mutable bool, lbl Label, id borrow.RefID) (AbstractValue, error) {
	mutWithFullBorrows := mutable && s.graph.HasFullBorrows(id)
	immWithMutBorrows := !mutable && !s.graph.IsReadable(id, &lbl)
	if mutWithFullBorrows || immWithMutBorrows {
		return NonReference, s.err(bytecode.StatusBorrowFieldExistsMutableBorrowError, offset,
			"cannot borrow %v of reference %d while it is borrowed", lbl, id)
	}
	child := s.newRef(mutable)
	s.graph.AddStrongFieldBorrow(id, lbl, child)
	if err := s.release(offset, id); err != nil {
		return NonReference, err
	}
	return Reference(child), nil
}

// borrowGlobal models mut_borrow_global and imm_borrow_global. Global
// borrows are weak: any number of addresses may be borrowed under one
// resource label.
func (s *AbstractState) borrowGlobal(offset bytecode.CodeOffset, mutable bool, resource bytecode.StructDefIndex) (AbstractValue, error) {
	if (mutable && s.isGlobalBorrowed(resource)) || s.isGlobalMutablyBorrowed(resource) {
		return NonReference, s.err(bytecode.StatusGlobalReferenceError, offset,
			"cannot borrow global resource %d while it is borrowed", resource)
	}
	id := s.newRef(mutable)
	s.graph.AddWeakFieldBorrow(s.frameRoot(), globalLabel(resource), id)
	return Reference(id), nil
}

// moveFrom models move_from: extraction destroys the stored value, so the
// resource must be completely unborrowed.
func (s *AbstractState) moveFrom(offset bytecode.CodeOffset, resource bytecode.StructDefIndex) (AbstractValue, error) {
	if s.isGlobalBorrowed(resource) {
		return NonReference, s.err(bytecode.StatusGlobalReferenceError, offset,
			"cannot move resource %d out of storage while it is borrowed", resource)
	}
	return NonReference, nil
}

// call models a static or indirect call. Acquired resources must be
// unborrowed, mutable reference arguments must be transferable, and the
// returned references conservatively borrow from every reference argument
// that could back them.
func (s *AbstractState) call(offset bytecode.CodeOffset, args []AbstractValue,
	acquires []bytecode.StructDefIndex, returns bytecode.Signature, m meter.Meter) ([]AbstractValue, error) {
	if err := m.AddItems(meter.ScopeFunction, CallPerAcquiresCost, len(acquires)); err != nil {
		return nil, err
	}
	for _, resource := range acquires {
		if s.isGlobalBorrowed(resource) {
			return nil, s.err(bytecode.StatusGlobalReferenceError, offset,
				"cannot call function acquiring resource %d while it is borrowed", resource)
		}
	}

	allRefArgs := make(map[borrow.RefID]bool)
	mutableRefArgs := make(map[borrow.RefID]bool)
	for _, v := range args {
		if !v.IsRef {
			continue
		}
		if s.graph.IsMutable(v.Ref) {
			if !s.graph.IsWritable(v.Ref) {
				return nil, s.err(bytecode.StatusCallBorrowedMutableReferenceError, offset,
					"cannot pass mutable reference %d while it is borrowed", v.Ref)
			}
			mutableRefArgs[v.Ref] = true
		}
		allRefArgs[v.Ref] = true
	}
	allSources := funcutil.SetToOrderedSlice(allRefArgs)
	mutableSources := funcutil.SetToOrderedSlice(mutableRefArgs)

	returnedRefs := 0
	values := make([]AbstractValue, len(returns))
	for i, tok := range returns {
		switch tok.Kind {
		case bytecode.KindMutableReference:
			id := s.newRef(true)
			for _, parent := range mutableSources {
				s.graph.AddWeakBorrow(parent, id)
			}
			returnedRefs++
			values[i] = Reference(id)
		case bytecode.KindReference:
			id := s.newRef(false)
			for _, parent := range allSources {
				s.graph.AddWeakBorrow(parent, id)
			}
			returnedRefs++
			values[i] = Reference(id)
		default:
			values[i] = NonReference
		}
	}
	err := m.AddItemsWithGrowth(meter.ScopeFunction, RefParamEdgeCost,
		len(allSources)*returnedRefs, RefParamEdgeCostGrowth)
	if err != nil {
		return nil, err
	}

	for _, id := range allSources {
		if err := s.release(offset, id); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// ret models the return instruction: all locals die, nothing local or
// global may remain borrowed, and returned mutable references must be
// exclusive.
func (s *AbstractState) ret(offset bytecode.CodeOffset, values []AbstractValue) error {
	released := make(map[borrow.RefID]bool)
	for _, v := range s.locals {
		if v.IsRef {
			released[v.Ref] = true
		}
	}
	for _, id := range funcutil.SetToOrderedSlice(released) {
		if err := s.release(offset, id); err != nil {
			return err
		}
	}

	if !s.isFrameSafeToDestroy() {
		return s.err(bytecode.StatusUnsafeRetLocalOrResourceStillBorrowed, offset,
			"cannot return while a local or global resource is still borrowed")
	}

	for _, v := range values {
		if v.IsRef && s.graph.IsMutable(v.Ref) && !s.graph.IsWritable(v.Ref) {
			return s.err(bytecode.StatusRetBorrowedMutableReferenceError, offset,
				"cannot return mutable reference %d while it is borrowed", v.Ref)
		}
	}
	return nil
}

// vectorOp models the vector instructions that touch the whole vector
// through a reference and return no element reference.
func (s *AbstractState) vectorOp(offset bytecode.CodeOffset, v AbstractValue, mutable bool) error {
	if !v.IsRef {
		return s.invariant(offset, "vector operation on non-reference")
	}
	if mutable && !s.graph.IsWritable(v.Ref) {
		return s.err(bytecode.StatusVecUpdateExistsMutableBorrowError, offset,
			"cannot update vector through reference %d while it is borrowed", v.Ref)
	}
	return s.release(offset, v.Ref)
}

// vectorElementBorrow models vec_imm_borrow and vec_mut_borrow. The element
// borrow is weak: the index is unknown, so it may overlap any other element
// borrow of the same vector.
func (s *AbstractState) vectorElementBorrow(offset bytecode.CodeOffset, v AbstractValue, mutable bool) (AbstractValue, error) {
	if !v.IsRef {
		return NonReference, s.invariant(offset, "vector borrow on non-reference")
	}
	if mutable && !s.graph.IsWritable(v.Ref) {
		return NonReference, s.err(bytecode.StatusVecBorrowElementExistsMutableBorrowError, offset,
			"cannot borrow vector element through reference %d while it is borrowed", v.Ref)
	}
	elem := s.newRef(mutable)
	s.graph.AddWeakBorrow(v.Ref, elem)
	if err := s.release(offset, v.Ref); err != nil {
		return NonReference, err
	}
	return Reference(elem), nil
}

// IsCanonical reports whether every reference held by a local uses the id
// of its slot and fresh ids restart right after the frame root.
func (s *AbstractState) IsCanonical() bool {
	if s.nextID != borrow.RefID(len(s.locals))+1 {
		return false
	}
	for i, v := range s.locals {
		if v.IsRef && v.Ref != borrow.RefID(i) {
			return false
		}
	}
	return true
}

// Canonicalize renames every local's reference to its slot index so that
// states reaching a block along different paths become comparable. The
// caller must have released all stack references first.
func (s *AbstractState) Canonicalize() {
	idMap := make(map[borrow.RefID]borrow.RefID, len(s.locals)+1)
	idMap[s.frameRoot()] = s.frameRoot()
	for i, v := range s.locals {
		if v.IsRef {
			idMap[v.Ref] = borrow.RefID(i)
			s.locals[i] = Reference(borrow.RefID(i))
		}
	}
	s.graph.RemapRefs(idMap)
	s.nextID = borrow.RefID(len(s.locals)) + 1
}

// Clone implements absint.Domain.
func (s *AbstractState) Clone() *AbstractState {
	return &AbstractState{
		function: s.function,
		locals:   slices.Clone(s.locals),
		graph:    s.graph.Clone(),
		nextID:   s.nextID,
	}
}

// Join implements absint.Domain. Both states must be canonical. A local
// that is a reference on one path but not the other is released on its own
// side and dropped to non-reference; the graphs are then unioned edge by
// edge.
func (s *AbstractState) Join(other *AbstractState, m meter.Meter) (absint.JoinResult, error) {
	if err := m.Add(meter.ScopeFunction, JoinBaseCost); err != nil {
		return absint.JoinUnchanged, err
	}
	if err := m.AddItems(meter.ScopeFunction, JoinPerLocalCost, len(s.locals)); err != nil {
		return absint.JoinUnchanged, err
	}
	if err := m.AddItems(meter.ScopeFunction, JoinPerGraphItemCost, s.graph.GraphSize()); err != nil {
		return absint.JoinUnchanged, err
	}

	if !s.IsCanonical() || !other.IsCanonical() {
		return absint.JoinUnchanged, bytecode.NewVMError(bytecode.StatusUnknownInvariantViolation,
			"join of non-canonical states").AtFunction(s.function)
	}
	if len(s.locals) != len(other.locals) {
		return absint.JoinUnchanged, bytecode.NewVMError(bytecode.StatusUnknownInvariantViolation,
			"join of states with different frames").AtFunction(s.function)
	}

	selfGraph := s.graph.Clone()
	otherGraph := other.graph.Clone()
	joinedLocals := make([]AbstractValue, len(s.locals))
	localsChanged := false
	for i := range s.locals {
		sv, ov := s.locals[i], other.locals[i]
		switch {
		case sv.IsRef && ov.IsRef:
			// Canonical ids are slot-determined.
			if sv.Ref != ov.Ref {
				return absint.JoinUnchanged, bytecode.NewVMError(bytecode.StatusUnknownInvariantViolation,
					"join of canonical states with diverging ids").AtFunction(s.function)
			}
			joinedLocals[i] = sv
		case sv.IsRef:
			// The slot holds a reference on only one path; the joined slot
			// cannot, so each side releases its own.
			selfGraph.Release(sv.Ref)
			localsChanged = true
		case ov.IsRef:
			otherGraph.Release(ov.Ref)
		}
	}

	joinedGraph := selfGraph.Join(otherGraph)
	if localsChanged || !joinedGraph.Leq(s.graph) {
		s.locals = joinedLocals
		s.graph = joinedGraph
		return absint.JoinChanged, nil
	}
	return absint.JoinUnchanged, nil
}
