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
	"fmt"

	"github.com/aptos-labs/aptos-core-sub029/analysis/borrow"
	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
)

// LabelKind discriminates what part of the frame a borrow edge covers.
type LabelKind uint8

const (
	// LabelLocal marks the value stored in a local slot, an extension of the
	// frame root.
	LabelLocal LabelKind = iota
	// LabelGlobal marks all global storage of one resource type, an
	// extension of the frame root.
	LabelGlobal
	// LabelField marks one field of a struct value.
	LabelField
)

// Label is the edge label of the reference safety borrow graph.
type Label struct {
	Kind  LabelKind
	Index uint32
}

func localLabel(idx bytecode.LocalIndex) Label {
	return Label{Kind: LabelLocal, Index: uint32(idx)}
}

func globalLabel(resource bytecode.StructDefIndex) Label {
	return Label{Kind: LabelGlobal, Index: uint32(resource)}
}

// fieldLabel identifies a field by its owner and position so that distinct
// field handles naming the same field share a label.
func fieldLabel(fh bytecode.FieldHandle) Label {
	return Label{Kind: LabelField, Index: uint32(fh.Owner)<<16 | uint32(fh.Field)}
}

func compareLabels(a, b Label) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	switch {
	case a.Index < b.Index:
		return -1
	case a.Index > b.Index:
		return 1
	default:
		return 0
	}
}

func (l Label) String() string {
	switch l.Kind {
	case LabelLocal:
		return fmt.Sprintf("local(%d)", l.Index)
	case LabelGlobal:
		return fmt.Sprintf("global(%d)", l.Index)
	case LabelField:
		return fmt.Sprintf("field(%d.%d)", l.Index>>16, l.Index&0xFFFF)
	default:
		return fmt.Sprintf("label(%d)", l.Kind)
	}
}

// newBorrowGraph creates the label-ordered graph used by the analysis.
func newBorrowGraph() *borrow.Graph[Label] {
	return borrow.New[Label](compareLabels)
}
