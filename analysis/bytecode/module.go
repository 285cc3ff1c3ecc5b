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

// Package bytecode defines the in-memory form of a compiled module and the
// views the verifier passes consume. The tables are read-only once Validate
// has accepted them.
package bytecode

// Index types into the module tables. Keeping them distinct catches most
// cross-table mixups at compile time.
type (
	LocalIndex          uint8
	FieldHandleIndex    uint16
	StructDefIndex      uint16
	FunctionHandleIndex uint16
	FunctionDefIndex    uint16
	FunctionTypeIndex   uint16
	SignatureIndex      uint16
	ConstantIndex       uint16
	CodeOffset          uint16
)

// MaxLocalSlots is the number of frame slots addressable by a LocalIndex.
const MaxLocalSlots = 256

// maxVectorOperand caps the element count operand of vec_pack and vec_unpack.
const maxVectorOperand = 1 << 16

// maxCodeLength bounds code units so that CodeOffset arithmetic cannot wrap.
const maxCodeLength = 1<<16 - 1

// CompiledModule is the unit of verification. All cross references between
// tables are by index.
type CompiledModule struct {
	Name            string           `cbor:"1,keyasint"`
	Structs         []StructDef      `cbor:"2,keyasint,omitempty"`
	FieldHandles    []FieldHandle    `cbor:"3,keyasint,omitempty"`
	FunctionHandles []FunctionHandle `cbor:"4,keyasint,omitempty"`
	FunctionTypes   []FunctionType   `cbor:"5,keyasint,omitempty"`
	Signatures      []Signature      `cbor:"6,keyasint,omitempty"`
	Constants       []Constant       `cbor:"7,keyasint,omitempty"`
	Functions       []FunctionDef    `cbor:"8,keyasint,omitempty"`

	defByHandle map[FunctionHandleIndex]FunctionDefIndex
}

// StructDef declares a struct and its fields.
type StructDef struct {
	Name   string  `cbor:"1,keyasint"`
	Fields []Field `cbor:"2,keyasint,omitempty"`
}

// Field is one field of a struct definition.
type Field struct {
	Name string         `cbor:"1,keyasint"`
	Type SignatureToken `cbor:"2,keyasint"`
}

// FieldHandle names a single field of a struct, the operand of the field
// borrow instructions.
type FieldHandle struct {
	Owner StructDefIndex `cbor:"1,keyasint"`
	Field uint16         `cbor:"2,keyasint"`
}

// FunctionHandle is the callable signature of a function. Handles may refer
// to functions defined in another module, in which case this module carries
// no definition for them.
type FunctionHandle struct {
	Name       string         `cbor:"1,keyasint"`
	Parameters SignatureIndex `cbor:"2,keyasint"`
	Returns    SignatureIndex `cbor:"3,keyasint"`
}

// FunctionType is the signature of a closure callee, the operand of
// call_closure.
type FunctionType struct {
	Parameters SignatureIndex `cbor:"1,keyasint"`
	Returns    SignatureIndex `cbor:"2,keyasint"`
}

// Constant is an entry of the constant pool.
type Constant struct {
	Type SignatureToken `cbor:"1,keyasint"`
	Data []byte         `cbor:"2,keyasint,omitempty"`
}

// FunctionDef is a function defined in this module. Locals indexes the
// signature of the declared locals, which follow the parameters in the frame.
// Native functions carry no code.
type FunctionDef struct {
	Handle          FunctionHandleIndex `cbor:"1,keyasint"`
	AcquiresGlobals []StructDefIndex    `cbor:"2,keyasint,omitempty"`
	Locals          SignatureIndex      `cbor:"3,keyasint"`
	Native          bool                `cbor:"4,keyasint,omitempty"`
	Code            []Instruction       `cbor:"5,keyasint,omitempty"`
}

// DefinitionOf resolves a function handle to the definition in this module,
// if there is one. Handles of imported functions resolve to nothing.
//
// The resolution map is built by Validate. Calling DefinitionOf before
// Validate builds it lazily and is not safe for concurrent use.
func (m *CompiledModule) DefinitionOf(h FunctionHandleIndex) (FunctionDefIndex, bool) {
	if m.defByHandle == nil {
		m.buildDefIndex()
	}
	idx, ok := m.defByHandle[h]
	return idx, ok
}

func (m *CompiledModule) buildDefIndex() {
	m.defByHandle = make(map[FunctionHandleIndex]FunctionDefIndex, len(m.Functions))
	for i, def := range m.Functions {
		if _, seen := m.defByHandle[def.Handle]; !seen {
			m.defByHandle[def.Handle] = FunctionDefIndex(i)
		}
	}
}

// Validate bounds-checks every cross-table index so the verifier passes can
// trust the tables. It must run, and accept, before any pass.
func (m *CompiledModule) Validate() error {
	for i, sig := range m.Signatures {
		for _, tok := range sig {
			if err := tok.validate(len(m.Structs)); err != nil {
				return NewVMErrorf(StatusIndexOutOfBounds, "signature %d: %v", i, err)
			}
		}
	}
	for i, s := range m.Structs {
		for _, f := range s.Fields {
			if err := f.Type.validate(len(m.Structs)); err != nil {
				return NewVMErrorf(StatusIndexOutOfBounds, "struct %d field %q: %v", i, f.Name, err)
			}
		}
	}
	for i, fh := range m.FieldHandles {
		if int(fh.Owner) >= len(m.Structs) {
			return NewVMErrorf(StatusIndexOutOfBounds, "field handle %d: struct index %d out of range", i, fh.Owner)
		}
		if int(fh.Field) >= len(m.Structs[fh.Owner].Fields) {
			return NewVMErrorf(StatusIndexOutOfBounds, "field handle %d: field %d out of range for struct %d", i, fh.Field, fh.Owner)
		}
	}
	for i, h := range m.FunctionHandles {
		if int(h.Parameters) >= len(m.Signatures) {
			return NewVMErrorf(StatusIndexOutOfBounds, "function handle %d: parameter signature %d out of range", i, h.Parameters)
		}
		if int(h.Returns) >= len(m.Signatures) {
			return NewVMErrorf(StatusIndexOutOfBounds, "function handle %d: return signature %d out of range", i, h.Returns)
		}
	}
	for i, ft := range m.FunctionTypes {
		if int(ft.Parameters) >= len(m.Signatures) {
			return NewVMErrorf(StatusIndexOutOfBounds, "function type %d: parameter signature %d out of range", i, ft.Parameters)
		}
		if int(ft.Returns) >= len(m.Signatures) {
			return NewVMErrorf(StatusIndexOutOfBounds, "function type %d: return signature %d out of range", i, ft.Returns)
		}
	}
	seenHandles := make(map[FunctionHandleIndex]bool, len(m.Functions))
	for i, def := range m.Functions {
		if err := m.validateFunction(i, def, seenHandles); err != nil {
			return err
		}
	}
	m.buildDefIndex()
	return nil
}

func (m *CompiledModule) validateFunction(idx int, def FunctionDef, seenHandles map[FunctionHandleIndex]bool) error {
	if int(def.Handle) >= len(m.FunctionHandles) {
		return NewVMErrorf(StatusIndexOutOfBounds, "handle index %d out of range", def.Handle).AtFunction(idx)
	}
	if seenHandles[def.Handle] {
		return NewVMErrorf(StatusDuplicateElement, "second definition for function handle %d", def.Handle).AtFunction(idx)
	}
	seenHandles[def.Handle] = true
	if int(def.Locals) >= len(m.Signatures) {
		return NewVMErrorf(StatusIndexOutOfBounds, "locals signature %d out of range", def.Locals).AtFunction(idx)
	}
	seenAcquires := make(map[StructDefIndex]bool, len(def.AcquiresGlobals))
	for _, s := range def.AcquiresGlobals {
		if int(s) >= len(m.Structs) {
			return NewVMErrorf(StatusIndexOutOfBounds, "acquires struct %d out of range", s).AtFunction(idx)
		}
		if seenAcquires[s] {
			return NewVMErrorf(StatusDuplicateElement, "struct %d acquired twice", s).AtFunction(idx)
		}
		seenAcquires[s] = true
	}
	if def.Native {
		if len(def.Code) != 0 {
			return NewVMErrorf(StatusIndexOutOfBounds, "native function must not carry code").AtFunction(idx)
		}
		return nil
	}
	if len(def.Code) > maxCodeLength {
		return NewVMErrorf(StatusIndexOutOfBounds, "code unit has %d instructions, offsets address at most %d", len(def.Code), maxCodeLength).AtFunction(idx)
	}
	handle := m.FunctionHandles[def.Handle]
	frame := len(m.Signatures[handle.Parameters]) + len(m.Signatures[def.Locals])
	if frame > MaxLocalSlots {
		return NewVMErrorf(StatusTooManyLocals, "%d locals exceed the %d addressable slots", frame, MaxLocalSlots).AtFunction(idx)
	}
	for off, instr := range def.Code {
		if err := m.validateInstruction(instr, frame, len(def.Code)); err != nil {
			return err.AtCodeOffset(idx, off)
		}
	}
	return nil
}

//gocyclo:ignore
func (m *CompiledModule) validateInstruction(instr Instruction, frame, codeLen int) *VMError {
	if !instr.Op.IsKnown() {
		return NewVMErrorf(StatusIndexOutOfBounds, "unknown opcode 0x%02X", uint8(instr.Op))
	}
	switch instr.Op.OperandKind() {
	case OperandLocal:
		if int(instr.Local) >= frame {
			return NewVMErrorf(StatusIndexOutOfBounds, "local %d out of range (frame has %d)", instr.Local, frame)
		}
	case OperandField:
		if int(instr.Field) >= len(m.FieldHandles) {
			return NewVMErrorf(StatusIndexOutOfBounds, "field handle %d out of range", instr.Field)
		}
	case OperandStruct:
		if int(instr.Struct) >= len(m.Structs) {
			return NewVMErrorf(StatusIndexOutOfBounds, "struct %d out of range", instr.Struct)
		}
	case OperandFunction:
		if int(instr.Func) >= len(m.FunctionHandles) {
			return NewVMErrorf(StatusIndexOutOfBounds, "function handle %d out of range", instr.Func)
		}
	case OperandFunctionType:
		if int(instr.Type) >= len(m.FunctionTypes) {
			return NewVMErrorf(StatusIndexOutOfBounds, "function type %d out of range", instr.Type)
		}
	case OperandConstant:
		if int(instr.Const) >= len(m.Constants) {
			return NewVMErrorf(StatusIndexOutOfBounds, "constant %d out of range", instr.Const)
		}
	case OperandOffset:
		if int(instr.Target) >= codeLen {
			return NewVMErrorf(StatusIndexOutOfBounds, "branch target %d out of range (code has %d)", instr.Target, codeLen)
		}
	case OperandCount:
		if instr.Num > maxVectorOperand {
			return NewVMErrorf(StatusIndexOutOfBounds, "vector operand count %d too large", instr.Num)
		}
	}
	return nil
}
