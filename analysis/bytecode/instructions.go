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

import "fmt"

// Opcode identifies a bytecode instruction. Opcodes are organized into ranges
// by category.
type Opcode uint8

const (
	// Stack and constants (0x00-0x0F).

	OpNop     Opcode = 0x00
	OpPop     Opcode = 0x01 // pop and drop the top value
	OpLdU64   Opcode = 0x02 // push an integer immediate
	OpLdTrue  Opcode = 0x03
	OpLdFalse Opcode = 0x04
	OpLdConst Opcode = 0x05 // push a value from the constant pool

	// Locals (0x10-0x1F).

	OpCopyLoc      Opcode = 0x10
	OpMoveLoc      Opcode = 0x11
	OpStLoc        Opcode = 0x12
	OpMutBorrowLoc Opcode = 0x13
	OpImmBorrowLoc Opcode = 0x14

	// References (0x20-0x2F).

	OpFreezeRef      Opcode = 0x20
	OpReadRef        Opcode = 0x21
	OpWriteRef       Opcode = 0x22
	OpMutBorrowField Opcode = 0x23
	OpImmBorrowField Opcode = 0x24

	// Global storage (0x30-0x3F).

	OpMutBorrowGlobal Opcode = 0x30
	OpImmBorrowGlobal Opcode = 0x31
	OpExists          Opcode = 0x32
	OpMoveFrom        Opcode = 0x33
	OpMoveTo          Opcode = 0x34

	// Structs (0x40-0x4F).

	OpPack   Opcode = 0x40
	OpUnpack Opcode = 0x41

	// Vectors (0x50-0x5F).

	OpVecPack      Opcode = 0x50
	OpVecLen       Opcode = 0x51
	OpVecImmBorrow Opcode = 0x52
	OpVecMutBorrow Opcode = 0x53
	OpVecPushBack  Opcode = 0x54
	OpVecPopBack   Opcode = 0x55
	OpVecUnpack    Opcode = 0x56
	OpVecSwap      Opcode = 0x57

	// Arithmetic (0x60-0x6F).

	OpAdd    Opcode = 0x60
	OpSub    Opcode = 0x61
	OpMul    Opcode = 0x62
	OpMod    Opcode = 0x63
	OpDiv    Opcode = 0x64
	OpBitOr  Opcode = 0x65
	OpBitAnd Opcode = 0x66
	OpXor    Opcode = 0x67
	OpShl    Opcode = 0x68
	OpShr    Opcode = 0x69

	// Logic and comparison (0x70-0x7F).

	OpOr  Opcode = 0x70
	OpAnd Opcode = 0x71
	OpNot Opcode = 0x72
	OpEq  Opcode = 0x73
	OpNeq Opcode = 0x74
	OpLt  Opcode = 0x75
	OpGt  Opcode = 0x76
	OpLe  Opcode = 0x77
	OpGe  Opcode = 0x78

	// Casts (0x80-0x8F).

	OpCastU8   Opcode = 0x80
	OpCastU16  Opcode = 0x81
	OpCastU32  Opcode = 0x82
	OpCastU64  Opcode = 0x83
	OpCastU128 Opcode = 0x84
	OpCastU256 Opcode = 0x85

	// Calls (0x90-0x9F).

	OpCall        Opcode = 0x90
	OpCallClosure Opcode = 0x91

	// Control flow (0xA0-0xAF).

	OpBranch  Opcode = 0xA0
	OpBrTrue  Opcode = 0xA1
	OpBrFalse Opcode = 0xA2
	OpRet     Opcode = 0xA3
	OpAbort   Opcode = 0xA4
)

// OperandKind tells which operand field of an Instruction an opcode consumes.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandLocal
	OperandField
	OperandStruct
	OperandFunction
	OperandFunctionType
	OperandConstant
	OperandOffset
	OperandU64
	OperandCount
)

// Instruction is one decoded bytecode instruction. Only the operand field
// named by the opcode's OperandKind is meaningful, the rest stay zero.
type Instruction struct {
	Op     Opcode              `cbor:"1,keyasint"`
	Local  LocalIndex          `cbor:"2,keyasint,omitempty"`
	Field  FieldHandleIndex    `cbor:"3,keyasint,omitempty"`
	Struct StructDefIndex      `cbor:"4,keyasint,omitempty"`
	Func   FunctionHandleIndex `cbor:"5,keyasint,omitempty"`
	Type   FunctionTypeIndex   `cbor:"6,keyasint,omitempty"`
	Const  ConstantIndex       `cbor:"7,keyasint,omitempty"`
	Target CodeOffset          `cbor:"8,keyasint,omitempty"`
	Num    uint64              `cbor:"9,keyasint,omitempty"`
}

type opcodeInfo struct {
	Name    string
	Operand OperandKind
}

var opcodeInfoTable = map[Opcode]opcodeInfo{
	OpNop:     {"nop", OperandNone},
	OpPop:     {"pop", OperandNone},
	OpLdU64:   {"ld_u64", OperandU64},
	OpLdTrue:  {"ld_true", OperandNone},
	OpLdFalse: {"ld_false", OperandNone},
	OpLdConst: {"ld_const", OperandConstant},

	OpCopyLoc:      {"copy_loc", OperandLocal},
	OpMoveLoc:      {"move_loc", OperandLocal},
	OpStLoc:        {"st_loc", OperandLocal},
	OpMutBorrowLoc: {"mut_borrow_loc", OperandLocal},
	OpImmBorrowLoc: {"imm_borrow_loc", OperandLocal},

	OpFreezeRef:      {"freeze_ref", OperandNone},
	OpReadRef:        {"read_ref", OperandNone},
	OpWriteRef:       {"write_ref", OperandNone},
	OpMutBorrowField: {"mut_borrow_field", OperandField},
	OpImmBorrowField: {"imm_borrow_field", OperandField},

	OpMutBorrowGlobal: {"mut_borrow_global", OperandStruct},
	OpImmBorrowGlobal: {"imm_borrow_global", OperandStruct},
	OpExists:          {"exists", OperandStruct},
	OpMoveFrom:        {"move_from", OperandStruct},
	OpMoveTo:          {"move_to", OperandStruct},

	OpPack:   {"pack", OperandStruct},
	OpUnpack: {"unpack", OperandStruct},

	OpVecPack:      {"vec_pack", OperandCount},
	OpVecLen:       {"vec_len", OperandNone},
	OpVecImmBorrow: {"vec_imm_borrow", OperandNone},
	OpVecMutBorrow: {"vec_mut_borrow", OperandNone},
	OpVecPushBack:  {"vec_push_back", OperandNone},
	OpVecPopBack:   {"vec_pop_back", OperandNone},
	OpVecUnpack:    {"vec_unpack", OperandCount},
	OpVecSwap:      {"vec_swap", OperandNone},

	OpAdd:    {"add", OperandNone},
	OpSub:    {"sub", OperandNone},
	OpMul:    {"mul", OperandNone},
	OpMod:    {"mod", OperandNone},
	OpDiv:    {"div", OperandNone},
	OpBitOr:  {"bit_or", OperandNone},
	OpBitAnd: {"bit_and", OperandNone},
	OpXor:    {"xor", OperandNone},
	OpShl:    {"shl", OperandNone},
	OpShr:    {"shr", OperandNone},

	OpOr:  {"or", OperandNone},
	OpAnd: {"and", OperandNone},
	OpNot: {"not", OperandNone},
	OpEq:  {"eq", OperandNone},
	OpNeq: {"neq", OperandNone},
	OpLt:  {"lt", OperandNone},
	OpGt:  {"gt", OperandNone},
	OpLe:  {"le", OperandNone},
	OpGe:  {"ge", OperandNone},

	OpCastU8:   {"cast_u8", OperandNone},
	OpCastU16:  {"cast_u16", OperandNone},
	OpCastU32:  {"cast_u32", OperandNone},
	OpCastU64:  {"cast_u64", OperandNone},
	OpCastU128: {"cast_u128", OperandNone},
	OpCastU256: {"cast_u256", OperandNone},

	OpCall:        {"call", OperandFunction},
	OpCallClosure: {"call_closure", OperandFunctionType},

	OpBranch:  {"branch", OperandOffset},
	OpBrTrue:  {"br_true", OperandOffset},
	OpBrFalse: {"br_false", OperandOffset},
	OpRet:     {"ret", OperandNone},
	OpAbort:   {"abort", OperandNone},
}

func (op Opcode) String() string {
	if info, ok := opcodeInfoTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("opcode(0x%02X)", uint8(op))
}

// OperandKind returns which operand the opcode consumes.
func (op Opcode) OperandKind() OperandKind {
	return opcodeInfoTable[op].Operand
}

// IsKnown reports whether the opcode is part of the instruction set.
func (op Opcode) IsKnown() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsConditionalBranch reports whether the opcode branches on a popped value.
func (op Opcode) IsConditionalBranch() bool {
	return op == OpBrTrue || op == OpBrFalse
}

// IsBranch reports whether the opcode carries a branch target.
func (op Opcode) IsBranch() bool {
	return op == OpBranch || op.IsConditionalBranch()
}

// IsTerminal reports whether the opcode ends execution of the function.
func (op Opcode) IsTerminal() bool {
	return op == OpRet || op == OpAbort
}

// EndsBlock reports whether the opcode ends a basic block.
func (op Opcode) EndsBlock() bool {
	return op.IsBranch() || op.IsTerminal()
}

func (i Instruction) String() string {
	info, ok := opcodeInfoTable[i.Op]
	if !ok {
		return i.Op.String()
	}
	switch info.Operand {
	case OperandLocal:
		return fmt.Sprintf("%s %d", info.Name, i.Local)
	case OperandField:
		return fmt.Sprintf("%s %d", info.Name, i.Field)
	case OperandStruct:
		return fmt.Sprintf("%s %d", info.Name, i.Struct)
	case OperandFunction:
		return fmt.Sprintf("%s %d", info.Name, i.Func)
	case OperandFunctionType:
		return fmt.Sprintf("%s %d", info.Name, i.Type)
	case OperandConstant:
		return fmt.Sprintf("%s %d", info.Name, i.Const)
	case OperandOffset:
		return fmt.Sprintf("%s %d", info.Name, i.Target)
	case OperandU64, OperandCount:
		return fmt.Sprintf("%s %d", info.Name, i.Num)
	default:
		return info.Name
	}
}
