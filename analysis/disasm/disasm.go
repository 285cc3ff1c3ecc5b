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

// Package disasm renders compiled modules as human-readable bytecode
// listings.
package disasm

import (
	"fmt"
	"strings"

	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
)

// Module returns the listing of every table and function of mod.
func Module(mod *bytecode.CompiledModule) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; === module %s ===\n", mod.Name))

	if len(mod.Structs) > 0 {
		sb.WriteString("; Structs:\n")
		for i, s := range mod.Structs {
			fields := make([]string, len(s.Fields))
			for j, f := range s.Fields {
				fields[j] = fmt.Sprintf("%s: %s", f.Name, f.Type)
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %s { %s }\n", i, s.Name, strings.Join(fields, ", ")))
		}
	}
	if len(mod.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, c := range mod.Constants {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s 0x%X\n", i, c.Type, c.Data))
		}
	}
	sb.WriteString("\n")

	for idx := range mod.Functions {
		view, err := bytecode.NewFunctionView(mod, bytecode.FunctionDefIndex(idx))
		if err != nil {
			return "", err
		}
		sb.WriteString(Function(view))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// Function returns the listing of one function: a comment header describing
// the frame, then one line per instruction with its offset.
func Function(view *bytecode.FunctionView) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; === %s ===\n", view.Name()))
	sb.WriteString(fmt.Sprintf("; Signature: (%s): (%s)\n",
		tokens(view.Parameters()), tokens(view.Returns())))
	if locals := view.Locals()[len(view.Parameters()):]; len(locals) > 0 {
		sb.WriteString(fmt.Sprintf("; Locals (%d): %s\n", len(locals), tokens(locals)))
	}
	if acquires := view.Acquires(); len(acquires) > 0 {
		sb.WriteString(fmt.Sprintf("; Acquires: %s\n", structNames(view.Module(), acquires)))
	}
	if view.IsNative() {
		sb.WriteString("; native\n")
		return sb.String()
	}

	sb.WriteString("; Code:\n")
	for offset := range view.Code() {
		sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, Instruction(view, bytecode.CodeOffset(offset))))
	}
	return sb.String()
}

// Instruction returns the listing line of the instruction at offset, without
// the offset column. Operands that point into a module table are annotated
// with the name of the entry they resolve to; out-of-range operands are left
// bare, so listings work for modules that were rejected by Validate.
func Instruction(view *bytecode.FunctionView, offset bytecode.CodeOffset) string {
	code := view.Code()
	if int(offset) >= len(code) {
		return "<end of code>"
	}
	instr := code[offset]
	mod := view.Module()

	switch instr.Op.OperandKind() {
	case bytecode.OperandStruct:
		if int(instr.Struct) < len(mod.Structs) {
			return fmt.Sprintf("%-24s ; %s", instr, mod.Structs[instr.Struct].Name)
		}
	case bytecode.OperandField:
		if name, ok := fieldName(mod, instr.Field); ok {
			return fmt.Sprintf("%-24s ; %s", instr, name)
		}
	case bytecode.OperandFunction:
		if int(instr.Func) < len(mod.FunctionHandles) {
			return fmt.Sprintf("%-24s ; %s", instr, mod.FunctionHandles[instr.Func].Name)
		}
	case bytecode.OperandConstant:
		if int(instr.Const) < len(mod.Constants) {
			return fmt.Sprintf("%-24s ; %s", instr, mod.Constants[instr.Const].Type)
		}
	case bytecode.OperandOffset:
		return fmt.Sprintf("%s (-> %04X)", instr, int(instr.Target))
	}
	return instr.String()
}

func tokens(sig bytecode.Signature) string {
	parts := make([]string, len(sig))
	for i, tok := range sig {
		parts[i] = tok.String()
	}
	return strings.Join(parts, ", ")
}

func structNames(mod *bytecode.CompiledModule, idxs []bytecode.StructDefIndex) string {
	parts := make([]string, len(idxs))
	for i, idx := range idxs {
		if int(idx) < len(mod.Structs) {
			parts[i] = mod.Structs[idx].Name
		} else {
			parts[i] = fmt.Sprintf("struct#%d", idx)
		}
	}
	return strings.Join(parts, ", ")
}

func fieldName(mod *bytecode.CompiledModule, idx bytecode.FieldHandleIndex) (string, bool) {
	if int(idx) >= len(mod.FieldHandles) {
		return "", false
	}
	fh := mod.FieldHandles[idx]
	if int(fh.Owner) >= len(mod.Structs) {
		return "", false
	}
	owner := mod.Structs[fh.Owner]
	if int(fh.Field) >= len(owner.Fields) {
		return "", false
	}
	return owner.Name + "." + owner.Fields[fh.Field].Name, true
}
