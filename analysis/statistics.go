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
	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
	"github.com/aptos-labs/aptos-core-sub029/internal/funcutil"
)

// Result carries general statistics about the code of a module.
type Result struct {
	NumberOfFunctions       uint
	NumberOfNativeFunctions uint
	NumberOfBlocks          uint
	NumberOfInstructions    uint
}

// ModuleStatistics returns a Result with general statistics about the
// functions of mod.
func ModuleStatistics(mod *bytecode.CompiledModule) Result {
	result := Result{}
	for i := range mod.Functions {
		result.NumberOfFunctions++
		fn := &mod.Functions[i]
		if fn.Native {
			result.NumberOfNativeFunctions++
			continue
		}
		result.NumberOfBlocks += uint(bytecode.BuildCFG(fn.Code).NumBlocks())
		result.NumberOfInstructions += uint(len(fn.Code))
	}
	return result
}

// OpcodeHistogram counts how often each opcode occurs across all functions
// of mod.
func OpcodeHistogram(mod *bytecode.CompiledModule) map[bytecode.Opcode]uint {
	total := map[bytecode.Opcode]uint{}
	for i := range mod.Functions {
		counts := map[bytecode.Opcode]uint{}
		for _, instr := range mod.Functions[i].Code {
			counts[instr.Op]++
		}
		funcutil.Merge(total, counts, func(x uint, y uint) uint { return x + y })
	}
	return total
}

// AcquiredResources returns the struct definitions any function of mod
// acquires from global storage, in ascending index order.
func AcquiredResources(mod *bytecode.CompiledModule) []bytecode.StructDefIndex {
	acquired := map[bytecode.StructDefIndex]bool{}
	for i := range mod.Functions {
		set := map[bytecode.StructDefIndex]bool{}
		for _, idx := range mod.Functions[i].AcquiresGlobals {
			set[idx] = true
		}
		acquired = funcutil.Union(acquired, set)
	}
	return funcutil.SetToOrderedSlice(acquired)
}
