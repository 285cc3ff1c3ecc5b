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

// FunctionView binds one function definition to its module tables and caches
// what the verifier passes ask for repeatedly. Views are read-only and safe
// for concurrent use.
type FunctionView struct {
	module  *CompiledModule
	index   FunctionDefIndex
	def     *FunctionDef
	handle  *FunctionHandle
	params  Signature
	returns Signature
	locals  Signature
	cfg     *CFG
}

// NewFunctionView builds the view of the function definition at idx. The
// module must have passed Validate.
func NewFunctionView(m *CompiledModule, idx FunctionDefIndex) (*FunctionView, error) {
	if int(idx) >= len(m.Functions) {
		return nil, NewVMErrorf(StatusIndexOutOfBounds, "function definition %d out of range", idx)
	}
	def := &m.Functions[idx]
	if int(def.Handle) >= len(m.FunctionHandles) {
		return nil, NewVMErrorf(StatusIndexOutOfBounds, "handle index %d out of range", def.Handle).AtFunction(int(idx))
	}
	handle := &m.FunctionHandles[def.Handle]
	params := m.Signatures[handle.Parameters]
	declared := m.Signatures[def.Locals]

	locals := make(Signature, 0, len(params)+len(declared))
	locals = append(locals, params...)
	locals = append(locals, declared...)

	return &FunctionView{
		module:  m,
		index:   idx,
		def:     def,
		handle:  handle,
		params:  params,
		returns: m.Signatures[handle.Returns],
		locals:  locals,
		cfg:     BuildCFG(def.Code),
	}, nil
}

// Module returns the owning module.
func (v *FunctionView) Module() *CompiledModule { return v.module }

// Index returns the function definition index.
func (v *FunctionView) Index() FunctionDefIndex { return v.index }

// Name returns the function name from its handle.
func (v *FunctionView) Name() string { return v.handle.Name }

// Parameters returns the parameter types.
func (v *FunctionView) Parameters() Signature { return v.params }

// Returns returns the return types.
func (v *FunctionView) Returns() Signature { return v.returns }

// Locals returns the full frame, parameters first, then declared locals.
func (v *FunctionView) Locals() Signature { return v.locals }

// Acquires returns the struct definitions the function acquires from global
// storage.
func (v *FunctionView) Acquires() []StructDefIndex { return v.def.AcquiresGlobals }

// IsNative reports whether the function has no code.
func (v *FunctionView) IsNative() bool { return v.def.Native }

// Code returns the instruction sequence.
func (v *FunctionView) Code() []Instruction { return v.def.Code }

// CFG returns the control-flow graph of the code.
func (v *FunctionView) CFG() *CFG { return v.cfg }
