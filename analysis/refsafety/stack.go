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

// abstractStack is the verifier's operand stack. Stack balance is the stack
// usage verifier's job, so underflow here is an internal inconsistency, not
// a user error.
type abstractStack struct {
	values []AbstractValue
}

func (st *abstractStack) push(v AbstractValue) {
	st.values = append(st.values, v)
}

func (st *abstractStack) pushN(v AbstractValue, n int) {
	for i := 0; i < n; i++ {
		st.push(v)
	}
}

func (st *abstractStack) pop() (AbstractValue, bool) {
	if len(st.values) == 0 {
		return NonReference, false
	}
	v := st.values[len(st.values)-1]
	st.values = st.values[:len(st.values)-1]
	return v, true
}

// popN removes the top n values. The returned slice aliases the stack's
// storage and is only valid until the next push.
func (st *abstractStack) popN(n int) ([]AbstractValue, bool) {
	if len(st.values) < n {
		return nil, false
	}
	popped := st.values[len(st.values)-n:]
	st.values = st.values[:len(st.values)-n]
	return popped, true
}

func (st *abstractStack) len() int {
	return len(st.values)
}
