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

package graphutil

// sccState carries the bookkeeping of Tarjan's algorithm for one run.
type sccState[T comparable] struct {
	successors func(T) []T
	index      map[T]int
	lowlink    map[T]int
	onStack    map[T]bool
	stack      []T
	next       int
	sccs       [][]T
}

// StronglyConnectedComponents partitions the directed graph spanned by nodes
// and successors into its strongly connected components, using Tarjan's
// algorithm over generic nodes. Components come back in reverse topological
// order: every component precedes the components that reach it, so bottom-up
// passes can consume the result as is. Order within a component is arbitrary.
func StronglyConnectedComponents[T comparable](nodes []T, successors func(T) []T) [][]T {
	s := &sccState[T]{
		successors: successors,
		index:      make(map[T]int, len(nodes)),
		lowlink:    make(map[T]int, len(nodes)),
		onStack:    make(map[T]bool, len(nodes)),
	}
	for _, v := range nodes {
		if _, seen := s.index[v]; !seen {
			s.visit(v)
		}
	}
	return s.sccs
}

func (s *sccState[T]) visit(v T) {
	s.index[v] = s.next
	s.lowlink[v] = s.next
	s.next++
	s.stack = append(s.stack, v)
	s.onStack[v] = true

	for _, w := range s.successors(v) {
		if _, seen := s.index[w]; !seen {
			s.visit(w)
			if s.lowlink[w] < s.lowlink[v] {
				s.lowlink[v] = s.lowlink[w]
			}
		} else if s.onStack[w] {
			if s.index[w] < s.lowlink[v] {
				s.lowlink[v] = s.index[w]
			}
		}
	}

	if s.lowlink[v] != s.index[v] {
		return
	}
	var scc []T
	for {
		w := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		s.onStack[w] = false
		scc = append(scc, w)
		if w == v {
			break
		}
	}
	s.sccs = append(s.sccs, scc)
}
