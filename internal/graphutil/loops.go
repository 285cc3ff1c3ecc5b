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

import (
	"sort"

	"github.com/yourbasic/graph"
)

// LoopNestingDepth returns the maximum loop nesting depth of the flow graph. Every strongly
// connected component that contains a cycle counts one level; removing the lowest-numbered node
// of the component and recursing on the rest counts the levels nested inside it. A graph with no
// cycles has depth 0.
func LoopNestingDepth(fg FlowGraph) int {
	depth := 0
	for _, component := range loopComponents(fg) {
		d := 1 + LoopNestingDepth(Subgraph(fg, component[1:]))
		if d > depth {
			depth = d
		}
	}
	return depth
}

// loopComponents returns the strongly connected components of fg that contain a cycle, each
// sorted by node id. A single node forms a component only when it carries a self edge.
func loopComponents(fg FlowGraph) [][]int64 {
	var comps [][]int64
	for _, component := range graph.StrongComponents(fg) {
		if len(component) < 2 && !fg.Edges[int64(component[0])][int64(component[0])] {
			continue
		}
		ids := make([]int64, len(component))
		for i, v := range component {
			ids[i] = int64(v)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		comps = append(comps, ids)
	}
	return comps
}
