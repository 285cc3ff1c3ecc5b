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
	"fmt"

	"gonum.org/v1/gonum/graph"
)

// FlowGraph is an abstraction over a function's basic-block graph to work with existing graph
// libraries. It implements the methods to satisfy graph.Iterator and Gonum's graph.Directed
type FlowGraph struct {
	// The order of the graph
	order int

	// IDMap maps from node IDs to FlowNodes
	IDMap map[int64]FlowNode

	// Keys are all the node IDs
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge between IDMap[x] and IDMap[y]
	Edges map[int64]map[int64]bool
}

// NewFlowIterator returns a new flow graph iterator over the blocks listed in entries. Node ids
// are positions in entries, so they are dense however sparse the block offsets are; successors
// lists the edges out of a block by entry offset. Edges to offsets not in entries are dropped.
func NewFlowIterator(entries []int64, successors func(int64) []int64) FlowGraph {
	n := len(entries)
	ids := make(map[int64]int64, n)
	idmap := make(map[int64]FlowNode, n)
	edges := make(map[int64]map[int64]bool, n)
	keys := make([]int64, n)

	for i, entry := range entries {
		ids[entry] = int64(i)
		idmap[int64(i)] = FlowNode{id: int64(i), Entry: entry}
		keys[i] = int64(i)
	}

	for _, entry := range entries {
		id := ids[entry]
		edges[id] = map[int64]bool{}
		for _, succ := range successors(entry) {
			if to, ok := ids[succ]; ok {
				edges[id][to] = true
			}
		}
	}

	return FlowGraph{
		order: n,
		IDMap: idmap,
		Edges: edges,
		Keys:  keys,
	}
}

// NewNamedFlowIterator returns a flow graph whose nodes render under the
// given names instead of their entry offsets.
func NewNamedFlowIterator(entries []int64, successors func(int64) []int64, name func(int64) string) FlowGraph {
	g := NewFlowIterator(entries, successors)
	for id, node := range g.IDMap {
		node.name = name(node.Entry)
		g.IDMap[id] = node
	}
	return g
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order and IDMap are the same as in origin, meaning that node indices will stay consistent
// across subgraphs.
func Subgraph(original FlowGraph, include []int64) FlowGraph {
	idmap := make(map[int64]FlowNode, len(include))
	edges := make(map[int64]map[int64]bool, len(include))
	keys := make([]int64, len(include))

	for j, i := range include {
		keys[j] = i
		idmap[i] = original.IDMap[i]
	}

	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if _, ok := idmap[e]; ok {
				edges[i][e] = true
			}
		}
	}

	return FlowGraph{
		order: original.Order(),
		IDMap: original.IDMap,
		Edges: edges,
		Keys:  keys,
	}
}

// Order implements the order of the graph.Iterator interface for the FlowGraph
func (c FlowGraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the FlowGraph
func (c FlowGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.Edges[int64(v)]; !ok {
		return false
	}
	for w := range c.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

var _ graph.Directed = FlowGraph{}

// Node implements the Graph interface
func (c FlowGraph) Node(id int64) graph.Node {
	return c.IDMap[id]
}

// Nodes returns the set of nodes in the graph
func (c FlowGraph) Nodes() graph.Nodes {
	keys := make([]int64, 0, len(c.Edges))
	for k := range c.Edges {
		keys = append(keys, k)
	}
	return &NodeSet{
		nodes: c.IDMap,
		ids:   keys,
		cur:   -1,
	}
}

// From returns the set of nodes reachable from the id
func (c FlowGraph) From(id int64) graph.Nodes {
	var keys []int64

	for out := range c.Edges[id] {
		keys = append(keys, out)
	}
	return &NodeSet{
		nodes: c.IDMap,
		ids:   keys,
		cur:   -1,
	}
}

// To returns the set of nodes with an edge into the id
func (c FlowGraph) To(id int64) graph.Nodes {
	var keys []int64

	for from, outs := range c.Edges {
		if outs[id] {
			keys = append(keys, from)
		}
	}
	return &NodeSet{
		nodes: c.IDMap,
		ids:   keys,
		cur:   -1,
	}
}

// HasEdgeFromTo returns a boolean indicating whether a directed edge exists from uid to vid
func (c FlowGraph) HasEdgeFromTo(uid, vid int64) bool {
	return c.Edges[uid][vid]
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c FlowGraph) HasEdgeBetween(xid, yid int64) bool {
	xe := c.Edges[xid]
	ye := c.Edges[yid]
	return xe[yid] || ye[xid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c FlowGraph) Edge(uid, vid int64) graph.Edge {
	ue := c.Edges[uid]
	if ue != nil {
		if ue[vid] {
			return FlowEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
		}
	}
	return nil
}

// *************** Nodes implementation **********************

// FlowNode is a basic block of the flow graph. Entry is the code offset of the first instruction
// of the block; it implements the graph.Node interface through the dense id.
type FlowNode struct {
	id    int64
	Entry int64
	name  string
}

// ID returns the id of the node
func (n FlowNode) ID() int64 {
	return n.id
}

func (n FlowNode) String() string {
	if n.name != "" {
		return n.name
	}
	return fmt.Sprintf("b%d", n.Entry)
}

// DOTID names the node in DOT renderings, by its block entry offset unless a
// name was attached.
func (n FlowNode) DOTID() string {
	return n.String()
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// nodes is the set of nodes in the iterator
	nodes map[int64]FlowNode

	// ids is the set of node ids in the iterator
	// invariant: every id is a key of nodes
	ids []int64

	// cur is the current index of the iterator. The current node is
	// nodes[ids[cur]]; the iterator starts before the first node.
	// invariant: -1 <= cur < len(nodes)
	cur int
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the length of the node set
func (ns *NodeSet) Len() int {
	return len(ns.ids)
}

// Reset resets the id of the current node in the set
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	return ns.nodes[ns.ids[ns.cur]]
}

// *************** Edge implementation **********************

// FlowEdge implements the graph.Edge interface
type FlowEdge struct {
	from FlowNode
	to   FlowNode
}

// From returns the origin of the edge
func (e FlowEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e FlowEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e FlowEdge) ReversedEdge() graph.Edge {
	return FlowEdge{from: e.to, to: e.from}
}
