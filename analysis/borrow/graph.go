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

// Package borrow implements the borrow graph at the core of the reference
// safety analysis. Nodes are abstract references, edges record that the child
// borrows from the parent. An edge carries a strength flag and a path of
// labels: a strong edge borrows exactly the value at its path, a weak edge
// borrows the value at its path or anything reachable underneath it.
//
// The graph is generic in the label type and knows nothing about locals,
// globals or fields. Callers enforce the preconditions of the mutating
// operations, which report violations by returning false instead of failing.
package borrow

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// RefID names an abstract reference. IDs are dense small integers managed by
// the caller.
type RefID int

// Edge is one borrow relationship. An empty path is a full borrow of the
// parent value. Paths are immutable once an edge is created.
type Edge[Lbl comparable] struct {
	Strong bool
	Path   []Lbl
}

type node[Lbl comparable] struct {
	mutable     bool
	borrowedBy  map[RefID][]Edge[Lbl] // sorted edge sets, keyed by borrower
	borrowsFrom map[RefID]bool
}

func newNode[Lbl comparable](mutable bool) *node[Lbl] {
	return &node[Lbl]{
		mutable:     mutable,
		borrowedBy:  make(map[RefID][]Edge[Lbl]),
		borrowsFrom: make(map[RefID]bool),
	}
}

// Graph is the borrow graph. The comparator passed to New fixes a total order
// on labels so that edge sets stay sorted and deduplicated.
type Graph[Lbl comparable] struct {
	cmp   func(a, b Lbl) int
	nodes map[RefID]*node[Lbl]
}

// New creates an empty graph ordering labels with cmp.
func New[Lbl comparable](cmp func(a, b Lbl) int) *Graph[Lbl] {
	return &Graph[Lbl]{cmp: cmp, nodes: make(map[RefID]*node[Lbl])}
}

// NewRef registers a fresh reference. It reports false if id is already live.
func (g *Graph[Lbl]) NewRef(id RefID, mutable bool) bool {
	if _, ok := g.nodes[id]; ok {
		return false
	}
	g.nodes[id] = newNode[Lbl](mutable)
	return true
}

// Contains reports whether id is live.
func (g *Graph[Lbl]) Contains(id RefID) bool {
	_, ok := g.nodes[id]
	return ok
}

// IsMutable reports whether id is a mutable reference.
func (g *Graph[Lbl]) IsMutable(id RefID) bool {
	n, ok := g.nodes[id]
	return ok && n.mutable
}

// Refs returns the live reference ids in ascending order.
func (g *Graph[Lbl]) Refs() []RefID {
	ids := maps.Keys(g.nodes)
	slices.Sort(ids)
	return ids
}

// NumRefs returns the number of live references.
func (g *Graph[Lbl]) NumRefs() int { return len(g.nodes) }

// GraphSize returns the total number of edges, the size charged by metering.
func (g *Graph[Lbl]) GraphSize() int {
	size := 0
	for _, n := range g.nodes {
		for _, edges := range n.borrowedBy {
			size += len(edges)
		}
	}
	return size
}

// AddStrongBorrow records that child borrows the whole value of parent.
func (g *Graph[Lbl]) AddStrongBorrow(parent, child RefID) bool {
	return g.addEdge(parent, child, Edge[Lbl]{Strong: true})
}

// AddWeakBorrow records that child borrows the value of parent or anything
// reachable from it.
func (g *Graph[Lbl]) AddWeakBorrow(parent, child RefID) bool {
	return g.addEdge(parent, child, Edge[Lbl]{})
}

// AddStrongFieldBorrow records that child borrows exactly the lbl extension
// of parent.
func (g *Graph[Lbl]) AddStrongFieldBorrow(parent RefID, lbl Lbl, child RefID) bool {
	return g.addEdge(parent, child, Edge[Lbl]{Strong: true, Path: []Lbl{lbl}})
}

// AddWeakFieldBorrow records that child borrows the lbl extension of parent
// or anything reachable underneath it.
func (g *Graph[Lbl]) AddWeakFieldBorrow(parent RefID, lbl Lbl, child RefID) bool {
	return g.addEdge(parent, child, Edge[Lbl]{Path: []Lbl{lbl}})
}

func (g *Graph[Lbl]) addEdge(parent, child RefID, e Edge[Lbl]) bool {
	pn, ok := g.nodes[parent]
	if !ok {
		return false
	}
	cn, ok := g.nodes[child]
	if !ok {
		return false
	}
	pn.borrowedBy[child] = g.insertEdge(pn.borrowedBy[child], e)
	cn.borrowsFrom[parent] = true
	return true
}

// Release removes id and splices its incoming and outgoing edges together so
// that every borrower of id keeps borrowing from what id borrowed from. It
// reports false if id is not live. Releasing the same id twice is a logic
// error in the caller.
func (g *Graph[Lbl]) Release(id RefID) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}

	parents := maps.Keys(n.borrowsFrom)
	slices.Sort(parents)
	children := maps.Keys(n.borrowedBy)
	slices.Sort(children)

	for _, parent := range parents {
		pn := g.nodes[parent]
		parentEdges := pn.borrowedBy[id]
		delete(pn.borrowedBy, id)
		for _, pe := range parentEdges {
			for _, child := range children {
				for _, ce := range n.borrowedBy[child] {
					g.addEdge(parent, child, splice(pe, ce))
				}
			}
		}
	}
	for _, child := range children {
		delete(g.nodes[child].borrowsFrom, id)
	}
	delete(g.nodes, id)
	return true
}

// splice combines the edge parent->id with the edge id->child into the edge
// parent->child that survives releasing id. A strong parent edge pins down
// where id lives in parent, so the child path extends it and the child edge
// keeps its strength. A weak parent edge only bounds the region, so the
// result stays weak at the parent path.
func splice[Lbl comparable](pe, ce Edge[Lbl]) Edge[Lbl] {
	if !pe.Strong {
		return Edge[Lbl]{Path: pe.Path}
	}
	path := make([]Lbl, 0, len(pe.Path)+len(ce.Path))
	path = append(path, pe.Path...)
	path = append(path, ce.Path...)
	return Edge[Lbl]{Strong: ce.Strong, Path: path}
}

// HasFullBorrows reports whether some reference borrows the whole value of id.
func (g *Graph[Lbl]) HasFullBorrows(id RefID) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	for _, edges := range n.borrowedBy {
		for _, e := range edges {
			if len(e.Path) == 0 {
				return true
			}
		}
	}
	return false
}

// HasConsistentBorrows reports whether some borrow of id could overlap the
// extension named by lbl. A nil lbl matches every borrow. A full borrow
// matches every filter.
func (g *Graph[Lbl]) HasConsistentBorrows(id RefID, lbl *Lbl) bool {
	return g.hasBorrows(id, lbl, false)
}

// HasConsistentMutableBorrows is HasConsistentBorrows restricted to borrows
// held by mutable references.
func (g *Graph[Lbl]) HasConsistentMutableBorrows(id RefID, lbl *Lbl) bool {
	return g.hasBorrows(id, lbl, true)
}

func (g *Graph[Lbl]) hasBorrows(id RefID, lbl *Lbl, mutableOnly bool) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	for borrower, edges := range n.borrowedBy {
		if mutableOnly && !g.IsMutable(borrower) {
			continue
		}
		for _, e := range edges {
			if len(e.Path) == 0 || lbl == nil || g.cmp(e.Path[0], *lbl) == 0 {
				return true
			}
		}
	}
	return false
}

// IsWritable reports whether id may be written through, which requires a
// mutable reference with no live borrows at all.
func (g *Graph[Lbl]) IsWritable(id RefID) bool {
	return g.IsMutable(id) && !g.HasConsistentBorrows(id, nil)
}

// IsFreezable reports whether no mutable reference borrows id consistently
// with the lbl filter.
func (g *Graph[Lbl]) IsFreezable(id RefID, lbl *Lbl) bool {
	return !g.HasConsistentMutableBorrows(id, lbl)
}

// IsReadable reports whether id may be read through at the lbl filter.
// Immutable references are always readable.
func (g *Graph[Lbl]) IsReadable(id RefID, lbl *Lbl) bool {
	return !g.IsMutable(id) || g.IsFreezable(id, lbl)
}

// Clone returns a deep copy. Edge paths are shared, they are immutable.
func (g *Graph[Lbl]) Clone() *Graph[Lbl] {
	clone := &Graph[Lbl]{cmp: g.cmp, nodes: make(map[RefID]*node[Lbl], len(g.nodes))}
	for id, n := range g.nodes {
		cn := newNode[Lbl](n.mutable)
		for child, edges := range n.borrowedBy {
			cn.borrowedBy[child] = slices.Clone(edges)
		}
		for parent := range n.borrowsFrom {
			cn.borrowsFrom[parent] = true
		}
		clone.nodes[id] = cn
	}
	return clone
}

// Join returns the union of both graphs. For canonical states the node sets
// coincide, nodes live in only one side are carried over unchanged.
func (g *Graph[Lbl]) Join(other *Graph[Lbl]) *Graph[Lbl] {
	joined := g.Clone()
	for _, id := range other.Refs() {
		n := other.nodes[id]
		jn, ok := joined.nodes[id]
		if !ok {
			jn = newNode[Lbl](n.mutable)
			joined.nodes[id] = jn
		}
		children := maps.Keys(n.borrowedBy)
		slices.Sort(children)
		for _, child := range children {
			if _, ok := joined.nodes[child]; !ok {
				joined.nodes[child] = newNode[Lbl](other.nodes[child].mutable)
			}
			for _, e := range n.borrowedBy[child] {
				jn.borrowedBy[child] = joined.insertEdge(jn.borrowedBy[child], e)
			}
			joined.nodes[child].borrowsFrom[id] = true
		}
	}
	return joined
}

// Leq reports whether every edge of g is present in other. It is the partial
// order matching Join, used to detect the dataflow fixed point.
func (g *Graph[Lbl]) Leq(other *Graph[Lbl]) bool {
	for id, n := range g.nodes {
		on, ok := other.nodes[id]
		if !ok {
			return false
		}
		for child, edges := range n.borrowedBy {
			otherEdges := on.borrowedBy[child]
			for _, e := range edges {
				if _, found := slices.BinarySearchFunc(otherEdges, e, g.compareEdges); !found {
					return false
				}
			}
		}
	}
	return true
}

// RemapRefs rebuilds the graph with every id replaced through idMap. Ids
// missing from the map keep their value. The map must be injective on the
// live ids.
func (g *Graph[Lbl]) RemapRefs(idMap map[RefID]RefID) {
	remap := func(id RefID) RefID {
		if to, ok := idMap[id]; ok {
			return to
		}
		return id
	}
	fresh := make(map[RefID]*node[Lbl], len(g.nodes))
	ensure := func(id RefID) *node[Lbl] {
		n, ok := fresh[id]
		if !ok {
			n = newNode[Lbl](false)
			fresh[id] = n
		}
		return n
	}
	for id, n := range g.nodes {
		fn := ensure(remap(id))
		fn.mutable = fn.mutable || n.mutable
		for child, edges := range n.borrowedBy {
			nchild := remap(child)
			for _, e := range edges {
				fn.borrowedBy[nchild] = g.insertEdge(fn.borrowedBy[nchild], e)
			}
		}
		for parent := range n.borrowsFrom {
			fn.borrowsFrom[remap(parent)] = true
		}
	}
	g.nodes = fresh
}

func (g *Graph[Lbl]) insertEdge(set []Edge[Lbl], e Edge[Lbl]) []Edge[Lbl] {
	i, found := slices.BinarySearchFunc(set, e, g.compareEdges)
	if found {
		return set
	}
	return slices.Insert(set, i, e)
}

func (g *Graph[Lbl]) compareEdges(a, b Edge[Lbl]) int {
	if a.Strong != b.Strong {
		if !a.Strong {
			return -1
		}
		return 1
	}
	for i := 0; i < len(a.Path) && i < len(b.Path); i++ {
		if c := g.cmp(a.Path[i], b.Path[i]); c != 0 {
			return c
		}
	}
	return len(a.Path) - len(b.Path)
}

// String renders the edges in a stable order, for trace logging.
func (g *Graph[Lbl]) String() string {
	var sb strings.Builder
	for _, id := range g.Refs() {
		n := g.nodes[id]
		children := maps.Keys(n.borrowedBy)
		slices.Sort(children)
		for _, child := range children {
			for _, e := range n.borrowedBy[child] {
				kind := "weak"
				if e.Strong {
					kind = "strong"
				}
				fmt.Fprintf(&sb, "%d -%s%v-> %d\n", id, kind, e.Path, child)
			}
		}
	}
	return sb.String()
}
