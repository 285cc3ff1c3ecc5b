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

// Package meter bounds the work the verifier passes may spend. Passes charge
// abstract units as they go and receive a PROGRAM_TOO_COMPLEX error once a
// scope's budget is exhausted, which keeps verification time proportional to
// a configured bound rather than to adversarial input.
package meter

import (
	"math"

	"github.com/aptos-labs/aptos-core-sub029/analysis/bytecode"
)

// Scope is the granularity at which units accumulate.
type Scope int

const (
	ScopeFunction Scope = iota
	ScopeModule
	ScopePackage
	numScopes
)

func (s Scope) String() string {
	switch s {
	case ScopeFunction:
		return "function"
	case ScopeModule:
		return "module"
	case ScopePackage:
		return "package"
	default:
		return "scope"
	}
}

// Meter is the metering capability handed to the verifier passes.
type Meter interface {
	// EnterScope resets the given scope to zero units under a new name.
	EnterScope(name string, scope Scope)
	// Add charges units to the scope.
	Add(scope Scope, units uint64) error
	// AddItems charges unitsPerItem for each of items.
	AddItems(scope Scope, unitsPerItem uint64, items int) error
	// AddItemsWithGrowth charges for each item in turn, multiplying the per
	// item cost by growthFactor after every item.
	AddItemsWithGrowth(scope Scope, unitsPerItem uint64, items int, growthFactor float64) error
	// Transfer charges factor times the units accumulated in from to to.
	Transfer(from, to Scope, factor float64) error
	// Units returns the units accumulated in the scope so far.
	Units(scope Scope) uint64
}

// Limits are the per-scope budgets of a BoundMeter. A zero limit means the
// scope is unlimited.
type Limits struct {
	FunctionUnits uint64
	ModuleUnits   uint64
	PackageUnits  uint64
}

func (l Limits) limit(scope Scope) uint64 {
	switch scope {
	case ScopeFunction:
		return l.FunctionUnits
	case ScopeModule:
		return l.ModuleUnits
	case ScopePackage:
		return l.PackageUnits
	default:
		return 0
	}
}

type bound struct {
	name  string
	units uint64
	max   uint64
}

// BoundMeter enforces the configured budgets.
type BoundMeter struct {
	limits Limits
	bounds [numScopes]bound
}

var _ Meter = (*BoundMeter)(nil)

// NewBoundMeter creates a meter with fresh counters for every scope.
func NewBoundMeter(limits Limits) *BoundMeter {
	m := &BoundMeter{limits: limits}
	for s := Scope(0); s < numScopes; s++ {
		m.bounds[s] = bound{name: "<unknown>", max: limits.limit(s)}
	}
	return m
}

func (m *BoundMeter) EnterScope(name string, scope Scope) {
	m.bounds[scope] = bound{name: name, max: m.limits.limit(scope)}
}

func (m *BoundMeter) Add(scope Scope, units uint64) error {
	b := &m.bounds[scope]
	b.units = saturatingAdd(b.units, units)
	if b.max != 0 && b.units > b.max {
		return bytecode.NewVMErrorf(bytecode.StatusProgramTooComplex,
			"program too complex (in %s %q, %d units)", scope, b.name, b.units)
	}
	return nil
}

func (m *BoundMeter) AddItems(scope Scope, unitsPerItem uint64, items int) error {
	if items == 0 || unitsPerItem == 0 {
		return nil
	}
	return m.Add(scope, saturatingMul(unitsPerItem, uint64(items)))
}

func (m *BoundMeter) AddItemsWithGrowth(scope Scope, unitsPerItem uint64, items int, growthFactor float64) error {
	for i := 0; i < items; i++ {
		if err := m.Add(scope, unitsPerItem); err != nil {
			return err
		}
		unitsPerItem = scaleUnits(unitsPerItem, growthFactor)
	}
	return nil
}

func (m *BoundMeter) Transfer(from, to Scope, factor float64) error {
	return m.Add(to, scaleUnits(m.bounds[from].units, factor))
}

func (m *BoundMeter) Units(scope Scope) uint64 {
	return m.bounds[scope].units
}

// UnmeteredMeter performs no accounting and never fails. It is the meter of
// choice for tests and for callers that opt out of complexity bounds.
type UnmeteredMeter struct{}

var _ Meter = UnmeteredMeter{}

func (UnmeteredMeter) EnterScope(string, Scope)  {}
func (UnmeteredMeter) Add(Scope, uint64) error   { return nil }
func (UnmeteredMeter) AddItems(Scope, uint64, int) error {
	return nil
}
func (UnmeteredMeter) AddItemsWithGrowth(Scope, uint64, int, float64) error {
	return nil
}
func (UnmeteredMeter) Transfer(Scope, Scope, float64) error { return nil }
func (UnmeteredMeter) Units(Scope) uint64                   { return 0 }

func saturatingAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return math.MaxUint64
}

func saturatingMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if product := a * b; product/a == b {
		return product
	}
	return math.MaxUint64
}

func scaleUnits(units uint64, factor float64) uint64 {
	scaled := float64(units) * factor
	if scaled >= math.MaxUint64 {
		return math.MaxUint64
	}
	if scaled < 0 {
		return 0
	}
	return uint64(scaled)
}
