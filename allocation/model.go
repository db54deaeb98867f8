// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocation

import (
	"fmt"
	"sort"

	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/network"
)

// Model is the persistent per-subnetwork LP of §4.5: built once from the
// graph's static structure (which nodes/links exist, which priorities are
// configured), then refreshed every Δt_allocation by updating bounds,
// objective coefficients and constraint RHS in place rather than rebuilding
// — the same "allocate once, mutate in place" discipline a finite-element
// domain applies to its element/solver arrays across time steps.
type Model struct {
	Subnetwork int32
	Solver     Solver

	vars  map[string]VarRef
	meta  map[VarRef]varMeta
	order []string // insertion order, for deterministic iteration/writeback

	flowLink  map[int32]VarRef // link id -> flow[link]
	basinVars map[network.NodeId]basinVarSet

	priorities []int // ascending, deduplicated, across every demand in this subnetwork

	conByName map[string]int

	errorPairs []errorPair
}

type basinVarSet struct {
	storageStart, storageChange, level, lowStorageFactor VarRef
}

// errorPair is one demand's (allocated, error_first, error_second) variable
// triple at one priority, recorded at build time so the fairness
// constraints and the writeback/output code never need to parse variable
// keys back into their components.
type errorPair struct {
	node          network.NodeId
	priority      int
	side          string
	allocated     VarRef
	first, second VarRef
}

// recordErrorPair registers one demand-error variable triple for later use
// by buildErrorConstraints and the objective stack.
func (m *Model) recordErrorPair(node network.NodeId, priority int, side string, allocated, first, second VarRef) {
	m.errorPairs = append(m.errorPairs, errorPair{node: node, priority: priority, side: side, allocated: allocated, first: first, second: second})
}

// NewModel allocates an empty Model for one subnetwork.
func NewModel(subnet int32, solver Solver) *Model {
	return &Model{
		Subnetwork: subnet,
		Solver:     solver,
		vars:       make(map[string]VarRef),
		meta:       make(map[VarRef]varMeta),
		flowLink:   make(map[int32]VarRef),
		basinVars:  make(map[network.NodeId]basinVarSet),
		conByName:  make(map[string]int),
	}
}

// addVar registers a variable once, with the given bounds and bookkeeping.
func (m *Model) addVar(key string, lo, hi float64, kind Kind, priority int) VarRef {
	if v, ok := m.vars[key]; ok {
		return v
	}
	v := m.Solver.AddVar(key, lo, hi)
	m.vars[key] = v
	m.meta[v] = varMeta{Kind: kind, Priority: priority}
	m.order = append(m.order, key)
	return v
}

// Var looks up a previously registered variable by key.
func (m *Model) Var(key string) (VarRef, bool) {
	v, ok := m.vars[key]
	return v, ok
}

// addConstraint registers a named constraint row once; re-adding the same
// name is an error, since constraints (unlike bounds/RHS) are part of the
// model's static structure and should only be added during Build.
func (m *Model) addConstraint(name string, terms []Term, op RelOp, rhs float64) int {
	if _, ok := m.conByName[name]; ok {
		panic("allocation: duplicate constraint " + name)
	}
	idx := m.Solver.AddConstraint(name, terms, op, rhs)
	m.conByName[name] = idx
	return idx
}

// setRHS updates a previously-registered constraint's right-hand side.
func (m *Model) setRHS(name string, rhs float64) error {
	idx, ok := m.conByName[name]
	if !ok {
		return chk.Err("allocation: unknown constraint %q", name)
	}
	m.Solver.SetRHS(idx, rhs)
	return nil
}

// setCoef updates a previously-registered constraint's coefficient on v.
func (m *Model) setCoef(name string, v VarRef, coef float64) error {
	idx, ok := m.conByName[name]
	if !ok {
		return chk.Err("allocation: unknown constraint %q", name)
	}
	m.Solver.SetCoef(idx, v, coef)
	return nil
}

func flowKey(linkID int32) string { return fmt.Sprintf("flow[%d]", linkID) }
func basinKey(suffix string, basin network.NodeId) string {
	return fmt.Sprintf("%s[Basin:%d]", suffix, basin.Ordinal)
}
func priorityKey(prefix string, node network.NodeId, priority int) string {
	return fmt.Sprintf("%s[%v:%d,%d]", prefix, node.Type, node.Ordinal, priority)
}

// registerPriority records a priority value seen while building demand
// variables, keeping Model.priorities sorted ascending and deduplicated for
// the objective stack's "for every priority in ascending order" iteration.
func (m *Model) registerPriority(p int) {
	i := sort.SearchInts(m.priorities, p)
	if i < len(m.priorities) && m.priorities[i] == p {
		return
	}
	m.priorities = append(m.priorities, 0)
	copy(m.priorities[i+1:], m.priorities[i:])
	m.priorities[i] = p
}
