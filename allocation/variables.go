// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package allocation implements the subnetwork allocation LP of §4.5: a
// persistent goal-programming model per subnetwork, refreshed every
// Δt_allocation seconds on its own clock, independent of integrator steps.
package allocation

import "math"

// Inf stands in for an unbounded side of a Bounds pair; the solver treats
// it as "no upper/lower bound" rather than a literal large number.
const Inf = math.MaxFloat64

// VarRef identifies one decision variable within a Model; it is only
// meaningful against the Model (or Solver) that issued it.
type VarRef int

// RelOp is the relational operator of a linear constraint.
type RelOp int

const (
	LE RelOp = iota
	EQ
	GE
)

// Term is one coefficient*variable product in a constraint or objective row.
type Term struct {
	Var  VarRef
	Coef float64
}

// Bounds is a variable's [Lo, Hi] box constraint; Lo/Hi may be -Inf/+Inf.
type Bounds struct {
	Lo, Hi float64
}

// Kind enumerates the decision-variable families of §4.5's variable list,
// used to tag a VarRef for objective-stage grouping (priority-indexed
// *_error_first/_error_second sums, low_storage_factor penalty,
// source-priority objective).
type Kind int

const (
	KindFlow Kind = iota
	KindBasinStorageStart
	KindBasinStorageChange
	KindBasinLevel
	KindLowStorageFactor
	KindUserDemandAllocated
	KindUserDemandErrorFirst
	KindUserDemandErrorSecond
	KindFlowDemandAllocated
	KindFlowDemandErrorFirst
	KindFlowDemandErrorSecond
	KindLevelDemandAllocated
	KindLevelDemandErrorFirst
	KindLevelDemandErrorSecond
	KindSubnetworkAllocated
	KindRelativeSubnetworkErrorLower
	KindRelativeSubnetworkErrorUpper
	KindAverageFlowUnitError
	KindAverageStorageUnitErrorLower
	KindAverageStorageUnitErrorUpper
)

// varMeta is the bookkeeping a Model keeps per registered variable beyond
// what the Solver itself tracks: its Kind (for objective-stage grouping)
// and the priority it belongs to, if any (0 for priority-less variables
// such as flow[link] or basin_level[basin]).
type varMeta struct {
	Kind     Kind
	Priority int
}
