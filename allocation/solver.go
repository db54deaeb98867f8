// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocation

import (
	"github.com/cpmech/gosl/chk"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Status is the outcome of one Solver.Solve call.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	}
	return "unknown"
}

// Solver is the thin LP-backend seam of §4.5: build once per subnetwork,
// mutate bounds/objective/RHS every allocation refresh, and re-solve. A
// gonum-backed Simplex implementation is the only one provided; the
// interface exists so core/tests can swap in a fake for unit tests that
// don't want to pull in the real LP machinery.
type Solver interface {
	AddVar(key string, lo, hi float64) VarRef
	SetBounds(v VarRef, lo, hi float64)
	SetObj(v VarRef, coef float64)
	AddConstraint(name string, terms []Term, op RelOp, rhs float64) int
	SetRHS(constraintIdx int, rhs float64)
	// SetCoef overwrites (or, if absent, adds) the coefficient of v in
	// constraint constraintIdx. Used by the allocation refresh protocol's
	// step 5 (linearized connector flow tangents) and step 6 (low-storage
	// reduction-factor coefficients), both of which change every refresh
	// even though the constraint's variable set does not.
	SetCoef(constraintIdx int, v VarRef, coef float64)
	Solve() (Status, error)
	Value(v VarRef) float64
	Status() Status
}

type conRow struct {
	name  string
	terms []Term
	op    RelOp
	rhs   float64
}

// GonumSolver wraps gonum.org/v1/gonum/optimize/convex/lp.Simplex, the only
// pure-Go standard-form LP solver available among the pack's dependencies
// (§[FULL] 4.5 DOMAIN STACK). Bounded/free variables and ≤/≥ rows are
// converted to Simplex's required standard form (A x = b, x ≥ 0) at Solve
// time: a variable with finite Lo is shifted by Lo; a variable with Hi < Inf
// gets one extra row x' + slack = Hi-Lo; a free variable (Lo = -Inf) is
// split into a positive and a negative part; every ≤/≥ row gets one
// slack/surplus column.
type GonumSolver struct {
	names []string
	lo    []float64
	hi    []float64
	obj   []float64

	cons []conRow

	status Status
	x      []float64 // solution in the caller's (unshifted, unsplit) variable space
	colOf  [][2]int  // per variable: (positive column, negative column or -1)
}

// NewGonumSolver returns an empty solver ready for AddVar/AddConstraint calls.
func NewGonumSolver() *GonumSolver {
	return &GonumSolver{}
}

func (g *GonumSolver) AddVar(key string, lo, hi float64) VarRef {
	g.names = append(g.names, key)
	g.lo = append(g.lo, lo)
	g.hi = append(g.hi, hi)
	g.obj = append(g.obj, 0)
	return VarRef(len(g.names) - 1)
}

func (g *GonumSolver) SetBounds(v VarRef, lo, hi float64) {
	g.lo[v] = lo
	g.hi[v] = hi
}

func (g *GonumSolver) SetObj(v VarRef, coef float64) {
	g.obj[v] = coef
}

func (g *GonumSolver) AddConstraint(name string, terms []Term, op RelOp, rhs float64) int {
	g.cons = append(g.cons, conRow{name: name, terms: append([]Term{}, terms...), op: op, rhs: rhs})
	return len(g.cons) - 1
}

func (g *GonumSolver) SetRHS(constraintIdx int, rhs float64) {
	g.cons[constraintIdx].rhs = rhs
}

func (g *GonumSolver) SetCoef(constraintIdx int, v VarRef, coef float64) {
	c := &g.cons[constraintIdx]
	for i := range c.terms {
		if c.terms[i].Var == v {
			c.terms[i].Coef = coef
			return
		}
	}
	c.terms = append(c.terms, Term{Var: v, Coef: coef})
}

func (g *GonumSolver) Status() Status { return g.status }

func (g *GonumSolver) Value(v VarRef) float64 {
	if int(v) >= len(g.x) {
		return 0
	}
	return g.x[v]
}

// Solve assembles the standard-form problem and runs Simplex.
func (g *GonumSolver) Solve() (Status, error) {
	nVar := len(g.names)
	g.colOf = make([][2]int, nVar)

	// assign standard-form columns: shifted positive part always present,
	// a negative part only for free (Lo = -Inf) variables.
	ncols := 0
	for i := 0; i < nVar; i++ {
		g.colOf[i][0] = ncols
		ncols++
		if g.lo[i] <= -Inf {
			g.colOf[i][1] = ncols
			ncols++
		} else {
			g.colOf[i][1] = -1
		}
	}

	// one extra slack column per finite upper bound, one per ≤/≥ row.
	var rows [][]float64
	var rhs []float64
	addRow := func(coeffs map[int]float64, b float64) {
		dense := make([]float64, ncols)
		for col, v := range coeffs {
			dense[col] = v
		}
		rows = append(rows, dense)
		rhs = append(rhs, b)
	}

	for i := 0; i < nVar; i++ {
		if g.hi[i] >= Inf {
			continue
		}
		lo := g.lo[i]
		if lo <= -Inf {
			lo = 0 // a free variable's shift is handled by the split, not here
		}
		coeffs := map[int]float64{g.colOf[i][0]: 1}
		if g.colOf[i][1] >= 0 {
			coeffs[g.colOf[i][1]] = -1
		}
		slackCol := ncols
		ncols++
		coeffs[slackCol] = 1
		addRow(coeffs, g.hi[i]-lo)
	}
	// grow every prior row to the new column count.
	for i := range rows {
		for len(rows[i]) < ncols {
			rows[i] = append(rows[i], 0)
		}
	}

	for _, c := range g.cons {
		coeffs := map[int]float64{}
		b := c.rhs
		for _, t := range c.terms {
			lo := g.lo[t.Var]
			if lo <= -Inf {
				lo = 0
			} else {
				b -= t.Coef * lo
			}
			coeffs[g.colOf[t.Var][0]] += t.Coef
			if g.colOf[t.Var][1] >= 0 {
				coeffs[g.colOf[t.Var][1]] -= t.Coef
			}
		}
		switch c.op {
		case LE:
			slackCol := ncols
			ncols++
			coeffs[slackCol] = 1
		case GE:
			slackCol := ncols
			ncols++
			coeffs[slackCol] = -1
		}
		for i := range rows {
			for len(rows[i]) < ncols {
				rows[i] = append(rows[i], 0)
			}
		}
		dense := make([]float64, ncols)
		for col, v := range coeffs {
			dense[col] = v
		}
		rows = append(rows, dense)
		rhs = append(rhs, b)
	}

	if len(rows) == 0 {
		g.status = Optimal
		g.x = make([]float64, nVar)
		for i := range g.x {
			lo := g.lo[i]
			if lo <= -Inf {
				lo = 0
			}
			g.x[i] = lo
		}
		return g.status, nil
	}

	nRows := len(rows)
	A := mat.NewDense(nRows, ncols, nil)
	for i, row := range rows {
		for j := 0; j < ncols; j++ {
			if j < len(row) {
				A.Set(i, j, row[j])
			}
		}
	}
	c := make([]float64, ncols)
	for i := 0; i < nVar; i++ {
		c[g.colOf[i][0]] = g.obj[i]
		if g.colOf[i][1] >= 0 {
			c[g.colOf[i][1]] = -g.obj[i]
		}
	}

	_, xStd, err := lp.Simplex(c, A, rhs, 1e-10, nil)
	if err != nil {
		g.status = Infeasible
		return g.status, chk.Err("allocation: simplex failed: %v", err)
	}

	g.x = make([]float64, nVar)
	for i := 0; i < nVar; i++ {
		lo := g.lo[i]
		if lo <= -Inf {
			lo = 0
		}
		val := xStd[g.colOf[i][0]]
		if g.colOf[i][1] >= 0 {
			val -= xStd[g.colOf[i][1]]
		}
		g.x[i] = val + lo
	}
	g.status = Optimal
	return g.status, nil
}

var _ Solver = (*GonumSolver)(nil)
