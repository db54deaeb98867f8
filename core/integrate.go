// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"github.com/cpmech/gosl/la"
	"github.com/cpmech/gosl/ode"

	"github.com/Deltares/Ribasim-sub001/jacobian"
	"github.com/Deltares/Ribasim-sub001/physics"
	"github.com/Deltares/Ribasim-sub001/state"
)

// RHS returns an fcn closure (the signature ode.Solver.Init takes for its
// fcn argument) evaluating du/dt at (x=t, y=u) via dispatch.Eval, the same
// fcn-closes-over-model pattern as mdl/retention/model.go's Update: dx/x
// are the ODE package's own step variables and are unused here since the
// RHS has no explicit dependence on them beyond sol.T.
func RHS(dispatch *physics.Dispatch, sol *state.Solution) func(f []float64, dx, x float64, y []float64) error {
	return func(f []float64, dx, x float64, y []float64) error {
		sol.T = x
		copy(sol.U, y)
		if err := dispatch.Eval(sol); err != nil {
			return err
		}
		copy(f, sol.Dudt)
		return nil
	}
}

// Jacobian returns an ode.Cb_jac closure evaluating d(du/dt)/du = J_int * A,
// where J_int is jacobian.Builder's |u| x |u_red| Jacobian of the RHS
// w.r.t. the reduced state and A is Layout's reduced-aggregation operator
// (u_red = A*u). The chain rule is exact because u_red is a linear function
// of u, so the full n x n Jacobian the ODE solver's Newton iteration needs
// is just that product — composed here instead of handed to ode.Solver as a
// reduced system, since mdl/retention/model.go is the only concretely
// observed ode.Solver usage in the whole corpus and it only ever hands the
// solver a dense system via Init's own jac callback. jacobian.ReducedSolve
// remains available to other callers (e.g. a steady-state corrector) that
// want the cheaper reduced linear solve directly; see DESIGN.md.
func Jacobian(builder *jacobian.Builder, layout *state.Layout, sol *state.Solution) func(dfdy *la.Triplet, dx, x float64, y []float64) error {
	n := layout.Len()
	return func(dfdy *la.Triplet, dx, x float64, y []float64) error {
		sol.T = x
		copy(sol.U, y)
		jInt, err := builder.Build(x)
		if err != nil {
			return err
		}
		aEntries := layout.AEntries()

		// byReducedCol[k] lists every (row=i, val) of J_int's column k, so
		// each A entry (row=k, col=j) only needs one pass over its column.
		byReducedCol := make(map[int][]jacobian.Entry, layout.ReducedLen())
		for _, e := range jInt.Entries {
			byReducedCol[e.Col] = append(byReducedCol[e.Col], e)
		}

		full := make(map[[2]int]float64)
		for _, a := range aEntries {
			for _, e := range byReducedCol[a.Row] {
				key := [2]int{e.Row, a.Col}
				full[key] += e.Val * a.Val
			}
		}

		if dfdy.Max() == 0 {
			dfdy.Init(n, n, len(full))
		}
		dfdy.Start()
		for key, val := range full {
			dfdy.Put(key[0], key[1], val)
		}
		return nil
	}
}

// Integrate advances sol.U from t0 to t1 with Radau5, the only integrator
// this corpus demonstrates (mdl/retention/model.go), distributing over the
// tolerances carried by config.SolverConfig. Distr is forced false per that
// same file's comment: "this is important to avoid problems with MPI runs".
func Integrate(dispatch *physics.Dispatch, builder *jacobian.Builder, layout *state.Layout, sol *state.Solution, t0, t1, dt0, abstol, reltol float64) error {
	var solver ode.Solver
	solver.Init("Radau5", layout.Len(), RHS(dispatch, sol), Jacobian(builder, layout, sol), nil, nil)
	solver.SetTol(abstol, reltol)
	solver.Distr = false
	if err := solver.Solve(sol.U, t0, t1, dt0, false); err != nil {
		return err
	}
	sol.T = t1
	return dispatch.Eval(sol)
}
