// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jacobian

import (
	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/state"
)

// ReducedSolve implements §4.3's reduced linear solve for the Newton
// correction inside the stiff integrator: rather than factorizing the full
// |u| x |u| system (gamma^-1*I - J_int*A) * a = b, it solves the much
// smaller |u_red| x |u_red| system
//
//	(gamma^-1*I - A*J_int) * c = A*b
//
// and recovers a = gamma*(b + J_int*c). This mirrors the reduced/condensed
// solves used for mixed u-p finite elements, which fold out the pressure
// dof locally before the global solve; here the "local" dof are the large
// flow-integral components of u and the "global" ones are the handful of
// basin/PID reduced coordinates.
type ReducedSolve struct {
	Layout *state.Layout
}

// NewReducedSolve prepares a solver for a given layout.
func NewReducedSolve(l *state.Layout) *ReducedSolve {
	return &ReducedSolve{Layout: l}
}

// Solve computes a such that (gamma^-1*I - J_int*A)*a = b, given J_int (from
// Builder.Build) and the aggregation operator A owned by the Layout.
func (rs *ReducedSolve) Solve(jInt *Matrix, gamma float64, b []float64) ([]float64, error) {
	n := rs.Layout.Len()
	nRed := rs.Layout.ReducedLen()
	if len(b) != n {
		return nil, chk.Err("jacobian.Solve: len(b)=%d != |u|=%d", len(b), n)
	}

	// A*b, via the layout's own aggregation apply.
	Ab := rs.Layout.Reduce(b)

	// A*J_int, a small dense nRed x nRed matrix: J_int has at most two
	// nonzeros per row (§4.3's sparsity pattern) and A has one or two
	// nonzeros per column, so this product is cheap to build densely, and a
	// dense reduced solve is the appropriate tool at this size (§4.3:
	// "size |u_red|, far smaller").
	AJ := make([][]float64, nRed)
	for i := range AJ {
		AJ[i] = make([]float64, nRed)
	}
	for _, a := range rs.Layout.AEntries() {
		for _, e := range jInt.Entries {
			if e.Row == a.Col {
				AJ[a.Row][e.Col] += a.Val * e.Val
			}
		}
	}

	W := make([][]float64, nRed)
	for i := range W {
		W[i] = make([]float64, nRed)
		copy(W[i], AJ[i])
		for j := range W[i] {
			W[i][j] = -W[i][j]
		}
		W[i][i] += 1 / gamma
	}

	c, err := solveDense(W, Ab)
	if err != nil {
		return nil, chk.Err("jacobian.Solve: reduced system is singular: %v", err)
	}

	// a = gamma*(b + J_int*c), per §4.3: substituting back into
	// (gamma^-1*I - J_int*A)*a confirms this recovers the full-system
	// solution exactly when c solves the reduced system above.
	Jc := make([]float64, n)
	for _, e := range jInt.Entries {
		Jc[e.Row] += e.Val * c[e.Col]
	}
	a := make([]float64, n)
	for i := range a {
		a[i] = gamma * (b[i] + Jc[i])
	}
	return a, nil
}

// solveDense solves W*x = b for a small dense system via Gaussian
// elimination with partial pivoting.
func solveDense(W [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	A := make([][]float64, n)
	for i := range A {
		A[i] = append([]float64{}, W[i]...)
	}
	x := append([]float64{}, b...)

	for col := 0; col < n; col++ {
		piv := col
		best := absf(A[col][col])
		for r := col + 1; r < n; r++ {
			if v := absf(A[r][col]); v > best {
				piv, best = r, v
			}
		}
		if best < 1e-14 {
			return nil, chk.Err("singular matrix at column %d", col)
		}
		if piv != col {
			A[col], A[piv] = A[piv], A[col]
			x[col], x[piv] = x[piv], x[col]
		}
		for r := col + 1; r < n; r++ {
			f := A[r][col] / A[col][col]
			if f == 0 {
				continue
			}
			for c := col; c < n; c++ {
				A[r][c] -= f * A[col][c]
			}
			x[r] -= f * x[col]
		}
	}
	for row := n - 1; row >= 0; row-- {
		sum := x[row]
		for c := row + 1; c < n; c++ {
			sum -= A[row][c] * x[c]
		}
		x[row] = sum / A[row][row]
	}
	return x, nil
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
