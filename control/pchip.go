// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package control

import "sort"

// Pchip is a monotone cubic Hermite interpolant (Fritsch-Carlson), used by
// ContinuousControl (§4.6) to map a compound variable's value through a
// shape-preserving curve. Hand-rolled rather than pulled from a library: no
// repo in this corpus imports a PCHIP/monotone-spline package, and gosl/fun's
// own interpolation types
// ("pts", Bspline) are either plain piecewise-linear or not shape-preserving
// — the Fritsch-Carlson tangent rule below is the standard, compact
// algorithm for exactly this curve and does not warrant vendoring a new
// ecosystem dependency for ~40 lines of arithmetic.
type Pchip struct {
	x, y []float64
	m    []float64 // precomputed tangents
}

// NewPchip builds a monotone cubic Hermite interpolant over strictly
// increasing breakpoints x.
func NewPchip(x, y []float64) *Pchip {
	n := len(x)
	d := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		d[i] = (y[i+1] - y[i]) / (x[i+1] - x[i])
	}
	m := make([]float64, n)
	if n == 1 {
		return &Pchip{x: x, y: y, m: m}
	}
	m[0] = d[0]
	m[n-1] = d[n-2]
	for i := 1; i < n-1; i++ {
		if d[i-1] == 0 || d[i] == 0 || (d[i-1] > 0) != (d[i] > 0) {
			m[i] = 0
			continue
		}
		w1 := 2*(x[i+1]-x[i]) + (x[i] - x[i-1])
		w2 := (x[i+1] - x[i]) + 2*(x[i]-x[i-1])
		m[i] = (w1 + w2) / (w1/d[i-1] + w2/d[i])
	}
	return &Pchip{x: x, y: y, m: m}
}

// At evaluates the interpolant at x, clamping to the boundary value outside
// the breakpoint domain.
func (p *Pchip) At(xq float64) float64 {
	n := len(p.x)
	if xq <= p.x[0] {
		return p.y[0]
	}
	if xq >= p.x[n-1] {
		return p.y[n-1]
	}
	i := sort.SearchFloat64s(p.x, xq)
	if p.x[i] == xq {
		return p.y[i]
	}
	i--
	h := p.x[i+1] - p.x[i]
	t := (xq - p.x[i]) / h
	h00 := 2*t*t*t - 3*t*t + 1
	h10 := t*t*t - 2*t*t + t
	h01 := -2*t*t*t + 3*t*t
	h11 := t*t*t - t*t
	return h00*p.y[i] + h10*h*p.m[i] + h01*p.y[i+1] + h11*h*p.m[i+1]
}
