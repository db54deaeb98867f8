// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package param implements the immutable structural parameter store plus the
// time-varying parameter interpolations described in §3 and §6: per-node
// storage<->level<->area tables, Q(h) rating curves, forcing series and
// demand series.
package param

import (
	"sort"

	"github.com/cpmech/gosl/chk"
)

// Extrapolation selects the behaviour of a PiecewiseLinear curve outside its
// breakpoint domain.
type Extrapolation int

const (
	// ExtrapConstant holds the boundary value constant (used below the
	// minimum level of a TabulatedRatingCurve, §4.2).
	ExtrapConstant Extrapolation = iota
	// ExtrapLinear continues the boundary segment's slope (used above the
	// maximum level of a TabulatedRatingCurve, §4.2).
	ExtrapLinear
)

// PiecewiseLinear is a monotone-checked piecewise-linear curve y(x) over a
// sorted breakpoint table. It backs the Basin storage<->level<->area
// profile and the TabulatedRatingCurve Q(h) law. A hand-rolled
// implementation is used here (rather than gosl/fun's time-oriented "pts"
// function) because this table is keyed on a physical quantity (storage,
// head), not time, and carries domain-specific monotonicity/positivity
// invariants that a generic time-interpolation wrapper does not check.
type PiecewiseLinear struct {
	x    []float64
	y    []float64
	below Extrapolation
	above Extrapolation
}

// NewPiecewiseLinear builds a curve from breakpoints, which must be sorted
// strictly increasing in x. below/above select the extrapolation behaviour.
func NewPiecewiseLinear(x, y []float64, below, above Extrapolation) (*PiecewiseLinear, error) {
	if len(x) != len(y) {
		return nil, chk.Err("piecewise-linear table: len(x)=%d != len(y)=%d", len(x), len(y))
	}
	if len(x) < 2 {
		return nil, chk.Err("piecewise-linear table needs at least 2 breakpoints, got %d", len(x))
	}
	if !sort.Float64sAreSorted(x) {
		return nil, chk.Err("piecewise-linear table: x values must be sorted ascending")
	}
	for i := 1; i < len(x); i++ {
		if x[i] == x[i-1] {
			return nil, chk.Err("piecewise-linear table: duplicate breakpoint at x=%g", x[i])
		}
	}
	return &PiecewiseLinear{x: append([]float64{}, x...), y: append([]float64{}, y...), below: below, above: above}, nil
}

// NewMonotoneProfile builds a storage<->level table, enforcing the Basin
// invariants of §3: storage-to-level must be monotone non-decreasing.
func NewMonotoneProfile(storage, level []float64) (*PiecewiseLinear, error) {
	for i := 1; i < len(level); i++ {
		if level[i] < level[i-1] {
			return nil, chk.Err("storage-to-level profile is not monotone non-decreasing at breakpoint %d", i)
		}
	}
	return NewPiecewiseLinear(storage, level, ExtrapConstant, ExtrapLinear)
}

// NewAreaProfile builds a level->area table, enforcing §3's invariants:
// strictly positive area at the bottom breakpoint and non-decreasing area
// above it (profile physicality).
func NewAreaProfile(level, area []float64) (*PiecewiseLinear, error) {
	if len(area) == 0 || area[0] <= 0 {
		return nil, chk.Err("level-to-area profile must have a strictly positive bottom area")
	}
	for i := 1; i < len(area); i++ {
		if area[i] < area[i-1] {
			return nil, chk.Err("level-to-area profile must be non-decreasing, violated at breakpoint %d", i)
		}
	}
	return NewPiecewiseLinear(level, area, ExtrapConstant, ExtrapLinear)
}

// At evaluates the curve at x, applying the configured extrapolation rule
// outside [x[0], x[n-1]].
func (p *PiecewiseLinear) At(x float64) float64 {
	y, _ := p.AtDeriv(x)
	return y
}

// AtDeriv evaluates the curve and its one-sided slope at x. At interior
// breakpoints the left segment's slope is returned, matching the §8
// requirement that "both one-sided derivatives exist and match the
// interpolation slope".
func (p *PiecewiseLinear) AtDeriv(x float64) (y, dydx float64) {
	n := len(p.x)
	if x <= p.x[0] {
		slope := p.slope(0)
		if p.below == ExtrapConstant {
			return p.y[0], 0
		}
		return p.y[0] + slope*(x-p.x[0]), slope
	}
	if x >= p.x[n-1] {
		slope := p.slope(n - 2)
		if p.above == ExtrapConstant {
			return p.y[n-1], 0
		}
		return p.y[n-1] + slope*(x-p.x[n-1]), slope
	}
	i := sort.SearchFloat64s(p.x, x)
	if i < len(p.x) && p.x[i] == x {
		if i == 0 {
			i = 1
		}
		slope := p.slope(i - 1)
		return p.y[i], slope
	}
	// i is the insertion point: segment [i-1, i]
	slope := p.slope(i - 1)
	return p.y[i-1] + slope*(x-p.x[i-1]), slope
}

func (p *PiecewiseLinear) slope(seg int) float64 {
	return (p.y[seg+1] - p.y[seg]) / (p.x[seg+1] - p.x[seg])
}

// Min and Max return the breakpoint domain bounds.
func (p *PiecewiseLinear) Min() float64 { return p.x[0] }
func (p *PiecewiseLinear) Max() float64 { return p.x[len(p.x)-1] }

// Invert returns the x such that At(x) == y, by binary search + inverse
// interpolation over the (assumed monotone) table. Used for level(storage(h))
// == h round-trips (§8) and for area lookups given a level.
func (p *PiecewiseLinear) Invert(y float64) float64 {
	n := len(p.y)
	if y <= p.y[0] {
		if p.below == ExtrapConstant {
			return p.x[0]
		}
		slope := p.slope(0)
		if slope == 0 {
			return p.x[0]
		}
		return p.x[0] + (y-p.y[0])/slope
	}
	if y >= p.y[n-1] {
		if p.above == ExtrapConstant {
			return p.x[n-1]
		}
		slope := p.slope(n - 2)
		if slope == 0 {
			return p.x[n-1]
		}
		return p.x[n-1] + (y-p.y[n-1])/slope
	}
	i := sort.SearchFloat64s(p.y, y)
	if i < len(p.y) && p.y[i] == y {
		return p.x[i]
	}
	seg := i - 1
	slope := p.slope(seg)
	if slope == 0 {
		return p.x[seg]
	}
	return p.x[seg] + (y-p.y[seg])/slope
}
