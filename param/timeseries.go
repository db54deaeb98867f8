// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package param

import (
	"sort"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/fun"
)

// TimeSeries wraps a gosl/fun time-interpolation function with the cyclic
// semantics of §3/§6/§8: a node marked cyclic with period T must satisfy
// value(t) == value(t+T) for all t >= 0, a constraint a plain fun.New-based
// boundary-condition function never needed to enforce (those forcing
// functions are acyclic); this wrapper adds the period-folding on top.
type TimeSeries struct {
	fn     fun.TimeSpace
	cyclic bool
	period float64
	t0     float64
}

// NewTimeSeries builds a piecewise-linear function over (time, value) pairs
// with the local ptsFunc, which follows gosl's "pts" function kind. times
// must be strictly increasing; when cyclic is true, the first and last rows
// must also carry equal values (§6).
func NewTimeSeries(times, values []float64, cyclic bool) (*TimeSeries, error) {
	if len(times) != len(values) {
		return nil, chk.Err("time series: len(times)=%d != len(values)=%d", len(times), len(values))
	}
	if len(times) == 0 {
		return nil, chk.Err("time series must have at least one row")
	}
	if !sort.Float64sAreSorted(times) {
		return nil, chk.Err("time series: time column must be strictly increasing")
	}
	for i := 1; i < len(times); i++ {
		if times[i] == times[i-1] {
			return nil, chk.Err("time series: duplicate time value %g", times[i])
		}
	}
	if cyclic && values[0] != values[len(values)-1] {
		return nil, chk.Err("cyclic time series must agree at first and last row, got %g != %g", values[0], values[len(values)-1])
	}
	// pts implements gosl/fun's TimeSpace interface directly instead of
	// going through fun.New("pts", ...): a registry-based function loader
	// looks functions up by name from entries built at input-parse time,
	// but here every node's series is built straight from its own schema
	// rows, so the name-indirection layer has nothing to add.
	pts := &ptsFunc{t: times, v: values}
	ts := &TimeSeries{fn: pts, cyclic: cyclic, t0: times[0]}
	if cyclic {
		ts.period = times[len(times)-1] - times[0]
	}
	return ts, nil
}

// At evaluates the series at time t, folding t into [t0, t0+period) first
// when the series is cyclic.
func (s *TimeSeries) At(t float64) float64 {
	if s.cyclic && s.period > 0 {
		n := (t - s.t0) / s.period
		if n < 0 {
			n = n - 1
		}
		t = t - float64(int64(n))*s.period
	}
	return s.fn.F(t, nil)
}

// IntegralBetween returns the exact integral of the series over [t0, t1],
// used to accumulate the "exact_forcing_integrals(t)" term of §4.1 for
// precipitation/drainage/surface-runoff — these are not part of the ODE
// state u, so their contribution to storage is tracked by exact closed-form
// integration of the (piecewise-linear/constant) forcing function rather
// than through the adaptive integrator, matching §4.4 step 3's "exact
// integration outputs".
func (s *TimeSeries) IntegralBetween(t0, t1 float64) float64 {
	if t1 <= t0 {
		return 0
	}
	if s.cyclic && s.period > 0 {
		return s.integralCyclic(t0, t1)
	}
	return s.fn.(*ptsFunc).integral(t0, t1)
}

func (s *TimeSeries) integralCyclic(t0, t1 float64) float64 {
	pts := s.fn.(*ptsFunc)
	total := 0.0
	t := t0
	const maxPeriods = 1 << 20 // guards against a misconfigured near-zero period
	for i := 0; t < t1 && i < maxPeriods; i++ {
		n := (t - s.t0) / s.period
		if n < 0 {
			n = n - 1
		}
		foldedStart := t - float64(int64(n))*s.period
		remaining := s.period - (foldedStart - s.t0)
		segEnd := t + remaining
		if segEnd > t1 {
			segEnd = t1
		}
		total += pts.integral(foldedStart, foldedStart+(segEnd-t))
		t = segEnd
	}
	return total
}

// ptsFunc is a minimal fun.TimeSpace implementation performing piecewise
// linear interpolation with constant-extrapolation at both ends, matching
// gosl's "pts" function kind's documented behaviour for boundary/forcing
// series (constant before the first and after the last control point).
type ptsFunc struct {
	t []float64
	v []float64
}

func (f *ptsFunc) F(t float64, x []float64) float64 {
	n := len(f.t)
	if t <= f.t[0] {
		return f.v[0]
	}
	if t >= f.t[n-1] {
		return f.v[n-1]
	}
	i := sort.SearchFloat64s(f.t, t)
	if f.t[i] == t {
		return f.v[i]
	}
	lo, hi := i-1, i
	frac := (t - f.t[lo]) / (f.t[hi] - f.t[lo])
	return f.v[lo] + frac*(f.v[hi]-f.v[lo])
}

func (f *ptsFunc) G(t float64, x []float64) float64 {
	n := len(f.t)
	if t <= f.t[0] || t >= f.t[n-1] {
		return 0
	}
	i := sort.SearchFloat64s(f.t, t)
	if i == 0 {
		i = 1
	}
	return (f.v[i] - f.v[i-1]) / (f.t[i] - f.t[i-1])
}

func (f *ptsFunc) H(t float64, x []float64) float64 { return 0 }

func (f *ptsFunc) Grad(v []float64, t float64, x []float64) {
	for i := range v {
		v[i] = 0
	}
}

// integral computes the exact area under the piecewise-linear curve (with
// constant extrapolation at both ends) between t0 and t1, t0 <= t1.
func (f *ptsFunc) integral(t0, t1 float64) float64 {
	n := len(f.t)
	total := 0.0
	cur := t0
	// leading constant-extrapolation segment
	if cur < f.t[0] {
		end := minf(t1, f.t[0])
		total += f.v[0] * (end - cur)
		cur = end
	}
	// interior trapezoids
	for i := 0; i < n-1 && cur < t1; i++ {
		segLo, segHi := f.t[i], f.t[i+1]
		if segHi <= cur || segLo >= t1 {
			continue
		}
		lo := maxf64(segLo, cur)
		hi := minf(segHi, t1)
		if hi <= lo {
			continue
		}
		vLo := f.F(lo, nil)
		vHi := f.F(hi, nil)
		total += 0.5 * (vLo + vHi) * (hi - lo)
		cur = hi
	}
	// trailing constant-extrapolation segment
	if cur < t1 && cur >= f.t[n-1] {
		total += f.v[n-1] * (t1 - cur)
	}
	return total
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
