// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package state

// Solution holds the current solution vector and derived caches, mirroring
// the role ele.Solution plays for FEM domains: the current time, the raw
// ODE state, and a cache of the time this RHS/Jacobian pair was last
// evaluated at, so the callback-safe resource discipline of §4.7 can check
// "has (u, t) actually changed" before reevaluating interpolation caches.
type Solution struct {
	T     float64   // current time
	U     []float64 // cumulative-flow ODE state, §4.1
	Dudt  []float64 // du/dt, written by the RHS

	// TPrevCall/UPrevCallSet back the §4.7 discipline: they record the
	// time of the last cache refresh; u itself is not recorded.
	TPrevCall    float64
	UPrevCallSet bool
}

// NewSolution allocates a zeroed solution sized to the layout.
func NewSolution(l *Layout) *Solution {
	return &Solution{
		U:    make([]float64, l.Len()),
		Dudt: make([]float64, l.Len()),
	}
}

// NeedsRefresh reports whether the interpolation caches must be
// recalculated at t, per §4.7: true before the first refresh or when t
// differs from the last refresh time. A change of u alone is not detected.
func (s *Solution) NeedsRefresh(t float64) bool {
	return !s.UPrevCallSet || t != s.TPrevCall
}

// MarkRefreshed records that caches were just rebuilt at time t.
func (s *Solution) MarkRefreshed(t float64) {
	s.TPrevCall = t
	s.UPrevCallSet = true
}
