// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package tracer implements the concentration/tracer stub of [FULL] 4.14:
// the linear passive-scalar physics §9's Open Questions explicitly scope
// out, kept as a pluggable interface so callback steps 4 and 6 exist and
// can be wired to a real implementation without changing the callback
// order of §4.4.
package tracer

// Pass is invoked at callback step 4 (update concentrations) and step 6
// (apply boundary-concentration step changes). The real implementation
// would track per-basin concentration state the way cumulative flows are
// tracked in state.Layout; NoOp below has none, since concentration mass
// balance is out of scope.
type Pass interface {
	UpdateConcentrations(t float64) error
	ApplyBoundaryConcentrations(t float64) error
}

// NoOp is the default Pass: both steps are no-ops.
type NoOp struct{}

func (NoOp) UpdateConcentrations(t float64) error         { return nil }
func (NoOp) ApplyBoundaryConcentrations(t float64) error { return nil }
