// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/callback"
	"github.com/Deltares/Ribasim-sub001/control"
	"github.com/Deltares/Ribasim-sub001/jacobian"
	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/output"
	"github.com/Deltares/Ribasim-sub001/param"
	"github.com/Deltares/Ribasim-sub001/physics"
	"github.com/Deltares/Ribasim-sub001/state"
	"github.com/Deltares/Ribasim-sub001/subgrid"
	"github.com/Deltares/Ribasim-sub001/tracer"
)

// recordingWriter captures every BasinRecord written, and no-ops the rest;
// the same minimal-fake pattern as callback/scheduler_test.go's fakeWriter.
type recordingWriter struct {
	basins []output.BasinRecord
}

func (w *recordingWriter) WriteBasin(r output.BasinRecord) error {
	w.basins = append(w.basins, r)
	return nil
}
func (w *recordingWriter) WriteFlow(output.FlowRecord) error                     { return nil }
func (w *recordingWriter) WriteAllocation(output.AllocationRecord) error         { return nil }
func (w *recordingWriter) WriteAllocationFlow(output.AllocationFlowRecord) error { return nil }
func (w *recordingWriter) WriteControl(output.ControlRecord) error              { return nil }
func (w *recordingWriter) WriteControlFlow(output.ControlFlowRecord) error      { return nil }
func (w *recordingWriter) WriteSubgrid(output.SubgridRecord) error              { return nil }
func (w *recordingWriter) WriteSolverStats(output.SolverStatsRecord) error      { return nil }
func (w *recordingWriter) Close() error                                        { return nil }

// twoBasinResistanceNetwork builds basin_0 --LinearResistance--> basin_1,
// the same shape as jacobian_test.go's twoBasinNetwork, reused here to
// drive the real ode.Solver integration loop instead of just Build().
func twoBasinResistanceNetwork(tst *testing.T, s0, s1, resistance float64) (*network.Graph, *param.Store, *state.Layout) {
	g := network.NewGraph()
	b0, err := g.AddNode(network.Basin, 1, 0, 0)
	if err != nil {
		tst.Fatal(err)
	}
	b1, err := g.AddNode(network.Basin, 2, 0, 0)
	if err != nil {
		tst.Fatal(err)
	}
	lr, err := g.AddNode(network.LinearResistance, 1, 0, 0)
	if err != nil {
		tst.Fatal(err)
	}
	g.AddLink(1, b0, lr, network.FlowLink, 0)
	g.AddLink(2, lr, b1, network.FlowLink, 0)

	s := param.NewStore(g)
	profile, err := param.NewMonotoneProfile([]float64{0, 1000}, []float64{0, 10})
	if err != nil {
		tst.Fatal(err)
	}
	area, err := param.NewAreaProfile([]float64{0, 10}, []float64{100, 100})
	if err != nil {
		tst.Fatal(err)
	}
	s.Basins[b0.Index()] = &param.BasinParams{StorageToLevel: profile, LevelToArea: area, InitialStorage: s0, CurrentStorage: s0, CurrentLevel: profile.At(s0)}
	s.Basins[b1.Index()] = &param.BasinParams{StorageToLevel: profile, LevelToArea: area, InitialStorage: s1, CurrentStorage: s1, CurrentLevel: profile.At(s1)}
	s.Connectors[network.LinearResistance][lr.Index()] = &param.ConnectorParams{Resistance: resistance}
	s.LowStorageThreshold = 1

	l, err := state.NewLayout(g)
	if err != nil {
		tst.Fatal(err)
	}
	return g, s, l
}

// Test_linear_resistance_asymptotic_decay exercises the genuinely new code
// in this package — Integrate's ode.Solver/Jacobian wiring — over a
// two-basin LinearResistance network with no forcing: total storage is
// conserved and both basins' levels converge toward the same value as
// t -> infinity, since the flow through the resistor drives toward zero
// head difference. Single-basin evaporation (scenario 1 of the spec's
// worked examples) is already exercised at the callback level by
// callback/scheduler_test.go's Test_single_basin_evaporation, and discrete
// control hysteresis (scenario 6) by control/discrete_test.go's
// Test_hysteresis, so this test does not repeat either.
func Test_linear_resistance_asymptotic_decay(tst *testing.T) {
	chk.PrintTitle("core: two-basin linear resistance decays toward equal levels")

	g, s, l := twoBasinResistanceNetwork(tst, 800, 200, 5)
	dispatch := physics.NewDispatch(g, s, l)
	builder, err := jacobian.NewBuilder(g, s, l)
	if err != nil {
		tst.Fatal(err)
	}

	w := &recordingWriter{}
	eng := &control.Engine{}
	sg := subgrid.NewSet(nil)
	sched := callback.NewScheduler(g, s, l, dispatch, eng, sg, tracer.NoOp{}, w, []float64{0, 1e5, 1e6}, 1e-6, 1e-6)

	sol := state.NewSolution(l)
	if err := dispatch.Eval(sol); err != nil {
		tst.Fatal(err)
	}
	if err := sched.Step(sol, false); err != nil {
		tst.Fatal(err)
	}

	steps := []float64{1e5, 1e6}
	t := 0.0
	for _, next := range steps {
		if err := Integrate(dispatch, builder, l, sol, t, next, next-t, 1e-8, 1e-6); err != nil {
			tst.Fatalf("Integrate(%g -> %g) failed: %v", t, next, err)
		}
		if err := sched.Step(sol, false); err != nil {
			tst.Fatal(err)
		}
		t = next
	}

	b0, _ := s.Basin(mustLookupNode(tst, g, network.Basin, 1))
	b1, _ := s.Basin(mustLookupNode(tst, g, network.Basin, 2))

	total := b0.CurrentStorage + b1.CurrentStorage
	if absf(total-1000) > 1e-3 {
		tst.Fatalf("expected conserved total storage 1000, got %g", total)
	}
	if absf(b0.CurrentLevel-b1.CurrentLevel) > 1e-3 {
		tst.Fatalf("expected levels to converge, got h0=%g h1=%g", b0.CurrentLevel, b1.CurrentLevel)
	}
}

func mustLookupNode(tst *testing.T, g *network.Graph, t network.NodeType, ordinal int32) network.NodeId {
	id, ok := g.Lookup(t, ordinal)
	if !ok {
		tst.Fatalf("node {%v, %d} not found", t, ordinal)
	}
	return id
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
