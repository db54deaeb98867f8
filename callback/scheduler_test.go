// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package callback

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/control"
	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/output"
	"github.com/Deltares/Ribasim-sub001/param"
	"github.com/Deltares/Ribasim-sub001/physics"
	"github.com/Deltares/Ribasim-sub001/state"
	"github.com/Deltares/Ribasim-sub001/tracer"
)

// fakeWriter records every record passed to it, for assertion.
type fakeWriter struct {
	basins []output.BasinRecord
	flows  []output.FlowRecord
}

func (w *fakeWriter) WriteBasin(r output.BasinRecord) error           { w.basins = append(w.basins, r); return nil }
func (w *fakeWriter) WriteFlow(r output.FlowRecord) error             { w.flows = append(w.flows, r); return nil }
func (w *fakeWriter) WriteAllocation(output.AllocationRecord) error   { return nil }
func (w *fakeWriter) WriteAllocationFlow(output.AllocationFlowRecord) error { return nil }
func (w *fakeWriter) WriteControl(output.ControlRecord) error         { return nil }
func (w *fakeWriter) WriteControlFlow(output.ControlFlowRecord) error { return nil }
func (w *fakeWriter) WriteSubgrid(output.SubgridRecord) error         { return nil }
func (w *fakeWriter) WriteSolverStats(output.SolverStatsRecord) error { return nil }
func (w *fakeWriter) Close() error                                    { return nil }

// Test_single_basin_evaporation exercises scenario 1 of §8 through the
// scheduler: a single basin with no inflow losing water to evaporation at a
// constant rate should have its storage decrease exactly as predicted and
// must never trip the negative-storage guard.
func Test_single_basin_evaporation(tst *testing.T) {
	chk.PrintTitle("single basin evaporation. scheduler step 1 recomputes storage without tripping the guard")

	g := network.NewGraph()
	basin, err := g.AddNode(network.Basin, 1, 0, 0)
	if err != nil {
		tst.Fatal(err)
	}

	profile, err := param.NewMonotoneProfile([]float64{0, 100}, []float64{0, 1})
	if err != nil {
		tst.Fatal(err)
	}
	area, err := param.NewAreaProfile([]float64{0, 1}, []float64{100, 100})
	if err != nil {
		tst.Fatal(err)
	}
	// Evaporation is stored in the state vector as a volumetric rate
	// (m^3/s); the scenario's "1e-6 m/s potential evaporation" over a
	// 100 m^2 basin area is pre-converted to 1e-4 m^3/s here, matching how
	// physics.EvalBasinFluxes consumes b.Evaporation directly with no
	// separate area multiplication (§4.2).
	evap, err := param.NewTimeSeries([]float64{0, 1}, []float64{1e-4, 1e-4}, false)
	if err != nil {
		tst.Fatal(err)
	}

	s := param.NewStore(g)
	s.LowStorageThreshold = 1e-3
	s.Basins[basin.Index()] = &param.BasinParams{
		StorageToLevel: profile, LevelToArea: area, Evaporation: evap,
		InitialStorage: 50, CurrentStorage: 50,
	}

	layout, err := state.NewLayout(g)
	if err != nil {
		tst.Fatal(err)
	}
	dispatch := physics.NewDispatch(g, s, layout)
	sol := state.NewSolution(layout)
	sol.T = 0

	w := &fakeWriter{}
	sch := NewScheduler(g, s, layout, dispatch, &control.Engine{}, nil, tracer.NoOp{}, w, []float64{0, 86400}, 1e-6, 1e-4)

	if err := sch.Step(sol, false); err != nil {
		tst.Fatal(err)
	}
	if len(w.basins) != 1 {
		tst.Fatalf("expected 1 basin record at t=0, got %d", len(w.basins))
	}

	evapRange := layout.Range(state.ClassBasinEvaporation)
	sol.T = 86400
	sol.U[evapRange.Start] = 1e-4 * 86400

	if err := sch.Step(sol, false); err != nil {
		tst.Fatal(err)
	}
	b := s.Basins[basin.Index()]
	want := 50 - 1e-6*100*86400
	if absf(b.CurrentStorage-want) > 1e-6 {
		tst.Fatalf("expected final storage %g, got %g", want, b.CurrentStorage)
	}
}
