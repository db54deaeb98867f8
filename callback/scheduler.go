// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package callback implements the fixed 10-step accepted-step callback
// order of §4.4. Every mutation of parameters, cumulative counters, saved
// records, and derived caches happens here or in the allocation update,
// never inside the RHS or Jacobian evaluation (§4.7).
package callback

import (
	"math"

	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/control"
	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/output"
	"github.com/Deltares/Ribasim-sub001/param"
	"github.com/Deltares/Ribasim-sub001/physics"
	"github.com/Deltares/Ribasim-sub001/state"
	"github.com/Deltares/Ribasim-sub001/subgrid"
	"github.com/Deltares/Ribasim-sub001/tracer"
)

// Scheduler owns every piece of state the fixed callback order of §4.4
// touches, mirroring the way fem's Solver implementations hold a *Domain
// and step through its registered boundary-condition/output callbacks.
type Scheduler struct {
	Graph    *network.Graph
	Store    *param.Store
	Layout   *state.Layout
	Dispatch *physics.Dispatch
	Control  *control.Engine
	Subgrid  *subgrid.Set
	Tracer   tracer.Pass
	Writer   output.Writer

	WaterBalanceAbstol float64
	WaterBalanceReltol float64

	// saveAt is the sorted list of instants at which basin state, flows and
	// subgrid levels are recorded (§4.4 steps 2, 7, 8); atSaveInstant decides
	// whether the current accepted step lands on one.
	saveAt []float64
	saveIx int

	// prevStepT is the time of the previous accepted step, used to integrate
	// cumulative forcing volumes every step (step 3) regardless of the
	// saveat schedule.
	prevStepT   float64
	havePrevStep bool

	// lastSave is the (time, cumulative-u) pair as of the previous save
	// instant, used to average flows over the saveat interval (step 7).
	lastSaveT float64
	lastSaveU []float64
	haveLast  bool

	// tolCheckpoints are the logarithmic checkpoint times of §4.4 step 10;
	// at each one, every component's reltol is re-tightened.
	tolCheckpoints []float64
	nextCheckpoint int
	reltol         []float64
}

// NewScheduler builds a Scheduler for a fully-wired network.
func NewScheduler(g *network.Graph, s *param.Store, l *state.Layout, d *physics.Dispatch, eng *control.Engine, sg *subgrid.Set, tr tracer.Pass, w output.Writer, saveAt []float64, waterBalanceAbstol, waterBalanceReltol float64) *Scheduler {
	reltol := make([]float64, l.Len())
	return &Scheduler{
		Graph: g, Store: s, Layout: l, Dispatch: d, Control: eng, Subgrid: sg, Tracer: tr, Writer: w,
		WaterBalanceAbstol: waterBalanceAbstol, WaterBalanceReltol: waterBalanceReltol,
		saveAt: saveAt, reltol: reltol,
	}
}

// Step runs the fixed 10-step order after one accepted integrator step
// (u, t). forcingChanged is true when a piecewise-constant forcing
// breakpoint falls at this t (step 5); the boundary-concentration pass of
// step 6 runs on every call.
func (sch *Scheduler) Step(sol *state.Solution, forcingChanged bool) error {
	if err := sch.guardNegativeStorage(sol); err != nil {
		return err
	}

	atSave := sch.atSaveInstant(sol.T)
	if atSave {
		if err := sch.saveBasinState(sol); err != nil {
			return err
		}
	}

	sch.updateCumulativeFlows(sol)

	if err := sch.Tracer.UpdateConcentrations(sol.T); err != nil {
		return err
	}

	if forcingChanged {
		// piecewise-constant forcing series are looked up live by
		// physics.Dispatch on every RHS call (param.TimeSeries.At), so there
		// is no separate cache to refresh here; this step exists to keep
		// the callback order of §4.4 complete and to give a hook for a
		// richer forcing representation later.
	}

	if err := sch.Tracer.ApplyBoundaryConcentrations(sol.T); err != nil {
		return err
	}

	if atSave {
		if err := sch.saveFlows(sol); err != nil {
			return err
		}
		if err := sch.saveSubgridLevels(sol); err != nil {
			return err
		}
		sch.advanceSaveIx()
	}

	events, err := sch.Control.Step(sch.Store, sol.T)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := sch.Writer.WriteControl(output.ControlRecord{Time: sol.T, ControlNodeId: ev.Node, TruthState: ev.Truth, ControlState: ev.State}); err != nil {
			return err
		}
	}

	sch.tightenTolerances(sol)

	return nil
}

// guardNegativeStorage implements step 1: recompute storages (running the
// RHS first to ensure derived caches are current, per §4.4's closing
// sentence) and error out if any is negative. Storage is s_0 + A·u(t) +
// exact_forcing_integrals(t) per §4.1: the forcing integral is recomputed
// directly over [0, t] rather than read off the step-3 cumulative counters,
// since step 1 runs before step 3 catches those counters up to the current
// t on this same accepted step.
func (sch *Scheduler) guardNegativeStorage(sol *state.Solution) error {
	if err := sch.Dispatch.Eval(sol); err != nil {
		return err
	}
	uRed := sch.Layout.Reduce(sol.U)
	for _, basin := range sch.Graph.NodesOfType(network.Basin) {
		coord, err := sch.Layout.BasinCoordinate(basin)
		if err != nil {
			return err
		}
		b, err := sch.Store.Basin(basin)
		if err != nil {
			return err
		}
		storage := b.InitialStorage + uRed[coord] + basinForcingIntegral(b, 0, sol.T)
		if storage < 0 {
			return chk.Err("negative storage at basin %v, t=%g: storage=%g", basin, sol.T, storage)
		}
		b.CurrentStorage = storage
		b.CurrentLevel = b.Level(storage)
		b.CurrentArea = b.Area(b.CurrentLevel)
	}
	return nil
}

func (sch *Scheduler) atSaveInstant(t float64) bool {
	if sch.saveIx >= len(sch.saveAt) {
		return false
	}
	const tol = 1e-9
	return absf(t-sch.saveAt[sch.saveIx]) <= tol
}

func (sch *Scheduler) advanceSaveIx() {
	sch.saveIx++
}

func (sch *Scheduler) saveBasinState(sol *state.Solution) error {
	for _, basin := range sch.Graph.NodesOfType(network.Basin) {
		b, err := sch.Store.Basin(basin)
		if err != nil {
			return err
		}
		if err := sch.Writer.WriteBasin(output.BasinRecord{Time: sol.T, NodeId: basin, Storage: b.CurrentStorage, Level: b.CurrentLevel}); err != nil {
			return err
		}
	}
	return nil
}

// updateCumulativeFlows implements step 3: accumulates per-basin forcing
// totals for the allocation refresh protocol's step 2 (§4.5), using the
// exact closed-form forcing integral rather than the adaptive state (per
// TimeSeries.IntegralBetween's doc comment). Runs every accepted step
// (unlike saveFlows, which only runs at saveat instants), since the
// allocation clock is independent of the output schedule.
func (sch *Scheduler) updateCumulativeFlows(sol *state.Solution) {
	if !sch.havePrevStep {
		sch.prevStepT = sol.T
		sch.havePrevStep = true
		return
	}
	for _, basin := range sch.Graph.NodesOfType(network.Basin) {
		b, _ := sch.Store.Basin(basin)
		if b == nil {
			continue
		}
		b.CumulativePrecipitation += tsIntegral(b.Precipitation, sch.prevStepT, sol.T)
		b.CumulativeDrainage += tsIntegral(b.Drainage, sch.prevStepT, sol.T)
		b.CumulativeSurfaceRunoff += tsIntegral(b.SurfaceRunoff, sch.prevStepT, sol.T)
	}
	sch.prevStepT = sol.T
}

func tsIntegral(ts *param.TimeSeries, t0, t1 float64) float64 {
	if ts == nil {
		return 0
	}
	return ts.IntegralBetween(t0, t1)
}

// basinForcingIntegral sums the exact_forcing_integrals(t) term of §4.1 over
// [t0, t1]: precipitation, drainage and surface runoff are schema-wired
// forcing series but not part of the ODE state u (only evaporation and
// infiltration are), so their contribution to storage has to be added on
// top of s_0 + A·u via direct closed-form integration rather than read off
// uRed.
func basinForcingIntegral(b *param.BasinParams, t0, t1 float64) float64 {
	return tsIntegral(b.Precipitation, t0, t1) + tsIntegral(b.Drainage, t0, t1) + tsIntegral(b.SurfaceRunoff, t0, t1)
}

// saveFlows implements step 7: average flow over [lastSaveT, t] for every
// cumulative-flow class component, via (Δu)/(Δt), plus the water-balance
// residual check against water_balance_abstol/reltol.
func (sch *Scheduler) saveFlows(sol *state.Solution) error {
	if !sch.haveLast {
		sch.lastSaveT = sol.T
		sch.lastSaveU = append([]float64{}, sol.U...)
		sch.haveLast = true
		return nil
	}
	dt := sol.T - sch.lastSaveT
	if dt <= 0 {
		sch.lastSaveT = sol.T
		sch.lastSaveU = append([]float64{}, sol.U...)
		return nil
	}
	for c := state.Class(0); c < state.NumClasses; c++ {
		if c == state.ClassPidIntegral {
			continue
		}
		r := sch.Layout.Range(c)
		for i, node := range r.Nodes {
			idx := r.Start + i
			meanFlow := (sol.U[idx] - sch.lastSaveU[idx]) / dt
			if err := sch.writeFlowForClass(sol.T, node, meanFlow); err != nil {
				return err
			}
		}
	}
	if err := sch.checkWaterBalance(sol, dt); err != nil {
		return err
	}
	sch.lastSaveT = sol.T
	sch.lastSaveU = append([]float64{}, sol.U...)
	return nil
}

func (sch *Scheduler) writeFlowForClass(t float64, node network.NodeId, meanFlow float64) error {
	if !node.Type.IsConnector() {
		return nil
	}
	link, err := sch.Graph.UniqueInflow(node)
	if err != nil {
		return nil
	}
	out, err := sch.Graph.UniqueOutflow(node)
	if err != nil {
		return nil
	}
	return sch.Writer.WriteFlow(output.FlowRecord{
		Time: t, LinkId: out.Id, FromNode: link.From, ToNode: out.To,
		SubnetworkId: sch.Graph.SubnetworkOf(node),
		FlowRate:     meanFlow,
	})
}

// checkWaterBalance implements the fatal check of §4.4 step 7 / §8: storage
// rate must match inflow+precipitation+drainage-outflow-evaporation-
// infiltration within water_balance_abstol + water_balance_reltol*mean_flow.
// storageRate averages d(s_0 + A·u + exact_forcing_integrals)/dt over
// [lastSaveT, t], so the precipitation/drainage/surface-runoff terms that
// exact_forcing_integrals contributes (and which A·u alone excludes) have
// to be folded in via the same closed-form integral, not just read off uRed.
func (sch *Scheduler) checkWaterBalance(sol *state.Solution, dt float64) error {
	uRed := sch.Layout.Reduce(sol.U)
	prevRed := sch.Layout.Reduce(sch.lastSaveU)
	aEntries := sch.Layout.AEntries()
	// connector classes precede the evaporation class in u's layout
	evapStart := sch.Layout.Range(state.ClassBasinEvaporation).Start
	for _, basin := range sch.Graph.NodesOfType(network.Basin) {
		coord, err := sch.Layout.BasinCoordinate(basin)
		if err != nil {
			return err
		}
		b, err := sch.Store.Basin(basin)
		if err != nil {
			return err
		}
		storageRate := (uRed[coord]-prevRed[coord])/dt + basinForcingIntegral(b, sch.lastSaveT, sol.T)/dt
		fluxes := physics.EvalBasinFluxes(b, b.CurrentStorage, sch.Store.LowStorageThreshold, sol.T)
		inflowMinusOutflow := 0.0
		for _, e := range aEntries {
			if e.Row == coord && e.Col < evapStart {
				inflowMinusOutflow += e.Val * (sol.U[e.Col] - sch.lastSaveU[e.Col]) / dt
			}
		}
		net := inflowMinusOutflow + fluxes.Precipitation + fluxes.Drainage + fluxes.SurfaceRunoff - fluxes.Evaporation - fluxes.Infiltration
		meanFlow := absf(storageRate)
		tol := sch.WaterBalanceAbstol + sch.WaterBalanceReltol*meanFlow
		if absf(storageRate-net) > tol {
			return chk.Err("water balance violated at basin %v, t=%g: |%.6g - %.6g| > %.6g", basin, sol.T, storageRate, net, tol)
		}
	}
	return nil
}

func (sch *Scheduler) saveSubgridLevels(sol *state.Solution) error {
	if sch.Subgrid == nil {
		return nil
	}
	for _, basin := range sch.Graph.NodesOfType(network.Basin) {
		b, err := sch.Store.Basin(basin)
		if err != nil {
			return err
		}
		for _, rec := range sch.Subgrid.Levels(basin, b.CurrentLevel) {
			if err := sch.Writer.WriteSubgrid(output.SubgridRecord{Time: sol.T, BasinId: basin, SubgridId: rec.SubgridId, Level: rec.Level}); err != nil {
				return err
			}
		}
	}
	return nil
}

// tightenTolerances implements step 10: new reltol is progressively
// tightened over logarithmic checkpoints (§4.4): reltol <- max(10^(log10
// (reltol) - log10(cum_state/avg_rate)), 1e-14), applied per cumulative
// state component.
func (sch *Scheduler) tightenTolerances(sol *state.Solution) {
	if sch.nextCheckpoint >= len(sch.tolCheckpoints) || sol.T < sch.tolCheckpoints[sch.nextCheckpoint] {
		return
	}
	for i := range sch.reltol {
		cum := sol.U[i]
		if cum == 0 {
			continue
		}
		avgRate := absf(cum) / maxf(sol.T, 1e-12)
		if avgRate <= 0 {
			continue
		}
		candidate := math.Log10(sch.reltol[i]) - math.Log10(absf(cum)/avgRate)
		next := math.Pow(10, candidate)
		if next < 1e-14 {
			next = 1e-14
		}
		if next < sch.reltol[i] {
			sch.reltol[i] = next
		}
	}
	sch.nextCheckpoint++
}

// Reltol exposes the current per-component relative tolerance vector for
// the integrator driver in core.
func (sch *Scheduler) Reltol() []float64 { return sch.reltol }

// SetTolCheckpoints installs the logarithmic checkpoints at which step 10
// re-tightens reltol.
func (sch *Scheduler) SetTolCheckpoints(checkpoints []float64, initialReltol float64) {
	sch.tolCheckpoints = checkpoints
	for i := range sch.reltol {
		sch.reltol[i] = initialReltol
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
