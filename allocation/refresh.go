// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocation

import (
	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
	"github.com/Deltares/Ribasim-sub001/physics"
)

// Cycle owns the per-subnetwork Model plus the bookkeeping Refresh needs to
// turn the append-only cumulative counters in param.Store into per-interval
// mean rates, the same way callback.Scheduler tracks lastSaveT/lastSaveU to
// average flows over a saveat interval without ever resetting the
// underlying cumulative state.
type Cycle struct {
	Model *Model
	Dt    float64

	lastT   float64
	lastCum map[network.NodeId]float64
	haveLast bool
}

// NewCycle wraps a built Model with the Δt_allocation clock of §4.5.
func NewCycle(m *Model, dt float64) *Cycle {
	return &Cycle{Model: m, Dt: dt, lastCum: make(map[network.NodeId]float64)}
}

// Refresh implements the 8-step protocol of §4.5 ahead of one Solve call, at
// interval [t, t+Dt]. Step 4 (fix LevelBoundary levels) is folded into step
// 5's linearization, since this model resolves non-basin neighbor levels
// straight into each connector row's RHS rather than through a dedicated
// boundary_level variable. Step 8 (warm start) is a no-op: GonumSolver runs
// its own phase-1 search from scratch every Solve, since gonum's Simplex
// does not expose a stable warm-start hook (see DESIGN.md).
func (c *Cycle) Refresh(g *network.Graph, s *param.Store, t float64) error {
	tEnd := t + c.Dt
	if err := c.refreshBasins(g, s, tEnd); err != nil {
		return err
	}
	if err := c.refreshFlowBoundaries(g, s, tEnd); err != nil {
		return err
	}
	if err := c.refreshConnectors(g, s, tEnd); err != nil {
		return err
	}
	if err := c.refreshFixedFlows(g, s); err != nil {
		return err
	}
	if err := c.refreshDemands(s, tEnd); err != nil {
		return err
	}
	if err := c.refreshReturnFlows(g, s, tEnd); err != nil {
		return err
	}
	c.snapshotCumulative(g, s, tEnd)
	return nil
}

// refreshBasins implements steps 1 and 2: pin storage_start to the current
// simulated storage, bound storage_change to keep total storage in
// [0, s_max], and rewrite the balance/level-link row coefficients.
func (c *Cycle) refreshBasins(g *network.Graph, s *param.Store, tEnd float64) error {
	m := c.Model
	for basin, bv := range m.basinVars {
		b, err := s.Basin(basin)
		if err != nil {
			return err
		}
		sNow := b.CurrentStorage
		sMax := b.StorageToLevel.Max()
		m.Solver.SetBounds(bv.storageStart, sNow, sNow)
		m.Solver.SetBounds(bv.storageChange, -sNow, sMax-sNow)

		forcingPlus := c.meanForcingRate(basin, b, tEnd)
		fluxes := physics.EvalBasinFluxes(b, sNow, s.LowStorageThreshold, tEnd)
		forcingMinusRate := fluxes.Evaporation + fluxes.Infiltration
		// EvalBasinFluxes already applies phi; divide it back out so the LP
		// can apply its own low_storage_factor decision variable to the raw
		// rate instead of double-counting the reduction.
		phi := physics.LowStorageFactor(sNow, s.LowStorageThreshold)
		if phi > 1e-12 {
			forcingMinusRate /= phi
		}

		if err := m.setCoef(balanceName(basin), bv.storageChange, 1); err != nil {
			return err
		}
		for _, link := range g.Inflow(basin) {
			if v, ok := m.flowLink[link.Id]; ok {
				if err := m.setCoef(balanceName(basin), v, -c.Dt); err != nil {
					return err
				}
			}
		}
		for _, link := range g.Outflow(basin) {
			if v, ok := m.flowLink[link.Id]; ok {
				if err := m.setCoef(balanceName(basin), v, c.Dt); err != nil {
					return err
				}
			}
		}
		if err := m.setCoef(balanceName(basin), bv.lowStorageFactor, c.Dt*forcingMinusRate); err != nil {
			return err
		}
		if err := m.setRHS(balanceName(basin), c.Dt*forcingPlus); err != nil {
			return err
		}

		area := b.Area(b.CurrentLevel)
		if area <= 0 {
			area = 1e-9
		}
		if err := m.setCoef(levelLinkName(basin), bv.storageChange, -1/area); err != nil {
			return err
		}
		if err := m.setRHS(levelLinkName(basin), b.CurrentLevel); err != nil {
			return err
		}
	}
	return nil
}

// meanForcingRate returns the mean precipitation+drainage+surface-runoff
// rate since the previous allocation refresh, from the append-only
// cumulative counters callback.Scheduler maintains (§4.4 step 3), without
// ever resetting them.
func (c *Cycle) meanForcingRate(basin network.NodeId, b *param.BasinParams, tEnd float64) float64 {
	cum := b.CumulativePrecipitation + b.CumulativeDrainage + b.CumulativeSurfaceRunoff
	if !c.haveLast {
		return 0
	}
	dt := tEnd - c.lastT
	if dt <= 0 {
		return 0
	}
	return (cum - c.lastCum[basin]) / dt
}

func (c *Cycle) snapshotCumulative(g *network.Graph, s *param.Store, tEnd float64) {
	for _, basin := range g.NodesOfType(network.Basin) {
		b, err := s.Basin(basin)
		if err != nil {
			continue
		}
		c.lastCum[basin] = b.CumulativePrecipitation + b.CumulativeDrainage + b.CumulativeSurfaceRunoff
	}
	c.lastT = tEnd
	c.haveLast = true
}

// refreshFlowBoundaries implements step 3: fix every FlowBoundary's
// flow[link] at the boundary's rate at the end of the interval.
func (c *Cycle) refreshFlowBoundaries(g *network.Graph, s *param.Store, tEnd float64) error {
	for _, link := range g.Links() {
		if link.Type != network.FlowLink {
			continue
		}
		var boundary network.NodeId
		switch {
		case link.From.Type == network.FlowBoundary:
			boundary = link.From
		case link.To.Type == network.FlowBoundary:
			boundary = link.To
		default:
			continue
		}
		v, ok := c.Model.flowLink[link.Id]
		if !ok {
			continue
		}
		bnd, err := s.Boundary(boundary)
		if err != nil {
			return err
		}
		rate := bnd.FlowRate.At(tEnd)
		c.Model.Solver.SetBounds(v, rate, rate)
	}
	return nil
}

// refreshConnectors implements step 5: linearize LinearResistance,
// ManningResistance and TabulatedRatingCurve at end-of-step levels.
func (c *Cycle) refreshConnectors(g *network.Graph, s *param.Store, tEnd float64) error {
	m := c.Model
	for nt := range linearizableConnectors {
		for _, node := range g.NodesOfType(nt) {
			out, err := g.UniqueOutflow(node)
			if err != nil {
				continue
			}
			flowVar, ok := m.flowLink[out.Id]
			if !ok {
				continue
			}
			in, err := g.UniqueInflow(node)
			if err != nil {
				continue
			}
			hUp, err := s.UpstreamLevel(node, tEnd)
			if err != nil {
				return err
			}
			hDn, err := s.DownstreamLevel(node, tEnd)
			if err != nil {
				return err
			}
			cp, err := s.Connector(node)
			if err != nil {
				return err
			}
			var q0, dqdHup, dqdHdn float64
			switch nt {
			case network.LinearResistance:
				q0 = physics.LinearResistanceFlow(hUp, hDn, cp)
				dqdHup, dqdHdn = physics.LinearResistanceFlowDeriv(hUp, hDn, cp)
			case network.ManningResistance:
				q0 = physics.ManningResistanceFlow(hUp, hDn, cp)
				dqdHup, dqdHdn = physics.ManningResistanceFlowDeriv(hUp, hDn, cp)
			case network.TabulatedRatingCurve:
				q0 = physics.TabulatedRatingCurveFlow(hUp, cp)
				dqdHup = physics.TabulatedRatingCurveFlowDeriv(hUp, cp)
				dqdHdn = 0
			}
			name := connectorEqName(node)
			if err := m.setCoef(name, flowVar, 1); err != nil {
				return err
			}
			rhs := q0
			if up, ok := m.basinVars[in.From]; ok {
				if err := m.setCoef(name, up.level, -dqdHup); err != nil {
					return err
				}
				rhs -= dqdHup * hUp
			}
			if dn, ok := m.basinVars[out.To]; ok {
				if err := m.setCoef(name, dn.level, -dqdHdn); err != nil {
					return err
				}
				rhs -= dqdHdn * hDn
			}
			if err := m.setRHS(name, rhs); err != nil {
				return err
			}
		}
	}
	return nil
}

// refreshFixedFlows implements step 6 for pumps/outlets that are not
// allocation-controlled.
func (c *Cycle) refreshFixedFlows(g *network.Graph, s *param.Store) error {
	m := c.Model
	for _, nt := range []network.NodeType{network.Pump, network.Outlet} {
		for _, node := range g.NodesOfType(nt) {
			cp, err := s.Connector(node)
			if err != nil {
				return err
			}
			if cp.AllocationControlled {
				continue
			}
			in, err := g.UniqueInflow(node)
			if err != nil {
				continue
			}
			up, ok := m.basinVars[in.From]
			if !ok {
				continue
			}
			name := fixedFlowName(node)
			if _, known := m.conByName[name]; !known {
				continue
			}
			if err := m.setCoef(name, up.lowStorageFactor, -cp.CommandedFlowRate); err != nil {
				return err
			}
		}
	}
	return nil
}

// refreshReturnFlows rewrites each UserDemand's return-flow equality row
// (flow_out - return_factor(t)*flow_in = 0) with the interpolated return
// factor at the end of the interval; a UserDemand with no outflow link (no
// return path) has no such row and is skipped.
func (c *Cycle) refreshReturnFlows(g *network.Graph, s *param.Store, tEnd float64) error {
	m := c.Model
	for _, node := range g.NodesOfType(network.UserDemand) {
		in, err := g.UniqueInflow(node)
		if err != nil {
			continue
		}
		inVar, ok := m.flowLink[in.Id]
		if !ok {
			continue
		}
		name := returnFlowEqName(node)
		if _, known := m.conByName[name]; !known {
			continue
		}
		cp, err := s.Connector(node)
		if err != nil {
			return err
		}
		rate := 0.0
		if cp.ReturnFactor != nil {
			rate = cp.ReturnFactor.At(tEnd)
		}
		if err := m.setCoef(name, inVar, -rate); err != nil {
			return err
		}
	}
	return nil
}

// refreshDemands implements step 7: set the upper bound of every
// *_allocated variable to the interpolated demand, and rewrite the
// error-first bound row's `d` coefficient/RHS to match.
func (c *Cycle) refreshDemands(s *param.Store, tEnd float64) error {
	m := c.Model
	for _, pair := range m.errorPairs {
		d, err := s.Demand(pair.node)
		if err != nil {
			return err
		}
		ts, ok := d.DemandByPriority[pair.priority]
		if !ok || ts == nil {
			continue
		}
		demand := ts.At(tEnd)
		m.Solver.SetBounds(pair.allocated, 0, demand)
		name := errorFirstBoundName(pair.node, pair.priority, pair.side)
		if err := m.setCoef(name, pair.first, demand); err != nil {
			return err
		}
		if err := m.setRHS(name, demand); err != nil {
			return err
		}
	}
	return nil
}
