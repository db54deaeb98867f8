// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package physics

import (
	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
	"github.com/Deltares/Ribasim-sub001/state"
)

// Dispatch holds the graph/store/layout triple the RHS reads; the
// per-class node lists come from the Layout's precomputed ranges, and each
// connector's neighbours are looked up in the graph on every call. This is the "flat
// enumeration with one function per variant" dispatch §9 calls for: a
// small, closed set of call sites (here, the RHS loop; the jacobian
// package has its own for derivatives; the allocation package has its own
// for linearization), never a deep interface hierarchy.
type Dispatch struct {
	Graph  *network.Graph
	Store  *param.Store
	Layout *state.Layout
}

// NewDispatch builds a Dispatch for a fully-populated graph/store/layout
// triple.
func NewDispatch(g *network.Graph, s *param.Store, l *state.Layout) *Dispatch {
	return &Dispatch{Graph: g, Store: s, Layout: l}
}

// Eval computes du/dt into sol.Dudt for the current sol.U/sol.T, implementing
// the RHS of §4.2. It is a pure function of (u, params, t): every level and
// storage it reads comes from the parameter store's current-caches, which
// only the negative-storage guard callback (§4.4 step 1) is allowed to
// write, and every structural parameter is immutable for the run (§3
// Lifecycle) save for the disjoint mutable fields of §5.
func (d *Dispatch) Eval(sol *state.Solution) error {
	for i := range sol.Dudt {
		sol.Dudt[i] = 0
	}

	if err := d.evalConnectorClass(state.ClassTabulatedRatingCurve, network.TabulatedRatingCurve, sol); err != nil {
		return err
	}
	if err := d.evalConnectorClass(state.ClassPump, network.Pump, sol); err != nil {
		return err
	}
	if err := d.evalConnectorClass(state.ClassOutlet, network.Outlet, sol); err != nil {
		return err
	}
	if err := d.evalUserDemand(sol); err != nil {
		return err
	}
	if err := d.evalConnectorClass(state.ClassLinearResistance, network.LinearResistance, sol); err != nil {
		return err
	}
	if err := d.evalConnectorClass(state.ClassManningResistance, network.ManningResistance, sol); err != nil {
		return err
	}
	if err := d.evalBasinFluxes(sol); err != nil {
		return err
	}
	if err := d.evalPidIntegrals(sol); err != nil {
		return err
	}
	return nil
}

func (d *Dispatch) evalConnectorClass(class state.Class, t network.NodeType, sol *state.Solution) error {
	r := d.Layout.Range(class)
	for i, node := range r.Nodes {
		q, err := d.flow(node, t, sol.T)
		if err != nil {
			return err
		}
		sol.Dudt[r.Start+i] = q
	}
	return nil
}

// flow dispatches to the node type's flow law, implementing the capability
// set {inflow_link, outflow_link, flow_function} of §9 via a type switch —
// the "small number of call sites" the design notes sanction, not a
// polymorphic interface hierarchy.
func (d *Dispatch) flow(node network.NodeId, t network.NodeType, time float64) (float64, error) {
	hUp, err := d.Store.UpstreamLevel(node, time)
	if err != nil {
		return 0, err
	}
	hDn, err := d.Store.DownstreamLevel(node, time)
	if err != nil {
		return 0, err
	}
	p, err := d.Store.Connector(node)
	if err != nil {
		return 0, err
	}
	switch t {
	case network.LinearResistance:
		return LinearResistanceFlow(hUp, hDn, p), nil
	case network.ManningResistance:
		return ManningResistanceFlow(hUp, hDn, p), nil
	case network.TabulatedRatingCurve:
		return TabulatedRatingCurveFlow(hUp, p), nil
	case network.Pump, network.Outlet:
		upStorage, err := d.upstreamStorage(node)
		if err != nil {
			return 0, err
		}
		return PumpOrOutletFlow(upStorage, d.Store.LowStorageThreshold, p), nil
	default:
		return 0, chk.Err("physics.flow: node type %v has no registered flow law", t)
	}
}

func (d *Dispatch) upstreamStorage(node network.NodeId) (float64, error) {
	link, err := d.Graph.UniqueInflow(node)
	if err != nil {
		return 0, err
	}
	if link.From.Type != network.Basin {
		return 1e300, nil // unlimited availability from a boundary
	}
	b, err := d.Store.Basin(link.From)
	if err != nil {
		return 0, err
	}
	return b.CurrentStorage, nil
}

func (d *Dispatch) evalUserDemand(sol *state.Solution) error {
	inRange := d.Layout.Range(state.ClassUserDemandInflow)
	outRange := d.Layout.Range(state.ClassUserDemandOutflow)
	for i, node := range inRange.Nodes {
		p, err := d.Store.Connector(node)
		if err != nil {
			return err
		}
		hUp, err := d.Store.UpstreamLevel(node, sol.T)
		if err != nil {
			return err
		}
		upStorage, err := d.upstreamStorage(node)
		if err != nil {
			return err
		}
		q := UserDemandFlow(upStorage, d.Store.LowStorageThreshold, hUp, 0, p)
		sol.Dudt[inRange.Start+i] = q

		returnFactor := 0.0
		if p.ReturnFactor != nil {
			returnFactor = p.ReturnFactor.At(sol.T)
		}
		sol.Dudt[outRange.Start+i] = returnFactor * q
	}
	return nil
}

func (d *Dispatch) evalBasinFluxes(sol *state.Solution) error {
	evapRange := d.Layout.Range(state.ClassBasinEvaporation)
	infilRange := d.Layout.Range(state.ClassBasinInfiltration)
	for i, basin := range evapRange.Nodes {
		b, err := d.Store.Basin(basin)
		if err != nil {
			return err
		}
		fx := EvalBasinFluxes(b, b.CurrentStorage, d.Store.LowStorageThreshold, sol.T)
		sol.Dudt[evapRange.Start+i] = fx.Evaporation
		sol.Dudt[infilRange.Start+i] = fx.Infiltration
	}
	return nil
}

func (d *Dispatch) evalPidIntegrals(sol *state.Solution) error {
	r := d.Layout.Range(state.ClassPidIntegral)
	for i, node := range r.Nodes {
		pp := d.Store.Pids[node.Index()]
		listened, err := d.Store.Variable(pp.Listen, sol.T)
		if err != nil {
			return err
		}
		setpoint := pp.Setpoint.At(sol.T)
		sol.Dudt[r.Start+i] = PidIntegralDeriv(setpoint, listened)
	}
	return nil
}
