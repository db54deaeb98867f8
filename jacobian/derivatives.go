// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jacobian

import (
	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
	"github.com/Deltares/Ribasim-sub001/physics"
	"github.com/Deltares/Ribasim-sub001/state"
)

// rowDerivs computes the nonzero entries of one row of J_int at the current
// solution point, in the same column order connectorDeps/BuildPattern
// produced: analytic, per connector/basin type, per §9's explicit choice of
// hand-derived derivatives over automatic differentiation (the flow laws
// are few and simple enough that AD would add a dependency and a layer of
// indirection without simplifying anything a hand-assembled element
// Jacobian already does by hand (e.g. a finite-element solver's Kuu/Kup
// stiffness-block assembly).
func rowDerivs(d *Builder, class state.Class, node network.NodeId, t float64) ([]float64, error) {
	g, s := d.Graph, d.Store
	switch class {
	case state.ClassTabulatedRatingCurve:
		hUp, err := s.UpstreamLevel(node, t)
		if err != nil {
			return nil, err
		}
		p, err := s.Connector(node)
		if err != nil {
			return nil, err
		}
		dq := physics.TabulatedRatingCurveFlowDeriv(hUp, p)
		return d.basinChainDerivs(node, dq, 0)

	case state.ClassLinearResistance:
		hUp, hDn, p, err := d.upDnParams(node, t)
		if err != nil {
			return nil, err
		}
		dUp, dDn := physics.LinearResistanceFlowDeriv(hUp, hDn, p)
		return d.basinChainDerivs(node, dUp, dDn)

	case state.ClassManningResistance:
		hUp, hDn, p, err := d.upDnParams(node, t)
		if err != nil {
			return nil, err
		}
		dUp, dDn := physics.ManningResistanceFlowDeriv(hUp, hDn, p)
		return d.basinChainDerivs(node, dUp, dDn)

	case state.ClassPump, state.ClassOutlet:
		p, err := s.Connector(node)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return zeros(len(pat(g, node))), nil
		}
		storage, err := d.upstreamBasinStorage(node)
		if err != nil {
			return nil, err
		}
		dPhi := physics.LowStorageFactorDeriv(storage, s.LowStorageThreshold)
		return d.basinChainDerivsByStorage(node, p.CommandedFlowRate*dPhi, 0)

	case state.ClassUserDemandInflow, state.ClassUserDemandOutflow:
		p, err := s.Connector(node)
		if err != nil {
			return nil, err
		}
		storage, err := d.upstreamBasinStorage(node)
		if err != nil {
			return nil, err
		}
		hUp, err := s.UpstreamLevel(node, t)
		if err != nil {
			return nil, err
		}
		dPhi := physics.LowStorageFactorDeriv(storage, s.LowStorageThreshold)
		levelFactor := physics.LowStorageFactor(hUp, s.LowStorageThreshold)
		dLevelFactor := physics.LowStorageFactorDeriv(hUp, s.LowStorageThreshold)
		// d(phi*levelFactor)/dStorage via chain rule: phi depends on storage
		// directly, levelFactor depends on level, level depends on storage
		// through the basin's storage->level slope.
		scale := p.CommandedFlowRate
		if class == state.ClassUserDemandOutflow {
			rf := 0.0
			if p.ReturnFactor != nil {
				rf = p.ReturnFactor.At(t)
			}
			scale *= rf
		}
		dLdS := 0.0
		if in, err := g.UniqueInflow(node); err == nil && in.From.Type == network.Basin {
			b, err := s.Basin(in.From)
			if err != nil {
				return nil, err
			}
			_, dLdS = b.StorageToLevel.AtDeriv(b.CurrentStorage)
		}
		dqDStorage := scale * (dPhi*levelFactor + physics.LowStorageFactor(storage, s.LowStorageThreshold)*dLevelFactor*dLdS)
		return d.basinChainDerivsByStorage(node, dqDStorage, 0)

	case state.ClassBasinEvaporation:
		b, err := s.Basin(node)
		if err != nil {
			return nil, err
		}
		dPhi := physics.LowStorageFactorDeriv(b.CurrentStorage, s.LowStorageThreshold)
		return []float64{tsAt(b.Evaporation, t) * dPhi}, nil

	case state.ClassBasinInfiltration:
		b, err := s.Basin(node)
		if err != nil {
			return nil, err
		}
		dPhi := physics.LowStorageFactorDeriv(b.CurrentStorage, s.LowStorageThreshold)
		return []float64{tsAt(b.Infiltration, t) * dPhi}, nil

	case state.ClassPidIntegral:
		pp := s.Pids[node.Index()]
		if pp.Listen.Node.Type != network.Basin {
			return nil, nil
		}
		switch pp.Listen.Variable {
		case "storage":
			return []float64{-1}, nil
		case "level":
			b, err := s.Basin(pp.Listen.Node)
			if err != nil {
				return nil, err
			}
			_, dLdS := b.StorageToLevel.AtDeriv(b.CurrentStorage)
			return []float64{-dLdS}, nil
		default:
			// flow_rate listeners don't resolve to a basin coordinate at
			// all; BuildPattern never assigns this row a column in that
			// case (see BuildPattern's PID loop), so there is nothing to
			// return here.
			return nil, nil
		}

	default:
		return nil, nil
	}
}

func tsAt(ts *param.TimeSeries, t float64) float64 {
	if ts == nil {
		return 0
	}
	return ts.At(t)
}

func (d *Builder) upDnParams(node network.NodeId, t float64) (hUp, hDn float64, p *param.ConnectorParams, err error) {
	hUp, err = d.Store.UpstreamLevel(node, t)
	if err != nil {
		return
	}
	hDn, err = d.Store.DownstreamLevel(node, t)
	if err != nil {
		return
	}
	p, err = d.Store.Connector(node)
	return
}

func (d *Builder) upstreamBasinStorage(node network.NodeId) (float64, error) {
	link, err := d.Graph.UniqueInflow(node)
	if err != nil {
		return 0, err
	}
	if link.From.Type != network.Basin {
		return 1e300, nil
	}
	b, err := d.Store.Basin(link.From)
	if err != nil {
		return 0, err
	}
	return b.CurrentStorage, nil
}

// basinChainDerivs converts level-space derivatives (dq/dhUp, dq/dhDn) into
// storage-space derivatives for whichever of the connector's upstream and
// downstream nodes are basins, via the chain rule dh/ds = 1/area(h), in the
// same column order BuildPattern's connectorDeps assigned.
func (d *Builder) basinChainDerivs(node network.NodeId, dQdHup, dQdHdn float64) ([]float64, error) {
	var out []float64
	inLink, err := d.Graph.UniqueInflow(node)
	if err != nil {
		return nil, err
	}
	if inLink.From.Type == network.Basin {
		b, err := d.Store.Basin(inLink.From)
		if err != nil {
			return nil, err
		}
		_, dLdS := b.StorageToLevel.AtDeriv(b.CurrentStorage)
		out = append(out, dQdHup*dLdS)
	}
	outLink, err := d.Graph.UniqueOutflow(node)
	if err != nil {
		return nil, err
	}
	if outLink.To.Type == network.Basin {
		b, err := d.Store.Basin(outLink.To)
		if err != nil {
			return nil, err
		}
		_, dLdS := b.StorageToLevel.AtDeriv(b.CurrentStorage)
		out = append(out, dQdHdn*dLdS)
	}
	return out, nil
}

// basinChainDerivsByStorage is basinChainDerivs' counterpart for flow laws
// that are already expressed as a derivative w.r.t. the upstream basin's
// storage directly (Pump/Outlet/UserDemand's low-storage factor), needing
// no additional chain-rule step.
func (d *Builder) basinChainDerivsByStorage(node network.NodeId, dQdStorageUp, dQdStorageDn float64) ([]float64, error) {
	var out []float64
	inLink, err := d.Graph.UniqueInflow(node)
	if err != nil {
		return nil, err
	}
	if inLink.From.Type == network.Basin {
		out = append(out, dQdStorageUp)
	}
	outLink, err := d.Graph.UniqueOutflow(node)
	if err != nil {
		return nil, err
	}
	if outLink.To.Type == network.Basin {
		out = append(out, dQdStorageDn)
	}
	return out, nil
}

func zeros(n int) []float64 { return make([]float64, n) }

// pat is a tiny helper used only to size the Pump/Outlet inactive-node zero
// slice to the number of basin-typed endpoints, without duplicating
// connectorDeps' link lookups on the (rare) inactive path.
func pat(g *network.Graph, node network.NodeId) []int {
	n := 0
	if in, err := g.UniqueInflow(node); err == nil && in.From.Type == network.Basin {
		n++
	}
	if out, err := g.UniqueOutflow(node); err == nil && out.To.Type == network.Basin {
		n++
	}
	return make([]int, n)
}
