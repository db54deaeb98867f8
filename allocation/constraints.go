// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocation

import (
	"fmt"

	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
)

func balanceName(basin network.NodeId) string   { return fmt.Sprintf("balance[Basin:%d]", basin.Ordinal) }
func levelLinkName(basin network.NodeId) string { return fmt.Sprintf("level_link[Basin:%d]", basin.Ordinal) }
func connectorEqName(node network.NodeId) string {
	return fmt.Sprintf("connector[%v:%d]", node.Type, node.Ordinal)
}
func returnFlowEqName(node network.NodeId) string {
	return fmt.Sprintf("return_flow[%v:%d]", node.Type, node.Ordinal)
}
func demandLinkName(node network.NodeId) string {
	return fmt.Sprintf("demand_link[%v:%d]", node.Type, node.Ordinal)
}
func fairnessName(node network.NodeId, p int, side string) string {
	return fmt.Sprintf("fairness[%v:%d,%d,%s]", node.Type, node.Ordinal, p, side)
}
func errorFirstBoundName(node network.NodeId, p int, side string) string {
	return fmt.Sprintf("error_first_bound[%v:%d,%d,%s]", node.Type, node.Ordinal, p, side)
}

// linearizableConnectors are the node types whose flow is an (almost
// everywhere) differentiable function of upstream/downstream level, per
// §4.5 step 5 ("LinearResistance, ManningResistance, TabulatedRatingCurve").
var linearizableConnectors = map[network.NodeType]bool{
	network.LinearResistance:     true,
	network.ManningResistance:    true,
	network.TabulatedRatingCurve: true,
}

// buildConstraints registers the static constraint structure of §4.5:
// variable participation and row/column shape never change across
// refreshes, only the coefficients and right-hand sides Refresh rewrites.
func (m *Model) buildConstraints(g *network.Graph, s *param.Store, subnet int32) error {
	for basin, bv := range m.basinVars {
		terms := []Term{{bv.storageChange, 1}}
		for _, link := range g.Inflow(basin) {
			if v, ok := m.flowLink[link.Id]; ok {
				terms = append(terms, Term{v, -1}) // coefficient rewritten to -dt by Refresh
			}
		}
		for _, link := range g.Outflow(basin) {
			if v, ok := m.flowLink[link.Id]; ok {
				terms = append(terms, Term{v, 1}) // coefficient rewritten to +dt by Refresh
			}
		}
		terms = append(terms, Term{bv.lowStorageFactor, 0}) // rewritten by Refresh
		m.addConstraint(balanceName(basin), terms, EQ, 0)

		m.addConstraint(levelLinkName(basin), []Term{
			{bv.level, 1},
			{bv.storageChange, 0}, // rewritten to -1/area by Refresh
		}, EQ, 0)
	}

	for nt := range linearizableConnectors {
		for _, node := range g.NodesOfType(nt) {
			if err := m.buildConnectorConstraint(g, node); err != nil {
				return err
			}
		}
	}

	for _, node := range g.NodesOfType(network.UserDemand) {
		if err := m.buildUserDemandConstraints(g, s, node); err != nil {
			return err
		}
	}

	for _, nt := range []network.NodeType{network.Pump, network.Outlet} {
		for _, node := range g.NodesOfType(nt) {
			if err := m.buildFixedFlowConstraint(g, s, node); err != nil {
				return err
			}
		}
	}

	for _, pair := range m.errorPairs {
		m.buildErrorConstraints(pair)
	}

	return nil
}

// buildConnectorConstraint registers
// flow[link] - dq/dh_up*h_up - dq/dh_dn*h_dn = rhs, where h_up/h_dn are
// basin_level variables if the neighbor is a basin, or folded into rhs as a
// constant otherwise. Coefficients/rhs are placeholders here; Refresh fills
// them in from the current physical-layer linearization (§4.5 step 5).
func (m *Model) buildConnectorConstraint(g *network.Graph, node network.NodeId) error {
	out, err := g.UniqueOutflow(node)
	if err != nil {
		return nil
	}
	flowVar, ok := m.flowLink[out.Id]
	if !ok {
		return nil
	}
	in, err := g.UniqueInflow(node)
	if err != nil {
		return nil
	}
	terms := []Term{{flowVar, 1}}
	if up, ok := m.basinVars[in.From]; ok {
		terms = append(terms, Term{up.level, 0})
	}
	if dn, ok := m.basinVars[out.To]; ok {
		terms = append(terms, Term{dn.level, 0})
	}
	m.addConstraint(connectorEqName(node), terms, EQ, 0)
	return nil
}

// buildUserDemandConstraints registers the return-flow equality and the
// demand-allocated-equals-intake-flow linkage for a UserDemand node.
func (m *Model) buildUserDemandConstraints(g *network.Graph, s *param.Store, node network.NodeId) error {
	in, err := g.UniqueInflow(node)
	if err != nil {
		return nil
	}
	out, err := g.UniqueOutflow(node)
	if err != nil {
		return nil
	}
	inVar, okIn := m.flowLink[in.Id]
	outVar, okOut := m.flowLink[out.Id]
	if !okIn {
		return nil
	}
	if okOut {
		m.addConstraint(returnFlowEqName(node), []Term{{outVar, 1}, {inVar, 0}}, EQ, 0) // coefficient rewritten by Refresh
	}

	d, err := s.Demand(node)
	if err != nil {
		return err
	}
	terms := []Term{{inVar, 1}}
	for p, has := range d.HasDemandPriority {
		if !has {
			continue
		}
		if v, ok := m.Var(priorityKey("user_demand_allocated", node, p)); ok {
			terms = append(terms, Term{v, -1})
		}
	}
	m.addConstraint(demandLinkName(node), terms, EQ, 0)
	return nil
}

func fixedFlowName(node network.NodeId) string {
	return fmt.Sprintf("fixed_flow[%v:%d]", node.Type, node.Ordinal)
}

// buildFixedFlowConstraint registers, for a pump/outlet that is *not*
// allocation-controlled, the row tying its flow to the simulated commanded
// rate scaled by its upstream basin's low_storage_factor (§4.5 step 6):
// flow[link] - commanded_rate * low_storage_factor[upstream] = 0.
// Allocation-controlled pumps/outlets are left as free LP variables and get
// no row here; their flow variable keeps the bounds set by buildFlowVar
// (lower bound 0, no upper bound), which Refresh does not change.
func (m *Model) buildFixedFlowConstraint(g *network.Graph, s *param.Store, node network.NodeId) error {
	cp, err := s.Connector(node)
	if err != nil {
		return err
	}
	if cp.AllocationControlled {
		return nil
	}
	out, err := g.UniqueOutflow(node)
	if err != nil {
		return nil
	}
	flowVar, ok := m.flowLink[out.Id]
	if !ok {
		return nil
	}
	in, err := g.UniqueInflow(node)
	if err != nil {
		return nil
	}
	up, ok := m.basinVars[in.From]
	if !ok {
		return nil
	}
	m.addConstraint(fixedFlowName(node), []Term{{flowVar, 1}, {up.lowStorageFactor, 0}}, EQ, 0) // coefficient rewritten by Refresh
	return nil
}

// buildErrorConstraints registers, for one demand-priority triple, the
// max-allocation error-first bound `d*error_first + allocated >= d` (d is
// rewritten each refresh via SetCoef/SetRHS) and the fairness row
// `error_second >= error_first - average_error` (purely structural, never
// refreshed).
func (m *Model) buildErrorConstraints(pair errorPair) {
	m.addConstraint(errorFirstBoundName(pair.node, pair.priority, pair.side),
		[]Term{{pair.first, 0}, {pair.allocated, 1}}, GE, 0) // coefficient/rhs rewritten by Refresh

	avg, ok := m.Var(priorityKeyScalar("average_flow_unit_error", pair.priority))
	if !ok {
		return
	}
	m.addConstraint(fairnessName(pair.node, pair.priority, pair.side),
		[]Term{{pair.second, 1}, {pair.first, -1}, {avg, 1}}, GE, 0)
}
