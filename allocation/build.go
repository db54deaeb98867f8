// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocation

import (
	"fmt"

	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
)

// demandNodeTypes lists the node types that carry per-priority demand data,
// in the order §4.5's variable list enumerates them.
var demandNodeTypes = []network.NodeType{network.UserDemand, network.FlowDemand, network.LevelDemand}

// Build constructs the static variable/constraint structure of the
// subnetwork's LP (§4.5's full variable list), to be called once per
// subnetwork at setup. Subsequent allocation cycles call Refresh instead.
func Build(g *network.Graph, s *param.Store, subnet int32, solver Solver) (*Model, error) {
	m := NewModel(subnet, solver)

	nodes := g.Subnetwork(subnet)
	inSubnet := make(map[network.NodeId]bool, len(nodes))
	for _, n := range nodes {
		inSubnet[n] = true
	}

	for _, basin := range g.NodesOfType(network.Basin) {
		if !inSubnet[basin] {
			continue
		}
		m.buildBasinVars(basin)
	}

	for _, link := range g.Links() {
		if link.Type != network.FlowLink {
			continue
		}
		if !inSubnet[link.From] && !inSubnet[link.To] {
			continue
		}
		m.buildFlowVar(link, s)
	}

	for _, dt := range demandNodeTypes {
		for _, node := range g.NodesOfType(dt) {
			if !inSubnet[node] {
				continue
			}
			d, err := s.Demand(node)
			if err != nil {
				return nil, err
			}
			m.buildDemandVars(node, d)
		}
	}

	if subnet == 1 {
		for _, link := range g.Links() {
			if link.Type != network.FlowLink {
				continue
			}
			if g.SubnetworkOf(link.From) == 1 && g.SubnetworkOf(link.To) != 0 && g.SubnetworkOf(link.To) != 1 {
				m.buildInterSubnetworkVars(link)
			}
		}
	}

	for _, p := range m.priorities {
		m.buildPriorityErrorVars(p)
	}

	if err := m.buildConstraints(g, s, subnet); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Model) buildBasinVars(basin network.NodeId) {
	start := m.addVar(basinKey("storage_start", basin), -Inf, Inf, KindBasinStorageStart, 0)
	change := m.addVar(basinKey("storage_change", basin), -Inf, Inf, KindBasinStorageChange, 0)
	level := m.addVar(basinKey("level", basin), -Inf, Inf, KindBasinLevel, 0)
	lsf := m.addVar(basinKey("low_storage_factor", basin), 0, 1, KindLowStorageFactor, 0)
	m.basinVars[basin] = basinVarSet{storageStart: start, storageChange: change, level: level, lowStorageFactor: lsf}
}

func (m *Model) buildFlowVar(link network.Link, s *param.Store) {
	lo, hi := -Inf, Inf
	switch link.From.Type {
	case network.LinearResistance:
		if cp, err := s.Connector(link.From); err == nil && cp.MaxFlow > 0 {
			lo, hi = -cp.MaxFlow, cp.MaxFlow
		}
	case network.Pump, network.Outlet:
		lo = 0
	case network.UserDemand:
		lo = 0
	}
	m.flowLink[link.Id] = m.addVar(flowKey(link.Id), lo, hi, KindFlow, 0)
}

func (m *Model) buildDemandVars(node network.NodeId, d *param.DemandParams) {
	for p, has := range d.HasDemandPriority {
		if !has {
			continue
		}
		m.registerPriority(p)
		switch node.Type {
		case network.UserDemand:
			alloc := m.addVar(priorityKey("user_demand_allocated", node, p), 0, Inf, KindUserDemandAllocated, p)
			first := m.addVar(priorityKey("user_demand_error_first", node, p), 0, Inf, KindUserDemandErrorFirst, p)
			second := m.addVar(priorityKey("user_demand_error_second", node, p), 0, Inf, KindUserDemandErrorSecond, p)
			m.recordErrorPair(node, p, "", alloc, first, second)
		case network.FlowDemand:
			alloc := m.addVar(priorityKey("flow_demand_allocated", node, p), 0, Inf, KindFlowDemandAllocated, p)
			first := m.addVar(priorityKey("flow_demand_error_first", node, p), 0, Inf, KindFlowDemandErrorFirst, p)
			second := m.addVar(priorityKey("flow_demand_error_second", node, p), 0, Inf, KindFlowDemandErrorSecond, p)
			m.recordErrorPair(node, p, "", alloc, first, second)
		case network.LevelDemand:
			for _, side := range []string{"lower", "upper"} {
				alloc := m.addVar(priorityKey("level_demand_allocated_"+side, node, p), 0, Inf, KindLevelDemandAllocated, p)
				first := m.addVar(priorityKey("level_demand_error_first_"+side, node, p), 0, Inf, KindLevelDemandErrorFirst, p)
				second := m.addVar(priorityKey("level_demand_error_second_"+side, node, p), 0, Inf, KindLevelDemandErrorSecond, p)
				m.recordErrorPair(node, p, side, alloc, first, second)
			}
		}
	}
}

func (m *Model) buildInterSubnetworkVars(link network.Link) {
	m.addVar(interSubnetworkKey(link), 0, Inf, KindSubnetworkAllocated, 0)
	m.addVar(priorityKey("relative_subnetwork_error_lower", link.To, 0), 0, Inf, KindRelativeSubnetworkErrorLower, 0)
	m.addVar(priorityKey("relative_subnetwork_error_upper", link.To, 0), 0, Inf, KindRelativeSubnetworkErrorUpper, 0)
}

func (m *Model) buildPriorityErrorVars(p int) {
	m.addVar(priorityKeyScalar("average_flow_unit_error", p), -Inf, Inf, KindAverageFlowUnitError, p)
	m.addVar(priorityKeyScalar("average_storage_unit_error_lower", p), -Inf, Inf, KindAverageStorageUnitErrorLower, p)
	m.addVar(priorityKeyScalar("average_storage_unit_error_upper", p), -Inf, Inf, KindAverageStorageUnitErrorUpper, p)
}

func priorityKeyScalar(prefix string, p int) string {
	return fmt.Sprintf("%s[%d]", prefix, p)
}

func interSubnetworkKey(link network.Link) string {
	return fmt.Sprintf("subnetwork_allocated[%d]", link.Id)
}
