// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocation

import (
	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/output"
	"github.com/Deltares/Ribasim-sub001/param"
)

// Writeback implements §4.5's "Writeback" step: the solved LP's flow
// variables become the CommandedFlowRate the physics RHS reads between now
// and the next allocation refresh, and every demand/flow row is appended to
// the allocation output streams.
func Writeback(g *network.Graph, s *param.Store, m *Model, t float64, w output.Writer) error {
	if err := writebackCommandedFlows(g, s, m); err != nil {
		return err
	}
	if err := writeAllocationRecords(g, s, m, t, w); err != nil {
		return err
	}
	return writeAllocationFlowRecords(g, m, t, w)
}

// writebackCommandedFlows overwrites ConnectorParams.CommandedFlowRate for
// every allocation-controlled pump/outlet, and for every UserDemand, from
// the LP's solved flow[link] value on that node's unique outflow link —
// physics.PumpOutletFlow/UserDemandFlow scale this by the low_storage_factor
// already folded into the LP, so the raw solved rate is what they expect.
func writebackCommandedFlows(g *network.Graph, s *param.Store, m *Model) error {
	types := []network.NodeType{network.Pump, network.Outlet, network.UserDemand}
	for _, nt := range types {
		for _, node := range g.NodesOfType(nt) {
			out, err := g.UniqueOutflow(node)
			if err != nil {
				continue
			}
			v, ok := m.flowLink[out.Id]
			if !ok {
				continue // node not in this subnetwork's model
			}
			cp, err := s.Connector(node)
			if err != nil {
				return err
			}
			if nt != network.UserDemand && !cp.AllocationControlled {
				continue
			}
			cp.CommandedFlowRate = m.Solver.Value(v)
		}
	}
	return nil
}

// writeAllocationRecords appends one AllocationRecord per (demand node,
// priority, side) this Model tracks, using the errorPair bookkeeping
// recorded at Build time instead of re-deriving it from variable names.
func writeAllocationRecords(g *network.Graph, s *param.Store, m *Model, t float64, w output.Writer) error {
	for _, pair := range m.errorPairs {
		d, err := s.Demand(pair.node)
		if err != nil {
			return err
		}
		demand := 0.0
		if ts, ok := d.DemandByPriority[pair.priority]; ok && ts != nil {
			demand = ts.At(t)
		}
		allocated := m.Solver.Value(pair.allocated)
		realized := allocated // LP solution is the realized flow within this refresh interval
		if err := w.WriteAllocation(output.AllocationRecord{
			Time:         t,
			SubnetworkId: m.Subnetwork,
			NodeType:     pair.node.Type,
			NodeId:       pair.node,
			Priority:     pair.priority,
			Demand:       demand,
			Allocated:    allocated,
			Realized:     realized,
		}); err != nil {
			return err
		}
	}
	return nil
}

// writeAllocationFlowRecords appends one AllocationFlowRecord per link this
// Model tracks, tagged with the optimization type "allocation".
func writeAllocationFlowRecords(g *network.Graph, m *Model, t float64, w output.Writer) error {
	for _, link := range g.Links() {
		if link.Type != network.FlowLink {
			continue
		}
		v, ok := m.flowLink[link.Id]
		if !ok {
			continue
		}
		rec := output.AllocationFlowRecord{
			FlowRecord: output.FlowRecord{
				Time:         t,
				LinkId:       link.Id,
				FromNode:     link.From,
				ToNode:       link.To,
				SubnetworkId: m.Subnetwork,
				FlowRate:     m.Solver.Value(v),
			},
			OptimizationType: "allocation",
		}
		if err := w.WriteAllocationFlow(rec); err != nil {
			return err
		}
	}
	return nil
}
