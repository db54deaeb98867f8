// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package output implements the append-only record streams of §6: basin
// state, flow, allocation demand/flow, control, and solver stats, written
// at saveat instants and callback steps. Grounded in the shape of a
// finite-element solver's own table printers, but rebuilt fresh rather than
// adapted: that code's global analysis/domain/integration-point state and
// its element/material coupling have no analogue in a hydrological network
// and would drag FEM-only types into this package for no benefit.
package output

import "github.com/Deltares/Ribasim-sub001/network"

// BasinRecord is one row of the basin-state stream: (time, node_id, storage, level).
type BasinRecord struct {
	Time    float64
	NodeId  network.NodeId
	Storage float64
	Level   float64
}

// FlowRecord is one row of the flow stream: (time, link_id, from_node,
// to_node, subnetwork_id, flow_rate, hit_lower_bound, hit_upper_bound).
type FlowRecord struct {
	Time           float64
	LinkId         int32
	FromNode       network.NodeId
	ToNode         network.NodeId
	SubnetworkId   int32
	FlowRate       float64
	HitLowerBound  bool
	HitUpperBound  bool
}

// AllocationRecord is one row of the allocation demand stream: (time,
// subnetwork_id, node_type, node_id, priority, demand, allocated, realized).
type AllocationRecord struct {
	Time         float64
	SubnetworkId int32
	NodeType     network.NodeType
	NodeId       network.NodeId
	Priority     int
	Demand       float64
	Allocated    float64
	Realized     float64
}

// AllocationFlowRecord is a FlowRecord tagged with the optimization type
// that produced it (§6: "same as flow with an extra optimization_type tag").
type AllocationFlowRecord struct {
	FlowRecord
	OptimizationType string
}

// ControlRecord is one row of the control-transition stream: (time,
// control_node_id, truth_state, control_state).
type ControlRecord struct {
	Time          float64
	ControlNodeId network.NodeId
	TruthState    string
	ControlState  string
}

// ControlFlowRecord is the companion control-flow row: (time, node_id,
// node_type, flow_rate).
type ControlFlowRecord struct {
	Time     float64
	NodeId   network.NodeId
	NodeType network.NodeType
	FlowRate float64
}

// SubgridRecord is one row of the subgrid-level stream of [FULL] 4.13:
// (time, basin_node_id, subgrid_id, level).
type SubgridRecord struct {
	Time      float64
	BasinId   network.NodeId
	SubgridId int32
	Level     float64
}

// SolverStatsRecord is one row of the per-save solver-stats stream.
type SolverStatsRecord struct {
	Time          float64
	WallClock     float64
	Steps         int
	RejectedSteps int
	RHSCalls      int
	LinearSolves  int
}

// Writer is the append-only sink for every output record stream of §6.
// Implementations must tolerate being called from callback code only
// (never from the RHS/Jacobian, per §4.7); the default implementation,
// CSVWriter in csv.go, writes each record to CSV and flushes it at once.
type Writer interface {
	WriteBasin(BasinRecord) error
	WriteFlow(FlowRecord) error
	WriteAllocation(AllocationRecord) error
	WriteAllocationFlow(AllocationFlowRecord) error
	WriteControl(ControlRecord) error
	WriteControlFlow(ControlFlowRecord) error
	WriteSubgrid(SubgridRecord) error
	WriteSolverStats(SolverStatsRecord) error
	Close() error
}
