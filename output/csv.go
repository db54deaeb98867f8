// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cpmech/gosl/chk"
)

// CSVWriter is the default Writer (§[FULL] 4.11): one append-only CSV file
// per record stream under a results directory. encoding/csv rather than an
// ungrounded third-party tabular library: no example repo in the pack
// imports one, and the record shapes here are fixed, flat structs with no
// need for a schema-aware writer.
type CSVWriter struct {
	dir     string
	files   map[string]*os.File
	writers map[string]*csv.Writer
}

// NewCSVWriter creates dir if needed and opens (or truncates) the eight
// output streams of §6.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, chk.Err("output: cannot create results directory %q: %v", dir, err)
	}
	w := &CSVWriter{dir: dir, files: make(map[string]*os.File), writers: make(map[string]*csv.Writer)}
	streams := map[string][]string{
		"basin":           {"time", "node_id", "storage", "level"},
		"flow":            {"time", "link_id", "from_node", "to_node", "subnetwork_id", "flow_rate", "hit_lower_bound", "hit_upper_bound"},
		"allocation":      {"time", "subnetwork_id", "node_type", "node_id", "priority", "demand", "allocated", "realized"},
		"allocation_flow": {"time", "link_id", "from_node", "to_node", "subnetwork_id", "flow_rate", "hit_lower_bound", "hit_upper_bound", "optimization_type"},
		"control":         {"time", "control_node_id", "truth_state", "control_state"},
		"control_flow":    {"time", "node_id", "node_type", "flow_rate"},
		"subgrid":         {"time", "basin_node_id", "subgrid_id", "level"},
		"solver_stats":    {"time", "wall_clock", "steps", "rejected_steps", "rhs_calls", "linear_solves"},
	}
	for name, header := range streams {
		f, err := os.Create(filepath.Join(dir, name+".csv"))
		if err != nil {
			w.Close()
			return nil, chk.Err("output: cannot create %s.csv: %v", name, err)
		}
		cw := csv.NewWriter(f)
		if err := cw.Write(header); err != nil {
			w.Close()
			return nil, chk.Err("output: cannot write %s.csv header: %v", name, err)
		}
		w.files[name] = f
		w.writers[name] = cw
	}
	return w, nil
}

func nodeIdStr(t interface{ String() string }, ordinal int32) string {
	return fmt.Sprintf("%s:%d", t.String(), ordinal)
}

func (w *CSVWriter) write(stream string, row []string) error {
	cw := w.writers[stream]
	if err := cw.Write(row); err != nil {
		return chk.Err("output: write to %s.csv: %v", stream, err)
	}
	cw.Flush()
	return cw.Error()
}

func (w *CSVWriter) WriteBasin(r BasinRecord) error {
	return w.write("basin", []string{
		fmt.Sprintf("%g", r.Time),
		nodeIdStr(r.NodeId.Type, r.NodeId.Ordinal),
		fmt.Sprintf("%g", r.Storage),
		fmt.Sprintf("%g", r.Level),
	})
}

func (w *CSVWriter) flowRow(r FlowRecord) []string {
	return []string{
		fmt.Sprintf("%g", r.Time),
		fmt.Sprintf("%d", r.LinkId),
		nodeIdStr(r.FromNode.Type, r.FromNode.Ordinal),
		nodeIdStr(r.ToNode.Type, r.ToNode.Ordinal),
		fmt.Sprintf("%d", r.SubnetworkId),
		fmt.Sprintf("%g", r.FlowRate),
		fmt.Sprintf("%v", r.HitLowerBound),
		fmt.Sprintf("%v", r.HitUpperBound),
	}
}

func (w *CSVWriter) WriteFlow(r FlowRecord) error {
	return w.write("flow", w.flowRow(r))
}

func (w *CSVWriter) WriteAllocation(r AllocationRecord) error {
	return w.write("allocation", []string{
		fmt.Sprintf("%g", r.Time),
		fmt.Sprintf("%d", r.SubnetworkId),
		r.NodeType.String(),
		nodeIdStr(r.NodeId.Type, r.NodeId.Ordinal),
		fmt.Sprintf("%d", r.Priority),
		fmt.Sprintf("%g", r.Demand),
		fmt.Sprintf("%g", r.Allocated),
		fmt.Sprintf("%g", r.Realized),
	})
}

func (w *CSVWriter) WriteAllocationFlow(r AllocationFlowRecord) error {
	row := append(w.flowRow(r.FlowRecord), r.OptimizationType)
	return w.write("allocation_flow", row)
}

func (w *CSVWriter) WriteControl(r ControlRecord) error {
	return w.write("control", []string{
		fmt.Sprintf("%g", r.Time),
		nodeIdStr(r.ControlNodeId.Type, r.ControlNodeId.Ordinal),
		r.TruthState,
		r.ControlState,
	})
}

func (w *CSVWriter) WriteControlFlow(r ControlFlowRecord) error {
	return w.write("control_flow", []string{
		fmt.Sprintf("%g", r.Time),
		nodeIdStr(r.NodeId.Type, r.NodeId.Ordinal),
		r.NodeType.String(),
		fmt.Sprintf("%g", r.FlowRate),
	})
}

func (w *CSVWriter) WriteSubgrid(r SubgridRecord) error {
	return w.write("subgrid", []string{
		fmt.Sprintf("%g", r.Time),
		nodeIdStr(r.BasinId.Type, r.BasinId.Ordinal),
		fmt.Sprintf("%d", r.SubgridId),
		fmt.Sprintf("%g", r.Level),
	})
}

func (w *CSVWriter) WriteSolverStats(r SolverStatsRecord) error {
	return w.write("solver_stats", []string{
		fmt.Sprintf("%g", r.Time),
		fmt.Sprintf("%g", r.WallClock),
		fmt.Sprintf("%d", r.Steps),
		fmt.Sprintf("%d", r.RejectedSteps),
		fmt.Sprintf("%d", r.RHSCalls),
		fmt.Sprintf("%d", r.LinearSolves),
	})
}

// Close flushes and closes every open stream file.
func (w *CSVWriter) Close() error {
	var firstErr error
	for name, cw := range w.writers {
		cw.Flush()
		if err := cw.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := w.files[name].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Writer = (*CSVWriter)(nil)
