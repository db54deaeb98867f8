// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
	"github.com/Deltares/Ribasim-sub001/schema"
)

// schemaKey maps a network.NodeType to the snake_case table-file key schema
// reads it under (schema's unexported nodeTypeFiles, mirrored here since
// build.go is the only caller that needs the mapping in the other
// direction, NodeType -> key).
var schemaKey = map[network.NodeType]string{
	network.Basin:                 "basin",
	network.LevelBoundary:         "level_boundary",
	network.FlowBoundary:          "flow_boundary",
	network.LinearResistance:      "linear_resistance",
	network.ManningResistance:     "manning_resistance",
	network.TabulatedRatingCurve:  "tabulated_rating_curve",
	network.Pump:                  "pump",
	network.Outlet:                "outlet",
	network.UserDemand:            "user_demand",
	network.FlowDemand:            "flow_demand",
	network.LevelDemand:           "level_demand",
	network.PidControl:            "pid_control",
}

// Build assembles a network.Graph and param.Store from the plain schema
// tables of §6, the way a finite-element input reader assembles a mesh and
// material set from a parsed input file: nodes and links first, then
// per-type static/time parameters,
// collecting every structural error into one ValidationError rather than
// aborting on the first (§7's batch-validation policy, mirrored by
// network.Graph.Validate itself).
//
// DiscreteControl and ContinuousControl nodes are registered in the graph
// (so links naming them resolve) but their logic-mapping/threshold/
// compound-variable structure is not assembled from the flat schema tables
// here: that shape does not fit a StaticRow/TimeRow's single-row-per-node
// string map without inventing a table format the schema package does not
// define. A caller that needs discrete/continuous control wires a
// control.Engine directly (as control's own tests do) and passes it to
// NewDomain.
func Build(t *schema.Tables) (*network.Graph, *param.Store, error) {
	g := network.NewGraph()
	var errs []error

	idOf := make(map[int32]network.NodeId, len(t.Nodes))
	cyclic := make(map[int32]bool, len(t.Nodes))
	ordinals := make(map[network.NodeType]int32)

	for _, row := range t.Nodes {
		nt, err := network.ParseNodeType(row.NodeType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ordinals[nt]++
		ordinal := ordinals[nt]
		id, err := g.AddNode(nt, ordinal, row.SubnetworkId, row.SourcePriority)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		idOf[row.NodeId] = id
		cyclic[row.NodeId] = row.CyclicTime
	}

	for _, row := range t.Links {
		from, ok := idOf[row.FromNodeId]
		if !ok {
			errs = append(errs, chk.Err("link %d: unknown from_node_id %d", row.LinkId, row.FromNodeId))
			continue
		}
		to, ok := idOf[row.ToNodeId]
		if !ok {
			errs = append(errs, chk.Err("link %d: unknown to_node_id %d", row.LinkId, row.ToNodeId))
			continue
		}
		lt := network.FlowLink
		if row.LinkType == "control" {
			lt = network.ControlLink
		}
		g.AddLink(row.LinkId, from, to, lt, row.SubnetworkIdSource)
	}

	if len(errs) > 0 {
		return nil, nil, &ValidationError{Errs: errs}
	}

	rev := make(map[network.NodeId]int32, len(idOf))
	for schemaId, id := range idOf {
		rev[id] = schemaId
	}

	s := param.NewStore(g)
	b := &builder{g: g, s: s, t: t, idOf: idOf, rev: rev, cyclic: cyclic}

	b.buildBasins()
	b.buildBoundaries(network.LevelBoundary)
	b.buildBoundaries(network.FlowBoundary)
	b.buildConnectors(network.LinearResistance)
	b.buildConnectors(network.ManningResistance)
	b.buildConnectors(network.TabulatedRatingCurve)
	b.buildConnectors(network.Pump)
	b.buildConnectors(network.Outlet)
	b.buildUserDemand()
	b.buildDemand(network.FlowDemand)
	b.buildDemand(network.LevelDemand)
	b.buildPidControls()

	if len(b.errs) > 0 {
		return nil, nil, &ValidationError{Errs: b.errs}
	}
	return g, s, nil
}

// builder carries the shared lookup tables used across the per-type build
// passes, the same grouping a finite-element input reader uses to go from a
// parsed file to typed element/material structs.
type builder struct {
	g      *network.Graph
	s      *param.Store
	t      *schema.Tables
	idOf   map[int32]network.NodeId
	rev    map[network.NodeId]int32
	cyclic map[int32]bool
	errs   []error
}

func (b *builder) fail(err error) { b.errs = append(b.errs, err) }

func (b *builder) staticRow(nt network.NodeType, id network.NodeId) (schema.StaticRow, bool) {
	for _, row := range b.t.Static[schemaKey[nt]] {
		if b.idOf[row.NodeId] == id {
			return row, true
		}
	}
	return schema.StaticRow{}, false
}

// buildBasins assembles BasinParams per Basin node: storage<->level and
// level<->area profiles from the static table's breakpoint-encoded fields,
// forcing series from the time table.
func (b *builder) buildBasins() {
	for _, id := range b.g.NodesOfType(network.Basin) {
		row, ok := b.staticRow(network.Basin, id)
		if !ok {
			b.fail(chk.Err("basin %v: missing static row", id))
			continue
		}
		storage, level, err := parseBreakpoints(row.Values["storage_to_level"])
		if err != nil {
			b.fail(chk.Err("basin %v: storage_to_level: %v", id, err))
			continue
		}
		profileLevel, area, err := parseBreakpoints(row.Values["level_to_area"])
		if err != nil {
			b.fail(chk.Err("basin %v: level_to_area: %v", id, err))
			continue
		}
		storageToLevel, err := param.NewMonotoneProfile(storage, level)
		if err != nil {
			b.fail(chk.Err("basin %v: %v", id, err))
			continue
		}
		levelToArea, err := param.NewAreaProfile(profileLevel, area)
		if err != nil {
			b.fail(chk.Err("basin %v: %v", id, err))
			continue
		}
		initialStorage := parseFloat(row.Values["initial_storage"])

		bp := &param.BasinParams{
			StorageToLevel: storageToLevel,
			LevelToArea:    levelToArea,
			InitialStorage: initialStorage,
			CurrentStorage: initialStorage,
			CurrentLevel:   storageToLevel.At(initialStorage),
		}
		bp.CurrentArea = levelToArea.At(bp.CurrentLevel)

		nodeId := b.rev[id]
		var err2 error
		if bp.Precipitation, err2 = b.forcingSeries(network.Basin, nodeId, "precipitation"); err2 != nil {
			b.fail(err2)
		}
		if bp.Evaporation, err2 = b.forcingSeries(network.Basin, nodeId, "evaporation"); err2 != nil {
			b.fail(err2)
		}
		if bp.Drainage, err2 = b.forcingSeries(network.Basin, nodeId, "drainage"); err2 != nil {
			b.fail(err2)
		}
		if bp.Infiltration, err2 = b.forcingSeries(network.Basin, nodeId, "infiltration"); err2 != nil {
			b.fail(err2)
		}
		if bp.SurfaceRunoff, err2 = b.forcingSeries(network.Basin, nodeId, "surface_runoff"); err2 != nil {
			b.fail(err2)
		}

		b.s.Basins[id.Index()] = bp
	}
}

// buildBoundaries assembles BoundaryParams for LevelBoundary/FlowBoundary
// nodes from their respective time series field.
func (b *builder) buildBoundaries(nt network.NodeType) {
	field := "level"
	if nt == network.FlowBoundary {
		field = "flow_rate"
	}
	for _, id := range b.g.NodesOfType(nt) {
		bnd := &param.BoundaryParams{}
		nodeId := b.rev[id]
		ts, err := b.forcingSeries(nt, nodeId, field)
		if err != nil {
			b.fail(err)
			continue
		}
		if nt == network.LevelBoundary {
			bnd.Level = ts
		} else {
			bnd.FlowRate = ts
		}
		b.s.Boundaries[nt][id.Index()] = bnd
	}
}

// buildConnectors assembles ConnectorParams for the five structural
// connector types (UserDemand is built separately since it also carries
// demand data).
func (b *builder) buildConnectors(nt network.NodeType) {
	for _, id := range b.g.NodesOfType(nt) {
		row, ok := b.staticRow(nt, id)
		if !ok {
			b.fail(chk.Err("%v %v: missing static row", nt, id))
			continue
		}
		cp := &param.ConnectorParams{Active: row.Values["active"] != "false"}
		switch nt {
		case network.LinearResistance:
			cp.Resistance = parseFloat(row.Values["resistance"])
			cp.MaxFlow = parseFloat(row.Values["max_flow"])
		case network.ManningResistance:
			cp.ManningN = parseFloat(row.Values["manning_n"])
			cp.Length = parseFloat(row.Values["length"])
			cp.Slope = parseFloat(row.Values["slope"])
			cp.ProfileWidth = parseFloat(row.Values["profile_width"])
		case network.TabulatedRatingCurve:
			x, y, err := parseBreakpoints(row.Values["rating_curve"])
			if err != nil {
				b.fail(chk.Err("%v %v: rating_curve: %v", nt, id, err))
				continue
			}
			curve, err := param.NewPiecewiseLinear(x, y, param.ExtrapConstant, param.ExtrapLinear)
			if err != nil {
				b.fail(chk.Err("%v %v: %v", nt, id, err))
				continue
			}
			cp.RatingCurve = curve
		case network.Pump, network.Outlet:
			cp.AllocationControlled = row.Values["allocation_controlled"] == "true"
			nodeId := b.rev[id]
			maxFlowRate, err := b.forcingSeries(nt, nodeId, "max_flow_rate")
			if err != nil {
				b.fail(err)
				continue
			}
			cp.MaxFlowRate = maxFlowRate
		}
		b.s.Connectors[nt][id.Index()] = cp
	}
}

// buildUserDemand assembles both the connector (return_factor) and demand
// (per-priority demand series) halves of every UserDemand node.
func (b *builder) buildUserDemand() {
	nt := network.UserDemand
	for _, id := range b.g.NodesOfType(nt) {
		nodeId := b.rev[id]
		cp := &param.ConnectorParams{Active: true}
		returnFactor, err := b.forcingSeries(nt, nodeId, "return_factor")
		if err != nil {
			b.fail(err)
			continue
		}
		cp.ReturnFactor = returnFactor
		b.s.Connectors[nt][id.Index()] = cp

		dp, err := b.demandParams(nt, nodeId)
		if err != nil {
			b.fail(err)
			continue
		}
		b.s.Demands[nt][id.Index()] = dp
	}
}

// buildDemand assembles FlowDemand/LevelDemand nodes: per-priority demand
// series, plus LevelDemand's min/max static bounds.
func (b *builder) buildDemand(nt network.NodeType) {
	for _, id := range b.g.NodesOfType(nt) {
		nodeId := b.rev[id]
		dp, err := b.demandParams(nt, nodeId)
		if err != nil {
			b.fail(err)
			continue
		}
		if nt == network.LevelDemand {
			if row, ok := b.staticRow(nt, id); ok {
				dp.LevelMin = parseFloat(row.Values["level_min"])
				dp.LevelMax = parseFloat(row.Values["level_max"])
			}
		}
		b.s.Demands[nt][id.Index()] = dp
	}
}

// demandParams groups the type's time table by (node_id, priority) to build
// one TimeSeries per priority, per §3's per-priority demand model.
func (b *builder) demandParams(nt network.NodeType, nodeId int32) (*param.DemandParams, error) {
	dp := &param.DemandParams{
		DemandByPriority:  make(map[int]*param.TimeSeries),
		HasDemandPriority: make(map[int]bool),
		Allocated:         make(map[int]float64),
	}
	byPriority := make(map[int][]schema.TimeRow)
	for _, row := range b.t.Time[schemaKey[nt]] {
		if row.NodeId != nodeId {
			continue
		}
		p, err := strconv.Atoi(row.Values["priority"])
		if err != nil {
			return nil, chk.Err("%v node %d: invalid priority %q", nt, nodeId, row.Values["priority"])
		}
		byPriority[p] = append(byPriority[p], row)
	}
	priorities := make([]int, 0, len(byPriority))
	for p := range byPriority {
		priorities = append(priorities, p)
	}
	sort.Ints(priorities)
	for _, p := range priorities {
		rows := byPriority[p]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Time < rows[j].Time })
		times := make([]float64, len(rows))
		vals := make([]float64, len(rows))
		for i, row := range rows {
			times[i] = row.Time
			vals[i] = parseFloat(row.Values["demand"])
		}
		ts, err := param.NewTimeSeries(times, vals, b.cyclic[nodeId])
		if err != nil {
			return nil, chk.Err("%v node %d priority %d: %v", nt, nodeId, p, err)
		}
		dp.DemandByPriority[p] = ts
		dp.HasDemandPriority[p] = true
	}
	return dp, nil
}

// buildPidControls assembles PidParams for every PidControl node: a flat
// static row names the listen/controlled nodes and variable, and per-field
// time series carry setpoint/Kp/Ki/Kd.
func (b *builder) buildPidControls() {
	nt := network.PidControl
	for _, id := range b.g.NodesOfType(nt) {
		row, ok := b.staticRow(nt, id)
		if !ok {
			b.fail(chk.Err("pid_control %v: missing static row", id))
			continue
		}
		listenId, ok := b.idOf[mustAtoi32(row.Values["listen_node_id"])]
		if !ok {
			b.fail(chk.Err("pid_control %v: unknown listen_node_id %q", id, row.Values["listen_node_id"]))
			continue
		}
		controlledId, ok := b.idOf[mustAtoi32(row.Values["controlled_node_id"])]
		if !ok {
			b.fail(chk.Err("pid_control %v: unknown controlled_node_id %q", id, row.Values["controlled_node_id"]))
			continue
		}
		nodeId := b.rev[id]
		pp := &param.PidParams{
			Listen:     param.ListenRef{Node: listenId, Variable: row.Values["listen_variable"]},
			Controlled: controlledId,
		}
		var err error
		if pp.Setpoint, err = b.forcingSeries(nt, nodeId, "setpoint"); err != nil {
			b.fail(err)
			continue
		}
		if pp.Kp, err = b.forcingSeries(nt, nodeId, "kp"); err != nil {
			b.fail(err)
			continue
		}
		if pp.Ki, err = b.forcingSeries(nt, nodeId, "ki"); err != nil {
			b.fail(err)
			continue
		}
		if pp.Kd, err = b.forcingSeries(nt, nodeId, "kd"); err != nil {
			b.fail(err)
			continue
		}
		b.s.Pids[id.Index()] = pp
	}
}

// forcingSeries groups a node type's time table by node id and builds one
// TimeSeries from the named field, sorted by time. A node with no rows for
// this type gets a flat-zero series so physics/param code never sees a nil
// pointer for a field every node of this type carries.
func (b *builder) forcingSeries(nt network.NodeType, nodeId int32, fieldName string) (*param.TimeSeries, error) {
	var rows []schema.TimeRow
	for _, row := range b.t.Time[schemaKey[nt]] {
		if row.NodeId == nodeId {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return param.NewTimeSeries([]float64{0, 1}, []float64{0, 0}, false)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Time < rows[j].Time })
	times := make([]float64, len(rows))
	vals := make([]float64, len(rows))
	for i, row := range rows {
		times[i] = row.Time
		vals[i] = parseFloat(row.Values[fieldName])
	}
	return param.NewTimeSeries(times, vals, b.cyclic[nodeId])
}


// parseBreakpoints decodes the "x:y;x:y;..." encoding build.go uses to fit
// a multi-breakpoint profile into schema.StaticRow's single string-valued
// field per column (§6 has no dedicated breakpoint-table file shape; see
// DESIGN.md).
func parseBreakpoints(v string) (xs, ys []float64, err error) {
	if v == "" {
		return nil, nil, chk.Err("empty breakpoint table")
	}
	pairs := strings.Split(v, ";")
	xs = make([]float64, 0, len(pairs))
	ys = make([]float64, 0, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, nil, chk.Err("malformed breakpoint pair %q", pair)
		}
		x, errx := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		y, erry := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errx != nil || erry != nil {
			return nil, nil, chk.Err("malformed breakpoint pair %q", pair)
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(v, 64)
	return f
}

func mustAtoi32(v string) int32 {
	n, _ := strconv.ParseInt(v, 10, 32)
	return int32(n)
}
