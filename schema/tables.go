// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package schema holds the plain in-memory input schema of §6: one Static
// table and one Time table per node type, plus the Node/Link tables common
// to every node. This is the minimal collaborator that makes the repository
// runnable end to end without a database or NetCDF reader, which §1 keeps
// external.
package schema

// NodeRow is one row of the node table (§6): every node has these fields,
// regardless of type.
type NodeRow struct {
	NodeId        int32
	NodeType      string
	SubnetworkId  int32
	HasSubnetwork bool
	CyclicTime    bool
	SourcePriority int32
	HasSourcePriority bool
}

// LinkRow is one row of the link table (§6).
type LinkRow struct {
	LinkId             int32
	FromNodeId         int32
	ToNodeId           int32
	LinkType           string // "flow" or "control"
	SubnetworkIdSource int32
}

// StaticRow is one row of a per-node-type static parameter table. Fields
// are read generically by name (Values[column]) since every node type has a different
// static parameter set; schema.LoadCSV leaves typed conversion to the
// config/core layer that knows which node type a row belongs to.
type StaticRow struct {
	NodeId int32
	Values map[string]string
}

// TimeRow is one row of a per-node-type time-varying parameter table:
// (node_id, time, ...).
type TimeRow struct {
	NodeId int32
	Time   float64
	Values map[string]string
}

// Tables is the full set of tables read from an input directory.
type Tables struct {
	Nodes []NodeRow
	Links []LinkRow

	// Static/Time are keyed by the snake_case table-file name of the node
	// type ("basin", "level_boundary", ...), one slice of rows per
	// type-specific table file.
	Static map[string][]StaticRow
	Time   map[string][]TimeRow
}
