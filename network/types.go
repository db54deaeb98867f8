// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package network implements the typed directed graph of basins, connectors
// and boundaries that make up a hydrological network.
package network

import "github.com/cpmech/gosl/chk"

// NodeType is the closed set of node kinds a network can contain.
type NodeType int

// node types
const (
	Basin NodeType = iota
	LevelBoundary
	FlowBoundary
	LinearResistance
	ManningResistance
	TabulatedRatingCurve
	Pump
	Outlet
	Terminal
	Junction
	UserDemand
	FlowDemand
	LevelDemand
	DiscreteControl
	ContinuousControl
	PidControl
)

var nodeTypeNames = [...]string{
	Basin:                 "Basin",
	LevelBoundary:         "LevelBoundary",
	FlowBoundary:          "FlowBoundary",
	LinearResistance:      "LinearResistance",
	ManningResistance:     "ManningResistance",
	TabulatedRatingCurve:  "TabulatedRatingCurve",
	Pump:                  "Pump",
	Outlet:                "Outlet",
	Terminal:              "Terminal",
	Junction:              "Junction",
	UserDemand:            "UserDemand",
	FlowDemand:            "FlowDemand",
	LevelDemand:           "LevelDemand",
	DiscreteControl:       "DiscreteControl",
	ContinuousControl:     "ContinuousControl",
	PidControl:            "PidControl",
}

// String implements fmt.Stringer
func (t NodeType) String() string {
	if int(t) < 0 || int(t) >= len(nodeTypeNames) {
		return "Unknown"
	}
	return nodeTypeNames[t]
}

// ParseNodeType converts the user-facing name (as read from the input schema)
// into a NodeType. Unknown names are a validation error, never a panic.
func ParseNodeType(name string) (NodeType, error) {
	for i, n := range nodeTypeNames {
		if n == name {
			return NodeType(i), nil
		}
	}
	return 0, chk.Err("unknown node type %q", name)
}

// IsConnector reports whether nodes of this type expose the uniform
// {inflow_link, outflow_link, flow_function} connector interface (§3).
func (t NodeType) IsConnector() bool {
	switch t {
	case LinearResistance, ManningResistance, TabulatedRatingCurve, Pump, Outlet, UserDemand:
		return true
	}
	return false
}

// IsDemand reports whether this node type carries per-priority demand data.
func (t NodeType) IsDemand() bool {
	switch t {
	case UserDemand, FlowDemand, LevelDemand:
		return true
	}
	return false
}

// NodeId is a tagged value identifying a node: the pair (type, ordinal) is
// the user-facing key; index is the dense position within the per-type array
// and is only meaningful within a single Graph/Store pair.
type NodeId struct {
	Type    NodeType
	Ordinal int32
	index   int
}

// Index returns the dense per-type array position backing this id.
func (id NodeId) Index() int { return id.index }

// Less orders NodeIds by (Type, Ordinal), matching §3's equality/ordering rule.
func (id NodeId) Less(other NodeId) bool {
	if id.Type != other.Type {
		return id.Type < other.Type
	}
	return id.Ordinal < other.Ordinal
}

// Equal reports (type, ordinal) equality; the dense index is derived, not identity.
func (id NodeId) Equal(other NodeId) bool {
	return id.Type == other.Type && id.Ordinal == other.Ordinal
}

// LinkType distinguishes flow links (which carry water) from control links
// (which carry parameter overrides or listen relationships).
type LinkType int

const (
	FlowLink LinkType = iota
	ControlLink
)

func (t LinkType) String() string {
	if t == ControlLink {
		return "control"
	}
	return "flow"
}

// Link is a directed edge between two nodes.
type Link struct {
	Id                 int32
	From               NodeId
	To                 NodeId
	Type               LinkType
	SubnetworkIdSource int32
}
