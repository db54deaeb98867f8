// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package param

import (
	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/network"
)

// BasinParams holds the structural + time-varying parameters of a Basin
// (§3). Current storage/level/area are the mutable derived caches; the
// cumulative counters are the mutable append-only accumulators used for
// exact-integration outputs (§4.4 step 3).
type BasinParams struct {
	StorageToLevel *PiecewiseLinear
	LevelToArea    *PiecewiseLinear

	Precipitation *TimeSeries
	Evaporation   *TimeSeries
	Drainage      *TimeSeries
	Infiltration  *TimeSeries
	SurfaceRunoff *TimeSeries

	// InitialStorage is storage(t=0); the ODE state only ever tracks the
	// cumulative net flow since t=0 (§4.1), so the callback's negative-
	// storage guard recovers absolute storage as InitialStorage + u_red.
	InitialStorage float64

	// mutable derived caches, refreshed by the negative-storage guard
	// callback (§4.4 step 1) every accepted step.
	CurrentStorage float64
	CurrentLevel   float64
	CurrentArea    float64

	// mutable, append-only accounting.
	CumulativeDrainage      float64
	CumulativePrecipitation float64
	CumulativeSurfaceRunoff float64
}

// Level converts storage to level via the monotone profile.
func (b *BasinParams) Level(storage float64) float64 { return b.StorageToLevel.At(storage) }

// Area converts a level to a surface area via the profile.
func (b *BasinParams) Area(level float64) float64 { return b.LevelToArea.At(level) }

// ConnectorParams holds the structural parameters shared by the connector
// node types of §3 (LinearResistance, ManningResistance,
// TabulatedRatingCurve, Pump, Outlet, UserDemand). Fields that don't apply
// to a given type are left zero; dispatch in the physics package only reads
// the fields relevant to a node's NodeType.
type ConnectorParams struct {
	// LinearResistance
	Resistance float64
	MaxFlow    float64

	// ManningResistance
	ManningN float64
	Length   float64
	Slope    float64
	ProfileWidth float64

	// TabulatedRatingCurve
	RatingCurve *PiecewiseLinear

	// Pump / Outlet
	MaxFlowRate   *TimeSeries
	Active        bool
	AllocationControlled bool

	// UserDemand
	ReturnFactor *TimeSeries

	// mutable, allocation-driven commanded flow rate (written back by the
	// optimizer, §4.5 "Writeback"; read by the physics RHS).
	CommandedFlowRate float64
}

// DemandParams holds the per-priority demand data shared by UserDemand,
// FlowDemand and LevelDemand (§3).
type DemandParams struct {
	DemandByPriority   map[int]*TimeSeries
	HasDemandPriority  map[int]bool
	Allocated          map[int]float64
	LevelMin, LevelMax float64 // LevelDemand only
}

// BoundaryParams holds LevelBoundary/FlowBoundary data.
type BoundaryParams struct {
	Level     *TimeSeries // LevelBoundary
	FlowRate  *TimeSeries // FlowBoundary; must be non-negative (§3)
}

// Store is the immutable structural parameter container plus the disjoint
// set of mutable fields listed in §5's shared-resource policy: control
// overrides, allocation-driven flow rates, cumulative counters, save
// buffers. It is the single owning container referenced by index from every
// other subsystem (§9 "Global mutable state: None").
type Store struct {
	Graph *network.Graph

	Basins     []*BasinParams
	Connectors map[network.NodeType][]*ConnectorParams
	Demands    map[network.NodeType][]*DemandParams
	Boundaries map[network.NodeType][]*BoundaryParams
	Pids       PidControls

	LowStorageThreshold float64
}

// NewStore allocates an empty Store sized to the given graph.
func NewStore(g *network.Graph) *Store {
	s := &Store{
		Graph:      g,
		Connectors: make(map[network.NodeType][]*ConnectorParams),
		Demands:    make(map[network.NodeType][]*DemandParams),
		Boundaries: make(map[network.NodeType][]*BoundaryParams),
	}
	s.Basins = make([]*BasinParams, len(g.NodesOfType(network.Basin)))
	for _, t := range []network.NodeType{network.LinearResistance, network.ManningResistance, network.TabulatedRatingCurve, network.Pump, network.Outlet, network.UserDemand} {
		s.Connectors[t] = make([]*ConnectorParams, len(g.NodesOfType(t)))
	}
	for _, t := range []network.NodeType{network.UserDemand, network.FlowDemand, network.LevelDemand} {
		s.Demands[t] = make([]*DemandParams, len(g.NodesOfType(t)))
	}
	for _, t := range []network.NodeType{network.LevelBoundary, network.FlowBoundary} {
		s.Boundaries[t] = make([]*BoundaryParams, len(g.NodesOfType(t)))
	}
	s.Pids = make(PidControls, len(g.NodesOfType(network.PidControl)))
	return s
}

// Basin returns the BasinParams for a Basin NodeId.
func (s *Store) Basin(id network.NodeId) (*BasinParams, error) {
	if id.Type != network.Basin {
		return nil, chk.Err("Basin() called with non-basin node %v", id.Type)
	}
	return s.Basins[id.Index()], nil
}

// Connector returns the ConnectorParams for a connector NodeId.
func (s *Store) Connector(id network.NodeId) (*ConnectorParams, error) {
	if !id.Type.IsConnector() {
		return nil, chk.Err("Connector() called with non-connector node %v", id.Type)
	}
	return s.Connectors[id.Type][id.Index()], nil
}

// Demand returns the DemandParams for a demand NodeId.
func (s *Store) Demand(id network.NodeId) (*DemandParams, error) {
	if !id.Type.IsDemand() {
		return nil, chk.Err("Demand() called with non-demand node %v", id.Type)
	}
	return s.Demands[id.Type][id.Index()], nil
}

// Boundary returns the BoundaryParams for a boundary NodeId.
func (s *Store) Boundary(id network.NodeId) (*BoundaryParams, error) {
	if id.Type != network.LevelBoundary && id.Type != network.FlowBoundary {
		return nil, chk.Err("Boundary() called with non-boundary node %v", id.Type)
	}
	return s.Boundaries[id.Type][id.Index()], nil
}

// UpstreamLevel returns h_up for a connector node at time t: the current
// basin level if the unique inflow comes from a Basin, or the
// level-boundary interpolation if it comes from a LevelBoundary (§4.2).
func (s *Store) UpstreamLevel(connector network.NodeId, t float64) (float64, error) {
	link, err := s.Graph.UniqueInflow(connector)
	if err != nil {
		return 0, err
	}
	return s.levelOf(link.From, t)
}

// DownstreamLevel returns h_dn, symmetric to UpstreamLevel.
func (s *Store) DownstreamLevel(connector network.NodeId, t float64) (float64, error) {
	link, err := s.Graph.UniqueOutflow(connector)
	if err != nil {
		return 0, err
	}
	return s.levelOf(link.To, t)
}

func (s *Store) levelOf(id network.NodeId, t float64) (float64, error) {
	switch id.Type {
	case network.Basin:
		b, err := s.Basin(id)
		if err != nil {
			return 0, err
		}
		return b.CurrentLevel, nil
	case network.LevelBoundary:
		bnd, err := s.Boundary(id)
		if err != nil {
			return 0, err
		}
		return bnd.Level.At(t), nil
	case network.Terminal, network.Junction:
		return 0, nil
	default:
		return 0, chk.Err("node %v cannot supply a level", id.Type)
	}
}
