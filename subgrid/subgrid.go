// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package subgrid implements the subgrid-level post-processor of
// [FULL] 4.13: a per-basin piecewise-linear basin-level -> subgrid-node
// level lookup, evaluated at callback step 8.
package subgrid

import (
	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
)

// Table holds one subgrid node's basin-level -> subgrid-level lookup,
// built the same way as the storage<->level profile in param: a
// hand-checked piecewise-linear curve, not a generic time-interpolation
// function, since the independent variable here is a level, not time.
type Table struct {
	Basin    network.NodeId
	SubgridId int32
	Curve    *param.PiecewiseLinear
}

// NewTable builds a subgrid lookup table from basin-level/subgrid-level
// breakpoint pairs.
func NewTable(basin network.NodeId, subgridId int32, basinLevel, subgridLevel []float64) (*Table, error) {
	curve, err := param.NewPiecewiseLinear(basinLevel, subgridLevel, param.ExtrapConstant, param.ExtrapLinear)
	if err != nil {
		return nil, err
	}
	return &Table{Basin: basin, SubgridId: subgridId, Curve: curve}, nil
}

// Interpolate maps a basin level to the subgrid node's level.
func (t *Table) Interpolate(basinLevel float64) float64 {
	return t.Curve.At(basinLevel)
}

// Set is the full collection of subgrid tables for a network, keyed by
// basin so callback step 8 can look up every subgrid node attached to a
// basin in one pass.
type Set struct {
	byBasin map[network.NodeId][]*Table
}

// NewSet groups a flat list of tables by their owning basin.
func NewSet(tables []*Table) *Set {
	s := &Set{byBasin: make(map[network.NodeId][]*Table)}
	for _, t := range tables {
		s.byBasin[t.Basin] = append(s.byBasin[t.Basin], t)
	}
	return s
}

// ForBasin returns every subgrid table attached to a basin, or nil if none.
func (s *Set) ForBasin(basin network.NodeId) []*Table {
	return s.byBasin[basin]
}

// Record is one (subgrid_id, level) pair produced by a save instant.
type Record struct {
	SubgridId int32
	Level     float64
}

// Levels evaluates every subgrid table attached to basin at its current
// level, for output step 8.
func (s *Set) Levels(basin network.NodeId, basinLevel float64) []Record {
	tabs := s.byBasin[basin]
	if len(tabs) == 0 {
		return nil
	}
	out := make([]Record, len(tabs))
	for i, t := range tabs {
		out[i] = Record{SubgridId: t.SubgridId, Level: t.Interpolate(basinLevel)}
	}
	return out
}
