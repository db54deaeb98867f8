// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package jacobian implements the sparse Jacobian J_int of g w.r.t. u_red
// (§4.3) and the reduced linear solve used inside the stiff integrator's
// Newton iteration.
package jacobian

import (
	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
	"github.com/Deltares/Ribasim-sub001/state"
)

// Pattern is the symbolic sparsity pattern of J_int: which u_red
// coordinates each row (state component) can depend on. It is determined
// once by walking the graph (§4.3 "Sparsity pattern of A·J_int is
// determined once by symbolic propagation and reused every step") and
// reused by every numerical Jacobian assembly.
type Pattern struct {
	// cols[row] lists the u_red coordinates row depends on, i.e. the
	// nonzero column positions of J_int's row.
	cols [][]int
}

// BuildPattern walks the graph once and derives, for every row of u, the
// u_red coordinates its flow law can depend on: the basin coordinate(s) of
// its upstream/downstream node when those are basins (never boundaries,
// which are prescribed, not solved-for), and — for PID integrals — the
// basin coordinate of the listened variable when it is a basin level or
// storage.
func BuildPattern(g *network.Graph, s *param.Store, l *state.Layout) (*Pattern, error) {
	p := &Pattern{cols: make([][]int, l.Len())}

	flowClasses := []state.Class{
		state.ClassTabulatedRatingCurve, state.ClassPump, state.ClassOutlet,
		state.ClassUserDemandInflow, state.ClassUserDemandOutflow,
		state.ClassLinearResistance, state.ClassManningResistance,
	}
	for _, c := range flowClasses {
		r := l.Range(c)
		for i, node := range r.Nodes {
			row := r.Start + i
			cols, err := connectorDeps(g, l, node)
			if err != nil {
				return nil, err
			}
			p.cols[row] = cols
		}
	}

	for _, c := range []state.Class{state.ClassBasinEvaporation, state.ClassBasinInfiltration} {
		r := l.Range(c)
		for i, basin := range r.Nodes {
			row := r.Start + i
			col, err := l.BasinCoordinate(basin)
			if err != nil {
				return nil, err
			}
			p.cols[row] = []int{col}
		}
	}

	r := l.Range(state.ClassPidIntegral)
	for i, node := range r.Nodes {
		row := r.Start + i
		pp := s.Pids[node.Index()]
		var cols []int
		if pp.Listen.Node.Type == network.Basin {
			col, err := l.BasinCoordinate(pp.Listen.Node)
			if err != nil {
				return nil, err
			}
			cols = []int{col}
		}
		p.cols[row] = cols
	}

	return p, nil
}

// connectorDeps returns the u_red coordinates a connector node's flow
// depends on: the basin coordinate of its upstream and/or downstream node,
// when those are basins.
func connectorDeps(g *network.Graph, l *state.Layout, node network.NodeId) ([]int, error) {
	var cols []int
	in, err := g.UniqueInflow(node)
	if err != nil {
		return nil, err
	}
	if in.From.Type == network.Basin {
		col, err := l.BasinCoordinate(in.From)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	out, err := g.UniqueOutflow(node)
	if err != nil {
		return nil, err
	}
	if out.To.Type == network.Basin {
		col, err := l.BasinCoordinate(out.To)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// Cols returns the nonzero column positions for a given row.
func (p *Pattern) Cols(row int) []int {
	if row < 0 || row >= len(p.cols) {
		return nil
	}
	return p.cols[row]
}

// NNZ returns the total number of structural nonzeros in the pattern.
func (p *Pattern) NNZ() int {
	n := 0
	for _, c := range p.cols {
		n += len(c)
	}
	return n
}

