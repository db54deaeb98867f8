// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package state implements the ODE state vector u (§4.1): the cumulative
// per-link-class flows plus PID integrals, and the sparse aggregation
// operator A mapping u to the reduced basin/PID state u_red = A*u.
package state

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"

	"github.com/Deltares/Ribasim-sub001/network"
)

// Class identifies one of the fixed-order cumulative-flow components of
// §4.1. The order here is the order the spec fixes, and it is also the
// order state components are laid out in u.
type Class int

const (
	ClassTabulatedRatingCurve Class = iota
	ClassPump
	ClassOutlet
	ClassUserDemandInflow
	ClassUserDemandOutflow
	ClassLinearResistance
	ClassManningResistance
	ClassBasinEvaporation
	ClassBasinInfiltration
	ClassPidIntegral
	numClasses
)

// Range is a contiguous half-open slice [Start, Start+Len) of u devoted to
// one Class, with component i (0-based within the class) corresponding to
// the node at Nodes[i].
type Range struct {
	Start int
	Len   int
	Nodes []network.NodeId
}

// Layout describes how the fixed-order classes of §4.1 are packed into a
// concrete u []float64 for a given network, and precomputes the sparse
// aggregation operator A.
type Layout struct {
	ranges [numClasses]Range
	n      int

	nBasins int
	nPid    int

	// basinIndex[basin NodeId] -> reduced-state coordinate (0..nBasins-1)
	basinIndex map[network.NodeId]int
	// pidIndex[PidControl NodeId] -> reduced-state coordinate (nBasins..nBasins+nPid-1)
	pidIndex map[network.NodeId]int

	A *la.Triplet

	// aEntries mirrors A's (row, col, value) entries for direct dense
	// apply in Reduce; la.Triplet is write-oriented (Init/Start/Put) and
	// is normally consumed by converting it once to a CCMatrix for the
	// linear solver, so this package keeps its own copy for the simple
	// y=A*x use the state layout itself needs.
	aEntries []aEntry
}

type aEntry struct {
	row, col int
	val      float64
}

// AEntry is the exported (row, col, value) view of one nonzero of the
// aggregation operator A, for packages (jacobian) that need to combine A
// with another sparse matrix directly rather than through Reduce/ReduceInto.
type AEntry struct {
	Row, Col int
	Val      float64
}

// AEntries returns A's nonzero entries.
func (l *Layout) AEntries() []AEntry {
	out := make([]AEntry, len(l.aEntries))
	for i, e := range l.aEntries {
		out[i] = AEntry{Row: e.row, Col: e.col, Val: e.val}
	}
	return out
}

// classNodes returns, for each class, the graph's nodes driving that
// component of u, in the fixed order §4.1 specifies.
func classNodes(g *network.Graph) [numClasses][]network.NodeId {
	var out [numClasses][]network.NodeId
	out[ClassTabulatedRatingCurve] = g.NodesOfType(network.TabulatedRatingCurve)
	out[ClassPump] = g.NodesOfType(network.Pump)
	out[ClassOutlet] = g.NodesOfType(network.Outlet)
	out[ClassUserDemandInflow] = g.NodesOfType(network.UserDemand)
	out[ClassUserDemandOutflow] = g.NodesOfType(network.UserDemand)
	out[ClassLinearResistance] = g.NodesOfType(network.LinearResistance)
	out[ClassManningResistance] = g.NodesOfType(network.ManningResistance)
	out[ClassBasinEvaporation] = g.NodesOfType(network.Basin)
	out[ClassBasinInfiltration] = g.NodesOfType(network.Basin)
	out[ClassPidIntegral] = g.NodesOfType(network.PidControl)
	return out
}

// NewLayout builds the state layout and aggregation operator A for a graph.
func NewLayout(g *network.Graph) (*Layout, error) {
	l := &Layout{basinIndex: make(map[network.NodeId]int), pidIndex: make(map[network.NodeId]int)}

	nodes := classNodes(g)
	off := 0
	for c := Class(0); c < numClasses; c++ {
		l.ranges[c] = Range{Start: off, Len: len(nodes[c]), Nodes: nodes[c]}
		off += len(nodes[c])
	}
	l.n = off

	basins := g.NodesOfType(network.Basin)
	l.nBasins = len(basins)
	for i, b := range basins {
		l.basinIndex[b] = i
	}
	pids := g.NodesOfType(network.PidControl)
	l.nPid = len(pids)
	for i, p := range pids {
		l.pidIndex[p] = l.nBasins + i
	}

	if err := l.buildAggregation(g); err != nil {
		return nil, err
	}
	return l, nil
}

// Len returns len(u).
func (l *Layout) Len() int { return l.n }

// ReducedLen returns len(u_red) = nBasins + nPid.
func (l *Layout) ReducedLen() int { return l.nBasins + l.nPid }

// Range returns the sub-range of u devoted to a class.
func (l *Layout) Range(c Class) Range { return l.ranges[c] }

// NumClasses is the exported class count, for packages that need to
// range over every class (e.g. jacobian's row-to-class lookup) without
// reaching into this package's internal iota block.
const NumClasses = numClasses

// ClassOf returns the Class owning a given row of u, and the row's node.
func (l *Layout) ClassOf(row int) (Class, network.NodeId) {
	for c := Class(0); c < numClasses; c++ {
		r := l.ranges[c]
		if row >= r.Start && row < r.Start+r.Len {
			return c, r.Nodes[row-r.Start]
		}
	}
	return -1, network.NodeId{}
}

// ComponentIndex returns the position in u of the scalar for (class, node),
// by linear scan of the class's node list. Classes are small in node-type
// cardinality per network, so this is not on any hot per-step path that
// isn't already O(links); callers that need speed build their own index
// cache once (the physics RHS does, see physics.Dispatch).
func (l *Layout) ComponentIndex(c Class, id network.NodeId) (int, error) {
	r := l.ranges[c]
	for i, n := range r.Nodes {
		if n.Equal(id) {
			return r.Start + i, nil
		}
	}
	return 0, chk.Err("node %v not found in class %d", id, c)
}

// BasinCoordinate returns the reduced-state coordinate of a basin.
func (l *Layout) BasinCoordinate(basin network.NodeId) (int, error) {
	i, ok := l.basinIndex[basin]
	if !ok {
		return 0, chk.Err("node %v is not a basin known to this layout", basin)
	}
	return i, nil
}

// PidCoordinate returns the reduced-state coordinate of a PID integral.
func (l *Layout) PidCoordinate(pid network.NodeId) (int, error) {
	i, ok := l.pidIndex[pid]
	if !ok {
		return 0, chk.Err("node %v is not a PidControl known to this layout", pid)
	}
	return i, nil
}

// buildAggregation assembles the {-1,0,+1}-sparse A operator of §4.1: for
// each flow component the inflow-basin row gets -1, the outflow-basin row
// gets +1; evaporation/infiltration rows get -1 on the diagonal of their
// basin; PID integral rows are the identity (they do not aggregate into
// storage, but still occupy a u_red coordinate per §4.1).
func (l *Layout) buildAggregation(g *network.Graph) error {
	nnzEstimate := 2*(l.n-l.ranges[ClassPidIntegral].Len) + l.nPid
	l.A = new(la.Triplet)
	l.A.Init(l.ReducedLen(), l.n, nnzEstimate)
	l.A.Start()

	put := func(col int, basin network.NodeId, sign float64) error {
		row, err := l.BasinCoordinate(basin)
		if err != nil {
			return err
		}
		l.A.Put(row, col, sign)
		l.aEntries = append(l.aEntries, aEntry{row, col, sign})
		return nil
	}

	flowClasses := []Class{ClassTabulatedRatingCurve, ClassPump, ClassOutlet, ClassUserDemandInflow, ClassUserDemandOutflow, ClassLinearResistance, ClassManningResistance}
	for _, c := range flowClasses {
		r := l.ranges[c]
		for i, node := range r.Nodes {
			col := r.Start + i
			inLink, err := g.UniqueInflow(node)
			if err != nil {
				return err
			}
			outLink, err := g.UniqueOutflow(node)
			if err != nil {
				return err
			}
			if c == ClassUserDemandOutflow {
				// the return-flow component only adds to the outflow basin
				// (it re-enters downstream of the user, §4.2).
				if outLink.To.Type == network.Basin {
					if err := put(col, outLink.To, +1); err != nil {
						return err
					}
				}
				continue
			}
			if inLink.From.Type == network.Basin {
				if err := put(col, inLink.From, -1); err != nil {
					return err
				}
			}
			if outLink.To.Type == network.Basin {
				if err := put(col, outLink.To, +1); err != nil {
					return err
				}
			}
		}
	}

	for _, c := range []Class{ClassBasinEvaporation, ClassBasinInfiltration} {
		r := l.ranges[c]
		for i, basin := range r.Nodes {
			col := r.Start + i
			if err := put(col, basin, -1); err != nil {
				return err
			}
		}
	}

	// PID integrals: identity mapping onto their own reduced coordinate.
	r := l.ranges[ClassPidIntegral]
	for i, pid := range r.Nodes {
		col := r.Start + i
		row, err := l.PidCoordinate(pid)
		if err != nil {
			return err
		}
		l.A.Put(row, col, 1)
		l.aEntries = append(l.aEntries, aEntry{row, col, 1})
	}

	return nil
}

// Reduce computes u_red = A*u.
func (l *Layout) Reduce(u []float64) []float64 {
	uRed := make([]float64, l.ReducedLen())
	for _, e := range l.aEntries {
		uRed[e.row] += e.val * u[e.col]
	}
	return uRed
}

// ReduceInto computes u_red = A*u into a caller-provided buffer, avoiding an
// allocation on the hot per-step path (the RHS evaluates this every call).
func (l *Layout) ReduceInto(u, uRed []float64) {
	for i := range uRed {
		uRed[i] = 0
	}
	for _, e := range l.aEntries {
		uRed[e.row] += e.val * u[e.col]
	}
}
