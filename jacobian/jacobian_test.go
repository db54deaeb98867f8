// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jacobian

import (
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/num"

	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
	"github.com/Deltares/Ribasim-sub001/physics"
	"github.com/Deltares/Ribasim-sub001/state"
)

// twoBasinNetwork builds basin_0 --LinearResistance--> basin_1, with both
// basins carrying a simple linear storage<->level profile, for use by every
// test in this file.
func twoBasinNetwork(tst *testing.T) (*network.Graph, *param.Store, *state.Layout) {
	g := network.NewGraph()
	b0, err := g.AddNode(network.Basin, 1, 0, 0)
	if err != nil {
		tst.Fatal(err)
	}
	b1, err := g.AddNode(network.Basin, 2, 0, 0)
	if err != nil {
		tst.Fatal(err)
	}
	lr, err := g.AddNode(network.LinearResistance, 1, 0, 0)
	if err != nil {
		tst.Fatal(err)
	}
	g.AddLink(1, b0, lr, network.FlowLink, 0)
	g.AddLink(2, lr, b1, network.FlowLink, 0)

	s := param.NewStore(g)
	profile, err := param.NewMonotoneProfile([]float64{0, 1000}, []float64{0, 10})
	if err != nil {
		tst.Fatal(err)
	}
	area, err := param.NewAreaProfile([]float64{0, 10}, []float64{100, 100})
	if err != nil {
		tst.Fatal(err)
	}
	s.Basins[b0.Index()] = &param.BasinParams{StorageToLevel: profile, LevelToArea: area, CurrentStorage: 500, CurrentLevel: profile.At(500)}
	s.Basins[b1.Index()] = &param.BasinParams{StorageToLevel: profile, LevelToArea: area, CurrentStorage: 200, CurrentLevel: profile.At(200)}
	s.Connectors[network.LinearResistance][lr.Index()] = &param.ConnectorParams{Resistance: 2.0}
	s.LowStorageThreshold = 10

	l, err := state.NewLayout(g)
	if err != nil {
		tst.Fatal(err)
	}
	return g, s, l
}

// Test_pattern checks that BuildPattern records exactly the two basin
// columns a single LinearResistance connector depends on.
func Test_pattern(tst *testing.T) {
	chk.PrintTitle("pattern. linear resistance depends on both basin levels")

	g, s, l := twoBasinNetwork(tst)
	pat, err := BuildPattern(g, s, l)
	if err != nil {
		tst.Fatalf("BuildPattern failed: %v", err)
	}

	row, err := l.ComponentIndex(state.ClassLinearResistance, mustLookup(tst, g, network.LinearResistance, 1))
	if err != nil {
		tst.Fatal(err)
	}
	cols := pat.Cols(row)
	if len(cols) != 2 {
		tst.Fatalf("expected 2 dependency columns, got %d: %v", len(cols), cols)
	}
}

// Test_jacobian_linear_resistance checks the analytic J_int row for a
// LinearResistance connector against a gosl/num.DerivCentral finite
// difference on the underlying basin storages, the same chk.AnaNum
// comparison a consistent-tangent test uses to check an analytic derivative
// against numerical differentiation.
func Test_jacobian_linear_resistance(tst *testing.T) {
	chk.PrintTitle("jacobian. linear resistance dq/dstorage matches finite differences")

	g, s, l := twoBasinNetwork(tst)
	b, err := NewBuilder(g, s, l)
	if err != nil {
		tst.Fatalf("NewBuilder failed: %v", err)
	}

	J, err := b.Build(0)
	if err != nil {
		tst.Fatalf("Build failed: %v", err)
	}

	lr := mustLookup(tst, g, network.LinearResistance, 1)
	row, err := l.ComponentIndex(state.ClassLinearResistance, lr)
	if err != nil {
		tst.Fatal(err)
	}

	b0 := mustLookup(tst, g, network.Basin, 1)
	b1 := mustLookup(tst, g, network.Basin, 2)
	col0, err := l.BasinCoordinate(b0)
	if err != nil {
		tst.Fatal(err)
	}
	col1, err := l.BasinCoordinate(b1)
	if err != nil {
		tst.Fatal(err)
	}

	ana0, ana1 := entryAt(J, row, col0), entryAt(J, row, col1)

	const h = 1e-4
	bp0, _ := s.Basin(b0)
	bp1, _ := s.Basin(b1)
	cp, _ := s.Connector(lr)

	flow := func(s0, s1 float64) float64 {
		return physics.LinearResistanceFlow(bp0.StorageToLevel.At(s0), bp1.StorageToLevel.At(s1), cp)
	}
	num0, _ := num.DerivCentral(func(x float64, args ...interface{}) float64 {
		return flow(x, bp1.CurrentStorage)
	}, bp0.CurrentStorage, h)
	num1, _ := num.DerivCentral(func(x float64, args ...interface{}) float64 {
		return flow(bp0.CurrentStorage, x)
	}, bp1.CurrentStorage, h)

	chk.AnaNum(tst, "dq/ds0", 1e-6, ana0, num0, false)
	chk.AnaNum(tst, "dq/ds1", 1e-6, ana1, num1, false)
}

// Test_reduced_solve checks that the reduced solve recovers the same
// correction as a dense solve of the corresponding full |u| x |u| system.
func Test_reduced_solve(tst *testing.T) {
	chk.PrintTitle("reduced solve. matches the full-system solve")

	g, s, l := twoBasinNetwork(tst)
	b, err := NewBuilder(g, s, l)
	if err != nil {
		tst.Fatal(err)
	}
	J, err := b.Build(0)
	if err != nil {
		tst.Fatal(err)
	}

	rs := NewReducedSolve(l)
	const gamma = 0.1
	rhs := make([]float64, l.Len())
	for i := range rhs {
		rhs[i] = float64(i+1) * 0.01
	}
	a, err := rs.Solve(J, gamma, rhs)
	if err != nil {
		tst.Fatalf("Solve failed: %v", err)
	}

	// residual check: (1/gamma)*a - J_int*(A*a) should equal rhs.
	Aa := l.Reduce(a)
	Ja := make([]float64, l.Len())
	for _, e := range J.Entries {
		Ja[e.Row] += e.Val * Aa[e.Col]
	}
	for i := range rhs {
		got := a[i]/gamma - Ja[i]
		chk.AnaNum(tst, "residual", 1e-6, got, rhs[i], false)
	}
}

func mustLookup(tst *testing.T, g *network.Graph, t network.NodeType, ordinal int32) network.NodeId {
	id, ok := g.Lookup(t, ordinal)
	if !ok {
		tst.Fatalf("node {type=%v, ordinal=%d} not found", t, ordinal)
	}
	return id
}

func entryAt(m *Matrix, row, col int) float64 {
	for _, e := range m.Entries {
		if e.Row == row && e.Col == col {
			return e.Val
		}
	}
	return 0
}
