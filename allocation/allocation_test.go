// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocation

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
)

// buildTestSubnetwork constructs Basin -> UserDemand -> Terminal, all in
// subnetwork 1, with the basin holding sNow m^3 of storage and no forcing:
// the only thing limiting how much the demand can draw is the basin water
// balance over one allocation interval.
func buildTestSubnetwork(tst *testing.T, sNow float64, demandByPriority map[int]float64) (*network.Graph, *param.Store, network.NodeId) {
	g := network.NewGraph()
	basin, err := g.AddNode(network.Basin, 1, 1, 0)
	if err != nil {
		tst.Fatal(err)
	}
	user, err := g.AddNode(network.UserDemand, 1, 1, 0)
	if err != nil {
		tst.Fatal(err)
	}
	term, err := g.AddNode(network.Terminal, 1, 1, 0)
	if err != nil {
		tst.Fatal(err)
	}
	g.AddLink(1, basin, user, network.FlowLink, 1)
	g.AddLink(2, user, term, network.FlowLink, 1)

	profile, err := param.NewMonotoneProfile([]float64{0, 1000}, []float64{0, 10})
	if err != nil {
		tst.Fatal(err)
	}
	area, err := param.NewAreaProfile([]float64{0, 10}, []float64{100, 100})
	if err != nil {
		tst.Fatal(err)
	}

	s := param.NewStore(g)
	s.LowStorageThreshold = 1.0
	s.Basins[basin.Index()] = &param.BasinParams{
		StorageToLevel: profile, LevelToArea: area,
		InitialStorage: sNow, CurrentStorage: sNow, CurrentLevel: profile.At(sNow),
	}

	demandTS := make(map[int]*param.TimeSeries)
	has := make(map[int]bool)
	for p, d := range demandByPriority {
		ts, err := param.NewTimeSeries([]float64{0, 1e9}, []float64{d, d}, false)
		if err != nil {
			tst.Fatal(err)
		}
		demandTS[p] = ts
		has[p] = true
	}
	s.Demands[network.UserDemand][user.Index()] = &param.DemandParams{
		DemandByPriority: demandTS, HasDemandPriority: has, Allocated: make(map[int]float64),
	}
	s.Connectors[network.UserDemand][user.Index()] = &param.ConnectorParams{}

	return g, s, user
}

func solveOnce(tst *testing.T, g *network.Graph, s *param.Store, dt float64) *Model {
	m, err := Build(g, s, 1, NewGonumSolver())
	if err != nil {
		tst.Fatal(err)
	}
	c := NewCycle(m, dt)
	if err := c.Refresh(g, s, 0); err != nil {
		tst.Fatal(err)
	}
	if _, err := m.Solve(g); err != nil {
		tst.Fatal(err)
	}
	return m
}

// Test_demand_fully_satisfied_when_supply_exceeds_it exercises the case
// where the basin holds more than enough water to meet every priority's
// demand within one allocation interval.
func Test_demand_fully_satisfied_when_supply_exceeds_it(tst *testing.T) {
	chk.PrintTitle("allocation: demand fully met when supply is abundant")

	g, s, user := buildTestSubnetwork(tst, 5000, map[int]float64{1: 3})
	m := solveOnce(tst, g, s, 100)

	v, ok := m.Var(priorityKey("user_demand_allocated", user, 1))
	if !ok {
		tst.Fatal("user_demand_allocated[1] variable not found")
	}
	allocated := m.Solver.Value(v)
	if absf(allocated-3) > 1e-6 {
		tst.Fatalf("expected allocated 3, got %g", allocated)
	}
}

// Test_priority_ordering_under_scarcity exercises §4.5's priority ordering:
// when the basin can't meet every priority's demand within one interval,
// the lower (more urgent) priority number must be satisfied first, and the
// remainder goes to the higher priority number.
func Test_priority_ordering_under_scarcity(tst *testing.T) {
	chk.PrintTitle("allocation: scarce supply goes to the lower priority number first")

	// storageChange >= -sNow bounds total outflow to sNow/dt = 500/100 = 5,
	// against a combined demand of 3 (priority 1) + 4 (priority 2) = 7.
	g, s, user := buildTestSubnetwork(tst, 500, map[int]float64{1: 3, 2: 4})
	m := solveOnce(tst, g, s, 100)

	v1, ok := m.Var(priorityKey("user_demand_allocated", user, 1))
	if !ok {
		tst.Fatal("user_demand_allocated[1] variable not found")
	}
	v2, ok := m.Var(priorityKey("user_demand_allocated", user, 2))
	if !ok {
		tst.Fatal("user_demand_allocated[2] variable not found")
	}
	a1 := m.Solver.Value(v1)
	a2 := m.Solver.Value(v2)

	if absf(a1-3) > 1e-6 {
		tst.Fatalf("expected priority 1 fully met at 3, got %g", a1)
	}
	if absf(a2-2) > 1e-6 {
		tst.Fatalf("expected priority 2 to receive the 2 remaining, got %g", a2)
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
