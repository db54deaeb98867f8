// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocation

import (
	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
)

// Network owns one persistent Cycle per subnetwork and implements §4.5's
// nested-subnetwork sequencing: "if a primary subnetwork exists, first run a
// demand-collection pass on each secondary subnetwork... solve the primary
// normally... finally solve each secondary again with its inlet flow fixed
// to what the primary allocated it."
type Network struct {
	Graph *network.Graph
	Store *param.Store

	cycles  map[int32]*Cycle
	primary int32 // 0 if this graph has no primary subnetwork
}

// NewNetwork builds a Cycle (and its persistent Model) for every subnetwork
// in g, at allocation interval dt.
func NewNetwork(g *network.Graph, s *param.Store, dt float64) (*Network, error) {
	n := &Network{Graph: g, Store: s, cycles: make(map[int32]*Cycle)}
	for _, id := range g.SubnetworkIds() {
		m, err := Build(g, s, id, NewGonumSolver())
		if err != nil {
			return nil, chk.Err("allocation: build subnetwork %d: %v", id, err)
		}
		n.cycles[id] = NewCycle(m, dt)
	}
	if g.HasPrimary() {
		n.primary = 1
	}
	return n, nil
}

// Cycle returns the persistent Cycle for one subnetwork, or nil if it
// doesn't exist in this graph.
func (n *Network) Cycle(subnet int32) *Cycle { return n.cycles[subnet] }

// Run executes one full allocation round at interval [t, t+dt] across every
// subnetwork, following the sequencing of §4.5, and writes every solved
// Model's results back into the Store.
func (n *Network) Run(t float64) ([]*Model, error) {
	if n.primary == 0 {
		return n.runIndependent(t)
	}
	return n.runNested(t)
}

// runIndependent solves every subnetwork once, with no inter-subnetwork
// coupling — the case when this graph has no primary subnetwork.
func (n *Network) runIndependent(t float64) ([]*Model, error) {
	var solved []*Model
	for _, id := range n.Graph.SubnetworkIds() {
		c := n.cycles[id]
		if err := c.Refresh(n.Graph, n.Store, t); err != nil {
			return nil, err
		}
		if _, err := c.Model.Solve(n.Graph); err != nil {
			return nil, err
		}
		solved = append(solved, c.Model)
	}
	return solved, nil
}

// runNested implements the primary/secondary sequencing: a demand-collection
// solve of every secondary (so each reports how much it would like to draw
// through its inlet), then the primary solved normally (which allocates that
// inlet flow among secondaries by source priority and fairness), then every
// secondary re-solved with its inlet pinned to what the primary granted.
func (n *Network) runNested(t float64) ([]*Model, error) {
	var secondaries []int32
	for _, id := range n.Graph.SubnetworkIds() {
		if id != n.primary {
			secondaries = append(secondaries, id)
		}
	}

	for _, id := range secondaries {
		c := n.cycles[id]
		if err := c.Refresh(n.Graph, n.Store, t); err != nil {
			return nil, err
		}
		if _, err := c.Model.Solve(n.Graph); err != nil {
			return nil, err
		}
	}

	primaryCycle := n.cycles[n.primary]
	if err := primaryCycle.Refresh(n.Graph, n.Store, t); err != nil {
		return nil, err
	}
	if _, err := primaryCycle.Model.Solve(n.Graph); err != nil {
		return nil, err
	}

	var solved []*Model
	solved = append(solved, primaryCycle.Model)
	for _, id := range secondaries {
		link, ok := n.interSubnetworkLink(id)
		if !ok {
			c := n.cycles[id]
			solved = append(solved, c.Model)
			continue
		}
		granted, ok := primaryCycle.Model.Var(interSubnetworkKey(link))
		if !ok {
			c := n.cycles[id]
			solved = append(solved, c.Model)
			continue
		}
		rate := primaryCycle.Model.Solver.Value(granted)

		c := n.cycles[id]
		if err := c.Refresh(n.Graph, n.Store, t); err != nil {
			return nil, err
		}
		if v, ok := c.Model.flowLink[link.Id]; ok {
			c.Model.Solver.SetBounds(v, rate, rate)
		}
		if _, err := c.Model.Solve(n.Graph); err != nil {
			return nil, err
		}
		solved = append(solved, c.Model)
	}
	return solved, nil
}

// interSubnetworkLink finds the unique link feeding the primary subnetwork's
// water into secondary subnetwork id.
func (n *Network) interSubnetworkLink(secondary int32) (network.Link, bool) {
	for _, link := range n.Graph.Links() {
		if link.Type != network.FlowLink {
			continue
		}
		if n.Graph.SubnetworkOf(link.From) == n.primary && n.Graph.SubnetworkOf(link.To) == secondary {
			return link, true
		}
	}
	return network.Link{}, false
}
