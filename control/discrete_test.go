// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package control

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
)

// Test_hysteresis reproduces scenario 6 of §8: a DiscreteControl listening
// to a basin level with threshold_high=1.0, threshold_low=0.8 turns a pump
// on crossing 1.0 upward, stays on crossing back down to 0.9, and turns off
// crossing 0.8 downward.
func Test_hysteresis(tst *testing.T) {
	chk.PrintTitle("hysteresis. threshold crossing turns a pump on and off")

	g := network.NewGraph()
	basin, err := g.AddNode(network.Basin, 1, 0, 0)
	if err != nil {
		tst.Fatal(err)
	}
	pump, err := g.AddNode(network.Pump, 1, 0, 0)
	if err != nil {
		tst.Fatal(err)
	}
	dcNode, err := g.AddNode(network.DiscreteControl, 1, 0, 0)
	if err != nil {
		tst.Fatal(err)
	}

	s := param.NewStore(g)
	s.Basins[basin.Index()] = &param.BasinParams{CurrentLevel: 0.5}
	s.Connectors[network.Pump][pump.Index()] = &param.ConnectorParams{Active: false}

	high, err := param.NewTimeSeries([]float64{0, 1}, []float64{1.0, 1.0}, false)
	if err != nil {
		tst.Fatal(err)
	}
	low, err := param.NewTimeSeries([]float64{0, 1}, []float64{0.8, 0.8}, false)
	if err != nil {
		tst.Fatal(err)
	}

	onTrue, onFlow := true, 1.0
	offTrue, offFlow := false, 0.0

	dc := &DiscreteControl{
		Node:       dcNode,
		Variables:  []*CompoundVariable{{Terms: []Subvariable{{Listen: param.ListenRef{Node: basin, Variable: "level"}, Weight: 1}}}},
		Thresholds: []Threshold{{High: high, Low: low}},
		Logic:      map[string]string{"0": "off", "1": "on"},
		Updates: map[string]map[network.NodeId]ParamUpdate{
			"on":  {pump: {Active: &onTrue, CommandedFlowRate: &onFlow}},
			"off": {pump: {Active: &offTrue, CommandedFlowRate: &offFlow}},
		},
	}
	if err := dc.Init(s, 0); err != nil {
		tst.Fatal(err)
	}
	if dc.CurrentState() != "off" {
		tst.Fatalf("expected initial state off, got %s", dc.CurrentState())
	}

	step := func(level float64) Transition {
		s.Basins[basin.Index()].CurrentLevel = level
		tr, err := dc.Step(s, 0)
		if err != nil {
			tst.Fatal(err)
		}
		if tr.Changed {
			if err := dc.Apply(s); err != nil {
				tst.Fatal(err)
			}
		}
		return tr
	}

	step(0.5) // below low, stays off
	if dc.CurrentState() != "off" {
		tst.Fatalf("expected off at level 0.5, got %s", dc.CurrentState())
	}

	step(1.1) // crosses high upward: turns on
	if dc.CurrentState() != "on" {
		tst.Fatalf("expected on at level 1.1, got %s", dc.CurrentState())
	}
	if !s.Connectors[network.Pump][pump.Index()].Active {
		tst.Fatal("expected pump active after turning on")
	}

	step(0.9) // between low and high: stays on (hysteresis)
	if dc.CurrentState() != "on" {
		tst.Fatalf("expected to remain on at level 0.9, got %s", dc.CurrentState())
	}

	step(0.75) // crosses low downward: turns off
	if dc.CurrentState() != "off" {
		tst.Fatalf("expected off at level 0.75, got %s", dc.CurrentState())
	}
	if s.Connectors[network.Pump][pump.Index()].Active {
		tst.Fatal("expected pump inactive after turning off")
	}
}
