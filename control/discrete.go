// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package control

import (
	"strings"

	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
)

// Threshold is one CompoundVariable's hysteresis pair (§4.6): the truth bit
// flips to true crossing High upward and back to false crossing Low
// downward.
type Threshold struct {
	High *param.TimeSeries
	Low  *param.TimeSeries
}

// ParamUpdate is the set of parameter writes a control state applies to one
// controlled node (§4.6: "active flag, scalar parameters, linear or
// index-lookup interpolations"). Nil fields are left untouched; "nodes
// without an active field silently skip the activation update" is handled
// by Active being a *bool.
type ParamUpdate struct {
	Active            *bool
	CommandedFlowRate *float64
	Resistance        *float64
	ManningN          *float64
}

// Apply rewrites the named fields of a connector's parameters. Updates are
// idempotent re-writes (§4.6), not deltas.
func (u ParamUpdate) Apply(p *param.ConnectorParams) {
	if u.Active != nil {
		p.Active = *u.Active
	}
	if u.CommandedFlowRate != nil {
		p.CommandedFlowRate = *u.CommandedFlowRate
	}
	if u.Resistance != nil {
		p.Resistance = *u.Resistance
	}
	if u.ManningN != nil {
		p.ManningN = *u.ManningN
	}
}

// DiscreteControl is one DiscreteControl node (§3/§4.6): an ordered list of
// compound variables each with a hysteresis threshold pair, a truth-state
// bitset, a logic mapping from truth state to control state, and the
// per-control-state parameter updates applied to its controlled nodes.
type DiscreteControl struct {
	Node       network.NodeId
	Variables  []*CompoundVariable
	Thresholds []Threshold

	// Logic maps a truth-state key (one '0'/'1' character per variable, in
	// Variables' order) to a control-state name.
	Logic map[string]string

	// Updates[controlState][node] is the parameter rewrite applied to node
	// when the node transitions into controlState.
	Updates map[string]map[network.NodeId]ParamUpdate

	truth   []bool
	current string
}

// Init evaluates every threshold at t=0 to choose the initial truth state
// and control state (§4.6 "Initial: chosen by evaluating all thresholds at
// t=0"), without applying any parameter update (the structural input
// already encodes the node's starting configuration).
func (dc *DiscreteControl) Init(s *param.Store, t0 float64) error {
	dc.truth = make([]bool, len(dc.Variables))
	for i, v := range dc.Variables {
		val, err := v.Value(s, t0)
		if err != nil {
			return err
		}
		high := dc.Thresholds[i].High.At(t0)
		dc.truth[i] = val >= high
	}
	state, err := dc.lookup()
	if err != nil {
		return err
	}
	dc.current = state
	return nil
}

// Step evaluates every compound variable at t, updates the hysteresis truth
// bits, and reports whether the control state changed. If it did, apply()
// must be called by the caller with the resolved updates (kept as a
// separate step so the caller can also emit an output record — control
// does not depend on the output package).
type Transition struct {
	Truth   string
	State   string
	Changed bool
}

func (dc *DiscreteControl) Step(s *param.Store, t float64) (Transition, error) {
	for i, v := range dc.Variables {
		val, err := v.Value(s, t)
		if err != nil {
			return Transition{}, err
		}
		th := dc.Thresholds[i]
		if dc.truth[i] {
			if val <= th.Low.At(t) {
				dc.truth[i] = false
			}
		} else {
			if val >= th.High.At(t) {
				dc.truth[i] = true
			}
		}
	}
	state, err := dc.lookup()
	if err != nil {
		return Transition{}, err
	}
	changed := state != dc.current
	dc.current = state
	return Transition{Truth: dc.truthKey(), State: state, Changed: changed}, nil
}

// Apply applies the parameter updates registered for the current control
// state to every controlled node in the store.
func (dc *DiscreteControl) Apply(s *param.Store) error {
	updates, ok := dc.Updates[dc.current]
	if !ok {
		return nil
	}
	for node, u := range updates {
		p, err := s.Connector(node)
		if err != nil {
			return err
		}
		u.Apply(p)
	}
	return nil
}

func (dc *DiscreteControl) truthKey() string {
	var b strings.Builder
	for _, t := range dc.truth {
		if t {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func (dc *DiscreteControl) lookup() (string, error) {
	key := dc.truthKey()
	state, ok := dc.Logic[key]
	if !ok {
		return "", chk.Err("discrete control node %v: no logic entry for truth state %q", dc.Node, key)
	}
	return state, nil
}

// CurrentState returns the node's current control state.
func (dc *DiscreteControl) CurrentState() string { return dc.current }
