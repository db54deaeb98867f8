// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package control

import (
	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
)

// ContinuousControl maps one compound variable's value through a PCHIP
// curve and writes the result into a single controlled parameter every
// accepted step (§4.6: "simpler" than DiscreteControl — no truth state, no
// logic mapping, just a continuous function applied every step).
type ContinuousControl struct {
	Node      network.NodeId
	Variable  *CompoundVariable
	Curve     *Pchip
	Target    network.NodeId
	TargetKey string // which ConnectorParams field the curve's output writes, e.g. "Resistance"
}

// Step evaluates the compound variable and writes the curve's output into
// the target node's parameter.
func (cc *ContinuousControl) Step(s *param.Store, t float64) error {
	v, err := cc.Variable.Value(s, t)
	if err != nil {
		return err
	}
	out := cc.Curve.At(v)
	p, err := s.Connector(cc.Target)
	if err != nil {
		return err
	}
	switch cc.TargetKey {
	case "Resistance":
		p.Resistance = out
	case "ManningN":
		p.ManningN = out
	case "CommandedFlowRate":
		p.CommandedFlowRate = out
	default:
		return chk.Err("continuous control: unknown target parameter key %q", cc.TargetKey)
	}
	return nil
}
