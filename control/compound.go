// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package control implements the rule engine of §4.6: compound variables,
// discrete control with hysteresis, and continuous (PCHIP) control.
package control

import (
	"github.com/Deltares/Ribasim-sub001/param"
)

// Subvariable is one (node, variable, look-ahead) term of a CompoundVariable
// (§3/GLOSSARY): "weighted sum of observed (node, variable, look-ahead)
// triples". LookAhead shifts the evaluation time forward, letting a control
// rule react to a forecast forcing value rather than only the current one.
type Subvariable struct {
	Listen    param.ListenRef
	Weight    float64
	LookAhead float64
}

// CompoundVariable is a weighted sum of Subvariables, evaluated on demand
// from the current parameter-store state (§4.6: "Compound variables are
// evaluated on demand from the current state").
type CompoundVariable struct {
	Terms []Subvariable
}

// Value evaluates the compound variable at time t.
func (c *CompoundVariable) Value(s *param.Store, t float64) (float64, error) {
	var sum float64
	for _, term := range c.Terms {
		v, err := s.Variable(term.Listen, t+term.LookAhead)
		if err != nil {
			return 0, err
		}
		sum += term.Weight * v
	}
	return sum, nil
}
