// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package control

import (
	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
)

// Engine owns every control node in a network and drives them in the order
// §4.6 implies: discrete control transitions (which may change a pump's
// active flag or flow rate) before continuous control (which overwrites a
// scalar parameter every step regardless of state).
type Engine struct {
	Discrete   []*DiscreteControl
	Continuous []*ContinuousControl
}

// Init evaluates every DiscreteControl's initial truth/control state.
func (e *Engine) Init(s *param.Store, t0 float64) error {
	for _, dc := range e.Discrete {
		if err := dc.Init(s, t0); err != nil {
			return err
		}
	}
	return nil
}

// Event records one discrete-control transition for the control output
// record stream (§6: "(time, control_node_id, truth_state, control_state)").
type Event struct {
	Node  network.NodeId
	Truth string
	State string
}

// Step advances every control node by one accepted integrator step,
// returning the transitions that occurred (for the caller to write as
// control records) per §4.4 step 9.
func (e *Engine) Step(s *param.Store, t float64) ([]Event, error) {
	var events []Event
	for _, dc := range e.Discrete {
		tr, err := dc.Step(s, t)
		if err != nil {
			return nil, err
		}
		if tr.Changed {
			if err := dc.Apply(s); err != nil {
				return nil, err
			}
			events = append(events, Event{Node: dc.Node, Truth: tr.Truth, State: tr.State})
		}
	}
	for _, cc := range e.Continuous {
		if err := cc.Step(s, t); err != nil {
			return nil, err
		}
	}
	return events, nil
}
